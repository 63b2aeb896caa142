package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string
	Env        string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RabbitURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	LockTimeout      time.Duration
	OperationTimeout time.Duration

	BookingAutoConfirm bool
	BookingRateLimit   int64
	BookingRateWindow  time.Duration

	CompletionSweepInterval time.Duration

	OTLPEndpoint string
}

var defaults = map[string]any{
	"SERVER_PORT":                 "8082",
	"ENV":                         "development",
	"DB_HOST":                     "localhost",
	"DB_PORT":                     "5432",
	"DB_USER":                     "postgres",
	"DB_PASSWORD":                 "postgres",
	"DB_NAME":                     "mentorship",
	"DB_SSLMODE":                  "disable",
	"RABBITMQ_URL":                "",
	"REDIS_ADDR":                  "",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"JWT_SECRET":                  "",
	"LOCK_TIMEOUT":                "2s",
	"OPERATION_TIMEOUT":           "5s",
	"BOOKING_AUTO_CONFIRM":        false,
	"BOOKING_RATE_LIMIT":          10,
	"BOOKING_RATE_WINDOW":         "1m",
	"COMPLETION_SWEEP_INTERVAL":   "15m",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
}

// Load reads an optional .env file, then resolves every key from the
// environment with the defaults above.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServerPort:              v.GetString("SERVER_PORT"),
		Env:                     v.GetString("ENV"),
		DBHost:                  v.GetString("DB_HOST"),
		DBPort:                  v.GetString("DB_PORT"),
		DBUser:                  v.GetString("DB_USER"),
		DBPassword:              v.GetString("DB_PASSWORD"),
		DBName:                  v.GetString("DB_NAME"),
		DBSSLMode:               v.GetString("DB_SSLMODE"),
		RabbitURL:               v.GetString("RABBITMQ_URL"),
		RedisAddr:               v.GetString("REDIS_ADDR"),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		RedisDB:                 v.GetInt("REDIS_DB"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		LockTimeout:             v.GetDuration("LOCK_TIMEOUT"),
		OperationTimeout:        v.GetDuration("OPERATION_TIMEOUT"),
		BookingAutoConfirm:      v.GetBool("BOOKING_AUTO_CONFIRM"),
		BookingRateLimit:        v.GetInt64("BOOKING_RATE_LIMIT"),
		BookingRateWindow:       v.GetDuration("BOOKING_RATE_WINDOW"),
		CompletionSweepInterval: v.GetDuration("COMPLETION_SWEEP_INTERVAL"),
		OTLPEndpoint:            v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required but not set"))
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, errors.New("LOCK_TIMEOUT must be positive"))
	}
	if c.OperationTimeout < c.LockTimeout {
		errs = append(errs, errors.New("OPERATION_TIMEOUT must not be shorter than LOCK_TIMEOUT"))
	}
	if c.BookingRateLimit > 0 && c.BookingRateWindow <= 0 {
		errs = append(errs, errors.New("BOOKING_RATE_WINDOW must be positive when rate limiting is on"))
	}
	return errors.Join(errs...)
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
