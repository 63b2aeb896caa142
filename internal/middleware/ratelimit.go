package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/ratelimit"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RateLimit allows limit requests per caller per window. The caller is the
// authenticated actor, or the client IP when none is set. Counter store
// failures let the request through.
func RateLimit(store ratelimit.CounterStore, scope string, limit int64, window time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}

			caller := "ip:" + c.RealIP()
			if actor, ok := ActorFrom(c); ok {
				caller = "user:" + actor.ID
			}

			count, err := store.Increment(c.Request().Context(), scope+":"+caller, window)
			if err != nil {
				log.Warn("rate limit counter unavailable", zap.String("scope", scope), zap.Error(err))
				return next(c)
			}
			if count > limit {
				c.Response().Header().Set("Retry-After", retryAfter)
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, slow down")
			}
			return next(c)
		}
	}
}
