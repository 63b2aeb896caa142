package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	MentorChannelPrefix    = "mentor:"
	RequesterChannelPrefix = "requester:"
)

// Publisher is the subset of the RabbitMQ publisher the sink needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// BrokerSink routes each event to the broker using its type as routing key.
type BrokerSink struct {
	pub Publisher
}

func NewBrokerSink(pub Publisher) *BrokerSink {
	return &BrokerSink{pub: pub}
}

func (s *BrokerSink) Publish(ctx context.Context, ev Event) error {
	return s.pub.Publish(ctx, string(ev.Type), ev)
}

// RedisSink fans events out on per-user pub/sub channels consumed by the
// socket gateway.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	for _, channel := range Channels(ev) {
		if err := s.client.Publish(ctx, channel, data).Err(); err != nil {
			return fmt.Errorf("publish to %s: %w", channel, err)
		}
	}
	return nil
}

// Channels lists the pub/sub channels interested in ev.
func Channels(ev Event) []string {
	channels := []string{MentorChannelPrefix + ev.MentorID}
	if ev.RequesterID != "" {
		channels = append(channels, RequesterChannelPrefix+ev.RequesterID)
	}
	return channels
}
