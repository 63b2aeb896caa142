package service

import (
	"context"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/events"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	sinkTimeout = 2 * time.Second
)

// Metrics receives one sample per engine operation.
type Metrics interface {
	RecordSlotOperation(ctx context.Context, operation, outcome string)
	RecordBookingOperation(ctx context.Context, operation, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSlotOperation(context.Context, string, string)    {}
func (nopMetrics) RecordBookingOperation(context.Context, string, string) {}

type Options struct {
	Sink             events.Sink
	Logger           *zap.Logger
	Metrics          Metrics
	OperationTimeout time.Duration
	// AutoConfirm makes new bookings start as confirmed instead of pending.
	AutoConfirm bool
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Sink == nil {
		o.Sink = events.NopSink{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.OperationTimeout)
}

// publish delivers events after commit. Delivery failures are logged and
// never surface to the caller.
func (o Options) publish(ctx context.Context, evs ...events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	for _, ev := range evs {
		if err := o.Sink.Publish(ctx, ev); err != nil {
			o.Logger.Warn("event delivery failed",
				zap.String("event_type", string(ev.Type)),
				zap.String("slot_id", ev.SlotID.String()),
				zap.Error(err),
			)
		}
	}
}

type ListQuery struct {
	UpcomingOnly bool
	Page         int
	Limit        int
}

// normalize clamps page to >= 1 and limit to [1, MaxPageLimit].
func (q ListQuery) normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultPageLimit
	case q.Limit > MaxPageLimit:
		q.Limit = MaxPageLimit
	}
	return q
}

func (q ListQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

type Page[T any] struct {
	Items []T
	Page  int
	Limit int
	Total int64
}
