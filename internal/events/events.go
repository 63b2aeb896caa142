package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	SlotCreated        Type = "slot.created"
	SlotUpdated        Type = "slot.updated"
	SlotDeleted        Type = "slot.deleted"
	BookingCreated     Type = "booking.created"
	BookingCancelled   Type = "booking.cancelled"
	BookingRescheduled Type = "booking.rescheduled"
	BookingConfirmed   Type = "booking.confirmed"
	BookingCompleted   Type = "booking.completed"
)

// Event is a change notification emitted after a committed engine operation.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	Type        Type       `json:"type"`
	OccurredAt  time.Time  `json:"occurred_at"`
	MentorID    string     `json:"mentor_id"`
	RequesterID string     `json:"requester_id,omitempty"`
	SlotID      uuid.UUID  `json:"slot_id"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	Data        any        `json:"data,omitempty"`
}

func New(t Type, mentorID string, slotID uuid.UUID, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: at.UTC(),
		MentorID:   mentorID,
		SlotID:     slotID,
	}
}

func (e Event) WithBooking(bookingID uuid.UUID, requesterID string) Event {
	e.BookingID = &bookingID
	e.RequesterID = requesterID
	return e
}

func (e Event) WithData(data any) Event {
	e.Data = data
	return e
}

// Sink receives engine change events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
