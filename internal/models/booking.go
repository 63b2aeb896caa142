package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// LiveStatuses hold a unit of slot capacity.
var LiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s BookingStatus) IsLive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking holds the terms committed at booking time. ScheduledAt, EndsAt, Price
// and the descriptive fields are copied from the slot and never re-derived.
type Booking struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SlotID            uuid.UUID     `gorm:"type:uuid;not null;index" json:"slot_id"`
	MentorID          string        `gorm:"type:varchar(64);not null;index" json:"mentor_id"`
	RequesterID       string        `gorm:"type:varchar(64);not null;index" json:"requester_id"`
	Status            BookingStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ScheduledAt       time.Time     `gorm:"not null" json:"scheduled_at"`
	EndsAt            time.Time     `gorm:"not null" json:"ends_at"`
	Price             float64       `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Title             string        `gorm:"type:varchar(255);not null;default:''" json:"title"`
	SessionType       string        `gorm:"type:varchar(50);not null;default:''" json:"session_type"`
	MeetingLink       string        `gorm:"type:text;not null;default:''" json:"meeting_link"`
	Notes             string        `gorm:"type:text;not null;default:''" json:"notes"`
	PaymentRef        string        `gorm:"type:varchar(128);not null;default:''" json:"payment_ref"`
	CancelledBy       string        `gorm:"type:varchar(64);not null;default:''" json:"cancelled_by,omitempty"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
	RescheduledFromID *uuid.UUID    `gorm:"type:uuid" json:"rescheduled_from_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	Slot *AvailabilitySlot `gorm:"foreignKey:SlotID" json:"slot,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
