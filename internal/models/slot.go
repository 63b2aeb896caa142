package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type SlotStatus string

const (
	SlotActive    SlotStatus = "active"
	SlotWithdrawn SlotStatus = "withdrawn"
)

// AvailabilitySlot is a mentor-published session window with a booking capacity.
// CurrentBookings is owned by the booking coordinator and never written by slot edits.
type AvailabilitySlot struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MentorID        string         `gorm:"type:varchar(64);not null;index:idx_slots_mentor_start,priority:1" json:"mentor_id"`
	StartAt         time.Time      `gorm:"not null;index:idx_slots_mentor_start,priority:2" json:"start_at"`
	EndAt           time.Time      `gorm:"not null" json:"end_at"`
	MaxBookings     int            `gorm:"not null" json:"max_bookings"`
	CurrentBookings int            `gorm:"not null;default:0" json:"current_bookings"`
	Status          SlotStatus     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Title           string         `gorm:"type:varchar(255);not null;default:''" json:"title"`
	Description     string         `gorm:"type:text;not null;default:''" json:"description"`
	Price           float64        `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	SessionType     string         `gorm:"type:varchar(50);not null;default:''" json:"session_type"`
	Specializations pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"specializations"`
	MeetingLink     string         `gorm:"type:text;not null;default:''" json:"meeting_link"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (AvailabilitySlot) TableName() string {
	return "availability_slots"
}

func (s *AvailabilitySlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *AvailabilitySlot) IsActive() bool {
	return s.Status == SlotActive
}

func (s *AvailabilitySlot) HasCapacity() bool {
	return s.CurrentBookings < s.MaxBookings
}

// Overlaps reports whether [start, end) intersects the slot's range. Touching
// endpoints do not count.
func (s *AvailabilitySlot) Overlaps(start, end time.Time) bool {
	return s.StartAt.Before(end) && s.EndAt.After(start)
}
