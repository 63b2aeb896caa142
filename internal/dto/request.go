package dto

import (
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/service"
)

type CreateSlotRequest struct {
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	MaxBookings     int       `json:"max_bookings"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	SessionType     string    `json:"session_type"`
	Specializations []string  `json:"specializations"`
	MeetingLink     string    `json:"meeting_link"`
}

func (r CreateSlotRequest) ToInput() service.SlotInput {
	return service.SlotInput{
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
		MaxBookings: r.MaxBookings,
		Metadata: service.SlotMetadata{
			Title:           r.Title,
			Description:     r.Description,
			Price:           r.Price,
			SessionType:     r.SessionType,
			Specializations: r.Specializations,
			MeetingLink:     r.MeetingLink,
		},
	}
}

// UpdateSlotRequest is a partial edit; omitted fields keep their value.
type UpdateSlotRequest struct {
	StartAt         *time.Time `json:"start_at"`
	EndAt           *time.Time `json:"end_at"`
	MaxBookings     *int       `json:"max_bookings"`
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	Price           *float64   `json:"price"`
	SessionType     *string    `json:"session_type"`
	Specializations *[]string  `json:"specializations"`
	MeetingLink     *string    `json:"meeting_link"`
}

func (r UpdateSlotRequest) ToChanges() service.SlotChanges {
	return service.SlotChanges{
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		MaxBookings:     r.MaxBookings,
		Title:           r.Title,
		Description:     r.Description,
		Price:           r.Price,
		SessionType:     r.SessionType,
		Specializations: r.Specializations,
		MeetingLink:     r.MeetingLink,
	}
}

func (r UpdateSlotRequest) Empty() bool {
	return r == UpdateSlotRequest{}
}

type BookSlotRequest struct {
	Notes      string `json:"notes"`
	PaymentRef string `json:"payment_ref"`
}

type RescheduleRequest struct {
	SlotID string `json:"slot_id"`
}
