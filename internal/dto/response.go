package dto

import (
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/service"
	"github.com/google/uuid"
)

type SlotResponse struct {
	ID              uuid.UUID         `json:"id"`
	MentorID        string            `json:"mentor_id"`
	StartAt         time.Time         `json:"start_at"`
	EndAt           time.Time         `json:"end_at"`
	MaxBookings     int               `json:"max_bookings"`
	CurrentBookings int               `json:"current_bookings"`
	SeatsAvailable  int               `json:"seats_available"`
	Status          models.SlotStatus `json:"status"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Price           float64           `json:"price"`
	SessionType     string            `json:"session_type"`
	Specializations []string          `json:"specializations"`
	MeetingLink     string            `json:"meeting_link,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type BookingResponse struct {
	ID                uuid.UUID            `json:"id"`
	SlotID            uuid.UUID            `json:"slot_id"`
	MentorID          string               `json:"mentor_id"`
	RequesterID       string               `json:"requester_id"`
	Status            models.BookingStatus `json:"status"`
	ScheduledAt       time.Time            `json:"scheduled_at"`
	EndsAt            time.Time            `json:"ends_at"`
	Price             float64              `json:"price"`
	Title             string               `json:"title"`
	SessionType       string               `json:"session_type"`
	MeetingLink       string               `json:"meeting_link,omitempty"`
	Notes             string               `json:"notes,omitempty"`
	PaymentRef        string               `json:"payment_ref,omitempty"`
	CancelledBy       string               `json:"cancelled_by,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	RescheduledFromID *uuid.UUID           `json:"rescheduled_from_id,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

type PageResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToSlotResponse(s *models.AvailabilitySlot) SlotResponse {
	specs := []string(s.Specializations)
	if specs == nil {
		specs = []string{}
	}
	return SlotResponse{
		ID:              s.ID,
		MentorID:        s.MentorID,
		StartAt:         s.StartAt,
		EndAt:           s.EndAt,
		MaxBookings:     s.MaxBookings,
		CurrentBookings: s.CurrentBookings,
		SeatsAvailable:  max(s.MaxBookings-s.CurrentBookings, 0),
		Status:          s.Status,
		Title:           s.Title,
		Description:     s.Description,
		Price:           s.Price,
		SessionType:     s.SessionType,
		Specializations: specs,
		MeetingLink:     s.MeetingLink,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func ToBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:                b.ID,
		SlotID:            b.SlotID,
		MentorID:          b.MentorID,
		RequesterID:       b.RequesterID,
		Status:            b.Status,
		ScheduledAt:       b.ScheduledAt,
		EndsAt:            b.EndsAt,
		Price:             b.Price,
		Title:             b.Title,
		SessionType:       b.SessionType,
		MeetingLink:       b.MeetingLink,
		Notes:             b.Notes,
		PaymentRef:        b.PaymentRef,
		CancelledBy:       b.CancelledBy,
		CancelledAt:       b.CancelledAt,
		RescheduledFromID: b.RescheduledFromID,
		CreatedAt:         b.CreatedAt,
	}
}

func ToSlotPage(p service.Page[models.AvailabilitySlot]) PageResponse[SlotResponse] {
	items := make([]SlotResponse, len(p.Items))
	for i := range p.Items {
		items[i] = ToSlotResponse(&p.Items[i])
	}
	return PageResponse[SlotResponse]{Items: items, Page: p.Page, Limit: p.Limit, Total: p.Total}
}

func ToBookingPage(p service.Page[models.Booking]) PageResponse[BookingResponse] {
	items := make([]BookingResponse, len(p.Items))
	for i := range p.Items {
		items[i] = ToBookingResponse(&p.Items[i])
	}
	return PageResponse[BookingResponse]{Items: items, Page: p.Page, Limit: p.Limit, Total: p.Total}
}
