package service

import (
	"errors"
	"fmt"

	"github.com/Eursukkul/mentorship-slots/internal/repository"
)

var (
	// validation
	ErrInvalidRange    = errors.New("slot start must be before its end")
	ErrPastStart       = errors.New("slot start must be in the future")
	ErrInvalidCapacity = errors.New("max_bookings must be greater than zero")

	// conflict
	ErrOverlap           = errors.New("slot overlaps an existing active slot")
	ErrHasBookings       = errors.New("slot has bookings; cancel them first")
	ErrSlotInactive      = errors.New("slot is not open for booking")
	ErrSlotFull          = errors.New("slot is fully booked")
	ErrDuplicateBooking  = errors.New("requester already holds a booking for this slot")
	ErrAlreadyTerminal   = errors.New("booking is already cancelled or completed")
	ErrInvalidTransition = errors.New("booking status transition not allowed")
	ErrRescheduleFailed  = errors.New("reschedule failed; original booking kept")

	// identity
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrForbidden       = errors.New("not allowed to act on this booking")

	// transient
	ErrBusy = errors.New("resource busy, retry later")
)

// IsBusinessError reports errors that describe a rule violation or a missing
// resource, as opposed to storage or transient failures.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrInvalidRange, ErrPastStart, ErrInvalidCapacity,
		ErrOverlap, ErrHasBookings, ErrSlotInactive, ErrSlotFull, ErrDuplicateBooking,
		ErrAlreadyTerminal, ErrInvalidTransition, ErrRescheduleFailed,
		ErrSlotNotFound, ErrBookingNotFound, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify maps storage contention to ErrBusy and wraps other storage errors.
// Business errors pass through untouched.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsBusinessError(err), errors.Is(err, ErrBusy):
		return err
	case repository.IsContention(err):
		return fmt.Errorf("%s: %w", op, ErrBusy)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRescheduleFailed):
		return "reschedule_failed"
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, ErrOverlap):
		return "overlap"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrBookingNotFound):
		return "not_found"
	case IsBusinessError(err):
		return "rejected"
	default:
		return "error"
	}
}
