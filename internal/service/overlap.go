package service

import (
	"context"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Overlaps uses half-open ranges: [10:00, 10:45) and [10:45, 11:30) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// HasOverlap reports whether any active slot other than exclude intersects [start, end).
func HasOverlap(slots []models.AvailabilitySlot, start, end time.Time, exclude uuid.UUID) bool {
	for i := range slots {
		s := &slots[i]
		if s.ID == exclude || !s.IsActive() {
			continue
		}
		if Overlaps(s.StartAt, s.EndAt, start, end) {
			return true
		}
	}
	return false
}

// OverlapValidator checks a candidate range against a mentor's stored slots.
// Callers must hold the mentor lock in tx so the answer stays valid until commit.
type OverlapValidator struct {
	slots repository.SlotRepository
}

func NewOverlapValidator(slots repository.SlotRepository) *OverlapValidator {
	return &OverlapValidator{slots: slots}
}

func (v *OverlapValidator) HasOverlap(ctx context.Context, tx *gorm.DB, mentorID string, start, end time.Time, exclude uuid.UUID) (bool, error) {
	candidates, err := v.slots.FindActiveInRange(ctx, tx, mentorID, start, end)
	if err != nil {
		return false, err
	}
	return HasOverlap(candidates, start, end, exclude), nil
}
