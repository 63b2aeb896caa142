package service

import (
	"testing"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2030, 3, 1, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"adjacent after", at(10, 0), at(10, 45), at(10, 45), at(11, 30), false},
		{"adjacent before", at(10, 45), at(11, 30), at(10, 0), at(10, 45), false},
		{"partial", at(10, 0), at(10, 45), at(10, 30), at(11, 0), true},
		{"contained", at(10, 0), at(12, 0), at(10, 30), at(11, 0), true},
		{"containing", at(10, 30), at(11, 0), at(10, 0), at(12, 0), true},
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"disjoint", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
		})
	}
}

func TestHasOverlap(t *testing.T) {
	self := models.AvailabilitySlot{ID: uuid.New(), StartAt: at(10, 0), EndAt: at(11, 0), Status: models.SlotActive}
	withdrawn := models.AvailabilitySlot{ID: uuid.New(), StartAt: at(12, 0), EndAt: at(13, 0), Status: models.SlotWithdrawn}
	other := models.AvailabilitySlot{ID: uuid.New(), StartAt: at(14, 0), EndAt: at(15, 0), Status: models.SlotActive}
	slots := []models.AvailabilitySlot{self, withdrawn, other}

	assert.False(t, HasOverlap(slots, at(10, 15), at(10, 45), self.ID), "editing slot is excluded")
	assert.True(t, HasOverlap(slots, at(10, 15), at(10, 45), uuid.Nil))
	assert.False(t, HasOverlap(slots, at(12, 0), at(13, 0), uuid.Nil), "withdrawn slots are ignored")
	assert.True(t, HasOverlap(slots, at(14, 59), at(16, 0), uuid.Nil))
	assert.False(t, HasOverlap(slots, at(11, 0), at(12, 0), uuid.Nil))
	assert.False(t, HasOverlap(nil, at(11, 0), at(12, 0), uuid.Nil))
}
