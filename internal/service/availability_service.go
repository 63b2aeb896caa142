package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/events"
	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SlotMetadata is descriptive data passed through without invariants.
type SlotMetadata struct {
	Title           string
	Description     string
	Price           float64
	SessionType     string
	Specializations []string
	MeetingLink     string
}

type SlotInput struct {
	StartAt     time.Time
	EndAt       time.Time
	MaxBookings int
	Metadata    SlotMetadata
}

// SlotChanges carries a partial edit; nil fields are left unchanged.
type SlotChanges struct {
	StartAt         *time.Time
	EndAt           *time.Time
	MaxBookings     *int
	Title           *string
	Description     *string
	Price           *float64
	SessionType     *string
	Specializations *[]string
	MeetingLink     *string
}

func (c SlotChanges) touchesTime() bool {
	return c.StartAt != nil || c.EndAt != nil
}

type AvailabilityManager interface {
	CreateSlot(ctx context.Context, mentorID string, in SlotInput) (*models.AvailabilitySlot, error)
	UpdateSlot(ctx context.Context, slotID uuid.UUID, mentorID string, changes SlotChanges) (*models.AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, slotID uuid.UUID, mentorID string) error
	GetSlot(ctx context.Context, slotID uuid.UUID) (*models.AvailabilitySlot, error)
	ListAvailability(ctx context.Context, mentorID string, q ListQuery) (Page[models.AvailabilitySlot], error)
}

type availabilityManager struct {
	tx       repository.Transactor
	slots    repository.SlotRepository
	bookings repository.BookingRepository
	overlap  *OverlapValidator
	opts     Options
}

func NewAvailabilityManager(
	tx repository.Transactor,
	slots repository.SlotRepository,
	bookings repository.BookingRepository,
	opts Options,
) AvailabilityManager {
	return &availabilityManager{
		tx:       tx,
		slots:    slots,
		bookings: bookings,
		overlap:  NewOverlapValidator(slots),
		opts:     opts.withDefaults(),
	}
}

func (m *availabilityManager) validateWindow(start, end time.Time, maxBookings int) error {
	if maxBookings <= 0 {
		return ErrInvalidCapacity
	}
	if !start.Before(end) {
		return ErrInvalidRange
	}
	if !start.After(m.opts.Now()) {
		return ErrPastStart
	}
	return nil
}

func (m *availabilityManager) CreateSlot(ctx context.Context, mentorID string, in SlotInput) (*models.AvailabilitySlot, error) {
	slot, err := m.createSlot(ctx, mentorID, in)
	m.opts.Metrics.RecordSlotOperation(ctx, "create", outcome(err))
	if err != nil {
		return nil, err
	}

	m.opts.Logger.Info("slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("mentor_id", mentorID),
		zap.Time("start_at", slot.StartAt),
		zap.Int("max_bookings", slot.MaxBookings),
	)
	m.opts.publish(ctx, events.New(events.SlotCreated, mentorID, slot.ID, m.opts.Now()).WithData(slot))
	return slot, nil
}

func (m *availabilityManager) createSlot(ctx context.Context, mentorID string, in SlotInput) (*models.AvailabilitySlot, error) {
	if err := m.validateWindow(in.StartAt, in.EndAt, in.MaxBookings); err != nil {
		return nil, err
	}

	slot := &models.AvailabilitySlot{
		MentorID:        mentorID,
		StartAt:         in.StartAt.UTC(),
		EndAt:           in.EndAt.UTC(),
		MaxBookings:     in.MaxBookings,
		CurrentBookings: 0,
		Status:          models.SlotActive,
		Title:           in.Metadata.Title,
		Description:     in.Metadata.Description,
		Price:           in.Metadata.Price,
		SessionType:     in.Metadata.SessionType,
		Specializations: in.Metadata.Specializations,
		MeetingLink:     in.Metadata.MeetingLink,
	}
	if slot.Specializations == nil {
		slot.Specializations = []string{}
	}

	ctx, cancel := m.opts.operationContext(ctx)
	defer cancel()

	err := m.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := m.slots.LockMentor(ctx, tx, mentorID); err != nil {
			return err
		}

		conflict, err := m.overlap.HasOverlap(ctx, tx, mentorID, slot.StartAt, slot.EndAt, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrOverlap
		}

		return m.slots.Create(ctx, tx, slot)
	})
	if err != nil {
		return nil, classify("create slot", err)
	}
	return slot, nil
}

func (m *availabilityManager) UpdateSlot(ctx context.Context, slotID uuid.UUID, mentorID string, changes SlotChanges) (*models.AvailabilitySlot, error) {
	slot, err := m.updateSlot(ctx, slotID, mentorID, changes)
	m.opts.Metrics.RecordSlotOperation(ctx, "update", outcome(err))
	if err != nil {
		return nil, err
	}

	m.opts.Logger.Info("slot updated",
		zap.String("slot_id", slot.ID.String()),
		zap.String("mentor_id", mentorID),
	)
	m.opts.publish(ctx, events.New(events.SlotUpdated, mentorID, slot.ID, m.opts.Now()).WithData(slot))
	return slot, nil
}

func (m *availabilityManager) updateSlot(ctx context.Context, slotID uuid.UUID, mentorID string, changes SlotChanges) (*models.AvailabilitySlot, error) {
	ctx, cancel := m.opts.operationContext(ctx)
	defer cancel()

	var result *models.AvailabilitySlot
	err := m.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := m.slots.LockMentor(ctx, tx, mentorID); err != nil {
			return err
		}

		slot, err := m.slots.FindByIDForUpdate(ctx, tx, slotID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrSlotNotFound
			}
			return err
		}
		if slot.MentorID != mentorID {
			return ErrSlotNotFound
		}
		if slot.CurrentBookings > 0 {
			return ErrHasBookings
		}
		if !slot.IsActive() {
			return ErrSlotInactive
		}

		applyChanges(slot, changes)
		if err := m.validateWindow(slot.StartAt, slot.EndAt, slot.MaxBookings); err != nil {
			return err
		}

		if changes.touchesTime() {
			conflict, err := m.overlap.HasOverlap(ctx, tx, mentorID, slot.StartAt, slot.EndAt, slot.ID)
			if err != nil {
				return err
			}
			if conflict {
				return ErrOverlap
			}
		}

		ok, err := m.slots.UpdateUnbooked(ctx, tx, slot)
		if err != nil {
			return err
		}
		if !ok {
			return ErrHasBookings
		}
		result = slot
		return nil
	})
	if err != nil {
		return nil, classify("update slot", err)
	}
	return result, nil
}

func applyChanges(slot *models.AvailabilitySlot, c SlotChanges) {
	if c.StartAt != nil {
		slot.StartAt = c.StartAt.UTC()
	}
	if c.EndAt != nil {
		slot.EndAt = c.EndAt.UTC()
	}
	if c.MaxBookings != nil {
		slot.MaxBookings = *c.MaxBookings
	}
	if c.Title != nil {
		slot.Title = *c.Title
	}
	if c.Description != nil {
		slot.Description = *c.Description
	}
	if c.Price != nil {
		slot.Price = *c.Price
	}
	if c.SessionType != nil {
		slot.SessionType = *c.SessionType
	}
	if c.Specializations != nil {
		slot.Specializations = *c.Specializations
	}
	if c.MeetingLink != nil {
		slot.MeetingLink = *c.MeetingLink
	}
}

// DeleteSlot removes an unbooked slot. Slots referenced by past bookings are
// withdrawn instead so the ledger keeps its history.
func (m *availabilityManager) DeleteSlot(ctx context.Context, slotID uuid.UUID, mentorID string) error {
	withdrawn, err := m.deleteSlot(ctx, slotID, mentorID)
	m.opts.Metrics.RecordSlotOperation(ctx, "delete", outcome(err))
	if err != nil {
		return err
	}

	m.opts.Logger.Info("slot deleted",
		zap.String("slot_id", slotID.String()),
		zap.String("mentor_id", mentorID),
		zap.Bool("withdrawn", withdrawn),
	)
	m.opts.publish(ctx, events.New(events.SlotDeleted, mentorID, slotID, m.opts.Now()).
		WithData(map[string]bool{"withdrawn": withdrawn}))
	return nil
}

func (m *availabilityManager) deleteSlot(ctx context.Context, slotID uuid.UUID, mentorID string) (bool, error) {
	ctx, cancel := m.opts.operationContext(ctx)
	defer cancel()

	var withdrawn bool
	err := m.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		slot, err := m.slots.FindByIDForUpdate(ctx, tx, slotID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrSlotNotFound
			}
			return err
		}
		if slot.MentorID != mentorID {
			return ErrSlotNotFound
		}
		if slot.CurrentBookings > 0 {
			return ErrHasBookings
		}

		history, err := m.bookings.HasHistory(ctx, tx, slotID)
		if err != nil {
			return err
		}

		var ok bool
		if history {
			ok, err = m.slots.Withdraw(ctx, tx, slotID)
			withdrawn = true
		} else {
			ok, err = m.slots.DeleteUnbooked(ctx, tx, slotID)
		}
		if err != nil {
			return err
		}
		if !ok {
			return ErrHasBookings
		}
		return nil
	})
	if err != nil {
		return false, classify("delete slot", err)
	}
	return withdrawn, nil
}

func (m *availabilityManager) GetSlot(ctx context.Context, slotID uuid.UUID) (*models.AvailabilitySlot, error) {
	slot, err := m.slots.FindByID(ctx, slotID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (m *availabilityManager) ListAvailability(ctx context.Context, mentorID string, q ListQuery) (Page[models.AvailabilitySlot], error) {
	q = q.normalize()
	slots, total, err := m.slots.ListByMentor(ctx, mentorID, repository.SlotFilter{
		UpcomingOnly: q.UpcomingOnly,
		Now:          m.opts.Now(),
		Offset:       q.offset(),
		Limit:        q.Limit,
	})
	if err != nil {
		return Page[models.AvailabilitySlot]{}, fmt.Errorf("list availability: %w", err)
	}
	if slots == nil {
		slots = []models.AvailabilitySlot{}
	}
	return Page[models.AvailabilitySlot]{Items: slots, Page: q.Page, Limit: q.Limit, Total: total}, nil
}
