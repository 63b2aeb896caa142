package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SlotFilter struct {
	UpcomingOnly bool
	Now          time.Time
	Offset       int
	Limit        int
}

type SlotRepository interface {
	Create(ctx context.Context, tx *gorm.DB, slot *models.AvailabilitySlot) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AvailabilitySlot, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.AvailabilitySlot, error)
	FindActiveInRange(ctx context.Context, tx *gorm.DB, mentorID string, start, end time.Time) ([]models.AvailabilitySlot, error)
	ListByMentor(ctx context.Context, mentorID string, filter SlotFilter) ([]models.AvailabilitySlot, int64, error)
	UpdateUnbooked(ctx context.Context, tx *gorm.DB, slot *models.AvailabilitySlot) (bool, error)
	DeleteUnbooked(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	Withdraw(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	IncrementBookings(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	DecrementBookings(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	LockMentor(ctx context.Context, tx *gorm.DB, mentorID string) error
}

type slotRepository struct {
	db *gorm.DB
}

func NewSlotRepository(db *gorm.DB) SlotRepository {
	return &slotRepository{db: db}
}

func (r *slotRepository) Create(ctx context.Context, tx *gorm.DB, slot *models.AvailabilitySlot) error {
	return tx.WithContext(ctx).Create(slot).Error
}

func (r *slotRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

// FindByIDForUpdate acquires a row-level lock on the slot within the given transaction.
func (r *slotRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

// FindActiveInRange returns the mentor's active slots that intersect [start, end).
func (r *slotRepository) FindActiveInRange(ctx context.Context, tx *gorm.DB, mentorID string, start, end time.Time) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := tx.WithContext(ctx).
		Where("mentor_id = ? AND status = ? AND start_at < ? AND end_at > ?", mentorID, models.SlotActive, end, start).
		Order("start_at ASC").
		Find(&slots).Error
	return slots, err
}

func (r *slotRepository) ListByMentor(ctx context.Context, mentorID string, filter SlotFilter) ([]models.AvailabilitySlot, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AvailabilitySlot{}).Where("mentor_id = ?", mentorID)
	if filter.UpcomingOnly {
		q = q.Where("start_at >= ? AND status = ?", filter.Now, models.SlotActive)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var slots []models.AvailabilitySlot
	err := q.Order("start_at ASC, id ASC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&slots).Error
	if err != nil {
		return nil, 0, err
	}
	return slots, total, nil
}

// UpdateUnbooked writes the editable columns only while the slot carries no
// live bookings. It reports false when the guard rejected the write.
func (r *slotRepository) UpdateUnbooked(ctx context.Context, tx *gorm.DB, slot *models.AvailabilitySlot) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.AvailabilitySlot{}).
		Where("id = ? AND current_bookings = 0", slot.ID).
		Updates(map[string]any{
			"start_at":        slot.StartAt,
			"end_at":          slot.EndAt,
			"max_bookings":    slot.MaxBookings,
			"title":           slot.Title,
			"description":     slot.Description,
			"price":           slot.Price,
			"session_type":    slot.SessionType,
			"specializations": slot.Specializations,
			"meeting_link":    slot.MeetingLink,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *slotRepository) DeleteUnbooked(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`DELETE FROM availability_slots WHERE id = ? AND current_bookings = 0`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *slotRepository) Withdraw(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE availability_slots SET status = ?, updated_at = NOW() WHERE id = ? AND current_bookings = 0`,
		models.SlotWithdrawn, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementBookings consumes one unit of capacity. The update only applies while
// the slot is active and below capacity, so it can never over-book even if the
// caller's earlier read is stale.
func (r *slotRepository) IncrementBookings(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE availability_slots
		 SET current_bookings = current_bookings + 1, updated_at = NOW()
		 WHERE id = ? AND status = ? AND current_bookings < max_bookings`,
		id, models.SlotActive)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementBookings releases one unit of capacity, floored at zero.
func (r *slotRepository) DecrementBookings(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE availability_slots
		 SET current_bookings = GREATEST(current_bookings - 1, 0), updated_at = NOW()
		 WHERE id = ?`,
		id).Error
}

// LockMentor serializes overlap checks for one mentor until the transaction ends.
func (r *slotRepository) LockMentor(ctx context.Context, tx *gorm.DB, mentorID string) error {
	return tx.WithContext(ctx).Exec(`SELECT pg_advisory_xact_lock(hashtextextended(?, 0))`, mentorID).Error
}
