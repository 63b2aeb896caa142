package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PageRequest struct {
	Offset int
	Limit  int
}

type BookingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error)
	FindActiveByRequesterAndSlot(ctx context.Context, tx *gorm.DB, requesterID string, slotID uuid.UUID) (*models.Booking, error)
	CountActiveBySlot(ctx context.Context, tx *gorm.DB, slotID uuid.UUID) (int64, error)
	HasHistory(ctx context.Context, tx *gorm.DB, slotID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, booking *models.Booking, from models.BookingStatus) (bool, error)
	ListByRequester(ctx context.Context, requesterID string, page PageRequest) ([]models.Booking, int64, error)
	ListByMentor(ctx context.Context, mentorID string, page PageRequest) ([]models.Booking, int64, error)
	FindDueForCompletion(ctx context.Context, before time.Time, limit int) ([]models.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return tx.WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindActiveByRequesterAndSlot(ctx context.Context, tx *gorm.DB, requesterID string, slotID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := tx.WithContext(ctx).
		Where("requester_id = ? AND slot_id = ? AND status IN ?", requesterID, slotID, models.LiveStatuses).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) CountActiveBySlot(ctx context.Context, tx *gorm.DB, slotID uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("slot_id = ? AND status IN ?", slotID, models.LiveStatuses).
		Count(&count).Error
	return count, err
}

// HasHistory reports whether any booking row, live or terminal, references the slot.
func (r *bookingRepository) HasHistory(ctx context.Context, tx *gorm.DB, slotID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("slot_id = ?", slotID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatus persists booking.Status and its audit columns, only if the row
// is still in the from state.
func (r *bookingRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, booking *models.Booking, from models.BookingStatus) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, from).
		Updates(map[string]any{
			"status":       booking.Status,
			"payment_ref":  booking.PaymentRef,
			"cancelled_by": booking.CancelledBy,
			"cancelled_at": booking.CancelledAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *bookingRepository) ListByRequester(ctx context.Context, requesterID string, page PageRequest) ([]models.Booking, int64, error) {
	return r.list(r.db.WithContext(ctx).Where("requester_id = ?", requesterID), page)
}

func (r *bookingRepository) ListByMentor(ctx context.Context, mentorID string, page PageRequest) ([]models.Booking, int64, error) {
	return r.list(r.db.WithContext(ctx).Where("mentor_id = ?", mentorID), page)
}

func (r *bookingRepository) list(q *gorm.DB, page PageRequest) ([]models.Booking, int64, error) {
	q = q.Model(&models.Booking{}).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	err := q.Order("created_at DESC, id DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindDueForCompletion returns confirmed bookings whose session ended before the cutoff.
func (r *bookingRepository) FindDueForCompletion(ctx context.Context, before time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", models.StatusConfirmed, before).
		Order("ends_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}
