package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/events"
	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BookRequest struct {
	Notes      string
	PaymentRef string
}

type BookingCoordinator interface {
	Book(ctx context.Context, slotID uuid.UUID, requesterID string, req BookRequest) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	Reschedule(ctx context.Context, bookingID uuid.UUID, actor models.Actor, newSlotID uuid.UUID) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*models.Booking, error)
	Complete(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	CompleteDue(ctx context.Context, now time.Time, limit int) (int, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	ListForRequester(ctx context.Context, requesterID string, q ListQuery) (Page[models.Booking], error)
	ListForMentor(ctx context.Context, mentorID string, q ListQuery) (Page[models.Booking], error)
}

type bookingCoordinator struct {
	tx       repository.Transactor
	slots    repository.SlotRepository
	bookings repository.BookingRepository
	opts     Options
}

func NewBookingCoordinator(
	tx repository.Transactor,
	slots repository.SlotRepository,
	bookings repository.BookingRepository,
	opts Options,
) BookingCoordinator {
	return &bookingCoordinator{
		tx:       tx,
		slots:    slots,
		bookings: bookings,
		opts:     opts.withDefaults(),
	}
}

// canView covers the parties of a booking: its requester, the slot's mentor and admins.
func canView(actor models.Actor, b *models.Booking) bool {
	return actor.IsAdmin() || actor.ID == b.RequesterID || actor.ID == b.MentorID
}

func canModerate(actor models.Actor, b *models.Booking) bool {
	return actor.IsAdmin() || actor.ID == b.MentorID
}

func (c *bookingCoordinator) loadBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := c.bookings.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

func (c *bookingCoordinator) lockSlot(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.AvailabilitySlot, error) {
	slot, err := c.slots.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return slot, nil
}

func (c *bookingCoordinator) lockBooking(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	b, err := c.bookings.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// checkBookable runs the availability checks against a locked slot.
func (c *bookingCoordinator) checkBookable(ctx context.Context, tx *gorm.DB, slot *models.AvailabilitySlot, requesterID string) error {
	if !slot.IsActive() || !slot.StartAt.After(c.opts.Now()) {
		return ErrSlotInactive
	}
	if !slot.HasCapacity() {
		return ErrSlotFull
	}

	_, err := c.bookings.FindActiveByRequesterAndSlot(ctx, tx, requesterID, slot.ID)
	switch {
	case err == nil:
		return ErrDuplicateBooking
	case repository.IsNotFound(err):
		return nil
	default:
		return err
	}
}

// reserve inserts the booking and consumes one unit of the slot's capacity.
func (c *bookingCoordinator) reserve(ctx context.Context, tx *gorm.DB, slot *models.AvailabilitySlot, b *models.Booking) error {
	if err := c.bookings.Create(ctx, tx, b); err != nil {
		if repository.IsUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return err
	}

	ok, err := c.slots.IncrementBookings(ctx, tx, slot.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotFull
	}
	slot.CurrentBookings++
	return nil
}

func newBooking(slot *models.AvailabilitySlot, requesterID string, status models.BookingStatus) *models.Booking {
	return &models.Booking{
		SlotID:      slot.ID,
		MentorID:    slot.MentorID,
		RequesterID: requesterID,
		Status:      status,
		ScheduledAt: slot.StartAt,
		EndsAt:      slot.EndAt,
		Price:       slot.Price,
		Title:       slot.Title,
		SessionType: slot.SessionType,
		MeetingLink: slot.MeetingLink,
	}
}

func (c *bookingCoordinator) Book(ctx context.Context, slotID uuid.UUID, requesterID string, req BookRequest) (*models.Booking, error) {
	booking, err := c.book(ctx, slotID, requesterID, req)
	c.opts.Metrics.RecordBookingOperation(ctx, "book", outcome(err))
	if err != nil {
		return nil, err
	}

	c.opts.Logger.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", slotID.String()),
		zap.String("requester_id", requesterID),
		zap.String("status", string(booking.Status)),
	)
	c.opts.publish(ctx, bookingEvent(events.BookingCreated, booking, c.opts.Now()))
	return booking, nil
}

// initialStatus is the status a freshly reserved booking starts in.
func (c *bookingCoordinator) initialStatus() models.BookingStatus {
	if c.opts.AutoConfirm {
		return models.StatusConfirmed
	}
	return models.StatusPending
}

func (c *bookingCoordinator) book(ctx context.Context, slotID uuid.UUID, requesterID string, req BookRequest) (*models.Booking, error) {
	ctx, cancel := c.opts.operationContext(ctx)
	defer cancel()

	status := c.initialStatus()

	var booking *models.Booking
	err := c.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		slot, err := c.lockSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if err := c.checkBookable(ctx, tx, slot, requesterID); err != nil {
			return err
		}

		b := newBooking(slot, requesterID, status)
		b.Notes = req.Notes
		b.PaymentRef = req.PaymentRef
		if err := c.reserve(ctx, tx, slot, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, classify("book slot", err)
	}
	return booking, nil
}

func (c *bookingCoordinator) Cancel(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	booking, err := c.cancel(ctx, bookingID, actor)
	c.opts.Metrics.RecordBookingOperation(ctx, "cancel", outcome(err))
	if err != nil {
		return nil, err
	}

	c.opts.Logger.Info("booking cancelled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", booking.SlotID.String()),
		zap.String("cancelled_by", actor.ID),
	)
	c.opts.publish(ctx, bookingEvent(events.BookingCancelled, booking, c.opts.Now()))
	return booking, nil
}

func (c *bookingCoordinator) cancel(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	current, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, current) {
		return nil, ErrForbidden
	}

	ctx, cancel := c.opts.operationContext(ctx)
	defer cancel()

	var booking *models.Booking
	err = c.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if _, err := c.lockSlot(ctx, tx, current.SlotID); err != nil {
			return err
		}
		b, err := c.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := c.release(ctx, tx, b, actor); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, classify("cancel booking", err)
	}
	return booking, nil
}

// release cancels a locked live booking and gives its unit back to the slot.
func (c *bookingCoordinator) release(ctx context.Context, tx *gorm.DB, b *models.Booking, actor models.Actor) error {
	if b.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}

	from := b.Status
	now := c.opts.Now().UTC()
	b.Status = models.StatusCancelled
	b.CancelledBy = actor.ID
	b.CancelledAt = &now

	ok, err := c.bookings.UpdateStatus(ctx, tx, b, from)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyTerminal
	}
	return c.slots.DecrementBookings(ctx, tx, b.SlotID)
}

func (c *bookingCoordinator) Reschedule(ctx context.Context, bookingID uuid.UUID, actor models.Actor, newSlotID uuid.UUID) (*models.Booking, error) {
	old, booking, err := c.reschedule(ctx, bookingID, actor, newSlotID)
	c.opts.Metrics.RecordBookingOperation(ctx, "reschedule", outcome(err))
	if err != nil {
		return nil, err
	}

	c.opts.Logger.Info("booking rescheduled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("rescheduled_from", old.ID.String()),
		zap.String("from_slot_id", old.SlotID.String()),
		zap.String("to_slot_id", newSlotID.String()),
	)
	now := c.opts.Now()
	c.opts.publish(ctx,
		bookingEvent(events.BookingCancelled, old, now),
		bookingEvent(events.BookingCreated, booking, now),
		bookingEvent(events.BookingRescheduled, booking, now).WithData(map[string]any{
			"booking":             booking,
			"rescheduled_from_id": old.ID,
			"from_slot_id":        old.SlotID,
		}),
	)
	return booking, nil
}

// rescheduleFailed marks a failure on the target slot. Contention stays
// recognizable as ErrBusy through the wrap.
func rescheduleFailed(cause error) error {
	return fmt.Errorf("%w: %w", ErrRescheduleFailed, classify("target slot", cause))
}

func (c *bookingCoordinator) reschedule(ctx context.Context, bookingID uuid.UUID, actor models.Actor, newSlotID uuid.UUID) (*models.Booking, *models.Booking, error) {
	current, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if !canView(actor, current) {
		return nil, nil, ErrForbidden
	}
	if current.Status.IsTerminal() {
		return nil, nil, ErrAlreadyTerminal
	}
	if current.SlotID == newSlotID {
		return nil, nil, rescheduleFailed(ErrDuplicateBooking)
	}

	ctx, cancel := c.opts.operationContext(ctx)
	defer cancel()

	var old, booking *models.Booking
	err = c.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		locked := make(map[uuid.UUID]*models.AvailabilitySlot, 2)
		for _, id := range lockOrder(current.SlotID, newSlotID) {
			slot, err := c.lockSlot(ctx, tx, id)
			if err != nil {
				if id == newSlotID {
					return rescheduleFailed(err)
				}
				return err
			}
			locked[id] = slot
		}
		target := locked[newSlotID]
		if !canMoveTo(actor, current, target) {
			return ErrForbidden
		}

		b, err := c.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		status := c.initialStatus()
		if b.Status == models.StatusConfirmed && target.MentorID == b.MentorID {
			status = models.StatusConfirmed
		}
		if err := c.release(ctx, tx, b, actor); err != nil {
			return err
		}

		if err := c.checkBookable(ctx, tx, target, b.RequesterID); err != nil {
			return rescheduleFailed(err)
		}

		next := newBooking(target, b.RequesterID, status)
		next.Notes = b.Notes
		next.PaymentRef = b.PaymentRef
		next.RescheduledFromID = &b.ID
		if err := c.reserve(ctx, tx, target, next); err != nil {
			return rescheduleFailed(err)
		}

		old, booking = b, next
		return nil
	})
	if err != nil {
		return nil, nil, classify("reschedule booking", err)
	}
	return old, booking, nil
}

// canMoveTo limits a mentor to moving bookings onto their own calendar.
// The requester and admins may pick any slot.
func canMoveTo(actor models.Actor, b *models.Booking, target *models.AvailabilitySlot) bool {
	return actor.IsAdmin() || actor.ID == b.RequesterID || actor.ID == target.MentorID
}

// lockOrder returns slot ids in ascending byte order so concurrent
// reschedules between the same two slots lock them identically.
func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}

func (c *bookingCoordinator) Confirm(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	booking, changed, err := c.confirm(ctx, bookingID, actor, "")
	c.opts.Metrics.RecordBookingOperation(ctx, "confirm", outcome(err))
	if err != nil {
		return nil, err
	}
	if changed {
		c.confirmed(ctx, booking, actor)
	}
	return booking, nil
}

// ConfirmPayment confirms a pending booking on behalf of the payment system.
// Replaying the same payment reference is a no-op.
func (c *bookingCoordinator) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*models.Booking, error) {
	booking, changed, err := c.confirm(ctx, bookingID, models.SystemActor, paymentRef)
	c.opts.Metrics.RecordBookingOperation(ctx, "confirm_payment", outcome(err))
	if err != nil {
		return nil, err
	}
	if changed {
		c.confirmed(ctx, booking, models.SystemActor)
	}
	return booking, nil
}

func (c *bookingCoordinator) confirmed(ctx context.Context, booking *models.Booking, actor models.Actor) {
	c.opts.Logger.Info("booking confirmed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("confirmed_by", actor.ID),
		zap.String("payment_ref", booking.PaymentRef),
	)
	c.opts.publish(ctx, bookingEvent(events.BookingConfirmed, booking, c.opts.Now()))
}

func (c *bookingCoordinator) confirm(ctx context.Context, bookingID uuid.UUID, actor models.Actor, paymentRef string) (*models.Booking, bool, error) {
	ctx, cancel := c.opts.operationContext(ctx)
	defer cancel()

	var (
		booking *models.Booking
		changed bool
	)
	err := c.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		b, err := c.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !canModerate(actor, b) {
			return ErrForbidden
		}

		if paymentRef != "" && b.Status == models.StatusConfirmed && b.PaymentRef == paymentRef {
			booking = b
			return nil
		}
		if !b.Status.CanTransitionTo(models.StatusConfirmed) {
			return ErrInvalidTransition
		}

		b.Status = models.StatusConfirmed
		if paymentRef != "" {
			b.PaymentRef = paymentRef
		}
		ok, err := c.bookings.UpdateStatus(ctx, tx, b, models.StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		booking, changed = b, true
		return nil
	})
	if err != nil {
		return nil, false, classify("confirm booking", err)
	}
	return booking, changed, nil
}

func (c *bookingCoordinator) Complete(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	booking, err := c.complete(ctx, bookingID, actor, c.opts.Now())
	c.opts.Metrics.RecordBookingOperation(ctx, "complete", outcome(err))
	if err != nil {
		return nil, err
	}
	c.completed(ctx, booking, actor)
	return booking, nil
}

func (c *bookingCoordinator) completed(ctx context.Context, booking *models.Booking, actor models.Actor) {
	c.opts.Logger.Info("booking completed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", booking.SlotID.String()),
		zap.String("completed_by", actor.ID),
	)
	c.opts.publish(ctx, bookingEvent(events.BookingCompleted, booking, c.opts.Now()))
}

// complete moves a confirmed booking whose session has started to completed
// and frees its unit of capacity.
func (c *bookingCoordinator) complete(ctx context.Context, bookingID uuid.UUID, actor models.Actor, now time.Time) (*models.Booking, error) {
	current, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canModerate(actor, current) {
		return nil, ErrForbidden
	}

	ctx, cancel := c.opts.operationContext(ctx)
	defer cancel()

	var booking *models.Booking
	err = c.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if _, err := c.lockSlot(ctx, tx, current.SlotID); err != nil {
			return err
		}
		b, err := c.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(models.StatusCompleted) || now.Before(b.ScheduledAt) {
			return ErrInvalidTransition
		}

		b.Status = models.StatusCompleted
		ok, err := c.bookings.UpdateStatus(ctx, tx, b, models.StatusConfirmed)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := c.slots.DecrementBookings(ctx, tx, b.SlotID); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, classify("complete booking", err)
	}
	return booking, nil
}

// CompleteDue completes up to limit confirmed bookings whose session ended
// by now. Bookings that changed state concurrently are skipped.
func (c *bookingCoordinator) CompleteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := c.bookings.FindDueForCompletion(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("find due bookings: %w", err)
	}

	var (
		done int
		errs []error
	)
	for i := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		booking, err := c.complete(ctx, due[i].ID, models.SystemActor, now)
		c.opts.Metrics.RecordBookingOperation(ctx, "complete_due", outcome(err))
		if err != nil {
			if !IsBusinessError(err) {
				errs = append(errs, fmt.Errorf("booking %s: %w", due[i].ID, err))
			}
			continue
		}
		c.completed(ctx, booking, models.SystemActor)
		done++
	}
	return done, errors.Join(errs...)
}

func (c *bookingCoordinator) GetBooking(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	b, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, b) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (c *bookingCoordinator) ListForRequester(ctx context.Context, requesterID string, q ListQuery) (Page[models.Booking], error) {
	q = q.normalize()
	items, total, err := c.bookings.ListByRequester(ctx, requesterID, repository.PageRequest{Offset: q.offset(), Limit: q.Limit})
	if err != nil {
		return Page[models.Booking]{}, fmt.Errorf("list requester bookings: %w", err)
	}
	return bookingPage(items, total, q), nil
}

func (c *bookingCoordinator) ListForMentor(ctx context.Context, mentorID string, q ListQuery) (Page[models.Booking], error) {
	q = q.normalize()
	items, total, err := c.bookings.ListByMentor(ctx, mentorID, repository.PageRequest{Offset: q.offset(), Limit: q.Limit})
	if err != nil {
		return Page[models.Booking]{}, fmt.Errorf("list mentor bookings: %w", err)
	}
	return bookingPage(items, total, q), nil
}

func bookingPage(items []models.Booking, total int64, q ListQuery) Page[models.Booking] {
	if items == nil {
		items = []models.Booking{}
	}
	return Page[models.Booking]{Items: items, Page: q.Page, Limit: q.Limit, Total: total}
}

func bookingEvent(t events.Type, b *models.Booking, at time.Time) events.Event {
	return events.New(t, b.MentorID, b.SlotID, at).
		WithBooking(b.ID, b.RequesterID).
		WithData(b)
}
