package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/events"
	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for PostgreSQL. Transactions are
// serialized and roll back by restoring a snapshot.
type memStore struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex

	slots    map[uuid.UUID]models.AvailabilitySlot
	bookings map[uuid.UUID]models.Booking
	seq      int

	// lockErr is returned by the next row lock, then cleared.
	lockErr error
	// failAfterIncrement makes the transaction fail once the counter moved.
	failAfterIncrement error
}

var (
	_ repository.SlotRepository    = (*fakeSlots)(nil)
	_ repository.BookingRepository = (*fakeBookings)(nil)
	_ repository.Transactor        = (*memStore)(nil)
)

var epoch = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func newMemStore() *memStore {
	return &memStore{
		slots:    make(map[uuid.UUID]models.AvailabilitySlot),
		bookings: make(map[uuid.UUID]models.Booking),
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.dataMu.Lock()
	slots := make(map[uuid.UUID]models.AvailabilitySlot, len(s.slots))
	for k, v := range s.slots {
		slots[k] = v
	}
	bookings := make(map[uuid.UUID]models.Booking, len(s.bookings))
	for k, v := range s.bookings {
		bookings[k] = v
	}
	s.dataMu.Unlock()

	if err := fn(nil); err != nil {
		s.dataMu.Lock()
		s.slots, s.bookings = slots, bookings
		s.dataMu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) takeLockErr() error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	err := s.lockErr
	s.lockErr = nil
	return err
}

func (s *memStore) slot(id uuid.UUID) models.AvailabilitySlot {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.slots[id]
}

func (s *memStore) booking(id uuid.UUID) models.Booking {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.bookings[id]
}

// liveCount counts pending and confirmed bookings on a slot.
func (s *memStore) liveCount(slotID uuid.UUID) int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	n := 0
	for _, b := range s.bookings {
		if b.SlotID == slotID && b.Status.IsLive() {
			n++
		}
	}
	return n
}

func (s *memStore) bookingCount() int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return len(s.bookings)
}

func (s *memStore) putSlot(slot models.AvailabilitySlot) models.AvailabilitySlot {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	if slot.Status == "" {
		slot.Status = models.SlotActive
	}
	s.slots[slot.ID] = slot
	return slot
}

func (s *memStore) nextStamp() time.Time {
	s.seq++
	return epoch.Add(time.Duration(s.seq) * time.Millisecond)
}

type fakeSlots struct{ s *memStore }

func (f *fakeSlots) Create(_ context.Context, _ *gorm.DB, slot *models.AvailabilitySlot) error {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	slot.CreatedAt = f.s.nextStamp()
	slot.UpdatedAt = slot.CreatedAt
	f.s.slots[slot.ID] = *slot
	return nil
}

func (f *fakeSlots) FindByID(_ context.Context, id uuid.UUID) (*models.AvailabilitySlot, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	slot, ok := f.s.slots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &slot, nil
}

func (f *fakeSlots) FindByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*models.AvailabilitySlot, error) {
	if err := f.s.takeLockErr(); err != nil {
		return nil, err
	}
	return f.FindByID(ctx, id)
}

func (f *fakeSlots) FindActiveInRange(_ context.Context, _ *gorm.DB, mentorID string, start, end time.Time) ([]models.AvailabilitySlot, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	var out []models.AvailabilitySlot
	for _, slot := range f.s.slots {
		if slot.MentorID == mentorID && slot.IsActive() && slot.Overlaps(start, end) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f *fakeSlots) ListByMentor(_ context.Context, mentorID string, filter repository.SlotFilter) ([]models.AvailabilitySlot, int64, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	var all []models.AvailabilitySlot
	for _, slot := range f.s.slots {
		if slot.MentorID != mentorID {
			continue
		}
		if filter.UpcomingOnly && (slot.StartAt.Before(filter.Now) || !slot.IsActive()) {
			continue
		}
		all = append(all, slot)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartAt.Equal(all[j].StartAt) {
			return all[i].StartAt.Before(all[j].StartAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return paginate(all, filter.Offset, filter.Limit), int64(len(all)), nil
}

func (f *fakeSlots) UpdateUnbooked(_ context.Context, _ *gorm.DB, slot *models.AvailabilitySlot) (bool, error) {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	stored, ok := f.s.slots[slot.ID]
	if !ok || stored.CurrentBookings != 0 {
		return false, nil
	}
	stored.StartAt, stored.EndAt, stored.MaxBookings = slot.StartAt, slot.EndAt, slot.MaxBookings
	stored.Title, stored.Description, stored.Price = slot.Title, slot.Description, slot.Price
	stored.SessionType, stored.Specializations, stored.MeetingLink = slot.SessionType, slot.Specializations, slot.MeetingLink
	f.s.slots[slot.ID] = stored
	return true, nil
}

func (f *fakeSlots) DeleteUnbooked(_ context.Context, _ *gorm.DB, id uuid.UUID) (bool, error) {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	stored, ok := f.s.slots[id]
	if !ok || stored.CurrentBookings != 0 {
		return false, nil
	}
	delete(f.s.slots, id)
	return true, nil
}

func (f *fakeSlots) Withdraw(_ context.Context, _ *gorm.DB, id uuid.UUID) (bool, error) {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	stored, ok := f.s.slots[id]
	if !ok || stored.CurrentBookings != 0 {
		return false, nil
	}
	stored.Status = models.SlotWithdrawn
	f.s.slots[id] = stored
	return true, nil
}

func (f *fakeSlots) IncrementBookings(_ context.Context, _ *gorm.DB, id uuid.UUID) (bool, error) {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	stored, ok := f.s.slots[id]
	if !ok || !stored.IsActive() || stored.CurrentBookings >= stored.MaxBookings {
		return false, nil
	}
	stored.CurrentBookings++
	f.s.slots[id] = stored
	if err := f.s.failAfterIncrement; err != nil {
		f.s.failAfterIncrement = nil
		return false, err
	}
	return true, nil
}

func (f *fakeSlots) DecrementBookings(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	stored, ok := f.s.slots[id]
	if !ok {
		return nil
	}
	if stored.CurrentBookings > 0 {
		stored.CurrentBookings--
	}
	f.s.slots[id] = stored
	return nil
}

func (f *fakeSlots) LockMentor(context.Context, *gorm.DB, string) error {
	return nil
}

type fakeBookings struct{ s *memStore }

func (f *fakeBookings) Create(_ context.Context, _ *gorm.DB, b *models.Booking) error {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	if b.Status.IsLive() {
		for _, other := range f.s.bookings {
			if other.SlotID == b.SlotID && other.RequesterID == b.RequesterID && other.Status.IsLive() {
				return &pgconn.PgError{Code: "23505"}
			}
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = f.s.nextStamp()
	b.UpdatedAt = b.CreatedAt
	f.s.bookings[b.ID] = *b
	return nil
}

func (f *fakeBookings) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	b, ok := f.s.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (f *fakeBookings) FindByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeBookings) FindActiveByRequesterAndSlot(_ context.Context, _ *gorm.DB, requesterID string, slotID uuid.UUID) (*models.Booking, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	for _, b := range f.s.bookings {
		if b.RequesterID == requesterID && b.SlotID == slotID && b.Status.IsLive() {
			return &b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBookings) CountActiveBySlot(_ context.Context, _ *gorm.DB, slotID uuid.UUID) (int64, error) {
	return int64(f.s.liveCount(slotID)), nil
}

func (f *fakeBookings) HasHistory(_ context.Context, _ *gorm.DB, slotID uuid.UUID) (bool, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	for _, b := range f.s.bookings {
		if b.SlotID == slotID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, _ *gorm.DB, b *models.Booking, from models.BookingStatus) (bool, error) {
	f.s.dataMu.Lock()
	defer f.s.dataMu.Unlock()
	stored, ok := f.s.bookings[b.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = b.Status
	stored.PaymentRef = b.PaymentRef
	stored.CancelledBy = b.CancelledBy
	stored.CancelledAt = b.CancelledAt
	f.s.bookings[b.ID] = stored
	return true, nil
}

func (f *fakeBookings) ListByRequester(_ context.Context, requesterID string, page repository.PageRequest) ([]models.Booking, int64, error) {
	return f.list(func(b models.Booking) bool { return b.RequesterID == requesterID }, page)
}

func (f *fakeBookings) ListByMentor(_ context.Context, mentorID string, page repository.PageRequest) ([]models.Booking, int64, error) {
	return f.list(func(b models.Booking) bool { return b.MentorID == mentorID }, page)
}

func (f *fakeBookings) list(match func(models.Booking) bool, page repository.PageRequest) ([]models.Booking, int64, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	var all []models.Booking
	for _, b := range f.s.bookings {
		if match(b) {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page.Offset, page.Limit), int64(len(all)), nil
}

func (f *fakeBookings) FindDueForCompletion(_ context.Context, before time.Time, limit int) ([]models.Booking, error) {
	f.s.dataMu.RLock()
	defer f.s.dataMu.RUnlock()
	var due []models.Booking
	for _, b := range f.s.bookings {
		if b.Status == models.StatusConfirmed && !b.EndsAt.After(before) {
			due = append(due, b)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EndsAt.Before(due[j].EndsAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// recordingSink keeps published events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *countingMetrics) record(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[op+":"+outcome]++
}

func (m *countingMetrics) RecordSlotOperation(_ context.Context, op, outcome string) {
	m.record("slot."+op, outcome)
}

func (m *countingMetrics) RecordBookingOperation(_ context.Context, op, outcome string) {
	m.record("booking."+op, outcome)
}

func (m *countingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[key]
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	store        *memStore
	sink         *recordingSink
	metrics      *countingMetrics
	clock        *clock
	availability AvailabilityManager
	bookings     BookingCoordinator
}

func newTestEnv(autoConfirm bool) *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:   store,
		sink:    &recordingSink{},
		metrics: &countingMetrics{},
		clock:   &clock{now: epoch},
	}
	opts := Options{
		Sink:             env.sink,
		Metrics:          env.metrics,
		OperationTimeout: time.Second,
		AutoConfirm:      autoConfirm,
		Now:              env.clock.Now,
	}
	slots, bookings := &fakeSlots{s: store}, &fakeBookings{s: store}
	env.availability = NewAvailabilityManager(store, slots, bookings, opts)
	env.bookings = NewBookingCoordinator(store, slots, bookings, opts)
	return env
}

// openSlot stores an active slot starting an hour from the env clock.
func (e *testEnv) openSlot(mentorID string, capacity int, offset time.Duration) models.AvailabilitySlot {
	start := e.clock.Now().Add(time.Hour + offset)
	return e.store.putSlot(models.AvailabilitySlot{
		MentorID:    mentorID,
		StartAt:     start,
		EndAt:       start.Add(45 * time.Minute),
		MaxBookings: capacity,
		Title:       "Wound care review",
		Price:       500,
	})
}
