package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/Eursukkul/mentorship-slots/internal/middleware"
	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// --- Mock AvailabilityManager ---

type mockAvailability struct {
	createFn func(ctx context.Context, mentorID string, in service.SlotInput) (*models.AvailabilitySlot, error)
	updateFn func(ctx context.Context, slotID uuid.UUID, mentorID string, changes service.SlotChanges) (*models.AvailabilitySlot, error)
	deleteFn func(ctx context.Context, slotID uuid.UUID, mentorID string) error
	getFn    func(ctx context.Context, slotID uuid.UUID) (*models.AvailabilitySlot, error)
	listFn   func(ctx context.Context, mentorID string, q service.ListQuery) (service.Page[models.AvailabilitySlot], error)
}

func (m *mockAvailability) CreateSlot(ctx context.Context, mentorID string, in service.SlotInput) (*models.AvailabilitySlot, error) {
	return m.createFn(ctx, mentorID, in)
}
func (m *mockAvailability) UpdateSlot(ctx context.Context, slotID uuid.UUID, mentorID string, changes service.SlotChanges) (*models.AvailabilitySlot, error) {
	return m.updateFn(ctx, slotID, mentorID, changes)
}
func (m *mockAvailability) DeleteSlot(ctx context.Context, slotID uuid.UUID, mentorID string) error {
	return m.deleteFn(ctx, slotID, mentorID)
}
func (m *mockAvailability) GetSlot(ctx context.Context, slotID uuid.UUID) (*models.AvailabilitySlot, error) {
	return m.getFn(ctx, slotID)
}
func (m *mockAvailability) ListAvailability(ctx context.Context, mentorID string, q service.ListQuery) (service.Page[models.AvailabilitySlot], error) {
	return m.listFn(ctx, mentorID, q)
}

// --- Mock BookingCoordinator ---

type mockBookings struct {
	bookFn           func(ctx context.Context, slotID uuid.UUID, requesterID string, req service.BookRequest) (*models.Booking, error)
	cancelFn         func(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	rescheduleFn     func(ctx context.Context, bookingID uuid.UUID, actor models.Actor, newSlotID uuid.UUID) (*models.Booking, error)
	confirmFn        func(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	confirmPaymentFn func(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*models.Booking, error)
	completeFn       func(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	completeDueFn    func(ctx context.Context, now time.Time, limit int) (int, error)
	getFn            func(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error)
	listRequesterFn  func(ctx context.Context, requesterID string, q service.ListQuery) (service.Page[models.Booking], error)
	listMentorFn     func(ctx context.Context, mentorID string, q service.ListQuery) (service.Page[models.Booking], error)
}

func (m *mockBookings) Book(ctx context.Context, slotID uuid.UUID, requesterID string, req service.BookRequest) (*models.Booking, error) {
	return m.bookFn(ctx, slotID, requesterID, req)
}
func (m *mockBookings) Cancel(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	return m.cancelFn(ctx, bookingID, actor)
}
func (m *mockBookings) Reschedule(ctx context.Context, bookingID uuid.UUID, actor models.Actor, newSlotID uuid.UUID) (*models.Booking, error) {
	return m.rescheduleFn(ctx, bookingID, actor, newSlotID)
}
func (m *mockBookings) Confirm(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	return m.confirmFn(ctx, bookingID, actor)
}
func (m *mockBookings) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*models.Booking, error) {
	return m.confirmPaymentFn(ctx, bookingID, paymentRef)
}
func (m *mockBookings) Complete(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	return m.completeFn(ctx, bookingID, actor)
}
func (m *mockBookings) CompleteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	return m.completeDueFn(ctx, now, limit)
}
func (m *mockBookings) GetBooking(ctx context.Context, bookingID uuid.UUID, actor models.Actor) (*models.Booking, error) {
	return m.getFn(ctx, bookingID, actor)
}
func (m *mockBookings) ListForRequester(ctx context.Context, requesterID string, q service.ListQuery) (service.Page[models.Booking], error) {
	return m.listRequesterFn(ctx, requesterID, q)
}
func (m *mockBookings) ListForMentor(ctx context.Context, mentorID string, q service.ListQuery) (service.Page[models.Booking], error) {
	return m.listMentorFn(ctx, mentorID, q)
}

// --- Helpers ---

var (
	nurse  = models.Actor{ID: "nurse-1", Role: models.RoleNurse}
	mentor = models.Actor{ID: "mentor-1", Role: models.RoleMentor}
	admin  = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
)

func newContext(method, target, body string, actor *models.Actor) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if actor != nil {
		middleware.WithActor(c, *actor)
	}
	return c, rec
}

// newRecorder serves a request through e so route-level middleware runs.
func newRecorder(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func httpCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}
