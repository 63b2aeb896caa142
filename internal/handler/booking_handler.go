package handler

import (
	"net/http"

	"github.com/Eursukkul/mentorship-slots/internal/dto"
	"github.com/Eursukkul/mentorship-slots/internal/middleware"
	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type BookingHandler struct {
	svc service.BookingCoordinator
}

func NewBookingHandler(svc service.BookingCoordinator) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// RegisterRoutes mounts booking routes on api. limit guards the mutations
// that consume or release capacity.
func (h *BookingHandler) RegisterRoutes(api *echo.Group, limit echo.MiddlewareFunc) {
	moderators := middleware.RequireRole(models.RoleMentor, models.RoleAdmin)

	api.POST("/slots/:id/bookings", h.CreateBooking, middleware.RequireRole(models.RoleNurse), limit)
	api.GET("/bookings/:id", h.GetBooking)
	api.DELETE("/bookings/:id", h.CancelBooking, limit)
	api.POST("/bookings/:id/reschedule", h.RescheduleBooking, limit)
	api.POST("/bookings/:id/confirm", h.ConfirmBooking, moderators)
	api.POST("/bookings/:id/complete", h.CompleteBooking, moderators)
	api.GET("/me/bookings", h.ListMyBookings)
	api.GET("/mentors/:mentorId/bookings", h.ListMentorBookings)
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	slotID, err := uuidParam(c, "id", "slot")
	if err != nil {
		return err
	}

	var req dto.BookSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.svc.Book(c.Request().Context(), slotID, actor.ID, service.BookRequest{
		Notes:      req.Notes,
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id", "booking")
	if err != nil {
		return err
	}

	booking, err := h.svc.GetBooking(c.Request().Context(), id, actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) CancelBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id", "booking")
	if err != nil {
		return err
	}

	booking, err := h.svc.Cancel(c.Request().Context(), id, actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) RescheduleBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id", "booking")
	if err != nil {
		return err
	}

	var req dto.RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "slot_id is required")
	}

	booking, err := h.svc.Reschedule(c.Request().Context(), id, actor, slotID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id", "booking")
	if err != nil {
		return err
	}

	booking, err := h.svc.Confirm(c.Request().Context(), id, actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) CompleteBooking(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id", "booking")
	if err != nil {
		return err
	}

	booking, err := h.svc.Complete(c.Request().Context(), id, actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	q, err := listQuery(c)
	if err != nil {
		return err
	}

	page, err := h.svc.ListForRequester(c.Request().Context(), actor.ID, q)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingPage(page))
}

func (h *BookingHandler) ListMentorBookings(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	mentorID := c.Param("mentorId")
	if actor.ID != mentorID && !actor.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, service.ErrForbidden.Error())
	}
	q, err := listQuery(c)
	if err != nil {
		return err
	}

	page, err := h.svc.ListForMentor(c.Request().Context(), mentorID, q)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingPage(page))
}
