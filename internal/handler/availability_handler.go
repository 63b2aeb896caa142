package handler

import (
	"net/http"
	"strconv"

	"github.com/Eursukkul/mentorship-slots/internal/dto"
	"github.com/Eursukkul/mentorship-slots/internal/middleware"
	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/service"
	"github.com/labstack/echo/v4"
)

type AvailabilityHandler struct {
	svc service.AvailabilityManager
}

func NewAvailabilityHandler(svc service.AvailabilityManager) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

func (h *AvailabilityHandler) RegisterRoutes(api *echo.Group) {
	mentorOnly := middleware.RequireRole(models.RoleMentor)

	api.POST("/slots", h.CreateSlot, mentorOnly)
	api.GET("/slots/:id", h.GetSlot)
	api.PATCH("/slots/:id", h.UpdateSlot, mentorOnly)
	api.DELETE("/slots/:id", h.DeleteSlot, mentorOnly)
	api.GET("/mentors/:mentorId/slots", h.ListAvailability)
}

func (h *AvailabilityHandler) CreateSlot(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	var req dto.CreateSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.StartAt.IsZero() || req.EndAt.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "start_at and end_at are required")
	}

	slot, err := h.svc.CreateSlot(c.Request().Context(), actor.ID, req.ToInput())
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, dto.ToSlotResponse(slot))
}

func (h *AvailabilityHandler) GetSlot(c echo.Context) error {
	id, err := uuidParam(c, "id", "slot")
	if err != nil {
		return err
	}

	slot, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToSlotResponse(slot))
}

func (h *AvailabilityHandler) UpdateSlot(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id", "slot")
	if err != nil {
		return err
	}

	var req dto.UpdateSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "no changes given")
	}

	slot, err := h.svc.UpdateSlot(c.Request().Context(), id, actor.ID, req.ToChanges())
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToSlotResponse(slot))
}

func (h *AvailabilityHandler) DeleteSlot(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id", "slot")
	if err != nil {
		return err
	}

	if err := h.svc.DeleteSlot(c.Request().Context(), id, actor.ID); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "slot deleted"})
}

// ListAvailability lists a mentor's slots. upcoming defaults to true.
func (h *AvailabilityHandler) ListAvailability(c echo.Context) error {
	mentorID := c.Param("mentorId")
	if mentorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mentor id")
	}

	q, err := listQuery(c)
	if err != nil {
		return err
	}
	q.UpcomingOnly = true
	if s := c.QueryParam("upcoming"); s != "" {
		upcoming, err := strconv.ParseBool(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid upcoming flag")
		}
		q.UpcomingOnly = upcoming
	}

	page, err := h.svc.ListAvailability(c.Request().Context(), mentorID, q)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToSlotPage(page))
}
