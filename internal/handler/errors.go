package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Eursukkul/mentorship-slots/internal/middleware"
	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// toHTTPError maps engine errors onto HTTP statuses. Unknown errors become a
// generic 500; the cause is kept for the error handler's log.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrBusy):
		return echo.NewHTTPError(http.StatusServiceUnavailable, service.ErrBusy.Error()).SetInternal(err)
	case errors.Is(err, service.ErrRescheduleFailed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSlotNotFound), errors.Is(err, service.ErrBookingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case service.IsBusinessError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func actorOf(c echo.Context) (models.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	return actor, nil
}

func uuidParam(c echo.Context, name, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+label+" id")
	}
	return id, nil
}

// listQuery reads page and limit. Range clamping happens in the service.
func listQuery(c echo.Context) (service.ListQuery, error) {
	var q service.ListQuery
	if s := c.QueryParam("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid page")
		}
		q.Page = n
	}
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		q.Limit = n
	}
	return q, nil
}
