package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/services"
)

type AvailabilityService interface {
	Check(ctx context.Context, key domain.SlotKey, requested int) (services.Availability, error)
	ListSlots(ctx context.Context, activityID uuid.UUID, from, to string) (services.SlotListing, error)
}

type AvailabilityHandler struct {
	ledger   AvailabilityService
	bookings BookingService
	now      func() time.Time
}

func NewAvailabilityHandler(ledger AvailabilityService, bookings BookingService) *AvailabilityHandler {
	return &AvailabilityHandler{ledger: ledger, bookings: bookings, now: time.Now}
}

// RegisterRoutes mounts the public reads on g. Slot cancellation goes
// through auth and the admin role.
func (h *AvailabilityHandler) RegisterRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	g.GET("/:id/availability", h.CheckAvailability)
	g.GET("/:id/slots", h.ListSlots)
	g.POST("/:id/slots/cancel", h.CancelSlot, auth, RequireRole(RoleAdmin))
}

func activityID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid activity id")
	}
	return id, nil
}

func (h *AvailabilityHandler) CheckAvailability(c echo.Context) error {
	id, err := activityID(c)
	if err != nil {
		return err
	}

	participants := 1
	if raw := c.QueryParam("participants"); raw != "" {
		participants, err = strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "participants must be a number")
		}
	}

	key := domain.SlotKey{ActivityID: id, Date: c.QueryParam("date"), TimeSlot: c.QueryParam("time")}
	avail, err := h.ledger.Check(c.Request().Context(), key, participants)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, avail)
}

func (h *AvailabilityHandler) ListSlots(c echo.Context) error {
	id, err := activityID(c)
	if err != nil {
		return err
	}

	from := c.QueryParam("from")
	if from == "" {
		from = h.now().UTC().Format(domain.DateLayout)
	}
	to := c.QueryParam("to")
	if to == "" {
		start, err := time.Parse(domain.DateLayout, from)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be formatted as YYYY-MM-DD")
		}
		to = start.AddDate(0, 0, 6).Format(domain.DateLayout)
	}

	listing, err := h.ledger.ListSlots(c.Request().Context(), id, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listing)
}

type cancelSlotRequest struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
	Weather  bool   `json:"weather"`
}

func (h *AvailabilityHandler) CancelSlot(c echo.Context) error {
	id, err := activityID(c)
	if err != nil {
		return err
	}

	var req cancelSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	weather := domain.WeatherClear
	if req.Weather {
		weather = domain.WeatherCancelled
	}

	key := domain.SlotKey{ActivityID: id, Date: req.Date, TimeSlot: req.TimeSlot}
	res, err := h.bookings.CancelSlot(c.Request().Context(), key, weather, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
