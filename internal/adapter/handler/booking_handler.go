package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/services"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req services.CreateBookingRequest) (*services.CreateBookingResponse, error)
	ConfirmBooking(ctx context.Context, req services.ConfirmBookingRequest) (*services.ConfirmBookingResponse, error)
	RecordPayment(ctx context.Context, req services.RecordPaymentRequest) (*services.RecordPaymentResponse, error)
	RecordPaymentFailure(ctx context.Context, reference, reason, actorID string) error
	CancelBooking(ctx context.Context, req services.CancelBookingRequest) (*services.CancelBookingResponse, error)
	CompleteBooking(ctx context.Context, reference, actorID string) (*services.BookingView, error)
	MarkNoShow(ctx context.Context, reference, actorID string) (*services.BookingView, error)
	GetBooking(ctx context.Context, reference string, requester services.Requester) (*services.BookingView, error)
	ListCustomerBookings(ctx context.Context, customerID string, limit, offset int) ([]services.BookingView, error)
	CancelSlot(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus, actorID string) (*services.CancelSlotResult, error)
}

type BookingHandler struct {
	svc BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// RegisterRoutes expects g to sit behind JWTAuth.
func (h *BookingHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateBooking)
	g.GET("", h.ListBookings)
	g.GET("/:ref", h.GetBooking)
	g.POST("/:ref/cancel", h.CancelBooking)

	admin := RequireRole(RoleAdmin)
	g.POST("/:ref/confirm", h.ConfirmBooking, admin)
	g.POST("/:ref/payments", h.RecordPayment, admin)
	g.POST("/:ref/payment-failure", h.RecordPaymentFailure, admin)
	g.POST("/:ref/complete", h.CompleteBooking, admin)
	g.POST("/:ref/no-show", h.MarkNoShow, admin)
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req services.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.CustomerID = actor(c)

	resp, err := h.svc.CreateBooking(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, resp)
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	view, err := h.svc.GetBooking(c.Request().Context(), c.Param("ref"), requester(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// ListBookings returns the caller's own bookings.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return err
	}
	offset, err := intParam(c, "offset")
	if err != nil {
		return err
	}

	views, err := h.svc.ListCustomerBookings(c.Request().Context(), actor(c), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"bookings": views})
}

func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	var req services.ConfirmBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Reference = c.Param("ref")
	req.ActorID = actor(c)

	resp, err := h.svc.ConfirmBooking(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) RecordPayment(c echo.Context) error {
	var req services.RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Reference = c.Param("ref")
	req.ActorID = actor(c)

	resp, err := h.svc.RecordPayment(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) RecordPaymentFailure(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.RecordPaymentFailure(c.Request().Context(), c.Param("ref"), req.Reason, actor(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BookingHandler) CancelBooking(c echo.Context) error {
	var req services.CancelBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Reference = c.Param("ref")
	req.ActorID = actor(c)
	req.Admin = requester(c).Admin

	resp, err := h.svc.CancelBooking(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) CompleteBooking(c echo.Context) error {
	view, err := h.svc.CompleteBooking(c.Request().Context(), c.Param("ref"), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *BookingHandler) MarkNoShow(c echo.Context) error {
	view, err := h.svc.MarkNoShow(c.Request().Context(), c.Param("ref"), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
