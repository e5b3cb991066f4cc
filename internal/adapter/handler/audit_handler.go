package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/services"
)

type AuditService interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	Query(ctx context.Context, filter domain.AuditFilter) (domain.AuditPage, error)
	Stats(ctx context.Context) (*domain.AuditStats, error)
	ExportCSV(ctx context.Context, filter domain.AuditFilter, w io.Writer) (int, error)
}

type AuditHandler struct {
	svc AuditService
	now func() time.Time
}

func NewAuditHandler(svc AuditService) *AuditHandler {
	return &AuditHandler{svc: svc, now: time.Now}
}

// RegisterRoutes expects g to sit behind JWTAuth and the admin role.
func (h *AuditHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListLogs)
	g.GET("/stats", h.Stats)
	g.GET("/export", h.Export)
}

func (h *AuditHandler) ListLogs(c echo.Context) error {
	filter, err := parseAuditFilter(c)
	if err != nil {
		return err
	}

	page, err := h.svc.Query(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *AuditHandler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AuditHandler) Export(c echo.Context) error {
	filter, err := parseAuditFilter(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var buf bytes.Buffer
	rows, err := h.svc.ExportCSV(ctx, filter, &buf)
	if err != nil {
		return err
	}

	// Exports leave a trace of their own; losing it must not fail the download.
	info, _ := services.RequestInfoFrom(ctx)
	_ = h.svc.Record(ctx, domain.AuditEntry{
		ActorID:    info.UserID,
		ActorEmail: info.Email,
		Action:     domain.ActionExportAuditLogs,
		Resource:   "audit_logs",
		Severity:   domain.SeverityInfo,
		Category:   domain.CategoryAdmin,
		Details:    domain.AuditDetails{"rows": strconv.Itoa(rows)},
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
	})

	name := fmt.Sprintf("audit-logs-%s.csv", h.now().UTC().Format(domain.DateLayout))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func parseAuditFilter(c echo.Context) (domain.AuditFilter, error) {
	f := domain.AuditFilter{
		UserID:   c.QueryParam("user_id"),
		Action:   domain.AuditAction(c.QueryParam("action")),
		Resource: c.QueryParam("resource"),
		Search:   c.QueryParam("search"),
	}

	if v := c.QueryParam("category"); v != "" {
		cat, err := domain.ParseAuditCategory(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Category = cat
	}
	if v := c.QueryParam("severity"); v != "" {
		sev, err := domain.ParseAuditSeverity(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Severity = sev
	}

	var err error
	if f.StartDate, err = parseDateParam(c, "start_date", false); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDateParam(c, "end_date", true); err != nil {
		return f, err
	}

	if f.Limit, err = intParam(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// parseDateParam accepts RFC 3339 timestamps or plain dates. A plain end
// date covers the whole day.
func parseDateParam(c echo.Context, name string, endOfDay bool) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a date or RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a number")
	}
	return n, nil
}
