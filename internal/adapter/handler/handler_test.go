package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/services"
)

var testSecret = []byte("handler-test-secret")

// --- Mock services ---

type mockBookingService struct {
	createFn         func(ctx context.Context, req services.CreateBookingRequest) (*services.CreateBookingResponse, error)
	confirmFn        func(ctx context.Context, req services.ConfirmBookingRequest) (*services.ConfirmBookingResponse, error)
	paymentFailureFn func(ctx context.Context, reference, reason, actorID string) error
	cancelFn         func(ctx context.Context, req services.CancelBookingRequest) (*services.CancelBookingResponse, error)
	getFn            func(ctx context.Context, reference string, requester services.Requester) (*services.BookingView, error)
	listFn           func(ctx context.Context, customerID string, limit, offset int) ([]services.BookingView, error)
	paymentFn        func(ctx context.Context, req services.RecordPaymentRequest) (*services.RecordPaymentResponse, error)
	cancelSlotFn     func(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus, actorID string) (*services.CancelSlotResult, error)
}

func (m *mockBookingService) CreateBooking(ctx context.Context, req services.CreateBookingRequest) (*services.CreateBookingResponse, error) {
	return m.createFn(ctx, req)
}
func (m *mockBookingService) ConfirmBooking(ctx context.Context, req services.ConfirmBookingRequest) (*services.ConfirmBookingResponse, error) {
	return m.confirmFn(ctx, req)
}
func (m *mockBookingService) RecordPaymentFailure(ctx context.Context, reference, reason, actorID string) error {
	return m.paymentFailureFn(ctx, reference, reason, actorID)
}
func (m *mockBookingService) CancelBooking(ctx context.Context, req services.CancelBookingRequest) (*services.CancelBookingResponse, error) {
	return m.cancelFn(ctx, req)
}
func (m *mockBookingService) CompleteBooking(ctx context.Context, reference, actorID string) (*services.BookingView, error) {
	return &services.BookingView{BookingReference: reference, Status: string(domain.BookingCompleted)}, nil
}
func (m *mockBookingService) MarkNoShow(ctx context.Context, reference, actorID string) (*services.BookingView, error) {
	return &services.BookingView{BookingReference: reference, Status: string(domain.BookingNoShow)}, nil
}
func (m *mockBookingService) GetBooking(ctx context.Context, reference string, requester services.Requester) (*services.BookingView, error) {
	return m.getFn(ctx, reference, requester)
}
func (m *mockBookingService) ListCustomerBookings(ctx context.Context, customerID string, limit, offset int) ([]services.BookingView, error) {
	return m.listFn(ctx, customerID, limit, offset)
}
func (m *mockBookingService) RecordPayment(ctx context.Context, req services.RecordPaymentRequest) (*services.RecordPaymentResponse, error) {
	return m.paymentFn(ctx, req)
}
func (m *mockBookingService) CancelSlot(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus, actorID string) (*services.CancelSlotResult, error) {
	return m.cancelSlotFn(ctx, key, weather, actorID)
}

type mockAvailabilityService struct {
	checkFn func(ctx context.Context, key domain.SlotKey, requested int) (services.Availability, error)
	listFn  func(ctx context.Context, activityID uuid.UUID, from, to string) (services.SlotListing, error)
}

func (m *mockAvailabilityService) Check(ctx context.Context, key domain.SlotKey, requested int) (services.Availability, error) {
	return m.checkFn(ctx, key, requested)
}
func (m *mockAvailabilityService) ListSlots(ctx context.Context, activityID uuid.UUID, from, to string) (services.SlotListing, error) {
	return m.listFn(ctx, activityID, from, to)
}

type mockAuditService struct {
	recorded []domain.AuditEntry
	queryFn  func(ctx context.Context, filter domain.AuditFilter) (domain.AuditPage, error)
	exportFn func(ctx context.Context, filter domain.AuditFilter, w io.Writer) (int, error)
}

func (m *mockAuditService) Record(ctx context.Context, entry domain.AuditEntry) error {
	m.recorded = append(m.recorded, entry)
	return nil
}
func (m *mockAuditService) Query(ctx context.Context, filter domain.AuditFilter) (domain.AuditPage, error) {
	return m.queryFn(ctx, filter)
}
func (m *mockAuditService) Stats(ctx context.Context) (*domain.AuditStats, error) {
	return &domain.AuditStats{TotalLogs: 3}, nil
}
func (m *mockAuditService) ExportCSV(ctx context.Context, filter domain.AuditFilter, w io.Writer) (int, error) {
	return m.exportFn(ctx, filter, w)
}

// --- Helpers ---

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	claims := Claims{
		Role:  role,
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return raw
}

func newTestServer(svc Services) *echo.Echo {
	log, _ := test.NewNullLogger()
	if svc.Bookings == nil {
		svc.Bookings = &mockBookingService{}
	}
	if svc.Availability == nil {
		svc.Availability = &mockAvailabilityService{}
	}
	if svc.Audit == nil {
		svc.Audit = &mockAuditService{}
	}
	return NewServer(log, testSecret, svc)
}

func do(e *echo.Echo, method, target, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["message"]
}

// --- Tests ---

func TestHealth(t *testing.T) {
	e := newTestServer(Services{})
	rec := do(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCreateBooking_Success(t *testing.T) {
	var got services.CreateBookingRequest
	svc := &mockBookingService{
		createFn: func(ctx context.Context, req services.CreateBookingRequest) (*services.CreateBookingResponse, error) {
			got = req
			return &services.CreateBookingResponse{
				BookingReference: "BK-TEST0001",
				Status:           string(domain.BookingPending),
				Pricing:          services.PricingResponse{TotalAmount: "115.00", Currency: "EUR"},
			}, nil
		},
	}
	e := newTestServer(Services{Bookings: svc})

	body := `{"activity_id":"` + uuid.NewString() + `","date":"2026-11-01","time_slot":"09:00","adults":2,"customer_id":"spoofed"}`
	rec := do(e, http.MethodPost, "/api/v1/bookings", signToken(t, "user-1", "customer"), body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", got.CustomerID)
	assert.Equal(t, 2, got.Adults)

	var resp services.CreateBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BK-TEST0001", resp.BookingReference)
	assert.Equal(t, "115.00", resp.Pricing.TotalAmount)
}

func TestCreateBooking_CapacityConflict(t *testing.T) {
	svc := &mockBookingService{
		createFn: func(ctx context.Context, req services.CreateBookingRequest) (*services.CreateBookingResponse, error) {
			return nil, &domain.CapacityError{Requested: 3, SpotsLeft: 1}
		},
	}
	e := newTestServer(Services{Bookings: svc})

	rec := do(e, http.MethodPost, "/api/v1/bookings", signToken(t, "user-1", "customer"), `{"adults":3}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Not enough spots available. Only 1 spots left", message(t, rec))
}

func TestCreateBooking_InvalidBody(t *testing.T) {
	e := newTestServer(Services{})
	rec := do(e, http.MethodPost, "/api/v1/bookings", signToken(t, "user-1", "customer"), `{"adults":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", message(t, rec))
}

func TestBookings_RequireToken(t *testing.T) {
	e := newTestServer(Services{})

	rec := do(e, http.MethodGet, "/api/v1/bookings/BK-TEST0001", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/bookings/BK-TEST0001", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", message(t, rec))
}

func TestGetBooking_NotFound(t *testing.T) {
	svc := &mockBookingService{
		getFn: func(ctx context.Context, reference string, requester services.Requester) (*services.BookingView, error) {
			return nil, domain.NotFound(domain.ErrBookingNotFound)
		},
	}
	e := newTestServer(Services{Bookings: svc})

	rec := do(e, http.MethodGet, "/api/v1/bookings/BK-MISSING1", signToken(t, "user-1", "customer"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "booking not found", message(t, rec))
}

func TestConfirmBooking_RequiresAdmin(t *testing.T) {
	called := false
	svc := &mockBookingService{
		confirmFn: func(ctx context.Context, req services.ConfirmBookingRequest) (*services.ConfirmBookingResponse, error) {
			called = true
			assert.Equal(t, "BK-TEST0001", req.Reference)
			assert.Equal(t, "admin-1", req.ActorID)
			assert.Equal(t, "115.00", req.Amount)
			return &services.ConfirmBookingResponse{BookingReference: req.Reference, Status: string(domain.BookingConfirmed)}, nil
		},
	}
	e := newTestServer(Services{Bookings: svc})
	body := `{"amount":"115.00","method":"card","transaction_id":"tx-1"}`

	rec := do(e, http.MethodPost, "/api/v1/bookings/BK-TEST0001/confirm", signToken(t, "user-1", "customer"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	rec = do(e, http.MethodPost, "/api/v1/bookings/BK-TEST0001/confirm", signToken(t, "admin-1", RoleAdmin), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRecordPaymentFailure(t *testing.T) {
	var gotReason, gotActor string
	svc := &mockBookingService{
		paymentFailureFn: func(ctx context.Context, reference, reason, actorID string) error {
			gotReason, gotActor = reason, actorID
			return nil
		},
	}
	e := newTestServer(Services{Bookings: svc})

	rec := do(e, http.MethodPost, "/api/v1/bookings/BK-TEST0001/payment-failure", signToken(t, "admin-1", RoleAdmin), `{"reason":"card declined"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "card declined", gotReason)
	assert.Equal(t, "admin-1", gotActor)
}

func TestCancelBooking_InvalidTransition(t *testing.T) {
	svc := &mockBookingService{
		cancelFn: func(ctx context.Context, req services.CancelBookingRequest) (*services.CancelBookingResponse, error) {
			assert.Equal(t, "changed plans", req.Reason)
			return nil, &domain.InvalidTransitionError{From: domain.BookingCompleted, To: domain.BookingCancelled}
		},
	}
	e := newTestServer(Services{Bookings: svc})

	rec := do(e, http.MethodPost, "/api/v1/bookings/BK-TEST0001/cancel", signToken(t, "user-1", "customer"), `{"reason":"changed plans"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cannot move booking from completed to cancelled", message(t, rec))
}

func TestCheckAvailability(t *testing.T) {
	activity := uuid.New()
	var gotKey domain.SlotKey
	var gotRequested int
	ledger := &mockAvailabilityService{
		checkFn: func(ctx context.Context, key domain.SlotKey, requested int) (services.Availability, error) {
			gotKey, gotRequested = key, requested
			return services.Availability{Available: true, SpotsLeft: 6, Status: domain.SlotAvailable}, nil
		},
	}
	e := newTestServer(Services{Availability: ledger})

	rec := do(e, http.MethodGet, "/api/v1/activities/"+activity.String()+"/availability?date=2026-11-01&time=09:00&participants=4", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SlotKey{ActivityID: activity, Date: "2026-11-01", TimeSlot: "09:00"}, gotKey)
	assert.Equal(t, 4, gotRequested)
	assert.Contains(t, rec.Body.String(), `"spots_left":6`)

	rec = do(e, http.MethodGet, "/api/v1/activities/"+activity.String()+"/availability?date=2026-11-01", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gotRequested)
}

func TestCheckAvailability_BadParams(t *testing.T) {
	e := newTestServer(Services{})

	tests := []struct {
		name   string
		target string
		msg    string
	}{
		{"bad activity id", "/api/v1/activities/nope/availability?date=2026-11-01", "invalid activity id"},
		{"bad participants", "/api/v1/activities/" + uuid.NewString() + "/availability?participants=two", "participants must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.target, "", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.msg, message(t, rec))
		})
	}
}

func TestListSlots_DefaultWindow(t *testing.T) {
	var gotFrom, gotTo string
	ledger := &mockAvailabilityService{
		listFn: func(ctx context.Context, activityID uuid.UUID, from, to string) (services.SlotListing, error) {
			gotFrom, gotTo = from, to
			return services.SlotListing{Slots: []domain.Slot{}}, nil
		},
	}
	e := newTestServer(Services{Availability: ledger})

	rec := do(e, http.MethodGet, "/api/v1/activities/"+uuid.NewString()+"/slots?from=2026-11-01", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-11-01", gotFrom)
	assert.Equal(t, "2026-11-07", gotTo)
}

func TestCancelSlot(t *testing.T) {
	activity := uuid.New()
	var gotWeather domain.WeatherStatus
	svc := &mockBookingService{
		cancelSlotFn: func(ctx context.Context, key domain.SlotKey, weather domain.WeatherStatus, actorID string) (*services.CancelSlotResult, error) {
			gotWeather = weather
			assert.Equal(t, activity, key.ActivityID)
			assert.Equal(t, "admin-1", actorID)
			return &services.CancelSlotResult{Released: 2, CancelledBookings: []string{"BK-AAAA0001"}}, nil
		},
	}
	e := newTestServer(Services{Bookings: svc})
	target := "/api/v1/activities/" + activity.String() + "/slots/cancel"
	body := `{"date":"2026-11-01","time_slot":"09:00","weather":true}`

	rec := do(e, http.MethodPost, target, "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, target, signToken(t, "user-1", "customer"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodPost, target, signToken(t, "admin-1", RoleAdmin), body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.WeatherCancelled, gotWeather)
	assert.Contains(t, rec.Body.String(), "BK-AAAA0001")
}

func TestAuditLogs_List(t *testing.T) {
	var got domain.AuditFilter
	audit := &mockAuditService{
		queryFn: func(ctx context.Context, filter domain.AuditFilter) (domain.AuditPage, error) {
			got = filter
			return domain.AuditPage{}, nil
		},
	}
	e := newTestServer(Services{Audit: audit})

	rec := do(e, http.MethodGet, "/api/v1/admin/audit-logs?severity=error&category=booking&end_date=2026-11-01&limit=20&offset=40", signToken(t, "admin-1", RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SeverityError, got.Severity)
	assert.Equal(t, domain.CategoryBooking, got.Category)
	assert.Equal(t, 20, got.Limit)
	assert.Equal(t, 40, got.Offset)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, time.Date(2026, 11, 1, 23, 59, 59, 999999999, time.UTC), *got.EndDate)
	assert.Nil(t, got.StartDate)
}

func TestAuditLogs_BadFilter(t *testing.T) {
	e := newTestServer(Services{})
	token := signToken(t, "admin-1", RoleAdmin)

	for _, q := range []string{"severity=loud", "category=weather", "start_date=yesterday", "limit=ten"} {
		t.Run(q, func(t *testing.T) {
			rec := do(e, http.MethodGet, "/api/v1/admin/audit-logs?"+q, token, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuditLogs_AdminOnly(t *testing.T) {
	e := newTestServer(Services{})
	rec := do(e, http.MethodGet, "/api/v1/admin/audit-logs/stats", signToken(t, "user-1", "customer"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/admin/audit-logs/stats", signToken(t, "admin-1", RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_logs":3`)
}

func TestAuditLogs_Export(t *testing.T) {
	audit := &mockAuditService{
		exportFn: func(ctx context.Context, filter domain.AuditFilter, w io.Writer) (int, error) {
			_, err := io.WriteString(w, "id,action\n1,CREATE_BOOKING\n2,CANCEL_BOOKING\n")
			return 2, err
		},
	}
	e := newTestServer(Services{Audit: audit})

	rec := do(e, http.MethodGet, "/api/v1/admin/audit-logs/export", signToken(t, "admin-1", RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `attachment; filename="audit-logs-`)
	assert.Contains(t, rec.Body.String(), "2,CANCEL_BOOKING")

	require.Len(t, audit.recorded, 1)
	entry := audit.recorded[0]
	assert.Equal(t, domain.ActionExportAuditLogs, entry.Action)
	assert.Equal(t, "admin-1", entry.ActorID)
	assert.Equal(t, "admin-1@example.com", entry.ActorEmail)
	assert.Equal(t, "2", entry.Details["rows"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", domain.Validation("adults must be at least 1"), http.StatusBadRequest, "adults must be at least 1"},
		{"not found sentinel", domain.ErrActivityNotFound, http.StatusNotFound, "activity not found"},
		{"slot cancelled", &domain.CapacityError{Cancelled: true}, http.StatusConflict, "This time slot has been cancelled"},
		{"capacity", &domain.CapacityError{Requested: 5, SpotsLeft: 0}, http.StatusConflict, "Not enough spots available. Only 0 spots left"},
		{"stale", domain.ErrStaleBooking, http.StatusConflict, "booking was modified concurrently"},
		{"payment", domain.NewError(domain.KindPayment, "amount does not match total", nil), http.StatusPaymentRequired, "amount does not match total"},
		{"echo error", echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token"), http.StatusUnauthorized, "missing bearer token"},
		{"unclassified", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable, "service temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := StatusFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, raw)
	assert.Error(t, err)

	raw, err = jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, raw)
	assert.Error(t, err)
}

func TestGetBooking_PassesRequester(t *testing.T) {
	var got services.Requester
	svc := &mockBookingService{
		getFn: func(ctx context.Context, reference string, requester services.Requester) (*services.BookingView, error) {
			got = requester
			if !requester.Admin && requester.UserID != "user-1" {
				return nil, domain.NotFound(domain.ErrBookingNotFound)
			}
			return &services.BookingView{BookingReference: reference}, nil
		},
	}
	e := newTestServer(Services{Bookings: svc})

	rec := do(e, http.MethodGet, "/api/v1/bookings/MA-202611-ABC123", signToken(t, "user-2", "customer"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, services.Requester{UserID: "user-2"}, got)

	rec = do(e, http.MethodGet, "/api/v1/bookings/MA-202611-ABC123", signToken(t, "admin-1", RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.Requester{UserID: "admin-1", Admin: true}, got)
}

func TestCancelBooking_MarksAdminRequests(t *testing.T) {
	var got services.CancelBookingRequest
	svc := &mockBookingService{
		cancelFn: func(ctx context.Context, req services.CancelBookingRequest) (*services.CancelBookingResponse, error) {
			got = req
			return &services.CancelBookingResponse{BookingReference: req.Reference, Status: "cancelled", RefundAmount: "0.00"}, nil
		},
	}
	e := newTestServer(Services{Bookings: svc})

	rec := do(e, http.MethodPost, "/api/v1/bookings/MA-202611-ABC123/cancel", signToken(t, "user-1", "customer"), `{"admin":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", got.ActorID)
	assert.False(t, got.Admin, "admin flag only comes from the token role")

	rec = do(e, http.MethodPost, "/api/v1/bookings/MA-202611-ABC123/cancel", signToken(t, "admin-1", RoleAdmin), `{"reason":"storm"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.Admin)
	assert.Equal(t, "storm", got.Reason)
}

func TestListBookings_ScopedToCaller(t *testing.T) {
	var gotCustomer string
	var gotLimit, gotOffset int
	svc := &mockBookingService{
		listFn: func(ctx context.Context, customerID string, limit, offset int) ([]services.BookingView, error) {
			gotCustomer, gotLimit, gotOffset = customerID, limit, offset
			return []services.BookingView{{BookingReference: "MA-202611-ABC123"}}, nil
		},
	}
	e := newTestServer(Services{Bookings: svc})

	rec := do(e, http.MethodGet, "/api/v1/bookings?limit=5&offset=10", signToken(t, "user-1", "customer"), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotCustomer)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, 10, gotOffset)
	assert.Contains(t, rec.Body.String(), "MA-202611-ABC123")

	rec = do(e, http.MethodGet, "/api/v1/bookings?limit=abc", signToken(t, "user-1", "customer"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit must be a number", message(t, rec))
}

func TestRecordPayment_AdminOnly(t *testing.T) {
	var got services.RecordPaymentRequest
	svc := &mockBookingService{
		paymentFn: func(ctx context.Context, req services.RecordPaymentRequest) (*services.RecordPaymentResponse, error) {
			got = req
			return &services.RecordPaymentResponse{BookingReference: req.Reference, PaidAmount: "115.00", Outstanding: "0.00"}, nil
		},
	}
	e := newTestServer(Services{Bookings: svc})
	body := `{"amount":"85.00","method":"sepa"}`

	rec := do(e, http.MethodPost, "/api/v1/bookings/MA-202611-ABC123/payments", signToken(t, "user-1", "customer"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/bookings/MA-202611-ABC123/payments", signToken(t, "admin-1", RoleAdmin), body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "MA-202611-ABC123", got.Reference)
	assert.Equal(t, "admin-1", got.ActorID)
	assert.Equal(t, "85.00", got.Amount)
	assert.Contains(t, rec.Body.String(), `"outstanding":"0.00"`)
}
