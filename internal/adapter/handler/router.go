package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Bookings     BookingService
	Availability AvailabilityService
	Audit        AuditService
}

func NewServer(log logrus.FieldLogger, jwtSecret []byte, svc Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler(log)

	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latency":   v.Latency.String(),
				"remote_ip": v.RemoteIP,
			}).Info("request")
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "activity-booking"})
	})

	auth := JWTAuth(jwtSecret)
	api := e.Group("/api/v1")

	NewBookingHandler(svc.Bookings).RegisterRoutes(api.Group("/bookings", auth))
	NewAvailabilityHandler(svc.Availability, svc.Bookings).RegisterRoutes(api.Group("/activities"), auth)
	NewAuditHandler(svc.Audit).RegisterRoutes(api.Group("/admin/audit-logs", auth, RequireRole(RoleAdmin)))

	return e
}
