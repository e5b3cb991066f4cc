package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/services"
)

const RoleAdmin = "admin"

// Claims carries the opaque user id in sub plus the role the identity
// provider assigned.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func ParseToken(secret []byte, raw string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// JWTAuth rejects requests without a valid bearer token and puts the
// caller's identity into the request context for audit entries.
func JWTAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(h, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			claims, err := ParseToken(secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			req := c.Request()
			ctx := services.WithRequestInfo(req.Context(), services.RequestInfo{
				UserID:    claims.Subject,
				Email:     claims.Email,
				Role:      claims.Role,
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			info, _ := services.RequestInfoFrom(c.Request().Context())
			if _, ok := allowed[info.Role]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

func actor(c echo.Context) string {
	info, _ := services.RequestInfoFrom(c.Request().Context())
	return info.UserID
}

func requester(c echo.Context) services.Requester {
	info, _ := services.RequestInfoFrom(c.Request().Context())
	return services.Requester{UserID: info.UserID, Admin: info.Role == RoleAdmin}
}

// ErrorHandler renders every error as {"message": ...} with a status
// derived from its classification.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := StatusFor(err)
		if code >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).Error("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"message": msg})
	}
}

func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	}

	var ce *domain.CapacityError
	if errors.As(err, &ce) {
		if ce.Cancelled {
			return http.StatusConflict, "This time slot has been cancelled"
		}
		return http.StatusConflict, fmt.Sprintf("Not enough spots available. Only %d spots left", ce.SpotsLeft)
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest, err.Error()
	case domain.KindNotFound:
		return http.StatusNotFound, err.Error()
	case domain.KindCapacity, domain.KindConflict, domain.KindInvalidTransition:
		return http.StatusConflict, err.Error()
	case domain.KindPayment:
		return http.StatusPaymentRequired, err.Error()
	default:
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	}
}
