package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	headerUserID          = "X-User-ID"
	headerSchedulerSecret = "X-Scheduler-Secret"

	userContextKey = "steward.user_id"
)

// requireUser extracts the owner identity from the X-User-ID header. The
// gateway in front of this service authenticates the owner and forwards
// the identity; requests arriving without one are rejected.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Request().Header.Get(headerUserID)
		if userID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
		}
		c.Set(userContextKey, userID)
		return next(c)
	}
}

// requireScheduler authorizes the heartbeat trigger with the shared
// scheduler secret. Owner credentials are deliberately not accepted here.
func (s *Server) requireScheduler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.SchedulerSecret == "" {
			return echo.NewHTTPError(http.StatusForbidden, "heartbeat endpoint is not enabled")
		}
		got := c.Request().Header.Get(headerSchedulerSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.config.SchedulerSecret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid scheduler secret")
		}
		return next(c)
	}
}

// requireOperator guards operator-facing read endpoints with the same
// shared secret the scheduler uses. When no secret is configured the
// server is a localhost dev instance and the endpoint stays open.
func (s *Server) requireOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.SchedulerSecret == "" {
			return next(c)
		}
		got := c.Request().Header.Get(headerSchedulerSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.config.SchedulerSecret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid operator secret")
		}
		return next(c)
	}
}

// userID returns the identity set by requireUser.
func userID(c echo.Context) string {
	id, _ := c.Get(userContextKey).(string)
	return id
}
