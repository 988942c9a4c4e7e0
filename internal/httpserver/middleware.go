package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/internal/session"
	"github.com/menta2k/smodf-client/internal/transport"
)

// ErrorResponse is the JSON error body, shaped like the backend's
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequireSession rejects API calls without a session marker
func (s *Server) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.cookies.Present(c.Request()) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		}
		return next(c)
	}
}

// Navigation is the reply for an allowed page path
type Navigation struct {
	Path   string            `json:"path"`
	Name   string            `json:"name,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Navigate runs the guard for the requested page path. Redirects are real
// 302s so a browser follows them.
func (s *Server) Navigate(c echo.Context) error {
	route := s.routes.Resolve(c.Request().URL.Path)
	decision := s.guard.Evaluate(route, s.cookies.Present(c.Request()))
	if s.metrics != nil {
		s.metrics.GuardDecision(decision)
	}
	if !decision.Allowed() {
		s.log.Debug("navigation redirected",
			logger.String("from", route.Path),
			logger.String("to", decision.Target))
		return c.Redirect(http.StatusFound, decision.Target)
	}
	return c.JSON(http.StatusOK, Navigation{Path: route.Path, Name: route.Name, Params: route.Params})
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Path(), "/metrics")
		},
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			s.log.Debug("request", fields...)
			return nil
		},
	})
}

// handleError maps error categories to status codes
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	var se *transport.StatusError
	switch {
	case errors.As(err, &he):
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	case errors.As(err, &se):
		status = se.Status
		if m := se.Message(); m != "" {
			msg = m
		}
	case errors.IsCategory(err, errors.CategoryValidation), errors.IsCategory(err, errors.CategoryImage):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryTransport):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", logger.String("path", c.Path()), logger.Error(err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorResponse{Error: msg})
}

// requestMarker adapts the cookie markers to one request so account
// operations can set and clear the browser session
type requestMarker struct {
	cookies *session.CookieMarkers
	w       http.ResponseWriter
	r       *http.Request
}

func (m requestMarker) Present() bool { return m.cookies.Present(m.r) }

func (m requestMarker) Token() (string, bool) { return m.cookies.Token(m.r) }

func (m requestMarker) Set(token string) error {
	if token == "" {
		return m.Clear()
	}
	return m.cookies.Set(m.w, m.r, token)
}

func (m requestMarker) Clear() error { return m.cookies.Clear(m.w, m.r) }
