// Package httpserver exposes the state store over a small local JSON API and
// runs the navigation guard for every page path a browser UI asks about.
// It renders nothing.
package httpserver

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/menta2k/smodf-client/internal/account"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/internal/metrics"
	"github.com/menta2k/smodf-client/internal/session"
	"github.com/menta2k/smodf-client/internal/state"
	"github.com/menta2k/smodf-client/pkg/processing"
)

const (
	componentName = "httpserver"

	// MaxUploadSize limits image uploads
	MaxUploadSize = "20M"

	shutdownTimeout = 5 * time.Second
)

// Server is the local HTTP adapter around a state.Store
type Server struct {
	Echo *echo.Echo

	store     *state.Store
	routes    *session.RouteTable
	guard     session.Guard
	cookies   *session.CookieMarkers
	accounts  account.Requester
	metrics   *metrics.Metrics
	processor *processing.Processor
	log       logger.Logger
}

// Option configures a Server
type Option func(*Server)

// WithAccounts enables the session endpoints against the SMODF backend
func WithAccounts(t account.Requester) Option {
	return func(s *Server) { s.accounts = t }
}

// WithMetrics records guard decisions and serves /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGuard replaces the default login, register and landing paths
func WithGuard(g session.Guard) Option {
	return func(s *Server) { s.guard = g }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l.Module(componentName) }
}

// New creates a Server and registers its routes
func New(store *state.Store, routes *session.RouteTable, cookies *session.CookieMarkers, opts ...Option) *Server {
	s := &Server{
		Echo:      echo.New(),
		store:     store,
		routes:    routes,
		guard:     session.NewGuard(),
		cookies:   cookies,
		processor: processing.NewProcessor(),
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.HTTPErrorHandler = s.handleError
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.requestLogger())
	s.Echo.Use(middleware.BodyLimit(MaxUploadSize))

	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	api := s.Echo.Group("/api")

	api.POST("/session", s.Login)
	api.POST("/session/register", s.Register)
	api.DELETE("/session", s.Logout)
	api.GET("/session", s.Me)

	protected := api.Group("", s.RequireSession)
	protected.GET("/state", s.GetState)
	protected.GET("/camera", s.GetCamera)
	protected.POST("/camera/start", s.StartCamera)
	protected.POST("/camera/stop", s.StopCamera)
	protected.GET("/detection", s.GetDetection)
	protected.POST("/detection", s.DetectObjects)
	protected.PUT("/detection/current", s.SelectObject)
	protected.GET("/models", s.GetModels)
	protected.POST("/models", s.ProcessImage)
	protected.PUT("/models/current", s.SelectModel)
	protected.GET("/settings", s.GetSettings)
	protected.PUT("/settings", s.UpdateSettings)

	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	s.Echo.GET("/*", s.Navigate)
}

// Start serves on addr until ctx is canceled
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", logger.String("addr", addr))
		errCh <- s.Echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
