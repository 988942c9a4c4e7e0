// Package smodf wires the SMODF client core from a configuration.
//
// An App holds the state store together with the camera device and the two
// pipeline capabilities behind it, the backend transport, the session marker
// with the account service, the route guard and the metrics registry.
//
// Basic usage:
//
//	cfg := config.Default()
//	app, err := smodf.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer app.Close()
//
//	app.Store.DetectObjects(ctx, img)
//	for _, obj := range app.Store.DetectedObjects() {
//		fmt.Printf("%d %s %.2f\n", obj.ID, obj.Name, obj.Confidence)
//	}
//
// Detectors and generators are chosen by the vision and reconstruction
// providers: the synthetic stub, the SMODF backend, or a vision-language
// model served by Ollama or llama.cpp.
package smodf

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/menta2k/smodf-client/internal/account"
	"github.com/menta2k/smodf-client/internal/backend"
	"github.com/menta2k/smodf-client/internal/config"
	"github.com/menta2k/smodf-client/internal/httpserver"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/internal/metrics"
	"github.com/menta2k/smodf-client/internal/session"
	"github.com/menta2k/smodf-client/internal/state"
	"github.com/menta2k/smodf-client/internal/transport"
	"github.com/menta2k/smodf-client/pkg/camera"
	"github.com/menta2k/smodf-client/pkg/client"
	"github.com/menta2k/smodf-client/pkg/detection"
	"github.com/menta2k/smodf-client/pkg/llamacpp"
	"github.com/menta2k/smodf-client/pkg/ollama"
	"github.com/menta2k/smodf-client/pkg/reconstruction"
)

// Version of the client
const Version = "0.1.0"

// App is a fully wired client
type App struct {
	Config    *config.Config
	Store     *state.Store
	Transport *transport.Client
	Backend   *backend.Client
	Accounts  *account.Service
	Marker    *session.MarkerStore
	Routes    *session.RouteTable
	Guard     session.Guard
	Metrics   *metrics.Metrics
	Log       logger.Logger

	// Vision is nil unless the vision provider is ollama or llamacpp
	Vision client.VisionClient

	logFile io.Closer
}

type options struct {
	httpClient *http.Client
	registry   *prometheus.Registry
	logOutput  io.Writer
}

// Option configures New
type Option func(*options)

// WithHTTPClient sets the HTTP client used for the backend and Ollama
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithRegistry registers metrics on reg instead of a fresh registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogOutput sends log output to w instead of stderr
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// New builds an App from cfg
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	out := o.logOutput
	var logFile io.Closer
	if cfg.Logging.File != "" {
		w, err := logger.NewRotatingWriter(cfg.Logging.File, logger.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
		out, logFile = io.MultiWriter(out, w), w
	}
	log := logger.New(out, logger.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)

	app, err := build(cfg, o, log)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}
	app.logFile = logFile
	return app, nil
}

func build(cfg *config.Config, o options, log logger.Logger) (*App, error) {
	m, err := metrics.New(o.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	tc, err := transport.New(transport.Config{
		BaseURL:   cfg.Backend.URL,
		Timeout:   cfg.Backend.Timeout,
		UserAgent: "smodf-client/" + Version,
	}, transport.WithHTTPClient(o.httpClient), transport.WithLogger(log))
	if err != nil {
		return nil, err
	}
	tc.OnResponse(m.ObserveRequest)

	be := backend.New(tc,
		backend.WithMinConfidence(cfg.Vision.MinConfidence),
		backend.WithMaxDimension(cfg.Vision.MaxDimension),
		backend.WithModelParams(map[string]any{
			"polygons":     cfg.Reconstruction.Polygons,
			"detail_level": cfg.Reconstruction.DetailLevel,
		}),
		backend.WithLogger(log))

	vision, err := newVisionClient(cfg.Vision, o.httpClient)
	if err != nil {
		return nil, err
	}

	marker, err := session.NewMarkerStore(
		session.WithMarkerKey(cfg.Session.MarkerKey),
		session.WithMarkerTTL(cfg.Session.TTL),
		session.WithMarkerFile(cfg.Session.MarkerFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open session marker: %w", err)
	}

	storeOpts := []state.Option{
		state.WithConstraints(camera.Constraints{IdealWidth: cfg.Camera.Width, IdealHeight: cfg.Camera.Height}),
		state.WithDetector(newDetector(cfg, be, vision)),
		state.WithGenerator(newGenerator(cfg, be, vision)),
		state.WithObserver(m),
		state.WithLogger(log),
		state.WithSettings(cfg.Settings),
	}
	if cfg.Camera.Source != "" {
		storeOpts = append(storeOpts, state.WithDevice(camera.NewDirectoryDevice(cfg.Camera.Source)))
	}

	return &App{
		Config:    cfg,
		Store:     state.New(storeOpts...),
		Transport: tc,
		Backend:   be,
		Accounts:  account.New(tc, marker, log),
		Marker:    marker,
		Routes:    session.DefaultRouteTable(),
		Guard:     session.NewGuard(),
		Metrics:   m,
		Log:       log,
		Vision:    vision,
	}, nil
}

func newVisionClient(cfg config.VisionConfig, hc *http.Client) (client.VisionClient, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.NewClientWithHTTP(cfg.URL, hc)
	case config.ProviderLlamaCpp:
		return llamacpp.NewClient(cfg.URL, transport.WithHTTPClient(hc))
	}
	return nil, nil
}

func newDetector(cfg *config.Config, be *backend.Client, vision client.VisionClient) client.ObjectDetector {
	switch {
	case cfg.Vision.Provider == config.ProviderBackend:
		return be
	case vision != nil:
		send := detection.DefaultSendOptions()
		send.MaxDim = cfg.Vision.MaxDimension
		return detection.NewDetector(vision, cfg.Vision.Model,
			detection.WithMinConfidence(cfg.Vision.MinConfidence),
			detection.WithSendOptions(send))
	}
	return detection.Stub{}
}

func newGenerator(cfg *config.Config, be *backend.Client, vision client.VisionClient) client.ModelGenerator {
	var gen client.ModelGenerator = reconstruction.Stub{}
	if cfg.Reconstruction.Provider == config.ProviderBackend {
		gen = be
	}
	if cfg.Reconstruction.NameWithVision && vision != nil {
		gen = reconstruction.NewNamer(gen, vision, cfg.Vision.Model)
	}
	return gen
}

// Navigate resolves path and runs the guard against the held marker
func (a *App) Navigate(path string) (session.Route, session.Decision) {
	route := a.Routes.Resolve(path)
	decision := a.Guard.Evaluate(route, a.Marker.Present())
	a.Metrics.GuardDecision(decision)
	return route, decision
}

// PersistSettings saves the configuration to path after every settings
// change made while auto-save is on, including the change that turns it
// off. The returned function stops persisting.
func (a *App) PersistSettings(path string) (stop func()) {
	var mu sync.Mutex
	autoSave := a.Store.Settings().AutoSave
	return a.Store.Subscribe(func(ev state.Event) {
		if ev.Mutation != state.MutUpdateSettings {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		was := autoSave
		autoSave = ev.Snapshot.Settings.AutoSave
		if !was && !autoSave {
			return
		}
		a.Config.Settings = ev.Snapshot.Settings
		if err := a.Config.SaveToFile(path); err != nil {
			a.Log.Warn("failed to save settings", logger.String("path", path), logger.Error(err))
			return
		}
		a.Log.Debug("settings saved", logger.String("path", path))
	})
}

// Server returns the HTTP adapter over the store. Without a configured
// cookie secret the cookies only survive until restart.
func (a *App) Server() *httpserver.Server {
	secret := a.Config.Session.CookieSecret
	if secret == "" {
		a.Log.Warn("session.cookie_secret not set, using an ephemeral secret")
		secret = uuid.NewString()
	}
	cookies := session.NewCookieMarkers(secret, session.CookieOptions{
		Key:    a.Config.Session.MarkerKey,
		MaxAge: a.Config.Session.CookieMaxAge,
		Secure: a.Config.Session.SecureCookie,
	})

	opts := []httpserver.Option{
		httpserver.WithAccounts(a.Transport),
		httpserver.WithGuard(a.Guard),
		httpserver.WithLogger(a.Log),
	}
	if a.Config.Server.Metrics {
		opts = append(opts, httpserver.WithMetrics(a.Metrics))
	}
	return httpserver.New(a.Store, a.Routes, cookies, opts...)
}

// Close releases the camera
func (a *App) Close() {
	a.Store.StopCamera()
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
