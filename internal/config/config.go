// Package config loads the client configuration from YAML with SMODF_
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/smodf-client/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g. SMODF_BACKEND_URL
const EnvPrefix = "SMODF"

// Detector and generator providers
const (
	ProviderStub     = "stub"
	ProviderBackend  = "backend"
	ProviderOllama   = "ollama"
	ProviderLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Backend        BackendConfig        `mapstructure:"backend" yaml:"backend"`
	Vision         VisionConfig         `mapstructure:"vision" yaml:"vision"`
	Reconstruction ReconstructionConfig `mapstructure:"reconstruction" yaml:"reconstruction"`
	Camera         CameraConfig         `mapstructure:"camera" yaml:"camera"`
	Session        SessionConfig        `mapstructure:"session" yaml:"session"`
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Settings       types.Settings       `mapstructure:"settings" yaml:"settings"`
	Logging        LoggingConfig        `mapstructure:"logging" yaml:"logging"`
}

// BackendConfig points at the SMODF service
type BackendConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// VisionConfig selects the object detector
type VisionConfig struct {
	Provider      string  `mapstructure:"provider" yaml:"provider"`
	URL           string  `mapstructure:"url" yaml:"url"`
	Model         string  `mapstructure:"model" yaml:"model"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	MaxDimension  int     `mapstructure:"max_dimension" yaml:"max_dimension"`
}

// ReconstructionConfig selects the model generator.
// NameWithVision names generated models after the subject the vision model sees.
type ReconstructionConfig struct {
	Provider       string `mapstructure:"provider" yaml:"provider"`
	NameWithVision bool   `mapstructure:"name_with_vision" yaml:"name_with_vision"`
	Polygons       int    `mapstructure:"polygons" yaml:"polygons"`
	DetailLevel    int    `mapstructure:"detail_level" yaml:"detail_level"`
}

// CameraConfig configures the virtual camera
type CameraConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
}

// SessionConfig configures marker storage
type SessionConfig struct {
	MarkerKey    string        `mapstructure:"marker_key" yaml:"marker_key"`
	MarkerFile   string        `mapstructure:"marker_file" yaml:"marker_file"`
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CookieSecret string        `mapstructure:"cookie_secret" yaml:"cookie_secret"`
	CookieMaxAge int           `mapstructure:"cookie_max_age" yaml:"cookie_max_age"`
	SecureCookie bool          `mapstructure:"secure_cookie" yaml:"secure_cookie"`
}

// ServerConfig configures the local HTTP adapter
type ServerConfig struct {
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Metrics bool   `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`

	// File adds a size-rotated log file next to stderr when set
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Vision: VisionConfig{
			Provider:      ProviderStub,
			URL:           "http://localhost:11434",
			Model:         "minicpm-v",
			MinConfidence: 0.5,
			MaxDimension:  1536,
		},
		Reconstruction: ReconstructionConfig{
			Provider:    ProviderStub,
			Polygons:    2000,
			DetailLevel: 5,
		},
		Camera: CameraConfig{
			Width:  1920,
			Height: 1080,
		},
		Session: SessionConfig{
			MarkerKey:    "usuario_smodf1",
			MarkerFile:   filepath.Join(configDir(), "session.json"),
			CookieMaxAge: 7 * 24 * 3600,
		},
		Server: ServerConfig{
			Listen:  "127.0.0.1:8090",
			Metrics: true,
		},
		Settings: types.DefaultSettings(),
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// setDefaults mirrors Default into v so env overrides apply to every key
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("vision.provider", d.Vision.Provider)
	v.SetDefault("vision.url", d.Vision.URL)
	v.SetDefault("vision.model", d.Vision.Model)
	v.SetDefault("vision.min_confidence", d.Vision.MinConfidence)
	v.SetDefault("vision.max_dimension", d.Vision.MaxDimension)
	v.SetDefault("reconstruction.provider", d.Reconstruction.Provider)
	v.SetDefault("reconstruction.name_with_vision", d.Reconstruction.NameWithVision)
	v.SetDefault("reconstruction.polygons", d.Reconstruction.Polygons)
	v.SetDefault("reconstruction.detail_level", d.Reconstruction.DetailLevel)
	v.SetDefault("camera.source", d.Camera.Source)
	v.SetDefault("camera.width", d.Camera.Width)
	v.SetDefault("camera.height", d.Camera.Height)
	v.SetDefault("session.marker_key", d.Session.MarkerKey)
	v.SetDefault("session.marker_file", d.Session.MarkerFile)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.cookie_secret", d.Session.CookieSecret)
	v.SetDefault("session.cookie_max_age", d.Session.CookieMaxAge)
	v.SetDefault("session.secure_cookie", d.Session.SecureCookie)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.metrics", d.Server.Metrics)
	v.SetDefault("settings.camera_quality", string(d.Settings.CameraQuality))
	v.SetDefault("settings.model_quality", string(d.Settings.ModelQuality))
	v.SetDefault("settings.auto_save", d.Settings.AutoSave)
	v.SetDefault("settings.notifications", d.Settings.Notifications)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// New returns a viper instance with defaults and SMODF_ env overrides bound
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or the default search locations when path is empty),
// applies env overrides and validates the result. A missing file in the
// default locations is not an error.
func Load(path string) (*Config, error) {
	return LoadWith(New(), path)
}

// LoadWith is Load on a caller-supplied viper, e.g. one with bound flags
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateURL("backend.url", c.Backend.URL); err != nil {
		return err
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}

	switch c.Vision.Provider {
	case ProviderStub, ProviderBackend:
	case ProviderOllama, ProviderLlamaCpp:
		if err := validateURL("vision.url", c.Vision.URL); err != nil {
			return err
		}
		if c.Vision.Model == "" {
			return fmt.Errorf("vision.model is required for provider %q", c.Vision.Provider)
		}
	default:
		return fmt.Errorf("vision.provider %q is not one of stub, backend, ollama, llamacpp", c.Vision.Provider)
	}
	if c.Vision.MinConfidence < 0 || c.Vision.MinConfidence > 1 {
		return fmt.Errorf("vision.min_confidence must be between 0 and 1")
	}
	if c.Vision.MaxDimension < 0 {
		return fmt.Errorf("vision.max_dimension must not be negative")
	}

	switch c.Reconstruction.Provider {
	case ProviderStub, ProviderBackend:
	default:
		return fmt.Errorf("reconstruction.provider %q is not one of stub, backend", c.Reconstruction.Provider)
	}
	if c.Reconstruction.NameWithVision && c.Vision.Provider != ProviderOllama && c.Vision.Provider != ProviderLlamaCpp {
		return fmt.Errorf("reconstruction.name_with_vision needs vision.provider ollama or llamacpp")
	}
	if c.Reconstruction.Polygons < 0 || c.Reconstruction.DetailLevel < 0 {
		return fmt.Errorf("reconstruction polygons and detail_level must not be negative")
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera.width and camera.height must be positive")
	}

	if c.Session.MarkerKey == "" {
		return fmt.Errorf("session.marker_key cannot be empty")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must not be negative")
	}

	if !c.Settings.CameraQuality.Valid() {
		return fmt.Errorf("settings.camera_quality %q is not one of low, medium, high", c.Settings.CameraQuality)
	}
	if !c.Settings.ModelQuality.Valid() {
		return fmt.Errorf("settings.model_quality %q is not one of low, medium, high", c.Settings.ModelQuality)
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must not be negative")
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "smodf")
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q is not an absolute URL", field, raw)
	}
	return nil
}
