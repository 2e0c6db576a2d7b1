package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/applysync/internal/appstore"
	"github.com/starford/applysync/internal/debounce"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Auth       AuthConfig        `yaml:"auth"`
	API        APIConfig         `yaml:"api"`
	Session    SessionConfig     `yaml:"session"`
	Sync       SyncConfig        `yaml:"sync"`
	DevBackend DevBackendConfig  `yaml:"dev_backend"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return c.DevBackend.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration for the local mirror.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

var baseURLRe = regexp.MustCompile(`^https?://[^\s/]+(/\S*)?$`)

// APIConfig points the client at the tracker backend.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.Match(baseURLRe)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.RateBurst, validation.Min(0)),
	)
}

// SessionConfig locates the persisted bearer token.
type SessionConfig struct {
	TokenFile string `yaml:"token_file"`
	// Watch reloads the token when another process rewrites the file.
	Watch bool `yaml:"watch"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TokenFile, validation.Required),
	)
}

// SyncConfig tunes the application store.
type SyncConfig struct {
	PageSize        int           `yaml:"page_size"`
	SearchDebounce  time.Duration `yaml:"search_debounce"`
	BulkStrategy    string        `yaml:"bulk_strategy"`
	BulkConcurrency int           `yaml:"bulk_concurrency"`
	EventThrottle   time.Duration `yaml:"event_throttle"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.SearchDebounce, validation.Min(time.Duration(0))),
		validation.Field(&c.BulkStrategy, validation.In(string(appstore.BulkFanout), string(appstore.BulkBatch))),
		validation.Field(&c.BulkConcurrency, validation.Min(0)),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// DevBackendConfig configures the reference backend started by the
// dev-backend command.
type DevBackendConfig struct {
	Port       int    `yaml:"port"`
	Token      string `yaml:"token"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Address returns the dev backend listen address.
func (c *DevBackendConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the dev backend configuration.
func (c *DevBackendConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			TokenFile: "./.applysync-token",
			Watch:     true,
		},
		Sync: SyncConfig{
			PageSize:        appstore.DefaultPageSize,
			SearchDebounce:  debounce.DefaultWindow,
			BulkStrategy:    string(appstore.BulkFanout),
			BulkConcurrency: appstore.DefaultBulkConcurrency,
			EventThrottle:   500 * time.Millisecond,
		},
		DevBackend: DevBackendConfig{
			Port:       8000,
			SQLitePath: ":memory:",
		},
	}
}
