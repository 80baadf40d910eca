// Package config loads the overflight service configuration from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/overflight.report/internal/alerting"
	"github.com/banshee-data/overflight.report/internal/fsutil"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/opensky"
	"github.com/banshee-data/overflight.report/internal/units"
)

// DefaultConfigPath is the checked-in defaults file.
const DefaultConfigPath = "config/overflight.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Built-in defaults, used for any field a file leaves out.
const (
	DefaultSiteName       = "yuanshan"
	DefaultLatitude       = 25.0721
	DefaultLongitude      = 121.5222
	DefaultAltitude       = 20.0
	DefaultRadius         = 25000.0
	DefaultMaxAltitude    = 6000.0
	DefaultPollInterval   = 10 * time.Second
	DefaultRequestTimeout = 15 * time.Second
	DefaultAlertWarning   = 300 * time.Second
	DefaultAlertCritical  = 120 * time.Second
	DefaultUnits          = units.Knots
	DefaultListen         = ":8080"
	DefaultDBPath         = "overflight.db"
)

// SiteConfig is the observation site block.
type SiteConfig struct {
	Name        *string  `json:"name,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Altitude    *float64 `json:"altitude,omitempty"`     // meters above sea level
	Radius      *float64 `json:"radius,omitempty"`       // meters
	MaxAltitude *float64 `json:"max_altitude,omitempty"` // meters
	NoiseHigh   *float64 `json:"noise_high,omitempty"`   // slant meters
	NoiseMedium *float64 `json:"noise_medium,omitempty"` // slant meters
}

// Config is the root service configuration. Every field is optional; the
// Get* methods supply defaults.
type Config struct {
	Site     *SiteConfig `json:"site,omitempty"`
	SiteName *string     `json:"site_name,omitempty"` // registry lookup, overrides Site

	FeedURL        *string `json:"feed_url,omitempty"`
	FeedUsername   *string `json:"feed_username,omitempty"`
	FeedPassword   *string `json:"feed_password,omitempty"`
	PollInterval   *string `json:"poll_interval,omitempty"`   // duration string like "10s"
	RequestTimeout *string `json:"request_timeout,omitempty"` // duration string like "15s"

	AlertWarning         *string `json:"alert_warning,omitempty"`  // duration string like "300s"
	AlertCritical        *string `json:"alert_critical,omitempty"` // duration string like "120s"
	AlertInversionPolicy *string `json:"alert_inversion_policy,omitempty"`

	Units  *string `json:"units,omitempty"`
	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"`
}

func ptrString(v string) *string { return &v }

// Load reads a Config from a .json file no larger than 1MB and validates it.
func Load(path string) (*Config, error) {
	return LoadFS(fsutil.OSFileSystem{}, path)
}

// LoadFS is Load against an arbitrary filesystem.
func LoadFS(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or a parent, for test setup. It panics when the file cannot be loaded.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every field that is set.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"poll_interval", c.PollInterval},
		{"request_timeout", c.RequestTimeout},
		{"alert_warning", c.AlertWarning},
		{"alert_critical", c.AlertCritical},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}

	if c.AlertInversionPolicy != nil {
		if _, err := alerting.ParseInversionPolicy(*c.AlertInversionPolicy); err != nil {
			return err
		}
	}

	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q, must be one of: %s", *c.Units, units.GetValidUnitsString())
	}

	if c.Site != nil {
		if err := c.GetSite().Validate(); err != nil {
			return fmt.Errorf("site: %w", err)
		}
	}
	return nil
}

// GetSite builds the observation site, filling omitted fields from the
// built-in defaults.
func (c *Config) GetSite() geo.Site {
	sc := c.Site
	if sc == nil {
		sc = &SiteConfig{}
	}
	site := geo.Site{
		Name:        stringOr(sc.Name, DefaultSiteName),
		Latitude:    floatOr(sc.Latitude, DefaultLatitude),
		Longitude:   floatOr(sc.Longitude, DefaultLongitude),
		Altitude:    floatOr(sc.Altitude, DefaultAltitude),
		Radius:      floatOr(sc.Radius, DefaultRadius),
		MaxAltitude: floatOr(sc.MaxAltitude, DefaultMaxAltitude),
		Noise: &geo.NoiseThresholds{
			High:   floatOr(sc.NoiseHigh, geo.DefaultNoiseHigh),
			Medium: floatOr(sc.NoiseMedium, geo.DefaultNoiseMedium),
		},
	}
	return site
}

// GetSiteName returns the registry site to poll, or "" to use GetSite.
func (c *Config) GetSiteName() string {
	return stringOr(c.SiteName, "")
}

// GetFeedURL returns the states endpoint.
func (c *Config) GetFeedURL() string {
	return stringOr(c.FeedURL, opensky.DefaultStatesURL)
}

// GetFeedCredentials returns basic-auth credentials; both empty means
// anonymous access.
func (c *Config) GetFeedCredentials() (string, string) {
	return stringOr(c.FeedUsername, ""), stringOr(c.FeedPassword, "")
}

// GetPollInterval returns the base interval between feed requests.
func (c *Config) GetPollInterval() time.Duration {
	return durationOr(c.PollInterval, DefaultPollInterval)
}

// GetRequestTimeout returns the per-request HTTP timeout.
func (c *Config) GetRequestTimeout() time.Duration {
	return durationOr(c.RequestTimeout, DefaultRequestTimeout)
}

// GetThresholds returns the configured alert lead times, not yet normalized.
func (c *Config) GetThresholds() alerting.Thresholds {
	return alerting.Thresholds{
		Warning:  durationOr(c.AlertWarning, DefaultAlertWarning),
		Critical: durationOr(c.AlertCritical, DefaultAlertCritical),
	}
}

// GetInversionPolicy returns the threshold inversion policy.
func (c *Config) GetInversionPolicy() alerting.InversionPolicy {
	if c.AlertInversionPolicy == nil {
		return alerting.DefaultInversionPolicy
	}
	p, err := alerting.ParseInversionPolicy(*c.AlertInversionPolicy)
	if err != nil {
		return alerting.DefaultInversionPolicy
	}
	return p
}

// GetUnits returns the speed units for API output.
func (c *Config) GetUnits() string {
	return stringOr(c.Units, DefaultUnits)
}

// GetListen returns the HTTP listen address.
func (c *Config) GetListen() string {
	return stringOr(c.Listen, DefaultListen)
}

// GetDBPath returns the site registry database path.
func (c *Config) GetDBPath() string {
	return stringOr(c.DBPath, DefaultDBPath)
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}
