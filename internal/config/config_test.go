package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overflight.report/internal/alerting"
	"github.com/banshee-data/overflight.report/internal/fsutil"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/opensky"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	want := geo.Site{
		Name:        DefaultSiteName,
		Latitude:    25.0721,
		Longitude:   121.5222,
		Altitude:    20,
		Radius:      25000,
		MaxAltitude: 6000,
		Noise:       &geo.NoiseThresholds{High: 1200, Medium: 2500},
	}
	if diff := cmp.Diff(want, cfg.GetSite()); diff != "" {
		t.Errorf("GetSite() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "", cfg.GetSiteName())
	assert.Equal(t, opensky.DefaultStatesURL, cfg.GetFeedURL())
	assert.Equal(t, 10*time.Second, cfg.GetPollInterval())
	assert.Equal(t, 15*time.Second, cfg.GetRequestTimeout())
	assert.Equal(t, alerting.Thresholds{Warning: 300 * time.Second, Critical: 120 * time.Second}, cfg.GetThresholds())
	assert.Equal(t, alerting.RaiseWarning, cfg.GetInversionPolicy())
	assert.Equal(t, "knots", cfg.GetUnits())
	assert.Equal(t, ":8080", cfg.GetListen())
	assert.Equal(t, "overflight.db", cfg.GetDBPath())

	user, pass := cfg.GetFeedCredentials()
	assert.Empty(t, user)
	assert.Empty(t, pass)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "site.json", `{
  "site": {"name": "heathrow-27l", "latitude": 51.4775, "longitude": -0.4614, "radius": 8000, "max_altitude": 3000, "noise_high": 900},
  "feed_username": "spotter",
  "feed_password": "hunter2",
  "poll_interval": "30s",
  "alert_warning": "5m",
  "alert_critical": "90s",
  "alert_inversion_policy": "swap",
  "units": "mph"
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	site := cfg.GetSite()
	assert.Equal(t, "heathrow-27l", site.Name)
	assert.Equal(t, 51.4775, site.Latitude)
	assert.Equal(t, DefaultAltitude, site.Altitude, "omitted site fields keep defaults")
	assert.Equal(t, 8000.0, site.Radius)
	assert.Equal(t, geo.NoiseThresholds{High: 900, Medium: 2500}, site.NoiseThresholds())

	user, pass := cfg.GetFeedCredentials()
	assert.Equal(t, "spotter", user)
	assert.Equal(t, "hunter2", pass)
	assert.Equal(t, 30*time.Second, cfg.GetPollInterval())
	assert.Equal(t, alerting.Thresholds{Warning: 5 * time.Minute, Critical: 90 * time.Second}, cfg.GetThresholds())
	assert.Equal(t, alerting.Swap, cfg.GetInversionPolicy())
	assert.Equal(t, "mph", cfg.GetUnits())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "site.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"site": `, "parse config JSON"},
		{"bad duration", "d.json", `{"poll_interval": "ten seconds"}`, "poll_interval"},
		{"negative duration", "n.json", `{"alert_warning": "-5s"}`, "alert_warning must be non-negative"},
		{"bad policy", "p.json", `{"alert_inversion_policy": "clamp"}`, "inversion policy"},
		{"bad units", "u.json", `{"units": "furlongs"}`, "invalid units"},
		{"bad latitude", "lat.json", `{"site": {"latitude": 123}}`, "latitude"},
		{"negative radius", "r.json", `{"site": {"radius": -1}}`, "radius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "stat config file")
}

func TestLoad_TooLarge(t *testing.T) {
	big := `{"listen": "` + strings.Repeat("x", maxFileSize) + `"}`
	_, err := Load(writeConfig(t, "big.json", big))
	assert.ErrorContains(t, err, "too large")
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	builtin := &Config{}

	if diff := cmp.Diff(builtin.GetSite(), fromFile.GetSite()); diff != "" {
		t.Errorf("defaults file site drifted (-builtin +file):\n%s", diff)
	}
	assert.Equal(t, builtin.GetPollInterval(), fromFile.GetPollInterval())
	assert.Equal(t, builtin.GetThresholds(), fromFile.GetThresholds())
	assert.Equal(t, builtin.GetInversionPolicy(), fromFile.GetInversionPolicy())
	assert.Equal(t, builtin.GetUnits(), fromFile.GetUnits())
	assert.Equal(t, builtin.GetListen(), fromFile.GetListen())
	assert.Equal(t, builtin.GetFeedURL(), fromFile.GetFeedURL())
}

func TestEmptyStringsFallBack(t *testing.T) {
	cfg := &Config{Listen: ptrString(""), PollInterval: ptrString("")}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultListen, cfg.GetListen())
	assert.Equal(t, DefaultPollInterval, cfg.GetPollInterval())
}

func TestLoadFS(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("etc/overflight.json", []byte(`{"site":{"name":"songshan","radius":8000},"alert_inversion_policy":"swap"}`))
	fsys.WriteFile("etc/huge.json", make([]byte, maxFileSize+1))

	cfg, err := LoadFS(fsys, "etc/overflight.json")
	require.NoError(t, err)
	assert.Equal(t, "songshan", cfg.GetSite().Name)
	assert.Equal(t, 8000.0, cfg.GetSite().Radius)
	assert.Equal(t, alerting.Swap, cfg.GetInversionPolicy())

	_, err = LoadFS(fsys, "etc/huge.json")
	assert.ErrorContains(t, err, "too large")

	_, err = LoadFS(fsys, "etc/missing.json")
	assert.ErrorContains(t, err, "failed to stat")
}
