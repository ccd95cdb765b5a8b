package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source types supported by the sync pipeline.
const (
	SourceZoho = "zoho"
	SourceICS  = "ics"
)

// Title modes for mirrored events.
const (
	TitleModeBusy     = "busy"
	TitleModeOriginal = "original"
)

// ZohoConfig holds credentials and target calendar for the Zoho source.
type ZohoConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	AccountsHost string `yaml:"accounts_host"`
	CalendarUID  string `yaml:"calendar_uid"`
}

// ICSConfig describes an ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id"`
	// CacheDir is where conditional-fetch cache entries are stored.
	CacheDir string `yaml:"cache_dir"`
}

// SourceConfig selects and configures the read-only event source.
type SourceConfig struct {
	Type string     `yaml:"type"`
	Zoho ZohoConfig `yaml:"zoho"`
	ICS  ICSConfig  `yaml:"ics"`
}

// GoogleConfig configures the destination calendar.
type GoogleConfig struct {
	// TokenFile is the authorized-user token JSON written by the OAuth flow.
	TokenFile string `yaml:"token_file"`
	// CalendarID is the destination calendar.
	CalendarID string `yaml:"calendar_id"`
}

// MirrorConfig controls how source events are shaped into mirror blocks.
type MirrorConfig struct {
	// TitleMode is "busy" (fixed placeholder) or "original" (pass-through).
	TitleMode string `yaml:"title_mode"`
	// KeySuffix is appended to the source event id to form the correlation key.
	KeySuffix string `yaml:"key_suffix"`
	// Reminders is a comma-separated list of method:minutes pairs, or "default".
	Reminders string `yaml:"reminders"`
	// DeleteMissing removes mirrored events whose source event disappeared.
	DeleteMissing bool `yaml:"delete_missing"`
}

// WindowConfig supplies default sync bounds when --since/--until are omitted.
type WindowConfig struct {
	LookbackDays  int `yaml:"lookback_days"`
	LookaheadDays int `yaml:"lookahead_days"`
}

// AlertConfig controls failure alerting for scheduled runs.
type AlertConfig struct {
	// WebhookURL receives failure and recovery JSON documents. Empty disables delivery.
	WebhookURL string `yaml:"webhook_url"`
	// StateFile is the persisted alert state record.
	StateFile string `yaml:"state_file"`
	// MinFailures is the consecutive-failure threshold before alerting.
	MinFailures int `yaml:"min_failures"`
	// RateHours is the minimum interval between sent alerts.
	RateHours float64 `yaml:"rate_hours"`
	// HoursStart/HoursEnd bound the local-time window in which alerts may fire.
	// End <= Start wraps past midnight. Both nil imposes no restriction.
	HoursStart *int `yaml:"hours_start,omitempty"`
	HoursEnd   *int `yaml:"hours_end,omitempty"`
	// Timezone is the IANA zone used to evaluate the hours window.
	Timezone string `yaml:"timezone"`
}

// Config is the resolved, immutable application configuration. It is built
// once at startup (file, then environment overrides) and passed explicitly
// into every component; nothing reads ambient state after resolution.
type Config struct {
	Source SourceConfig `yaml:"source"`
	Google GoogleConfig `yaml:"google"`
	Mirror MirrorConfig `yaml:"mirror"`
	Window WindowConfig `yaml:"window"`
	Alert  AlertConfig  `yaml:"alert"`

	// Schedule is the cron expression used by serve mode.
	Schedule string `yaml:"schedule"`
}

// MissingError reports required settings that were absent at validation time.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required config: " + strings.Join(e.Keys, ", ")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Type: SourceZoho,
			Zoho: ZohoConfig{AccountsHost: "https://accounts.zoho.com"},
			ICS:  ICSConfig{ID: "ics", CacheDir: "./var/ics-cache"},
		},
		Mirror: MirrorConfig{
			TitleMode: TitleModeBusy,
			KeySuffix: "-mirror",
			Reminders: "default",
		},
		Window: WindowConfig{
			LookbackDays:  7,
			LookaheadDays: 30,
		},
		Alert: AlertConfig{
			StateFile:   ".calmirror-state.json",
			MinFailures: 2,
			RateHours:   24,
			Timezone:    "UTC",
		},
		Schedule: "*/15 * * * *",
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Source.Type == "" {
		c.Source.Type = def.Source.Type
	}
	if c.Source.Zoho.AccountsHost == "" {
		c.Source.Zoho.AccountsHost = def.Source.Zoho.AccountsHost
	}
	if c.Source.ICS.ID == "" {
		c.Source.ICS.ID = def.Source.ICS.ID
	}
	if c.Source.ICS.CacheDir == "" {
		c.Source.ICS.CacheDir = def.Source.ICS.CacheDir
	}
	switch c.Mirror.TitleMode {
	case TitleModeBusy, TitleModeOriginal:
	default:
		c.Mirror.TitleMode = TitleModeBusy
	}
	if c.Mirror.KeySuffix == "" {
		c.Mirror.KeySuffix = def.Mirror.KeySuffix
	}
	if c.Mirror.Reminders == "" {
		c.Mirror.Reminders = def.Mirror.Reminders
	}
	if c.Window.LookbackDays <= 0 {
		c.Window.LookbackDays = def.Window.LookbackDays
	}
	if c.Window.LookaheadDays <= 0 {
		c.Window.LookaheadDays = def.Window.LookaheadDays
	}
	if c.Alert.StateFile == "" {
		c.Alert.StateFile = def.Alert.StateFile
	}
	if c.Alert.MinFailures <= 0 {
		c.Alert.MinFailures = def.Alert.MinFailures
	}
	if c.Alert.RateHours <= 0 {
		c.Alert.RateHours = def.Alert.RateHours
	}
	if c.Alert.Timezone == "" {
		c.Alert.Timezone = def.Alert.Timezone
	}
	if c.Schedule == "" {
		c.Schedule = def.Schedule
	}
}

// Load resolves the effective configuration: defaults, then the YAML file at
// path (if any), then environment overrides. A missing file is not an error;
// an unreadable or malformed file is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Environment wins
// over the file so scheduled deployments can keep secrets out of it.
func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr(&c.Source.Type, "CALMIRROR_SOURCE")
	setStr(&c.Source.Zoho.ClientID, "ZOHO_CLIENT_ID")
	setStr(&c.Source.Zoho.ClientSecret, "ZOHO_CLIENT_SECRET")
	setStr(&c.Source.Zoho.RefreshToken, "ZOHO_REFRESH_TOKEN")
	setStr(&c.Source.Zoho.AccountsHost, "ZOHO_ACCOUNTS_HOST")
	setStr(&c.Source.Zoho.CalendarUID, "ZOHO_CALENDAR_UID")
	setStr(&c.Source.ICS.URL, "CALMIRROR_ICS_URL")
	setStr(&c.Source.ICS.CacheDir, "CALMIRROR_ICS_CACHE_DIR")

	setStr(&c.Google.TokenFile, "GOOGLE_TOKEN_JSON")
	setStr(&c.Google.CalendarID, "GOOGLE_CALENDAR_ID")

	setStr(&c.Mirror.TitleMode, "CALMIRROR_TITLE_MODE")
	setStr(&c.Mirror.KeySuffix, "CALMIRROR_KEY_SUFFIX")
	setStr(&c.Mirror.Reminders, "CALMIRROR_REMINDERS")
	if v := strings.TrimSpace(os.Getenv("CALMIRROR_DELETE_MISSING")); v != "" {
		c.Mirror.DeleteMissing = truthy(v)
	}

	setInt(&c.Window.LookbackDays, "SYNC_LOOKBACK_DAYS")
	setInt(&c.Window.LookaheadDays, "SYNC_LOOKAHEAD_DAYS")

	setStr(&c.Alert.WebhookURL, "CALMIRROR_ALERT_WEBHOOK_URL")
	setStr(&c.Alert.StateFile, "CALMIRROR_ALERT_STATE_FILE")
	setInt(&c.Alert.MinFailures, "CALMIRROR_ALERT_MIN_FAILURES")
	if v := strings.TrimSpace(os.Getenv("CALMIRROR_ALERT_RATE_HOURS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Alert.RateHours = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("CALMIRROR_ALERT_HOURS_START")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Alert.HoursStart = &n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CALMIRROR_ALERT_HOURS_END")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Alert.HoursEnd = &n
		}
	}
	setStr(&c.Alert.Timezone, "CALMIRROR_ALERT_TIMEZONE")

	setStr(&c.Schedule, "CALMIRROR_SCHEDULE")
}

// Validate checks that every setting the selected source and the destination
// need is present. It must run (and fail) before any provider call.
func (c *Config) Validate() error {
	var missing []string

	switch c.Source.Type {
	case SourceZoho:
		if c.Source.Zoho.ClientID == "" {
			missing = append(missing, "ZOHO_CLIENT_ID")
		}
		if c.Source.Zoho.ClientSecret == "" {
			missing = append(missing, "ZOHO_CLIENT_SECRET")
		}
		if c.Source.Zoho.RefreshToken == "" {
			missing = append(missing, "ZOHO_REFRESH_TOKEN")
		}
		if c.Source.Zoho.CalendarUID == "" {
			missing = append(missing, "ZOHO_CALENDAR_UID")
		}
	case SourceICS:
		if c.Source.ICS.URL == "" {
			missing = append(missing, "CALMIRROR_ICS_URL")
		}
	default:
		return fmt.Errorf("unknown source type %q (use %q or %q)", c.Source.Type, SourceZoho, SourceICS)
	}

	if c.Google.TokenFile == "" {
		missing = append(missing, "GOOGLE_TOKEN_JSON")
	}
	if c.Google.CalendarID == "" {
		missing = append(missing, "GOOGLE_CALENDAR_ID")
	}

	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

// Save writes the configuration to path atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calmirror-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
