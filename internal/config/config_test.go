package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Source.Type != SourceZoho {
		t.Fatalf("expected zoho default source, got %q", cfg.Source.Type)
	}
	if cfg.Mirror.TitleMode != TitleModeBusy {
		t.Fatalf("expected busy default title mode, got %q", cfg.Mirror.TitleMode)
	}
	if cfg.Mirror.DeleteMissing {
		t.Fatalf("delete_missing must default to off")
	}
	if cfg.Alert.MinFailures != 2 || cfg.Alert.RateHours != 24 {
		t.Fatalf("unexpected alert defaults: %+v", cfg.Alert)
	}
	if cfg.Window.LookbackDays <= 0 || cfg.Window.LookaheadDays <= 0 {
		t.Fatalf("window defaults must be positive: %+v", cfg.Window)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
	if cfg.Source.Type != SourceZoho {
		t.Fatalf("expected defaults, got %+v", cfg.Source)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
source:
  type: ics
  ics:
    url: https://feeds.example.com/cal.ics
google:
  token_file: /etc/calmirror/token.json
  calendar_id: primary
mirror:
  title_mode: original
  key_suffix: "-z2g"
  delete_missing: true
window:
  lookback_days: 3
  lookahead_days: 14
alert:
  webhook_url: https://hooks.example.com/x
  min_failures: 5
  hours_start: 8
  hours_end: 22
schedule: "0 * * * *"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Source.Type != SourceICS || cfg.Source.ICS.URL != "https://feeds.example.com/cal.ics" {
		t.Fatalf("unexpected source: %+v", cfg.Source)
	}
	if cfg.Mirror.TitleMode != TitleModeOriginal || cfg.Mirror.KeySuffix != "-z2g" || !cfg.Mirror.DeleteMissing {
		t.Fatalf("unexpected mirror config: %+v", cfg.Mirror)
	}
	if cfg.Window.LookbackDays != 3 || cfg.Window.LookaheadDays != 14 {
		t.Fatalf("unexpected window: %+v", cfg.Window)
	}
	if cfg.Alert.MinFailures != 5 {
		t.Fatalf("unexpected alert threshold: %+v", cfg.Alert)
	}
	if cfg.Alert.HoursStart == nil || *cfg.Alert.HoursStart != 8 {
		t.Fatalf("hours_start not loaded: %+v", cfg.Alert.HoursStart)
	}
	if cfg.Alert.HoursEnd == nil || *cfg.Alert.HoursEnd != 22 {
		t.Fatalf("hours_end not loaded: %+v", cfg.Alert.HoursEnd)
	}
	if cfg.Schedule != "0 * * * *" {
		t.Fatalf("unexpected schedule: %q", cfg.Schedule)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
source:
  zoho:
    client_id: from-file
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ZOHO_CLIENT_ID", "from-env")
	t.Setenv("CALMIRROR_DELETE_MISSING", "true")
	t.Setenv("SYNC_LOOKAHEAD_DAYS", "90")
	t.Setenv("CALMIRROR_ALERT_RATE_HOURS", "6.5")
	t.Setenv("CALMIRROR_ALERT_HOURS_START", "22")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Source.Zoho.ClientID != "from-env" {
		t.Fatalf("environment must win over file, got %q", cfg.Source.Zoho.ClientID)
	}
	if !cfg.Mirror.DeleteMissing {
		t.Fatalf("CALMIRROR_DELETE_MISSING not applied")
	}
	if cfg.Window.LookaheadDays != 90 {
		t.Fatalf("SYNC_LOOKAHEAD_DAYS not applied: %d", cfg.Window.LookaheadDays)
	}
	if cfg.Alert.RateHours != 6.5 {
		t.Fatalf("rate hours not applied: %v", cfg.Alert.RateHours)
	}
	if cfg.Alert.HoursStart == nil || *cfg.Alert.HoursStart != 22 {
		t.Fatalf("hours start not applied: %+v", cfg.Alert.HoursStart)
	}
}

func TestValidateReportsAllMissingKeys(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	var missing *MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %v", err)
	}
	want := []string{
		"ZOHO_CLIENT_ID", "ZOHO_CLIENT_SECRET", "ZOHO_REFRESH_TOKEN",
		"ZOHO_CALENDAR_UID", "GOOGLE_TOKEN_JSON", "GOOGLE_CALENDAR_ID",
	}
	if len(missing.Keys) != len(want) {
		t.Fatalf("expected %d missing keys, got %v", len(want), missing.Keys)
	}
	for i, k := range want {
		if missing.Keys[i] != k {
			t.Fatalf("missing key %d = %q, want %q", i, missing.Keys[i], k)
		}
	}
}

func TestValidateICSSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Type = SourceICS
	cfg.Google.TokenFile = "token.json"
	cfg.Google.CalendarID = "primary"

	err := cfg.Validate()
	var missing *MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %v", err)
	}
	if len(missing.Keys) != 1 || missing.Keys[0] != "CALMIRROR_ICS_URL" {
		t.Fatalf("expected only the feed URL missing, got %v", missing.Keys)
	}

	cfg.Source.ICS.URL = "https://feeds.example.com/cal.ics"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fully configured ics source must validate: %v", err)
	}
}

func TestValidateUnknownSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Type = "caldav"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown source type")
	}
}

func TestNormalizeRepairsBadValues(t *testing.T) {
	cfg := &Config{}
	cfg.Mirror.TitleMode = "shout"
	cfg.Window.LookbackDays = -1
	cfg.Normalize()
	if cfg.Mirror.TitleMode != TitleModeBusy {
		t.Fatalf("bad title mode must fall back to busy, got %q", cfg.Mirror.TitleMode)
	}
	if cfg.Window.LookbackDays <= 0 {
		t.Fatalf("lookback must be repaired, got %d", cfg.Window.LookbackDays)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Google.CalendarID = "primary"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Google.CalendarID != "primary" {
		t.Fatalf("round trip lost calendar id: %+v", got.Google)
	}
}
