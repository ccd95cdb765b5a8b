package mirror

import (
	"reflect"
	"testing"
	"time"

	"calmirror/internal/source"
)

func TestNormalizePlaceholderScenario(t *testing.T) {
	ev := source.Event{
		ID:    "z123",
		Title: "Doctor",
		Start: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	opts := Options{TitleMode: "busy", KeySuffix: "-z2g"}

	got := Normalize(ev, opts)
	if got.ExternalID != "z123-z2g" {
		t.Fatalf("expected correlation key z123-z2g, got %q", got.ExternalID)
	}
	if got.Title != "Busy" {
		t.Fatalf("expected placeholder title Busy, got %q", got.Title)
	}
	if !got.Marker {
		t.Fatalf("expected private marker set")
	}
	if !got.Start.Equal(ev.Start) || !got.End.Equal(ev.End) {
		t.Fatalf("expected start/end mirrored, got %v -> %v", got.Start, got.End)
	}
}

func TestNormalizeOriginalTitlePassThrough(t *testing.T) {
	ev := source.Event{
		ID:    "a1",
		Title: "Standup",
		Start: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC),
	}
	got := Normalize(ev, Options{TitleMode: "original", KeySuffix: "-m"})
	if got.Title != "Standup" {
		t.Fatalf("expected title pass-through, got %q", got.Title)
	}
}

func TestNormalizeEmptyTitleFallsBackToBusy(t *testing.T) {
	ev := source.Event{
		ID:    "a2",
		Start: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	got := Normalize(ev, Options{TitleMode: "original", KeySuffix: "-m"})
	if got.Title != PlaceholderTitle {
		t.Fatalf("expected fallback title %q, got %q", PlaceholderTitle, got.Title)
	}
}

func TestNormalizeAllDayExclusiveEnd(t *testing.T) {
	ev := source.Event{
		ID:     "h1",
		Title:  "Holiday",
		AllDay: true,
		Start:  time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
	}
	got := Normalize(ev, Options{TitleMode: "original", KeySuffix: "-m"})
	if !got.AllDay {
		t.Fatalf("expected all-day event")
	}
	if got.Start.Format("2006-01-02") != "2026-02-11" {
		t.Fatalf("wrong start date: %v", got.Start)
	}
	if got.End.Format("2006-01-02") != "2026-02-12" {
		t.Fatalf("expected exclusive end 2026-02-12, got %v", got.End)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	ev := source.Event{
		ID:          "d1",
		Title:       "Sync",
		Location:    "https://meet.example.com/x",
		Description: "agenda",
		Start:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	opts := Options{TitleMode: "busy", KeySuffix: "-z2g", Reminders: []Reminder{{Method: "popup", Minutes: 5}}}

	a := Normalize(ev, opts)
	b := Normalize(ev, opts)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("normalization is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestNormalizeJoinLinkSurfaced(t *testing.T) {
	ev := source.Event{
		ID:          "j1",
		Title:       "Call",
		Location:    "https://meet.example.com/abc",
		Description: "notes",
		Start:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	got := Normalize(ev, Options{TitleMode: "busy", KeySuffix: "-m"})
	want := "Join: https://meet.example.com/abc\n\nnotes"
	if got.Description != want {
		t.Fatalf("expected join link surfaced, got %q", got.Description)
	}
}

func TestParseRemindersDefault(t *testing.T) {
	for _, spec := range []string{"", "default", "  DEFAULT "} {
		got, err := ParseReminders(spec)
		if err != nil {
			t.Fatalf("ParseReminders(%q) failed: %v", spec, err)
		}
		if !reflect.DeepEqual(got, DefaultReminders) {
			t.Fatalf("ParseReminders(%q) = %+v, want default", spec, got)
		}
	}
}

func TestParseRemindersOverrides(t *testing.T) {
	got, err := ParseReminders("popup:10,email:30")
	if err != nil {
		t.Fatalf("ParseReminders failed: %v", err)
	}
	want := []Reminder{{Method: "popup", Minutes: 10}, {Method: "email", Minutes: 30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseRemindersRejectsBadInput(t *testing.T) {
	for _, spec := range []string{"popup", "sms:10", "popup:abc", "popup:-5"} {
		if _, err := ParseReminders(spec); err == nil {
			t.Fatalf("expected error for %q", spec)
		}
	}
}
