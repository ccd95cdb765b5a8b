// Package mirror implements the reconciliation core: normalizing source
// events into mirror blocks, diffing them against the destination, and
// applying the resulting plan.
package mirror

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Reminder is a single reminder override on a mirrored event.
type Reminder struct {
	Method  string
	Minutes int
}

// MirroredEvent is the canonical destination-event value derived from one
// source event. For a fixed configuration the same source event always yields
// a byte-identical MirroredEvent. It deliberately has no attendee field:
// mirrored events are structurally attendee-free.
type MirroredEvent struct {
	// ExternalID is the correlation key linking the mirror block back to its
	// source event (source id + configured suffix).
	ExternalID string
	// SourceID is the raw source event id, stored on the destination event as
	// a breadcrumb.
	SourceID string

	Title       string
	Description string
	Location    string

	// AllDay events use date-only Start/End with End exclusive (the day after
	// the last covered date). Timed events use UTC instants truncated to
	// seconds.
	AllDay bool
	Start  time.Time
	End    time.Time

	Reminders []Reminder

	// Marker is the private system-managed tag. The normalizer always sets it;
	// destination events without it are never patch/delete candidates.
	Marker bool
}

// Existing is a destination event as seen by the planner: the resource handle
// plus the normalized view of the fields the mirror controls.
type Existing struct {
	// Handle is the destination's resource id used for patch/delete.
	Handle string
	Event  MirroredEvent
}

// remindersSignature renders reminders as a stable comparable string
// ("email:30,popup:10") so plan diffs show the full picture.
func remindersSignature(rs []Reminder) string {
	if len(rs) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, strings.ToLower(r.Method)+":"+strconv.Itoa(r.Minutes))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// whenSignature renders a start/end instant as a stable comparable string.
func whenSignature(allDay bool, t time.Time) string {
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// compareFields returns the normalized field map used for patch-vs-skip
// decisions. Only fields the normalizer controls appear here;
// destination-assigned metadata (resource id, revision, creation time) never
// participates.
func compareFields(e MirroredEvent) map[string]string {
	return map[string]string{
		"title":       e.Title,
		"description": e.Description,
		"location":    e.Location,
		"start":       whenSignature(e.AllDay, e.Start),
		"end":         whenSignature(e.AllDay, e.End),
		"reminders":   remindersSignature(e.Reminders),
	}
}

// FieldDiff records one changed field for plan reporting.
type FieldDiff struct {
	Field string
	Old   string
	New   string
}

func (d FieldDiff) String() string {
	return fmt.Sprintf("%s: %s -> %s", d.Field, clip(d.Old), clip(d.New))
}

func clip(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	const maxLen = 160
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so the cut never produces invalid UTF-8.
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// diffEvents compares the controlled fields of two mirrored events.
func diffEvents(existing, desired MirroredEvent) []FieldDiff {
	a := compareFields(existing)
	b := compareFields(desired)

	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []FieldDiff
	for _, k := range keys {
		if a[k] != b[k] {
			diffs = append(diffs, FieldDiff{Field: k, Old: a[k], New: b[k]})
		}
	}
	return diffs
}
