package mirror

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calmirror/internal/config"
	"calmirror/internal/source"
)

// PlaceholderTitle is the fixed non-identifying label used in busy title mode.
const PlaceholderTitle = "Busy"

// DefaultReminders is the single reminder applied when none are configured.
var DefaultReminders = []Reminder{{Method: "popup", Minutes: 10}}

// Options is the fixed normalizer configuration. Build it once from config
// and reuse it for every event so normalization stays a pure function.
type Options struct {
	TitleMode string
	KeySuffix string
	Reminders []Reminder
}

// ParseReminders parses a configured reminder list like "popup:10,email:30".
// Empty or "default" yields DefaultReminders.
func ParseReminders(spec string) ([]Reminder, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" || s == "default" {
		return DefaultReminders, nil
	}

	var out []Reminder
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		method, minutesStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("bad reminder entry %q (expected method:minutes)", part)
		}
		method = strings.TrimSpace(method)
		if method != "popup" && method != "email" {
			return nil, fmt.Errorf("bad reminder method %q (use popup or email)", method)
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(minutesStr))
		if err != nil || minutes < 0 {
			return nil, fmt.Errorf("bad reminder minutes in %q", part)
		}
		out = append(out, Reminder{Method: method, Minutes: minutes})
	}
	if len(out) == 0 {
		return DefaultReminders, nil
	}
	return out, nil
}

// Normalize maps one source event into its canonical mirror block. Cancelled
// events must be filtered out by the caller before this step.
func Normalize(ev source.Event, opts Options) MirroredEvent {
	title := strings.TrimSpace(ev.Title)
	if opts.TitleMode == config.TitleModeBusy || title == "" {
		title = PlaceholderTitle
	}

	location := strings.TrimSpace(ev.Location)
	desc := strings.TrimSpace(ev.Description)
	// Surface the join link at the top of the description for quick access.
	if location != "" && !strings.Contains(desc, "Join:") {
		if desc == "" {
			desc = "Join: " + location
		} else {
			desc = "Join: " + location + "\n\n" + desc
		}
	}

	reminders := opts.Reminders
	if len(reminders) == 0 {
		reminders = DefaultReminders
	}

	out := MirroredEvent{
		ExternalID:  ev.ID + opts.KeySuffix,
		SourceID:    ev.ID,
		Title:       title,
		Description: desc,
		Location:    location,
		Reminders:   reminders,
		Marker:      true,
	}

	if ev.AllDay {
		out.AllDay = true
		out.Start = dateOnly(ev.Start)
		// Destination all-day ends are exclusive: the day after the last
		// covered date.
		out.End = dateOnly(ev.End).AddDate(0, 0, 1)
	} else {
		out.Start = ev.Start.UTC().Truncate(time.Second)
		out.End = ev.End.UTC().Truncate(time.Second)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
