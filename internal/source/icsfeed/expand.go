package icsfeed

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"calmirror/internal/log"
	"calmirror/internal/source"
)

// maxOccurrencesPerEvent caps expansion so a runaway RRULE cannot flood the
// destination calendar.
const maxOccurrencesPerEvent = 5000

// expand flattens parsed VEVENTs into per-occurrence source events within
// [since, until). Occurrence ids are UID for single events and
// UID/originalStart for recurring instances, so a rescheduled override keeps
// its identity.
func expand(events []parsedEvent, since, until time.Time) []source.Event {
	baseByUID := make(map[string][]parsedEvent)
	overridesByUID := make(map[string][]parsedEvent)
	order := make([]string, 0)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	var out []source.Event
	for _, uid := range order {
		for _, ev := range baseByUID[uid] {
			out = append(out, expandEvent(ev, overridesByUID[uid], since, until)...)
		}
	}
	return out
}

func expandEvent(ev parsedEvent, overrides []parsedEvent, since, until time.Time) []source.Event {
	if ev.RawRRule == "" {
		return expandSingle(ev, overrides, since, until)
	}
	return expandRecurring(ev, overrides, since, until)
}

func expandSingle(ev parsedEvent, overrides []parsedEvent, since, until time.Time) []source.Event {
	if !overlaps(ev, since, until) {
		return nil
	}

	occ := ev
	if o, ok := overrideForStart(overrides, ev.Start); ok {
		occ = o
	}
	return []source.Event{makeEvent(occ, ev.UID, occ.Start, occ.End)}
}

func expandRecurring(ev parsedEvent, overrides []parsedEvent, since, until time.Time) []source.Event {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		log.Error("ics rrule skipped", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := since.In(ev.Start.Location())
	rangeEnd := until.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > maxOccurrencesPerEvent {
		log.Error("ics expansion truncated", errors.New("max occurrences reached"), "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	out := make([]source.Event, 0, len(occTimes))
	for _, occStart := range occTimes {
		// The window is half-open: an occurrence starting exactly at the upper
		// bound belongs to the next window.
		if !occStart.Before(rangeEnd) {
			continue
		}
		var occEnd time.Time
		if ev.AllDay {
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date
		} else {
			occEnd = occStart.Add(ev.End.Sub(ev.Start))
		}

		// Identity is the un-overridden occurrence start so a rescheduled
		// override maps to the same mirror block.
		id := ev.UID + "/" + occStart.UTC().Format(time.RFC3339)

		occEv := ev
		start, end := occStart, occEnd
		if o, ok := overrideForStart(overrides, occStart); ok {
			occEv = o
			start, end = o.Start, o.End
		}
		out = append(out, makeEvent(occEv, id, start, end))
	}
	return out
}

func overrideForStart(overrides []parsedEvent, start time.Time) (parsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return parsedEvent{}, false
}

func makeEvent(ev parsedEvent, id string, start, end time.Time) source.Event {
	return source.Event{
		ID:          id,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
		Cancelled:   ev.Cancelled,
	}
}

// overlaps reports whether the event intersects the half-open window
// [since, until). All-day events cover their inclusive end date entirely.
// Boundary touches (event ends at since, or starts at until) do not count,
// so adjacent windows never claim the same occurrence twice.
func overlaps(ev parsedEvent, since, until time.Time) bool {
	end := ev.End
	if ev.AllDay {
		end = end.AddDate(0, 0, 1)
	}
	return ev.Start.Before(until) && end.After(since)
}
