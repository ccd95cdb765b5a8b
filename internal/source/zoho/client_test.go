package zoho

import (
	"testing"
	"time"
)

func TestChunkRangeSingleChunk(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)

	chunks := chunkRange(start, end)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk for 10 days, got %d", len(chunks))
	}
	if !chunks[0].start.Equal(start) || !chunks[0].end.Equal(end) {
		t.Fatalf("chunk must span the whole range, got %+v", chunks[0])
	}
}

func TestChunkRangeCoversWithOverlap(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 90)

	chunks := chunkRange(start, end)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for 90 days, got %d", len(chunks))
	}
	if !chunks[0].start.Equal(start) {
		t.Fatalf("first chunk must start at range start, got %v", chunks[0].start)
	}
	if !chunks[len(chunks)-1].end.Equal(end) {
		t.Fatalf("last chunk must end at range end, got %v", chunks[len(chunks)-1].end)
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.start.After(prev.end) {
			t.Fatalf("gap between chunk %d and %d: %v -> %v", i-1, i, prev.end, cur.start)
		}
		if !cur.start.After(prev.start) {
			t.Fatalf("chunk %d made no forward progress", i)
		}
		if d := cur.end.Sub(cur.start); d > time.Duration(chunkDays)*24*time.Hour {
			t.Fatalf("chunk %d exceeds range limit: %v", i, d)
		}
	}
}

func TestChunkRangeEmpty(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if chunks := chunkRange(now, now); chunks != nil {
		t.Fatalf("empty range must yield no chunks, got %+v", chunks)
	}
	if chunks := chunkRange(now, now.Add(-time.Hour)); chunks != nil {
		t.Fatalf("inverted range must yield no chunks, got %+v", chunks)
	}
}

func TestParseZohoTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"20260211", time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)},
		{"20260211T140000Z", time.Date(2026, 2, 11, 14, 0, 0, 0, time.UTC)},
		{"20260211T140000-0600", time.Date(2026, 2, 11, 20, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := parseZohoTime(c.in)
		if err != nil {
			t.Fatalf("parseZohoTime(%q) failed: %v", c.in, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("parseZohoTime(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	for _, in := range []string{"", "2026-02-11", "20260211T14"} {
		if _, err := parseZohoTime(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestToSourceEventTimed(t *testing.T) {
	var item eventPayload
	item.UID = "z123"
	item.Title = "Doctor"
	item.Location = "Clinic"
	item.DateAndTime.Start = "20260301T100000Z"
	item.DateAndTime.End = "20260301T110000Z"

	ev, err := toSourceEvent(item)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if ev.ID != "z123" || ev.Title != "Doctor" || ev.Location != "Clinic" {
		t.Fatalf("fields not carried: %+v", ev)
	}
	if ev.AllDay {
		t.Fatalf("timed event flagged all-day")
	}
	if ev.Cancelled {
		t.Fatalf("event wrongly flagged cancelled")
	}
}

func TestToSourceEventAllDayFromDateOnly(t *testing.T) {
	var item eventPayload
	item.UID = "h1"
	item.DateAndTime.Start = "20260211"
	item.DateAndTime.End = "20260211"

	ev, err := toSourceEvent(item)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !ev.AllDay {
		t.Fatalf("date-only times must imply all-day")
	}
	if !ev.Start.Equal(time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("wrong start: %v", ev.Start)
	}
}

func TestToSourceEventCancelledStatus(t *testing.T) {
	var item eventPayload
	item.UID = "c1"
	item.Status = "CANCELLED"
	item.DateAndTime.Start = "20260301T100000Z"
	item.DateAndTime.End = "20260301T110000Z"

	ev, err := toSourceEvent(item)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !ev.Cancelled {
		t.Fatalf("cancelled status not detected")
	}
}

func TestToSourceEventRejectsBadTimes(t *testing.T) {
	var item eventPayload
	item.UID = "b1"
	item.DateAndTime.Start = "not-a-time"
	item.DateAndTime.End = "20260301T110000Z"
	if _, err := toSourceEvent(item); err == nil {
		t.Fatalf("expected error for bad start")
	}
}
