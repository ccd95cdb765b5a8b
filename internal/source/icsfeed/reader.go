package icsfeed

import (
	"context"
	"time"

	"calmirror/internal/config"
	"calmirror/internal/log"
	"calmirror/internal/source"
)

// Reader implements source.Reader over a single ICS subscription.
type Reader struct {
	url     string
	fetcher *fetcher
}

func New(cfg config.ICSConfig) *Reader {
	return &Reader{
		url:     cfg.URL,
		fetcher: newFetcher(cfg.CacheDir),
	}
}

// Events fetches the feed, parses it, and expands recurrences into flattened
// per-occurrence events within [since, until).
func (r *Reader) Events(ctx context.Context, since, until time.Time) ([]source.Event, error) {
	body, err := r.fetcher.fetch(ctx, r.url)
	if err != nil {
		return nil, err
	}

	parsed, err := parseICS(body)
	if err != nil {
		return nil, err
	}

	events := expand(parsed, since, until)
	log.Info("ics events expanded", "url", redactURL(r.url), "vevents", len(parsed), "occurrences", len(events))
	return events, nil
}
