// Package zoho reads events from the Zoho Calendar API. The provider caps
// range queries at 31 days, so fetches are chunked with a one-day overlap
// and de-duplicated by UID.
package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"calmirror/internal/config"
	"calmirror/internal/log"
	"calmirror/internal/source"
)

const (
	chunkDays   = 28
	overlapDays = 1
)

// Client implements source.Reader against the Zoho Calendar REST API.
type Client struct {
	http        *http.Client
	tokens      oauth2.TokenSource
	baseURL     string
	calendarUID string
}

// New builds a Zoho client. The refresh token is exchanged for short-lived
// access tokens on demand; oauth2 caches them until near expiry.
func New(ctx context.Context, cfg config.ZohoConfig) *Client {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: strings.TrimRight(cfg.AccountsHost, "/") + "/oauth/v2/token",
		},
	}
	return &Client{
		http:        &http.Client{Timeout: 45 * time.Second},
		tokens:      conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}),
		baseURL:     "https://calendar.zoho.com/api/v1",
		calendarUID: cfg.CalendarUID,
	}
}

// Events fetches instance-expanded events in [since, until), chunked to the
// provider's range limit and de-duplicated across chunk overlaps.
func (c *Client) Events(ctx context.Context, since, until time.Time) ([]source.Event, error) {
	var all []source.Event
	for _, ch := range chunkRange(since, until) {
		evs, err := c.listChunk(ctx, ch.start, ch.end)
		if err != nil {
			return nil, err
		}
		all = append(all, evs...)
		log.Debug("zoho chunk fetched", "start", ch.start.Format(time.RFC3339), "end", ch.end.Format(time.RFC3339), "events", len(evs))
	}

	seen := make(map[string]bool, len(all))
	deduped := all[:0]
	for _, ev := range all {
		if seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		deduped = append(deduped, ev)
	}
	log.Info("zoho events fetched", "total", len(all), "unique", len(deduped))
	return deduped, nil
}

type chunk struct {
	start, end time.Time
}

// chunkRange covers [start, end) with fixed-length chunks overlapping by one
// day, always making forward progress.
func chunkRange(start, end time.Time) []chunk {
	if !end.After(start) {
		return nil
	}

	step := time.Duration(chunkDays) * 24 * time.Hour
	overlap := time.Duration(overlapDays) * 24 * time.Hour

	var out []chunk
	cur := start
	for {
		next := cur.Add(step)
		if !next.Before(end) {
			out = append(out, chunk{start: cur, end: end})
			return out
		}
		out = append(out, chunk{start: cur, end: next})

		advanced := next.Add(-overlap)
		if !advanced.After(cur) {
			advanced = cur.Add(time.Second)
		}
		cur = advanced
	}
}

type eventsResponse struct {
	Events []eventPayload `json:"events"`
}

type eventPayload struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`
	IsAllDay    bool   `json:"isallday"`
	Status      string `json:"status"`
	DateAndTime struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"dateandtime"`
	// Message is set on non-event records like {"message":"No events found."}.
	Message string `json:"message"`
}

func (c *Client) listChunk(ctx context.Context, start, end time.Time) ([]source.Event, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, &source.AuthError{Provider: "zoho", Err: err}
	}

	// Zoho expects a compact JSON range param with YYYYMMDD dates and rejects
	// extra params.
	rangeParam, err := json.Marshal(map[string]string{
		"start": start.UTC().Format("20060102"),
		"end":   end.UTC().Format("20060102"),
	})
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("range", string(rangeParam))
	q.Set("byinstance", "true")

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(c.calendarUID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zoho list events: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &source.AuthError{Provider: "zoho", Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zoho list events: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed eventsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("zoho list events: bad payload: %w", err)
	}

	out := make([]source.Event, 0, len(parsed.Events))
	for _, item := range parsed.Events {
		if item.UID == "" {
			if item.Message != "" {
				log.Debug("zoho message record", "message", item.Message)
			}
			continue
		}
		ev, err := toSourceEvent(item)
		if err != nil {
			log.Error("zoho event skipped", err, "uid", item.UID)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func toSourceEvent(item eventPayload) (source.Event, error) {
	start, err := parseZohoTime(item.DateAndTime.Start)
	if err != nil {
		return source.Event{}, fmt.Errorf("bad start %q: %w", item.DateAndTime.Start, err)
	}
	end, err := parseZohoTime(item.DateAndTime.End)
	if err != nil {
		return source.Event{}, fmt.Errorf("bad end %q: %w", item.DateAndTime.End, err)
	}

	// Zoho's all-day end is the last covered date (inclusive); the normalizer
	// produces the exclusive destination end.
	allDay := item.IsAllDay || isDateOnly(item.DateAndTime.Start)

	return source.Event{
		ID:          item.UID,
		Title:       item.Title,
		Location:    item.Location,
		Description: item.Description,
		AllDay:      allDay,
		Start:       start,
		End:         end,
		Cancelled:   strings.EqualFold(item.Status, "cancelled"),
	}, nil
}

// parseZohoTime handles the formats the list endpoint emits: zoned compact
// date-times like 20260211T140000-0600, UTC ones ending in Z, and date-only
// 20260211 for all-day events.
func parseZohoTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, fmt.Errorf("empty time value")
	case isDateOnly(v):
		return time.ParseInLocation("20060102", v, time.UTC)
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	default:
		return time.Parse("20060102T150405-0700", v)
	}
}

func isDateOnly(v string) bool {
	return len(v) == 8 && !strings.Contains(v, "T")
}

// CalendarEntry is a (uid, name) pair from the account's calendar list.
type CalendarEntry struct {
	UID  string
	Name string
}

// ListCalendars supports the verify command.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarEntry, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, &source.AuthError{Provider: "zoho", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/calendars", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &source.AuthError{Provider: "zoho", Err: fmt.Errorf("%s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zoho list calendars: %s", resp.Status)
	}

	var parsed struct {
		Calendars []struct {
			UID  string `json:"calendar_uid"`
			Name string `json:"calendar_name"`
		} `json:"calendars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]CalendarEntry, 0, len(parsed.Calendars))
	for _, cal := range parsed.Calendars {
		out = append(out, CalendarEntry{UID: cal.UID, Name: cal.Name})
	}
	return out, nil
}
