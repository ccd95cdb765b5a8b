// Package gcal implements the destination contract against the Google
// Calendar v3 API.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calmirror/internal/mirror"
)

// Private extended property keys identifying system-managed mirror blocks.
const (
	markerKey   = "mirror"
	markerValue = "1"
	externalKey = "external_id"
	sourceKey   = "source_uid"
)

var scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// Client wraps the Calendar API for one destination calendar. It implements
// mirror.Destination.
type Client struct {
	svc        *calendar.Service
	calendarID string
}

// New builds a client from an authorized-user token file (written by the
// OAuth flow; refresh happens automatically through the token source).
func New(ctx context.Context, tokenFile, calendarID string) (*Client, error) {
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read google token: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse google token: %w", err)
	}
	svc, err := calendar.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID}, nil
}

// List returns the mirror blocks (marker-bearing events) within [since, until).
func (c *Client) List(ctx context.Context, since, until time.Time) ([]mirror.Existing, error) {
	var out []mirror.Existing
	pageToken := ""
	for {
		call := c.svc.Events.List(c.calendarID).
			Context(ctx).
			TimeMin(since.UTC().Format(time.RFC3339)).
			TimeMax(until.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			PrivateExtendedProperty(markerKey + "=" + markerValue).
			MaxResults(250)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list destination events: %w", err)
		}
		for _, item := range resp.Items {
			out = append(out, fromAPI(item))
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, ev mirror.MirroredEvent) error {
	_, err := c.svc.Events.Insert(c.calendarID, toAPI(ev)).Context(ctx).Do()
	return err
}

func (c *Client) Patch(ctx context.Context, handle string, ev mirror.MirroredEvent) error {
	_, err := c.svc.Events.Patch(c.calendarID, handle, toAPI(ev)).Context(ctx).Do()
	return err
}

func (c *Client) Delete(ctx context.Context, handle string) error {
	return c.svc.Events.Delete(c.calendarID, handle).Context(ctx).Do()
}

// CalendarEntry is a (id, name) pair from the account's calendar list.
type CalendarEntry struct {
	ID   string
	Name string
}

// ListCalendars supports the verify command: it proves the token and scopes
// work before a scheduled deployment goes live.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarEntry, error) {
	var out []CalendarEntry
	pageToken := ""
	for {
		call := c.svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			out = append(out, CalendarEntry{ID: item.Id, Name: item.Summary})
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return out, nil
}

// toAPI maps a mirror block to the API event body. Attendees are never set.
func toAPI(ev mirror.MirroredEvent) *calendar.Event {
	body := &calendar.Event{
		Summary:      ev.Title,
		Description:  ev.Description,
		Location:     ev.Location,
		Visibility:   "private",
		Transparency: "opaque",
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       toAPIReminders(ev.Reminders),
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				markerKey:   markerValue,
				externalKey: ev.ExternalID,
				sourceKey:   ev.SourceID,
			},
		},
	}

	if ev.AllDay {
		body.Start = &calendar.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		body.End = &calendar.EventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		body.Start = &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)}
		body.End = &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339)}
	}
	return body
}

func toAPIReminders(rs []mirror.Reminder) []*calendar.EventReminder {
	out := make([]*calendar.EventReminder, 0, len(rs))
	for _, r := range rs {
		out = append(out, &calendar.EventReminder{Method: r.Method, Minutes: int64(r.Minutes)})
	}
	return out
}

// fromAPI extracts the normalized view of a destination event for diffing.
func fromAPI(item *calendar.Event) mirror.Existing {
	ev := mirror.MirroredEvent{
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}

	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		priv := item.ExtendedProperties.Private
		ev.Marker = priv[markerKey] == markerValue
		ev.ExternalID = priv[externalKey]
		ev.SourceID = priv[sourceKey]
	}

	if item.Start != nil && item.Start.Date != "" {
		ev.AllDay = true
		ev.Start, _ = time.ParseInLocation("2006-01-02", item.Start.Date, time.UTC)
		if item.End != nil {
			ev.End, _ = time.ParseInLocation("2006-01-02", item.End.Date, time.UTC)
		}
	} else {
		if item.Start != nil {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				ev.Start = t.UTC().Truncate(time.Second)
			}
		}
		if item.End != nil {
			if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				ev.End = t.UTC().Truncate(time.Second)
			}
		}
	}

	if item.Reminders != nil && !item.Reminders.UseDefault {
		for _, r := range item.Reminders.Overrides {
			ev.Reminders = append(ev.Reminders, mirror.Reminder{Method: r.Method, Minutes: int(r.Minutes)})
		}
	}

	return mirror.Existing{Handle: item.Id, Event: ev}
}

// IsRetryable classifies destination errors for the executor's retry policy:
// rate limits and server errors retry, everything else (permission, invalid
// payload) aborts the item.
func IsRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 || gerr.Code >= 500 {
			return true
		}
		if gerr.Code == 403 {
			for _, e := range gerr.Errors {
				if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
					return true
				}
			}
		}
		return false
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
