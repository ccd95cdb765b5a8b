package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier delivers failure and recovery documents to a single webhook URL.
// Delivery is best-effort: callers log errors and move on; a failed delivery
// never changes a run's exit status or the computed next state.
type Notifier struct {
	URL      string
	Client   *http.Client
	Location *time.Location
}

// NewNotifier returns a Notifier for url. An empty url disables delivery.
func NewNotifier(url string, loc *time.Location) *Notifier {
	return &Notifier{
		URL:      url,
		Client:   &http.Client{Timeout: 30 * time.Second},
		Location: loc,
	}
}

// Configured reports whether a webhook URL is set.
func (n *Notifier) Configured() bool { return n != nil && n.URL != "" }

type alertPayload struct {
	Event               string  `json:"event"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	LastError           *string `json:"last_error"`
	LastRun             string  `json:"last_run"`
	Message             string  `json:"message"`
}

type recoveryPayload struct {
	Event   string `json:"event"`
	LastRun string `json:"last_run"`
	Message string `json:"message"`
}

// SendAlert posts the failure document for the given state.
func (n *Notifier) SendAlert(ctx context.Context, st State) error {
	var lastErr *string
	if st.LastError != "" {
		msg := st.LastError
		lastErr = &msg
	}
	p := alertPayload{
		Event:               "alert",
		ConsecutiveFailures: st.ConsecutiveFailures,
		LastError:           lastErr,
		LastRun:             n.formatLastRun(st.LastRun),
		Message:             fmt.Sprintf("calmirror run failed %d time(s): %s", st.ConsecutiveFailures, st.LastError),
	}
	return n.post(ctx, p)
}

// SendRecovery posts the one-time all-clear document.
func (n *Notifier) SendRecovery(ctx context.Context, lastRun *time.Time) error {
	p := recoveryPayload{
		Event:   "recovery",
		LastRun: n.formatLastRun(lastRun),
		Message: "calmirror run succeeded after previous failure(s)",
	}
	return n.post(ctx, p)
}

func (n *Notifier) formatLastRun(t *time.Time) string {
	if t == nil {
		return ""
	}
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Truncate(time.Second).Format(time.RFC3339)
}

func (n *Notifier) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
