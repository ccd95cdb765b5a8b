package alert

import (
	"time"
)

// Action is the side effect the state machine asks the caller to perform.
type Action int

const (
	ActionNone Action = iota
	ActionAlert
	ActionRecovery
)

// Gating holds the conditions a failure alert must clear before it fires.
type Gating struct {
	// MinFailures is the consecutive-failure threshold.
	MinFailures int
	// RateHours is the minimum interval since the last sent alert.
	RateHours float64
	// HoursStart/HoursEnd bound the local-hour window in which alerts may
	// fire; end <= start wraps past midnight; both nil means unrestricted.
	HoursStart *int
	HoursEnd   *int
	// Location is the zone the window is evaluated in.
	Location *time.Location
}

// Next evaluates one scheduled run's outcome against the persisted state and
// returns the next state plus the notification to send.
//
//	OK         + success -> OK          (none)
//	OK         + failure -> FAILING(1)  (alert iff threshold <= 1 and gating passes)
//	FAILING(n) + failure -> FAILING(n+1)(alert iff n+1 >= threshold and gating passes)
//	FAILING(n) + success -> OK          (recovery; count reset, rate timestamp cleared)
//
// A suppressed alert still increments the stored failure count and last-error
// text but does not advance the rate-limit timestamp, so a later failure
// inside the allowed window can still fire. Delivery failures are the
// caller's concern and never alter the state returned here.
func Next(prev State, success bool, errMsg string, now time.Time, g Gating) (State, Action) {
	runAt := now

	if success {
		next := State{
			LastRun:             &runAt,
			LastStatus:          StatusOK,
			ConsecutiveFailures: 0,
			LastError:           "",
			LastAlertSentAt:     nil,
		}
		if prev.ConsecutiveFailures >= 1 {
			return next, ActionRecovery
		}
		return next, ActionNone
	}

	next := State{
		LastRun:             &runAt,
		LastStatus:          StatusError,
		ConsecutiveFailures: prev.ConsecutiveFailures + 1,
		LastError:           errMsg,
		LastAlertSentAt:     prev.LastAlertSentAt,
	}

	if shouldAlert(next.ConsecutiveFailures, prev.LastAlertSentAt, now, g) {
		sent := now
		next.LastAlertSentAt = &sent
		return next, ActionAlert
	}
	return next, ActionNone
}

func shouldAlert(failures int, lastAlert *time.Time, now time.Time, g Gating) bool {
	if failures < g.MinFailures {
		return false
	}

	if lastAlert != nil && g.RateHours > 0 {
		elapsed := now.Sub(*lastAlert).Hours()
		if elapsed < g.RateHours {
			return false
		}
	}

	return hourAllowed(now, g)
}

// hourAllowed checks the local-hour window. Start defaults to 0 and end to 24
// when only one bound is configured. End <= start wraps past midnight.
func hourAllowed(now time.Time, g Gating) bool {
	if g.HoursStart == nil && g.HoursEnd == nil {
		return true
	}

	start, end := 0, 24
	if g.HoursStart != nil {
		start = *g.HoursStart
	}
	if g.HoursEnd != nil {
		end = *g.HoursEnd
	}

	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	hour := now.In(loc).Hour()

	if start <= end {
		return hour >= start && hour < end
	}
	// Wrapping window, e.g. 22 -> 6 covers late evening and early morning.
	return hour >= start || hour < end
}
