// Package liveness decides whether a controller is connected from the age of its
// last accepted telemetry.
package liveness

import "time"

// DefaultWindow is deliberately short next to the dashboard's 2 s polling, so a
// stale dashboard and a silent controller stay distinguishable.
const DefaultWindow = 15 * time.Second

type Verdict struct {
	Connected bool
	// Delay is nil when no telemetry was ever recorded.
	Delay *time.Duration
}

// Evaluate: connected iff now-last <= window. A nil last means "no data",
// which is its own state and never connected.
func Evaluate(now time.Time, last *time.Time, window time.Duration) Verdict {
	if last == nil || last.IsZero() {
		return Verdict{}
	}
	d := now.Sub(*last)
	if d < 0 {
		d = 0
	}
	return Verdict{Connected: d <= window, Delay: &d}
}

func IsConnected(now, last time.Time) bool {
	return Evaluate(now, &last, DefaultWindow).Connected
}
