package core

import "time"

// PacingMarker records the last admitted dispatch for one verb within a scope.
//
// Scope separates accounts sharing one marker store; it is derived from the
// API token and never contains the token itself.
type PacingMarker struct {
	Scope          string    `json:"scope"`
	Verb           string    `json:"verb"`
	LastDispatchAt time.Time `json:"last_dispatch_at"`
}

// Remaining returns how long a dispatch at now must still wait when the last
// admitted one happened at last. Zero means admit. A zero last always admits.
func Remaining(last, now time.Time, interval time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	if elapsed := now.Sub(last); elapsed < interval {
		return interval - elapsed
	}
	return 0
}
