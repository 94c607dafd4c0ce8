package integration

import (
	"context"
	"sync"
	"time"

	"github.com/onecloud/onecloud/internal/core"
)

// sharedMarkers stands in for a persistent marker store shared by processes.
type sharedMarkers struct {
	mu      sync.Mutex
	markers map[string]time.Time
}

func (s *sharedMarkers) TryAdmit(ctx context.Context, scope, verb string, now time.Time, interval time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope + "/" + verb
	if wait := core.Remaining(s.markers[key], now, interval); wait > 0 {
		return false, wait, nil
	}
	s.markers[key] = now
	return true, 0, nil
}
