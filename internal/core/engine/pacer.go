package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onecloud/onecloud/internal/core"
)

// Pacer enforces a minimum spacing between dispatches of the same HTTP verb.
type Pacer struct {
	Store     MarkerStore
	Intervals map[string]time.Duration
	Clock     func() time.Time
	Scope     string

	mu      sync.Mutex
	markers map[string]time.Time
}

// MarkerStore persists pacing markers so spacing survives process restarts
// and is shared between processes.
//
// TryAdmit must check the stored marker and move it to now in one atomic
// step: of several callers racing inside one interval, exactly one is
// admitted. When rejected, wait is the time left until verb is allowed.
type MarkerStore interface {
	TryAdmit(ctx context.Context, scope, verb string, now time.Time, interval time.Duration) (admitted bool, wait time.Duration, err error)
}

// DefaultIntervals mirrors the provider's published per-verb request spacing.
var DefaultIntervals = map[string]time.Duration{
	http.MethodGet:    1500 * time.Millisecond,
	http.MethodPost:   10 * time.Second,
	http.MethodPut:    10 * time.Second,
	http.MethodDelete: 10 * time.Second,
}

// ErrUnsupportedVerb is returned for verbs without a configured interval.
var ErrUnsupportedVerb = errors.New("unsupported verb")

// NewPacer returns a pacer using the default intervals.
func NewPacer(store MarkerStore, scope string) *Pacer {
	return &Pacer{Store: store, Scope: scope}
}

// Admit checks whether a dispatch of verb may proceed now and, if so, records
// it. When rejected, wait is the remaining time until the verb is allowed.
//
// Store failures do not block a dispatch: the decision is still returned
// together with the error so callers can log it.
func (p *Pacer) Admit(ctx context.Context, verb string) (bool, time.Duration, error) {
	if p == nil {
		return true, 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	verb = normalizeVerb(verb)

	p.mu.Lock()
	defer p.mu.Unlock()

	interval, ok := p.Interval(verb)
	if !ok {
		return false, 0, fmt.Errorf("%w: %q", ErrUnsupportedVerb, verb)
	}

	now := p.now()
	if wait := core.Remaining(p.markers[verb], now, interval); wait > 0 {
		return false, wait, nil
	}

	var storeErr error
	if p.Store != nil {
		admitted, wait, err := p.Store.TryAdmit(ctx, p.Scope, verb, now, interval)
		switch {
		case err != nil:
			// Store outages do not block; the in-process marker still paces.
			storeErr = fmt.Errorf("admit pacing marker: %w", err)
		case !admitted:
			return false, wait, nil
		}
	}

	if p.markers == nil {
		p.markers = make(map[string]time.Time, len(DefaultIntervals))
	}
	p.markers[verb] = now
	return true, 0, storeErr
}

// Interval returns the configured spacing for verb.
func (p *Pacer) Interval(verb string) (time.Duration, bool) {
	verb = normalizeVerb(verb)
	if p != nil && p.Intervals != nil {
		if interval, ok := p.Intervals[verb]; ok {
			return interval, true
		}
	}
	interval, ok := DefaultIntervals[verb]
	return interval, ok
}

// ApplyOverrides merges per-verb interval overrides. Non-positive values and
// verbs outside the supported set are ignored.
func (p *Pacer) ApplyOverrides(overrides map[string]time.Duration) {
	if p == nil || len(overrides) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Intervals == nil {
		p.Intervals = make(map[string]time.Duration, len(DefaultIntervals))
		for verb, interval := range DefaultIntervals {
			p.Intervals[verb] = interval
		}
	}

	for verb, interval := range overrides {
		verb = normalizeVerb(verb)
		if _, known := DefaultIntervals[verb]; !known || interval <= 0 {
			continue
		}
		p.Intervals[verb] = interval
	}
}

// Markers returns the in-process markers, sorted by verb.
func (p *Pacer) Markers() []core.PacingMarker {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]core.PacingMarker, 0, len(p.markers))
	for verb, at := range p.markers {
		out = append(out, core.PacingMarker{Scope: p.Scope, Verb: verb, LastDispatchAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out
}

func (p *Pacer) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

func normalizeVerb(verb string) string {
	return strings.ToUpper(strings.TrimSpace(verb))
}
