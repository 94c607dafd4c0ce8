package engine

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onecloud/onecloud/internal/core"
)

// memoryMarkerStore is a shared store with a simulated round trip between
// reading and writing the marker, wide enough for racing pacers to overlap.
type memoryMarkerStore struct {
	mu        sync.Mutex
	markers   map[string]time.Time
	roundTrip time.Duration
	err       error
}

func (m *memoryMarkerStore) TryAdmit(ctx context.Context, scope, verb string, now time.Time, interval time.Duration) (bool, time.Duration, error) {
	if m.err != nil {
		return false, 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	time.Sleep(m.roundTrip)
	if wait := core.Remaining(m.markers[scope+"/"+verb], now, interval); wait > 0 {
		return false, wait, nil
	}
	if m.markers == nil {
		m.markers = make(map[string]time.Time)
	}
	m.markers[scope+"/"+verb] = now
	return true, 0, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestPacerFirstDispatchAlwaysAllowed(t *testing.T) {
	for _, verb := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(verb, func(t *testing.T) {
			clock := newFakeClock()
			pacer := &Pacer{Clock: clock.Now}

			allowed, wait, err := pacer.Admit(context.Background(), verb)
			require.NoError(t, err)
			require.True(t, allowed)
			require.Zero(t, wait)
		})
	}
}

func TestPacerRejectsWithinInterval(t *testing.T) {
	for verb, interval := range DefaultIntervals {
		t.Run(verb, func(t *testing.T) {
			clock := newFakeClock()
			pacer := &Pacer{Clock: clock.Now}

			allowed, _, err := pacer.Admit(context.Background(), verb)
			require.NoError(t, err)
			require.True(t, allowed)

			allowed, wait, err := pacer.Admit(context.Background(), verb)
			require.NoError(t, err)
			require.False(t, allowed)
			require.Equal(t, interval, wait)

			clock.Advance(interval / 3)
			allowed, wait, err = pacer.Admit(context.Background(), verb)
			require.NoError(t, err)
			require.False(t, allowed)
			require.Equal(t, interval-interval/3, wait)
		})
	}
}

func TestPacerAllowsAfterInterval(t *testing.T) {
	for verb, interval := range DefaultIntervals {
		t.Run(verb, func(t *testing.T) {
			clock := newFakeClock()
			pacer := &Pacer{Clock: clock.Now}

			allowed, _, err := pacer.Admit(context.Background(), verb)
			require.NoError(t, err)
			require.True(t, allowed)

			clock.Advance(interval + time.Millisecond)
			allowed, wait, err := pacer.Admit(context.Background(), verb)
			require.NoError(t, err)
			require.True(t, allowed)
			require.Zero(t, wait)
		})
	}
}

func TestPacerUpdatesMarkerOnEveryPass(t *testing.T) {
	clock := newFakeClock()
	pacer := &Pacer{Clock: clock.Now}
	ctx := context.Background()

	allowed, _, err := pacer.Admit(ctx, http.MethodGet)
	require.NoError(t, err)
	require.True(t, allowed)

	clock.Advance(2 * time.Second)
	allowed, _, err = pacer.Admit(ctx, http.MethodGet)
	require.NoError(t, err)
	require.True(t, allowed)

	// The second pass moved the marker, so one second later is still too soon.
	clock.Advance(time.Second)
	allowed, wait, err := pacer.Admit(ctx, http.MethodGet)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 500*time.Millisecond, wait)
}

func TestPacerVerbsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	pacer := &Pacer{Clock: clock.Now}
	ctx := context.Background()

	allowed, _, err := pacer.Admit(ctx, http.MethodPost)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = pacer.Admit(ctx, http.MethodGet)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = pacer.Admit(ctx, http.MethodDelete)
	require.NoError(t, err)
	require.True(t, allowed)

	markers := pacer.Markers()
	require.Len(t, markers, 3)
	require.Equal(t, http.MethodDelete, markers[0].Verb)
}

func TestPacerRejectsUnknownVerb(t *testing.T) {
	pacer := &Pacer{}

	allowed, _, err := pacer.Admit(context.Background(), http.MethodPatch)
	require.False(t, allowed)
	require.ErrorIs(t, err, ErrUnsupportedVerb)
}

func TestPacerNormalizesVerb(t *testing.T) {
	clock := newFakeClock()
	pacer := &Pacer{Clock: clock.Now}

	allowed, _, err := pacer.Admit(context.Background(), " get ")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = pacer.Admit(context.Background(), http.MethodGet)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestPacerHonorsStoredMarker(t *testing.T) {
	clock := newFakeClock()
	store := &memoryMarkerStore{}
	ctx := context.Background()

	first := &Pacer{Store: store, Scope: "acct", Clock: clock.Now}
	allowed, _, err := first.Admit(ctx, http.MethodPost)
	require.NoError(t, err)
	require.True(t, allowed)

	// A new pacer (e.g. a later CLI invocation) sees the persisted marker.
	clock.Advance(4 * time.Second)
	second := &Pacer{Store: store, Scope: "acct", Clock: clock.Now}
	allowed, wait, err := second.Admit(ctx, http.MethodPost)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 6*time.Second, wait)

	// Markers are scoped.
	other := &Pacer{Store: store, Scope: "other", Clock: clock.Now}
	allowed, _, err = other.Admit(ctx, http.MethodPost)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestPacerStoreErrorsDoNotBlock(t *testing.T) {
	clock := newFakeClock()
	store := &memoryMarkerStore{err: errors.New("disk full")}
	pacer := &Pacer{Store: store, Clock: clock.Now}

	allowed, wait, err := pacer.Admit(context.Background(), http.MethodGet)
	require.True(t, allowed)
	require.Zero(t, wait)
	require.ErrorContains(t, err, "admit pacing marker")
	require.ErrorContains(t, err, "disk full")

	// The in-memory marker still applies.
	allowed, _, err = pacer.Admit(context.Background(), http.MethodGet)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestPacersSharingStoreAdmitOnce(t *testing.T) {
	clock := newFakeClock()
	store := &memoryMarkerStore{roundTrip: time.Millisecond}

	const pacers = 8
	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
	)
	for i := 0; i < pacers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pacer := NewPacer(store, "acct")
			pacer.Clock = clock.Now
			ok, wait, err := pacer.Admit(context.Background(), http.MethodPost)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				admitted.Add(1)
			} else if wait != 10*time.Second {
				t.Errorf("wait = %s, want 10s", wait)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, admitted.Load())
}

func TestPacerApplyOverrides(t *testing.T) {
	clock := newFakeClock()
	pacer := &Pacer{Clock: clock.Now}

	pacer.ApplyOverrides(map[string]time.Duration{
		"get":   3 * time.Second,
		"PATCH": time.Second,
		"POST":  0,
	})

	interval, ok := pacer.Interval(http.MethodGet)
	require.True(t, ok)
	require.Equal(t, 3*time.Second, interval)

	interval, ok = pacer.Interval(http.MethodPost)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, interval)

	_, ok = pacer.Interval(http.MethodPatch)
	require.False(t, ok)

	// Defaults are untouched.
	require.Equal(t, 1500*time.Millisecond, DefaultIntervals[http.MethodGet])
}

func TestNilPacerAllowsEverything(t *testing.T) {
	var pacer *Pacer
	allowed, wait, err := pacer.Admit(context.Background(), http.MethodGet)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, wait)
}
