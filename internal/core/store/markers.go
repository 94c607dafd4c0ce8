package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onecloud/onecloud/internal/core"
)

// GetMarker returns the stored marker for scope and verb, or nil when none
// has been recorded yet.
func (s *Store) GetMarker(ctx context.Context, scope, verb string) (*core.PacingMarker, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	verb = strings.ToUpper(strings.TrimSpace(verb))
	if verb == "" {
		return nil, errors.New("verb is required")
	}

	row := s.DB.QueryRowContext(ctx, `SELECT last_dispatch_at FROM pacing_markers WHERE scope = ? AND verb = ?`, scope, verb)

	var lastDispatch int64
	if err := row.Scan(&lastDispatch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pacing marker: %w", err)
	}

	return &core.PacingMarker{
		Scope:          scope,
		Verb:           verb,
		LastDispatchAt: time.Unix(0, lastDispatch).UTC(),
	}, nil
}

// SaveMarker upserts a pacing marker.
func (s *Store) SaveMarker(ctx context.Context, marker *core.PacingMarker) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if marker == nil {
		return errors.New("marker is required")
	}
	verb := strings.ToUpper(strings.TrimSpace(marker.Verb))
	if verb == "" {
		return errors.New("verb is required")
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO pacing_markers (scope, verb, last_dispatch_at)
		VALUES (?, ?, ?)
		ON CONFLICT(scope, verb) DO UPDATE SET last_dispatch_at = excluded.last_dispatch_at`,
		marker.Scope, verb, marker.LastDispatchAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save pacing marker: %w", err)
	}
	return nil
}

// TryAdmit moves the marker to now only when the stored one is at least
// interval old. The conditional upsert runs as one statement, so concurrent
// processes on the same database cannot both pass.
func (s *Store) TryAdmit(ctx context.Context, scope, verb string, now time.Time, interval time.Duration) (bool, time.Duration, error) {
	if s == nil || s.DB == nil {
		return false, 0, errors.New("store is not initialized")
	}
	verb = strings.ToUpper(strings.TrimSpace(verb))
	if verb == "" {
		return false, 0, errors.New("verb is required")
	}

	res, err := s.DB.ExecContext(ctx, `INSERT INTO pacing_markers (scope, verb, last_dispatch_at)
		VALUES (?, ?, ?)
		ON CONFLICT(scope, verb) DO UPDATE SET last_dispatch_at = excluded.last_dispatch_at
		WHERE excluded.last_dispatch_at - pacing_markers.last_dispatch_at >= ?`,
		scope, verb, now.UnixNano(), interval.Nanoseconds())
	if err != nil {
		return false, 0, fmt.Errorf("upsert pacing marker: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("upsert pacing marker: %w", err)
	}
	if affected > 0 {
		return true, 0, nil
	}

	marker, err := s.GetMarker(ctx, scope, verb)
	if err != nil {
		return false, interval, err
	}
	wait := interval
	if marker != nil {
		if remaining := core.Remaining(marker.LastDispatchAt, now, interval); remaining > 0 {
			wait = remaining
		}
	}
	return false, wait, nil
}
