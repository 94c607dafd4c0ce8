package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onecloud/onecloud/internal/core"
)

// MarkerQuery selects pacing markers for listing or reset.
type MarkerQuery struct {
	All   bool
	Scope string
	Verb  string
}

func (q MarkerQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Scope) != "" || strings.TrimSpace(q.Verb) != "" {
		return nil
	}
	return errors.New("must specify --all, --scope, or --verb")
}

func (q MarkerQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}

	var (
		conds []string
		args  []any
	)
	if scope := strings.TrimSpace(q.Scope); scope != "" {
		conds = append(conds, "scope = ?")
		args = append(args, scope)
	}
	if verb := strings.ToUpper(strings.TrimSpace(q.Verb)); verb != "" {
		conds = append(conds, "verb = ?")
		args = append(args, verb)
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

func (s *Store) ListMarkers(ctx context.Context, q MarkerQuery) ([]core.PacingMarker, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT scope, verb, last_dispatch_at
		FROM pacing_markers
		%s
		ORDER BY scope, verb
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list pacing markers: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	markers := []core.PacingMarker{}
	for rows.Next() {
		var (
			scope        string
			verb         string
			lastDispatch int64
		)
		if err := rows.Scan(&scope, &verb, &lastDispatch); err != nil {
			return nil, fmt.Errorf("scan pacing markers: %w", err)
		}
		markers = append(markers, core.PacingMarker{
			Scope:          scope,
			Verb:           verb,
			LastDispatchAt: time.Unix(0, lastDispatch).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pacing markers: %w", err)
	}

	return markers, nil
}

func (s *Store) CountMarkers(ctx context.Context, q MarkerQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM pacing_markers
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count pacing markers: %w", err)
	}
	return count, nil
}

func (s *Store) ResetMarkers(ctx context.Context, q MarkerQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM pacing_markers
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset pacing markers: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset pacing markers: %w", err)
	}
	return affected, nil
}
