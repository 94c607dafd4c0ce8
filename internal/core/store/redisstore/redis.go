// Package redisstore keeps pacing markers in redis so several hosts share one
// spacing budget per account.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onecloud/onecloud/internal/config"
	"github.com/onecloud/onecloud/internal/core"
	"github.com/onecloud/onecloud/internal/core/store"
)

// DefaultTTL bounds how long an idle marker lingers.
const DefaultTTL = 24 * time.Hour

// saveIfLater only moves a marker forward so concurrent writers never rewind it.
var saveIfLater = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if (not current) or tonumber(ARGV[1]) > tonumber(current) then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
  return 1
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 0
`)

// tryAdmit sets the marker to ARGV[1] only when the stored one is at least
// ARGV[2] nanoseconds older, and returns -1. Otherwise it returns the
// remaining wait in nanoseconds. Lua numbers are doubles, so comparisons
// round to a few hundred nanoseconds.
var tryAdmit = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
if current then
  local elapsed = now - tonumber(current)
  if elapsed < interval then
    return interval - elapsed
  end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return -1
`)

// Store is a redis-backed marker store.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Open connects to redis using cfg and verifies the connection.
func Open(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(client, cfg.Prefix, cfg.TTL), nil
}

// New wraps an existing client. An empty prefix defaults to the app name and
// a non-positive ttl to DefaultTTL.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = config.AppName
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Close releases the redis connection.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Key returns the redis key holding the marker for scope and verb.
func (s *Store) Key(scope, verb string) string {
	return s.prefix + ":pacing:" + scope + ":" + strings.ToUpper(strings.TrimSpace(verb))
}

func (s *Store) GetMarker(ctx context.Context, scope, verb string) (*core.PacingMarker, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("redis store is not initialized")
	}

	raw, err := s.client.Get(ctx, s.Key(scope, verb)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pacing marker: %w", err)
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode pacing marker %q: %w", raw, err)
	}
	return &core.PacingMarker{
		Scope:          scope,
		Verb:           strings.ToUpper(strings.TrimSpace(verb)),
		LastDispatchAt: time.Unix(0, nanos).UTC(),
	}, nil
}

func (s *Store) SaveMarker(ctx context.Context, marker *core.PacingMarker) error {
	if s == nil || s.client == nil {
		return errors.New("redis store is not initialized")
	}
	if marker == nil {
		return errors.New("marker is required")
	}
	if strings.TrimSpace(marker.Verb) == "" {
		return errors.New("verb is required")
	}

	key := s.Key(marker.Scope, marker.Verb)
	if err := saveIfLater.Run(ctx, s.client, []string{key}, marker.LastDispatchAt.UnixNano(), s.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("save pacing marker: %w", err)
	}
	return nil
}

// TryAdmit checks and moves the marker in one script call, so every host
// sharing the redis instance spends one spacing budget.
func (s *Store) TryAdmit(ctx context.Context, scope, verb string, now time.Time, interval time.Duration) (bool, time.Duration, error) {
	if s == nil || s.client == nil {
		return false, 0, errors.New("redis store is not initialized")
	}
	if strings.TrimSpace(verb) == "" {
		return false, 0, errors.New("verb is required")
	}

	key := s.Key(scope, verb)
	wait, err := tryAdmit.Run(ctx, s.client, []string{key}, now.UnixNano(), interval.Nanoseconds(), s.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("run admit script: %w", err)
	}
	if wait < 0 {
		return true, 0, nil
	}
	return false, time.Duration(wait), nil
}

// ListMarkers scans for markers matching q.
func (s *Store) ListMarkers(ctx context.Context, q store.MarkerQuery) ([]core.PacingMarker, error) {
	keys, err := s.scan(ctx, q)
	if err != nil {
		return nil, err
	}

	markers := make([]core.PacingMarker, 0, len(keys))
	for _, key := range keys {
		scope, verb, ok := s.splitKey(key)
		if !ok {
			continue
		}
		marker, err := s.GetMarker(ctx, scope, verb)
		if err != nil {
			return nil, err
		}
		if marker != nil {
			markers = append(markers, *marker)
		}
	}

	sort.Slice(markers, func(i, j int) bool {
		if markers[i].Scope != markers[j].Scope {
			return markers[i].Scope < markers[j].Scope
		}
		return markers[i].Verb < markers[j].Verb
	})
	return markers, nil
}

// ResetMarkers deletes markers matching q and reports how many were removed.
func (s *Store) ResetMarkers(ctx context.Context, q store.MarkerQuery) (int64, error) {
	keys, err := s.scan(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("reset pacing markers: %w", err)
	}
	return removed, nil
}

// Pattern returns the SCAN match pattern for q.
func (s *Store) Pattern(q store.MarkerQuery) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	if q.All {
		return s.prefix + ":pacing:*", nil
	}

	scope := strings.TrimSpace(q.Scope)
	if scope == "" {
		scope = "*"
	}
	verb := strings.ToUpper(strings.TrimSpace(q.Verb))
	if verb == "" {
		verb = "*"
	}
	return s.prefix + ":pacing:" + scope + ":" + verb, nil
}

func (s *Store) scan(ctx context.Context, q store.MarkerQuery) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("redis store is not initialized")
	}

	pattern, err := s.Pattern(q)
	if err != nil {
		return nil, err
	}

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan pacing markers: %w", err)
	}
	return keys, nil
}

func (s *Store) splitKey(key string) (string, string, bool) {
	rest, ok := strings.CutPrefix(key, s.prefix+":pacing:")
	if !ok {
		return "", "", false
	}
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
