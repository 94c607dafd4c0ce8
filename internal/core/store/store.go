package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/onecloud/onecloud/internal/config"
)

const driverLibsql = "libsql"

const memoryPath = ":memory:"

// Store wraps the libsql connection holding pacing markers.
type Store struct {
	DB     *sql.DB
	driver string
}

// target is a resolved libsql connection string. local targets are files on
// this machine shared by concurrent CLI invocations.
type target struct {
	dsn   string
	local bool
}

// Open connects to the marker database described by cfg. Call Migrate before
// reading or writing markers.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	tgt, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, tgt.dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	if tgt.local {
		if err := tuneLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{DB: db, driver: driver}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// tuneLocal serializes writers on one connection and waits on locks instead
// of failing, so two onecloud processes can pace against the same file.
func tuneLocal(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)

	pragmas := []struct {
		stmt string
		dest any
	}{
		{"PRAGMA journal_mode=WAL", new(string)},
		{"PRAGMA busy_timeout=5000", new(int)},
	}
	for _, p := range pragmas {
		if err := db.QueryRowContext(ctx, p.stmt).Scan(p.dest); err != nil {
			return fmt.Errorf("%s: %w", p.stmt, err)
		}
	}
	return nil
}

// resolveTarget turns a StoreConfig into a DSN. A remote URL wins over a path;
// bare paths become file: DSNs and get their parent directory created.
func resolveTarget(cfg config.StoreConfig) (target, error) {
	if remote := strings.TrimSpace(cfg.URL); remote != "" {
		dsn, err := withAuthToken(remote, cfg.AuthToken)
		return target{dsn: dsn}, err
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return target{}, errors.New("store path or url is required")
	case path == memoryPath:
		return target{dsn: memoryPath}, nil
	case strings.HasPrefix(path, "libsql:"):
		return target{dsn: path}, nil
	case strings.HasPrefix(path, "file:"):
		local, err := filePathOf(path)
		if err != nil {
			return target{}, err
		}
		if err := mkParent(local); err != nil {
			return target{}, err
		}
		return target{dsn: path, local: true}, nil
	default:
		if err := mkParent(path); err != nil {
			return target{}, err
		}
		return target{dsn: "file:" + filepath.Clean(path), local: true}, nil
	}
}

func withAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func filePathOf(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}
	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func mkParent(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- shared data directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
