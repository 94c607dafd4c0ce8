package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/config"
	"github.com/onecloud/onecloud/internal/core"
	"github.com/onecloud/onecloud/internal/core/engine"
	"github.com/onecloud/onecloud/internal/core/store"
	"github.com/onecloud/onecloud/internal/core/store/redisstore"
	"github.com/onecloud/onecloud/internal/observability"
	"github.com/onecloud/onecloud/internal/onecloud"
)

// session is one command's client plus the resources it must release.
type session struct {
	client  *onecloud.Client
	closers []func() error
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func currentConfig() (*config.Config, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration not loaded", errConfig)
	}
	return cfg, nil
}

// openSession builds the gate from configuration. validate forces
// client-side validation on regardless of api.validate.
func openSession(ctx context.Context, validate bool) (*session, error) {
	cfg, err := currentConfig()
	if err != nil {
		return nil, err
	}
	if cfg.API.Token == "" {
		return nil, onecloud.ErrMissingToken
	}

	s := &session{}
	markers, closer, err := openMarkerStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	pacer := engine.NewPacer(markers, onecloud.TokenScope(cfg.API.Token))
	pacer.ApplyOverrides(cfg.Pacing.Intervals)

	opts := []onecloud.Option{
		onecloud.WithBaseURL(cfg.API.BaseURL),
		onecloud.WithPacer(pacer),
		onecloud.WithValidation(validate || cfg.API.Validate),
	}
	if cfg.API.Timeout > 0 {
		opts = append(opts, onecloud.WithTimeout(cfg.API.Timeout))
	}
	if cfg.API.UserAgent != "" {
		opts = append(opts, onecloud.WithUserAgent(cfg.API.UserAgent))
	}
	if logger := observability.CLILogger; logger != nil {
		opts = append(opts, onecloud.WithLogger(logger))
	}

	client, err := onecloud.New(cfg.API.Token, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

// openMarkerStore returns nil for the "none" backend.
func openMarkerStore(ctx context.Context, cfg *config.Config) (engine.MarkerStore, func() error, error) {
	switch cfg.Pacing.Store {
	case config.PacingStoreLibsql:
		db, err := openStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case config.PacingStoreRedis:
		rs, err := redisstore.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	default:
		return nil, nil, nil
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// markerAdmin is implemented by both persistent marker stores.
type markerAdmin interface {
	ListMarkers(ctx context.Context, q store.MarkerQuery) ([]core.PacingMarker, error)
	ResetMarkers(ctx context.Context, q store.MarkerQuery) (int64, error)
}

func openMarkerAdmin(ctx context.Context) (markerAdmin, func() error, error) {
	cfg, err := currentConfig()
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Pacing.Store {
	case config.PacingStoreLibsql:
		db, err := openStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case config.PacingStoreRedis:
		rs, err := redisstore.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: pacing store %q keeps no persisted markers", errConfig, cfg.Pacing.Store)
	}
}

// runWithClient opens a session, runs fn and writes its result.
func runWithClient(cmd *cobra.Command, validate bool, fn func(ctx context.Context, c *onecloud.Client) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, validate)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := fn(ctx, s.client)
	if err != nil {
		if onecloud.IsPacing(err) && observability.CLILogger != nil {
			observability.CLILogger.Debug("Dispatch rejected by pacing", zap.Error(err))
		}
		return err
	}
	return writeResult(cmd, result)
}

func parseID(value, name string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}
