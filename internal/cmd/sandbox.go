package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/config"
	apperrors "github.com/onecloud/onecloud/internal/errors"
	"github.com/onecloud/onecloud/internal/metrics"
	"github.com/onecloud/onecloud/internal/observability"
	"github.com/onecloud/onecloud/internal/sandbox"
	"github.com/onecloud/onecloud/internal/server"
)

// telemetryHealthChecker reports whether the exporter is up.
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return apperrors.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Serve an in-memory fake of the provider API",
	Long: `Serve an in-memory fake of the 1cloud.ru API for local development.

Point the client at it with --base-url http://HOST:PORT/api and the
same --token. The accepted token defaults to server.token. State is lost
on exit.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload`,
	Args: cobra.NoArgs,
	RunE: runSandbox,
}

func runSandbox(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	srvCfg := cfg.Server
	// The global --token names the credential the sandbox accepts.
	if cmd.Flags().Changed("token") && cfg.API.Token != "" {
		srvCfg.Token = cfg.API.Token
	}

	observability.InitServerLogger(config.AppName, cfg.Logging.Level, "sandbox")
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return err
		}
		metrics.SetServerStartTime(time.Now().Unix())
	}

	sb := sandbox.New(sandbox.Options{
		Token:       srvCfg.Token,
		Balance:     srvCfg.Balance,
		ThrottleRPS: srvCfg.ThrottleRPS,
		Burst:       srvCfg.ThrottleBurst,
	})

	opts := []server.Option{
		server.WithAPI(sb.Routes()),
		server.WithHealthChecker("sandbox", sb),
		server.WithAdminToken(srvCfg.AdminToken),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithHealthChecker("telemetry", telemetryHealthChecker{}))
	}
	srv := server.New(srvCfg.Host, srvCfg.Port, opts...)

	logger.Info("Initializing sandbox",
		zap.String("version", versionInfo.Version),
		zap.String("host", srvCfg.Host),
		zap.Int("port", srvCfg.Port),
		zap.Float64("throttle_rps", srvCfg.ThrottleRPS),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	shutdownTimeout := srvCfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Handlers run LIFO: server first, then the logger flush.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})
	signals.OnReload(func(ctx context.Context) error {
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil
			}
			logger.Error("Failed to reload config file", zap.Error(err))
			return err
		}
		if _, err := config.Load(viper.GetViper()); err != nil {
			logger.Error("Reloaded config is invalid", zap.Error(err))
			return err
		}
		// Sandbox state and listener settings are fixed for the process lifetime.
		logger.Info("Configuration reloaded", zap.String("file", viper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- srv.Start()
	}()
	go func() {
		if err := signals.Listen(cmd.Context()); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	return <-errChan
}

func init() {
	f := sandboxCmd.Flags()
	f.String("host", "localhost", "listen host")
	f.IntP("port", "p", 8089, "listen port")
	f.Float64("throttle-rps", 0, "per-token request rate limit (0 disables)")
	f.Int("throttle-burst", 1, "per-token burst size")
	f.Bool("metrics", false, "start the Prometheus exporter")

	_ = viper.BindPFlag("server.host", f.Lookup("host"))
	_ = viper.BindPFlag("server.port", f.Lookup("port"))
	_ = viper.BindPFlag("server.throttle_rps", f.Lookup("throttle-rps"))
	_ = viper.BindPFlag("server.throttle_burst", f.Lookup("throttle-burst"))
	_ = viper.BindPFlag("metrics.enabled", f.Lookup("metrics"))

	rootCmd.AddCommand(sandboxCmd)
}
