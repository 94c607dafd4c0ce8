package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/config"
	"github.com/onecloud/onecloud/internal/core/engine"
	"github.com/onecloud/onecloud/internal/observability"
	"github.com/onecloud/onecloud/internal/onecloud"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime, configuration and effective pacing intervals.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return err
		}
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== onecloud environment ===")
		log.Info("Application:")
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("Runtime:")
		log.Info("  Go:         "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  Platform:   " + runtime.GOOS + "/" + runtime.GOARCH)

		log.Info("API:")
		log.Info("  Base URL:   "+cfg.API.BaseURL, zap.String("base_url", cfg.API.BaseURL))
		log.Info("  Timeout:    " + cfg.API.Timeout.String())
		log.Info(fmt.Sprintf("  Validate:   %t", cfg.API.Validate))
		if cfg.API.Token != "" {
			log.Info("  Token:      (set, scope " + onecloud.TokenScope(cfg.API.Token) + ")")
		} else {
			log.Info("  Token:      (not set)")
		}

		log.Info("Pacing:")
		log.Info("  Store:      "+cfg.Pacing.Store, zap.String("pacing_store", cfg.Pacing.Store))
		switch cfg.Pacing.Store {
		case config.PacingStoreLibsql:
			if strings.TrimSpace(cfg.Store.URL) != "" {
				log.Info("  DB URL:     " + cfg.Store.URL)
			} else {
				log.Info("  DB Path:    " + cfg.Store.Path)
			}
		case config.PacingStoreRedis:
			log.Info("  Redis:      " + cfg.Redis.Addr)
		}

		pacer := engine.NewPacer(nil, "")
		pacer.ApplyOverrides(cfg.Pacing.Intervals)
		verbs := make([]string, 0, len(engine.DefaultIntervals))
		for verb := range engine.DefaultIntervals {
			verbs = append(verbs, verb)
		}
		sort.Strings(verbs)
		for _, verb := range verbs {
			interval, _ := pacer.Interval(verb)
			log.Info(fmt.Sprintf("  %-7s     %s", verb, interval))
		}

		log.Info("Sandbox:")
		log.Info(fmt.Sprintf("  Listen:     %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info(fmt.Sprintf("  Throttle:   %v rps", cfg.Server.ThrottleRPS))
		log.Info("  Config:     " + config.DefaultConfigPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
