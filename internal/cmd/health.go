package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/onecloud/onecloud/internal/config"
	"github.com/onecloud/onecloud/internal/onecloud"
)

type healthCheck struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (string, error)
}

var healthChecks = []healthCheck{
	{"config", func(ctx context.Context, cfg *config.Config) (string, error) {
		return cfg.API.BaseURL, nil
	}},
	{"token", func(ctx context.Context, cfg *config.Config) (string, error) {
		if cfg.API.Token == "" {
			return "", onecloud.ErrMissingToken
		}
		return "scope " + onecloud.TokenScope(cfg.API.Token), nil
	}},
	{"pacing store", func(ctx context.Context, cfg *config.Config) (string, error) {
		_, closer, err := openMarkerStore(ctx, cfg)
		if err != nil {
			return "", err
		}
		if closer != nil {
			_ = closer()
		}
		return cfg.Pacing.Store, nil
	}},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check configuration, credentials and the pacing store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := currentConfig()
		if err != nil {
			return err
		}

		lines := []string{"onecloud health", ""}
		failed := 0
		for _, check := range healthChecks {
			detail, err := check.run(cmd.Context(), cfg)
			if err != nil {
				failed++
				lines = append(lines, fmt.Sprintf("FAIL %s: %v", check.name, err))
				continue
			}
			lines = append(lines, fmt.Sprintf("ok   %s: %s", check.name, detail))
		}

		fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))
		if failed > 0 {
			return fmt.Errorf("%w: %d health check(s) failed", errConfig, failed)
		}
		return nil
	},
}


func init() {
	rootCmd.AddCommand(healthCmd)
}
