package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/config"
	"github.com/onecloud/onecloud/internal/observability"
	"github.com/onecloud/onecloud/internal/onecloud"
	"github.com/onecloud/onecloud/internal/output"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	closeTrace = func() {}

	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main with ldflags values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Command-line client for the 1cloud.ru hosting API",
	Long: `onecloud manages 1cloud.ru servers, networks and images.

Every call passes through a pacing gate that keeps requests of the same
HTTP verb apart (GET 1.5s, POST/PUT/DELETE 10s). Pacing markers can be
persisted in libsql or redis so the spacing holds across invocations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	defer closeTrace()
	return rootCmd.Execute()
}

func init() {
	// Keep telemetry quiet for one-shot commands; the sandbox installs its own.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/onecloud/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.StringVar(&traceFile, "trace", "", "trace API requests/responses to an NDJSON file")
	flags.String("output-format", string(output.FormatTable), "output format: table|json|yaml")
	flags.String("out", "", "write output to a file (default stdout)")
	flags.String("token", "", "API token (overrides ONECLOUD_API_TOKEN)")
	flags.String("base-url", "", "API base URL")
	flags.String("pacing-store", "", "pacing marker store: none|libsql|redis")

	_ = viper.BindPFlag("api.token", flags.Lookup("token"))
	_ = viper.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("pacing.store", flags.Lookup("pacing-store"))
}

func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)
	logger := observability.CLILogger

	if traceFile != "" {
		closer, err := onecloud.EnableTracing(traceFile)
		if err != nil {
			logger.Warn("Failed to enable tracing", zap.Error(err))
		} else {
			logger.Debug("API tracing enabled", zap.String("file", traceFile))
			closeTrace = closer
		}
	}

	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if path := config.DefaultConfigPath(); path != "" {
			v.AddConfigPath(filepath.Dir(path))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+config.AppName))
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err == nil {
		logger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to read config file", err)
		}
		logger.Debug("No config file found, using defaults and environment variables")
	}

	if _, err := config.Load(v); err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Invalid configuration", err)
	}
}
