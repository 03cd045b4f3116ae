package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mj1618/uitransfer/internal/config"
	"github.com/mj1618/uitransfer/internal/logging"
	"github.com/mj1618/uitransfer/internal/output"
	"github.com/mj1618/uitransfer/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "uitransfer",
	Short: "Move UI snapshot trees over size-bounded channels",
	Long: `uitransfer encodes captured UI trees (windows and their view nodes) into
resumable chunks, serves them over MCP and decodes them on the other side.`,
	SilenceUsage: true,
}

// Loaded once per command invocation by the root pre-run hook.
var (
	cfg    *config.Config
	logger = zerolog.Nop()
)

// flagKeys maps command-line flags onto config keys. A flag overrides the
// config file and environment only when it is set explicitly.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"chunk-size":    "transfer.chunk_size",
	"ready-timeout": "transfer.ready_timeout",
	"transport":     "server.transport",
	"port":          "server.port",
	"dir":           "server.dir",
	"cache-ttl":     "server.cache_ttl",
	"metrics-addr":  "metrics.addr",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json")
	rootCmd.PersistentFlags().Bool("pretty", false, "Indent JSON output")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error, disabled")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console, json")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, _ := rootCmd.PersistentFlags().GetString("format")
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		output.OutputFormat = f
		output.PrettyOutput, _ = rootCmd.PersistentFlags().GetBool("pretty")

		path, _ := rootCmd.PersistentFlags().GetString("config")
		loaded, err := config.Load(path, flagOverrides(cmd))
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New("uitransfer", logging.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cmd.ErrOrStderr(),
		})
		return err
	}
}

// flagOverrides collects explicitly set flags as config keys.
func flagOverrides(cmd *cobra.Command) map[string]any {
	overrides := make(map[string]any)
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	return overrides
}
