package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"novapress/internal/format"
	"novapress/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	apiURL     string
	wsURL      string
	adminKey   string
	logLevel   string
	logFormat  string
	output     string
}

var rootCmd = &cobra.Command{
	Use:   "novapress",
	Short: "Operator CLI for the NovaPress news synthesis API",
	Long: "novapress reads syntheses, trending topics and causal graphs from a\n" +
		"NovaPress backend, administers its scraping pipeline and follows stories.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		if rootFlags.logFormat != "text" && rootFlags.logFormat != "json" {
			return fmt.Errorf("unknown log format %q (want text or json)", rootFlags.logFormat)
		}
		if _, err := format.ParseMode(rootFlags.output); err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Config file (default ~/.novapress/config.yaml)")
	pf.StringVar(&rootFlags.apiURL, "api-url", "", "Backend base URL (overrides config)")
	pf.StringVar(&rootFlags.wsURL, "ws-url", "", "WebSocket base URL (default derived from --api-url)")
	pf.StringVar(&rootFlags.adminKey, "admin-key", "", "Admin key for pipeline administration")
	pf.StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVarP(&rootFlags.output, "output", "o", "table", "Output: table, markdown or json")

	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(synthesisCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(causalCmd)
	rootCmd.AddCommand(intelCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// appLogger is the CLI's own logger.
func appLogger() *slog.Logger { return logging.New("cli") }
