package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/pulse/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "On-device interest signal engine",
	Long: "Pulse turns browsing observations into a decaying, privacy-shaped interest profile " +
		"with a probability-to-act score. Everything stays local; exports carry only aggregates " +
		"and a commitment.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pulse.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(taxonomyCmd)
	rootCmd.AddCommand(mcpCmd)
}

// loadConfig reads configuration and installs the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(lc config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if lc.Level != "" {
		if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
			return nil, fmt.Errorf("log.level %q: %w", lc.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(lc.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("log.format %q: want text or json", lc.Format)
}
