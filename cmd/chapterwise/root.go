package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkaplan/chapterwise/internal/config"
	"github.com/mkaplan/chapterwise/version"
)

var (
	cfgFile string
	homeDir string

	cfgManager *config.Manager
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chapterwise",
	Short: "HTML-safe chunked document translation with resumable jobs",
	Long: `Chapterwise translates long documents with an LLM while keeping their
markup intact. Text is split at sentence and paragraph boundaries, markup
and technical content are hidden behind numbered placeholder tokens, and
every chunk is checkpointed to SQLite so an interrupted translation
resumes where it stopped.

Supported inputs:
  - XHTML/HTML files (one chapter per file)
  - Plain text and Markdown with chapter headings
  - SRT subtitle files`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.chapterwise/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "chapterwise home directory (default: ~/.chapterwise)",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfgManager, err = config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		logger = newLogger(cfgManager.Get())
		slog.SetDefault(logger)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
