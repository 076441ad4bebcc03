package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"syllabuscal/internal/app"
	"syllabuscal/internal/config"
	appLog "syllabuscal/internal/log"
)

var (
	cfgPath  string
	logLevel string
	envFile  string

	// cfg is loaded once by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "syllabuscal",
	Short:         "Turn syllabus extraction output into calendar events",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}

		// Only the long-running server seeds a default config file; the
		// one-shot commands fall back to the defaults in memory.
		load := config.LoadOrDefault
		if cmd.Name() == serveCmd.Name() {
			load = config.Load
		}
		loaded, err := load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		level, ok := appLog.ParseLevel(loaded.LogLevel)
		appLog.Init(os.Stderr, level)
		if !ok {
			appLog.Warn("unknown log level; using info", "log_level", loaded.LogLevel)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("syllabuscal failed", err)
		os.Exit(1)
	}
}

func newApp() (*app.App, error) {
	return app.New(cfg)
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeOutput writes data to path, or stdout when path is "" or "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	appLog.Info("wrote output", "path", path, "bytes", len(data))
	return nil
}
