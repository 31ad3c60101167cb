// Package cmd provides the CLI commands for siftd.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siftd/siftd/internal/coordinator"
	"github.com/siftd/siftd/internal/logging"
	"github.com/siftd/siftd/pkg/api"
	"github.com/siftd/siftd/pkg/version"
)

const shutdownTimeout = 30 * time.Second

var (
	indexRootFlag string
	configFlag    string
	debugMode     bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the siftd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "siftd",
		Short:   "Local-first hybrid code search",
		Version: version.Version,
		Long: `siftd indexes a codebase once and keeps the index current as files
change, serving symbol, content, fuzzy, and semantic search over it.

Run 'siftd index <path>' to index and watch a repository, or
'siftd search <kind> <query>' against one already indexed.`,
	}
	cmd.SetVersionTemplate("siftd version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&indexRootFlag, "index-root", "", "override the persisted-state root (default: ~/.siftd/index)")
	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to a config file (default: <index-root>/config)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.siftd/logs/")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRunE = teardownLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newDeregisterCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newReferencesCmd())
	cmd.AddCommand(newPreflightCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.FilePath = "" // file logging is opt-in via --debug
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
	}
	return nil
}

// loadConfig merges the --config file (or its default location) with the
// --index-root override.
func loadConfig() (*coordinator.Config, error) {
	path := configFlag
	if path == "" && indexRootFlag != "" {
		path = filepath.Join(indexRootFlag, "config")
	}
	cfg, err := coordinator.Load(path)
	if err != nil {
		return nil, err
	}
	if indexRootFlag != "" {
		cfg.IndexRoot = indexRootFlag
	}
	return cfg, nil
}

// withAPI builds a Coordinator and API from the current flags, hands them to
// fn, and shuts the coordinator down afterward regardless of fn's outcome.
func withAPI(ctx context.Context, fn func(ctx context.Context, a api.API, coord *coordinator.Coordinator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	coord, err := coordinator.New(cfg)
	if err != nil {
		return err
	}
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := coord.Shutdown(shutdownCtx); err != nil {
			slog.Warn("coordinator shutdown error", slog.String("error", err.Error()))
		}
	}()

	return fn(ctx, api.New(coord), coord)
}

// notifyContext returns a context canceled on SIGINT/SIGTERM, for commands
// that stay up to watch a repository.
func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
