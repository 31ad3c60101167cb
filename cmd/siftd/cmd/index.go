package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/siftd/siftd/internal/coordinator"
	"github.com/siftd/siftd/pkg/api"
)

func newIndexCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Register a repository and index it",
		Long: `Index scans <path>, registers it as a repository, and indexes its
files. With --watch it stays running afterward, keeping the index current as
files change until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			if watch {
				return runIndexWatch(root)
			}
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, coord *coordinator.Coordinator) error {
				repoID, err := a.IndexRepository(ctx, root)
				if err != nil {
					return err
				}
				if err := waitForIndexing(ctx, coord, repoID); err != nil {
					return err
				}
				fmt.Printf("indexed %s as %s\n", root, repoID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and watching the repository for changes")
	return cmd
}

// runIndexWatch indexes root and then blocks, letting the coordinator's
// watcher and worker pool keep the index current until interrupted.
func runIndexWatch(root string) error {
	ctx, cancel := notifyContext()
	defer cancel()

	return withAPI(ctx, func(ctx context.Context, a api.API, coord *coordinator.Coordinator) error {
		repoID, err := a.IndexRepository(ctx, root)
		if err != nil {
			return err
		}
		if err := waitForIndexing(ctx, coord, repoID); err != nil {
			return err
		}
		fmt.Printf("watching %s (%s) — press ctrl-c to stop\n", root, repoID)
		<-ctx.Done()
		fmt.Println("shutting down")
		return nil
	})
}

// waitForIndexing polls status until the initial scan has processed every
// discovered file, or the context is canceled.
func waitForIndexing(ctx context.Context, coord *coordinator.Coordinator, repoID string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := coord.GetStatus(ctx, repoID)
			if err != nil {
				return err
			}
			if status.Progress.FilesTotal > 0 && status.Progress.FilesProcessed >= status.Progress.FilesTotal {
				return nil
			}
			if status.Progress.FilesTotal == 0 && status.Progress.Stage != "" && status.Progress.Stage != "scanning" {
				return nil
			}
		}
	}
}
