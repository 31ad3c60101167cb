package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siftd/siftd/internal/coordinator"
	"github.com/siftd/siftd/pkg/api"
)

func newReindexCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "reindex <repo-id>",
		Short: "Re-queue a repository (or one file within it) for indexing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				if err := a.Reindex(ctx, args[0], path); err != nil {
					return err
				}
				fmt.Println("reindex queued")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "reindex only this file (default: the whole repository)")
	return cmd
}

func newDeregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deregister <repo-id>",
		Short: "Stop watching a repository and delete its indexed rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				if err := a.DeregisterRepository(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deregistered", args[0])
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [repo-id]",
		Short: "Report a repository's indexing progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var repoID string
			if len(args) == 1 {
				repoID = args[0]
			}
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				status, err := a.GetStatus(ctx, repoID)
				if err != nil {
					return err
				}
				fmt.Printf("repo:      %s\n", status.RepoID)
				fmt.Printf("root:      %s\n", status.RootPath)
				fmt.Printf("stage:     %s (%.1f%%)\n", status.Progress.Stage, status.Progress.ProgressPct)
				fmt.Printf("files:     %d/%d\n", status.Progress.FilesProcessed, status.Progress.FilesTotal)
				fmt.Printf("chunks:    %d\n", status.Progress.ChunksIndexed)
				fmt.Printf("queue:     %d\n", status.Progress.QueueDepth)
				fmt.Printf("symbols:   %d\n", status.Stats.SymbolCount)
				fmt.Printf("generation: %d\n", status.Stats.Generation)
				return nil
			})
		},
	}
}

func newPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight <path>",
		Short: "Run readiness checks against a repository root before indexing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, _ api.API, coord *coordinator.Coordinator) error {
				results := coord.Preflight(ctx, args[0])
				failed := false
				for _, r := range results {
					fmt.Printf("[%s] %-24s %s\n", r.Status, r.Name, r.Message)
					if r.IsCritical() {
						failed = true
					}
				}
				if failed {
					return fmt.Errorf("preflight: critical check failed")
				}
				return nil
			})
		},
	}
}
