package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siftd/siftd/internal/coordinator"
	"github.com/siftd/siftd/internal/query"
	"github.com/siftd/siftd/internal/symbolstore"
	"github.com/siftd/siftd/pkg/api"
)

func newSearchCmd() *cobra.Command {
	var repo string
	var limit int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search an indexed repository by symbol, content, or meaning",
	}
	cmd.PersistentFlags().StringVar(&repo, "repo", "", "repo_id to search (required unless only one repository is registered)")
	cmd.PersistentFlags().IntVar(&limit, "limit", 10, "maximum results to return")

	cmd.AddCommand(newSymbolSearchCmd(&repo, &limit))
	cmd.AddCommand(newContentSearchCmd(&repo, &limit))
	cmd.AddCommand(newFuzzySearchCmd(&repo, &limit))
	cmd.AddCommand(newSemanticSearchCmd(&repo, &limit))
	return cmd
}

func newSymbolSearchCmd(repo *string, limit *int) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "symbol <name>",
		Short: "Find symbols by exact or prefix name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				symbols, err := a.SymbolLookup(ctx, *repo, args[0], symbolstore.SymbolKind(kind), *limit)
				if err != nil {
					return err
				}
				for _, sym := range symbols {
					fmt.Printf("%-10s %-40s %s:%d\n", sym.Kind, sym.QualifiedName, sym.FileID, sym.LineRange.Start)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by symbol kind (function, method, class, struct, ...)")
	return cmd
}

func newContentSearchCmd(repo *string, limit *int) *cobra.Command {
	var lexicalOnly bool

	cmd := &cobra.Command{
		Use:   "content <pattern>",
		Short: "Hybrid lexical+semantic search over file content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				results, err := a.ContentSearch(ctx, *repo, args[0], query.Options{Limit: *limit, LexicalOnly: lexicalOnly})
				if err != nil {
					return err
				}
				printResults(results)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&lexicalOnly, "lexical-only", false, "skip the semantic leg")
	return cmd
}

func newFuzzySearchCmd(repo *string, limit *int) *cobra.Command {
	return &cobra.Command{
		Use:   "fuzzy <query>",
		Short: "Fuzzy symbol search (trigram prefilter + edit distance)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				symbols, err := a.FuzzySymbol(ctx, *repo, args[0], *limit)
				if err != nil {
					return err
				}
				for _, sym := range symbols {
					fmt.Printf("%-10s %-40s %s\n", sym.Kind, sym.QualifiedName, sym.FileID)
				}
				return nil
			})
		},
	}
}

func newSemanticSearchCmd(repo *string, limit *int) *cobra.Command {
	return &cobra.Command{
		Use:   "semantic <query>",
		Short: "Pure nearest-neighbor search over the query's embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				results, err := a.SemanticSearch(ctx, *repo, args[0], *limit, "")
				if err != nil {
					return err
				}
				printResults(results)
				return nil
			})
		},
	}
}

func newReferencesCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "references <qualified-name>",
		Short: "Find every call/read/write/import site of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAPI(cmd.Context(), func(ctx context.Context, a api.API, _ *coordinator.Coordinator) error {
				refs, err := a.References(ctx, repo, args[0])
				if err != nil {
					return err
				}
				for _, ref := range refs {
					fmt.Printf("%-10s %s -> %s\n", ref.Kind, ref.FileID, ref.TargetQualifiedName)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "repo_id to search")
	return cmd
}

func printResults(results []*query.Result) {
	for _, r := range results {
		fused := fmt.Sprintf("%.3f", r.Score)
		fmt.Printf("%-6s %-40s %s\n", fused, r.FileID, r.Snippet)
	}
}
