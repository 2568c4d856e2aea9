package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/importshim/pkg/store"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1.db> <source2.db> [source3.db...]",
	Short: "Merge multiple result stores",
	Long: `Merge multiple importshim result stores into a single output store.

This is useful for combining results from builds run on separate
machines, or for seeding an incremental cache from earlier builds.

Deduplication is automatic - duplicate chunks, rewrites, and cached
results are only stored once in the merged store.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output store path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: args,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merge complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Chunks merged: %d\n", stats.ChunksMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Provenance merged: %d\n", stats.ProvenanceMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Rewrites merged: %d\n", stats.RewritesMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Results merged: %d\n", stats.ResultsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", mergeOutput)

	return nil
}
