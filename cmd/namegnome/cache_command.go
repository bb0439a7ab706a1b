package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"namegnome/internal/providers/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Provider response cache maintenance",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheCleanupCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func withCacheStore(ctx *commandContext, fn func(*cache.Store) error) error {
	store, err := ctx.openCache()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("no cache path configured")
	}
	defer store.Close()
	return fn(store)
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCacheStore(ctx, func(store *cache.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput || !stdoutIsTerminal() {
					return writeJSON(cmd, stats)
				}
				rows := [][]string{
					{"Path", stats.Path},
					{"Entries", fmt.Sprintf("%d", stats.Entries)},
					{"Expired", fmt.Sprintf("%d", stats.Expired)},
					{"Session hits", fmt.Sprintf("%d", stats.Hits)},
					{"Session misses", fmt.Sprintf("%d", stats.Misses)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit stats as JSON")
	return cmd
}

func newCacheCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCacheStore(ctx, func(store *cache.Store) error {
				removed, err := store.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entr%s\n", removed, pluralY(removed))
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached provider response",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCacheStore(ctx, func(store *cache.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			})
		},
	}
}

func pluralY(count int64) string {
	if count == 1 {
		return "y"
	}
	return "ies"
}
