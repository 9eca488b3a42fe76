package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lexcase/internal/analysis"
	"lexcase/internal/analysiscache"
	"lexcase/internal/textutil"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the analysis cache",
	}

	openCache := func() (*analysiscache.Cache, error) {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		return analysiscache.NewFromConfig(cfg, ctx.loggerValue()), nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			entries := cache.List()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Analysis cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					cacheStageLabel(entry.StageIndex),
					entry.Model,
					humanize.Time(entry.CachedAt),
					humanize.Time(entry.ExpiresAt),
					textutil.Truncate(strings.TrimSpace(entry.TextPrefix), 40, "..."),
				})
			}
			fmt.Fprint(out, renderTable(
				[]tableColumn{numCol("Stage"), col("Model"), col("Cached"), col("Expires"), col("Text")},
				rows,
			))
			fmt.Fprintln(out)
			return nil
		},
	}

	var model string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if m := strings.TrimSpace(model); m != "" {
				n, err := cache.Invalidate(m)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d cached analyses for %s\n", n, m)
				return nil
			}
			count := cache.Count()
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d cached analyses\n", count)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&model, "model", "", "Only remove entries produced by this model")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			n, err := cache.Cleanup()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", n)
			return nil
		},
	}

	cacheCmd.AddCommand(listCmd, clearCmd, pruneCmd)
	return cacheCmd
}

func cacheStageLabel(index int) string {
	if index == analysis.PetitionStageIndex {
		return "petition"
	}
	return strconv.Itoa(index + 1)
}
