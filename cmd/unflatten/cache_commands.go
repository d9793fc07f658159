package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"unflatten/internal/cache"
	"unflatten/internal/fingerprint"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the metadata cache",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			c := cache.New(cfg.Paths.CacheDir, ctx.logger(cfg))
			infos, err := c.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(out, "No cached trees in %s\n", c.Dir())
				return nil
			}
			current := fingerprint.NewFromConfig(cfg).Settings()
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				state := "current"
				if info.Settings != current {
					state = "stale"
				}
				rows = append(rows, []string{
					info.Root,
					strconv.Itoa(info.Entries),
					formatBytes(info.Size),
					info.Timestamp.Local().Format(time.DateTime),
					state,
				})
			}
			fmt.Fprintln(out, renderTable([]tableColumn{
				{header: "Tree", path: true},
				{header: "Files", align: alignRight},
				{header: "Size", align: alignRight},
				{header: "Saved"},
				{header: "Settings"},
			}, rows))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached fingerprints (all trees, or one with --root)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			c := cache.New(cfg.Paths.CacheDir, ctx.logger(cfg))
			out := cmd.OutOrStdout()
			if root = strings.TrimSpace(root); root != "" {
				if err := c.Remove(root); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed cache for %s\n", root)
				return nil
			}
			removed, err := c.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d cache file(s) from %s\n", removed, c.Dir())
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Only clear the cache of this tree root")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
