package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"unflatten/internal/config"
	"unflatten/internal/report"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Review recorded runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func withStore(cfg *config.Config, fn func(*report.Store) error) error {
	store, err := report.OpenFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withStore(cfg, func(store *report.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						run.StartedAt.Local().Format(time.DateTime),
						run.FlattenedRoot,
						strconv.Itoa(run.Counts.Unique),
						strconv.Itoa(run.Counts.Resolved),
						strconv.Itoa(run.Counts.Ambiguous),
						strconv.Itoa(run.Counts.Unmatched),
						yesNo(run.Executed),
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{header: "ID"},
					{header: "Started"},
					{header: "Flattened", path: true},
					{header: "Unique", align: alignRight},
					{header: "Resolved", align: alignRight},
					{header: "Ambiguous", align: alignRight},
					{header: "Unmatched", align: alignRight},
					{header: "Restored"},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the classifications of a run (id prefixes are accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			state, err := report.ParseState(stateFlag)
			if err != nil {
				return err
			}
			return withStore(cfg, func(store *report.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries, err := store.Results(cmd.Context(), run.ID, state)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, struct {
						Run     report.Run     `json:"run"`
						Entries []report.Entry `json:"entries"`
					}{run, entries})
				}
				renderRunDetail(cmd, run, entries)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stateFlag, "state", "", "Only show one class: unique, resolved, ambiguous, unmatched")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func renderRunDetail(cmd *cobra.Command, run report.Run, entries []report.Entry) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	lines := renderSectionHeader("Run "+run.ID, colorize)
	lines = append(lines,
		renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.DateTime), colorize),
		renderStatusLine("Duration", statusInfo, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(), colorize),
		renderStatusLine("Flattened", statusInfo, run.FlattenedRoot, colorize),
		renderStatusLine("Original", statusInfo, run.OriginalRoot, colorize),
		renderStatusLine("Strategy", statusInfo, fmt.Sprintf("%s (text %.2f, visual %.2f)",
			strings.Join(run.Strategy, ","), run.TextThreshold, run.VisualThreshold), colorize),
	)
	if run.OutputRoot != "" {
		kind := statusInfo
		detail := fmt.Sprintf("%s (dry run)", run.OutputRoot)
		if run.Executed {
			kind = statusOK
			if run.Restore.Failed > 0 {
				kind = statusWarn
			}
			detail = fmt.Sprintf("%s (%d copied, %d failed, %d skipped)",
				run.OutputRoot, run.Restore.Copied, run.Restore.Failed, run.Restore.Skipped)
		}
		lines = append(lines, renderStatusLine("Output", kind, detail, colorize))
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))

	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		target := e.OriginalPath
		detail := e.Method
		switch e.State {
		case report.StateAmbiguous:
			target = strings.Join(e.Candidates, "\n")
			detail = fmt.Sprintf("best %.3f", e.Confidence)
		case report.StateUnmatched:
			detail = e.Reason
		}
		rows = append(rows, []string{e.FlattenedPath, string(e.State), target, detail, pageLabel(e.PageCount)})
	}
	fmt.Fprintln(out, renderTable([]tableColumn{
		{header: "Flattened", path: true},
		{header: "State"},
		{header: "Original / candidates", path: true},
		{header: "Method"},
		{header: "Pages", align: alignRight},
	}, rows))
}

func pageLabel(count int) string {
	if count < 0 {
		return "?"
	}
	return strconv.Itoa(count)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
