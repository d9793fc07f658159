package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"unflatten/internal/matcher"
	"unflatten/internal/pipeline"
	"unflatten/internal/scanner"
)

const (
	previewUnique     = 10
	previewResolved   = 10
	previewAmbiguous  = 5
	previewCandidates = 3
	previewUnmatched  = 10
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderRunSummary(w io.Writer, out pipeline.Outcome, colorize bool) {
	var lines []string
	run := out.Run
	if !run.Executed {
		lines = append(lines, paint("DRY RUN: no files are copied. Re-run with --execute and --restore to restore.", ansiYellow, colorize), "")
	}

	counts := out.Result.Counts()
	lines = append(lines, renderSectionHeader("Summary", colorize)...)
	lines = append(lines, renderTable(
		[]tableColumn{{header: "Class"}, {header: "Files", align: alignRight}},
		[][]string{
			{"Unique page count", strconv.Itoa(counts.Unique)},
			{"Resolved by content", strconv.Itoa(counts.Resolved)},
			{"Ambiguous", strconv.Itoa(counts.Ambiguous)},
			{"Unmatched", strconv.Itoa(counts.Unmatched)},
			{"Total", strconv.Itoa(counts.Total)},
		},
	))
	lines = append(lines,
		scanLine("Flattened scan", out.FlattenedStats),
		scanLine("Original scan", out.OriginalStats),
		"")

	lines = append(lines, matchPreview("Unique matches", out.Result.Unique, previewUnique, colorize)...)
	lines = append(lines, matchPreview("Resolved matches", out.Result.Resolved, previewResolved, colorize)...)
	lines = append(lines, ambiguousPreview(out.Result.Ambiguous, colorize)...)
	lines = append(lines, unmatchedPreview(out.Result.Unmatched, colorize)...)

	lines = append(lines, restoreLines(out, colorize)...)
	if eval := out.Evaluation; eval != nil {
		lines = append(lines, renderSectionHeader("Mapping evaluation", colorize)...)
		lines = append(lines,
			fmt.Sprintf("  Correct: %d  Incorrect: %d  Unverifiable: %d  Accuracy: %.1f%%",
				eval.Correct, eval.Incorrect, eval.Unverifiable, eval.Accuracy()*100),
			fmt.Sprintf("  Ambiguous with true path among candidates: %d of %d",
				eval.AmbiguousWithTruth, eval.AmbiguousTotal))
		for _, m := range eval.Mistakes {
			lines = append(lines, fmt.Sprintf("    %s -> %s (expected %s)", m.FlattenedPath, m.Got, m.Expected))
		}
		lines = append(lines, "")
	}
	lines = append(lines, fmt.Sprintf("Run ID: %s", run.ID))
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func scanLine(label string, stats scanner.Stats) string {
	return fmt.Sprintf("%s: %d files (%d cached, %d failed) in %s, %.1f files/s",
		label, stats.Files, stats.CacheHits, stats.Failed, stats.Duration.Round(time.Millisecond), stats.FilesPerSecond())
}

func previewTitle(title string, shown, total int) string {
	if shown < total {
		return fmt.Sprintf("%s (first %d of %d)", title, shown, total)
	}
	return fmt.Sprintf("%s (%d)", title, total)
}

func matchPreview(title string, matches []matcher.MatchResult, limit int, colorize bool) []string {
	if len(matches) == 0 {
		return nil
	}
	shown := min(limit, len(matches))
	lines := renderSectionHeader(previewTitle(title, shown, len(matches)), colorize)
	for _, m := range matches[:shown] {
		line := fmt.Sprintf("  %s -> %s", m.FlattenedPath, m.OriginalPath)
		if m.Method != matcher.MethodUniquePageCount {
			line += fmt.Sprintf(" (%s %.3f)", m.Kind, m.Confidence)
		}
		lines = append(lines, line)
	}
	return append(lines, "")
}

func ambiguousPreview(entries []matcher.AmbiguousEntry, colorize bool) []string {
	if len(entries) == 0 {
		return nil
	}
	shown := min(previewAmbiguous, len(entries))
	lines := renderSectionHeader(previewTitle("Ambiguous", shown, len(entries)), colorize)
	for _, a := range entries[:shown] {
		line := fmt.Sprintf("  %s (%d pages, %d candidates)", a.FlattenedPath, a.PageCount, len(a.Candidates))
		if a.BestPath != "" {
			line += fmt.Sprintf(", best %s %s %.3f", a.BestPath, a.BestKind, a.BestScore)
		}
		lines = append(lines, paint(line, ansiYellow, colorize))
		n := min(previewCandidates, len(a.Candidates))
		for _, c := range a.Candidates[:n] {
			lines = append(lines, "      "+c)
		}
		if rest := len(a.Candidates) - n; rest > 0 {
			lines = append(lines, fmt.Sprintf("      ... and %d more", rest))
		}
	}
	return append(lines, "")
}

func unmatchedPreview(entries []matcher.UnmatchedEntry, colorize bool) []string {
	if len(entries) == 0 {
		return nil
	}
	shown := min(previewUnmatched, len(entries))
	lines := renderSectionHeader(previewTitle("Unmatched", shown, len(entries)), colorize)
	for _, u := range entries[:shown] {
		reason := strings.ReplaceAll(string(u.Reason), "_", " ")
		lines = append(lines, paint(fmt.Sprintf("  %s (%s)", u.FlattenedPath, reason), ansiRed, colorize))
	}
	return append(lines, "")
}

func restoreLines(out pipeline.Outcome, colorize bool) []string {
	run := out.Run
	if run.OutputRoot == "" {
		return []string{"No --restore directory given; nothing planned.", ""}
	}
	sum := run.Restore
	if !run.Executed {
		return []string{
			fmt.Sprintf("Would restore %d files to %s (%d skipped).", sum.Planned, run.OutputRoot, sum.Skipped),
			"",
		}
	}
	kind := statusOK
	if sum.Failed > 0 {
		kind = statusWarn
	}
	return []string{
		renderStatusLine("Restore", kind,
			fmt.Sprintf("copied %d of %d files to %s (%d failed, %d skipped)", sum.Copied, sum.Planned, run.OutputRoot, sum.Failed, sum.Skipped),
			colorize),
		"",
	}
}
