package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"unflatten/internal/preflight"
	"unflatten/internal/report"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, directories, and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			configDetail := ctx.configPath
			if !ctx.configSeen {
				configDetail += " (not found, using defaults)"
			}
			lines := renderSectionHeader("Configuration", colorize)
			lines = append(lines,
				renderStatusLine("Config", statusOK, configDetail, colorize),
				renderStatusLine("Strategy", statusInfo, strings.Join(cfg.Matching.Strategy, ","), colorize),
				renderStatusLine("OCR", statusInfo, yesNo(cfg.Fingerprint.OCREnabled), colorize),
				"")

			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			lines = append(lines, checkLines([]preflight.Result{
				preflight.CheckDirectoryWritable("Cache directory", cfg.Paths.CacheDir),
				preflight.CheckDirectoryWritable("Data directory", cfg.Paths.DataDir),
			}, colorize)...)
			if cfg.Report.Enabled {
				lines = append(lines, runHistoryLine(cfg.ReportDBPath(), colorize))
			}
			lines = append(lines, "")

			lines = append(lines, renderSectionHeader("External tools", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg), colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func runHistoryLine(path string, colorize bool) string {
	store, err := report.Open(path)
	if err != nil {
		return renderStatusLine("Run history", statusError, err.Error(), colorize)
	}
	defer store.Close()
	return renderStatusLine("Run history", statusOK, path, colorize)
}
