package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"unflatten/internal/config"
	"unflatten/internal/pipeline"
	"unflatten/internal/preflight"
	"unflatten/internal/progress"
	"unflatten/internal/report"
)

type runFlags struct {
	flattened       string
	original        string
	restoreDir      string
	execute         bool
	textThreshold   float64
	visualThreshold float64
	workers         int
	noCache         bool
	strategy        []string
	strictUnique    bool
	mappingPath     string
	jsonOutput      bool
	reportPath      string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match flattened files to the original tree and optionally restore them",
		Long: `Scan the flattened and original trees, match every flattened PDF to its
original location by page count and content, and print the classification.

Without --execute the run is a dry run: the restore plan is computed and
reported but nothing is copied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyRunFlags(cmd, base, flags)
			if err != nil {
				return err
			}
			if flags.execute && strings.TrimSpace(flags.restoreDir) == "" {
				return errors.New("--execute requires --restore")
			}

			checks := preflight.RunAll(cfg, preflight.Request{
				Flattened: flags.flattened,
				Original:  flags.original,
				Output:    flags.restoreDir,
			})
			if err := preflight.Failed(checks); err != nil {
				return fmt.Errorf("preflight failed:\n%w", err)
			}

			logger := ctx.logger(cfg)
			reporter := progress.Nop()
			if !flags.jsonOutput {
				reporter = progress.New(os.Stderr, logger)
			}
			p, err := pipeline.New(cfg, logger, pipeline.WithProgress(reporter))
			if err != nil {
				return err
			}
			outcome, err := p.Run(cmd.Context(), pipeline.Request{
				Flattened:   flags.flattened,
				Original:    flags.original,
				Output:      flags.restoreDir,
				Execute:     flags.execute,
				MappingPath: flags.mappingPath,
			})
			if err != nil {
				return err
			}

			if flags.reportPath != "" {
				if err := report.WriteFile(flags.reportPath, outcome.Document()); err != nil {
					return err
				}
			}
			if flags.jsonOutput {
				return writeJSON(cmd, outcome.Document())
			}
			renderRunSummary(cmd.OutOrStdout(), outcome, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.flattened, "flattened", "", "Directory holding the flattened files")
	f.StringVar(&flags.original, "original", "", "Directory holding the original tree")
	f.StringVar(&flags.restoreDir, "restore", "", "Output directory for the restored tree")
	f.BoolVar(&flags.execute, "execute", false, "Copy matched files (default is a dry run)")
	f.Float64Var(&flags.textThreshold, "text-threshold", 0, "Minimum text similarity to accept a match")
	f.Float64Var(&flags.visualThreshold, "visual-threshold", 0, "Minimum hash or image similarity to accept a match")
	f.IntVar(&flags.workers, "workers", 0, "Concurrent extraction workers")
	f.BoolVar(&flags.noCache, "no-cache", false, "Ignore and do not write the metadata cache")
	f.StringSliceVar(&flags.strategy, "strategy", nil, "Signature kinds to try in order (text, hash, image)")
	f.BoolVar(&flags.strictUnique, "strict-unique", false, "Require content evidence for single-candidate page counts")
	f.StringVar(&flags.mappingPath, "mapping", "", "Flattening mapping JSON used to score the run")
	f.BoolVar(&flags.jsonOutput, "json", false, "Print the run report as JSON")
	f.StringVar(&flags.reportPath, "report", "", "Also write the JSON run report to this file")
	_ = cmd.MarkFlagRequired("flattened")
	_ = cmd.MarkFlagRequired("original")

	return cmd
}

// applyRunFlags returns a copy of base with the explicitly set flags applied
// and validated.
func applyRunFlags(cmd *cobra.Command, base *config.Config, flags runFlags) (*config.Config, error) {
	cfg := *base
	changed := cmd.Flags().Changed
	if changed("text-threshold") {
		cfg.Matching.TextThreshold = flags.textThreshold
	}
	if changed("visual-threshold") {
		cfg.Matching.VisualThreshold = flags.visualThreshold
	}
	if flags.noCache {
		cfg.Scan.CacheEnabled = false
	}
	if changed("strategy") {
		kinds := make([]string, 0, len(flags.strategy))
		for _, k := range flags.strategy {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kinds = append(kinds, k)
			}
		}
		cfg.Matching.Strategy = kinds
	}
	if changed("strict-unique") {
		cfg.Matching.StrictUnique = flags.strictUnique
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	// Applied after Normalize so the flag wins over UNFLATTEN_WORKERS.
	if changed("workers") {
		if flags.workers <= 0 {
			return nil, errors.New("--workers must be positive")
		}
		cfg.Scan.Workers = flags.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
