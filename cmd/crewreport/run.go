package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bgricker/crewreport/internal/config"
	"github.com/bgricker/crewreport/internal/history"
	"github.com/bgricker/crewreport/internal/output"
	"github.com/bgricker/crewreport/internal/report"
	"github.com/bgricker/crewreport/internal/runner"
	"github.com/bgricker/crewreport/internal/telemetry"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the SQL scripts and the report generator, then write the combined report",
		RunE:  a.runExecute,
	}
	flags := cmd.Flags()
	flags.Bool("dry-run", false, "print commands without executing them")
	flags.Bool("strict", false, "exit non-zero when any step failed")
	flags.String("output", "", "combined report path (default complete_system_report.md)")
	flags.String("artifact", "", "generator Markdown read into the combined report (default: the render Markdown path)")
	flags.Duration("step-timeout", 0, "maximum wall time per step (default 10m)")
	return cmd
}

func (a *app) runExecute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := a.cfg
	format := strings.ToLower(cfg.Format)
	if format != config.FormatPretty && format != config.FormatJSON {
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}

	data, err := loadPipeline(ctx, a.root, cfg, a.logger)
	if err != nil {
		return err
	}
	filtered, err := applyFilters(data, cfg)
	if err != nil {
		return err
	}
	if len(filtered.steps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching steps")
		return nil
	}

	runID := uuid.NewString()
	log := a.logger.With(zap.String("run_id", runID))

	var store *history.Storage
	if cfg.History != "" && !cfg.DryRun {
		store, err = history.Open(resolvePath(a.root, cfg.History))
		if err != nil {
			return err
		}
		defer store.Close()
		if _, err := store.CreateRun(runID, time.Now()); err != nil {
			return err
		}
	}

	runOpts := runner.Options{
		Root:    a.root,
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		DryRun:  cfg.DryRun,
		Timeout: cfg.StepTimeout,
		RunID:   runID,
		Logger:  log,
	}
	var pretty *output.PrettyRenderer
	if format == config.FormatPretty {
		pretty = output.NewPretty(cmd.OutOrStdout())
		runOpts.Observer = pretty
	}
	results, summary := runner.New(runOpts).Run(ctx, filtered.steps)

	var outputPath string
	if !cfg.DryRun {
		outputPath = resolvePath(a.root, cfg.Output)
		artifact := output.ReadArtifact(resolvePath(a.root, cfg.ArtifactPath()))
		if artifact.Err != nil {
			log.Warn("generator artifact unavailable", zap.String("path", artifact.Path), zap.Error(artifact.Err))
		}
		if _, err := output.WriteCombined(outputPath, time.Now(), results, artifact); err != nil {
			return err
		}
		log.Info("combined report written", zap.String("path", outputPath))
	}

	finished := time.Now()
	if store != nil {
		if err := store.FinishRun(summary, results, outputPath, finished); err != nil {
			log.Warn("record run history", zap.Error(err))
		}
	}
	if cfg.MetricsFile != "" {
		metrics := telemetry.NewMetrics()
		metrics.ObserveSteps(results)
		metrics.MarkFinished(finished)
		if err := metrics.WriteTextfile(resolvePath(a.root, cfg.MetricsFile)); err != nil {
			log.Warn("write metrics", zap.Error(err))
		}
	}

	if pretty != nil {
		if err := pretty.RenderSummary(summary); err != nil {
			return err
		}
		if outputPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Complete report saved to: %s\n", cfg.Output)
		}
		for _, msg := range filtered.warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
	} else {
		jsonReport := output.Report{
			Steps:    filtered.steps,
			Results:  results,
			Summary:  &summary,
			Output:   outputPath,
			Warnings: filtered.warnings,
		}
		if err := output.NewJSON(cmd.OutOrStdout()).Render(jsonReport); err != nil {
			return err
		}
	}

	if cfg.Strict && report.CountFailed(results) > 0 {
		return errors.New("one or more steps failed")
	}
	return nil
}
