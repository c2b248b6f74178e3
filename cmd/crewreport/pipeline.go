package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bgricker/crewreport/internal/config"
	"github.com/bgricker/crewreport/internal/discovery"
	"github.com/bgricker/crewreport/internal/plan"
	"github.com/bgricker/crewreport/internal/plan/filter"
	"github.com/bgricker/crewreport/internal/version"
)

// pipelineData bundles the resolved steps with warnings about the environment.
type pipelineData struct {
	steps    []plan.Step
	warnings []string
}

func loadPipeline(ctx context.Context, root string, cfg config.Config, logger *zap.Logger) (pipelineData, error) {
	exe, err := os.Executable()
	if err != nil {
		return pipelineData{}, fmt.Errorf("locate report generator: %w", err)
	}

	builder := plan.Builder{Config: cfg, Generator: []string{exe}}
	steps, err := builder.Build(root)
	if err != nil {
		if errors.Is(err, discovery.ErrNoScripts) {
			return pipelineData{}, fmt.Errorf("no SQL scripts match %q in %s", cfg.ScriptsGlob, cfg.ScriptsDir)
		}
		return pipelineData{}, err
	}

	return pipelineData{steps: steps, warnings: clientWarnings(ctx, cfg, steps, logger)}, nil
}

func applyFilters(data pipelineData, cfg config.Config) (pipelineData, error) {
	onlyPatterns, err := filter.Compile(cfg.OnlySteps)
	if err != nil {
		return pipelineData{}, err
	}
	skipPatterns, err := filter.Compile(cfg.SkipSteps)
	if err != nil {
		return pipelineData{}, err
	}

	filtered := filter.Steps(data.steps, onlyPatterns, skipPatterns)
	return pipelineData{steps: filtered, warnings: data.warnings}, nil
}

// clientWarnings checks for sqlcmd only when the plan has SQL steps to give it.
func clientWarnings(ctx context.Context, cfg config.Config, steps []plan.Step, logger *zap.Logger) []string {
	if !cfg.Warn.CheckClient() || !hasKind(steps, plan.KindSQL) {
		return nil
	}
	info, err := version.DetectSqlcmd(ctx, cfg.Sqlcmd)
	switch {
	case version.Missing(err):
		return []string{fmt.Sprintf("%s executable not found; SQL steps will fail", cfg.Sqlcmd)}
	case err != nil:
		return []string{fmt.Sprintf("unable to detect %s version: %v", cfg.Sqlcmd, err)}
	}
	logger.Debug("sqlcmd detected",
		zap.String("path", info.Path),
		zap.String("version", info.Version),
		zap.String("flavor", info.Flavor))
	return nil
}

func hasKind(steps []plan.Step, kind plan.Kind) bool {
	for _, s := range steps {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// resolvePath anchors relative artifact paths at the working directory root.
func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
