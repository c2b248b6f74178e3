package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bgricker/crewreport/internal/output"
	"github.com/bgricker/crewreport/internal/plan"
	"github.com/bgricker/crewreport/internal/report"
)

// Options configure how the runner executes steps.
type Options struct {
	Root     string
	Stdout   io.Writer
	Stderr   io.Writer
	Verbose  bool
	DryRun   bool
	Env      []string
	Now      func() time.Time
	Timeout  time.Duration
	RunID    string
	Logger   *zap.Logger
	Observer output.StepObserver
}

// Runner executes plan steps sequentially. A failing step never stops the run.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts}
}

// Run executes steps in order and returns one result per step.
func (r *Runner) Run(ctx context.Context, steps []plan.Step) ([]report.StepResult, report.Summary) {
	summary := report.Summary{
		RunID:      r.opts.RunID,
		StartedAt:  r.opts.Now(),
		TotalSteps: len(steps),
	}
	results := make([]report.StepResult, 0, len(steps))
	log := r.opts.Logger.With(zap.String("run_id", r.opts.RunID))

	for _, step := range steps {
		result := report.StepResult{
			StepName:    step.Name,
			Description: step.Description,
			Kind:        string(step.Kind),
			Command:     step.CommandLine(),
			DryRun:      r.opts.DryRun,
		}
		if r.opts.Observer != nil {
			r.opts.Observer.StepStarted(step)
		}

		if r.opts.DryRun {
			result.Status = report.StatusSkipped
		} else {
			start := r.opts.Now()
			err := r.runStep(ctx, step, &result)
			result.Duration = r.opts.Now().Sub(start)
			result.DurationMS = result.Duration.Milliseconds()
			if err != nil {
				result.Status = report.StatusFailed
			} else {
				result.Status = report.StatusPassed
			}
		}

		summary.Add(result)
		results = append(results, result)

		fields := []zap.Field{
			zap.String("step", result.StepName),
			zap.String("status", result.Status),
			zap.Duration("duration", result.Duration),
			zap.Int("exit_code", result.ExitCode),
		}
		if result.Failed() {
			log.Warn("step failed", append(fields, zap.String("error", firstNonEmpty(result.Error, result.Hint)))...)
		} else {
			log.Info("step finished", fields...)
		}
		if r.opts.Observer != nil {
			r.opts.Observer.StepFinished(result)
		}
	}

	return results, summary
}

func (r *Runner) runStep(ctx context.Context, step plan.Step, result *report.StepResult) error {
	args, err := buildCommand(step)
	if err != nil {
		result.Error = err.Error()
		result.ExitCode = 127
		return err
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(stepCtx, args[0], args[1:]...)
	cmd.Dir = r.opts.Root
	cmd.Env = mergeEnv(r.opts.Env, step.Env)
	cmd.WaitDelay = 2 * time.Second

	var stdoutBuf, stderrBuf strings.Builder
	if r.opts.Verbose {
		cmd.Stdout = io.MultiWriter(r.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(r.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err = cmd.Run()
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.ExitCode = exitCode(err)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Error = fmt.Sprintf("step timed out after %s", timeout)
	case ctx.Err() != nil:
		result.Error = fmt.Sprintf("step interrupted: %v", ctx.Err())
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			result.Error = err.Error()
			result.ExitCode = 127
		}
	}
	result.Hint = simplifyError(result.Stderr + "\n" + result.Stdout)
	return err
}

func buildCommand(step plan.Step) ([]string, error) {
	if len(step.Command) > 0 {
		if strings.TrimSpace(step.Command[0]) == "" {
			return nil, fmt.Errorf("step %q has an empty executable", step.Name)
		}
		return append([]string{}, step.Command...), nil
	}
	if strings.TrimSpace(step.Run) == "" {
		return nil, fmt.Errorf("step %q has nothing to run", step.Name)
	}
	return commandArgs(strings.TrimSpace(step.Shell), step.Run), nil
}

func commandArgs(shellSpec string, script string) []string {
	if shellSpec == "" {
		if runtime.GOOS == "windows" {
			return []string{"cmd", "/C", script}
		}
		return []string{"sh", "-c", script}
	}

	fields := strings.Fields(shellSpec)
	shell := fields[0]
	args := append([]string{}, fields[1:]...)

	switch strings.ToLower(filepath.Base(shell)) {
	case "bash", "zsh", "ksh", "sh", "dash":
		args = append(args, "-c", script)
	case "cmd", "cmd.exe":
		args = append(args, "/C", script)
	case "pwsh", "powershell", "powershell.exe":
		args = append(args, "-Command", script)
	default:
		args = append(args, script)
	}
	return append([]string{shell}, args...)
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays)*4)
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}

// simplifyError maps common sqlcmd and ODBC failures to an actionable hint.
func simplifyError(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "login failed for user"):
		return "login failed; check CREW_DB_USER and CREW_DB_PASSWORD"
	case strings.Contains(lower, "can't open lib") || strings.Contains(lower, "data source name not found"):
		return "ODBC driver for SQL Server is not installed; install msodbcsql18 or the go-sqlcmd client"
	case strings.Contains(lower, "login timeout expired"),
		strings.Contains(lower, "tcp provider"),
		strings.Contains(lower, "server is not found or not accessible"):
		return "database server unreachable; check CREW_DB_HOST and CREW_DB_PORT"
	case strings.Contains(lower, "invalid filename"):
		return "script file not found; check scripts_dir"
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
