package plan

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bgricker/crewreport/internal/config"
	"github.com/bgricker/crewreport/internal/discovery"
)

// Kind classifies a step; it decides the combined report grouping.
type Kind string

const (
	// KindSQL runs one script through the sqlcmd client.
	KindSQL Kind = "sql"
	// KindProgram runs an argv directly, without a shell.
	KindProgram Kind = "program"
	// KindShell runs a script through a shell.
	KindShell Kind = "shell"
)

// Group returns the heading under which results of this kind are reported.
func (k Kind) Group() string {
	if k == KindSQL {
		return "SQL Execution Results"
	}
	return "Report Generation"
}

// Fence returns the code fence language used when embedding output.
func (k Kind) Fence() string {
	if k == KindSQL {
		return "sql"
	}
	return "bash"
}

// Step is a single external command in the execution plan.
type Step struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Kind        Kind              `json:"kind"`
	Command     []string          `json:"command,omitempty"`
	Run         string            `json:"run,omitempty"`
	Shell       string            `json:"shell,omitempty"`
	Env         map[string]string `json:"-"`
	Timeout     time.Duration     `json:"-"`
}

// CommandLine renders the step as a single display string.
func (s Step) CommandLine() string {
	if s.Run != "" {
		return s.Run
	}
	parts := make([]string, 0, len(s.Command))
	for _, arg := range s.Command {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Builder assembles the execution plan from configuration.
type Builder struct {
	Config config.Config
	// Generator is the argv prefix that launches the report generator,
	// normally the running executable.
	Generator []string
}

// Build returns the ordered steps. Custom steps from the config file replace
// the default plan entirely.
func (b Builder) Build(root string) ([]Step, error) {
	if len(b.Config.Steps) > 0 {
		return b.custom()
	}

	dir := b.Config.ScriptsDir
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}

	var scripts []discovery.Script
	if b.Config.ScriptsGlob != "" {
		found, err := discovery.Scripts(dir, b.Config.ScriptsGlob)
		if err != nil {
			return nil, err
		}
		scripts = found
	} else {
		scripts = discovery.Defaults(dir)
	}

	steps := make([]Step, 0, len(scripts)+1)
	for _, script := range scripts {
		steps = append(steps, b.sqlStep(root, script))
	}
	if len(b.Generator) > 0 {
		steps = append(steps, b.generatorStep())
	}
	return steps, nil
}

func (b Builder) sqlStep(root string, script discovery.Script) Step {
	db := b.Config.Database
	server := db.Host
	if db.Port != 0 {
		server = fmt.Sprintf("%s,%d", db.Host, db.Port)
	}

	path := script.Path
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}

	command := []string{b.Config.Sqlcmd, "-S", server, "-U", db.User}
	command = append(command, b.Config.SqlcmdArgs...)
	command = append(command, "-i", path)

	env := map[string]string{}
	if db.Password != "" {
		env["SQLCMDPASSWORD"] = db.Password
	}

	return Step{
		Name:        script.Name,
		Description: script.Description,
		Kind:        KindSQL,
		Command:     command,
		Env:         env,
	}
}

// generatorStep launches the render subcommand with every setting it reads, so
// values resolved from flags or the environment reach the child process.
func (b Builder) generatorStep() Step {
	cfg := b.Config
	r := cfg.Render
	command := append([]string{}, b.Generator...)
	command = append(command, "render",
		"--pdf", r.PDF,
		"--markdown", r.Markdown,
		"--flight-id", strconv.Itoa(r.FlightID),
	)
	if r.ReportsFile != "" {
		command = append(command, "--reports", r.ReportsFile)
	}
	if r.QueryTimeout > 0 {
		command = append(command, "--query-timeout", r.QueryTimeout.String())
	}
	if cfg.Database.Driver != "" {
		command = append(command, "--driver", cfg.Database.Driver)
	}
	if cfg.MetricsFile != "" {
		command = append(command, "--metrics-file", cfg.MetricsFile)
	}
	if cfg.Log.Level != "" {
		command = append(command, "--log-level", cfg.Log.Level)
	}
	if cfg.Log.Format != "" {
		command = append(command, "--log-format", cfg.Log.Format)
	}
	if cfg.Verbose {
		command = append(command, "--verbose")
	}
	return Step{
		Name:        "render",
		Description: "Generate crew reports",
		Kind:        KindProgram,
		Command:     command,
	}
}

func (b Builder) custom() ([]Step, error) {
	steps := make([]Step, 0, len(b.Config.Steps))
	for i, sc := range b.Config.Steps {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return nil, fmt.Errorf("step %d: name is required", i+1)
		}
		if sc.Run == "" && len(sc.Command) == 0 {
			return nil, fmt.Errorf("step %q: one of run or command is required", name)
		}
		if sc.Run != "" && len(sc.Command) > 0 {
			return nil, fmt.Errorf("step %q: run and command are mutually exclusive", name)
		}

		kind := Kind(strings.ToLower(strings.TrimSpace(sc.Kind)))
		switch kind {
		case "":
			kind = KindProgram
			if sc.Run != "" {
				kind = KindShell
			}
		case KindSQL, KindProgram, KindShell:
		default:
			return nil, fmt.Errorf("step %q: unknown kind %q", name, sc.Kind)
		}

		desc := sc.Description
		if desc == "" {
			desc = name
		}
		env := make(map[string]string, len(sc.Env))
		for k, v := range sc.Env {
			env[k] = v
		}
		steps = append(steps, Step{
			Name:        name,
			Description: desc,
			Kind:        kind,
			Command:     append([]string{}, sc.Command...),
			Run:         sc.Run,
			Shell:       sc.Shell,
			Env:         env,
			Timeout:     sc.Timeout,
		})
	}
	return steps, nil
}
