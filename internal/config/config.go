package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the per-project configuration file looked up in the working directory.
const FileName = ".crewreport.yml"

// Config captures CLI options sourced from config files, the environment or flags.
type Config struct {
	Database Database `yaml:"database"`

	Sqlcmd      string       `yaml:"sqlcmd"`
	SqlcmdArgs  []string     `yaml:"sqlcmd_args"`
	ScriptsDir  string       `yaml:"scripts_dir"`
	ScriptsGlob string       `yaml:"scripts_glob"`
	Steps       []StepConfig `yaml:"steps"`

	OnlySteps []string `yaml:"only_step"`
	SkipSteps []string `yaml:"skip_step"`

	DryRun  bool   `yaml:"dry_run"`
	Verbose bool   `yaml:"verbose"`
	Strict  bool   `yaml:"strict"`
	Format  string `yaml:"format"`

	Output      string        `yaml:"output"`
	Artifact    string        `yaml:"artifact"`
	StepTimeout time.Duration `yaml:"step_timeout"`
	History     string        `yaml:"history"`
	MetricsFile string        `yaml:"metrics_file"`

	Render RenderConfig `yaml:"render"`
	Log    LogConfig    `yaml:"log"`
	Warn   WarnConfig   `yaml:"warn"`
}

// Database describes the report database connection. Password is never read from flags.
type Database struct {
	Driver   string            `yaml:"driver"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Name     string            `yaml:"name"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Params   map[string]string `yaml:"params"`
}

// StepConfig declares a custom step in the config file, replacing the default plan.
type StepConfig struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Kind        string            `yaml:"kind"`
	Run         string            `yaml:"run"`
	Shell       string            `yaml:"shell"`
	Command     []string          `yaml:"command"`
	Env         map[string]string `yaml:"env"`
	Timeout     time.Duration     `yaml:"timeout"`
}

// RenderConfig controls the report generator.
type RenderConfig struct {
	PDF          string        `yaml:"pdf"`
	Markdown     string        `yaml:"markdown"`
	ReportsFile  string        `yaml:"reports_file"`
	FlightID     int           `yaml:"flight_id"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// LogConfig selects the structured logger level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WarnConfig controls additional warning behaviour.
type WarnConfig struct {
	// MissingClient stays nil unless configured; nil means the check runs.
	MissingClient *bool `yaml:"missing_client"`
}

// CheckClient reports whether a missing sqlcmd client should be warned about.
func (w WarnConfig) CheckClient() bool {
	return w.MissingClient == nil || *w.MissingClient
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"

	// DriverSQLServer is the default report database driver.
	DriverSQLServer = "sqlserver"
	// DriverPostgres selects the pgx driver.
	DriverPostgres = "postgres"
	// DriverSQLite selects the pure Go sqlite driver.
	DriverSQLite = "sqlite"
)

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Database: Database{
			Driver: DriverSQLServer,
			Host:   "localhost",
			Port:   1433,
			Name:   "CrewSchedulingDB",
			User:   "sa",
		},
		Sqlcmd:      "sqlcmd",
		ScriptsDir:  ".",
		Format:      FormatPretty,
		Output:      "complete_system_report.md",
		StepTimeout: 10 * time.Minute,
		Render: RenderConfig{
			PDF:          "crew_reports.pdf",
			Markdown:     "crew_reports.md",
			FlightID:     1,
			QueryTimeout: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ArtifactPath is the generator Markdown embedded in the combined report. It
// follows render.markdown unless artifact is set explicitly.
func (c Config) ArtifactPath() string {
	if c.Artifact != "" {
		return c.Artifact
	}
	return c.Render.Markdown
}

// Load reads .crewreport.yml from root when present, then applies .env and
// process environment overrides. Missing files are ignored.
func Load(root string) (Config, error) {
	cfg := Default()
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := LoadDotenv(root); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotenv populates the process environment from root/.env without
// overriding variables that are already set.
func LoadDotenv(root string) error {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %q: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides database and logging settings from CREW_* variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	str("CREW_DB_DRIVER", &cfg.Database.Driver)
	str("CREW_DB_HOST", &cfg.Database.Host)
	str("CREW_DB_NAME", &cfg.Database.Name)
	str("CREW_DB_USER", &cfg.Database.User)
	str("CREW_DB_PASSWORD", &cfg.Database.Password)
	str("CREW_SQLCMD", &cfg.Sqlcmd)
	str("CREW_LOG_LEVEL", &cfg.Log.Level)
	str("CREW_LOG_FORMAT", &cfg.Log.Format)

	if v, ok := lookup("CREW_DB_PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse CREW_DB_PORT %q: %w", v, err)
		}
		cfg.Database.Port = port
	}
	return nil
}

func merge(base, override Config) Config {
	out := base

	out.Database = mergeDatabase(base.Database, override.Database)

	if override.Sqlcmd != "" {
		out.Sqlcmd = override.Sqlcmd
	}
	if len(override.SqlcmdArgs) > 0 {
		out.SqlcmdArgs = append([]string{}, override.SqlcmdArgs...)
	}
	if override.ScriptsDir != "" {
		out.ScriptsDir = override.ScriptsDir
	}
	if override.ScriptsGlob != "" {
		out.ScriptsGlob = override.ScriptsGlob
	}
	if len(override.Steps) > 0 {
		out.Steps = append([]StepConfig{}, override.Steps...)
	}
	if len(override.OnlySteps) > 0 {
		out.OnlySteps = append([]string{}, override.OnlySteps...)
	}
	if len(override.SkipSteps) > 0 {
		out.SkipSteps = append([]string{}, override.SkipSteps...)
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.DryRun {
		out.DryRun = true
	}
	if override.Verbose {
		out.Verbose = true
	}
	if override.Strict {
		out.Strict = true
	}
	if override.Output != "" {
		out.Output = override.Output
	}
	if override.Artifact != "" {
		out.Artifact = override.Artifact
	}
	if override.StepTimeout > 0 {
		out.StepTimeout = override.StepTimeout
	}
	if override.History != "" {
		out.History = override.History
	}
	if override.MetricsFile != "" {
		out.MetricsFile = override.MetricsFile
	}

	if override.Render.PDF != "" {
		out.Render.PDF = override.Render.PDF
	}
	if override.Render.Markdown != "" {
		out.Render.Markdown = override.Render.Markdown
	}
	if override.Render.ReportsFile != "" {
		out.Render.ReportsFile = override.Render.ReportsFile
	}
	if override.Render.FlightID != 0 {
		out.Render.FlightID = override.Render.FlightID
	}
	if override.Render.QueryTimeout > 0 {
		out.Render.QueryTimeout = override.Render.QueryTimeout
	}

	if override.Log.Level != "" {
		out.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		out.Log.Format = override.Log.Format
	}

	if override.Warn.MissingClient != nil {
		enabled := *override.Warn.MissingClient
		out.Warn.MissingClient = &enabled
	}

	return out
}

func mergeDatabase(base, override Database) Database {
	out := base
	if override.Driver != "" {
		out.Driver = override.Driver
	}
	if override.Host != "" {
		out.Host = override.Host
	}
	if override.Port != 0 {
		out.Port = override.Port
	}
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.User != "" {
		out.User = override.User
	}
	if override.Password != "" {
		out.Password = override.Password
	}
	if len(override.Params) > 0 {
		out.Params = make(map[string]string, len(override.Params))
		for k, v := range override.Params {
			out.Params[k] = v
		}
	}
	return out
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if len(flags.OnlySteps.Values) > 0 {
		cfg.OnlySteps = append([]string{}, flags.OnlySteps.Values...)
	}
	if len(flags.SkipSteps.Values) > 0 {
		cfg.SkipSteps = append([]string{}, flags.SkipSteps.Values...)
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
	if flags.Strict.Set {
		cfg.Strict = flags.Strict.Value
	}
	if flags.Output.Set {
		cfg.Output = flags.Output.Value
	}
	if flags.Artifact.Set {
		cfg.Artifact = flags.Artifact.Value
	}
	if flags.StepTimeout.Set {
		cfg.StepTimeout = flags.StepTimeout.Value
	}
	if flags.History.Set {
		cfg.History = flags.History.Value
	}
	if flags.MetricsFile.Set {
		cfg.MetricsFile = flags.MetricsFile.Value
	}
	if flags.Driver.Set {
		cfg.Database.Driver = flags.Driver.Value
	}
	if flags.LogLevel.Set {
		cfg.Log.Level = flags.LogLevel.Value
	}
	if flags.LogFormat.Set {
		cfg.Log.Format = flags.LogFormat.Value
	}
	if flags.PDF.Set {
		cfg.Render.PDF = flags.PDF.Value
	}
	if flags.Markdown.Set {
		cfg.Render.Markdown = flags.Markdown.Value
	}
	if flags.ReportsFile.Set {
		cfg.Render.ReportsFile = flags.ReportsFile.Value
	}
	if flags.FlightID.Set {
		cfg.Render.FlightID = flags.FlightID.Value
	}
	if flags.QueryTimeout.Set {
		cfg.Render.QueryTimeout = flags.QueryTimeout.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	OnlySteps   SliceFlag
	SkipSteps   SliceFlag
	Format      StringFlag
	DryRun      BoolFlag
	Verbose     BoolFlag
	Strict      BoolFlag
	Output      StringFlag
	Artifact    StringFlag
	StepTimeout DurationFlag
	History     StringFlag
	MetricsFile StringFlag
	Driver      StringFlag
	LogLevel    StringFlag
	LogFormat   StringFlag

	PDF          StringFlag
	Markdown     StringFlag
	ReportsFile  StringFlag
	FlightID     IntFlag
	QueryTimeout DurationFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}

// DurationFlag represents a duration flag and whether it was set.
type DurationFlag struct {
	Value time.Duration
	Set   bool
}
