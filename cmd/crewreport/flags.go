package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/crewreport/internal/config"
)

// gatherFlags records only the flags the user set, so config file and
// environment values survive for everything else. Flags a subcommand does not
// define are never Changed.
func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	multi := []struct {
		name string
		dst  *config.SliceFlag
	}{
		{"only-step", &values.OnlySteps},
		{"skip-step", &values.SkipSteps},
	}
	for _, f := range multi {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetStringArray(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		f.dst.Values = append([]string{}, v...)
	}

	strs := []struct {
		name string
		dst  *config.StringFlag
	}{
		{"format", &values.Format},
		{"output", &values.Output},
		{"artifact", &values.Artifact},
		{"history", &values.History},
		{"metrics-file", &values.MetricsFile},
		{"driver", &values.Driver},
		{"log-level", &values.LogLevel},
		{"log-format", &values.LogFormat},
		{"pdf", &values.PDF},
		{"markdown", &values.Markdown},
		{"reports", &values.ReportsFile},
	}
	for _, f := range strs {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.StringFlag{Value: v, Set: true}
	}

	bools := []struct {
		name string
		dst  *config.BoolFlag
	}{
		{"dry-run", &values.DryRun},
		{"verbose", &values.Verbose},
		{"strict", &values.Strict},
	}
	for _, f := range bools {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetBool(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.BoolFlag{Value: v, Set: true}
	}

	durations := []struct {
		name string
		dst  *config.DurationFlag
	}{
		{"step-timeout", &values.StepTimeout},
		{"query-timeout", &values.QueryTimeout},
	}
	for _, f := range durations {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetDuration(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.DurationFlag{Value: v, Set: true}
	}

	if flags.Changed("flight-id") {
		v, err := flags.GetInt("flight-id")
		if err != nil {
			return values, fmt.Errorf("parse --flight-id: %w", err)
		}
		values.FlightID = config.IntFlag{Value: v, Set: true}
	}

	return values, nil
}
