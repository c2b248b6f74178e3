package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgricker/crewreport/internal/config"
	"github.com/bgricker/crewreport/internal/output"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the pipeline steps and the reports they produce",
		RunE:  a.runList,
	}
	cmd.Flags().String("reports", "", "YAML file replacing the built-in report definitions")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	data, err := loadPipeline(cmd.Context(), a.root, cfg, a.logger)
	if err != nil {
		return err
	}
	filtered, err := applyFilters(data, cfg)
	if err != nil {
		return err
	}
	defs, err := loadDefinitions(a.root, cfg)
	if err != nil {
		return err
	}

	if len(filtered.steps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching steps")
		return nil
	}

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		if err := output.NewPretty(cmd.OutOrStdout()).RenderPlan(filtered.steps, defs); err != nil {
			return err
		}
		for _, msg := range filtered.warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
	case config.FormatJSON:
		listing := output.Report{
			Steps:    filtered.steps,
			Reports:  output.Entries(defs),
			Warnings: filtered.warnings,
		}
		if err := output.NewJSON(cmd.OutOrStdout()).Render(listing); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
	return nil
}
