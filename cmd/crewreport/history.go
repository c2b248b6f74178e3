package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgricker/crewreport/internal/config"
	"github.com/bgricker/crewreport/internal/history"
	"github.com/bgricker/crewreport/internal/output"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs, or the steps of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runHistory,
	}
	cmd.Flags().Int("limit", 10, "number of runs to show")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	if cfg.History == "" {
		return errors.New("no history file configured; pass --history or set history in " + config.FileName)
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("parse --limit: %w", err)
	}

	store, err := history.Open(resolvePath(a.root, cfg.History))
	if err != nil {
		return err
	}
	defer store.Close()

	asJSON := strings.ToLower(cfg.Format) == config.FormatJSON
	if len(args) == 1 {
		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		steps, err := store.Steps(run.ID)
		if err != nil {
			return err
		}
		if asJSON {
			return output.NewJSON(cmd.OutOrStdout()).Encode(struct {
				Run   history.Run             `json:"run"`
				Steps []history.StepExecution `json:"steps"`
			}{run, steps})
		}
		pretty := output.NewPretty(cmd.OutOrStdout())
		if err := pretty.RenderHistory([]history.Run{run}); err != nil {
			return err
		}
		return pretty.RenderExecutions(steps)
	}

	runs, err := store.Runs(limit)
	if err != nil {
		return err
	}
	if asJSON {
		if runs == nil {
			runs = []history.Run{}
		}
		return output.NewJSON(cmd.OutOrStdout()).Encode(runs)
	}
	return output.NewPretty(cmd.OutOrStdout()).RenderHistory(runs)
}
