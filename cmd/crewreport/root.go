package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bgricker/crewreport/internal/config"
	"github.com/bgricker/crewreport/internal/telemetry"
)

// app holds state resolved once per invocation and shared by subcommands.
type app struct {
	cfg    config.Config
	root   string
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:           "crewreport",
		Short:         "Crewreport builds the crew scheduling database and its reports",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringArray("only-step", nil, "include only matching steps")
	persistent.StringArray("skip-step", nil, "exclude matching steps")
	persistent.BoolP("verbose", "v", false, "stream command output in real time")
	persistent.String("format", "pretty", "output format (pretty|json)")
	persistent.String("driver", "", "report database driver (sqlserver|postgres|sqlite)")
	persistent.String("history", "", "SQLite file recording run history")
	persistent.String("metrics-file", "", "write Prometheus metrics to this textfile")
	persistent.String("log-level", "", "log level (debug|info|warn|error)")
	persistent.String("log-format", "", "log encoding (json|console)")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newRenderCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newHistoryCmd(a))

	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format, cfg.Verbose)
	if err != nil {
		return err
	}
	a.cfg, a.root, a.logger = cfg, root, logger.With(zap.String("command", cmd.Name()))
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	return cfg, root, nil
}
