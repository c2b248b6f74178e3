package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bgricker/crewreport/internal/catalog"
	"github.com/bgricker/crewreport/internal/config"
	"github.com/bgricker/crewreport/internal/dbconn"
	"github.com/bgricker/crewreport/internal/output"
	"github.com/bgricker/crewreport/internal/render"
	"github.com/bgricker/crewreport/internal/report"
	"github.com/bgricker/crewreport/internal/telemetry"
)

func newRenderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Query the crew database and write the PDF and Markdown reports",
		RunE:  a.runRender,
	}
	flags := cmd.Flags()
	flags.Int("flight-id", 1, "flight to schedule crew for")
	flags.String("pdf", "", "PDF output path (default crew_reports.pdf)")
	flags.String("markdown", "", "Markdown output path (default crew_reports.md)")
	flags.String("reports", "", "YAML file replacing the built-in report definitions")
	flags.Duration("query-timeout", 0, "maximum time per report query (default 1m)")
	return cmd
}

// loadDefinitions returns the built-in reports unless a definitions file is configured.
func loadDefinitions(root string, cfg config.Config) ([]catalog.Definition, error) {
	if cfg.Render.ReportsFile == "" {
		return catalog.Builtin(), nil
	}
	return catalog.Load(resolvePath(root, cfg.Render.ReportsFile))
}

func (a *app) runRender(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	defs, err := loadDefinitions(a.root, cfg)
	if err != nil {
		return err
	}
	conn, err := dbconn.New(cfg.Database)
	if err != nil {
		return err
	}
	log := a.logger.With(zap.Stringer("database", conn))

	r := render.New(conn, render.Options{
		Params:       map[string]any{"flight_id": cfg.Render.FlightID},
		QueryTimeout: cfg.Render.QueryTimeout,
		Rebind:       conn.Rebind,
		Logger:       log,
	})
	sections := r.Render(cmd.Context(), defs)

	doc := render.Document{
		TaskDescription: catalog.TaskDescription,
		Sections:        sections,
		Generated:       time.Now(),
	}
	pdfPath := resolvePath(a.root, cfg.Render.PDF)
	if err := render.WritePDF(pdfPath, doc); err != nil {
		return err
	}
	if pages, err := render.Inspect(pdfPath); err != nil {
		log.Warn("pdf validation failed", zap.String("path", pdfPath), zap.Error(err))
	} else {
		log.Info("pdf written", zap.String("path", pdfPath), zap.Int("pages", pages))
	}
	mdPath := resolvePath(a.root, cfg.Render.Markdown)
	if err := render.WriteMarkdown(mdPath, doc); err != nil {
		return err
	}
	log.Info("markdown written", zap.String("path", mdPath))

	if cfg.MetricsFile != "" {
		metrics := telemetry.NewMetrics()
		telemetry.ObserveSections(metrics, sections)
		metrics.MarkFinished(time.Now())
		path := telemetry.ComponentFile(resolvePath(a.root, cfg.MetricsFile), "render")
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warn("write metrics", zap.Error(err))
		}
	}

	failed := report.CountFailed(sections)
	if strings.ToLower(cfg.Format) == config.FormatJSON {
		entries := make([]sectionEntry, 0, len(sections))
		for _, s := range sections {
			entries = append(entries, newSectionEntry(s))
		}
		if err := output.NewJSON(cmd.OutOrStdout()).Encode(renderReport{
			PDF:      cfg.Render.PDF,
			Markdown: cfg.Render.Markdown,
			Sections: entries,
		}); err != nil {
			return err
		}
	} else {
		outcomes := make([]report.Outcome, 0, len(sections))
		for _, s := range sections {
			outcomes = append(outcomes, s)
		}
		pretty := output.NewPretty(cmd.OutOrStdout())
		if err := pretty.RenderOutcomes("Reports", outcomes); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reports have been generated in PDF (%s) and Markdown (%s) formats.\n",
			cfg.Render.PDF, cfg.Render.Markdown)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed", failed, len(sections))
	}
	return nil
}

type renderReport struct {
	PDF      string         `json:"pdf"`
	Markdown string         `json:"markdown"`
	Sections []sectionEntry `json:"sections"`
}

type sectionEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

func newSectionEntry(s render.Section) sectionEntry {
	e := sectionEntry{ID: s.ID, Title: s.Title, Rows: len(s.Rows)}
	if s.Err != nil {
		e.Error = s.Err.Error()
	}
	return e
}
