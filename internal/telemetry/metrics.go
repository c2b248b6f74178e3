package telemetry

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bgricker/crewreport/internal/report"
)

// Metrics holds the counters of one command invocation on a private registry,
// so a textfile never picks up process-wide collectors.
type Metrics struct {
	registry     *prometheus.Registry
	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	sections     *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// NewMetrics registers the crewreport collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewreport_steps_total",
			Help: "Pipeline steps by final status.",
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crewreport_step_duration_seconds",
			Help:    "Wall time of executed pipeline steps.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
		}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewreport_report_sections_total",
			Help: "Rendered report sections by status.",
		}, []string{"status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crewreport_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	m.registry.MustRegister(m.steps, m.stepDuration, m.sections, m.lastRun)
	return m
}

// ObserveSteps counts step results and records the duration of executed ones.
func (m *Metrics) ObserveSteps(results []report.StepResult) {
	for _, r := range results {
		m.steps.WithLabelValues(r.Status).Inc()
		if r.Status != report.StatusSkipped {
			m.stepDuration.Observe(r.Duration.Seconds())
		}
	}
}

// ObserveSections counts rendered sections as passed or failed.
func ObserveSections[T report.Outcome](m *Metrics, sections []T) {
	for _, s := range sections {
		status := report.StatusPassed
		if s.Failed() {
			status = report.StatusFailed
		}
		m.sections.WithLabelValues(status).Inc()
	}
}

// MarkFinished sets the last-run gauge.
func (m *Metrics) MarkFinished(t time.Time) {
	m.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %q: %w", path, err)
	}
	return nil
}

// ComponentFile derives a per-command textfile name next to path, so the
// run and render commands never overwrite each other:
// metrics/crew.prom -> metrics/crew_render.prom.
func ComponentFile(path, component string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".prom"
	}
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_"+component+ext)
}
