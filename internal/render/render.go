package render

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bgricker/crewreport/internal/catalog"
)

// ErrColumnMismatch is returned when a query yields a different number of
// columns than its definition declares.
var ErrColumnMismatch = errors.New("result columns do not match report definition")

// ErrMissingParam is returned when a definition needs a parameter the caller did not supply.
var ErrMissingParam = errors.New("missing report parameter")

// Opener hands out a fresh database handle per report.
type Opener interface {
	Open(ctx context.Context) (*sql.DB, error)
}

// Options configure a Renderer.
type Options struct {
	Params       map[string]any
	QueryTimeout time.Duration
	// Rebind rewrites definition bind markers for the target driver.
	Rebind       func(query string) string
	Logger       *zap.Logger
}

// Renderer turns report definitions into rendered sections.
type Renderer struct {
	opener Opener
	opts   Options
}

// Section is the rendered result of one report. A failed report keeps its
// title and carries Err instead of rows.
type Section struct {
	ID          string
	Title       string
	Description string
	Empty       string
	Headers     []string
	Widths      []float64
	Rows        [][]string
	Err         error
}

// Label implements report.Outcome.
func (s Section) Label() string { return s.Title }

// Failed implements report.Outcome.
func (s Section) Failed() bool { return s.Err != nil }

// Diagnostic implements report.Outcome.
func (s Section) Diagnostic() string {
	if s.Err == nil {
		return ""
	}
	return "Report unavailable: " + s.Err.Error()
}

// New creates a Renderer backed by opener.
func New(opener Opener, opts Options) *Renderer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Renderer{opener: opener, opts: opts}
}

// Render runs every definition in order. A failing report does not stop the others.
func (r *Renderer) Render(ctx context.Context, defs []catalog.Definition) []Section {
	sections := make([]Section, 0, len(defs))
	for _, def := range defs {
		start := time.Now()
		sec := r.renderOne(ctx, def)
		fields := []zap.Field{
			zap.String("report", def.ID),
			zap.Int("rows", len(sec.Rows)),
			zap.Duration("duration", time.Since(start)),
		}
		if sec.Err != nil {
			r.opts.Logger.Warn("report failed", append(fields, zap.Error(sec.Err))...)
		} else {
			r.opts.Logger.Info("report rendered", fields...)
		}
		sections = append(sections, sec)
	}
	return sections
}

func (r *Renderer) renderOne(ctx context.Context, def catalog.Definition) Section {
	sec := Section{
		ID:          def.ID,
		Title:       def.ResolveTitle(r.opts.Params),
		Description: def.Description,
		Empty:       def.Empty,
		Headers:     def.Headers(),
		Widths:      def.Widths(),
	}
	rows, err := r.query(ctx, def)
	if err != nil {
		sec.Err = err
		return sec
	}
	sec.Rows = rows
	return sec
}

func (r *Renderer) query(ctx context.Context, def catalog.Definition) ([][]string, error) {
	args := make([]any, 0, len(def.Params))
	for _, name := range def.Params {
		v, ok := r.opts.Params[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingParam, name)
		}
		args = append(args, v)
	}

	db, err := r.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if r.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.QueryTimeout)
		defer cancel()
	}

	query := def.Query
	if r.opts.Rebind != nil {
		query = r.opts.Rebind(query)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", def.ID, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", def.ID, err)
	}
	if len(cols) != len(def.Columns) {
		return nil, fmt.Errorf("%w: %s returned %d columns, expected %d", ErrColumnMismatch, def.ID, len(cols), len(def.Columns))
	}

	var out [][]string
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", def.ID, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = FormatValue(v, def.Columns[i].Format)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", def.ID, err)
	}
	return out, nil
}
