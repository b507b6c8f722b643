// Package report renders finished benchmark results: the JSON document that
// is the tool's primary output, and the compact line-per-run form.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/whhaicheng/DB-QueryBench/internal/domain/report"
)

// JSONWriter renders reports as one indented JSON array.
type JSONWriter struct {
	out io.Writer
}

// NewJSONWriter creates a writer targeting out.
func NewJSONWriter(out io.Writer) *JSONWriter {
	return &JSONWriter{out: out}
}

// Write renders all reports of the invocation as a single document.
func (w *JSONWriter) Write(reports []*report.Report) error {
	if reports == nil {
		reports = []*report.Report{}
	}
	content, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	if _, err := w.out.Write(append(content, '\n')); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	return nil
}

// LiteWriter renders one line per run with just the main metric, for quick
// eyeballing and diffing between servers.
type LiteWriter struct {
	out io.Writer
}

// NewLiteWriter creates a writer targeting out.
func NewLiteWriter(out io.Writer) *LiteWriter {
	return &LiteWriter{out: out}
}

// Write renders one report. values maps run index to the formatted main
// metric value; runs without a value (failed slots) are skipped.
func (w *LiteWriter) Write(r *report.Report, values map[int]string) error {
	multiQuery := distinctQueries(r.Runs) > 1
	for i, run := range r.Runs {
		value, ok := values[i]
		if !ok {
			continue
		}
		line := report.LiteLine(r.TestName, multiQuery, run, r.MainMetric, value)
		if _, err := fmt.Fprintln(w.out, line); err != nil {
			return fmt.Errorf("write lite line: %w", err)
		}
	}
	return nil
}

func distinctQueries(runs []report.Run) int {
	seen := make(map[string]struct{}, len(runs))
	for _, run := range runs {
		seen[run.Query] = struct{}{}
	}
	return len(seen)
}
