package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whhaicheng/DB-QueryBench/internal/domain/report"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/stats"
)

// TestJSONWriter tests that the full invocation renders as one JSON array.
func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf)

	reports := []*report.Report{
		{
			Hostname:   "bench-01",
			TestName:   "point-select",
			MainMetric: stats.MetricMinTime,
			Runs: []report.Run{
				{Query: "SELECT 1", Run: 0, Metrics: []report.Metric{
					{Name: stats.MetricMinTime, Value: 0.007},
				}},
			},
		},
	}
	require.NoError(t, w.Write(reports))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "point-select", decoded[0]["test_name"])

	runs := decoded[0]["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, 0.007, runs[0].(map[string]any)["min_time"])
}

// TestJSONWriter_Empty tests that no results still produce a valid array.
func TestJSONWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Write(nil))
	assert.Equal(t, "[]\n", buf.String())
}

// TestLiteWriter tests line rendering and skipping of runs without values.
func TestLiteWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewLiteWriter(&buf)

	r := &report.Report{
		TestName:   "scan",
		MainMetric: stats.MetricTotalTime,
		Runs: []report.Run{
			{Query: "SELECT * FROM a", Run: 0},
			{Query: "SELECT * FROM b", Run: 0, Exception: "boom"},
		},
	}
	require.NoError(t, w.Write(r, map[int]string{0: "1.250 s"}))

	assert.Equal(t, "scan, query \"SELECT * FROM a\", run 1: total_time = 1.250 s\n", buf.String())
}
