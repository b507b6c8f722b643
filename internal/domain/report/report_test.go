// Package report provides unit tests for the result model JSON shape.
package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whhaicheng/DB-QueryBench/internal/domain/stats"
)

// TestParameterList_MarshalOrder tests that parameters keep declaration
// order instead of the key-sorted order of a Go map.
func TestParameterList_MarshalOrder(t *testing.T) {
	params := ParameterList{
		{Name: "table", Values: []string{"hits", "visits"}},
		{Name: "format", Values: []string{"TSV"}},
	}

	data, err := json.Marshal(params)
	require.NoError(t, err)
	assert.Equal(t, `{"table":["hits","visits"],"format":["TSV"]}`, string(data))
}

// TestQuantileSet_Marshal tests quantile-level key formatting.
func TestQuantileSet_Marshal(t *testing.T) {
	set := QuantileSet{
		{Level: 0.1, Value: 0.004},
		{Level: 0.95, Value: 0.012},
		{Level: 0.9999, Value: 0.155},
	}

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, `{"0.1":0.004,"0.95":0.012,"0.9999":0.155}`, string(data))
}

// TestRun_Marshal tests the ordered run object, metrics flattened into it.
func TestRun_Marshal(t *testing.T) {
	run := Run{
		Query:      "SELECT count() FROM hits",
		Run:        2,
		Parameters: map[string]string{"table": "hits"},
		Metrics: []Metric{
			{Name: stats.MetricMinTime, Value: 0.012},
			{Name: stats.MetricTotalTime, Value: 3.5},
		},
	}

	data, err := json.Marshal(run)
	require.NoError(t, err)
	assert.Equal(t,
		`{"query":"SELECT count() FROM hits","run":2,"parameters":{"table":"hits"},"min_time":0.012,"total_time":3.5}`,
		string(data))
}

// TestRun_MarshalException tests that a failed slot carries the exception
// and that empty optional members are omitted.
func TestRun_MarshalException(t *testing.T) {
	run := Run{Query: "SELECT 1", Run: 0, Exception: "connection refused"}

	data, err := json.Marshal(run)
	require.NoError(t, err)
	assert.Equal(t, `{"query":"SELECT 1","run":0,"exception":"connection refused"}`, string(data))
}

// TestReport_Marshal tests the top-level field set and order.
func TestReport_Marshal(t *testing.T) {
	r := Report{
		Hostname:      "bench-01",
		NumCores:      8,
		NumThreads:    16,
		RAM:           1 << 34,
		ServerVersion: "8.0.36",
		Time:          FormatTimestamp(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)),
		TestName:      "point-select",
		MainMetric:    stats.MetricMinTime,
		Parameters:    ParameterList{{Name: "id", Values: []string{"1", "2"}}},
		Runs:          []Run{{Query: "SELECT 1", Run: 0}},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "bench-01", decoded["hostname"])
	assert.Equal(t, float64(16), decoded["num_threads"])
	assert.Equal(t, "2026-03-14 09:30:00", decoded["time"])
	assert.Contains(t, decoded, "runs")

	// Header fields must appear before the runs array.
	s := string(data)
	assert.Less(t, strings.Index(s, `"hostname"`), strings.Index(s, `"runs"`))
	assert.Less(t, strings.Index(s, `"main_metric"`), strings.Index(s, `"parameters"`))
}

// TestBuildMetrics tests name ordering and value shape per metric kind.
func TestBuildMetrics(t *testing.T) {
	acc := stats.NewAccumulator(stats.DefaultAvgRowsSpeedPrecision, stats.DefaultAvgBytesSpeedPrecision)
	acc.Start()
	acc.StartQuery()
	acc.Add(100, 4096)
	acc.UpdateQueryInfo()
	acc.SetTotalTime()

	metrics := BuildMetrics(acc, []string{stats.MetricMinTime, stats.MetricQuantiles, stats.MetricQueriesPerSecond})
	require.Len(t, metrics, 3)

	assert.Equal(t, stats.MetricMinTime, metrics[0].Name)
	assert.IsType(t, float64(0), metrics[0].Value)

	assert.Equal(t, stats.MetricQuantiles, metrics[1].Name)
	points, ok := metrics[1].Value.(QuantileSet)
	require.True(t, ok)
	assert.Len(t, points, len(stats.QuantileLevels))
	assert.Equal(t, 0.1, points[0].Level)

	assert.Equal(t, stats.MetricQueriesPerSecond, metrics[2].Name)
	assert.IsType(t, float64(0), metrics[2].Value)
}

// TestLiteLine tests the compact output format, repetitions numbered from 1.
func TestLiteLine(t *testing.T) {
	run := Run{
		Query:      "SELECT count() FROM hits",
		Run:        1,
		Parameters: map[string]string{"table": "hits"},
	}

	line := LiteLine("count-all", true, run, stats.MetricMinTime, "12 ms")
	assert.Equal(t, `count-all, query "SELECT count() FROM hits", table = hits, run 2: min_time = 12 ms`, line)

	single := LiteLine("count-all", false, Run{Query: "SELECT 1", Run: 0}, stats.MetricTotalTime, "3.500 s")
	assert.Equal(t, "count-all, run 1: total_time = 3.500 s", single)
}
