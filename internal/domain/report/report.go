// Package report provides the result model of a benchmark invocation and
// its JSON shape. Field order matters to downstream tooling, so the metric
// lists and parameter lists marshal as ordered objects rather than Go maps.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/whhaicheng/DB-QueryBench/internal/domain/stats"
)

// Parameter is one substitution variable and the values it took during the
// test, listed in declaration order.
type Parameter struct {
	Name   string
	Values []string
}

// ParameterList marshals as a JSON object whose keys keep declaration order.
type ParameterList []Parameter

// MarshalJSON implements json.Marshaler.
func (l ParameterList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, p.Name, p.Values); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// QuantilePoint is one level of the latency distribution.
type QuantilePoint struct {
	Level float64
	Value float64
}

// QuantileSet marshals as an object keyed by quantile level, ascending.
type QuantileSet []QuantilePoint

// MarshalJSON implements json.Marshaler.
func (q QuantileSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range q {
		if i > 0 {
			buf.WriteByte(',')
		}
		key := strconv.FormatFloat(p.Level, 'g', -1, 64)
		if err := writeMember(&buf, key, p.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Metric is one named measurement of a run. Value is a number except for
// quantiles, which carry a QuantileSet.
type Metric struct {
	Name  string
	Value any
}

// Run is the outcome of one (query, repetition) slot. Only slots that
// completed their measurement are reported; a slot that failed carries the
// exception text instead of metrics.
type Run struct {
	Query     string
	Run       int
	Exception string

	// Parameters are the substitution assignments of this query variant.
	Parameters map[string]string

	// Metrics appear in the order the test requested them.
	Metrics []Metric
}

// MarshalJSON implements json.Marshaler, emitting the metrics as ordered
// members of the run object itself.
func (r Run) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, "query", r.Query); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeMember(&buf, "run", r.Run); err != nil {
		return nil, err
	}
	if len(r.Parameters) > 0 {
		buf.WriteByte(',')
		if err := writeMember(&buf, "parameters", r.Parameters); err != nil {
			return nil, err
		}
	}
	if r.Exception != "" {
		buf.WriteByte(',')
		if err := writeMember(&buf, "exception", r.Exception); err != nil {
			return nil, err
		}
	}
	for _, m := range r.Metrics {
		buf.WriteByte(',')
		if err := writeMember(&buf, m.Name, m.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Report is the full result of one test on one host.
type Report struct {
	Hostname      string        `json:"hostname"`
	NumCores      int           `json:"num_cores"`
	NumThreads    int           `json:"num_threads"`
	RAM           uint64        `json:"ram"`
	ServerVersion string        `json:"server_version"`
	Time          string        `json:"time"`
	TestName      string        `json:"test_name"`
	MainMetric    string        `json:"main_metric"`
	Parameters    ParameterList `json:"parameters,omitempty"`
	Runs          []Run         `json:"runs"`
}

// TimestampLayout is the wall-clock format of the report's Time field.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders a report timestamp.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// writeMember appends one `"key":value` pair to an object under
// construction.
func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal report member %q: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// BuildMetrics extracts the requested metrics from a finished accumulator,
// preserving the requested order.
func BuildMetrics(acc *stats.Accumulator, requested []string) []Metric {
	metrics := make([]Metric, 0, len(requested))
	for _, name := range requested {
		metrics = append(metrics, Metric{Name: name, Value: metricValue(acc, name)})
	}
	return metrics
}

func metricValue(acc *stats.Accumulator, name string) any {
	switch name {
	case stats.MetricMinTime:
		return acc.MinTime().Seconds()
	case stats.MetricQuantiles:
		points := make(QuantileSet, 0, len(stats.QuantileLevels))
		for _, level := range stats.QuantileLevels {
			points = append(points, QuantilePoint{Level: level, Value: acc.Quantile(level)})
		}
		return points
	case stats.MetricTotalTime:
		return acc.TotalTime().Seconds()
	case stats.MetricQueriesPerSecond:
		return acc.QueriesPerSecond()
	case stats.MetricRowsPerSecond:
		return acc.RowsPerSecond()
	case stats.MetricBytesPerSecond:
		return acc.BytesPerSecond()
	case stats.MetricMaxRowsPerSecond:
		return acc.MaxRowsSpeed()
	case stats.MetricMaxBytesPerSecond:
		return acc.MaxBytesSpeed()
	case stats.MetricAvgRowsPerSecond:
		return acc.AvgRowsSpeed()
	case stats.MetricAvgBytesPerSecond:
		return acc.AvgBytesSpeed()
	default:
		return nil
	}
}

// LiteLine renders the compact single-line form of one run: the test name,
// the query variant when the test has more than one, the substitution
// assignments, and the main metric value. The repetition is printed 1-based.
func LiteLine(testName string, multiQuery bool, run Run, mainMetric, value string) string {
	var buf bytes.Buffer
	buf.WriteString(testName)
	if multiQuery {
		fmt.Fprintf(&buf, ", query %q", run.Query)
	}
	for _, p := range sortedKeys(run.Parameters) {
		fmt.Fprintf(&buf, ", %s = %s", p, run.Parameters[p])
	}
	fmt.Fprintf(&buf, ", run %d: %s = %s", run.Run+1, mainMetric, value)
	return buf.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Stable output regardless of map iteration order.
	slices.Sort(keys)
	return keys
}
