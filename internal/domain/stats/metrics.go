package stats

import "slices"

// Metric names usable in a test specification. Loop metrics describe repeated
// invocations of the same query; once metrics describe a single streaming
// invocation. The two vocabularies are mutually exclusive per execution mode.
const (
	MetricMinTime          = "min_time"
	MetricQuantiles        = "quantiles"
	MetricTotalTime        = "total_time"
	MetricQueriesPerSecond = "queries_per_second"
	MetricRowsPerSecond    = "rows_per_second"
	MetricBytesPerSecond   = "bytes_per_second"

	MetricMaxRowsPerSecond  = "max_rows_per_second"
	MetricMaxBytesPerSecond = "max_bytes_per_second"
	MetricAvgRowsPerSecond  = "avg_rows_per_second"
	MetricAvgBytesPerSecond = "avg_bytes_per_second"
)

// LoopMetrics are valid only for loop-mode tests.
var LoopMetrics = []string{
	MetricMinTime,
	MetricQuantiles,
	MetricTotalTime,
	MetricQueriesPerSecond,
	MetricRowsPerSecond,
	MetricBytesPerSecond,
}

// OnceMetrics are valid only for once-mode tests.
var OnceMetrics = []string{
	MetricMaxRowsPerSecond,
	MetricMaxBytesPerSecond,
	MetricAvgRowsPerSecond,
	MetricAvgBytesPerSecond,
}

// QuantileLevels are the quantiles reported for the "quantiles" metric.
var QuantileLevels = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9,
	0.95, 0.99, 0.999, 0.9999,
}

// IsLoopMetric reports whether name belongs to the loop vocabulary.
func IsLoopMetric(name string) bool {
	return slices.Contains(LoopMetrics, name)
}

// IsOnceMetric reports whether name belongs to the once vocabulary.
func IsOnceMetric(name string) bool {
	return slices.Contains(OnceMetrics, name)
}

// IsKnownMetric reports whether name belongs to either vocabulary.
func IsKnownMetric(name string) bool {
	return IsLoopMetric(name) || IsOnceMetric(name)
}
