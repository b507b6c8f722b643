package stats

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Default relative tolerance for the "average speed unchanged" tracking.
// A new window average within this fraction of the reference value is
// treated as "no significant change".
const (
	DefaultAvgRowsSpeedPrecision  = 0.001
	DefaultAvgBytesSpeedPrecision = 0.001
)

// speedAverage tracks a running average throughput and how long it has stayed
// within a relative tolerance of its reference value.
type speedAverage struct {
	precision float64
	value     float64
	reference float64
	batches   uint64
	since     time.Time
}

func (a *speedAverage) update(speed float64, now time.Time) {
	a.value = (a.value*float64(a.batches) + speed) / float64(a.batches+1)
	a.batches++

	if a.reference == 0 {
		a.reference = a.value
		return
	}
	if math.Abs(a.value-a.reference) > a.precision*math.Abs(a.reference) {
		a.reference = a.value
		a.since = now
	}
}

// Accumulator collects the statistics of one run slot. One instance is owned
// by exactly one slot; there is no sharing and no locking.
type Accumulator struct {
	now func() time.Time

	start      time.Time
	queryStart time.Time
	totalTime  time.Duration

	queries    uint64
	totalRows  uint64
	totalBytes uint64

	lastQueryRows  uint64
	lastQueryBytes uint64

	sampler *Reservoir

	minTime      time.Duration
	minTimeSince time.Time

	maxRowsSpeed       float64
	maxRowsSpeedSince  time.Time
	maxBytesSpeed      float64
	maxBytesSpeedSince time.Time

	avgRows  speedAverage
	avgBytes speedAverage

	exception          string
	ready              bool
	lastQueryCancelled bool
}

// NewAccumulator creates an accumulator with the given relative precisions
// for the average rows/s and bytes/s change detection. Non-positive
// precisions fall back to the defaults.
func NewAccumulator(avgRowsSpeedPrecision, avgBytesSpeedPrecision float64) *Accumulator {
	if avgRowsSpeedPrecision <= 0 {
		avgRowsSpeedPrecision = DefaultAvgRowsSpeedPrecision
	}
	if avgBytesSpeedPrecision <= 0 {
		avgBytesSpeedPrecision = DefaultAvgBytesSpeedPrecision
	}
	a := &Accumulator{
		now:      time.Now,
		sampler:  NewReservoir(DefaultSampleCapacity),
		minTime:  time.Duration(math.MaxInt64),
		avgRows:  speedAverage{precision: avgRowsSpeedPrecision},
		avgBytes: speedAverage{precision: avgBytesSpeedPrecision},
	}
	a.Start()
	return a
}

// Start marks the beginning of the slot's measurement window and restarts
// every internal stopwatch.
func (a *Accumulator) Start() {
	t := a.now()
	a.start = t
	a.queryStart = t
	a.minTimeSince = t
	a.maxRowsSpeedSince = t
	a.maxBytesSpeedSince = t
	a.avgRows.since = t
	a.avgBytes.since = t
}

// StartQuery marks the beginning of one query invocation within the slot.
func (a *Accumulator) StartQuery() {
	a.queryStart = a.now()
	a.lastQueryRows = 0
	a.lastQueryBytes = 0
	a.lastQueryCancelled = false
}

// Add records one progress event: rows/bytes processed since the previous
// event. It re-derives the instantaneous throughput of the current
// invocation and folds it into the max and average trackers.
func (a *Accumulator) Add(rows, bytes uint64) {
	a.totalRows += rows
	a.totalBytes += bytes
	a.lastQueryRows += rows
	a.lastQueryBytes += bytes

	t := a.now()
	elapsed := t.Sub(a.queryStart).Seconds()
	if elapsed <= 0 {
		return
	}

	rowsSpeed := float64(a.lastQueryRows) / elapsed
	bytesSpeed := float64(a.lastQueryBytes) / elapsed

	if rowsSpeed > a.maxRowsSpeed {
		a.maxRowsSpeed = rowsSpeed
		a.maxRowsSpeedSince = t
	}
	if bytesSpeed > a.maxBytesSpeed {
		a.maxBytesSpeed = bytesSpeed
		a.maxBytesSpeedSince = t
	}

	a.avgRows.update(rowsSpeed, t)
	a.avgBytes.update(bytesSpeed, t)
}

// UpdateQueryInfo finalizes one query invocation that ran to its natural end.
// It must not be called for a cancelled invocation.
func (a *Accumulator) UpdateQueryInfo() {
	a.queries++

	d := a.now().Sub(a.queryStart)
	a.sampler.Insert(d.Seconds())

	if d < a.minTime {
		a.minTime = d
		a.minTimeSince = a.now()
	}
}

// SetTotalTime latches the slot's total elapsed time.
func (a *Accumulator) SetTotalTime() {
	a.totalTime = a.now().Sub(a.start)
}

// Elapsed returns the live wall-clock time since the slot started.
func (a *Accumulator) Elapsed() time.Duration {
	return a.now().Sub(a.start)
}

// MinTimeNotChangedFor returns how long the running minimum latency has gone
// without improving.
func (a *Accumulator) MinTimeNotChangedFor() time.Duration {
	return a.now().Sub(a.minTimeSince)
}

// MaxRowsSpeedNotChangedFor returns how long the running maximum rows/s has
// gone without improving.
func (a *Accumulator) MaxRowsSpeedNotChangedFor() time.Duration {
	return a.now().Sub(a.maxRowsSpeedSince)
}

// AvgRowsSpeedNotChangedFor returns how long the running average rows/s has
// stayed within its tolerance.
func (a *Accumulator) AvgRowsSpeedNotChangedFor() time.Duration {
	return a.now().Sub(a.avgRows.since)
}

// Queries returns the number of completed invocations.
func (a *Accumulator) Queries() uint64 { return a.queries }

// TotalRows returns the cumulative rows processed.
func (a *Accumulator) TotalRows() uint64 { return a.totalRows }

// TotalBytes returns the cumulative bytes processed.
func (a *Accumulator) TotalBytes() uint64 { return a.totalBytes }

// TotalTime returns the latched total elapsed time of the slot.
func (a *Accumulator) TotalTime() time.Duration { return a.totalTime }

// MinTime returns the fastest completed invocation, or 0 before the first
// completed one.
func (a *Accumulator) MinTime() time.Duration {
	if a.queries == 0 {
		return 0
	}
	return a.minTime
}

// MaxRowsSpeed returns the peak instantaneous rows/s seen.
func (a *Accumulator) MaxRowsSpeed() float64 { return a.maxRowsSpeed }

// MaxBytesSpeed returns the peak instantaneous bytes/s seen.
func (a *Accumulator) MaxBytesSpeed() float64 { return a.maxBytesSpeed }

// AvgRowsSpeed returns the running average rows/s.
func (a *Accumulator) AvgRowsSpeed() float64 { return a.avgRows.value }

// AvgBytesSpeed returns the running average bytes/s.
func (a *Accumulator) AvgBytesSpeed() float64 { return a.avgBytes.value }

// QueriesPerSecond returns completed invocations divided by total time.
func (a *Accumulator) QueriesPerSecond() float64 {
	return ratio(float64(a.queries), a.totalTime)
}

// RowsPerSecond returns cumulative rows divided by total time.
func (a *Accumulator) RowsPerSecond() float64 {
	return ratio(float64(a.totalRows), a.totalTime)
}

// BytesPerSecond returns cumulative bytes divided by total time.
func (a *Accumulator) BytesPerSecond() float64 {
	return ratio(float64(a.totalBytes), a.totalTime)
}

// Quantile estimates the per-iteration latency quantile, in seconds, by
// linear interpolation over the reservoir sample.
func (a *Accumulator) Quantile(p float64) float64 {
	return a.sampler.Quantile(p)
}

// SetException latches the failure text of the slot.
func (a *Accumulator) SetException(msg string) {
	a.exception = msg
}

// Exception returns the latched failure text, if any.
func (a *Accumulator) Exception() string { return a.exception }

// MarkReady flags the slot's statistics as complete and reportable.
func (a *Accumulator) MarkReady() { a.ready = true }

// Ready reports whether the slot completed without being aborted by the
// process-wide interrupt.
func (a *Accumulator) Ready() bool { return a.ready }

// MarkLastQueryCancelled flags the in-flight invocation as cooperatively
// cancelled; its latency must not enter the sample.
func (a *Accumulator) MarkLastQueryCancelled() { a.lastQueryCancelled = true }

// LastQueryCancelled reports whether the current invocation was cancelled.
func (a *Accumulator) LastQueryCancelled() bool { return a.lastQueryCancelled }

// StatisticByName renders a single statistic as a string, used for the
// compact one-line-per-run output mode.
func (a *Accumulator) StatisticByName(name string) string {
	switch name {
	case MetricMinTime:
		return strconv.FormatInt(a.MinTime().Milliseconds(), 10) + " ms"
	case MetricQuantiles:
		var b strings.Builder
		for _, level := range QuantileLevels {
			fmt.Fprintf(&b, "%g: %.4f, ", level, a.Quantile(level))
		}
		return strings.TrimSuffix(b.String(), ", ")
	case MetricTotalTime:
		return formatFloat(a.totalTime.Seconds()) + " s"
	case MetricQueriesPerSecond:
		return formatFloat(a.QueriesPerSecond())
	case MetricRowsPerSecond:
		return formatFloat(a.RowsPerSecond())
	case MetricBytesPerSecond:
		return formatFloat(a.BytesPerSecond())
	case MetricMaxRowsPerSecond:
		return formatFloat(a.maxRowsSpeed)
	case MetricMaxBytesPerSecond:
		return formatFloat(a.maxBytesSpeed)
	case MetricAvgRowsPerSecond:
		return formatFloat(a.avgRows.value)
	case MetricAvgBytesPerSecond:
		return formatFloat(a.avgBytes.value)
	default:
		return ""
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func ratio(value float64, d time.Duration) float64 {
	secs := d.Seconds()
	if secs <= 0 {
		return 0
	}
	return value / secs
}
