// Package stopcond implements the termination predicates that end a running
// or looping benchmark query. A Set holds independently configured threshold
// conditions; the set is considered fulfilled as soon as ANY of them is met.
package stopcond

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoConditions is returned when a set is built without a single configured
// condition. Such a test could run forever, so it is rejected up front.
var ErrNoConditions = errors.New("no stop conditions configured")

// Params carries the raw threshold values of a stop-condition template as
// they appear in a test specification. A zero value means "not configured".
type Params struct {
	// TotalTimeMs stops the run once wall-clock time since the slot start
	// reaches the threshold, in milliseconds.
	TotalTimeMs uint64 `yaml:"total_time_ms" json:"total_time_ms,omitempty"`

	// RowsRead stops the run once the cumulative row count reaches the
	// threshold.
	RowsRead uint64 `yaml:"rows_read" json:"rows_read,omitempty"`

	// BytesReadUncompressed stops the run once the cumulative uncompressed
	// byte count reaches the threshold.
	BytesReadUncompressed uint64 `yaml:"bytes_read_uncompressed" json:"bytes_read_uncompressed,omitempty"`

	// Iterations stops a looping run once the iteration counter reaches the
	// threshold.
	Iterations uint64 `yaml:"iterations" json:"iterations,omitempty"`

	// MinTimeNotChangingForMs stops the run once the running minimum
	// iteration latency has not improved for the given duration.
	MinTimeNotChangingForMs uint64 `yaml:"min_time_not_changing_for_ms" json:"min_time_not_changing_for_ms,omitempty"`

	// MaxSpeedNotChangingForMs stops the run once the running maximum
	// throughput has not improved for the given duration.
	MaxSpeedNotChangingForMs uint64 `yaml:"max_speed_not_changing_for_ms" json:"max_speed_not_changing_for_ms,omitempty"`

	// AverageSpeedNotChangingForMs stops the run once the running average
	// throughput has stayed within its precision tolerance for the given
	// duration.
	AverageSpeedNotChangingForMs uint64 `yaml:"average_speed_not_changing_for_ms" json:"average_speed_not_changing_for_ms,omitempty"`
}

// Empty reports whether no condition is configured at all.
func (p Params) Empty() bool {
	return p == Params{}
}

// condition is a single threshold predicate. Once fulfilled it stays
// fulfilled until the owning set is reset.
type condition struct {
	configured bool
	threshold  uint64
	current    uint64
	fulfilled  bool
}

func newCondition(threshold uint64) condition {
	return condition{configured: threshold > 0, threshold: threshold}
}

// report feeds a new observed value into the condition and returns true on
// the not-fulfilled -> fulfilled transition.
func (c *condition) report(value uint64) bool {
	if !c.configured {
		return false
	}
	c.current = value
	if !c.fulfilled && value >= c.threshold {
		c.fulfilled = true
		return true
	}
	return false
}

func (c *condition) reset() {
	c.current = 0
	c.fulfilled = false
}

// Set is one bag of termination predicates owned by a single run slot.
// It is not safe for concurrent use; the execution model is single-threaded.
type Set struct {
	totalTime         condition
	rowsRead          condition
	bytesRead         condition
	iterations        condition
	minTimeUnchanged  condition
	maxSpeedUnchanged condition
	avgSpeedUnchanged condition

	configuredCount int
	fulfilledCount  int
}

// New builds a Set from a template. It fails if no condition is configured.
func New(params Params) (*Set, error) {
	s := &Set{
		totalTime:         newCondition(params.TotalTimeMs),
		rowsRead:          newCondition(params.RowsRead),
		bytesRead:         newCondition(params.BytesReadUncompressed),
		iterations:        newCondition(params.Iterations),
		minTimeUnchanged:  newCondition(params.MinTimeNotChangingForMs),
		maxSpeedUnchanged: newCondition(params.MaxSpeedNotChangingForMs),
		avgSpeedUnchanged: newCondition(params.AverageSpeedNotChangingForMs),
	}

	for _, c := range s.all() {
		if c.configured {
			s.configuredCount++
		}
	}
	if s.configuredCount == 0 {
		return nil, ErrNoConditions
	}
	return s, nil
}

// Clone returns a fresh copy of the set with all counters and timers cleared,
// for allocating one independent instance per run slot.
func (s *Set) Clone() *Set {
	clone := *s
	clone.Reset()
	return &clone
}

// Reset clears all observed values back to start-of-slot state. It is called
// once when a slot begins, never between loop iterations of the same slot:
// the "not changing for" conditions need continuity across iterations.
func (s *Set) Reset() {
	for _, c := range s.all() {
		c.reset()
	}
	s.fulfilledCount = 0
}

func (s *Set) all() []*condition {
	return []*condition{
		&s.totalTime,
		&s.rowsRead,
		&s.bytesRead,
		&s.iterations,
		&s.minTimeUnchanged,
		&s.maxSpeedUnchanged,
		&s.avgSpeedUnchanged,
	}
}

func (s *Set) report(c *condition, value uint64) {
	if c.report(value) {
		s.fulfilledCount++
	}
}

// ReportRowsRead feeds the cumulative row count.
func (s *Set) ReportRowsRead(rows uint64) {
	s.report(&s.rowsRead, rows)
}

// ReportBytesReadUncompressed feeds the cumulative uncompressed byte count.
func (s *Set) ReportBytesReadUncompressed(bytes uint64) {
	s.report(&s.bytesRead, bytes)
}

// ReportTotalTime feeds the wall-clock time since the slot started.
func (s *Set) ReportTotalTime(elapsed time.Duration) {
	s.report(&s.totalTime, uint64(elapsed.Milliseconds()))
}

// ReportIterations feeds the loop iteration counter.
func (s *Set) ReportIterations(iterations uint64) {
	s.report(&s.iterations, iterations)
}

// ReportMinTimeNotChangingFor feeds how long the running minimum latency has
// gone without improving.
func (s *Set) ReportMinTimeNotChangingFor(elapsed time.Duration) {
	s.report(&s.minTimeUnchanged, uint64(elapsed.Milliseconds()))
}

// ReportMaxSpeedNotChangingFor feeds how long the running maximum throughput
// has gone without improving.
func (s *Set) ReportMaxSpeedNotChangingFor(elapsed time.Duration) {
	s.report(&s.maxSpeedUnchanged, uint64(elapsed.Milliseconds()))
}

// ReportAverageSpeedNotChangingFor feeds how long the running average
// throughput has stayed within tolerance.
func (s *Set) ReportAverageSpeedNotChangingFor(elapsed time.Duration) {
	s.report(&s.avgSpeedUnchanged, uint64(elapsed.Milliseconds()))
}

// AreFulfilled reports whether any configured condition has been met. It is
// cheap and safe to call after every single progress event. Once true it
// stays true until Reset.
func (s *Set) AreFulfilled() bool {
	return s.fulfilledCount > 0
}

// FulfilledCount returns how many conditions have been met, for diagnostics.
func (s *Set) FulfilledCount() int {
	return s.fulfilledCount
}

// String describes the configured conditions for logging.
func (s *Set) String() string {
	return fmt.Sprintf("stop conditions: %d configured, %d fulfilled", s.configuredCount, s.fulfilledCount)
}
