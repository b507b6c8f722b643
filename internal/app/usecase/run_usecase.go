// Package usecase wires the benchmark domains together: it resolves a test
// specification into concrete (query, repetition) slots, drives their
// execution against a backend, and assembles the per-test reports.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/whhaicheng/DB-QueryBench/internal/domain/report"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/spec"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/stats"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/stopcond"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/substitution"
	"github.com/whhaicheng/DB-QueryBench/internal/infra/engine"
	"github.com/whhaicheng/DB-QueryBench/internal/infra/hostinfo"
	"github.com/whhaicheng/DB-QueryBench/internal/infra/remote"
)

var (
	// ErrPreconditionFailed marks a test skipped because its environment
	// requirements are not met. It is a per-test condition, not fatal to the
	// invocation.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrUnknownProfile is returned when a test references a settings
	// profile that the profiles file does not define.
	ErrUnknownProfile = errors.New("unknown settings profile")

	// ErrNoCacheFlusher is returned when a test requires flush_disk_cache
	// but no flusher is configured.
	ErrNoCacheFlusher = errors.New("flush_disk_cache requested but no cache flusher configured")
)

// InterruptFunc reports whether the user asked the invocation to stop. It is
// polled from query progress callbacks, so it must be cheap.
type InterruptFunc func() bool

// Runner executes resolved test specifications against one backend.
type Runner struct {
	executor engine.Executor
	flusher  remote.CacheFlusher
	host     hostinfo.Info
	profiles map[string]map[string]string
	logger   *slog.Logger

	// Interrupted signals a user-initiated stop. Nil means never.
	Interrupted InterruptFunc

	// Lite requests the compact per-run output alongside the report.
	Lite bool

	// OnResult, when set, receives each test's result as soon as the test
	// finishes, before the next one starts.
	OnResult func(*TestResult)

	now func() time.Time
}

// NewRunner creates a runner. flusher may be nil when no test needs
// flush_disk_cache; profiles may be nil when no test names one.
func NewRunner(executor engine.Executor, flusher remote.CacheFlusher, host hostinfo.Info,
	profiles map[string]map[string]string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		executor: executor,
		flusher:  flusher,
		host:     host,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// slot is one (query variant, repetition) measurement unit. Each slot owns
// its statistics and a fresh clone of the test's stop conditions.
type slot struct {
	id         string
	query      substitution.ResolvedQuery
	queryIndex int
	runIndex   int
	conditions *stopcond.Set
	acc        *stats.Accumulator
}

// TestResult couples the report of one test with the formatted main metric
// value of each reported run, which the lite output needs.
type TestResult struct {
	Report *report.Report

	// LiteValues maps a run's index in Report.Runs to its main metric value.
	// Runs that carry an exception have no entry.
	LiteValues map[int]string
}

// RunAll executes the given tests in order. A failed precondition skips the
// test with a warning; a validation error aborts, since it means the inputs
// are wrong rather than the environment. An interrupt stops between tests
// and mid-query, after which only results collected so far are returned.
func (r *Runner) RunAll(ctx context.Context, tests []*spec.TestSpec) ([]*TestResult, error) {
	results := make([]*TestResult, 0, len(tests))
	for _, t := range tests {
		if r.isInterrupted(ctx) {
			r.logger.Warn("interrupted, stopping before remaining tests")
			break
		}

		result, err := r.RunTest(ctx, t)
		if errors.Is(err, ErrPreconditionFailed) {
			r.logger.Warn("skipping test", "test", t.Name, "reason", err)
			continue
		}
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if r.OnResult != nil {
			r.OnResult(result)
		}
	}
	return results, nil
}

// RunTest resolves and executes one test specification.
func (r *Runner) RunTest(ctx context.Context, t *spec.TestSpec) (*TestResult, error) {
	if err := t.Validate(r.Lite); err != nil {
		return nil, err
	}

	resolved, err := r.resolveSettings(t)
	if err != nil {
		return nil, err
	}

	templates, err := spec.LoadQueries(t)
	if err != nil {
		return nil, err
	}
	queries, err := substitution.ExpandAll(templates, t.Substitutions)
	if err != nil {
		return nil, err
	}

	conditions, err := stopcond.New(t.StopConditions)
	if err != nil {
		return nil, fmt.Errorf("%w (test %q)", err, t.Name)
	}

	// Configuration is known good from here on; environment problems only
	// skip this test.
	if err := r.checkPreconditions(ctx, t.Preconditions); err != nil {
		return nil, fmt.Errorf("%w: %v (test %q)", ErrPreconditionFailed, err, t.Name)
	}

	serverVersion, err := r.executor.ServerVersion(ctx)
	if err != nil {
		return nil, err
	}

	rowsPrecision := resolved.AvgRowsSpeedPrecision
	if rowsPrecision == 0 {
		rowsPrecision = stats.DefaultAvgRowsSpeedPrecision
	}
	bytesPrecision := resolved.AvgBytesSpeedPrecision
	if bytesPrecision == 0 {
		bytesPrecision = stats.DefaultAvgBytesSpeedPrecision
	}

	// Slots are laid out repetition-major so every query variant of a pass
	// runs before any variant repeats. The report regroups them by query.
	slots := make([]*slot, 0, len(queries)*t.TimesToRun)
	for runIndex := 0; runIndex < t.TimesToRun; runIndex++ {
		for queryIndex, q := range queries {
			slots = append(slots, &slot{
				id:         uuid.New().String(),
				query:      q,
				queryIndex: queryIndex,
				runIndex:   runIndex,
				conditions: conditions.Clone(),
				acc:        stats.NewAccumulator(rowsPrecision, bytesPrecision),
			})
		}
	}

	backendSettings := resolved.BackendSettings()
	r.logger.Info("running test",
		"test", t.Name,
		"queries", len(queries),
		"times_to_run", t.TimesToRun,
		"type", string(t.Type))

	for _, s := range slots {
		if r.isInterrupted(ctx) {
			break
		}
		r.executeSlot(ctx, t, s, backendSettings)
	}

	return r.buildResult(t, queries, slots, serverVersion), nil
}

// executeSlot runs one slot to completion: a single query for once mode, a
// stop-condition-bounded loop otherwise.
func (r *Runner) executeSlot(ctx context.Context, t *spec.TestSpec, s *slot, settings map[string]string) {
	r.logger.Debug("executing slot",
		"slot", s.id, "test", t.Name, "query_index", s.queryIndex, "run", s.runIndex)

	s.acc.Start()
	for {
		if r.isInterrupted(ctx) {
			s.acc.MarkLastQueryCancelled()
			break
		}
		r.runQuery(ctx, s, settings)
		if s.acc.Exception() != "" || s.acc.LastQueryCancelled() {
			break
		}
		if t.Type == spec.ExecOnce {
			break
		}
		s.conditions.ReportIterations(s.acc.Queries())
		if s.conditions.AreFulfilled() {
			break
		}
	}
	s.acc.SetTotalTime()

	if s.acc.Exception() != "" {
		r.logger.Error("query failed",
			"slot", s.id, "test", t.Name, "run", s.runIndex, "error", s.acc.Exception())
		return
	}
	if !r.isInterrupted(ctx) {
		s.acc.MarkReady()
	}
}

// runQuery streams one query execution into the slot's statistics, feeding
// each progress snapshot to the stop conditions. The stream is cut short
// when a condition fires or the user interrupts; only the interrupt makes
// the slot unready.
func (r *Runner) runQuery(ctx context.Context, s *slot, settings map[string]string) {
	s.acc.StartQuery()

	var prev engine.Progress
	err := r.executor.Execute(ctx, s.query.Query, settings, func(p engine.Progress) bool {
		s.acc.Add(p.Rows-prev.Rows, p.Bytes-prev.Bytes)
		prev = p

		if r.isInterrupted(ctx) {
			s.acc.MarkLastQueryCancelled()
			return false
		}

		s.conditions.ReportRowsRead(s.acc.TotalRows())
		s.conditions.ReportBytesReadUncompressed(s.acc.TotalBytes())
		s.conditions.ReportTotalTime(s.acc.Elapsed())
		s.conditions.ReportMinTimeNotChangingFor(s.acc.MinTimeNotChangedFor())
		s.conditions.ReportMaxSpeedNotChangingFor(s.acc.MaxRowsSpeedNotChangedFor())
		s.conditions.ReportAverageSpeedNotChangingFor(s.acc.AvgRowsSpeedNotChangedFor())
		if s.conditions.AreFulfilled() {
			s.acc.MarkLastQueryCancelled()
			return false
		}
		return true
	})
	if err != nil {
		s.acc.SetException(err.Error())
		return
	}
	if !s.acc.LastQueryCancelled() {
		s.acc.UpdateQueryInfo()
	}
}

// buildResult assembles the per-test report, regrouping slots query-major.
// Ready slots carry their metrics; failed slots carry the exception text;
// interrupted slots are left out entirely.
func (r *Runner) buildResult(t *spec.TestSpec, queries []substitution.ResolvedQuery,
	slots []*slot, serverVersion string) *TestResult {

	rep := &report.Report{
		Hostname:      r.host.Hostname,
		NumCores:      r.host.NumCores,
		NumThreads:    r.host.NumThreads,
		RAM:           r.host.RAMBytes,
		ServerVersion: serverVersion,
		Time:          report.FormatTimestamp(r.now()),
		TestName:      t.Name,
		MainMetric:    t.MainMetricName(),
	}

	for _, sub := range t.Substitutions {
		rep.Parameters = append(rep.Parameters, report.Parameter{
			Name:   sub.Name,
			Values: sub.Values,
		})
	}

	metrics := t.EffectiveMetrics()
	liteValues := make(map[int]string)
	for queryIndex := range queries {
		for _, s := range slots {
			if s.queryIndex != queryIndex {
				continue
			}
			run := report.Run{
				Query:      s.query.Query,
				Run:        s.runIndex,
				Parameters: s.query.Parameters,
			}
			switch {
			case s.acc.Ready():
				run.Metrics = report.BuildMetrics(s.acc, metrics)
				liteValues[len(rep.Runs)] = s.acc.StatisticByName(rep.MainMetric)
			case s.acc.Exception() != "":
				run.Exception = s.acc.Exception()
			default:
				continue
			}
			rep.Runs = append(rep.Runs, run)
		}
	}
	return &TestResult{Report: rep, LiteValues: liteValues}
}

// resolveSettings merges the test's profile, when named, with its explicit
// settings block.
func (r *Runner) resolveSettings(t *spec.TestSpec) (spec.ResolvedSettings, error) {
	var profile map[string]string
	if name := t.Settings.Profile; name != "" {
		p, ok := r.profiles[name]
		if !ok {
			return spec.ResolvedSettings{}, fmt.Errorf("%w: %q (test %q)", ErrUnknownProfile, name, t.Name)
		}
		profile = p
	}
	return spec.ResolveSettings(profile, t.Settings)
}

// checkPreconditions verifies the test's environment requirements.
func (r *Runner) checkPreconditions(ctx context.Context, p spec.Preconditions) error {
	if p.Empty() {
		return nil
	}

	if p.RAMSize > 0 && r.host.RAMBytes < p.RAMSize {
		return fmt.Errorf("host has %d bytes of RAM, need %d", r.host.RAMBytes, p.RAMSize)
	}

	for _, table := range p.TableExists {
		ok, err := r.executor.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", engine.ErrTableMissing, table)
		}
	}

	if p.FlushDiskCache {
		if r.flusher == nil {
			return ErrNoCacheFlusher
		}
		if err := r.flusher.FlushDiskCache(ctx); err != nil {
			return fmt.Errorf("flush disk cache: %w", err)
		}
	}
	return nil
}

func (r *Runner) isInterrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return r.Interrupted != nil && r.Interrupted()
}
