// Package spec provides the declarative test-specification domain model:
// parsing, validation, settings resolution, and selection by tag or name.
// A specification describes one benchmark: query templates, execution mode,
// stop conditions, and the metrics to report.
package spec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/whhaicheng/DB-QueryBench/internal/domain/stats"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/stopcond"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/substitution"
	"gopkg.in/yaml.v3"
)

var (
	// ErrSpecInvalid is returned when a test specification fails validation.
	ErrSpecInvalid = errors.New("invalid test specification")

	// ErrMissingQuery is returned when neither query nor query_file is given.
	ErrMissingQuery = errors.New("missing query fields")

	// ErrAmbiguousQuery is returned when both query and query_file are given.
	ErrAmbiguousQuery = errors.New("found both query and query_file fields, choose only one")

	// ErrNoStopConditions is returned when no termination condition is set.
	ErrNoStopConditions = errors.New("no termination conditions were found")

	// ErrNoMetrics is returned when neither metrics nor main_metric is set.
	ErrNoMetrics = errors.New("at least one metric must be specified")

	// ErrWrongMetricForMode is returned when a metric does not belong to the
	// vocabulary of the execution mode.
	ErrWrongMetricForMode = errors.New("wrong type of metric for execution type")

	// ErrUnknownMetric is returned for a metric name outside both
	// vocabularies.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrMainMetricRequired is returned when lite output is requested but no
	// main metric can be determined unambiguously.
	ErrMainMetricRequired = errors.New("specify main_metric for lite output")
)

// ExecType is the execution mode of a test.
type ExecType string

const (
	// ExecLoop repeats the query until a stop condition fires.
	ExecLoop ExecType = "loop"
	// ExecOnce executes the query exactly once per repetition.
	ExecOnce ExecType = "once"
)

// Validate checks that the execution type is one of the known modes.
func (t ExecType) Validate() error {
	switch t {
	case ExecLoop, ExecOnce:
		return nil
	case "":
		return fmt.Errorf("%w: missing type property", ErrSpecInvalid)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrSpecInvalid, string(t))
	}
}

// Preconditions are environment checks executed before a test runs. A failed
// precondition skips the test with a diagnostic instead of aborting the
// whole invocation.
type Preconditions struct {
	// FlushDiskCache drops the OS page cache before the test.
	FlushDiskCache bool `yaml:"flush_disk_cache"`

	// RAMSize is the minimum amount of RAM, in bytes, the host must have.
	RAMSize uint64 `yaml:"ram_size"`

	// TableExists lists tables that must be present on the backend.
	TableExists []string `yaml:"table_exists"`
}

// Empty reports whether no precondition is configured.
func (p Preconditions) Empty() bool {
	return !p.FlushDiskCache && p.RAMSize == 0 && len(p.TableExists) == 0
}

// QueryList accepts either a single scalar query or a list of queries in the
// YAML source.
type QueryList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (q *QueryList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*q = QueryList{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*q = QueryList(list)
		return nil
	default:
		return fmt.Errorf("%w: query must be a string or a list of strings", ErrSpecInvalid)
	}
}

// TestSpec is one declarative benchmark description. It is parsed once from
// a YAML file and treated as immutable afterwards.
type TestSpec struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`

	// Query and QueryFile are mutually exclusive query sources.
	Query     QueryList `yaml:"query"`
	QueryFile string    `yaml:"query_file"`

	Type       ExecType `yaml:"type"`
	TimesToRun int      `yaml:"times_to_run"`

	Settings       Settings                    `yaml:"settings"`
	Substitutions  []substitution.Substitution `yaml:"substitutions"`
	StopConditions stopcond.Params             `yaml:"stop_conditions"`

	Metrics    []string `yaml:"metrics"`
	MainMetric string   `yaml:"main_metric"`

	Preconditions Preconditions `yaml:"preconditions"`

	// SourceFile records where the specification was loaded from.
	SourceFile string `yaml:"-"`
}

// HasTag reports whether the test carries the given tag.
func (s *TestSpec) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// EffectiveMetrics returns the requested metrics with the main metric
// appended when it is not already listed.
func (s *TestSpec) EffectiveMetrics() []string {
	metrics := slices.Clone(s.Metrics)
	if s.MainMetric != "" && !slices.Contains(metrics, s.MainMetric) {
		metrics = append(metrics, s.MainMetric)
	}
	return metrics
}

// MainMetricName returns the explicit main metric, falling back to the first
// requested metric.
func (s *TestSpec) MainMetricName() string {
	if s.MainMetric != "" {
		return s.MainMetric
	}
	if len(s.Metrics) > 0 {
		return s.Metrics[0]
	}
	return ""
}

// Validate checks everything that makes a specification unrunnable. These
// are configuration errors: fatal to the invocation, reported before any
// backend interaction. lite indicates that compact output was requested,
// which needs an unambiguous main metric.
func (s *TestSpec) Validate(lite bool) error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name (%s)", ErrSpecInvalid, s.SourceFile)
	}
	if err := s.Type.Validate(); err != nil {
		return fmt.Errorf("%w in test %q", err, s.Name)
	}
	if len(s.Query) == 0 && s.QueryFile == "" {
		return fmt.Errorf("%w in test %q", ErrMissingQuery, s.Name)
	}
	if len(s.Query) > 0 && s.QueryFile != "" {
		return fmt.Errorf("%w in test %q", ErrAmbiguousQuery, s.Name)
	}
	if s.TimesToRun < 0 {
		return fmt.Errorf("%w: times_to_run must not be negative in test %q", ErrSpecInvalid, s.Name)
	}
	if s.StopConditions.Empty() {
		return fmt.Errorf("%w in test %q", ErrNoStopConditions, s.Name)
	}

	for i := range s.Substitutions {
		if err := s.Substitutions[i].Validate(); err != nil {
			return fmt.Errorf("%w: substitution %d in test %q: %v", ErrSpecInvalid, i, s.Name, err)
		}
	}

	metrics := s.EffectiveMetrics()
	if len(metrics) == 0 {
		return fmt.Errorf("%w in test %q", ErrNoMetrics, s.Name)
	}
	if lite && s.MainMetric == "" {
		return fmt.Errorf("%w in test %q", ErrMainMetricRequired, s.Name)
	}
	if err := validateMetrics(metrics, s.Type); err != nil {
		return fmt.Errorf("%w in test %q", err, s.Name)
	}

	return nil
}

// validateMetrics enforces the mutually exclusive loop/once metric
// vocabularies.
func validateMetrics(metrics []string, mode ExecType) error {
	for _, metric := range metrics {
		if !stats.IsKnownMetric(metric) {
			return fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
		}
		switch mode {
		case ExecLoop:
			if stats.IsOnceMetric(metric) {
				return fmt.Errorf("%w: %q is not a loop metric", ErrWrongMetricForMode, metric)
			}
		case ExecOnce:
			if stats.IsLoopMetric(metric) {
				return fmt.Errorf("%w: %q is not a once metric", ErrWrongMetricForMode, metric)
			}
		}
	}
	return nil
}
