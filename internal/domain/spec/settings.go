package spec

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the raw backend-tuning block of a specification. All keys are
// kept as strings; typed interpretation happens in ResolveSettings after an
// optional profile has been merged in.
type Settings struct {
	// Profile names an entry of the profiles file whose key/values are
	// applied first, before the explicit entries of this block.
	Profile string

	// Raw holds every other key of the settings block verbatim.
	Raw map[string]string
}

// UnmarshalYAML implements yaml.Unmarshaler: the block is a flat map of
// scalar values; "profile" is the only key with special meaning.
func (s *Settings) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("%w: settings must be a flat map of scalars: %v", ErrSpecInvalid, err)
	}
	if profile, ok := raw["profile"]; ok {
		s.Profile = profile
		delete(raw, "profile")
	}
	s.Raw = raw
	return nil
}

// Well-known setting keys interpreted by the orchestrator itself; everything
// else is passed through to the backend unmodified.
const (
	settingMaxThreads             = "max_threads"
	settingMaxMemoryUsage         = "max_memory_usage"
	settingMaxExecutionTime       = "max_execution_time"
	settingAvgRowsSpeedPrecision  = "average_rows_speed_precision"
	settingAvgBytesSpeedPrecision = "average_bytes_speed_precision"
)

// ResolvedSettings is the typed form of the merged profile + test settings.
type ResolvedSettings struct {
	MaxThreads       int
	MaxMemoryUsage   uint64
	MaxExecutionTime time.Duration

	// Precisions for the "average speed unchanged" detection; consumed
	// locally, never sent to the backend.
	AvgRowsSpeedPrecision  float64
	AvgBytesSpeedPrecision float64

	// Passthrough holds backend tuning keys not known statically.
	Passthrough map[string]string
}

// ResolveSettings merges a named profile (may be nil) with the explicit
// settings of a test, explicit entries winning, and interprets the
// well-known keys.
func ResolveSettings(profile map[string]string, s Settings) (ResolvedSettings, error) {
	merged := make(map[string]string, len(profile)+len(s.Raw))
	for k, v := range profile {
		merged[k] = v
	}
	for k, v := range s.Raw {
		merged[k] = v
	}

	resolved := ResolvedSettings{Passthrough: make(map[string]string)}
	for key, value := range merged {
		// A bare key is shorthand for a boolean flag.
		if value == "" {
			value = "true"
		}

		var err error
		switch key {
		case settingMaxThreads:
			resolved.MaxThreads, err = strconv.Atoi(value)
		case settingMaxMemoryUsage:
			resolved.MaxMemoryUsage, err = strconv.ParseUint(value, 10, 64)
		case settingMaxExecutionTime:
			var secs float64
			secs, err = strconv.ParseFloat(value, 64)
			resolved.MaxExecutionTime = time.Duration(secs * float64(time.Second))
		case settingAvgRowsSpeedPrecision:
			resolved.AvgRowsSpeedPrecision, err = strconv.ParseFloat(value, 64)
		case settingAvgBytesSpeedPrecision:
			resolved.AvgBytesSpeedPrecision, err = strconv.ParseFloat(value, 64)
		default:
			resolved.Passthrough[key] = value
		}
		if err != nil {
			return ResolvedSettings{}, fmt.Errorf("%w: setting %q: %v", ErrSpecInvalid, key, err)
		}
	}
	return resolved, nil
}

// BackendSettings renders the settings that must be forwarded to the backend
// session, i.e. everything except the locally consumed precision knobs.
func (r ResolvedSettings) BackendSettings() map[string]string {
	out := make(map[string]string, len(r.Passthrough)+3)
	for k, v := range r.Passthrough {
		out[k] = v
	}
	if r.MaxThreads > 0 {
		out[settingMaxThreads] = strconv.Itoa(r.MaxThreads)
	}
	if r.MaxMemoryUsage > 0 {
		out[settingMaxMemoryUsage] = strconv.FormatUint(r.MaxMemoryUsage, 10)
	}
	if r.MaxExecutionTime > 0 {
		out[settingMaxExecutionTime] = strconv.FormatFloat(r.MaxExecutionTime.Seconds(), 'f', -1, 64)
	}
	return out
}
