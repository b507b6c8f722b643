package spec

import (
	"fmt"
	"regexp"
	"slices"
)

// Filter narrows a set of test specifications. Each list is independent and
// an empty list is a no-op for its pass.
type Filter struct {
	// Tags matches a spec when ANY of its tags appears in the list.
	Tags []string

	// Names matches by exact name equality.
	Names []string

	// NameRegexps matches when any expression finds the name (partial
	// search, not a full match).
	NameRegexps []string
}

// Empty reports whether the filter matches nothing at all.
func (f Filter) Empty() bool {
	return len(f.Tags) == 0 && len(f.Names) == 0 && len(f.NameRegexps) == 0
}

// Select applies the include filter first (keep-only passes) and the exclude
// filter second (drop passes). Running the passes in the other order could
// wrongly keep excluded specs, so the order is fixed. A spec without a name
// never matches a name or name-regex pass.
func Select(specs []*TestSpec, include, exclude Filter) ([]*TestSpec, error) {
	includeRegexps, err := compileAll(include.NameRegexps)
	if err != nil {
		return nil, err
	}
	excludeRegexps, err := compileAll(exclude.NameRegexps)
	if err != nil {
		return nil, err
	}

	kept := slices.Clone(specs)

	// Keep-only passes.
	kept = keepIf(kept, include.Tags, matchesAnyTag)
	kept = keepIf(kept, include.Names, matchesAnyName)
	kept = keepIf(kept, includeRegexps, matchesAnyRegexp)

	// Drop passes.
	kept = dropIf(kept, exclude.Tags, matchesAnyTag)
	kept = dropIf(kept, exclude.Names, matchesAnyName)
	kept = dropIf(kept, excludeRegexps, matchesAnyRegexp)

	return kept, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: bad name regexp %q: %v", ErrSpecInvalid, pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// keepIf retains only matching specs; an empty values list keeps everything.
func keepIf[T any](specs []*TestSpec, values []T, match func(*TestSpec, []T) bool) []*TestSpec {
	if len(values) == 0 {
		return specs
	}
	out := specs[:0]
	for _, s := range specs {
		if match(s, values) {
			out = append(out, s)
		}
	}
	return out
}

// dropIf removes matching specs; an empty values list drops nothing.
func dropIf[T any](specs []*TestSpec, values []T, match func(*TestSpec, []T) bool) []*TestSpec {
	if len(values) == 0 {
		return specs
	}
	out := specs[:0]
	for _, s := range specs {
		if !match(s, values) {
			out = append(out, s)
		}
	}
	return out
}

func matchesAnyTag(s *TestSpec, tags []string) bool {
	for _, tag := range tags {
		if s.HasTag(tag) {
			return true
		}
	}
	return false
}

func matchesAnyName(s *TestSpec, names []string) bool {
	if s.Name == "" {
		return false
	}
	return slices.Contains(names, s.Name)
}

func matchesAnyRegexp(s *TestSpec, regexps []*regexp.Regexp) bool {
	if s.Name == "" {
		return false
	}
	for _, re := range regexps {
		if re.MatchString(s.Name) {
			return true
		}
	}
	return false
}
