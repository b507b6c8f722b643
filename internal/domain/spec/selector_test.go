package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedSpecs() []*TestSpec {
	return []*TestSpec{
		{Name: "insert-wide-rows", Tags: []string{"write", "long"}},
		{Name: "point-select", Tags: []string{"read", "fast"}},
		{Name: "range-scan", Tags: []string{"read"}},
		{Name: "", Tags: []string{"fast"}},
	}
}

func names(specs []*TestSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

// TestSelect_NoFilters tests that empty filters keep everything.
func TestSelect_NoFilters(t *testing.T) {
	kept, err := Select(namedSpecs(), Filter{}, Filter{})
	require.NoError(t, err)
	assert.Len(t, kept, 4)
}

// TestSelect_IncludeTags tests the keep-only tag pass, which also keeps a
// matching nameless spec.
func TestSelect_IncludeTags(t *testing.T) {
	kept, err := Select(namedSpecs(), Filter{Tags: []string{"fast"}}, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"point-select", ""}, names(kept))
}

// TestSelect_ExcludeNames tests the drop-by-name pass.
func TestSelect_ExcludeNames(t *testing.T) {
	kept, err := Select(namedSpecs(), Filter{}, Filter{Names: []string{"range-scan"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"insert-wide-rows", "point-select", ""}, names(kept))
}

// TestSelect_IncludeRegexp tests that name regexps search, not full-match.
func TestSelect_IncludeRegexp(t *testing.T) {
	kept, err := Select(namedSpecs(), Filter{NameRegexps: []string{"select"}}, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"point-select"}, names(kept))
}

// TestSelect_IncludeThenExclude tests the fixed pass order: includes keep
// first, excludes drop from what survived.
func TestSelect_IncludeThenExclude(t *testing.T) {
	kept, err := Select(namedSpecs(),
		Filter{Tags: []string{"read"}},
		Filter{NameRegexps: []string{"^range"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"point-select"}, names(kept))
}

// TestSelect_NamelessNeverMatchesNames tests that a spec without a name
// cannot be selected by name or regexp.
func TestSelect_NamelessNeverMatchesNames(t *testing.T) {
	kept, err := Select(namedSpecs(), Filter{NameRegexps: []string{".*"}}, Filter{})
	require.NoError(t, err)
	assert.NotContains(t, names(kept), "")
	assert.Len(t, kept, 3)
}

// TestSelect_BadRegexp tests that a malformed pattern is a configuration
// error.
func TestSelect_BadRegexp(t *testing.T) {
	_, err := Select(namedSpecs(), Filter{NameRegexps: []string{"("}}, Filter{})
	assert.ErrorIs(t, err, ErrSpecInvalid)
}

// TestFilter_Empty tests the Empty predicate.
func TestFilter_Empty(t *testing.T) {
	assert.True(t, Filter{}.Empty())
	assert.False(t, Filter{Tags: []string{"fast"}}.Empty())
	assert.False(t, Filter{Names: []string{"x"}}.Empty())
	assert.False(t, Filter{NameRegexps: []string{"x"}}.Empty())
}
