// Package substitution provides unit tests for template expansion.
package substitution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpand_CartesianProduct tests that the result count is the product of
// the value-list lengths when every variable occurs in the template.
func TestExpand_CartesianProduct(t *testing.T) {
	vars := []Substitution{
		{Name: "table", Values: []string{"hits", "visits", "events"}},
		{Name: "format", Values: []string{"TSV", "CSV"}},
	}

	queries, err := Expand("SELECT * FROM {table} FORMAT {format}", vars)
	require.NoError(t, err)
	assert.Len(t, queries, 6)

	// Declaration order drives the branch order.
	assert.Equal(t, "SELECT * FROM hits FORMAT TSV", queries[0].Query)
	assert.Equal(t, "SELECT * FROM hits FORMAT CSV", queries[1].Query)
	assert.Equal(t, "SELECT * FROM events FORMAT CSV", queries[5].Query)
}

// TestExpand_RecordsAssignment tests that each resolved query carries the
// value chosen for every applied variable.
func TestExpand_RecordsAssignment(t *testing.T) {
	vars := []Substitution{
		{Name: "n", Values: []string{"1", "2"}},
	}

	queries, err := Expand("SELECT {n}", vars)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, map[string]string{"n": "1"}, queries[0].Parameters)
	assert.Equal(t, map[string]string{"n": "2"}, queries[1].Parameters)
}

// TestExpand_UnreferencedVariable tests that a variable whose token is absent
// from the template contributes a factor of one.
func TestExpand_UnreferencedVariable(t *testing.T) {
	template := "SELECT count() FROM {table}"

	with, err := Expand(template, []Substitution{
		{Name: "table", Values: []string{"a", "b"}},
		{Name: "unused", Values: []string{"x", "y", "z"}},
	})
	require.NoError(t, err)

	without, err := Expand(template, []Substitution{
		{Name: "table", Values: []string{"a", "b"}},
	})
	require.NoError(t, err)

	require.Len(t, with, 2)
	for i := range with {
		assert.Equal(t, without[i].Query, with[i].Query)
		// The unused variable is not recorded in the assignment.
		assert.NotContains(t, with[i].Parameters, "unused")
	}
}

// TestExpand_ReplacesEveryOccurrence tests that all occurrences of a token
// are substituted, not only the first.
func TestExpand_ReplacesEveryOccurrence(t *testing.T) {
	queries, err := Expand("SELECT {x}, {x} + {x}", []Substitution{
		{Name: "x", Values: []string{"42"}},
	})
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "SELECT 42, 42 + 42", queries[0].Query)
}

// TestExpand_NoVariables tests the degenerate case of an empty variable list.
func TestExpand_NoVariables(t *testing.T) {
	queries, err := Expand("SELECT 1", nil)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "SELECT 1", queries[0].Query)
	assert.Empty(t, queries[0].Parameters)
}

// TestExpand_EmptyValueList tests that a substitution without values is
// rejected.
func TestExpand_EmptyValueList(t *testing.T) {
	_, err := Expand("SELECT {n}", []Substitution{{Name: "n"}})
	assert.ErrorIs(t, err, ErrNoValues)
}

// TestExpand_MissingName tests that a nameless substitution is rejected.
func TestExpand_MissingName(t *testing.T) {
	_, err := Expand("SELECT 1", []Substitution{{Values: []string{"1"}}})
	assert.ErrorIs(t, err, ErrEmptySubstitutionName)
}

// TestExpandAll_MultipleTemplates tests expansion across several templates.
func TestExpandAll_MultipleTemplates(t *testing.T) {
	vars := []Substitution{
		{Name: "n", Values: []string{"1", "2"}},
	}

	queries, err := ExpandAll([]string{"SELECT {n}", "SELECT -{n}"}, vars)
	require.NoError(t, err)
	require.Len(t, queries, 4)
	assert.Equal(t, "SELECT 1", queries[0].Query)
	assert.Equal(t, "SELECT -1", queries[2].Query)
}

// TestExpand_ChainedSubstitution tests that a value produced by an earlier
// variable can itself reference a later variable.
func TestExpand_ChainedSubstitution(t *testing.T) {
	vars := []Substitution{
		{Name: "expr", Values: []string{"sum({col})", "count()"}},
		{Name: "col", Values: []string{"a", "b"}},
	}

	queries, err := Expand("SELECT {expr} FROM t", vars)
	require.NoError(t, err)

	got := make([]string, len(queries))
	for i, q := range queries {
		got[i] = q.Query
	}
	assert.Equal(t, []string{
		"SELECT sum(a) FROM t",
		"SELECT sum(b) FROM t",
		"SELECT count() FROM t",
	}, got)
}
