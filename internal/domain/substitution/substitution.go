// Package substitution expands parameterized query templates into concrete
// queries. A template references substitution variables as {name} tokens; the
// expansion produces the Cartesian product over the value lists of every
// variable that actually occurs in the template.
package substitution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySubstitutionName is returned when a substitution has no name.
	ErrEmptySubstitutionName = errors.New("substitution name is empty")

	// ErrNoValues is returned when a substitution has an empty value list.
	ErrNoValues = errors.New("substitution has no values")
)

// Substitution is one named, ordered list of values for a template variable.
type Substitution struct {
	Name   string   `yaml:"name" json:"name"`
	Values []string `yaml:"values" json:"values"`
}

// Validate checks that the substitution can be applied to a template.
func (s *Substitution) Validate() error {
	if s.Name == "" {
		return ErrEmptySubstitutionName
	}
	if len(s.Values) == 0 {
		return fmt.Errorf("%w: %s", ErrNoValues, s.Name)
	}
	return nil
}

// Token returns the placeholder form of the variable as it appears in
// templates, e.g. "{table}" for a substitution named "table".
func (s *Substitution) Token() string {
	return "{" + s.Name + "}"
}

// ResolvedQuery is one fully substituted query together with the value chosen
// for each variable that was applied to produce it. The assignment is kept
// for per-run reporting.
type ResolvedQuery struct {
	Query      string
	Parameters map[string]string
}

// Expand substitutes vars into template, in declaration order, and returns
// every combination. A variable whose token does not occur in the current
// (partially substituted) template contributes a factor of one, not the
// length of its value list. Every occurrence of a token is replaced.
//
// With no applicable variables the template itself is the single result.
func Expand(template string, vars []Substitution) ([]ResolvedQuery, error) {
	for i := range vars {
		if err := vars[i].Validate(); err != nil {
			return nil, err
		}
	}

	pending := []ResolvedQuery{{Query: template}}

	for _, sub := range vars {
		token := sub.Token()

		next := make([]ResolvedQuery, 0, len(pending))
		for _, rq := range pending {
			if !strings.Contains(rq.Query, token) {
				next = append(next, rq)
				continue
			}

			for _, value := range sub.Values {
				branch := ResolvedQuery{
					Query:      strings.ReplaceAll(rq.Query, token, value),
					Parameters: cloneAssignment(rq.Parameters),
				}
				if branch.Parameters == nil {
					branch.Parameters = make(map[string]string, 1)
				}
				branch.Parameters[sub.Name] = value
				next = append(next, branch)
			}
		}
		pending = next
	}

	return pending, nil
}

// ExpandAll expands every template through the same substitution list and
// concatenates the results in template order.
func ExpandAll(templates []string, vars []Substitution) ([]ResolvedQuery, error) {
	var resolved []ResolvedQuery
	for _, tmpl := range templates {
		queries, err := Expand(tmpl, vars)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, queries...)
	}
	return resolved, nil
}

func cloneAssignment(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
