package pipeline

import (
	"context"

	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Match filters rows by a predicate expression, preserving order.
type Match struct {
	Label string
	Expr  predicate.Expr

	// Nested evaluates the expression over the unexpanded document with
	// existential array semantics instead of flattened-row access. Used for
	// document-level rules that must see every array element at once.
	Nested bool
}

// Name implements Stage.
func (m Match) Name() string {
	if m.Label != "" {
		return "match:" + m.Label
	}
	return "match"
}

// Fields implements Stage.
func (m Match) Fields() []string { return m.Expr.Fields() }

// Apply implements Stage.
func (m Match) Apply(_ context.Context, in []record.Row) ([]record.Row, error) {
	out := make([]record.Row, 0, len(in))
	for _, row := range in {
		if m.matches(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m Match) matches(row record.Row) bool {
	if m.Nested {
		return predicate.EvalNested(m.Expr, row)
	}
	return m.Expr.Eval(row)
}
