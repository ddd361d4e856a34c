package pipeline

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docpipe/internal/domain/criteria"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Finder resolves criteria definitions for a scoped key value. The scope
// restriction is applied by the implementation before the value match; both
// sides of the (value, scope) index are its concern.
type Finder interface {
	FindByValue(ctx context.Context, initiative string, value float64) ([]criteria.Definition, error)
}

// Lookup joins each row against the criteria collection using the row's key
// value within a fixed scope. The result field is total: every output row
// carries As, holding either the reduced label or an explicit null. A key
// with no match is a valid "no definition found" outcome, not an error.
type Lookup struct {
	KeyField   string
	Initiative string
	As         string
	Finder     Finder
}

// Name implements Stage.
func (l Lookup) Name() string { return "lookup:" + l.As }

// Fields implements Stage.
func (l Lookup) Fields() []string { return []string{l.KeyField} }

// Apply implements Stage.
func (l Lookup) Apply(ctx context.Context, in []record.Row) ([]record.Row, error) {
	out := make([]record.Row, len(in))
	for i, row := range in {
		resolved := shallowCopy(row)

		v, ok := row.Number(l.KeyField)
		if !ok {
			resolved[l.As] = nil
			out[i] = resolved
			continue
		}

		matches, err := l.Finder.FindByValue(ctx, l.Initiative, v)
		if err != nil {
			return nil, fmt.Errorf("lookup %s=%v: %w", l.KeyField, v, err)
		}
		if label, found := criteria.Reduce(matches); found {
			resolved[l.As] = label
		} else {
			resolved[l.As] = nil
		}
		out[i] = resolved
	}
	return out, nil
}

// shallowCopy is enough here: only the top-level As key is added, nested
// structure stays shared and unmutated.
func shallowCopy(row record.Row) record.Row {
	out := make(record.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	return out
}
