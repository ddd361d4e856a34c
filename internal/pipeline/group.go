package pipeline

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Group clusters rows by equality of a derived key and emits one row per
// group: the key, a count of contributors, first-seen scalar fields, and the
// full contributor list in arrival order.
//
// "First seen" is decided by input stream order, which upstream stages are
// required to preserve; reordering any upstream stage that is not a true
// no-op changes the reported values.
type Group struct {
	KeyField string
	// FirstFields maps output names (under "first.") to source row paths.
	FirstFields map[string]string
	// DetailFields declares what the assembly reads from kept rows. Rows are
	// stored whole; this list exists for projection computation.
	DetailFields []string
}

// Name implements Stage.
func (g Group) Name() string { return "group:" + g.KeyField }

// Fields implements Stage.
func (g Group) Fields() []string {
	out := []string{g.KeyField}
	for _, src := range g.FirstFields {
		out = append(out, src)
	}
	out = append(out, g.DetailFields...)
	return out
}

type groupAcc struct {
	key   any
	count int
	first map[string]any
	rows  []any
}

// Apply implements Stage. Groups appear in first-encounter order. Rows with
// a null or missing key are non-contributing and silently dropped.
func (g Group) Apply(_ context.Context, in []record.Row) ([]record.Row, error) {
	accs := make(map[string]*groupAcc)
	var order []string

	for _, row := range in {
		key, ok := row.Get(g.KeyField)
		if !ok || key == nil {
			continue
		}
		mk := fmt.Sprintf("%v", key)
		acc, seen := accs[mk]
		if !seen {
			acc = &groupAcc{key: key, first: make(map[string]any, len(g.FirstFields))}
			accs[mk] = acc
			order = append(order, mk)
		}
		acc.count++
		acc.rows = append(acc.rows, map[string]any(row))
		for name, src := range g.FirstFields {
			if _, done := acc.first[name]; done {
				continue
			}
			if v, ok := row.Get(src); ok && v != nil {
				acc.first[name] = v
			}
		}
	}

	out := make([]record.Row, 0, len(order))
	for _, mk := range order {
		acc := accs[mk]
		out = append(out, record.Row{
			"key":   acc.key,
			"count": acc.count,
			"first": acc.first,
			"rows":  acc.rows,
		})
	}
	return out, nil
}
