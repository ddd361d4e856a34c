package pipeline

import (
	"context"

	"github.com/kailas-cloud/docpipe/internal/domain"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Unwind expands one nested array level: each input row becomes one output
// row per array element, with the element replacing the array at Path and
// every other field copied down. Element order is preserved.
//
// Inner semantics by default: a missing, null, or empty array yields zero
// rows. With Outer set, such rows yield a single row with a null element and
// a null index, so downstream null propagation keeps them non-contributing
// without losing the row.
type Unwind struct {
	Path string
	// IndexField receives the element's position in the source array, for
	// later same-array correlation.
	IndexField string
	Outer      bool
	// MaxFanOut caps elements per input row. Zero means unlimited.
	MaxFanOut int
}

// Name implements Stage.
func (u Unwind) Name() string { return "unwind:" + u.Path }

// Fields implements Stage. The array path itself must survive projection so
// row multiplicity is preserved even when no later stage reads its elements.
func (u Unwind) Fields() []string { return []string{u.Path} }

// Apply implements Stage.
func (u Unwind) Apply(_ context.Context, in []record.Row) ([]record.Row, error) {
	out := make([]record.Row, 0, len(in))
	for _, row := range in {
		arr, ok := row.Array(u.Path)
		if !ok || len(arr) == 0 {
			if u.Outer {
				nulled := row.CloneExcept(u.Path)
				nulled.Set(u.Path, nil)
				if u.IndexField != "" {
					nulled.Set(u.IndexField, nil)
				}
				out = append(out, nulled)
			}
			continue
		}
		if u.MaxFanOut > 0 && len(arr) > u.MaxFanOut {
			return nil, domain.NewExpansionOverflow(u.Name(), len(arr), u.MaxFanOut)
		}
		for i, elem := range arr {
			expanded := row.CloneExcept(u.Path)
			expanded.Set(u.Path, elem)
			if u.IndexField != "" {
				expanded.Set(u.IndexField, i)
			}
			out = append(out, expanded)
		}
	}
	return out, nil
}
