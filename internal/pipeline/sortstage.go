package pipeline

import (
	"context"
	"sort"

	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// SortKey is one ordering criterion. Text keys compare lexically, numeric
// keys numerically. All keys sort ascending; null and missing values sort
// first.
type SortKey struct {
	Field   string
	Numeric bool
}

// Sort orders rows by a key list with a stable sort, so rows equal under
// every key keep their input order.
type Sort struct {
	Keys []SortKey
}

// Name implements Stage.
func (s Sort) Name() string { return "sort" }

// Fields implements Stage.
func (s Sort) Fields() []string {
	out := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		out[i] = k.Field
	}
	return out
}

// Apply implements Stage.
func (s Sort) Apply(_ context.Context, in []record.Row) ([]record.Row, error) {
	out := make([]record.Row, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range s.Keys {
			switch cmp := s.compare(out[i], out[j], k); {
			case cmp < 0:
				return true
			case cmp > 0:
				return false
			}
		}
		return false
	})
	return out, nil
}

func (s Sort) compare(a, b record.Row, k SortKey) int {
	if k.Numeric {
		av, aok := a.Number(k.Field)
		bv, bok := b.Number(k.Field)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return -1
		case !bok:
			return 1
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}

	av, aok := a.String(k.Field)
	bv, bok := b.String(k.Field)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}
