package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// MaxBelow is the bounded-selection operator: within each correlation group
// it keeps exactly the rows whose value equals the group maximum among values
// strictly below the ceiling.
//
// Ties at the maximum all survive; disambiguation belongs to later stages.
// Rows with a null or missing value never survive and never block another
// row from being maximal. A group whose values are all at or above the
// ceiling, or all null, yields no rows.
//
// The same primitive serves both spec'd uses: keyed by (record id, parent
// array index) it is the same-array maximal filter, keyed by the logical
// entity id alone it is the cross-row maximal filter.
type MaxBelow struct {
	Label      string
	ValueField string
	Ceiling    float64
	KeyFields  []string
}

// Name implements Stage.
func (m MaxBelow) Name() string {
	if m.Label != "" {
		return "maxbelow:" + m.Label
	}
	return "maxbelow"
}

// Fields implements Stage.
func (m MaxBelow) Fields() []string {
	return append([]string{m.ValueField}, m.KeyFields...)
}

// Apply implements Stage. Requires full visibility of each group, so it
// materializes: one pass to find per-group maxima, one pass to emit
// survivors in input order.
func (m MaxBelow) Apply(_ context.Context, in []record.Row) ([]record.Row, error) {
	maxima := make(map[string]float64)
	for _, row := range in {
		v, ok := row.Number(m.ValueField)
		if !ok || v >= m.Ceiling {
			continue
		}
		k := m.groupKey(row)
		if cur, seen := maxima[k]; !seen || v > cur {
			maxima[k] = v
		}
	}

	out := make([]record.Row, 0, len(maxima))
	for _, row := range in {
		v, ok := row.Number(m.ValueField)
		if !ok || v >= m.Ceiling {
			continue
		}
		if v == maxima[m.groupKey(row)] {
			out = append(out, row)
		}
	}
	return out, nil
}

// groupKey derives the correlation key from the configured row fields.
// Missing fields keep a distinct marker so absent and empty never collide.
func (m MaxBelow) groupKey(row record.Row) string {
	var b strings.Builder
	for _, f := range m.KeyFields {
		v, ok := row.Get(f)
		if !ok {
			b.WriteString("\x00")
		} else {
			fmt.Fprintf(&b, "%v", v)
		}
		b.WriteString("\x1f")
	}
	return b.String()
}
