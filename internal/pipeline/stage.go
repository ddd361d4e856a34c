// Package pipeline implements the staged execution model for nested-document
// queries: each stage is a pure transform from one materialized row set to the
// next, with order preserved and no aliasing between stage outputs.
package pipeline

import (
	"context"

	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Stage is one step of a query pipeline.
type Stage interface {
	// Name identifies the stage in logs, metrics, and errors.
	Name() string
	// Fields returns every dotted field path the stage reads. The planner
	// unions these to compute the projection allow-list, so omissions here
	// are correctness bugs, not performance ones.
	Fields() []string
	// Apply transforms the input rows. Input must not be mutated; relative
	// order of surviving rows must be preserved.
	Apply(ctx context.Context, in []record.Row) ([]record.Row, error)
}
