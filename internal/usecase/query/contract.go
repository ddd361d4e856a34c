package query

import (
	"context"

	"github.com/kailas-cloud/docpipe/internal/domain/criteria"
	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Records fetches the candidate document set for a query. A nil eligible
// predicate means the store cannot narrow the search and must return the
// full collection in a stable order.
type Records interface {
	Find(ctx context.Context, eligible predicate.Expr) ([]record.Row, error)
}

// CriteriaFinder resolves label definitions for correlated lookups.
type CriteriaFinder interface {
	FindByValue(ctx context.Context, initiative string, value float64) ([]criteria.Definition, error)
}
