package pipeline

import (
	"context"

	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Project sheds every field not on the allow-list before expansion multiplies
// row count. The allow-list is computed by the planner from downstream stage
// requirements; it is never guessed.
type Project struct {
	Paths []string
}

// Name implements Stage.
func (p Project) Name() string { return "project" }

// Fields implements Stage. Projection introduces no requirements of its own.
func (p Project) Fields() []string { return nil }

// Apply implements Stage.
func (p Project) Apply(_ context.Context, in []record.Row) ([]record.Row, error) {
	out := make([]record.Row, len(in))
	for i, row := range in {
		out[i] = row.Project(p.Paths)
	}
	return out, nil
}
