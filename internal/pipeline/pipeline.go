package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docpipe/internal/domain"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
	"github.com/kailas-cloud/docpipe/internal/logger"
	"github.com/kailas-cloud/docpipe/internal/metrics"
)

// Spiller parks an intermediate row set in the store and reads it back.
// Results must round-trip unchanged; spilling trades latency for memory. The
// executor drops its reference after Put and reloads only when the next
// stage needs the rows, so a spilled set is not resident in between.
type Spiller interface {
	Put(ctx context.Context, rows []record.Row) (string, error)
	Get(ctx context.Context, token string) ([]record.Row, error)
	Drop(ctx context.Context, token string)
}

// Limits bounds the resident working set of a pipeline run.
type Limits struct {
	// MaxRows is the largest intermediate row set held in memory before the
	// run either spills or fails with an expansion overflow. Zero disables
	// the check.
	MaxRows int
}

// Pipeline is an ordered stage list executed as a single logical cursor.
// Stages materialize fully between steps; relative row order is preserved
// end to end.
type Pipeline struct {
	stages  []Stage
	limits  Limits
	spiller Spiller
	spill   bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSpill enables spilling oversized intermediates through the given store.
func WithSpill(s Spiller) Option {
	return func(p *Pipeline) {
		p.spiller = s
		p.spill = s != nil
	}
}

// New creates a pipeline from an ordered stage list.
func New(stages []Stage, limits Limits, opts ...Option) *Pipeline {
	p := &Pipeline{stages: stages, limits: limits}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Stages returns the ordered stage list.
func (p *Pipeline) Stages() []Stage { return p.stages }

// Run executes every stage in order. A caller-imposed context deadline
// aborts the whole run; partial results are never returned.
func (p *Pipeline) Run(ctx context.Context, rows []record.Row) ([]record.Row, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	// An oversized stage output is parked in the store and the local slice
	// released; the token is redeemed right before the rows are next needed.
	var parked string

	for _, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline aborted before %s: %w", st.Name(), err)
		}
		if parked != "" {
			reloaded, err := p.reload(ctx, parked)
			if err != nil {
				return nil, err
			}
			rows, parked = reloaded, ""
		}

		stageStart := time.Now()
		out, err := st.Apply(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.Name(), err)
		}

		elapsed := time.Since(stageStart)
		metrics.StageDuration.WithLabelValues(st.Name()).Observe(elapsed.Seconds())
		metrics.StageRowsOut.WithLabelValues(st.Name()).Observe(float64(len(out)))
		log.Debug("stage complete",
			zap.String("stage", st.Name()),
			zap.Int("rows_in", len(rows)),
			zap.Int("rows_out", len(out)),
			zap.Duration("elapsed", elapsed),
		)

		if p.limits.MaxRows > 0 && len(out) > p.limits.MaxRows {
			if !p.spill {
				return nil, domain.NewExpansionOverflow(st.Name(), len(out), p.limits.MaxRows)
			}
			parked, err = p.park(ctx, st.Name(), out)
			if err != nil {
				return nil, err
			}
			out = nil
		}
		rows = out
	}

	if parked != "" {
		reloaded, err := p.reload(ctx, parked)
		if err != nil {
			return nil, err
		}
		rows = reloaded
	}

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	return rows, nil
}

// park writes an oversized row set to the store and returns its token, so
// the caller can release the in-memory slice.
func (p *Pipeline) park(ctx context.Context, stage string, rows []record.Row) (string, error) {
	token, err := p.spiller.Put(ctx, rows)
	if err != nil {
		return "", fmt.Errorf("spill after %s: %w", stage, err)
	}

	metrics.SpillsTotal.Inc()
	logger.FromContext(ctx).Info("spilled intermediate rows",
		zap.String("stage", stage),
		zap.Int("rows", len(rows)),
		zap.String("token", token),
	)
	return token, nil
}

// reload redeems a spill token. Row content and order are unchanged.
func (p *Pipeline) reload(ctx context.Context, token string) ([]record.Row, error) {
	defer p.spiller.Drop(ctx, token)

	rows, err := p.spiller.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("reload spill %s: %w", token, err)
	}
	return rows, nil
}
