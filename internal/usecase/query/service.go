package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docpipe/internal/domain"
	domquery "github.com/kailas-cloud/docpipe/internal/domain/query"
	"github.com/kailas-cloud/docpipe/internal/logger"
	"github.com/kailas-cloud/docpipe/internal/metrics"
	"github.com/kailas-cloud/docpipe/internal/pipeline"
	"github.com/kailas-cloud/docpipe/internal/plan"
)

// Service executes contact queries end to end: plan, fetch, run the staged
// pipeline, assemble groups.
type Service struct {
	planner *plan.Planner
	records Records
	finder  CriteriaFinder
	spiller pipeline.Spiller
	maxRows int
}

// New creates a query service. spiller may be nil; requests that allow disk
// use then fail instead of spilling.
func New(planner *plan.Planner, records Records, finder CriteriaFinder, spiller pipeline.Spiller, maxRows int) *Service {
	return &Service{
		planner: planner,
		records: records,
		finder:  finder,
		spiller: spiller,
		maxRows: maxRows,
	}
}

// Execute runs one query and returns the assembled groups in their final
// order. Results are a pure function of the request and the store snapshot.
func (s *Service) Execute(ctx context.Context, req domquery.Request) ([]domquery.Group, error) {
	if req.AllowDiskUse() && s.spiller == nil {
		return nil, fmt.Errorf("disk use requested: %w", domain.ErrSpillUnavailable)
	}

	p := s.planner.Build(req, s.finder)
	if !p.Pushdown {
		metrics.PushdownUnavailableTotal.Inc()
		logger.FromContext(ctx).Warn("no predicate pushdown, full collection scan",
			zap.String("initiative", req.Initiative()),
		)
	}

	rows, err := s.records.Find(ctx, p.Eligible)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	var opts []pipeline.Option
	if req.AllowDiskUse() {
		opts = append(opts, pipeline.WithSpill(s.spiller))
	}
	pipe := pipeline.New(p.Stages, pipeline.Limits{MaxRows: s.maxRows}, opts...)

	out, err := pipe.Run(ctx, rows)
	if err != nil {
		return nil, err
	}

	groups := domquery.AssembleGroups(out)
	logger.FromContext(ctx).Info("query complete",
		zap.String("initiative", req.Initiative()),
		zap.Int("candidates", len(rows)),
		zap.Int("groups", len(groups)),
		zap.Bool("pushdown", p.Pushdown),
	)
	return groups, nil
}
