package docpipe

import (
	"context"
	"time"

	domquery "github.com/kailas-cloud/docpipe/internal/domain/query"
)

// Request describes one pipeline query.
type Request struct {
	// Initiative scopes the scan; required.
	Initiative string
	// Categories are the qualifying question categories; required.
	Categories []int
	// Exclusions are the categories the loop-instance exclusion rule
	// applies to. Must be a subset of Categories; empty disables the rule.
	Exclusions []int
	// LoopValues are the loop-instance values the exclusion rule matches.
	LoopValues []float64
	// Ceiling is the exclusive upper bound on answer values; required.
	Ceiling float64
	// AllowDiskUse lets oversized intermediates spill to the store instead
	// of failing with ErrExpansionOverflow.
	AllowDiskUse bool
}

// Detail is one contributing row inside a result group.
type Detail struct {
	ContactID     string
	LastName      string
	Category      int
	AnswerValue   float64
	LoopValue     *float64
	CriteriaLabel *string
}

// Group is one assembled result record: the rows sharing an answer value.
type Group struct {
	AnswerValue   float64
	Count         int
	CriteriaLabel *string
	Details       []Detail
}

// Result is the output of one query.
type Result struct {
	Initiative string
	Groups     []Group
	Total      int
}

// Query validates the request and runs the full pipeline against the store.
func (c *Client) Query(ctx context.Context, req Request) (_ *Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err) }()

	domReq, err := domquery.NewRequest(
		req.Initiative, req.Categories, req.Exclusions, req.LoopValues, req.Ceiling, req.AllowDiskUse,
	)
	if err != nil {
		return nil, err
	}

	groups, err := c.querySvc.Execute(ctx, domReq)
	if err != nil {
		return nil, err
	}

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{
			AnswerValue:   g.AnswerValue,
			Count:         g.Count,
			CriteriaLabel: g.CriteriaLabel,
			Details:       detailsFrom(g.Details),
		}
	}
	return &Result{
		Initiative: req.Initiative,
		Groups:     out,
		Total:      len(out),
	}, nil
}

func detailsFrom(details []domquery.Detail) []Detail {
	out := make([]Detail, len(details))
	for i, d := range details {
		out[i] = Detail{
			ContactID:     d.ContactID,
			LastName:      d.LastName,
			Category:      d.Category,
			AnswerValue:   d.AnswerValue,
			LoopValue:     d.LoopValue,
			CriteriaLabel: d.CriteriaLabel,
		}
	}
	return out
}
