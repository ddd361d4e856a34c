package query

import (
	"fmt"

	"github.com/kailas-cloud/docpipe/internal/domain"
)

// MaxCategories bounds the category filter set.
const MaxCategories = 64

// Request is a validated pipeline query: which initiative to scan, which
// question categories qualify, which loop-instance values participate in the
// exclusion rule, and the exclusive answer-value ceiling.
type Request struct {
	initiative   string
	categories   []int
	exclusions   []int
	loopValues   []float64
	ceiling      float64
	allowDiskUse bool
}

// NewRequest validates and creates a Request.
func NewRequest(
	initiative string, categories, exclusions []int, loopValues []float64, ceiling float64, allowDiskUse bool,
) (Request, error) {
	if initiative == "" {
		return Request{}, fmt.Errorf("initiative is required: %w", domain.ErrInvalidQuery)
	}
	if len(categories) == 0 {
		return Request{}, fmt.Errorf("at least one category is required: %w", domain.ErrInvalidQuery)
	}
	if len(categories) > MaxCategories {
		return Request{}, fmt.Errorf("too many categories (max %d): %w", MaxCategories, domain.ErrInvalidQuery)
	}
	if ceiling <= 0 {
		return Request{}, fmt.Errorf("ceiling must be positive, got %v: %w", ceiling, domain.ErrInvalidQuery)
	}
	for _, e := range exclusions {
		if !containsInt(categories, e) {
			return Request{}, fmt.Errorf("exclusion category %d is not in the category set: %w", e, domain.ErrInvalidQuery)
		}
	}
	return Request{
		initiative:   initiative,
		categories:   append([]int(nil), categories...),
		exclusions:   append([]int(nil), exclusions...),
		loopValues:   append([]float64(nil), loopValues...),
		ceiling:      ceiling,
		allowDiskUse: allowDiskUse,
	}, nil
}

func containsInt(s []int, v int) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// Initiative returns the scope identifier.
func (r Request) Initiative() string { return r.initiative }

// Categories returns the qualifying question categories.
func (r Request) Categories() []int { return r.categories }

// Exclusions returns the categories the exclusion rule applies to. Empty
// disables the rule.
func (r Request) Exclusions() []int { return r.exclusions }

// LoopValues returns the loop-instance values used by the exclusion rule.
func (r Request) LoopValues() []float64 { return r.loopValues }

// Ceiling returns the exclusive upper bound on answer values.
func (r Request) Ceiling() float64 { return r.ceiling }

// AllowDiskUse reports whether oversized intermediates may spill to the store.
func (r Request) AllowDiskUse() bool { return r.allowDiskUse }
