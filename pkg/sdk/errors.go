package docpipe

import "github.com/kailas-cloud/docpipe/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery      = domain.ErrInvalidQuery
	ErrExpansionOverflow = domain.ErrExpansionOverflow
	ErrSpillUnavailable  = domain.ErrSpillUnavailable
	ErrStoreUnavailable  = domain.ErrStoreUnavailable
)
