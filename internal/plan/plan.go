// Package plan turns a query request into an ordered pipeline: it classifies
// predicates against the declared compound index, computes the projection
// allow-list, and fixes the stage order so index-eligible work runs before
// anything that destroys index locality.
package plan

import (
	"sort"

	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/domain/schema"
	"github.com/kailas-cloud/docpipe/internal/pipeline"
)

// Index describes a usable compound index: its ordered key fields. Index
// existence is an external precondition queried at plan time; a nil *Index
// means "no usable index" and only degrades latency, never correctness.
type Index struct {
	Name   string
	Fields []string
}

// Residual is a predicate that must be evaluated in-pipeline, scoped to run
// right after the expansion of its innermost array (After == "" means
// document level, before any expansion).
type Residual struct {
	Expr  predicate.Expr
	After string
}

// Classification splits a filter into the store-eligible prefix and the
// residual predicates.
type Classification struct {
	// Eligible is the conjunction pushable to the store index, nil when none.
	Eligible predicate.Expr
	// Residuals are the predicates the pipeline must still evaluate.
	Residuals []Residual
	// Pushdown is false when no conjunct was index-eligible. Soft signal:
	// the pipeline still runs correctly, just without index benefit.
	Pushdown bool
}

// Classify splits expr against the index. A conjunct is eligible iff every
// field it references lies within a leading prefix of the index keys;
// disjunctions with any ineligible field are wholly residual. Eligible
// conjuncts over array-nested fields are pushed with document-level
// existential semantics and therefore also stay residual, re-checked per
// element after the owning expansion.
func Classify(expr predicate.Expr, idx *Index, sch schema.Schema) Classification {
	conjuncts := predicate.Conjuncts(expr)

	indexed := func(field string) bool {
		if idx == nil {
			return false
		}
		for _, f := range idx.Fields {
			if f == field {
				return true
			}
		}
		return false
	}

	candidates := make([]bool, len(conjuncts))
	covered := make(map[string]bool)
	for i, c := range conjuncts {
		ok := true
		for _, f := range c.Fields() {
			if !indexed(f) {
				ok = false
				break
			}
		}
		candidates[i] = ok
		if ok {
			for _, f := range c.Fields() {
				covered[f] = true
			}
		}
	}

	// The usable prefix ends at the first index key no candidate references.
	prefix := make(map[string]bool)
	if idx != nil {
		for _, f := range idx.Fields {
			if !covered[f] {
				break
			}
			prefix[f] = true
		}
	}

	var eligible []predicate.Expr
	var residuals []Residual
	for i, c := range conjuncts {
		inPrefix := candidates[i]
		arrayNested := false
		after := ""
		for _, f := range c.Fields() {
			if inPrefix && !prefix[f] {
				inPrefix = false
			}
			if owner := sch.Owner(f); owner != "" {
				arrayNested = true
				if len(owner) > len(after) {
					after = owner
				}
			}
		}
		if inPrefix {
			eligible = append(eligible, c)
		}
		// Document-level pushdown over array fields is existential; the
		// element-level check still has to happen after expansion.
		if !inPrefix || arrayNested {
			residuals = append(residuals, Residual{Expr: c, After: after})
		}
	}

	cls := Classification{Residuals: residuals, Pushdown: len(eligible) > 0}
	if len(eligible) == 1 {
		cls.Eligible = eligible[0]
	} else if len(eligible) > 1 {
		cls.Eligible = predicate.And{Exprs: eligible}
	}
	return cls
}

// RequiredFields computes the projection allow-list: the union of every field
// referenced by the given stages, deduplicated and sorted for deterministic
// plans.
func RequiredFields(stages []pipeline.Stage) []string {
	seen := make(map[string]bool)
	var out []string
	for _, st := range stages {
		for _, f := range st.Fields() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}
