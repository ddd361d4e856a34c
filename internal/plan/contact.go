package plan

import (
	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/domain/query"
	"github.com/kailas-cloud/docpipe/internal/domain/schema"
	"github.com/kailas-cloud/docpipe/internal/pipeline"
)

// Contact document field paths.
const (
	FieldID         = "id"
	FieldInitiative = "initiative_id"
	FieldLastName   = "last_name"
	FieldCategory   = "questions.category"
	FieldAnswer     = "questions.answers.value"
	FieldLoopSel    = "questions.answers.loop_instances.selected"
	FieldLoopValue  = "questions.answers.loop_instances.value"

	PathQuestions = "questions"
	PathAnswers   = "questions.answers"
	PathLoops     = "questions.answers.loop_instances"
)

// Expansion index fields, set by the unwind stages for later correlation.
const (
	IdxQuestions = "questions_idx"
	IdxAnswers   = "answers_idx"
	IdxLoops     = "loops_idx"
)

// LookupField is the row field the criteria lookup populates.
const LookupField = "criteria_label"

// Planner builds the contact-query pipeline. The index is a capability
// resolved before planning; nil disables pushdown.
type Planner struct {
	sch       schema.Schema
	index     *Index
	maxFanOut int
}

// NewPlanner creates a Planner for the contact schema.
func NewPlanner(index *Index, maxFanOut int) *Planner {
	return &Planner{sch: schema.Contacts(), index: index, maxFanOut: maxFanOut}
}

// Plan is the executable form of one query: the store-eligible predicate,
// the ordered in-pipeline stage list, and the projection allow-list already
// inserted into it.
type Plan struct {
	Eligible predicate.Expr
	Pushdown bool
	Fields   []string
	Stages   []pipeline.Stage
}

// Build assembles the staged plan for a contact query. Stage order follows
// the execution model: indexed match and projection first, then one
// expansion level at a time with its scoped residual immediately after,
// bounded selection before the next expansion, lookup, grouping, sort.
func (p *Planner) Build(req query.Request, finder pipeline.Finder) *Plan {
	cls := Classify(p.filter(req), p.index, p.sch)

	// MaxFanOut errors are the no-spill guard; with disk use allowed the
	// executor spills instead.
	fanOut := p.maxFanOut
	if req.AllowDiskUse() {
		fanOut = 0
	}

	var stages []pipeline.Stage
	if rootExpr := residualAfter(cls.Residuals, ""); rootExpr != nil {
		stages = append(stages, pipeline.Match{Label: "root", Expr: rootExpr})
	}

	// One tripping answer disqualifies the whole contact, so the rule runs
	// over the unexpanded document. It cannot be a per-row residual: the
	// ceiling match would remove the tripping rows first and leave the
	// negation vacuously true.
	if excl := exclusionRule(req); excl != nil {
		stages = append(stages, pipeline.Match{Label: "exclusions", Expr: excl, Nested: true})
	}

	stages = append(stages, pipeline.Unwind{
		Path: PathQuestions, IndexField: IdxQuestions, MaxFanOut: fanOut,
	})
	if expr := residualAfter(cls.Residuals, PathQuestions); expr != nil {
		stages = append(stages, pipeline.Match{Label: "questions", Expr: expr})
	}

	stages = append(stages, pipeline.Unwind{
		Path: PathAnswers, IndexField: IdxAnswers, MaxFanOut: fanOut,
	})
	if expr := residualAfter(cls.Residuals, PathAnswers); expr != nil {
		stages = append(stages, pipeline.Match{Label: "answers", Expr: expr})
	}
	stages = append(stages, pipeline.MaxBelow{
		Label:      "per-question",
		ValueField: FieldAnswer,
		Ceiling:    req.Ceiling(),
		KeyFields:  []string{FieldID, IdxQuestions},
	})

	// Outer expansion: an answer without loop instances must still reach
	// the detail list, with a null loop value.
	stages = append(stages, pipeline.Unwind{
		Path: PathLoops, IndexField: IdxLoops, Outer: true, MaxFanOut: fanOut,
	})
	if expr := residualAfter(cls.Residuals, PathLoops); expr != nil {
		stages = append(stages, pipeline.Match{Label: "loops", Expr: expr})
	}

	stages = append(stages, pipeline.MaxBelow{
		Label:      "per-contact",
		ValueField: FieldAnswer,
		Ceiling:    req.Ceiling(),
		KeyFields:  []string{FieldID},
	})

	stages = append(stages, pipeline.Lookup{
		KeyField:   FieldAnswer,
		Initiative: req.Initiative(),
		As:         LookupField,
		Finder:     finder,
	})

	stages = append(stages, pipeline.Group{
		KeyField: FieldAnswer,
		FirstFields: map[string]string{
			"criteria_label": LookupField,
			"category":       FieldCategory,
		},
		DetailFields: []string{
			FieldID, FieldLastName, FieldCategory, FieldAnswer, FieldLoopValue, LookupField,
		},
	})

	stages = append(stages, pipeline.Sort{Keys: []pipeline.SortKey{
		{Field: "first.criteria_label"},
		{Field: "key", Numeric: true},
		{Field: "first.category", Numeric: true},
	}})

	// Shed everything later stages will not read, before the first
	// expansion multiplies it.
	fields := RequiredFields(stages)
	// Document-level matches still need their fields present, and they only
	// shrink the set reaching projection, so they run first.
	projectAt := 0
	for projectAt < len(stages) {
		if _, ok := stages[projectAt].(pipeline.Match); !ok {
			break
		}
		projectAt++
	}
	withProject := make([]pipeline.Stage, 0, len(stages)+1)
	withProject = append(withProject, stages[:projectAt]...)
	withProject = append(withProject, pipeline.Project{Paths: fields})
	withProject = append(withProject, stages[projectAt:]...)

	return &Plan{
		Eligible: cls.Eligible,
		Pushdown: cls.Pushdown,
		Fields:   fields,
		Stages:   withProject,
	}
}

// filter builds the positive boolean filter for the request; classification
// splits it into eligible and residual parts. The exclusion rule is planned
// separately as a document-level stage.
func (p *Planner) filter(req query.Request) predicate.Expr {
	return predicate.And{Exprs: []predicate.Expr{
		predicate.Compare{Field: FieldInitiative, Op: predicate.OpEq, Value: req.Initiative()},
		predicate.In{Field: FieldCategory, Values: intValues(req.Categories())},
		predicate.Compare{Field: FieldAnswer, Op: predicate.OpLt, Value: req.Ceiling()},
	}}
}

// exclusionRule builds the negated conjunction that disqualifies a contact:
// an excluded-category answer at or above the ceiling with a selected loop
// instance in the requested value set. Nil when either parameter list is
// empty.
func exclusionRule(req query.Request) predicate.Expr {
	if len(req.Exclusions()) == 0 || len(req.LoopValues()) == 0 {
		return nil
	}
	return predicate.Not{Expr: predicate.And{Exprs: []predicate.Expr{
		predicate.In{Field: FieldCategory, Values: intValues(req.Exclusions())},
		predicate.Compare{Field: FieldAnswer, Op: predicate.OpGte, Value: req.Ceiling()},
		predicate.Compare{Field: FieldLoopSel, Op: predicate.OpEq, Value: true},
		predicate.In{Field: FieldLoopValue, Values: floatValues(req.LoopValues())},
	}}}
}

// residualAfter conjoins the residuals scoped to one expansion level.
func residualAfter(residuals []Residual, after string) predicate.Expr {
	var exprs []predicate.Expr
	for _, r := range residuals {
		if r.After == after {
			exprs = append(exprs, r.Expr)
		}
	}
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return predicate.And{Exprs: exprs}
	}
}

func intValues(vs []int) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func floatValues(vs []float64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
