package plan

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/domain/schema"
	"github.com/kailas-cloud/docpipe/internal/pipeline"
)

func contactIndex() *Index {
	return &Index{
		Name:   "contacts:idx",
		Fields: []string{FieldInitiative, FieldCategory, FieldAnswer},
	}
}

func TestClassify_NilIndex(t *testing.T) {
	expr := predicate.And{Exprs: []predicate.Expr{
		predicate.Compare{Field: FieldInitiative, Op: predicate.OpEq, Value: "S1"},
		predicate.Compare{Field: FieldAnswer, Op: predicate.OpLt, Value: float64(9000)},
	}}
	cls := Classify(expr, nil, schema.Contacts())
	if cls.Pushdown {
		t.Error("no index means no pushdown")
	}
	if cls.Eligible != nil {
		t.Error("eligible should be nil")
	}
	if len(cls.Residuals) != 2 {
		t.Errorf("residuals = %d", len(cls.Residuals))
	}
}

func TestClassify_PrefixCoverage(t *testing.T) {
	expr := predicate.And{Exprs: []predicate.Expr{
		predicate.Compare{Field: FieldInitiative, Op: predicate.OpEq, Value: "S1"},
		predicate.In{Field: FieldCategory, Values: []any{105}},
		predicate.Compare{Field: FieldAnswer, Op: predicate.OpLt, Value: float64(9000)},
	}}
	cls := Classify(expr, contactIndex(), schema.Contacts())
	if !cls.Pushdown {
		t.Fatal("full prefix should push down")
	}
	and, ok := cls.Eligible.(predicate.And)
	if !ok || len(and.Exprs) != 3 {
		t.Fatalf("eligible = %v", cls.Eligible)
	}
}

func TestClassify_GapBreaksPrefix(t *testing.T) {
	// Category is skipped, so the usable prefix stops after initiative and
	// the answer conjunct falls out of it.
	expr := predicate.And{Exprs: []predicate.Expr{
		predicate.Compare{Field: FieldInitiative, Op: predicate.OpEq, Value: "S1"},
		predicate.Compare{Field: FieldAnswer, Op: predicate.OpLt, Value: float64(9000)},
	}}
	cls := Classify(expr, contactIndex(), schema.Contacts())
	if !cls.Pushdown {
		t.Fatal("initiative alone should still push down")
	}
	if cmp, ok := cls.Eligible.(predicate.Compare); !ok || cmp.Field != FieldInitiative {
		t.Errorf("eligible = %v", cls.Eligible)
	}
	// The answer conjunct is residual, scoped to its owning expansion.
	found := false
	for _, r := range cls.Residuals {
		if r.After == PathAnswers {
			found = true
		}
	}
	if !found {
		t.Errorf("residuals = %+v", cls.Residuals)
	}
}

func TestClassify_ArrayNestedStaysResidual(t *testing.T) {
	// Array-nested eligible conjuncts are pushed existentially and ALSO
	// kept residual for the per-element re-check.
	expr := predicate.And{Exprs: []predicate.Expr{
		predicate.Compare{Field: FieldInitiative, Op: predicate.OpEq, Value: "S1"},
		predicate.In{Field: FieldCategory, Values: []any{105}},
	}}
	cls := Classify(expr, contactIndex(), schema.Contacts())

	and, ok := cls.Eligible.(predicate.And)
	if !ok || len(and.Exprs) != 2 {
		t.Fatalf("eligible = %v", cls.Eligible)
	}
	if len(cls.Residuals) != 1 {
		t.Fatalf("residuals = %+v", cls.Residuals)
	}
	if cls.Residuals[0].After != PathQuestions {
		t.Errorf("residual scope = %q", cls.Residuals[0].After)
	}
	// The root-scalar conjunct is fully answered by the index.
	for _, r := range cls.Residuals {
		if fields := r.Expr.Fields(); len(fields) == 1 && fields[0] == FieldInitiative {
			t.Error("root scalar conjunct should not be residual")
		}
	}
}

func TestClassify_DisjunctionWhollyResidual(t *testing.T) {
	expr := predicate.And{Exprs: []predicate.Expr{
		predicate.Compare{Field: FieldInitiative, Op: predicate.OpEq, Value: "S1"},
		predicate.Or{Exprs: []predicate.Expr{
			predicate.Compare{Field: FieldCategory, Op: predicate.OpEq, Value: 105},
			predicate.Compare{Field: FieldLoopValue, Op: predicate.OpEq, Value: float64(50)},
		}},
	}}
	cls := Classify(expr, contactIndex(), schema.Contacts())
	if cmp, ok := cls.Eligible.(predicate.Compare); !ok || cmp.Field != FieldInitiative {
		t.Errorf("eligible = %v", cls.Eligible)
	}
	// The disjunction references an unindexed field, so the whole Or stays
	// residual even though one branch is indexed.
	if len(cls.Residuals) != 1 {
		t.Fatalf("residuals = %+v", cls.Residuals)
	}
	if cls.Residuals[0].After != PathLoops {
		t.Errorf("residual scope = %q", cls.Residuals[0].After)
	}
}

func TestRequiredFields_SortedUnion(t *testing.T) {
	stages := []pipeline.Stage{
		pipeline.Unwind{Path: PathQuestions},
		pipeline.MaxBelow{ValueField: FieldAnswer, KeyFields: []string{FieldID}},
		pipeline.Unwind{Path: PathQuestions}, // duplicate
	}
	got := RequiredFields(stages)
	want := []string{FieldID, PathQuestions, FieldAnswer}
	// Sorted: "id", "questions", "questions.answers.value"
	if !reflect.DeepEqual(got, []string{want[0], want[1], want[2]}) {
		t.Errorf("fields = %v", got)
	}
}
