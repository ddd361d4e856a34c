package schema

import (
	"reflect"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New([]string{""}); err == nil {
		t.Error("empty path should fail")
	}
	// Nested path listed before its parent.
	if _, err := New([]string{"questions.answers", "questions"}); err == nil {
		t.Error("inner-before-outer should fail")
	}
	if _, err := New([]string{"questions", "questions.answers"}); err != nil {
		t.Errorf("valid ordering failed: %v", err)
	}
}

func TestOwner(t *testing.T) {
	s := Contacts()

	tests := []struct {
		field string
		want  string
	}{
		{"initiative_id", ""},
		{"questions.category", "questions"},
		{"questions.answers.value", "questions.answers"},
		{"questions.answers.loop_instances.value", "questions.answers.loop_instances"},
		{"questionsx", ""},
	}
	for _, tc := range tests {
		if got := s.Owner(tc.field); got != tc.want {
			t.Errorf("Owner(%q) = %q, want %q", tc.field, got, tc.want)
		}
	}
}

func TestBelowUnexpanded(t *testing.T) {
	s := Contacts()
	none := map[string]bool{}
	qOnly := map[string]bool{"questions": true}
	qa := map[string]bool{"questions": true, "questions.answers": true}

	if s.BelowUnexpanded("initiative_id", none) {
		t.Error("root scalar is never below an array")
	}
	if !s.BelowUnexpanded("questions.category", none) {
		t.Error("array field before expansion")
	}
	if s.BelowUnexpanded("questions.category", qOnly) {
		t.Error("array field after its owner expanded")
	}
	// A deep field stays blocked until every enclosing array expands.
	if !s.BelowUnexpanded("questions.answers.value", qOnly) {
		t.Error("inner array field with only the outer expanded")
	}
	if s.BelowUnexpanded("questions.answers.value", qa) {
		t.Error("inner array field after both expanded")
	}
}

func TestContacts(t *testing.T) {
	want := []string{"questions", "questions.answers", "questions.answers.loop_instances"}
	if got := Contacts().ArrayPaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v", got)
	}
}
