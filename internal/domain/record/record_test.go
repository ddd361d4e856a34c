package record

import (
	"reflect"
	"testing"
)

func sampleRow() Row {
	return Row{
		"id":            "c1",
		"name":          "Abbott",
		"initiative_id": "S1",
		"region":        nil,
		"questions": []any{
			map[string]any{
				"category": float64(105),
				"note":     "first",
				"answers": []any{
					map[string]any{"value": float64(9100), "unit": "pts"},
				},
			},
			map[string]any{
				"category": float64(147),
				"answers":  []any{},
			},
		},
	}
}

func TestGet_NullVersusMissing(t *testing.T) {
	r := sampleRow()

	v, ok := r.Get("region")
	if !ok || v != nil {
		t.Errorf("explicit null: got (%v, %v), want (nil, true)", v, ok)
	}

	v, ok = r.Get("missing")
	if ok || v != nil {
		t.Errorf("missing field: got (%v, %v), want (nil, false)", v, ok)
	}

	v, ok = r.Get("name")
	if !ok || v != "Abbott" {
		t.Errorf("present field: got (%v, %v)", v, ok)
	}
}

func TestGet_ArrayStopsShort(t *testing.T) {
	r := sampleRow()
	// Paths cannot descend through an array; the array is addressed whole.
	if _, ok := r.Get("questions.category"); ok {
		t.Error("path through array should report missing")
	}
	if a, ok := r.Get("questions"); !ok || len(a.([]any)) != 2 {
		t.Error("whole-array path should resolve")
	}
}

func TestValues_DescendsArrays(t *testing.T) {
	r := sampleRow()

	got := r.Values("questions.category")
	want := []any{float64(105), float64(147)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("categories = %v, want %v", got, want)
	}

	got = r.Values("questions.answers.value")
	want = []any{float64(9100)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("answer values = %v, want %v", got, want)
	}

	if got := r.Values("questions.answers.missing"); got != nil {
		t.Errorf("missing leaf = %v, want none", got)
	}
	if got := r.Values("name"); !reflect.DeepEqual(got, []any{"Abbott"}) {
		t.Errorf("scalar = %v", got)
	}
}

func TestValues_IncludesExplicitNull(t *testing.T) {
	r := sampleRow()

	got := r.Values("region")
	if len(got) != 1 || got[0] != nil {
		t.Errorf("explicit null = %v, want [nil]", got)
	}
	if got := r.Values("missing"); got != nil {
		t.Errorf("missing = %v, want none", got)
	}
}

func TestSet_CreatesIntermediates(t *testing.T) {
	r := Row{}
	r.Set("a.b.c", float64(1))
	if v, ok := r.Get("a.b.c"); !ok || v != float64(1) {
		t.Errorf("got (%v, %v)", v, ok)
	}
	r.Set("a.b.c", nil)
	if v, ok := r.Get("a.b.c"); !ok || v != nil {
		t.Errorf("overwrite with null: got (%v, %v)", v, ok)
	}
}

func TestNumber(t *testing.T) {
	r := Row{"f": float64(1.5), "i": 3, "s": "x", "n": nil}
	if v, ok := r.Number("f"); !ok || v != 1.5 {
		t.Errorf("float64: (%v, %v)", v, ok)
	}
	if v, ok := r.Number("i"); !ok || v != 3 {
		t.Errorf("int: (%v, %v)", v, ok)
	}
	if _, ok := r.Number("s"); ok {
		t.Error("string should not be numeric")
	}
	if _, ok := r.Number("n"); ok {
		t.Error("null should not be numeric")
	}
	if _, ok := r.Number("missing"); ok {
		t.Error("missing should not be numeric")
	}
}

func TestClone_NoAliasing(t *testing.T) {
	r := sampleRow()
	c := r.Clone()

	q := c["questions"].([]any)[0].(map[string]any)
	q["category"] = float64(999)
	c.Set("name", "changed")

	if v, _ := r.Get("name"); v != "Abbott" {
		t.Error("clone mutation leaked into original top level")
	}
	orig := r["questions"].([]any)[0].(map[string]any)
	if orig["category"] != float64(105) {
		t.Error("clone mutation leaked into original nested map")
	}
}

func TestCloneExcept(t *testing.T) {
	r := sampleRow()
	c := r.CloneExcept("questions")

	if _, ok := c.Get("questions"); ok {
		t.Error("excluded path should be absent")
	}
	if v, _ := c.Get("name"); v != "Abbott" {
		t.Error("sibling fields should survive")
	}

	// The rest of the copy must still be independent.
	c.Set("name", "changed")
	if v, _ := r.Get("name"); v != "Abbott" {
		t.Error("copy aliased the original")
	}
}

func TestCloneExcept_NestedPath(t *testing.T) {
	r := Row{
		"a": map[string]any{"keep": float64(1), "drop": float64(2)},
	}
	c := r.CloneExcept("a.drop")
	if _, ok := c.Get("a.drop"); ok {
		t.Error("nested excluded path should be absent")
	}
	if v, _ := c.Get("a.keep"); v != float64(1) {
		t.Error("nested sibling should survive")
	}
}

func TestProject_Narrowing(t *testing.T) {
	r := sampleRow()
	p := r.Project([]string{"initiative_id", "questions.category", "questions.answers.value"})

	if v, _ := p.Get("initiative_id"); v != "S1" {
		t.Error("top-level field dropped")
	}
	if _, ok := p.Get("name"); ok {
		t.Error("unlisted field survived")
	}

	qs, ok := p.Array("questions")
	if !ok || len(qs) != 2 {
		t.Fatalf("questions = %v", qs)
	}
	q0 := qs[0].(map[string]any)
	if q0["category"] != float64(105) {
		t.Errorf("category = %v", q0["category"])
	}
	if _, ok := q0["note"]; ok {
		t.Error("sibling field inside array element survived")
	}
	a0 := q0["answers"].([]any)[0].(map[string]any)
	if a0["value"] != float64(9100) {
		t.Errorf("answer value = %v", a0["value"])
	}
	if _, ok := a0["unit"]; ok {
		t.Error("sibling field inside nested array element survived")
	}
}

func TestProject_ArrayLengthPreserved(t *testing.T) {
	r := Row{
		"items": []any{
			map[string]any{"v": float64(1)},
			map[string]any{"other": float64(2)},
		},
	}
	p := r.Project([]string{"items.v"})
	items, _ := p.Array("items")
	if len(items) != 2 {
		t.Fatalf("length changed: %v", items)
	}
	// Element without the field stays as an empty object.
	if m := items[1].(map[string]any); len(m) != 0 {
		t.Errorf("element 1 = %v", m)
	}
}

func TestProject_DeeperPathWins(t *testing.T) {
	r := sampleRow()
	// Listing both the container and a narrowed path must not widen the
	// container back to the full subtree.
	p := r.Project([]string{"questions", "questions.category"})
	q0 := p["questions"].([]any)[0].(map[string]any)
	if !reflect.DeepEqual(q0, map[string]any{"category": float64(105)}) {
		t.Errorf("q0 = %v", q0)
	}
}

func TestProject_MissingPathsSkipped(t *testing.T) {
	r := Row{"a": float64(1)}
	p := r.Project([]string{"a", "nope", "nested.deep"})
	if len(p) != 1 {
		t.Errorf("row = %v", p)
	}
}
