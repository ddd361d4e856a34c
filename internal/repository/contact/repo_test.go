package contact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/docpipe/internal/db"
	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/plan"
)

type fakeStore struct {
	mu sync.Mutex

	scanKeys    []string
	scanErr     error
	scanPattern string

	// one page of search results per call
	pages     []*db.SearchResult
	searchErr error
	indexes   []string
	queries   []string

	docs     map[string]string
	jsonErrs map[string]error
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	f.scanPattern = pattern
	return f.scanKeys, f.scanErr
}

func (f *fakeStore) SearchKeys(_ context.Context, index, query string, _, _ int) (*db.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.indexes = append(f.indexes, index)
	f.queries = append(f.queries, query)
	if len(f.pages) == 0 {
		return &db.SearchResult{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeStore) JSONGet(_ context.Context, key string, _ ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.jsonErrs[key]; ok {
		return nil, err
	}
	doc, ok := f.docs[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(doc), nil
}

func newRepo(t *testing.T, s *fakeStore) *Repo {
	t.Helper()
	r, err := New(s, "", 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	return r
}

func doc(id string) string {
	return fmt.Sprintf(`[{"id":%q,"initiative_id":"S1"}]`, id)
}

func TestFind_ScanFallbackSortsKeys(t *testing.T) {
	s := &fakeStore{
		scanKeys: []string{"docpipe:contacts:c3", "docpipe:contacts:c1", "docpipe:contacts:c2"},
		docs: map[string]string{
			"docpipe:contacts:c1": doc("c1"),
			"docpipe:contacts:c2": doc("c2"),
			"docpipe:contacts:c3": doc("c3"),
		},
	}
	r := newRepo(t, s)

	rows, err := r.Find(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	for i, want := range []string{"c1", "c2", "c3"} {
		if got, _ := rows[i].String("id"); got != want {
			t.Errorf("row %d id = %q, want %q", i, got, want)
		}
	}
}

func TestFind_ConfiguredPrefixUsed(t *testing.T) {
	s := &fakeStore{
		scanKeys: []string{"tenant1:contacts:c1"},
		docs:     map[string]string{"tenant1:contacts:c1": doc("c1")},
	}
	r, err := New(s, "tenant1:", 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)

	if _, err := r.Find(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if s.scanPattern != "tenant1:contacts:*" {
		t.Errorf("scan pattern = %q", s.scanPattern)
	}

	eligible := predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpEq, Value: "S1"}
	if _, err := r.Find(context.Background(), eligible); err != nil {
		t.Fatal(err)
	}
	if len(s.indexes) != 1 || s.indexes[0] != "tenant1:contacts:idx" {
		t.Errorf("search index = %v", s.indexes)
	}
}

func TestFind_PushdownPages(t *testing.T) {
	keys := make([]string, searchPageSize)
	docs := make(map[string]string, searchPageSize+1)
	for i := range keys {
		id := fmt.Sprintf("c%03d", i)
		keys[i] = "docpipe:contacts:" + id
		docs[keys[i]] = doc(id)
	}
	docs["docpipe:contacts:last"] = doc("last")

	s := &fakeStore{
		pages: []*db.SearchResult{
			{Total: searchPageSize + 1, Keys: keys},
			{Total: searchPageSize + 1, Keys: []string{"docpipe:contacts:last"}},
		},
		docs: docs,
	}
	r := newRepo(t, s)

	eligible := predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpEq, Value: "S1"}
	rows, err := r.Find(context.Background(), eligible)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != searchPageSize+1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if len(s.queries) != 2 {
		t.Errorf("search called %d times", len(s.queries))
	}
	if s.queries[0] != "@initiative_id:{S1}" {
		t.Errorf("query = %q", s.queries[0])
	}
	// Result order follows index order.
	if got, _ := rows[len(rows)-1].String("id"); got != "last" {
		t.Errorf("last row id = %q", got)
	}
}

func TestFind_DeletedBetweenScanAndFetch(t *testing.T) {
	s := &fakeStore{
		scanKeys: []string{"docpipe:contacts:c1", "docpipe:contacts:gone"},
		docs:     map[string]string{"docpipe:contacts:c1": doc("c1")},
	}
	r := newRepo(t, s)

	rows, err := r.Find(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
}

func TestFind_FetchErrorPropagates(t *testing.T) {
	wantErr := &db.Error{Op: db.OpJSONGet, Err: errors.New("timeout")}
	s := &fakeStore{
		scanKeys: []string{"docpipe:contacts:c1"},
		jsonErrs: map[string]error{"docpipe:contacts:c1": wantErr},
	}
	r := newRepo(t, s)

	_, err := r.Find(context.Background(), nil)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("got %v", err)
	}
}

func TestFind_SearchErrorPropagates(t *testing.T) {
	s := &fakeStore{searchErr: &db.Error{Op: db.OpSearch, Err: errors.New("down")}}
	r := newRepo(t, s)

	eligible := predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpEq, Value: "S1"}
	_, err := r.Find(context.Background(), eligible)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("got %v", err)
	}
}

func TestRenderQuery(t *testing.T) {
	tests := []struct {
		name string
		expr predicate.Expr
		want string
	}{
		{
			name: "tag equality",
			expr: predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpEq, Value: "S1"},
			want: "@initiative_id:{S1}",
		},
		{
			name: "tag escaping",
			expr: predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpEq, Value: "s-2024.1"},
			want: `@initiative_id:{s\-2024\.1}`,
		},
		{
			name: "numeric lt is exclusive",
			expr: predicate.Compare{Field: plan.FieldAnswer, Op: predicate.OpLt, Value: float64(9000)},
			want: "@answer_value:[-inf (9000]",
		},
		{
			name: "numeric gte",
			expr: predicate.Compare{Field: plan.FieldAnswer, Op: predicate.OpGte, Value: float64(100)},
			want: "@answer_value:[100 +inf]",
		},
		{
			name: "numeric in set",
			expr: predicate.In{Field: plan.FieldCategory, Values: []any{105, 147}},
			want: "(@question_category:[105 105]|@question_category:[147 147])",
		},
		{
			name: "single-member in",
			expr: predicate.In{Field: plan.FieldCategory, Values: []any{105}},
			want: "@question_category:[105 105]",
		},
		{
			name: "conjunction",
			expr: predicate.And{Exprs: []predicate.Expr{
				predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpEq, Value: "S1"},
				predicate.Compare{Field: plan.FieldAnswer, Op: predicate.OpLt, Value: float64(9000)},
			}},
			want: "@initiative_id:{S1} @answer_value:[-inf (9000]",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := renderQuery(tc.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderQuery_Unrenderable(t *testing.T) {
	exprs := []predicate.Expr{
		predicate.Not{Expr: predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpEq, Value: "S1"}},
		predicate.Compare{Field: "unindexed", Op: predicate.OpEq, Value: "x"},
		predicate.Compare{Field: plan.FieldInitiative, Op: predicate.OpLt, Value: "S1"},
		predicate.In{Field: plan.FieldCategory, Values: nil},
	}
	for _, e := range exprs {
		if _, err := renderQuery(e); err == nil {
			t.Errorf("expected error for %s", e.String())
		}
	}
}
