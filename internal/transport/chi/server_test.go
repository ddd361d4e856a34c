package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docpipe/internal/db"
	"github.com/kailas-cloud/docpipe/internal/domain/criteria"
	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/domain/record"
	"github.com/kailas-cloud/docpipe/internal/plan"
	healthuc "github.com/kailas-cloud/docpipe/internal/usecase/health"
	queryuc "github.com/kailas-cloud/docpipe/internal/usecase/query"
)

type stubRecords struct {
	rows []record.Row
	err  error
}

func (s *stubRecords) Find(_ context.Context, _ predicate.Expr) ([]record.Row, error) {
	return s.rows, s.err
}

type stubFinder struct{}

func (stubFinder) FindByValue(_ context.Context, _ string, _ float64) ([]criteria.Definition, error) {
	return nil, nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

func testRouter(records queryuc.Records, pingErr error) http.Handler {
	querySvc := queryuc.New(plan.NewPlanner(nil, 0), records, stubFinder{}, nil, 0)
	healthSvc := healthuc.New(&stubPinger{err: pingErr}, nil, "")
	server := NewServer(querySvc, healthSvc, zap.NewNop())

	r := chirouter.NewRouter()
	server.Routes(r)
	return r
}

func contactDoc() record.Row {
	return record.Row{
		"id": "c1", "last_name": "Nolan", "initiative_id": "S1",
		"questions": []any{
			map[string]any{
				"category": 105,
				"answers":  []any{map[string]any{"value": 1200}},
			},
		},
	}
}

func postQuery(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/initiatives/S1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestQueryContacts_OK(t *testing.T) {
	handler := testRouter(&stubRecords{rows: []record.Row{contactDoc()}}, nil)

	rr := postQuery(t, handler, `{"categories":[105],"ceiling":9000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Initiative != "S1" {
		t.Errorf("initiative = %q, want S1", resp.Initiative)
	}
	if resp.Total != 1 || len(resp.Groups) != 1 {
		t.Fatalf("total = %d, groups = %d, want 1", resp.Total, len(resp.Groups))
	}
	if resp.Groups[0].AnswerValue != 1200 {
		t.Errorf("groups[0].answer_value = %v, want 1200", resp.Groups[0].AnswerValue)
	}
}

func TestQueryContacts_InvalidBody(t *testing.T) {
	handler := testRouter(&stubRecords{}, nil)

	rr := postQuery(t, handler, `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != codeBadRequest {
		t.Errorf("code = %q, want %q", resp.Code, codeBadRequest)
	}
}

func TestQueryContacts_ValidationFailed(t *testing.T) {
	handler := testRouter(&stubRecords{}, nil)

	rr := postQuery(t, handler, `{"categories":[],"ceiling":9000}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", resp.Code, codeValidationFailed)
	}
}

func TestQueryContacts_StoreUnavailable(t *testing.T) {
	storeErr := &db.Error{Op: db.OpSearch, Err: context.DeadlineExceeded}
	handler := testRouter(&stubRecords{err: storeErr}, nil)

	rr := postQuery(t, handler, `{"categories":[105],"ceiling":9000}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rr.Code, rr.Body.String())
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != codeStoreUnavailable {
		t.Errorf("code = %q, want %q", resp.Code, codeStoreUnavailable)
	}
}

func TestQueryContacts_ExpansionOverflow(t *testing.T) {
	// Two documents against a one-row limit forces an overflow with spilling
	// disabled.
	doc2 := contactDoc()
	doc2["id"] = "c2"
	records := &stubRecords{rows: []record.Row{contactDoc(), doc2}}
	querySvc := queryuc.New(plan.NewPlanner(nil, 0), records, stubFinder{}, nil, 1)
	server := NewServer(querySvc, healthuc.New(&stubPinger{}, nil, ""), zap.NewNop())

	r := chirouter.NewRouter()
	server.Routes(r)

	rr := postQuery(t, r, `{"categories":[105],"ceiling":9000}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rr.Code, rr.Body.String())
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != codeExpansionOverflow {
		t.Errorf("code = %q, want %q", resp.Code, codeExpansionOverflow)
	}
}

func TestHealthCheck_OK(t *testing.T) {
	handler := testRouter(&stubRecords{}, nil)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	handler := testRouter(&stubRecords{}, context.DeadlineExceeded)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
