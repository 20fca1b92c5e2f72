package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/coordinator"
	"github.com/iisharvard/a2b-sub002/internal/domain"
	"github.com/iisharvard/a2b-sub002/internal/guard"
	"github.com/iisharvard/a2b-sub002/internal/metrics"
	"github.com/iisharvard/a2b-sub002/internal/state"
	"github.com/iisharvard/a2b-sub002/internal/store"
	"github.com/iisharvard/a2b-sub002/internal/workflow"
)

type stubBackend struct {
	mu   sync.Mutex
	errs map[string]error
}

func (b *stubBackend) scenarios(componentID string) ([]domain.Scenario, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errs[componentID]; err != nil {
		return nil, err
	}
	out := make([]domain.Scenario, 0, len(domain.ScenarioTypes))
	for i, typ := range domain.ScenarioTypes {
		out = append(out, domain.Scenario{Type: typ, Description: fmt.Sprintf("%s outcome %d", componentID, i+1)})
	}
	return out, nil
}

func (b *stubBackend) GenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	return b.scenarios(componentID)
}

func (b *stubBackend) ForceGenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	return b.scenarios(componentID)
}

func (b *stubBackend) GenerateRiskAssessment(ctx context.Context, scenarioID string) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{ScenarioID: scenarioID, Category: "commercial"}, nil
}

func (b *stubBackend) fail(componentID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[componentID] = err
}

type testEnv struct {
	h       *Handler
	backend *stubBackend
	metrics *metrics.Metrics
}

func newTestHandler(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &stubBackend{errs: make(map[string]error)}
	m := metrics.New()

	c := coordinator.New(state.New(), workflow.NewTracker(), backend, coordinator.Config{})
	c.Journal = store.NewJournal(db)
	c.Metrics = m
	c.Logger = logger

	h := NewHandler(c, nil, db, "u1", logger)
	h.PollInterval = 20 * time.Millisecond
	return &testEnv{h: h, backend: backend, metrics: m}
}

func testCaseBody() string {
	c := domain.Case{
		ID:      "case-1",
		Content: "Two firms negotiate a supply agreement.",
		Analysis: &domain.Analysis{
			Summary: "Price and delivery",
			Components: []domain.Component{
				{ID: "A", Name: "Price", Priority: 1},
				{ID: "B", Name: "Delivery", Priority: 2},
			},
		},
	}
	data, _ := json.Marshal(c)
	return string(data)
}

func createCase(t *testing.T, h *Handler) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewBufferString(testCaseBody()))
	w := httptest.NewRecorder()
	h.CreateCase(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create case: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	if err := json.NewDecoder(w.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr
}

func TestCreateCase_Success(t *testing.T) {
	env := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewBufferString(testCaseBody()))
	w := httptest.NewRecorder()

	env.h.CreateCase(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var doc domain.CaseDocument
	json.NewDecoder(w.Body).Decode(&doc)
	if doc.Case.ID != "case-1" {
		t.Errorf("expected case-1, got %s", doc.Case.ID)
	}
	if doc.Version != 1 {
		t.Errorf("expected version 1, got %d", doc.Version)
	}
	if env.h.Coordinator.Store.CaseID() != "case-1" {
		t.Errorf("created case should become current")
	}
}

func TestCreateCase_GeneratesID(t *testing.T) {
	env := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewBufferString(`{"content":"A lease renewal."}`))
	w := httptest.NewRecorder()

	env.h.CreateCase(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if env.h.Coordinator.Store.CaseID() == "" {
		t.Error("expected a generated case id")
	}
}

func TestCreateCase_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"empty content", `{"id":"c"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestHandler(t)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			env.h.CreateCase(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestGetCase_NoCaseLoaded(t *testing.T) {
	env := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/case", nil)
	w := httptest.NewRecorder()

	env.h.GetCase(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if apiErr := decodeError(t, w); apiErr.Code != domain.ErrNoCaseLoaded.Code {
		t.Errorf("expected code %d, got %d", domain.ErrNoCaseLoaded.Code, apiErr.Code)
	}
}

func TestOpenCase(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	env.h.Coordinator.LoadCase(nil, domain.FreshStatus())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases/case-1/open", nil)
	req.SetPathValue("caseID", "case-1")
	w := httptest.NewRecorder()
	env.h.OpenCase(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view CaseView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Case == nil || view.Case.ID != "case-1" {
		t.Fatalf("expected case-1 loaded, got %+v", view.Case)
	}
	if len(view.Generating) != 0 {
		t.Errorf("expected nothing generating, got %v", view.Generating)
	}
}

func TestOpenCase_NotFound(t *testing.T) {
	env := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases/missing/open", nil)
	req.SetPathValue("caseID", "missing")
	w := httptest.NewRecorder()

	env.h.OpenCase(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDeleteCase_ClearsCurrent(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cases/case-1", nil)
	req.SetPathValue("caseID", "case-1")
	w := httptest.NewRecorder()
	env.h.DeleteCase(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if env.h.Coordinator.Store.CaseID() != "" {
		t.Error("deleting the current case should unload it")
	}
}

func TestGenerateScenarios_PersistsCase(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/case/components/A/scenarios", nil)
	req.SetPathValue("componentID", "A")
	w := httptest.NewRecorder()
	env.h.GenerateScenarios(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res coordinator.Result
	json.NewDecoder(w.Body).Decode(&res)
	if len(res.Scenarios) != 5 {
		t.Fatalf("expected 5 scenarios, got %d", len(res.Scenarios))
	}
	if res.Scenarios[0].ID != "A-1" {
		t.Errorf("expected A-1, got %s", res.Scenarios[0].ID)
	}

	doc, err := env.h.CaseRepo.Get(context.Background(), env.h.DB, "u1", "case-1")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if len(doc.Case.Scenarios) != 5 {
		t.Errorf("expected 5 persisted scenarios, got %d", len(doc.Case.Scenarios))
	}
	if doc.Version < 2 {
		t.Errorf("expected version to advance, got %d", doc.Version)
	}
}

func TestGenerateScenarios_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		component  string
		backendErr error
		wantStatus int
		wantKind   domain.ErrorKind
		retryAfter string
	}{
		{"rate limit", "A", errors.New("rate limit exceeded, slow down"), http.StatusTooManyRequests, domain.KindRateLimitError, "5"},
		{"network", "A", errors.New("Network error: connection refused"), http.StatusBadGateway, domain.KindNetworkError, ""},
		{"unknown component", "Z", nil, http.StatusNotFound, domain.KindNotFoundError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestHandler(t)
			createCase(t, env.h)
			if tt.backendErr != nil {
				env.backend.fail(tt.component, tt.backendErr)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/case/components/"+tt.component+"/scenarios", nil)
			req.SetPathValue("componentID", tt.component)
			w := httptest.NewRecorder()
			env.h.GenerateScenarios(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if got := w.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
			if apiErr := decodeError(t, w); apiErr.ErrorKind != tt.wantKind {
				t.Errorf("errorKind = %s, want %s", apiErr.ErrorKind, tt.wantKind)
			}
		})
	}
}

func TestGenerateAllScenarios_PartialFailure(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	env.backend.fail("B", errors.New("Network error: timeout"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/case/scenarios/generate", nil)
	w := httptest.NewRecorder()
	env.h.GenerateAllScenarios(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view BatchView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Succeeded != 1 {
		t.Errorf("expected 1 success, got %d", view.Succeeded)
	}
	if len(view.FailedUnits) != 1 || view.FailedUnits[0] != "B" {
		t.Errorf("expected failed units [B], got %v", view.FailedUnits)
	}
	if view.Errors["B"].ErrorKind != domain.KindNetworkError {
		t.Errorf("expected NetworkError for B, got %+v", view.Errors["B"])
	}
	if got := len(env.h.Coordinator.Store.ScenariosForComponent("A")); got != 5 {
		t.Errorf("expected A to keep 5 scenarios, got %d", got)
	}
}

func TestDeleteComponent_Cascade(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	ctx := context.Background()
	if _, err := env.h.Coordinator.GenerateScenarios(ctx, "A", coordinator.Options{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := env.h.Coordinator.GenerateRiskAssessment(ctx, "A-1", coordinator.Options{}); err != nil {
		t.Fatalf("risk: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/case/components/A", nil)
	req.SetPathValue("componentID", "A")
	w := httptest.NewRecorder()
	env.h.DeleteComponent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var report coordinator.DeleteReport
	json.NewDecoder(w.Body).Decode(&report)
	if report.Scenarios != 5 || report.RiskAssessments != 1 {
		t.Errorf("unexpected cascade report %+v", report)
	}
	if len(env.h.Coordinator.Store.Scenarios()) != 0 {
		t.Error("expected scenarios of A removed")
	}

	recs, err := env.h.AuditRepo.ListByCase(ctx, env.h.DB, "case-1")
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(recs) == 0 || recs[len(recs)-1].Action != "delete_component" {
		t.Errorf("expected delete_component audit record, got %+v", recs)
	}
}

func TestUpdateContent_MarksAnalysisStale(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/case/content", bytes.NewBufferString(`{"content":"Revised facts."}`))
	w := httptest.NewRecorder()
	env.h.UpdateContent(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/case/status", nil)
	w = httptest.NewRecorder()
	env.h.GetStatus(w, req)

	var view StatusView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Status.AnalysisRecalculated {
		t.Error("expected analysis flag cleared")
	}
	if !view.NeedsRecalculation[domain.KindAnalysis] {
		t.Error("expected analysis to need recalculation")
	}
	if view.NeedsRecalculation[domain.KindScenarios] {
		t.Error("scenarios should still be fresh")
	}

	doc, err := env.h.CaseRepo.Get(context.Background(), env.h.DB, "u1", "case-1")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if doc.Status.AnalysisRecalculated {
		t.Error("expected persisted analysis flag cleared")
	}
}

func TestUpdateScenario_NotFound(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/case/scenarios/nope", bytes.NewBufferString(`{"description":"x"}`))
	req.SetPathValue("scenarioID", "nope")
	w := httptest.NewRecorder()
	env.h.UpdateScenario(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPreviewDiff(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	if _, err := env.h.Coordinator.GenerateScenarios(context.Background(), "A", coordinator.Options{}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	body := `{"kind":"scenarios","unitId":"A","after":[{"id":"A-1","componentId":"A","type":"redline_violated_p1","description":"changed"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/case/diff", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	env.h.PreviewDiff(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view DiffView
	json.NewDecoder(w.Body).Decode(&view)
	if len(view.Diff.Removed) != 4 {
		t.Errorf("expected 4 removed, got %d", len(view.Diff.Removed))
	}
	if len(view.Diff.Changed) != 1 {
		t.Errorf("expected 1 changed, got %d", len(view.Diff.Changed))
	}
	if view.Summary == "" {
		t.Error("expected a summary")
	}
}

func TestPreviewDiff_InvalidKind(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/case/diff", bytes.NewBufferString(`{"kind":"analysis"}`))
	w := httptest.NewRecorder()
	env.h.PreviewDiff(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestNotices(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	env.backend.fail("A", errors.New("Network error: reset"))
	env.h.Coordinator.GenerateScenarios(context.Background(), "A", coordinator.Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notices", nil)
	w := httptest.NewRecorder()
	env.h.ListNotices(w, req)

	var notices []coordinator.Notice
	json.NewDecoder(w.Body).Decode(&notices)
	if len(notices) != 1 || notices[0].Success {
		t.Fatalf("expected one failure notice, got %+v", notices)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/notices/"+notices[0].ID, nil)
	req.SetPathValue("noticeID", notices[0].ID)
	w = httptest.NewRecorder()
	env.h.DismissNotice(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/notices/"+notices[0].ID, nil)
	req.SetPathValue("noticeID", notices[0].ID)
	w = httptest.NewRecorder()
	env.h.DismissNotice(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second dismiss, got %d", w.Code)
	}
}

func TestListEvents(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	if _, err := env.h.Coordinator.GenerateScenarios(context.Background(), "A", coordinator.Options{}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/case/events?since_seq=1", nil)
	w := httptest.NewRecorder()
	env.h.ListEvents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var events []domain.GenerationEvent
	json.NewDecoder(w.Body).Decode(&events)
	if len(events) != 1 {
		t.Fatalf("expected 1 event after seq 1, got %d", len(events))
	}
	if events[0].EventType != "generation_succeeded" {
		t.Errorf("expected generation_succeeded, got %s", events[0].EventType)
	}
}

func TestStreamEvents(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	if _, err := env.h.Coordinator.GenerateScenarios(context.Background(), "A", coordinator.Options{}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/case/events/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	env.h.StreamEvents(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"event: hello", "event: generation_started", "event: generation_succeeded"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
}

func TestServer_CORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", nil, "http://anywhere", "*"},
		{"allowed origin", []string{"http://localhost:3000"}, "http://localhost:3000", "http://localhost:3000"},
		{"foreign origin", []string{"http://localhost:3000"}, "http://evil.test", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestHandler(t)
			srv := NewServer(env.h, ServerOptions{ListenAddr: ":0", AllowedOrigins: tt.allowed})

			req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			srv.httpServer.Handler.ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("expected 204 for OPTIONS, got %d", w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServer_Routes(t *testing.T) {
	env := newTestHandler(t)
	srv := NewServer(env.h, ServerOptions{ListenAddr: ":0", Metrics: env.metrics})
	createCase(t, env.h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/case/components/A/scenarios?force=true", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "negotiator_generations_total") {
		t.Errorf("metrics exposition missing generation counter:\n%s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	env.h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
}

func TestHealth_RateLimitRemaining(t *testing.T) {
	env := newTestHandler(t)
	env.h.Guard = guard.NewGuard(nil, guard.GuardConfig{RateLimitPerMinute: 3}, env.h.Logger)
	if err := env.h.Guard.CheckRateLimit(context.Background(), "u1", "case-1", "A"); err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}

	w := httptest.NewRecorder()
	env.h.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["rateLimitRemaining"] != float64(2) {
		t.Errorf("rateLimitRemaining = %v, want 2", resp["rateLimitRemaining"])
	}
}

func TestGenerateAllScenarios_NoAnalysis(t *testing.T) {
	env := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewBufferString(`{"id":"case-1","content":"Two firms negotiate."}`))
	w := httptest.NewRecorder()
	env.h.CreateCase(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create case: expected 201, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	env.h.GenerateAllScenarios(w, httptest.NewRequest(http.MethodPost, "/api/v1/case/scenarios/generate", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if apiErr := decodeError(t, w); apiErr.Code != domain.ErrNoAnalysis.Code {
		t.Errorf("code = %d, want %d", apiErr.Code, domain.ErrNoAnalysis.Code)
	}
}

func TestListAudit_FilterAndSummary(t *testing.T) {
	env := newTestHandler(t)
	createCase(t, env.h)
	ctx := context.Background()

	if _, err := env.h.Coordinator.DeleteComponent(ctx, "B"); err != nil {
		t.Fatalf("DeleteComponent: %v", err)
	}
	throttled := domain.AuditRecord{CaseID: "case-1", Category: "rate_limit", Actor: "u1", Action: domain.AuditThrottled, Severity: "warn", CreatedAt: time.Now().Unix()}
	if err := env.h.AuditRepo.Record(ctx, env.h.DB, throttled); err != nil {
		t.Fatalf("Record: %v", err)
	}

	w := httptest.NewRecorder()
	env.h.ListAudit(w, httptest.NewRequest(http.MethodGet, "/api/v1/case/audit?action="+domain.AuditDeleteComponent, nil))
	var recs []domain.AuditRecord
	json.NewDecoder(w.Body).Decode(&recs)
	if len(recs) != 1 || recs[0].Action != domain.AuditDeleteComponent {
		t.Errorf("filtered audit = %+v, want one delete_component", recs)
	}

	w = httptest.NewRecorder()
	env.h.AuditSummary(w, httptest.NewRequest(http.MethodGet, "/api/v1/case/audit/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sum domain.AuditSummary
	json.NewDecoder(w.Body).Decode(&sum)
	if sum.Total != 2 || sum.ByAction[domain.AuditThrottled] != 1 || sum.BySeverity["warn"] != 1 {
		t.Errorf("summary = %+v", sum)
	}
}
