// Package ipc provides the HTTP API consumed by the browser client.
package ipc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iisharvard/a2b-sub002/internal/backend"
	"github.com/iisharvard/a2b-sub002/internal/coordinator"
	"github.com/iisharvard/a2b-sub002/internal/diff"
	"github.com/iisharvard/a2b-sub002/internal/domain"
	"github.com/iisharvard/a2b-sub002/internal/guard"
	"github.com/iisharvard/a2b-sub002/internal/store"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Coordinator  *coordinator.Coordinator
	Monitor      *backend.Monitor
	Guard        *guard.Guard
	DB           *sql.DB
	UserID       string
	CaseRepo     *store.CaseRepo
	StatusRepo   *store.StatusRepo
	EventRepo    *store.EventRepo
	SnapshotRepo *store.SnapshotRepo
	AuditRepo    *store.AuditRepo
	Logger       *slog.Logger
	PollInterval time.Duration
}

// NewHandler wires a Handler over db for one user.
func NewHandler(c *coordinator.Coordinator, mon *backend.Monitor, db *sql.DB, userID string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Coordinator:  c,
		Monitor:      mon,
		DB:           db,
		UserID:       userID,
		CaseRepo:     &store.CaseRepo{},
		StatusRepo:   &store.StatusRepo{},
		EventRepo:    &store.EventRepo{},
		SnapshotRepo: &store.SnapshotRepo{},
		AuditRepo:    &store.AuditRepo{},
		Logger:       logger,
		PollInterval: 2 * time.Second,
	}
}

// APIError is a structured error response.
type APIError struct {
	Code         int                   `json:"code"`
	Message      string                `json:"message"`
	ErrorKind    domain.ErrorKind      `json:"errorKind,omitempty"`
	Recovery     domain.RecoveryAction `json:"recovery,omitempty"`
	RetryAfterMs int64                 `json:"retryAfterMs,omitempty"`
}

// CaseView is the response for the current case.
type CaseView struct {
	Case       *domain.Case               `json:"case"`
	Status     domain.RecalculationStatus `json:"status"`
	Generating []string                   `json:"generating"`
}

// StatusView reports the flags and which kinds need regeneration.
type StatusView struct {
	Status             domain.RecalculationStatus   `json:"status"`
	NeedsRecalculation map[domain.ArtifactKind]bool `json:"needsRecalculation"`
}

// BatchView is a BatchReport with its per-unit failures flattened.
type BatchView struct {
	coordinator.BatchReport
	FailedUnits []string            `json:"failedUnits"`
	Errors      map[string]APIError `json:"errors"`
}

// DiffRequest is the body for POST /api/v1/case/diff.
type DiffRequest struct {
	Kind   domain.ArtifactKind `json:"kind"`
	UnitID string              `json:"unitId"`
	After  []map[string]any    `json:"after"`
}

// DiffView is a collection diff with its printable summary.
type DiffView struct {
	Diff    diff.CollectionDiff `json:"diff"`
	Summary string              `json:"summary"`
}

// Health handles GET /api/v1/health. When a guard is attached the response
// carries the user's remaining outbound calls; -1 means unlimited.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.Monitor != nil {
		resp["backend"] = h.Monitor.Last()
	}
	if h.Guard != nil {
		resp["rateLimitRemaining"] = h.Guard.Remaining(h.UserID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCases handles GET /api/v1/cases.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	docs, err := h.CaseRepo.ListByUser(r.Context(), h.DB, h.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.CaseDocument{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// CreateCase handles POST /api/v1/cases. The new case becomes current.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var c domain.Case
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if c.Content == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "content is required"})
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	h.Coordinator.LoadCase(&c, domain.FreshStatus())
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	doc, err := h.CaseRepo.Get(r.Context(), h.DB, h.UserID, c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// OpenCase handles POST /api/v1/cases/{caseID}/open: loads a stored case
// with its persisted flags.
func (h *Handler) OpenCase(w http.ResponseWriter, r *http.Request) {
	doc, err := h.CaseRepo.Get(r.Context(), h.DB, h.UserID, r.PathValue("caseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.Coordinator.LoadCase(&doc.Case, doc.Status)
	h.writeCase(w)
}

// DeleteCase handles DELETE /api/v1/cases/{caseID}.
func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("caseID")
	if err := h.CaseRepo.Delete(r.Context(), h.DB, h.UserID, caseID); err != nil {
		writeError(w, err)
		return
	}
	if h.Coordinator.Store.CaseID() == caseID {
		h.Coordinator.LoadCase(nil, domain.FreshStatus())
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCase handles GET /api/v1/case.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	if h.Coordinator.Store.CaseID() == "" {
		writeError(w, domain.ErrNoCaseLoaded)
		return
	}
	h.writeCase(w)
}

// SaveCase handles POST /api/v1/case/save.
func (h *Handler) SaveCase(w http.ResponseWriter, r *http.Request) {
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStatus handles GET /api/v1/case/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	t := h.Coordinator.Tracker
	view := StatusView{Status: t.Status(), NeedsRecalculation: make(map[domain.ArtifactKind]bool)}
	for _, k := range []domain.ArtifactKind{domain.KindAnalysis, domain.KindScenarios, domain.KindRiskAssessments} {
		needs, err := t.NeedsRecalculation(k)
		if err != nil {
			writeError(w, err)
			return
		}
		view.NeedsRecalculation[k] = needs
	}
	writeJSON(w, http.StatusOK, view)
}

// AcceptStatus handles POST /api/v1/case/status/{kind}/accept: the user
// keeps the current content without regenerating.
func (h *Handler) AcceptStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.Coordinator.AcceptCurrent(domain.ArtifactKind(r.PathValue("kind"))); err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// UpdateContent handles PUT /api/v1/case/content.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if err := h.Coordinator.SetCaseContent(req.Content); err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	h.writeCase(w)
}

// UpdateAnalysis handles PUT /api/v1/case/analysis.
func (h *Handler) UpdateAnalysis(w http.ResponseWriter, r *http.Request) {
	var a domain.Analysis
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if err := h.Coordinator.SetAnalysis(&a); err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	h.writeCase(w)
}

// AddComponent handles POST /api/v1/case/components.
func (h *Handler) AddComponent(w http.ResponseWriter, r *http.Request) {
	var comp domain.Component
	if err := json.NewDecoder(r.Body).Decode(&comp); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if err := h.Coordinator.AddComponent(comp); err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	writeJSON(w, http.StatusCreated, comp)
}

// UpdateComponent handles PUT /api/v1/case/components/{componentID}.
func (h *Handler) UpdateComponent(w http.ResponseWriter, r *http.Request) {
	var comp domain.Component
	if err := json.NewDecoder(r.Body).Decode(&comp); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	comp.ID = r.PathValue("componentID")
	if err := h.Coordinator.UpdateComponent(comp); err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	writeJSON(w, http.StatusOK, comp)
}

// DeleteComponent handles DELETE /api/v1/case/components/{componentID}.
func (h *Handler) DeleteComponent(w http.ResponseWriter, r *http.Request) {
	report, err := h.Coordinator.DeleteComponent(r.Context(), r.PathValue("componentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	writeJSON(w, http.StatusOK, report)
}

// UpdateScenario handles PUT /api/v1/case/scenarios/{scenarioID}.
func (h *Handler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	scenarioID := r.PathValue("scenarioID")
	if err := h.Coordinator.UpdateScenarioDescription(scenarioID, req.Description); err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	sc, _ := h.Coordinator.Store.Scenario(scenarioID)
	writeJSON(w, http.StatusOK, sc)
}

// GenerateScenarios handles POST /api/v1/case/components/{componentID}/scenarios.
func (h *Handler) GenerateScenarios(w http.ResponseWriter, r *http.Request) {
	res, err := h.Coordinator.GenerateScenarios(r.Context(), r.PathValue("componentID"), options(r))
	h.writeResult(w, r, res, err)
}

// GenerateRiskAssessment handles POST /api/v1/case/scenarios/{scenarioID}/risk-assessment.
func (h *Handler) GenerateRiskAssessment(w http.ResponseWriter, r *http.Request) {
	res, err := h.Coordinator.GenerateRiskAssessment(r.Context(), r.PathValue("scenarioID"), options(r))
	h.writeResult(w, r, res, err)
}

// GenerateAllScenarios handles POST /api/v1/case/scenarios/generate.
func (h *Handler) GenerateAllScenarios(w http.ResponseWriter, r *http.Request) {
	if h.Coordinator.Store.CaseID() == "" {
		writeError(w, domain.ErrNoCaseLoaded)
		return
	}
	if cs := h.Coordinator.Store.Case(); cs.Analysis == nil {
		writeError(w, domain.ErrNoAnalysis)
		return
	}
	report := h.Coordinator.GenerateAllScenarios(r.Context(), options(r))
	h.persistLogged(r.Context())
	writeJSON(w, http.StatusOK, batchView(report))
}

// GenerateAllRiskAssessments handles POST /api/v1/case/risk-assessments/generate.
func (h *Handler) GenerateAllRiskAssessments(w http.ResponseWriter, r *http.Request) {
	if h.Coordinator.Store.CaseID() == "" {
		writeError(w, domain.ErrNoCaseLoaded)
		return
	}
	report := h.Coordinator.GenerateAllRiskAssessments(r.Context(), options(r))
	h.persistLogged(r.Context())
	writeJSON(w, http.StatusOK, batchView(report))
}

// AutoGenerate handles POST /api/v1/case/auto-generate.
func (h *Handler) AutoGenerate(w http.ResponseWriter, r *http.Request) {
	report, ran := h.Coordinator.AutoGenerate(r.Context())
	if !ran {
		writeJSON(w, http.StatusOK, map[string]bool{"ran": false})
		return
	}
	h.persistLogged(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"ran": true, "report": batchView(report)})
}

// ConfirmPending handles POST /api/v1/case/pending/{kind}/{unitID}.
func (h *Handler) ConfirmPending(w http.ResponseWriter, r *http.Request) {
	res, err := h.Coordinator.ConfirmOverwrite(r.Context(), domain.ArtifactKind(r.PathValue("kind")), r.PathValue("unitID"))
	h.writeResult(w, r, res, err)
}

// DiscardPending handles DELETE /api/v1/case/pending/{kind}/{unitID}.
func (h *Handler) DiscardPending(w http.ResponseWriter, r *http.Request) {
	if err := h.Coordinator.DiscardPending(r.Context(), domain.ArtifactKind(r.PathValue("kind")), r.PathValue("unitID")); err != nil {
		writeError(w, err)
		return
	}
	h.persistLogged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// PreviewDiff handles POST /api/v1/case/diff: compares the stored
// collection of a unit with a proposed one.
func (h *Handler) PreviewDiff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	var before []map[string]any
	var err error
	st := h.Coordinator.Store
	switch req.Kind {
	case domain.KindScenarios:
		list := st.Scenarios()
		if req.UnitID != "" {
			list = st.ScenariosForComponent(req.UnitID)
		}
		before, err = toMaps(list)
	case domain.KindRiskAssessments:
		list := st.RiskAssessments()
		if req.UnitID != "" {
			list = st.RiskAssessmentsForScenario(req.UnitID)
		}
		before, err = toMaps(list)
	default:
		err = domain.ErrInvalidKind
	}
	if err != nil {
		writeError(w, err)
		return
	}

	d := diff.Collections(before, req.After, "id")
	writeJSON(w, http.StatusOK, DiffView{Diff: d, Summary: diff.Format(d)})
}

// ListNotices handles GET /api/v1/notices.
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	notices := h.Coordinator.Notices()
	if notices == nil {
		notices = []coordinator.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

// DismissNotice handles DELETE /api/v1/notices/{noticeID}.
func (h *Handler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	if !h.Coordinator.Dismiss(r.PathValue("noticeID")) {
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "notice not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryNotice handles POST /api/v1/notices/{noticeID}/retry.
func (h *Handler) RetryNotice(w http.ResponseWriter, r *http.Request) {
	res, err := h.Coordinator.RetryNotice(r.Context(), r.PathValue("noticeID"))
	h.writeResult(w, r, res, err)
}

// ListEvents handles GET /api/v1/case/events?since_seq=N.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	sinceSeq := int64(0)
	if s := r.URL.Query().Get("since_seq"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			sinceSeq = parsed
		}
	}

	events, err := h.EventRepo.ListByCase(r.Context(), h.DB, h.Coordinator.Store.CaseID(), sinceSeq)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.GenerationEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// LatestSnapshot handles GET /api/v1/case/snapshots/{kind}/{unitID}.
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.SnapshotRepo.GetLatest(r.Context(), h.DB, h.Coordinator.Store.CaseID(), domain.ArtifactKind(r.PathValue("kind")), r.PathValue("unitID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "no snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListAudit handles GET /api/v1/case/audit?action=A&action=B.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	recs, err := h.AuditRepo.ListByCase(r.Context(), h.DB, h.Coordinator.Store.CaseID(), r.URL.Query()["action"]...)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// AuditSummary handles GET /api/v1/case/audit/summary.
func (h *Handler) AuditSummary(w http.ResponseWriter, r *http.Request) {
	caseID := h.Coordinator.Store.CaseID()
	if caseID == "" {
		writeError(w, domain.ErrNoCaseLoaded)
		return
	}
	sum, err := h.AuditRepo.Summarize(r.Context(), h.DB, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// StreamEvents handles GET /api/v1/case/events/stream (SSE).
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	caseID := h.Coordinator.Store.CaseID()
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, err := h.EventRepo.ListByCase(r.Context(), h.DB, caseID, 0)
	if err != nil {
		writeSSEError(w, flusher, err)
		return
	}
	fmt.Fprintf(w, "event: hello\ndata: {\"caseId\":%q}\n\n", caseID)
	flusher.Flush()
	for _, ev := range events {
		writeSSEEvent(w, flusher, ev)
	}

	lastSeq := int64(0)
	if len(events) > 0 {
		lastSeq = events[len(events)-1].SeqNo
	}

	ctx := r.Context()
	ticker := time.NewTicker(h.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			newEvents, err := h.EventRepo.ListByCase(ctx, h.DB, caseID, lastSeq)
			if err != nil {
				return
			}
			for _, ev := range newEvents {
				writeSSEEvent(w, flusher, ev)
				lastSeq = ev.SeqNo
			}
		}
	}
}

// persist writes the current case and its flags in one transaction.
func (h *Handler) persist(ctx context.Context) error {
	c := h.Coordinator.Store.Case()
	if c == nil {
		return domain.ErrNoCaseLoaded
	}
	now := time.Now().Unix()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapServiceError(domain.ErrStoreWrite.Code, "begin tx", err)
	}
	defer tx.Rollback()

	if _, err := h.CaseRepo.SaveTx(ctx, tx, h.UserID, *c, now); err != nil {
		return domain.WrapServiceError(domain.ErrStoreWrite.Code, "save case", err)
	}
	if err := h.StatusRepo.SaveTx(ctx, tx, h.UserID, c.ID, h.Coordinator.Tracker.Status(), now); err != nil {
		return domain.WrapServiceError(domain.ErrStoreWrite.Code, "save status", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapServiceError(domain.ErrStoreWrite.Code, "commit case", err)
	}
	return nil
}

func (h *Handler) persistLogged(ctx context.Context) {
	if err := h.persist(ctx); err != nil && !errors.Is(err, domain.ErrNoCaseLoaded) {
		h.Logger.Error("persist case", "case", h.Coordinator.Store.CaseID(), "err", err)
	}
}

func (h *Handler) writeCase(w http.ResponseWriter) {
	gen := h.Coordinator.Generating()
	if gen == nil {
		gen = []string{}
	}
	writeJSON(w, http.StatusOK, CaseView{
		Case:       h.Coordinator.Store.Case(),
		Status:     h.Coordinator.Tracker.Status(),
		Generating: gen,
	})
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res coordinator.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.CacheHit {
		h.persistLogged(r.Context())
	}
	writeJSON(w, http.StatusOK, res)
}

func options(r *http.Request) coordinator.Options {
	q := r.URL.Query()
	force, _ := strconv.ParseBool(q.Get("force"))
	confirm, _ := strconv.ParseBool(q.Get("confirm"))
	return coordinator.Options{ForceRefresh: force, RequireConfirm: confirm}
}

func batchView(r coordinator.BatchReport) BatchView {
	v := BatchView{BatchReport: r, FailedUnits: r.FailedUnits(), Errors: make(map[string]APIError, len(r.Errors))}
	for id, ge := range r.Errors {
		v.Errors[id] = generationAPIError(ge)
	}
	return v
}

func toMaps[T any](items []T) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m, err := diff.ToMap(it)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func generationAPIError(ge *domain.GenerationError) APIError {
	s := ge.Sentinel()
	return APIError{
		Code:         s.Code,
		Message:      ge.Error(),
		ErrorKind:    ge.Kind,
		Recovery:     ge.Recovery,
		RetryAfterMs: ge.RetryAfter.Milliseconds(),
	}
}

func writeError(w http.ResponseWriter, err error) {
	var ge *domain.GenerationError
	if errors.As(err, &ge) {
		status := http.StatusBadGateway
		switch ge.Kind {
		case domain.KindRateLimitError:
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", strconv.Itoa(int(ge.RetryAfter.Seconds())))
		case domain.KindNotFoundError:
			status = http.StatusNotFound
		case domain.KindValidationError:
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, generationAPIError(ge))
		return
	}

	var svcErr *domain.ServiceError
	if errors.As(err, &svcErr) {
		status := http.StatusInternalServerError
		switch svcErr.Code {
		case domain.ErrCaseNotFound.Code, domain.ErrComponentNotFound.Code, domain.ErrScenarioNotFound.Code,
			domain.ErrRiskAssessmentNotFound.Code, domain.ErrUnitNotFound.Code:
			status = http.StatusNotFound
		case domain.ErrNoCaseLoaded.Code, domain.ErrNoAnalysis.Code, domain.ErrAlreadyGenerating.Code, domain.ErrStaleResult.Code:
			status = http.StatusConflict
		case domain.ErrInvalidKind.Code, domain.ErrInvalidContent.Code:
			status = http.StatusBadRequest
		case domain.ErrRateLimitExceeded.Code:
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, APIError{Code: svcErr.Code, Message: svcErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, ev domain.GenerationEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.SeqNo, ev.EventType, data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
