package ipc

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/metrics"
)

// Server wraps an HTTP server with service-specific routing.
type Server struct {
	httpServer *http.Server
}

// ServerOptions tunes the HTTP server.
type ServerOptions struct {
	ListenAddr     string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
}

// NewServer creates a Server that binds to opts.ListenAddr.
func NewServer(h *Handler, opts ServerOptions) *Server {
	mux := http.NewServeMux()

	// Health endpoint.
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Stored cases.
	mux.HandleFunc("GET /api/v1/cases", h.ListCases)
	mux.HandleFunc("POST /api/v1/cases", h.CreateCase)
	mux.HandleFunc("POST /api/v1/cases/{caseID}/open", h.OpenCase)
	mux.HandleFunc("DELETE /api/v1/cases/{caseID}", h.DeleteCase)

	// Current case.
	mux.HandleFunc("GET /api/v1/case", h.GetCase)
	mux.HandleFunc("POST /api/v1/case/save", h.SaveCase)
	mux.HandleFunc("GET /api/v1/case/status", h.GetStatus)
	mux.HandleFunc("POST /api/v1/case/status/{kind}/accept", h.AcceptStatus)
	mux.HandleFunc("PUT /api/v1/case/content", h.UpdateContent)
	mux.HandleFunc("PUT /api/v1/case/analysis", h.UpdateAnalysis)

	// Components and scenarios.
	mux.HandleFunc("POST /api/v1/case/components", h.AddComponent)
	mux.HandleFunc("PUT /api/v1/case/components/{componentID}", h.UpdateComponent)
	mux.HandleFunc("DELETE /api/v1/case/components/{componentID}", h.DeleteComponent)
	mux.HandleFunc("PUT /api/v1/case/scenarios/{scenarioID}", h.UpdateScenario)

	// Generation.
	mux.HandleFunc("POST /api/v1/case/components/{componentID}/scenarios", h.GenerateScenarios)
	mux.HandleFunc("POST /api/v1/case/scenarios/generate", h.GenerateAllScenarios)
	mux.HandleFunc("POST /api/v1/case/scenarios/{scenarioID}/risk-assessment", h.GenerateRiskAssessment)
	mux.HandleFunc("POST /api/v1/case/risk-assessments/generate", h.GenerateAllRiskAssessments)
	mux.HandleFunc("POST /api/v1/case/auto-generate", h.AutoGenerate)

	// Overwrite confirmation and diff preview.
	mux.HandleFunc("POST /api/v1/case/pending/{kind}/{unitID}", h.ConfirmPending)
	mux.HandleFunc("DELETE /api/v1/case/pending/{kind}/{unitID}", h.DiscardPending)
	mux.HandleFunc("POST /api/v1/case/diff", h.PreviewDiff)

	// Notices.
	mux.HandleFunc("GET /api/v1/notices", h.ListNotices)
	mux.HandleFunc("DELETE /api/v1/notices/{noticeID}", h.DismissNotice)
	mux.HandleFunc("POST /api/v1/notices/{noticeID}/retry", h.RetryNotice)

	// Journal.
	mux.HandleFunc("GET /api/v1/case/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/case/events/stream", h.StreamEvents)
	mux.HandleFunc("GET /api/v1/case/snapshots/{kind}/{unitID}", h.LatestSnapshot)
	mux.HandleFunc("GET /api/v1/case/audit", h.ListAudit)
	mux.HandleFunc("GET /api/v1/case/audit/summary", h.AuditSummary)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	srv := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           corsMiddleware(opts.AllowedOrigins, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.RequestTimeout > 0 {
		srv.ReadTimeout = opts.RequestTimeout
	}

	return &Server{
		httpServer: srv,
	}
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for browser access. An empty allow list
// admits every origin.
func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(allowed) > 0 {
			origin = ""
			if o := r.Header.Get("Origin"); slices.Contains(allowed, o) {
				origin = o
				w.Header().Add("Vary", "Origin")
			}
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
