package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dkomarov/doc-analyst/internal/config"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
	"github.com/dkomarov/doc-analyst/internal/observability/metrics"
)

type Router struct {
	cfg      config.Config
	asker    ports.QuestionAnswerer
	ingestor ports.DocumentIngestor
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	asker ports.QuestionAnswerer,
	ingestor ports.DocumentIngestor,
	docs ports.DocumentReader,
) *Router {
	return &Router{
		cfg:      cfg,
		asker:    asker,
		ingestor: ingestor,
		docs:     docs,
	}
}

// WithMetrics attaches the Prometheus registry. Without it the router serves
// no /metrics endpoint and records nothing.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/ask", rt.ask)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	if rt.cfg.MaxConcurrentRequests > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrentRequests, 50*time.Millisecond)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type askRequest struct {
	Question string `json:"question"`
	Query    string `json:"query"`
	Q        string `json:"q"`
}

// question accepts the aliases older clients still send.
func (req askRequest) question() string {
	for _, candidate := range []string{req.Question, req.Query, req.Q} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	question := req.question()
	if question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	result := rt.asker.Ask(r.Context(), question)

	if rt.metrics != nil {
		diag := result.RetrievalDiagnostics
		rt.metrics.RecordAskObservation(
			"api",
			diag.VectorCandidates,
			diag.LexicalCandidates,
			diag.MergedCandidates,
			diag.RerankDegraded,
			diag.Error != "",
			result.ConfidenceScore,
			time.Since(start),
		)
		if strings.HasPrefix(result.Answer, "(Analyst) ") {
			rt.metrics.RecordFallbackAnswer("api")
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
