package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
	"github.com/ivmaltsev/corpus-engine/internal/observability/metrics"
)

// Router exposes the ingestion and retrieval interfaces over JSON. The
// transport is deliberately thin: every behavior lives in the use cases.
type Router struct {
	ingestor  ports.ResourceIngestor
	retriever ports.RetrievalService
	admin     ports.CatalogAdmin
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

func NewRouter(
	ingestor ports.ResourceIngestor,
	retriever ports.RetrievalService,
	admin ports.CatalogAdmin,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	return &Router{
		ingestor:  ingestor,
		retriever: retriever,
		admin:     admin,
		metrics:   httpMetrics,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/resources", rt.resources)
	mux.HandleFunc("/v1/resources/", rt.resourceByHash)
	mux.HandleFunc("/v1/status/groups", rt.groupedStatus)
	mux.HandleFunc("/v1/query", rt.query)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = accessLogMiddleware(rt.logger, handler)
	handler = metricsMiddleware(rt.metrics, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) resources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.registerResource(w, r)
	case http.MethodGet:
		rt.listResources(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) registerResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string            `json:"display_name"`
		SourceType  string            `json:"source_type"`
		OriginURI   string            `json:"origin_uri"`
		MediaType   string            `json:"media_type"`
		Metadata    map[string]string `json:"metadata"`
		Content     []byte            `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	entry, isNew, err := rt.ingestor.Register(r.Context(), &domain.Resource{
		DisplayName: req.DisplayName,
		SourceType:  domain.SourceType(req.SourceType),
		OriginURI:   req.OriginURI,
		MediaType:   req.MediaType,
		Metadata:    req.Metadata,
		Content:     req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"content_hash": entry.ContentHash,
		"is_new":       isNew,
		"entry":        entry,
	})
}

func (rt *Router) listResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.DocumentFilter{
		Status:     domain.IngestionStatus(q.Get("status")),
		SourceType: domain.SourceType(q.Get("source_type")),
		SearchText: q.Get("q"),
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := rt.admin.ListDocuments(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (rt *Router) resourceByHash(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/resources/")
	parts := strings.SplitN(rest, "/", 2)
	hash := parts[0]
	if hash == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content hash is required"})
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rt.getStatus(w, r, hash)
	case action == "" && r.Method == http.MethodDelete:
		rt.purge(w, r, hash)
	case action == "retry" && r.Method == http.MethodPost:
		rt.retry(w, r, hash)
	case action == "reset" && r.Method == http.MethodPost:
		rt.forceReset(w, r, hash)
	case action == "enabled" && r.Method == http.MethodPost:
		rt.setEnabled(w, r, hash)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getStatus(w http.ResponseWriter, r *http.Request, hash string) {
	entry, err := rt.admin.GetStatus(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) retry(w http.ResponseWriter, r *http.Request, hash string) {
	if err := rt.admin.Retry(r.Context(), hash); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

func (rt *Router) forceReset(w http.ResponseWriter, r *http.Request, hash string) {
	if err := rt.admin.ForceReset(r.Context(), hash); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (rt *Router) setEnabled(w http.ResponseWriter, r *http.Request, hash string) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.admin.SetEnabled(r.Context(), hash, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (rt *Router) purge(w http.ResponseWriter, r *http.Request, hash string) {
	if err := rt.admin.Purge(r.Context(), hash); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (rt *Router) groupedStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	grouped, err := rt.admin.GroupedStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Strategy string `json:"strategy"`
		Text     string `json:"text"`
		K        int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Strategy == "" {
		req.Strategy = string(domain.StrategyHybrid)
	}

	results, err := rt.retriever.Query(r.Context(), domain.Strategy(req.Strategy), req.Text, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.ObserveQuery(req.Strategy, len(results))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFailed),
		domain.IsKind(err, domain.ErrInvalidTransition),
		domain.IsKind(err, domain.ErrDuplicateContent):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
