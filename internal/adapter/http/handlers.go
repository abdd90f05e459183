package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Strob0t/painradar/internal/domain/mode"
	"github.com/Strob0t/painradar/internal/resilience"
	"github.com/Strob0t/painradar/internal/service"
)

const (
	maxKeywordLength   = 200
	maxRequestBodySize = 16 << 10
)

// Handlers holds the services used by the HTTP handlers.
type Handlers struct {
	Queries *service.QueryService
	Pool    *resilience.Pool
}

// RunQueryRequest is the body of POST /api/v1/queries.
type RunQueryRequest struct {
	Keyword string `json:"keyword"`
	Mode    string `json:"mode"`
}

// RunQuery handles POST /api/v1/queries.
func (h *Handlers) RunQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[RunQueryRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	if len(keyword) > maxKeywordLength {
		writeError(w, http.StatusBadRequest, "keyword exceeds maximum length")
		return
	}
	m, err := mode.Parse(req.Mode)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}

	q, err := h.Queries.Run(r.Context(), keyword, m)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// ListQueries handles GET /api/v1/queries?limit=N.
func (h *Handlers) ListQueries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.Queries.List(r.Context(), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetQuery handles GET /api/v1/queries/{id}.
func (h *Handlers) GetQuery(w http.ResponseWriter, r *http.Request) {
	q, err := h.Queries.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "query not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ListModes handles GET /api/v1/modes.
func (h *Handlers) ListModes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, mode.Presets())
}

// ListSources handles GET /api/v1/sources.
func (h *Handlers) ListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Queries.Sources())
}

// CredentialStatus handles GET /api/v1/credentials. Secrets are never
// included.
func (h *Handlers) CredentialStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Pool.Stats())
}

type healthResponse struct {
	Status      string          `json:"status"`
	Sources     []string        `json:"sources"`
	Credentials credentialCount `json:"credentials"`
}

type credentialCount struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	CoolingDown int `json:"cooling_down"`
}

// Health handles GET /health. The service is degraded while every
// credential is cooling down; it still serves queries.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	stats := h.Pool.Stats()
	status := "ok"
	if stats.Available == 0 {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  status,
		Sources: h.Queries.Sources(),
		Credentials: credentialCount{
			Total:       stats.Total,
			Available:   stats.Available,
			CoolingDown: stats.CoolingDown,
		},
	})
}
