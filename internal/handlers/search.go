package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ragline/internal/contextutil"
	"ragline/internal/embedding"
	"ragline/internal/vectorstore"
)

const defaultSearchLimit = 10

// SearchHandler embeds a query text and runs a similarity search over an
// organization's vectors.
type SearchHandler struct {
	embedders *embedding.Factory
	vectors   vectorstore.VectorStore
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(embedders *embedding.Factory, vectors vectorstore.VectorStore) *SearchHandler {
	return &SearchHandler{embedders: embedders, vectors: vectors}
}

// SearchRequest represents the HTTP request payload for vector search.
//
// swagger:model SearchRequest
type SearchRequest struct {
	OrgID    string `json:"orgId"`
	Text     string `json:"text"`
	Platform string `json:"platform"`
	Model    string `json:"model,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// ServeHTTP handles POST /api/vectorsearch.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if strings.TrimSpace(req.OrgID) == "" {
		writeError(w, http.StatusBadRequest, "orgId is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Please provide valid text input.")
		return
	}
	if strings.TrimSpace(req.Platform) == "" {
		writeError(w, http.StatusBadRequest, "Platform is required in the request.")
		return
	}

	embedder, err := h.embedders.ForPlatform(req.Platform)
	if err != nil {
		if errors.Is(err, embedding.ErrUnsupportedPlatform) {
			writeError(w, http.StatusBadRequest, "Invalid platform specified.")
			return
		}
		logger.ErrorContext(ctx, "failed to select embedder", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to select embedding platform")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	vectors, err := embedder.Embed(ctx, []string{req.Text}, req.Model, embedding.InputTypeQuery)
	if err != nil || len(vectors) == 0 {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to obtain embedding.")
		return
	}

	results, err := h.vectors.Search(ctx, req.OrgID, vectors[0], limit)
	if err != nil {
		logger.ErrorContext(ctx, "vector search failed", "error", err, "org_id", req.OrgID)
		writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, results)
}
