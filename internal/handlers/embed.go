package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ragline/internal/contextutil"
	"ragline/internal/embedding"
)

// EmbedHandler exposes the embedding providers directly, mostly for
// inspecting what a given text embeds to.
type EmbedHandler struct {
	embedders *embedding.Factory
}

// NewEmbedHandler creates a new EmbedHandler.
func NewEmbedHandler(embedders *embedding.Factory) *EmbedHandler {
	return &EmbedHandler{embedders: embedders}
}

// EmbedRequest represents the HTTP request payload for an embedding preview.
//
// swagger:model EmbedRequest
type EmbedRequest struct {
	Text      string `json:"text"`
	Platform  string `json:"platform,omitempty"`
	Model     string `json:"model,omitempty"`
	InputType string `json:"inputType,omitempty"`
}

// EmbedResponse carries the vector for the submitted text.
//
// swagger:model EmbedResponse
type EmbedResponse struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// ServeHTTP handles POST /api/embed.
func (h *EmbedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid input. Please pass a JSON object with property 'text'.")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Invalid input. Please pass a JSON object with property 'text'.")
		return
	}

	platform := req.Platform
	if platform == "" {
		platform = "voyage"
	}
	inputType := req.InputType
	if inputType == "" {
		inputType = embedding.InputTypeDocument
	}

	embedder, err := h.embedders.ForPlatform(platform)
	if err != nil {
		if errors.Is(err, embedding.ErrUnsupportedPlatform) {
			writeError(w, http.StatusBadRequest, "Invalid platform specified.")
			return
		}
		logger.ErrorContext(ctx, "failed to select embedder", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to select embedding platform")
		return
	}

	vectors, err := embedder.Embed(ctx, []string{req.Text}, req.Model, inputType)
	if err != nil || len(vectors) == 0 {
		logger.ErrorContext(ctx, "failed to embed text", "error", err)
		writeError(w, http.StatusBadGateway, "No embedding obtained from the service.")
		return
	}

	writeJSON(w, http.StatusOK, EmbedResponse{Text: req.Text, Vector: vectors[0]})
}
