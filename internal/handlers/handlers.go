// Package handlers contains the HTTP handlers: the document ingress
// dispatcher, orchestration status polling, vector search and an embedding
// preview endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"ragline/internal/workflow"
)

// Scheduler is the slice of the workflow engine the handlers need.
type Scheduler interface {
	Schedule(ctx context.Context, orchestrator string, input any) (string, error)
	Get(ctx context.Context, id string) (*workflow.Instance, error)
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
