package vectorstore

import (
	"context"

	"ragline/internal/document"
)

// SearchResult is one similarity-search hit.
type SearchResult struct {
	ID               string   `json:"id"`
	Score            float32  `json:"score"`
	Text             string   `json:"text"`
	FileName         string   `json:"fileName"`
	ChunkType        string   `json:"chunkType"`
	Strategy         string   `json:"strategy"`
	SourceElementIDs []string `json:"sourceElementIds"`
	PageNumbers      []int    `json:"pageNumbers"`
}

// VectorStore persists embedded chunks per organization and searches them.
// BulkUpsert succeeds or fails as a whole; there is no per-item status.
type VectorStore interface {
	BulkUpsert(ctx context.Context, orgID string, items []document.ChunkWithEmbedding) error
	Search(ctx context.Context, orgID string, vector []float32, limit int) ([]SearchResult, error)
}
