package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"ragline/internal/document"
)

// DefaultStrategy is the parsing-backend strategy hint applied when a request
// does not name one.
const DefaultStrategy = "fast"

// Ingester turns raw file bytes into an ordered element list.
type Ingester interface {
	Ingest(ctx context.Context, fileName string, data []byte, strategy string) ([]document.Element, error)
}

// Service routes ingestion to the remote parsing backend, except for markdown
// files, which are parsed locally so the service stays usable without the
// backend.
type Service struct {
	remote   Ingester
	markdown *MarkdownParser
}

// NewService creates an ingestion service backed by the given remote client.
func NewService(remote Ingester) *Service {
	return &Service{
		remote:   remote,
		markdown: NewMarkdownParser(),
	}
}

// Ingest parses data into elements, choosing the parser by file extension.
func (s *Service) Ingest(ctx context.Context, fileName string, data []byte, strategy string) ([]document.Element, error) {
	if strings.EqualFold(filepath.Ext(fileName), ".md") {
		return s.markdown.Parse(data, fileName)
	}
	return s.remote.Ingest(ctx, fileName, data, strategy)
}
