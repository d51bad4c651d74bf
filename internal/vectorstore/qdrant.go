package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"ragline/internal/contextutil"
	"ragline/internal/document"
)

// QdrantStore implements VectorStore using Qdrant, with one collection per
// organization.
type QdrantStore struct {
	client *qdrant.Client

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantStore creates a Qdrant-backed store. urlStr is the HTTP URL
// ("http://host:6333"); the gRPC port is derived from it.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	host, port, err := parseHostPort(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:  client,
		ensured: make(map[string]bool),
	}, nil
}

// parseHostPort extracts the host and derives the gRPC port (HTTP port + 1)
// from an HTTP URL.
func parseHostPort(urlStr string) (string, int, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// collectionName maps an organization to its collection.
func collectionName(orgID string) string {
	return "org-" + orgID
}

// ensureCollection creates the organization's collection on first use, sized
// to the vectors being written.
func (s *QdrantStore) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}
	s.ensured[collection] = true
	return nil
}

// BulkUpsert writes the whole batch of embedded chunks for one organization
// in a single call.
func (s *QdrantStore) BulkUpsert(ctx context.Context, orgID string, items []document.ChunkWithEmbedding) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(items) == 0 {
		return nil
	}

	collection := collectionName(orgID)
	if err := s.ensureCollection(ctx, collection, len(items[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, item := range items {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(item.ID),
			Vectors: qdrant.NewVectors(item.Vector...),
			Payload: qdrant.NewValueMap(payloadFor(item)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(items), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(items))
	return nil
}

// payloadFor flattens a chunk's metadata into a Qdrant payload.
func payloadFor(item document.ChunkWithEmbedding) map[string]any {
	sourceIDs := make([]any, len(item.SourceElementIDs))
	for i, id := range item.SourceElementIDs {
		sourceIDs[i] = id
	}
	pages := make([]any, len(item.PageNumbers))
	for i, p := range item.PageNumbers {
		pages[i] = int64(p)
	}
	return map[string]any{
		"text":             item.Text,
		"fileName":         item.FileName,
		"chunkType":        item.ChunkType,
		"strategy":         string(item.Strategy),
		"sourceElementIds": sourceIDs,
		"pageNumbers":      pages,
	}
}

// Search runs a similarity query against the organization's collection.
func (s *QdrantStore) Search(ctx context.Context, orgID string, vector []float32, limit int) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	collection := collectionName(orgID)
	limit64 := uint64(limit)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scored))
	for _, point := range scored {
		result := SearchResult{Score: point.Score}
		if point.Id != nil {
			result.ID = point.Id.GetUuid()
		}
		fillFromPayload(&result, point.Payload)
		results = append(results, result)
	}

	logger.InfoContext(ctx, "search completed", "collection", collection, "results", len(results))
	return results, nil
}

func fillFromPayload(result *SearchResult, payload map[string]*qdrant.Value) {
	if payload == nil {
		return
	}
	if v, ok := payload["text"]; ok {
		result.Text = v.GetStringValue()
	}
	if v, ok := payload["fileName"]; ok {
		result.FileName = v.GetStringValue()
	}
	if v, ok := payload["chunkType"]; ok {
		result.ChunkType = v.GetStringValue()
	}
	if v, ok := payload["strategy"]; ok {
		result.Strategy = v.GetStringValue()
	}
	if v, ok := payload["sourceElementIds"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			result.SourceElementIDs = append(result.SourceElementIDs, item.GetStringValue())
		}
	}
	if v, ok := payload["pageNumbers"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			result.PageNumbers = append(result.PageNumbers, int(item.GetIntegerValue()))
		}
	}
}
