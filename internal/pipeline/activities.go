// Package pipeline contains the document processing orchestrations and the
// activities they schedule: upload, ingest, chunk, embed, persist. The
// orchestrators are deterministic; every side effect lives in an activity so
// a restarted run replays instead of repeating work.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ragline/internal/blobstore"
	"ragline/internal/chunking"
	"ragline/internal/contextutil"
	"ragline/internal/document"
	"ragline/internal/embedding"
	"ragline/internal/ingest"
	"ragline/internal/pdfutil"
	"ragline/internal/vectorstore"
	"ragline/internal/workflow"
)

// Orchestrator names used when scheduling runs.
const (
	OrchestratorProcessDocument = "process-document"
	OrchestratorSplitDocument   = "process-document-pdf-splitter"
)

const (
	activityUploadBlob        = "upload-blob"
	activityUploadSection     = "upload-pdf-section"
	activityPreprocessPDF     = "preprocess-pdf"
	activityIngestDocument    = "ingest-document"
	activityChunkElements     = "chunk-elements"
	activityUploadChunk       = "upload-chunk"
	activityEmbedChunks       = "embed-chunks"
	activityUploadEmbedding   = "upload-chunk-embedding"
	activityPersistEmbeddings = "save-embeddings-to-db"
)

// Request is the input both orchestrators receive from the ingress handler.
type Request struct {
	OrgID             string           `json:"orgId"`
	FileName          string           `json:"fileName"`
	Data              []byte           `json:"data"`
	ChunkingOptions   chunking.Options `json:"chunkingOptions"`
	IngestionStrategy string           `json:"ingestionStrategy,omitempty"`
	EmbeddingPlatform string           `json:"embeddingPlatform"`
	EmbeddingModel    string           `json:"embeddingModel,omitempty"`
	PagesPerSection   int              `json:"pagesPerSection,omitempty"`
}

// Activities bundles the infrastructure the pipeline's activities touch.
type Activities struct {
	Blobs     blobstore.Store
	Ingester  ingest.Ingester
	Embedders *embedding.Factory
	Vectors   vectorstore.VectorStore
}

// Register wires every activity and orchestrator into the engine.
func (a *Activities) Register(e *workflow.Engine) {
	e.RegisterActivity(activityUploadBlob, workflow.Activity(a.uploadBlob))
	e.RegisterActivity(activityUploadSection, workflow.Activity(a.uploadSection))
	e.RegisterActivity(activityPreprocessPDF, workflow.Activity(a.preprocessPDF))
	e.RegisterActivity(activityIngestDocument, workflow.Activity(a.ingestDocument))
	e.RegisterActivity(activityChunkElements, workflow.Activity(a.chunkElements))
	e.RegisterActivity(activityUploadChunk, workflow.Activity(a.uploadChunk))
	e.RegisterActivity(activityEmbedChunks, workflow.Activity(a.embedChunks))
	e.RegisterActivity(activityUploadEmbedding, workflow.Activity(a.uploadEmbedding))
	e.RegisterActivity(activityPersistEmbeddings, workflow.Activity(a.persistEmbeddings))

	e.RegisterOrchestrator(OrchestratorProcessDocument, ProcessDocument)
	e.RegisterOrchestrator(OrchestratorSplitDocument, SplitDocument)
}

type uploadBlobInput struct {
	OrgID    string `json:"orgId"`
	JobID    string `json:"jobId"`
	FileName string `json:"fileName"`
	Data     []byte `json:"data"`
}

func (a *Activities) uploadBlob(ctx context.Context, input uploadBlobInput) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "uploading blob", "org_id", input.OrgID, "file_name", input.FileName)

	key := blobstore.UploadKey(input.OrgID, input.JobID, input.FileName)
	if err := a.Blobs.Put(ctx, key, input.Data); err != nil {
		return "", err
	}
	return fmt.Sprintf("Uploaded blob '%s' successfully.", key), nil
}

type uploadSectionInput struct {
	OrgID        string `json:"orgId"`
	JobID        string `json:"jobId"`
	SectionIndex int    `json:"sectionIndex"`
	FileName     string `json:"fileName"`
	Data         []byte `json:"data"`
}

func (a *Activities) uploadSection(ctx context.Context, input uploadSectionInput) (string, error) {
	key := blobstore.SectionUploadKey(input.OrgID, input.JobID, input.SectionIndex, input.FileName)
	if err := a.Blobs.Put(ctx, key, input.Data); err != nil {
		return "", err
	}
	return key, nil
}

type preprocessInput struct {
	Data            []byte `json:"data"`
	PagesPerSection int    `json:"pagesPerSection"`
}

func (a *Activities) preprocessPDF(ctx context.Context, input preprocessInput) ([][]byte, error) {
	sections, err := pdfutil.SplitIntoSections(input.Data, input.PagesPerSection)
	if err != nil {
		return nil, err
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "partitioned pdf", "sections", len(sections))
	return sections, nil
}

type ingestInput struct {
	OrgID        string `json:"orgId"`
	JobID        string `json:"jobId"`
	SectionIndex int    `json:"sectionIndex,omitempty"`
	FileName     string `json:"fileName"`
	Strategy     string `json:"strategy,omitempty"`
	Data         []byte `json:"data"`
}

// ingestDocument parses the document into elements and archives the raw
// parser output next to the other job artifacts.
func (a *Activities) ingestDocument(ctx context.Context, input ingestInput) ([]document.Element, error) {
	logger := contextutil.LoggerFromContext(ctx)

	elements, err := a.Ingester.Ingest(ctx, input.FileName, input.Data, input.Strategy)
	if err != nil {
		return nil, err
	}

	encoded, err := json.MarshalIndent(elements, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal elements: %w", err)
	}
	timestamp := time.Now().UTC().Format("20060102150405")
	key := blobstore.ElementsKey(input.OrgID, input.JobID, input.SectionIndex, input.FileName, timestamp)
	if err := a.Blobs.Put(ctx, key, encoded); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "saved ingestion output", "key", key, "elements", len(elements))
	return elements, nil
}

type chunkInput struct {
	Elements []document.Element `json:"elements"`
	Options  chunking.Options   `json:"options"`
}

func (a *Activities) chunkElements(ctx context.Context, input chunkInput) ([]document.Chunk, error) {
	return chunking.Apply(input.Elements, input.Options)
}

type uploadChunkInput struct {
	OrgID        string         `json:"orgId"`
	JobID        string         `json:"jobId"`
	SectionIndex int            `json:"sectionIndex,omitempty"`
	Index        int            `json:"index"`
	Chunk        document.Chunk `json:"chunk"`
}

func (a *Activities) uploadChunk(ctx context.Context, input uploadChunkInput) (string, error) {
	encoded, err := json.Marshal(input.Chunk)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chunk: %w", err)
	}
	key := blobstore.ChunkKey(input.OrgID, input.JobID, input.SectionIndex, input.Index)
	if err := a.Blobs.Put(ctx, key, encoded); err != nil {
		return "", err
	}
	return key, nil
}

type embedInput struct {
	Chunks    []document.Chunk `json:"chunks"`
	Platform  string           `json:"platform"`
	Model     string           `json:"model,omitempty"`
	InputType string           `json:"inputType"`
}

// embedChunks turns chunk texts into vectors and assigns each result a fresh
// id. A vector count that differs from the chunk count means the provider
// response cannot be trusted, so the whole batch is rejected.
func (a *Activities) embedChunks(ctx context.Context, input embedInput) ([]document.ChunkWithEmbedding, error) {
	if len(input.Chunks) == 0 {
		return []document.ChunkWithEmbedding{}, nil
	}

	embedder, err := a.Embedders.ForPlatform(input.Platform)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(input.Chunks))
	for i, chunk := range input.Chunks {
		texts[i] = chunk.Text
	}

	vectors, err := embedder.Embed(ctx, texts, input.Model, input.InputType)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(input.Chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(input.Chunks))
	}

	items := make([]document.ChunkWithEmbedding, len(input.Chunks))
	for i, chunk := range input.Chunks {
		items[i] = document.FromChunk(chunk, uuid.New().String(), vectors[i])
	}
	return items, nil
}

type uploadEmbeddingInput struct {
	OrgID        string                      `json:"orgId"`
	JobID        string                      `json:"jobId"`
	SectionIndex int                         `json:"sectionIndex,omitempty"`
	Item         document.ChunkWithEmbedding `json:"item"`
}

func (a *Activities) uploadEmbedding(ctx context.Context, input uploadEmbeddingInput) (string, error) {
	encoded, err := json.Marshal(input.Item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chunk embedding: %w", err)
	}
	key := blobstore.EmbeddingKey(input.OrgID, input.JobID, input.SectionIndex, input.Item.ID)
	if err := a.Blobs.Put(ctx, key, encoded); err != nil {
		return "", err
	}
	return key, nil
}

type persistInput struct {
	OrgID string                        `json:"orgId"`
	Items []document.ChunkWithEmbedding `json:"items"`
}

func (a *Activities) persistEmbeddings(ctx context.Context, input persistInput) (string, error) {
	if len(input.Items) == 0 {
		return "No chunks to upload.", nil
	}
	if err := a.Vectors.BulkUpsert(ctx, input.OrgID, input.Items); err != nil {
		return "", err
	}
	return fmt.Sprintf("Uploaded %d bulk chunk embeddings.", len(input.Items)), nil
}
