package document

// Strategy identifies the chunking algorithm that produced a chunk.
type Strategy string

const (
	StrategyElementBased       Strategy = "ElementBased"
	StrategyParentChild        Strategy = "ParentChild"
	StrategyPageLevel          Strategy = "PageLevel"
	StrategySemanticStructural Strategy = "SemanticStructural"
	StrategyContentSpecific    Strategy = "ContentSpecific"
	StrategyTitleBased         Strategy = "TitleBased"
	StrategyCombined           Strategy = "Combined"
	StrategySlidingWindow      Strategy = "SlidingWindow"
	StrategyFixedSize          Strategy = "FixedSize"
	StrategyRecursiveCharacter Strategy = "RecursiveCharacter"
)

// ElementMetadata carries the positional and structural metadata the parsing
// backend attaches to each element.
type ElementMetadata struct {
	Filetype   string   `json:"filetype,omitempty"`
	Languages  []string `json:"languages,omitempty"`
	PageNumber int      `json:"page_number"`
	Filename   string   `json:"filename,omitempty"`
	ParentID   string   `json:"parent_id,omitempty"`
}

// Element is one structured fragment extracted from a source document.
// Elements are produced once per ingestion call and never mutated.
type Element struct {
	Type      string          `json:"type"`
	ElementID string          `json:"element_id"`
	Text      string          `json:"text"`
	Metadata  ElementMetadata `json:"metadata"`
}

// ChunkMetadata describes how a chunk was assembled.
type ChunkMetadata struct {
	FileName string `json:"fileName,omitempty"`

	// SourceElementIDs lists contributing element ids in first-seen order.
	SourceElementIDs []string `json:"sourceElementIds"`

	// PageNumbers lists the distinct pages covered, in first-seen order.
	PageNumbers []int `json:"pageNumbers"`

	// ChunkType is a free-text label describing the chunk's composition,
	// e.g. an element type, "Grouped: Title", "Page 3" or "NarrativeGroup".
	ChunkType string `json:"chunkType"`

	Strategy Strategy `json:"strategy"`
}

// Chunk is a retrieval unit produced by a chunking strategy. Chunks are
// immutable once returned from the chunking engine.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkWithEmbedding is the terminal form of a chunk: a freshly assigned id
// plus the embedding vector. It is persisted and not further transformed.
type ChunkWithEmbedding struct {
	ID               string   `json:"id"`
	Vector           []float32 `json:"vector"`
	Text             string   `json:"text"`
	FileName         string   `json:"fileName"`
	SourceElementIDs []string `json:"sourceElementIds"`
	PageNumbers      []int    `json:"pageNumbers"`
	ChunkType        string   `json:"chunkType"`
	Strategy         Strategy `json:"strategy"`
}

// FromChunk builds a ChunkWithEmbedding from a chunk, an assigned id and a
// vector. The file name is filled in later by the orchestrator.
func FromChunk(c Chunk, id string, vector []float32) ChunkWithEmbedding {
	return ChunkWithEmbedding{
		ID:               id,
		Vector:           vector,
		Text:             c.Text,
		SourceElementIDs: c.Metadata.SourceElementIDs,
		PageNumbers:      c.Metadata.PageNumbers,
		ChunkType:        c.Metadata.ChunkType,
		Strategy:         c.Metadata.Strategy,
	}
}
