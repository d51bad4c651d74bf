package chunking

import (
	"strconv"
	"strings"

	"ragline/internal/document"
)

// ElementBased produces one chunk per element, preserving input order. The
// element's type becomes the chunk type.
func ElementBased(elements []document.Element) []document.Chunk {
	chunks := make([]document.Chunk, 0, len(elements))
	for _, el := range elements {
		chunks = append(chunks, document.Chunk{
			Text: el.Text,
			Metadata: document.ChunkMetadata{
				SourceElementIDs: []string{el.ElementID},
				PageNumbers:      []int{el.Metadata.PageNumber},
				ChunkType:        el.Type,
				Strategy:         document.StrategyElementBased,
			},
		})
	}
	return chunks
}

// ParentChild groups top-level elements with the elements that name them as
// parent. One chunk is emitted per element with an empty parent_id; elements
// carrying a parent_id only ever appear as children.
func ParentChild(elements []document.Element) []document.Chunk {
	childrenByParent := make(map[string][]document.Element)
	for _, el := range elements {
		if el.Metadata.ParentID != "" {
			childrenByParent[el.Metadata.ParentID] = append(childrenByParent[el.Metadata.ParentID], el)
		}
	}

	var chunks []document.Chunk
	for _, el := range elements {
		if el.Metadata.ParentID != "" {
			continue
		}
		text := el.Text
		sourceIDs := []string{el.ElementID}
		pages := appendPage(nil, el.Metadata.PageNumber)
		for _, child := range childrenByParent[el.ElementID] {
			text += "\n" + child.Text
			sourceIDs = append(sourceIDs, child.ElementID)
			pages = appendPage(pages, child.Metadata.PageNumber)
		}
		chunks = append(chunks, document.Chunk{
			Text: text,
			Metadata: document.ChunkMetadata{
				SourceElementIDs: sourceIDs,
				PageNumbers:      pages,
				ChunkType:        "Grouped: " + el.Type,
				Strategy:         document.StrategyParentChild,
			},
		})
	}
	return chunks
}

// PageLevel groups elements by page number. Grouping is stable: distinct page
// values appear in first-seen order, and member texts are joined with newline
// in input order.
func PageLevel(elements []document.Element) []document.Chunk {
	var pageOrder []int
	byPage := make(map[int][]document.Element)
	for _, el := range elements {
		page := el.Metadata.PageNumber
		if _, seen := byPage[page]; !seen {
			pageOrder = append(pageOrder, page)
		}
		byPage[page] = append(byPage[page], el)
	}

	chunks := make([]document.Chunk, 0, len(pageOrder))
	for _, page := range pageOrder {
		group := byPage[page]
		texts := make([]string, len(group))
		sourceIDs := make([]string, len(group))
		for i, el := range group {
			texts[i] = el.Text
			sourceIDs[i] = el.ElementID
		}
		chunks = append(chunks, document.Chunk{
			Text: strings.Join(texts, "\n"),
			Metadata: document.ChunkMetadata{
				SourceElementIDs: sourceIDs,
				PageNumbers:      []int{page},
				ChunkType:        "Page " + strconv.Itoa(page),
				Strategy:         document.StrategyPageLevel,
			},
		})
	}
	return chunks
}

// SemanticStructural buffers consecutive NarrativeText elements and flushes
// them as one NarrativeGroup chunk whenever any other element type appears;
// the interrupting element becomes its own chunk.
func SemanticStructural(elements []document.Element) []document.Chunk {
	return groupByTypes(elements, document.StrategySemanticStructural, "NarrativeText")
}

// ContentSpecific is the same scan as SemanticStructural but merges both
// NarrativeText and Title elements into the narrative buffer.
func ContentSpecific(elements []document.Element) []document.Chunk {
	return groupByTypes(elements, document.StrategyContentSpecific, "NarrativeText", "Title")
}

func groupByTypes(elements []document.Element, strategy document.Strategy, bufferedTypes ...string) []document.Chunk {
	buffered := make(map[string]bool, len(bufferedTypes))
	for _, t := range bufferedTypes {
		buffered[t] = true
	}

	var chunks []document.Chunk
	var buffer []document.Element

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunks = append(chunks, chunkFromElements(buffer, "NarrativeGroup", strategy))
		buffer = buffer[:0]
	}

	for _, el := range elements {
		if buffered[el.Type] {
			buffer = append(buffer, el)
			continue
		}
		flush()
		chunks = append(chunks, document.Chunk{
			Text: el.Text,
			Metadata: document.ChunkMetadata{
				SourceElementIDs: []string{el.ElementID},
				PageNumbers:      []int{el.Metadata.PageNumber},
				ChunkType:        el.Type,
				Strategy:         strategy,
			},
		})
	}
	flush()
	return chunks
}

// ByTitle starts a new chunk at every Title element. Non-title elements
// accumulate into the open chunk, opening one if needed. When
// maxPagesWithoutTitle is positive an open chunk is also flushed once the
// current element's page is that many pages past the chunk's start page; zero
// disables the page-span flush.
func ByTitle(elements []document.Element, maxPagesWithoutTitle int) []document.Chunk {
	var chunks []document.Chunk
	var current []document.Element
	startPage := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, chunkFromElements(current, string(document.StrategyTitleBased), document.StrategyTitleBased))
		current = current[:0]
	}

	for _, el := range elements {
		switch {
		case el.Type == "Title":
			flush()
			current = append(current, el)
			startPage = el.Metadata.PageNumber
		case len(current) == 0:
			current = append(current, el)
			startPage = el.Metadata.PageNumber
		case maxPagesWithoutTitle > 0 && el.Metadata.PageNumber-startPage >= maxPagesWithoutTitle:
			flush()
			current = append(current, el)
			startPage = el.Metadata.PageNumber
		default:
			current = append(current, el)
		}
	}
	flush()
	return chunks
}

// CombineAll concatenates every element into a single chunk covering the whole
// input. The result feeds the text re-splitting strategies.
func CombineAll(elements []document.Element) document.Chunk {
	texts := make([]string, len(elements))
	sourceIDs := make([]string, len(elements))
	var pages []int
	for i, el := range elements {
		texts[i] = el.Text
		sourceIDs[i] = el.ElementID
		pages = appendPage(pages, el.Metadata.PageNumber)
	}
	return document.Chunk{
		Text: strings.Join(texts, "\n"),
		Metadata: document.ChunkMetadata{
			SourceElementIDs: sourceIDs,
			PageNumbers:      pages,
			ChunkType:        "Combined",
			Strategy:         document.StrategyCombined,
		},
	}
}

// SlidingWindow re-splits a chunk into overlapping windows of at most maxSize
// characters, advancing maxSize-overlap per window. A chunk that already fits
// is returned unchanged. overlap must be smaller than maxSize so every step
// makes progress.
func SlidingWindow(chunk document.Chunk, maxSize, overlap int) []document.Chunk {
	if len(chunk.Text) <= maxSize {
		return []document.Chunk{chunk}
	}

	var chunks []document.Chunk
	for start := 0; start < len(chunk.Text); start += maxSize - overlap {
		end := start + maxSize
		if end > len(chunk.Text) {
			end = len(chunk.Text)
		}
		chunks = append(chunks, subChunk(chunk, chunk.Text[start:end], " (Sliding)", document.StrategySlidingWindow))
	}
	return chunks
}

// FixedSize re-splits a chunk into consecutive non-overlapping segments of
// the given size; the last segment may be shorter. Empty text yields no
// chunks.
func FixedSize(chunk document.Chunk, size int) []document.Chunk {
	var chunks []document.Chunk
	for start := 0; start < len(chunk.Text); start += size {
		end := start + size
		if end > len(chunk.Text) {
			end = len(chunk.Text)
		}
		chunks = append(chunks, subChunk(chunk, chunk.Text[start:end], " (FixedSize)", document.StrategyFixedSize))
	}
	return chunks
}

// DefaultDelimiters are the break characters RecursiveCharacter considers
// natural boundaries when no explicit set is given.
const DefaultDelimiters = " \n\r.,;"

// RecursiveCharacter splits a chunk's text at natural delimiters. Each window
// of maxSize characters breaks one character past the last delimiter found in
// it; a window with no delimiter breaks hard at maxSize. The delimiter stays
// with the preceding piece, so concatenating the results reproduces the
// original text exactly.
func RecursiveCharacter(chunk document.Chunk, maxSize int, delimiters string) []document.Chunk {
	if delimiters == "" {
		delimiters = DefaultDelimiters
	}

	var chunks []document.Chunk
	text := chunk.Text
	for offset := 0; offset < len(text); {
		remaining := len(text) - offset
		if remaining <= maxSize {
			chunks = append(chunks, subChunk(chunk, text[offset:], " (Recursive)", document.StrategyRecursiveCharacter))
			break
		}

		window := text[offset : offset+maxSize]
		breakAt := strings.LastIndexAny(window, delimiters)
		if breakAt == -1 {
			breakAt = maxSize
		} else {
			breakAt++
		}
		chunks = append(chunks, subChunk(chunk, text[offset:offset+breakAt], " (Recursive)", document.StrategyRecursiveCharacter))
		offset += breakAt
	}
	return chunks
}

// subChunk derives a re-split chunk. Source element ids and page numbers are
// inherited from the parent since the piece is a sub-span of the same content.
func subChunk(parent document.Chunk, text, suffix string, strategy document.Strategy) document.Chunk {
	return document.Chunk{
		Text: text,
		Metadata: document.ChunkMetadata{
			SourceElementIDs: parent.Metadata.SourceElementIDs,
			PageNumbers:      parent.Metadata.PageNumbers,
			ChunkType:        parent.Metadata.ChunkType + suffix,
			Strategy:         strategy,
		},
	}
}

func chunkFromElements(elements []document.Element, chunkType string, strategy document.Strategy) document.Chunk {
	texts := make([]string, len(elements))
	sourceIDs := make([]string, len(elements))
	var pages []int
	for i, el := range elements {
		texts[i] = el.Text
		sourceIDs[i] = el.ElementID
		pages = appendPage(pages, el.Metadata.PageNumber)
	}
	return document.Chunk{
		Text: strings.Join(texts, "\n"),
		Metadata: document.ChunkMetadata{
			SourceElementIDs: sourceIDs,
			PageNumbers:      pages,
			ChunkType:        chunkType,
			Strategy:         strategy,
		},
	}
}

// appendPage records a page number unless it was already seen, keeping the
// distinct pages in first-seen order.
func appendPage(pages []int, page int) []int {
	for _, p := range pages {
		if p == page {
			return pages
		}
	}
	return append(pages, page)
}
