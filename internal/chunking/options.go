package chunking

import (
	"errors"
	"fmt"
	"strings"

	"ragline/internal/document"
)

// ErrUnknownStrategy is returned when a request names a chunking strategy the
// engine does not implement. It is a contract violation, not retryable.
var ErrUnknownStrategy = errors.New("unknown chunking strategy")

// DefaultStrategy is applied when a request carries no chunking options.
const DefaultStrategy = "parentchild"

const (
	defaultMaxChunkSize = 1000
	defaultOverlap      = 100
	defaultFixedSize    = 1000
)

// Options selects a chunking strategy by name and carries the per-strategy
// parameters. The zero value selects the default strategy with defaults.
type Options struct {
	Strategy string `json:"strategy"`

	// MaxPagesWithoutTitle bounds the page span of a title-based chunk;
	// zero disables the page-span flush.
	MaxPagesWithoutTitle int `json:"maxPagesWithoutTitle,omitempty"`

	// MaxChunkSize is the window size for the sliding-window and recursive
	// strategies.
	MaxChunkSize int `json:"maxChunkSize,omitempty"`

	// Overlap is the sliding-window overlap; it must stay below MaxChunkSize.
	Overlap int `json:"overlap,omitempty"`

	// FixedSize is the segment length for fixed-size splitting.
	FixedSize int `json:"fixedSize,omitempty"`

	// Delimiters overrides the natural break characters for recursive
	// splitting.
	Delimiters string `json:"delimiters,omitempty"`
}

// Apply runs the strategy named in opts over the elements. The text
// re-splitting strategies first combine all elements into a single chunk and
// then split it. An empty strategy name selects parent-child grouping; an
// unrecognized one fails with ErrUnknownStrategy.
func Apply(elements []document.Element, opts Options) ([]document.Chunk, error) {
	strategy := strings.ToLower(strings.TrimSpace(opts.Strategy))
	if strategy == "" {
		strategy = DefaultStrategy
	}

	switch strategy {
	case "elementbased":
		return ElementBased(elements), nil
	case "parentchild":
		return ParentChild(elements), nil
	case "pagelevel":
		return PageLevel(elements), nil
	case "semanticstructural":
		return SemanticStructural(elements), nil
	case "contentspecific":
		return ContentSpecific(elements), nil
	case "titlebased":
		return ByTitle(elements, opts.MaxPagesWithoutTitle), nil
	case "slidingwindow":
		maxSize := orDefault(opts.MaxChunkSize, defaultMaxChunkSize)
		overlap := orDefault(opts.Overlap, defaultOverlap)
		if overlap < 0 {
			return nil, fmt.Errorf("sliding window overlap must not be negative, got %d", overlap)
		}
		if overlap >= maxSize {
			return nil, fmt.Errorf("sliding window overlap %d must be smaller than max chunk size %d", overlap, maxSize)
		}
		return SlidingWindow(CombineAll(elements), maxSize, overlap), nil
	case "fixedsize":
		size := orDefault(opts.FixedSize, defaultFixedSize)
		if size < 1 {
			return nil, fmt.Errorf("fixed size must be at least 1, got %d", size)
		}
		return FixedSize(CombineAll(elements), size), nil
	case "recursivecharacter":
		maxSize := orDefault(opts.MaxChunkSize, defaultMaxChunkSize)
		if maxSize < 1 {
			return nil, fmt.Errorf("max chunk size must be at least 1, got %d", maxSize)
		}
		return RecursiveCharacter(CombineAll(elements), maxSize, opts.Delimiters), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
