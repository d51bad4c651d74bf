package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Input type hints accepted by the providers.
const (
	InputTypeDocument = "document"
	InputTypeQuery    = "query"
)

// ErrUnsupportedPlatform is returned when a request names an embedding
// platform no provider implements. It is a configuration error raised before
// any network call.
var ErrUnsupportedPlatform = errors.New("unsupported embedding platform")

// Embedder converts a batch of texts into vectors, one per text, in input
// order.
type Embedder interface {
	Embed(ctx context.Context, texts []string, model, inputType string) ([][]float32, error)
}

// Factory builds provider clients keyed by platform string.
type Factory struct {
	openAI *OpenAIClient
	voyage *VoyageClient
}

// NewFactory creates a factory holding one client per supported platform.
func NewFactory(openAI *OpenAIClient, voyage *VoyageClient) *Factory {
	return &Factory{openAI: openAI, voyage: voyage}
}

// ForPlatform selects the provider for a platform string. The platform set is
// closed; anything else fails with ErrUnsupportedPlatform.
func (f *Factory) ForPlatform(platform string) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "openai":
		return f.openAI, nil
	case "voyage":
		return f.voyage, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}
}
