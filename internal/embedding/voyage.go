package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultVoyageBaseURL is the production endpoint for the Voyage embeddings
// API.
const DefaultVoyageBaseURL = "https://api.voyageai.com"

const defaultVoyageModel = "voyage-3-large"

// VoyageClient calls the Voyage embeddings endpoint, which takes an explicit
// input-type hint alongside the texts.
type VoyageClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewVoyageClient creates a client; an empty baseURL selects the production
// endpoint.
func NewVoyageClient(baseURL, apiKey string) *VoyageClient {
	if baseURL == "" {
		baseURL = DefaultVoyageBaseURL
	}
	return &VoyageClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  http.DefaultClient,
	}
}

type voyageRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	InputType  string   `json:"input_type,omitempty"`
	Truncation bool     `json:"truncation"`
}

// Embed requests one vector per text in a single batched call.
func (c *VoyageClient) Embed(ctx context.Context, texts []string, model, inputType string) ([][]float32, error) {
	if model == "" {
		model = defaultVoyageModel
	}
	body, err := json.Marshal(voyageRequest{
		Input:      texts,
		Model:      model,
		InputType:  inputType,
		Truncation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return doEmbedRequest(ctx, c.client, c.BaseURL+"/v1/embeddings", c.APIKey, body, len(texts))
}
