package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultOpenAIBaseURL is the production endpoint for the OpenAI-shaped
// embeddings API.
const DefaultOpenAIBaseURL = "https://api.openai.com"

const defaultOpenAIModel = "text-embedding-3-large"

// OpenAIClient calls an OpenAI-shaped embeddings endpoint.
type OpenAIClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewOpenAIClient creates a client; an empty baseURL selects the production
// endpoint.
func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  http.DefaultClient,
	}
}

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

// Embed requests one vector per text in a single batched call. The OpenAI API
// takes no input-type hint, so inputType is ignored here.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string, model, _ string) ([][]float32, error) {
	if model == "" {
		model = defaultOpenAIModel
	}
	body, err := json.Marshal(openAIRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return doEmbedRequest(ctx, c.client, c.BaseURL+"/v1/embeddings", c.APIKey, body, len(texts))
}

// doEmbedRequest posts an embeddings payload and decodes the common
// {data:[{embedding:[...]}]} response shape, enforcing the
// one-vector-per-text contract.
func doEmbedRequest(ctx context.Context, client *http.Client, url, apiKey string, body []byte, wantCount int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(decoded.Data) != wantCount {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", wantCount, len(decoded.Data))
	}

	vectors := make([][]float32, len(decoded.Data))
	for i, data := range decoded.Data {
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
