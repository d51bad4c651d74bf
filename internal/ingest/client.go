package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"ragline/internal/document"
)

// Client calls an unstructured-style parsing API: a multipart POST with the
// file bytes and a strategy hint, answered with a JSON element list.
type Client struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewClient creates a parsing-backend client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  http.DefaultClient,
	}
}

// Ingest posts the document to the parsing backend and decodes the returned
// elements. Any non-success response is fatal here; retrying is the caller's
// concern.
func (c *Client) Ingest(ctx context.Context, fileName string, data []byte, strategy string) ([]document.Element, error) {
	if strategy == "" {
		strategy = DefaultStrategy
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, fileName))
	header.Set("Content-Type", MediaType(fileName))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart section: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file bytes: %w", err)
	}
	if err := writer.WriteField("strategy", strategy); err != nil {
		return nil, fmt.Errorf("failed to write strategy field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("unstructured-api-key", c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call parsing backend: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("parsing backend returned status %d: %s", resp.StatusCode, string(raw))
	}

	var elements []document.Element
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("failed to decode elements: %w", err)
	}
	return elements, nil
}

// MediaType infers the content type sent to the parsing backend from the file
// extension.
func MediaType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".csv":
		return "text/csv"
	case ".html":
		return "text/html"
	case ".md":
		return "text/markdown"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	default:
		return "application/octet-stream"
	}
}
