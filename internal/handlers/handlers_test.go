package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"ragline/internal/document"
	"ragline/internal/embedding"
	"ragline/internal/pipeline"
	"ragline/internal/vectorstore"
	"ragline/internal/workflow"
)

type fakeScheduler struct {
	orchestrator string
	input        any
	instanceID   string
	scheduleErr  error
	instance     *workflow.Instance
	getErr       error
}

func (f *fakeScheduler) Schedule(ctx context.Context, orchestrator string, input any) (string, error) {
	f.orchestrator = orchestrator
	f.input = input
	if f.scheduleErr != nil {
		return "", f.scheduleErr
	}
	if f.instanceID == "" {
		f.instanceID = "instance-1"
	}
	return f.instanceID, nil
}

func (f *fakeScheduler) Get(ctx context.Context, id string) (*workflow.Instance, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.instance, nil
}

func multipartBody(t *testing.T, fileName string, fileData []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("failed to create file part: %v", err)
		}
		if _, err := part.Write(fileData); err != nil {
			t.Fatalf("failed to write file part: %v", err)
		}
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

// buildPDF assembles a minimal valid PDF with empty pages for routing tests.
func buildPDF(t *testing.T, pages int) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages),
	}
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)

	return buf.Bytes()
}

func TestProcessHandlerSchedulesDocument(t *testing.T) {
	scheduler := &fakeScheduler{}
	handler := NewProcessHandler(scheduler, 25)

	body, contentType := multipartBody(t, "report.txt", []byte("content"), map[string]string{
		"orgId":             "org1",
		"embeddingPlatform": "openai",
		"chunkingOptions":   `{"strategy":"pagelevel"}`,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/documentprocessor", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if scheduler.orchestrator != pipeline.OrchestratorProcessDocument {
		t.Errorf("orchestrator = %q", scheduler.orchestrator)
	}

	input, ok := scheduler.input.(pipeline.Request)
	if !ok {
		t.Fatalf("input type = %T", scheduler.input)
	}
	if input.OrgID != "org1" || input.FileName != "report.txt" || string(input.Data) != "content" {
		t.Errorf("unexpected request: %+v", input)
	}
	if input.ChunkingOptions.Strategy != "pagelevel" {
		t.Errorf("chunking strategy = %q", input.ChunkingOptions.Strategy)
	}

	var resp ProcessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.InstanceID != "instance-1" || resp.StatusURL != "/api/status/instance-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestProcessHandlerRoutesLargePDFToSplitter(t *testing.T) {
	scheduler := &fakeScheduler{}
	handler := NewProcessHandler(scheduler, 1)

	body, contentType := multipartBody(t, "big.pdf", buildPDF(t, 3), map[string]string{"orgId": "org1"})
	req := httptest.NewRequest(http.MethodPost, "/api/documentprocessor", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if scheduler.orchestrator != pipeline.OrchestratorSplitDocument {
		t.Errorf("orchestrator = %q", scheduler.orchestrator)
	}
	input := scheduler.input.(pipeline.Request)
	if input.PagesPerSection != 1 {
		t.Errorf("pagesPerSection = %d", input.PagesPerSection)
	}
}

func TestProcessHandlerSmallPDFStaysOnPlainOrchestrator(t *testing.T) {
	scheduler := &fakeScheduler{}
	handler := NewProcessHandler(scheduler, 25)

	body, contentType := multipartBody(t, "small.pdf", buildPDF(t, 2), map[string]string{"orgId": "org1"})
	req := httptest.NewRequest(http.MethodPost, "/api/documentprocessor", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if scheduler.orchestrator != pipeline.OrchestratorProcessDocument {
		t.Errorf("orchestrator = %q", scheduler.orchestrator)
	}
}

func TestProcessHandlerValidation(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		fields   map[string]string
		want     int
	}{
		{name: "missing file", fileName: "", fields: map[string]string{"orgId": "org1"}, want: http.StatusBadRequest},
		{name: "missing orgId", fileName: "a.txt", fields: map[string]string{}, want: http.StatusBadRequest},
		{name: "orgId with slash", fileName: "a.txt", fields: map[string]string{"orgId": "org1/wf"}, want: http.StatusBadRequest},
		{name: "orgId with backslash", fileName: "a.txt", fields: map[string]string{"orgId": `org1\wf`}, want: http.StatusBadRequest},
		{name: "invalid chunkingOptions", fileName: "a.txt", fields: map[string]string{"orgId": "org1", "chunkingOptions": "{"}, want: http.StatusBadRequest},
		{name: "invalid pdf", fileName: "a.pdf", fields: map[string]string{"orgId": "org1"}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := &fakeScheduler{}
			handler := NewProcessHandler(scheduler, 25)

			body, contentType := multipartBody(t, tt.fileName, []byte("data"), tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/documentprocessor", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
			if scheduler.orchestrator != "" {
				t.Errorf("orchestration scheduled despite invalid request")
			}
		})
	}
}

func statusRequest(handler http.Handler, instanceID string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/api/status/{instanceID}", handler)
	req := httptest.NewRequest(http.MethodGet, "/api/status/"+instanceID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStatusHandler(t *testing.T) {
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	scheduler := &fakeScheduler{instance: &workflow.Instance{
		ID:           "instance-1",
		Orchestrator: pipeline.OrchestratorProcessDocument,
		Status:       workflow.StatusCompleted,
		Output:       []string{"Created 2 chunks."},
		StartedAt:    started,
		UpdatedAt:    started.Add(time.Minute),
	}}

	rec := statusRequest(NewStatusHandler(scheduler), "instance-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.InstanceID != "instance-1" || resp.Status != "completed" || len(resp.Output) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestStatusHandlerNotFound(t *testing.T) {
	scheduler := &fakeScheduler{getErr: workflow.ErrInstanceNotFound}

	rec := statusRequest(NewStatusHandler(scheduler), "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

type searchStore struct {
	orgID   string
	limit   int
	results []vectorstore.SearchResult
	err     error
}

func (f *searchStore) BulkUpsert(ctx context.Context, orgID string, items []document.ChunkWithEmbedding) error {
	return nil
}

func (f *searchStore) Search(ctx context.Context, orgID string, vector []float32, limit int) ([]vectorstore.SearchResult, error) {
	f.orgID = orgID
	f.limit = limit
	return f.results, f.err
}

func newEmbeddingFactory(t *testing.T) *embedding.Factory {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		type item struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := range req.Input {
			resp.Data = append(resp.Data, item{Embedding: []float64{0.5, 0.5}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return embedding.NewFactory(
		embedding.NewOpenAIClient(server.URL, "key"),
		embedding.NewVoyageClient(server.URL, "key"),
	)
}

func TestSearchHandler(t *testing.T) {
	store := &searchStore{results: []vectorstore.SearchResult{{ID: "r1", Score: 0.97, Text: "match"}}}
	handler := NewSearchHandler(newEmbeddingFactory(t), store)

	body := `{"orgId":"org1","text":"what is chunking","platform":"openai","limit":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/vectorsearch", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.orgID != "org1" || store.limit != 3 {
		t.Errorf("search called with orgID=%q limit=%d", store.orgID, store.limit)
	}

	var results []vectorstore.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(results) != 1 || results[0].ID != "r1" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestSearchHandlerValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: "{", want: http.StatusBadRequest},
		{name: "missing orgId", body: `{"text":"q","platform":"openai"}`, want: http.StatusBadRequest},
		{name: "missing text", body: `{"orgId":"org1","platform":"openai"}`, want: http.StatusBadRequest},
		{name: "missing platform", body: `{"orgId":"org1","text":"q"}`, want: http.StatusBadRequest},
		{name: "unknown platform", body: `{"orgId":"org1","text":"q","platform":"azure"}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSearchHandler(newEmbeddingFactory(t), &searchStore{})
			req := httptest.NewRequest(http.MethodPost, "/api/vectorsearch", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestEmbedHandler(t *testing.T) {
	handler := NewEmbedHandler(newEmbeddingFactory(t))

	req := httptest.NewRequest(http.MethodPost, "/api/embed", strings.NewReader(`{"text":"hello"}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp EmbedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Text != "hello" || len(resp.Vector) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestEmbedHandlerRequiresText(t *testing.T) {
	handler := NewEmbedHandler(newEmbeddingFactory(t))

	req := httptest.NewRequest(http.MethodPost, "/api/embed", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
}
