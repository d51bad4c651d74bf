package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"ragline/internal/chunking"
	"ragline/internal/contextutil"
	"ragline/internal/pdfutil"
	"ragline/internal/pipeline"
)

// maxUploadBytes bounds the in-memory portion of a multipart upload.
const maxUploadBytes = 64 << 20

// ProcessHandler is the ingress dispatcher: it accepts a multipart document
// upload and schedules the processing orchestration, routing oversized PDFs
// to the splitter variant.
type ProcessHandler struct {
	engine          Scheduler
	pagesPerSection int
}

// NewProcessHandler creates a new ProcessHandler. pagesPerSection is the PDF
// page threshold above which the splitter orchestration takes over.
func NewProcessHandler(engine Scheduler, pagesPerSection int) *ProcessHandler {
	if pagesPerSection < 1 {
		pagesPerSection = pdfutil.DefaultPagesPerSection
	}
	return &ProcessHandler{engine: engine, pagesPerSection: pagesPerSection}
}

// ProcessResponse is the instance handle returned for a scheduled run.
//
// swagger:model ProcessResponse
type ProcessResponse struct {
	InstanceID string `json:"instanceId"`
	StatusURL  string `json:"statusUrl"`
}

// ServeHTTP accepts a multipart form with a "file" part plus orgId,
// chunkingOptions (JSON), ingestionStrategy, embeddingPlatform and
// embeddingModel fields, and replies with the orchestration instance handle.
func (h *ProcessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	fileName, data, err := readFilePart(r)
	if err != nil {
		logger.WarnContext(ctx, "no file in request", "error", err)
		writeError(w, http.StatusBadRequest, "No file found in the request.")
		return
	}

	orgID := strings.TrimSpace(r.FormValue("orgId"))
	if orgID == "" {
		logger.WarnContext(ctx, "missing orgId")
		writeError(w, http.StatusBadRequest, "orgId is required")
		return
	}
	// The orgId is the leading segment of every blob key, so a separator in
	// it would let one organization write into another's namespace.
	if strings.ContainsAny(orgID, "/\\") {
		logger.WarnContext(ctx, "invalid orgId", "org_id", orgID)
		writeError(w, http.StatusBadRequest, "orgId must not contain path separators")
		return
	}

	var chunkingOptions chunking.Options
	if raw := strings.TrimSpace(r.FormValue("chunkingOptions")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &chunkingOptions); err != nil {
			logger.WarnContext(ctx, "invalid chunkingOptions", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid chunkingOptions JSON")
			return
		}
	}

	req := pipeline.Request{
		OrgID:             orgID,
		FileName:          fileName,
		Data:              data,
		ChunkingOptions:   chunkingOptions,
		IngestionStrategy: strings.TrimSpace(r.FormValue("ingestionStrategy")),
		EmbeddingPlatform: strings.TrimSpace(r.FormValue("embeddingPlatform")),
		EmbeddingModel:    strings.TrimSpace(r.FormValue("embeddingModel")),
	}

	orchestrator := pipeline.OrchestratorProcessDocument
	if strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		pageCount, err := pdfutil.PageCount(data)
		if err != nil {
			logger.WarnContext(ctx, "failed to read pdf", "error", err, "file_name", fileName)
			writeError(w, http.StatusBadRequest, "Failed to read PDF")
			return
		}
		if pageCount > h.pagesPerSection {
			orchestrator = pipeline.OrchestratorSplitDocument
			req.PagesPerSection = h.pagesPerSection
		}
		logger.InfoContext(ctx, "pdf received", "pages", pageCount, "orchestrator", orchestrator)
	}

	instanceID, err := h.engine.Schedule(ctx, orchestrator, req)
	if err != nil {
		logger.ErrorContext(ctx, "failed to schedule orchestration", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start document processing")
		return
	}

	logger.InfoContext(ctx, "started orchestration", "instance_id", instanceID, "orchestrator", orchestrator, "org_id", orgID)
	writeJSON(w, http.StatusAccepted, ProcessResponse{
		InstanceID: instanceID,
		StatusURL:  "/api/status/" + instanceID,
	})
}

// readFilePart returns the uploaded file's name and bytes. The part is
// usually named "file", but any file-bearing part is accepted.
func readFilePart(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		header, err = anyFilePart(r)
		if err != nil {
			return "", nil, err
		}
		file, err = header.Open()
		if err != nil {
			return "", nil, err
		}
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func anyFilePart(r *http.Request) (*multipart.FileHeader, error) {
	if r.MultipartForm != nil {
		for _, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				return headers[0], nil
			}
		}
	}
	return nil, http.ErrMissingFile
}
