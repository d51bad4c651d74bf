package pipeline

import (
	"fmt"

	"ragline/internal/blobstore"
	"ragline/internal/document"
	"ragline/internal/embedding"
	"ragline/internal/workflow"
)

// ProcessDocument runs the whole pipeline over a single document: upload,
// ingest, chunk, fan-out chunk uploads, embed, fan-out embedding uploads,
// bulk persist. Each progress line is appended to the instance output.
func ProcessDocument(ctx *workflow.Context) ([]string, error) {
	var req Request
	if err := ctx.Input(&req); err != nil {
		return nil, err
	}

	fileName := blobstore.SanitizeFileName(req.FileName)
	now := ctx.CurrentTime()
	jobID := fmt.Sprintf("%s%03d_%s", now.Format("20060102_150405"), now.Nanosecond()/1e6, fileName)
	logger := ctx.Logger().With("job_id", jobID)

	var outputs []string

	if len(req.Data) > 0 {
		var uploadResult string
		err := ctx.CallActivity(activityUploadBlob, uploadBlobInput{
			OrgID:    req.OrgID,
			JobID:    jobID,
			FileName: fileName,
			Data:     req.Data,
		}, &uploadResult)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, uploadResult)
	}

	var elements []document.Element
	err := ctx.CallActivity(activityIngestDocument, ingestInput{
		OrgID:    req.OrgID,
		JobID:    jobID,
		FileName: fileName,
		Strategy: req.IngestionStrategy,
		Data:     req.Data,
	}, &elements)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, fmt.Sprintf("Elements returned from ingestion: %d", len(elements)))

	sectionOutputs, err := processElements(ctx, req, jobID, 0, elements, "")
	if err != nil {
		return nil, err
	}
	logger.Info("document pipeline finished", "org_id", req.OrgID)
	return append(outputs, sectionOutputs...), nil
}

// SplitDocument handles PDFs too large for one ingestion pass: it partitions
// the document into page-range sections and runs the pipeline per section,
// sequentially, so one oversized request never floods the parser backend.
func SplitDocument(ctx *workflow.Context) ([]string, error) {
	var req Request
	if err := ctx.Input(&req); err != nil {
		return nil, err
	}

	jobID, err := ctx.NewUUID()
	if err != nil {
		return nil, err
	}
	fileName := blobstore.SanitizeFileName(req.FileName)

	var outputs []string

	if len(req.Data) > 0 {
		var uploadResult string
		err := ctx.CallActivity(activityUploadBlob, uploadBlobInput{
			OrgID:    req.OrgID,
			JobID:    jobID,
			FileName: fileName,
			Data:     req.Data,
		}, &uploadResult)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, uploadResult)
	}

	var sections [][]byte
	err = ctx.CallActivity(activityPreprocessPDF, preprocessInput{
		Data:            req.Data,
		PagesPerSection: req.PagesPerSection,
	}, &sections)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, fmt.Sprintf("PDF split into %d sections.", len(sections)))

	for i, sectionData := range sections {
		sectionIndex := i + 1
		prefix := fmt.Sprintf("Section %d: ", sectionIndex)

		var sectionKey string
		err := ctx.CallActivity(activityUploadSection, uploadSectionInput{
			OrgID:        req.OrgID,
			JobID:        jobID,
			SectionIndex: sectionIndex,
			FileName:     fileName,
			Data:         sectionData,
		}, &sectionKey)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, prefix+fmt.Sprintf("Uploaded pdf section blob at %s", sectionKey))

		var elements []document.Element
		err = ctx.CallActivity(activityIngestDocument, ingestInput{
			OrgID:        req.OrgID,
			JobID:        jobID,
			SectionIndex: sectionIndex,
			FileName:     fmt.Sprintf("Section-%d-%s", sectionIndex, fileName),
			Strategy:     req.IngestionStrategy,
			Data:         sectionData,
		}, &elements)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, prefix+fmt.Sprintf("Ingested %d elements.", len(elements)))

		sectionOutputs, err := processElements(ctx, req, jobID, sectionIndex, elements, prefix)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, sectionOutputs...)
	}
	return outputs, nil
}

// processElements runs the shared tail of the pipeline: chunk, upload chunks,
// embed, upload embeddings, bulk persist. sectionIndex 0 means a
// whole-document run; prefix decorates each output line for section runs.
func processElements(ctx *workflow.Context, req Request, jobID string, sectionIndex int, elements []document.Element, prefix string) ([]string, error) {
	var outputs []string

	var chunks []document.Chunk
	err := ctx.CallActivity(activityChunkElements, chunkInput{
		Elements: elements,
		Options:  req.ChunkingOptions,
	}, &chunks)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, prefix+fmt.Sprintf("Created %d chunks.", len(chunks)))

	chunkUploads := make([]any, len(chunks))
	for i, chunk := range chunks {
		chunkUploads[i] = uploadChunkInput{
			OrgID:        req.OrgID,
			JobID:        jobID,
			SectionIndex: sectionIndex,
			Index:        i + 1,
			Chunk:        chunk,
		}
	}
	if _, err := ctx.FanOut(activityUploadChunk, chunkUploads); err != nil {
		return nil, err
	}
	outputs = append(outputs, prefix+fmt.Sprintf("Uploaded %d chunks.", len(chunks)))

	var items []document.ChunkWithEmbedding
	err = ctx.CallActivity(activityEmbedChunks, embedInput{
		Chunks:    chunks,
		Platform:  req.EmbeddingPlatform,
		Model:     req.EmbeddingModel,
		InputType: embedding.InputTypeDocument,
	}, &items)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, prefix+fmt.Sprintf("Embedded %d chunks.", len(items)))

	for i := range items {
		items[i].FileName = req.FileName
	}

	embeddingUploads := make([]any, len(items))
	for i, item := range items {
		embeddingUploads[i] = uploadEmbeddingInput{
			OrgID:        req.OrgID,
			JobID:        jobID,
			SectionIndex: sectionIndex,
			Item:         item,
		}
	}
	if _, err := ctx.FanOut(activityUploadEmbedding, embeddingUploads); err != nil {
		return nil, err
	}
	outputs = append(outputs, prefix+fmt.Sprintf("Uploaded %d chunk embeddings.", len(items)))

	// Per-item embedding blobs are already durable at this point, so a bulk
	// persist failure is reported in the output instead of failing the run.
	var persistResult string
	err = ctx.CallActivity(activityPersistEmbeddings, persistInput{
		OrgID: req.OrgID,
		Items: items,
	}, &persistResult)
	if err != nil {
		ctx.Logger().Error("failed to save embeddings to database", "error", err, "job_id", jobID)
		outputs = append(outputs, prefix+"Error saving embeddings to database.")
	} else {
		outputs = append(outputs, prefix+persistResult)
	}
	return outputs, nil
}
