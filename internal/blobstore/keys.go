package blobstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Blob key layout:
//
//	{org}/documentprocessing/{job}/upload/{file}
//	{org}/documentprocessing/{job}/elements/{file}_{timestamp}.json
//	{org}/documentprocessing/{job}/chunks/{index}.json
//	{org}/documentprocessing/{job}/chunksWithEmbeddings/{id}.json
//
// Section runs insert "sections/{n}/" after the job id, so per-section
// artifacts never collide with each other or with whole-document runs. Every
// pipeline run owns a disjoint namespace keyed by org and job id.

// JobPrefix is the key prefix shared by every artifact of one pipeline run.
func JobPrefix(orgID, jobID string) string {
	return fmt.Sprintf("%s/documentprocessing/%s/", orgID, jobID)
}

func sectionPart(sectionIndex int) string {
	if sectionIndex > 0 {
		return "sections/" + strconv.Itoa(sectionIndex) + "/"
	}
	return ""
}

// UploadKey addresses the raw uploaded document.
func UploadKey(orgID, jobID, fileName string) string {
	return JobPrefix(orgID, jobID) + "upload/" + fileName
}

// SectionUploadKey addresses one partitioned section's raw bytes.
func SectionUploadKey(orgID, jobID string, sectionIndex int, fileName string) string {
	return JobPrefix(orgID, jobID) + sectionPart(sectionIndex) + "upload/" + fileName
}

// ElementsKey addresses the ingestion output for a run or section.
func ElementsKey(orgID, jobID string, sectionIndex int, fileName, timestamp string) string {
	return JobPrefix(orgID, jobID) + sectionPart(sectionIndex) + "elements/" + fileName + "_" + timestamp + ".json"
}

// ChunkKey addresses one chunk blob; indexes are 1-based.
func ChunkKey(orgID, jobID string, sectionIndex, index int) string {
	return JobPrefix(orgID, jobID) + sectionPart(sectionIndex) + "chunks/" + strconv.Itoa(index) + ".json"
}

// EmbeddingKey addresses one chunk-with-embedding blob by its assigned id.
func EmbeddingKey(orgID, jobID string, sectionIndex int, id string) string {
	return JobPrefix(orgID, jobID) + sectionPart(sectionIndex) + "chunksWithEmbeddings/" + id + ".json"
}

// SanitizeFileName strips path separators so user-supplied names cannot
// escape their job namespace.
func SanitizeFileName(fileName string) string {
	fileName = strings.ReplaceAll(fileName, "/", "_")
	return strings.ReplaceAll(fileName, "\\", "_")
}
