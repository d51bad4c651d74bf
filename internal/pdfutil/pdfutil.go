// Package pdfutil wraps the pdfcpu primitives the splitter pipeline needs:
// counting pages and carving a document into fixed-size page ranges.
package pdfutil

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultPagesPerSection bounds how many pages a single ingestion pass
// handles before a document is split.
const DefaultPagesPerSection = 25

var configOnce sync.Once

func configuration() *model.Configuration {
	// Avoid touching the user config dir; we only ever need defaults.
	configOnce.Do(api.DisableConfigDir)
	return model.NewDefaultConfiguration()
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(data), configuration())
	if err != nil {
		return 0, fmt.Errorf("failed to count pdf pages: %w", err)
	}
	return count, nil
}

// SplitIntoSections partitions a PDF into consecutive page ranges of at most
// pagesPerSection pages each, returning one standalone PDF per range. A
// document at or under the limit comes back as a single section.
func SplitIntoSections(data []byte, pagesPerSection int) ([][]byte, error) {
	if pagesPerSection < 1 {
		pagesPerSection = DefaultPagesPerSection
	}

	total, err := PageCount(data)
	if err != nil {
		return nil, err
	}

	var sections [][]byte
	for start := 1; start <= total; start += pagesPerSection {
		end := start + pagesPerSection - 1
		if end > total {
			end = total
		}

		var buf bytes.Buffer
		selection := []string{fmt.Sprintf("%d-%d", start, end)}
		if err := api.Trim(bytes.NewReader(data), &buf, selection, configuration()); err != nil {
			return nil, fmt.Errorf("failed to extract pages %d-%d: %w", start, end, err)
		}
		sections = append(sections, buf.Bytes())
	}
	return sections, nil
}
