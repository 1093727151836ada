package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/listx/internal/shared"
)

// ListExportResult is the outcome of exporting one list during a bulk export.
type ListExportResult struct {
	ListID   int64
	ListName string
	Success  bool
	Files    []string
	Error    error
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	TotalLists        int
	SuccessfulExports int
	FailedExports     int
	Results           []ListExportResult
	OutputDirectory   string
	ManifestPath      string
}

type manifestEntry struct {
	ListID   int64    `json:"list_id"`
	ListName string   `json:"list_name"`
	Status   string   `json:"status"`
	Files    []string `json:"files,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type manifest struct {
	ExportedAt        string          `json:"exported_at"`
	Format            string          `json:"format"`
	TotalLists        int             `json:"total_lists"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	OutputDirectory   string          `json:"output_directory"`
	Lists             []manifestEntry `json:"lists"`
}

// WriteBulkExportManifest writes a JSON summary of a bulk export to path.
func WriteBulkExportManifest(result *BulkExportResult, format, path string) error {
	m := manifest{
		ExportedAt:        time.Now().UTC().Format(time.RFC3339),
		Format:            format,
		TotalLists:        result.TotalLists,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
		OutputDirectory:   result.OutputDirectory,
		Lists:             make([]manifestEntry, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		entry := manifestEntry{
			ListID:   r.ListID,
			ListName: r.ListName,
			Status:   "success",
			Files:    r.Files,
		}
		if !r.Success {
			entry.Status = "failed"
			if r.Error != nil {
				entry.Error = r.Error.Error()
			}
		}
		m.Lists = append(m.Lists, entry)
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
