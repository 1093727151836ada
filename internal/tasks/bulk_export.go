package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/listx/internal/formatter"
	"github.com/desertthunder/listx/internal/models"
)

// BulkExportOpts contains configuration for per-list exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt, yaml
	OutputDir  string  // Base output directory (default: listx_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 4)
	RateLimit  float64 // Lists dispatched per second (default: 50)
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult = formatter.BulkExportResult

// ListExportResult is the outcome for a single list.
type ListExportResult = formatter.ListExportResult

// ListExportJob is one list queued for export.
type ListExportJob struct {
	Export models.ListItems
}

// BulkExport writes one file set per list concurrently and finishes with a manifest.
//
// Lists are read from a single consistent snapshot. A failing list is recorded in the
// result and the manifest; it does not stop the others.
func (e *BackupEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, opts BulkExportOpts) (*BulkExportResult, error) {
	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("listx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 50.0
	}

	e.sendProgress(prog, readSnapshotUpdate())
	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalLists:      len(snapshot),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ListExportResult, 0, len(snapshot)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan ListExportJob, len(snapshot))
	results := make(chan ListExportResult, len(snapshot))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, li := range snapshot {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- ListExportJob{Export: li}
			e.sendProgress(prog, exportingListUpdate(i+1, len(snapshot), li.List.Name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(snapshot), res.ListName, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(snapshot), res.ListName, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports lists from the jobs channel.
func (e *BackupEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan ListExportJob,
	results chan<- ListExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- exportSingleList(job, opts)
	}
}

// exportSingleList exports a single list to the requested format.
func exportSingleList(j ListExportJob, opts BulkExportOpts) ListExportResult {
	export := &j.Export
	base := filepath.Join(opts.OutputDir, formatter.BaseName(export.List))
	result := ListExportResult{
		ListID:   export.List.ID,
		ListName: export.List.Name,
		Files:    []string{},
	}

	switch opts.Format {
	case formatter.FormatCSV:
		csvRes, err := formatter.WriteCSVExport(export, base)
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.ItemsFile, csvRes.MetadataFile}

	case formatter.FormatMarkdown:
		mdRes, err := formatter.WriteMarkdownExport(export, base)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files

	case formatter.FormatText:
		path, err := formatter.WriteTextExport(export, base+"_items.txt")
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	case formatter.FormatYAML:
		path, err := formatter.WriteYAMLExport(export, base+".yaml")
		if err != nil {
			result.Error = fmt.Errorf("YAML export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(export, base+".json")
		if err != nil {
			result.Error = fmt.Errorf("JSON export failed: %w", err)
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}
