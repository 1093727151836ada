package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listx/internal/shared"
	"github.com/desertthunder/listx/internal/tasks"
)

// Export writes the backup document to --output or stdout, or runs a bulk export with --bulk.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx, cmd); err != nil {
		return err
	}
	if cmd.Bool("bulk") {
		return r.bulkExport(ctx, cmd)
	}

	path := cmd.String("output")
	if path == "" {
		_, err := r.backups.Export(ctx, r.output, nil)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".listx-backup-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer os.Remove(f.Name())

	result, err := r.backups.Export(ctx, f, nil)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}

	r.logger.Info("backup written", "path", path, "lists", result.Lists, "items", result.Items)
	return r.writePlain("✓ Exported %d lists (%d items) to %s\n", result.Lists, result.Items, path)
}

func (r *Runner) bulkExport(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.BulkExportOpts{
		Format:     r.config.Export.Format,
		OutputDir:  r.config.Export.Dir,
		NumWorkers: r.config.Export.Workers,
		RateLimit:  r.config.Export.RateLimit,
	}
	if cmd.IsSet("format") {
		opts.Format = cmd.String("format")
	}
	if cmd.IsSet("dir") {
		opts.OutputDir = cmd.String("dir")
	}
	if cmd.IsSet("workers") {
		opts.NumWorkers = cmd.Int("workers")
	}
	if opts.Format == "" {
		opts.Format = "json"
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.ReadSnapshot:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ExportList:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := r.backups.BulkExport(ctx, progressCh, opts)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Bulk Export Complete")
	r.writePlain("Lists: %d exported, %d failed (of %d)\n", result.SuccessfulExports, result.FailedExports, result.TotalLists)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlain("\nFailed lists:\n")
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %s\n", res.ListName, res.Error)
			}
		}
	}
	return nil
}

// Import merges a backup file into the store after confirmation.
//
// The user is asked when stdin is a terminal; otherwise --yes is required.
// A failure prints one line and leaves already-imported lists in place.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg("backup file", cmd.StringArg("file"))
	if err != nil {
		return err
	}

	confirm := tasks.AutoConfirm
	if !cmd.Bool("yes") {
		if !r.isTerminal() {
			return fmt.Errorf("%w: stdin is not a terminal, pass --yes to import without a prompt", shared.ErrMissingArgument)
		}
		confirm = r.promptConfirm
	}

	result, err := r.importFile(ctx, cmd, path, confirm)
	switch {
	case errors.Is(err, shared.ErrImportDeclined):
		return r.writePlain("Import cancelled, nothing was written.\n")
	case err != nil:
		r.writePlain("✗ Import failed: %v\n", err)
		return fmt.Errorf("%w: %w", errReported, err)
	}

	r.writePlain("✓ Import complete\n")
	r.writePlain("Lists created: %d\n", result.ListsCreated)
	r.writePlain("Lists skipped: %d\n", result.ListsSkipped)
	r.writePlain("Items created: %d\n", result.ItemsCreated)
	r.writePlain("Items skipped: %d\n", result.ItemsSkipped)
	return nil
}

func (r *Runner) importFile(ctx context.Context, cmd *cli.Command, path string, confirm tasks.ConfirmFunc) (*tasks.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	doc, err := tasks.ParseBackup(f)
	if err != nil {
		return nil, err
	}
	if err := r.open(ctx, cmd); err != nil {
		return nil, err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if update.Phase == tasks.ImportList {
				r.logger.Debug(update.Message, "step", update.Step, "total", update.Total)
			}
		}
	}()

	result, err := r.backups.Import(ctx, doc, confirm, progressCh)
	close(progressCh)
	<-done
	return result, err
}

// promptConfirm asks on the output and reads the answer from the input. Only y or yes accept.
func (r *Runner) promptConfirm(_ context.Context, p tasks.Preview) (bool, error) {
	r.writePlain("Import %d lists (%d items)? [y/N] ", p.Lists, p.Items)

	answer, err := bufio.NewReader(r.input).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
