package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/repositories"
	"github.com/desertthunder/listx/internal/shared"
)

// Store is the part of the repository the backup engine needs.
type Store interface {
	Snapshot(ctx context.Context) ([]models.ListItems, error)
	Batch(ctx context.Context, fn func(b *repositories.Batch) error) error
}

// ExportResult summarizes a finished export.
type ExportResult struct {
	ExportedAt time.Time
	Lists      int
	Items      int
}

// Preview is what an import would bring in, shown before anything is written.
type Preview struct {
	Lists int `json:"lists"`
	Items int `json:"items"`
}

// ImportResult carries the four reconciliation counters.
type ImportResult struct {
	ListsCreated int `json:"lists_created"`
	ListsSkipped int `json:"lists_skipped"`
	ItemsCreated int `json:"items_created"`
	ItemsSkipped int `json:"items_skipped"`
}

// ConfirmFunc approves or declines an import after seeing its preview.
type ConfirmFunc func(ctx context.Context, p Preview) (bool, error)

// AutoConfirm approves every import.
func AutoConfirm(context.Context, Preview) (bool, error) { return true, nil }

// BackupEngine exports and imports the whole store.
type BackupEngine struct {
	store      Store
	appVersion string
	logger     *log.Logger
	now        func() time.Time
}

// NewBackupEngine creates a BackupEngine. appVersion is written into every export.
func NewBackupEngine(store Store, appVersion string, logger *log.Logger) *BackupEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &BackupEngine{
		store:      store,
		appVersion: appVersion,
		logger:     logger,
		now:        models.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *BackupEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Document builds the backup document from a consistent snapshot, lists newest first.
func (e *BackupEngine) Document(ctx context.Context) (*models.BackupDocument, error) {
	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	lists := make([]models.BackupList, 0, len(snapshot))
	for _, li := range snapshot {
		lists = append(lists, models.NewBackupList(li.List, li.Items))
	}
	return models.NewBackupDocument(e.now(), e.appVersion, lists), nil
}

// Export writes the backup document to w as indented JSON.
func (e *BackupEngine) Export(ctx context.Context, w io.Writer, progress chan<- ProgressUpdate) (*ExportResult, error) {
	e.sendProgress(progress, readSnapshotUpdate())

	doc, err := e.Document(ctx)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{
		ExportedAt: models.FromMillis(doc.ExportDate),
		Lists:      len(doc.Lists),
		Items:      doc.ItemCount(),
	}
	e.sendProgress(progress, writeDocumentUpdate(result.Lists, result.Items))

	if err := WriteDocument(w, doc); err != nil {
		return nil, err
	}

	e.logger.Debug("export complete", "lists", result.Lists, "items", result.Items)
	return result, nil
}

// WriteDocument encodes doc with two-space indentation.
func WriteDocument(w io.Writer, doc *models.BackupDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Preview counts the lists and items of doc.
func (e *BackupEngine) Preview(doc *models.BackupDocument) Preview {
	return Preview{Lists: len(doc.Lists), Items: doc.ItemCount()}
}

// Import merges doc into the store.
//
// confirm is called with the preview before any write; a declined import returns
// [shared.ErrImportDeclined]. The merge runs inside one repository batch so no other
// mutation from this process interleaves. Lists stored before the import are matched
// by exact name: a match is skipped and only items whose title is not already stored
// in it are inserted, anything else is created with all of its items. Lists created
// by the import are never merge targets. Each incoming list commits in its own
// transaction.
//
// On any failure, including cancellation between lists, the error is returned without
// counts. Lists committed before the failure remain.
func (e *BackupEngine) Import(ctx context.Context, doc *models.BackupDocument, confirm ConfirmFunc, progress chan<- ProgressUpdate) (*ImportResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: no document to import", shared.ErrMissingArgument)
	}
	if confirm == nil {
		return nil, fmt.Errorf("%w: import requires a confirmation step", shared.ErrMissingArgument)
	}

	preview := e.Preview(doc)
	e.sendProgress(progress, confirmImportUpdate(preview))

	ok, err := confirm(ctx, preview)
	if err != nil {
		return nil, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return nil, shared.ErrImportDeclined
	}

	result := &ImportResult{}
	err = e.store.Batch(ctx, func(b *repositories.Batch) error {
		var byName map[string]int64
		err := b.Transact(ctx, func(tx *repositories.Tx) error {
			var err error
			byName, err = tx.ListIDsByName(ctx)
			return err
		})
		if err != nil {
			return err
		}

		for i, incoming := range doc.Lists {
			if err := ctx.Err(); err != nil {
				return err
			}

			existingID, exists := byName[incoming.ListName]
			e.sendProgress(progress, importListUpdate(i+1, len(doc.Lists), incoming, exists))

			var counts ImportResult
			err := b.Transact(ctx, func(tx *repositories.Tx) error {
				counts = ImportResult{}
				if exists {
					return mergeList(ctx, tx, existingID, incoming, &counts)
				}
				return createList(ctx, tx, incoming, &counts)
			})
			if err != nil {
				return fmt.Errorf("failed to import list %q: %w", incoming.ListName, err)
			}
			result.add(counts)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("import complete",
		"lists_created", result.ListsCreated,
		"lists_skipped", result.ListsSkipped,
		"items_created", result.ItemsCreated,
		"items_skipped", result.ItemsSkipped,
	)
	return result, nil
}

func createList(ctx context.Context, tx *repositories.Tx, incoming models.BackupList, counts *ImportResult) error {
	id, err := tx.InsertList(ctx, incoming.ToList())
	if err != nil {
		return err
	}
	counts.ListsCreated++

	for _, item := range incoming.Items {
		if _, err := tx.InsertItem(ctx, item.ToItem(id)); err != nil {
			return err
		}
		counts.ItemsCreated++
	}
	return nil
}

func mergeList(ctx context.Context, tx *repositories.Tx, listID int64, incoming models.BackupList, counts *ImportResult) error {
	counts.ListsSkipped++

	titles, err := tx.ItemTitles(ctx, listID)
	if err != nil {
		return err
	}

	for _, item := range incoming.Items {
		if _, dup := titles[item.Title]; dup {
			counts.ItemsSkipped++
			continue
		}
		if _, err := tx.InsertItem(ctx, item.ToItem(listID)); err != nil {
			return err
		}
		counts.ItemsCreated++
	}
	return nil
}

func (r *ImportResult) add(o ImportResult) {
	r.ListsCreated += o.ListsCreated
	r.ListsSkipped += o.ListsSkipped
	r.ItemsCreated += o.ItemsCreated
	r.ItemsSkipped += o.ItemsSkipped
}
