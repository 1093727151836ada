package repositories

import (
	"context"

	"github.com/desertthunder/listx/internal/models"
)

// InsertList creates a list stamped with the current time and returns its id.
func (r *Repository) InsertList(ctx context.Context, name, category string) (int64, error) {
	var id int64
	err := r.mutate(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.InsertList(ctx, models.List{Name: name, Category: category})
		return err
	})
	return id, err
}

// UpdateList renames or recategorizes a list.
func (r *Repository) UpdateList(ctx context.Context, list models.List) error {
	return r.mutate(ctx, func(tx *Tx) error {
		return tx.UpdateList(ctx, list)
	})
}

// DeleteList removes a list and, by cascade, its items. Delete hooks run after commit.
func (r *Repository) DeleteList(ctx context.Context, listID int64) error {
	return r.Batch(ctx, func(b *Batch) error {
		err := b.Transact(ctx, func(tx *Tx) error {
			return tx.DeleteList(ctx, listID)
		})
		if err != nil {
			return err
		}
		r.notifyDeleted(ctx, listID)
		return nil
	})
}

// GetList reads one list.
func (r *Repository) GetList(ctx context.Context, listID int64) (models.List, error) {
	return getList(ctx, r.db, listID)
}

// AllLists reads every list, newest first.
func (r *Repository) AllLists(ctx context.Context) ([]models.List, error) {
	return allLists(ctx, r.db)
}

// ListsWithCount reads the current projection, newest first.
func (r *Repository) ListsWithCount(ctx context.Context) ([]models.ListWithCount, error) {
	return listsWithCount(ctx, r.db)
}

// Snapshot reads every list with its items inside one transaction so the result is a
// single point in time.
func (r *Repository) Snapshot(ctx context.Context) ([]models.ListItems, error) {
	var snapshot []models.ListItems
	err := r.transact(ctx, func(tx *Tx) error {
		lists, err := tx.AllLists(ctx)
		if err != nil {
			return err
		}

		snapshot = make([]models.ListItems, 0, len(lists))
		for _, list := range lists {
			items, err := tx.ItemsOfList(ctx, list.ID)
			if err != nil {
				return err
			}
			snapshot = append(snapshot, models.ListItems{List: list, Items: items})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
