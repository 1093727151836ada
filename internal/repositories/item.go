package repositories

import (
	"context"

	"github.com/desertthunder/listx/internal/models"
)

// InsertItem adds an item to an existing list and returns its id.
func (r *Repository) InsertItem(ctx context.Context, item models.Item) (int64, error) {
	var id int64
	err := r.mutate(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.InsertItem(ctx, item)
		return err
	})
	return id, err
}

// UpdateItem replaces the title, notes, status and custom fields of an item.
func (r *Repository) UpdateItem(ctx context.Context, item models.Item) error {
	return r.mutate(ctx, func(tx *Tx) error {
		return tx.UpdateItem(ctx, item)
	})
}

// SetItemStatus marks an item done or not done.
func (r *Repository) SetItemStatus(ctx context.Context, itemID int64, done bool) error {
	return r.mutate(ctx, func(tx *Tx) error {
		return tx.SetItemStatus(ctx, itemID, done)
	})
}

// DeleteItem removes one item.
func (r *Repository) DeleteItem(ctx context.Context, itemID int64) error {
	return r.mutate(ctx, func(tx *Tx) error {
		return tx.DeleteItem(ctx, itemID)
	})
}

// GetItem reads one item.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (models.Item, error) {
	return getItem(ctx, r.db, itemID)
}

// ItemsOfList reads the items of one list, newest first. An unknown list has no items.
func (r *Repository) ItemsOfList(ctx context.Context, listID int64) ([]models.Item, error) {
	return itemsOfList(ctx, r.db, listID)
}
