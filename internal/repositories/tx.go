package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/shared"
)

// Tx is the transactional view handed to [Batch.Transact] callbacks.
// Every statement runs inside the same SQL transaction.
type Tx struct {
	q Querier
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

const listColumns = `list_id, list_name, list_category_type, creation_date`
const itemColumns = `item_id, parent_list_id, item_title, item_notes, item_status, creation_date, custom_fields`

// InsertList stores a list record as given. A zero CreatedAt is set to now and an
// empty category becomes Generic. Returns the assigned id.
func (tx *Tx) InsertList(ctx context.Context, list models.List) (int64, error) {
	if err := list.Validate(); err != nil {
		return 0, err
	}
	list.Category = models.NormalizeCategory(list.Category)
	if list.CreatedAt.IsZero() {
		list.CreatedAt = models.Now()
	}

	query := `
		INSERT INTO lists (list_name, list_category_type, creation_date)
		VALUES (?, ?, ?)
	`

	result, err := tx.q.ExecContext(ctx, query, list.Name, list.Category, list.CreatedAt.UnixMilli())
	if err != nil {
		return 0, storageErr("insert list", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("read list id", err)
	}
	return id, nil
}

// InsertItem stores an item under an existing list. A zero CreatedAt is set to now.
// Returns [shared.ErrReferential] when the parent list does not exist.
func (tx *Tx) InsertItem(ctx context.Context, item models.Item) (int64, error) {
	if err := item.Validate(); err != nil {
		return 0, err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = models.Now()
	}

	exists, err := tx.listExists(ctx, item.ListID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: list %d does not exist", shared.ErrReferential, item.ListID)
	}

	query := `
		INSERT INTO items (parent_list_id, item_title, item_notes, item_status, creation_date, custom_fields)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.q.ExecContext(ctx, query,
		item.ListID,
		item.Title,
		nullString(item.Notes),
		item.Done,
		item.CreatedAt.UnixMilli(),
		nullString(item.CustomFields),
	)
	if err != nil {
		return 0, storageErr("insert item", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("read item id", err)
	}
	return id, nil
}

// UpdateList replaces the name and category of an existing list.
func (tx *Tx) UpdateList(ctx context.Context, list models.List) error {
	if err := list.Validate(); err != nil {
		return err
	}

	result, err := tx.q.ExecContext(ctx,
		`UPDATE lists SET list_name = ?, list_category_type = ? WHERE list_id = ?`,
		list.Name, models.NormalizeCategory(list.Category), list.ID,
	)
	if err != nil {
		return storageErr("update list", err)
	}
	return expectRow(result, fmt.Errorf("%w: %d", shared.ErrListNotFound, list.ID))
}

// UpdateItem replaces the editable fields of an existing item. The parent list and
// creation date never change.
func (tx *Tx) UpdateItem(ctx context.Context, item models.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE items
		SET item_title = ?, item_notes = ?, item_status = ?, custom_fields = ?
		WHERE item_id = ?
	`

	result, err := tx.q.ExecContext(ctx, query,
		item.Title,
		nullString(item.Notes),
		item.Done,
		nullString(item.CustomFields),
		item.ID,
	)
	if err != nil {
		return storageErr("update item", err)
	}
	return expectRow(result, fmt.Errorf("%w: %d", shared.ErrItemNotFound, item.ID))
}

// SetItemStatus marks an item done or not done.
func (tx *Tx) SetItemStatus(ctx context.Context, itemID int64, done bool) error {
	result, err := tx.q.ExecContext(ctx, `UPDATE items SET item_status = ? WHERE item_id = ?`, done, itemID)
	if err != nil {
		return storageErr("update item status", err)
	}
	return expectRow(result, fmt.Errorf("%w: %d", shared.ErrItemNotFound, itemID))
}

// DeleteList removes a list. Its items are removed by the foreign key cascade.
func (tx *Tx) DeleteList(ctx context.Context, listID int64) error {
	result, err := tx.q.ExecContext(ctx, `DELETE FROM lists WHERE list_id = ?`, listID)
	if err != nil {
		return storageErr("delete list", err)
	}
	return expectRow(result, fmt.Errorf("%w: %d", shared.ErrListNotFound, listID))
}

// DeleteItem removes a single item.
func (tx *Tx) DeleteItem(ctx context.Context, itemID int64) error {
	result, err := tx.q.ExecContext(ctx, `DELETE FROM items WHERE item_id = ?`, itemID)
	if err != nil {
		return storageErr("delete item", err)
	}
	return expectRow(result, fmt.Errorf("%w: %d", shared.ErrItemNotFound, itemID))
}

// GetList reads one list.
func (tx *Tx) GetList(ctx context.Context, listID int64) (models.List, error) {
	return getList(ctx, tx.q, listID)
}

// AllLists reads every list, newest first.
func (tx *Tx) AllLists(ctx context.Context) ([]models.List, error) {
	return allLists(ctx, tx.q)
}

// ItemsOfList reads the items of one list, newest first.
func (tx *Tx) ItemsOfList(ctx context.Context, listID int64) ([]models.Item, error) {
	return itemsOfList(ctx, tx.q, listID)
}

// ListIDsByName indexes every list by its exact name. When names repeat, the oldest
// list wins.
func (tx *Tx) ListIDsByName(ctx context.Context) (map[string]int64, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT list_id, list_name FROM lists ORDER BY creation_date ASC, list_id ASC`)
	if err != nil {
		return nil, storageErr("query lists", err)
	}
	defer rows.Close()

	index := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, storageErr("scan list", err)
		}
		if _, ok := index[name]; !ok {
			index[name] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate lists", err)
	}
	return index, nil
}

// ItemTitles returns the set of exact item titles in a list.
func (tx *Tx) ItemTitles(ctx context.Context, listID int64) (map[string]struct{}, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT item_title FROM items WHERE parent_list_id = ?`, listID)
	if err != nil {
		return nil, storageErr("query item titles", err)
	}
	defer rows.Close()

	titles := make(map[string]struct{})
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, storageErr("scan item title", err)
		}
		titles[title] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate item titles", err)
	}
	return titles, nil
}

func (tx *Tx) listExists(ctx context.Context, listID int64) (bool, error) {
	var one int
	err := tx.q.QueryRowContext(ctx, `SELECT 1 FROM lists WHERE list_id = ?`, listID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("check list", err)
	}
	return true, nil
}

func getList(ctx context.Context, q Querier, listID int64) (models.List, error) {
	row := q.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE list_id = ?`, listID)
	list, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.List{}, fmt.Errorf("%w: %d", shared.ErrListNotFound, listID)
	}
	if err != nil {
		return models.List{}, storageErr("scan list", err)
	}
	return list, nil
}

func getItem(ctx context.Context, q Querier, itemID int64) (models.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE item_id = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, fmt.Errorf("%w: %d", shared.ErrItemNotFound, itemID)
	}
	if err != nil {
		return models.Item{}, storageErr("scan item", err)
	}
	return item, nil
}

func allLists(ctx context.Context, q Querier) ([]models.List, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+listColumns+` FROM lists ORDER BY creation_date DESC, list_id DESC`)
	if err != nil {
		return nil, storageErr("query lists", err)
	}
	defer rows.Close()

	lists := []models.List{}
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, storageErr("scan list", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate lists", err)
	}
	return lists, nil
}

func itemsOfList(ctx context.Context, q Querier, listID int64) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE parent_list_id = ? ORDER BY creation_date DESC, item_id DESC`

	rows, err := q.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, storageErr("query items", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate items", err)
	}
	return items, nil
}

func listsWithCount(ctx context.Context, q Querier) ([]models.ListWithCount, error) {
	query := `
		SELECT l.list_id, l.list_name, l.list_category_type, l.creation_date,
			(SELECT COUNT(*) FROM items i WHERE i.parent_list_id = l.list_id) AS item_count
		FROM lists l
		ORDER BY l.creation_date DESC, l.list_id DESC
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("query lists with count", err)
	}
	defer rows.Close()

	result := []models.ListWithCount{}
	for rows.Next() {
		var (
			lwc       models.ListWithCount
			createdAt int64
		)
		if err := rows.Scan(&lwc.ID, &lwc.Name, &lwc.Category, &createdAt, &lwc.ItemCount); err != nil {
			return nil, storageErr("scan list with count", err)
		}
		lwc.CreatedAt = models.FromMillis(createdAt)
		result = append(result, lwc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate lists with count", err)
	}
	return result, nil
}

func scanList(s scanner) (models.List, error) {
	var (
		list      models.List
		createdAt int64
	)
	if err := s.Scan(&list.ID, &list.Name, &list.Category, &createdAt); err != nil {
		return models.List{}, err
	}
	list.CreatedAt = models.FromMillis(createdAt)
	return list, nil
}

func scanItem(s scanner) (models.Item, error) {
	var (
		item         models.Item
		notes        sql.NullString
		customFields sql.NullString
		createdAt    int64
	)
	if err := s.Scan(&item.ID, &item.ListID, &item.Title, &notes, &item.Done, &createdAt, &customFields); err != nil {
		return models.Item{}, err
	}
	if notes.Valid {
		item.Notes = &notes.String
	}
	if customFields.Valid {
		item.CustomFields = &customFields.String
	}
	item.CreatedAt = models.FromMillis(createdAt)
	return item, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return storageErr("get affected rows", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
