package models

import "time"

// BackupDocument is the portable JSON export of every list and item.
type BackupDocument struct {
	ExportDate int64        `json:"exportDate"`
	AppVersion string       `json:"appVersion"`
	Lists      []BackupList `json:"lists"`
}

// BackupList is a list record with its items embedded.
type BackupList struct {
	ListID       int64        `json:"list_id"`
	ListName     string       `json:"list_name"`
	Category     string       `json:"list_category_type"`
	CreationDate int64        `json:"creation_date"`
	Items        []BackupItem `json:"items"`
}

// BackupItem is an item record. Absent notes and custom fields are written as "".
type BackupItem struct {
	ItemID       int64  `json:"item_id"`
	Title        string `json:"item_title"`
	Notes        string `json:"item_notes"`
	Status       bool   `json:"item_status"`
	CreationDate int64  `json:"creation_date"`
	CustomFields string `json:"custom_fields"`
}

// NewBackupDocument wraps lists with the export timestamp and version tag.
func NewBackupDocument(exportedAt time.Time, appVersion string, lists []BackupList) *BackupDocument {
	if lists == nil {
		lists = []BackupList{}
	}
	return &BackupDocument{
		ExportDate: exportedAt.UnixMilli(),
		AppVersion: appVersion,
		Lists:      lists,
	}
}

// NewBackupList converts a list and its items to their portable form. The custom fields payload is copied verbatim.
func NewBackupList(l List, items []Item) BackupList {
	bl := BackupList{
		ListID:       l.ID,
		ListName:     l.Name,
		Category:     l.Category,
		CreationDate: l.CreatedAt.UnixMilli(),
		Items:        make([]BackupItem, 0, len(items)),
	}
	for _, it := range items {
		bl.Items = append(bl.Items, BackupItem{
			ItemID:       it.ID,
			Title:        it.Title,
			Notes:        it.NotesOrEmpty(),
			Status:       it.Done,
			CreationDate: it.CreatedAt.UnixMilli(),
			CustomFields: it.CustomFieldsOrEmpty(),
		})
	}
	return bl
}

// ToList returns the list fields of the record. The id is left for the store to assign.
func (b BackupList) ToList() List {
	return List{
		Name:      b.ListName,
		Category:  b.Category,
		CreatedAt: FromMillis(b.CreationDate),
	}
}

// ToItem returns the item fields of the record under listID. Empty notes and custom fields become absent.
func (b BackupItem) ToItem(listID int64) Item {
	return Item{
		ListID:       listID,
		Title:        b.Title,
		Notes:        OptionalString(b.Notes),
		Done:         b.Status,
		CreatedAt:    FromMillis(b.CreationDate),
		CustomFields: OptionalString(b.CustomFields),
	}
}

// ItemCount returns the number of items across all lists in the document.
func (d *BackupDocument) ItemCount() int {
	n := 0
	for _, l := range d.Lists {
		n += len(l.Items)
	}
	return n
}
