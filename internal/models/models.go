package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/listx/internal/shared"
)

// Built-in categories. Any other non-empty string is a user-defined category.
const (
	CategoryGeneric = "Generic"
	CategoryMovies  = "Movies"
)

// List is a user-named, user-categorized container of items.
type List struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the list's required fields.
func (l List) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: list name is required", shared.ErrValidation)
	}
	return nil
}

// Item is a single entry within a list.
//
// Notes and CustomFields are nil when absent. CustomFields is stored verbatim; see [ParseExtras] to read it.
type Item struct {
	ID           int64     `json:"id"`
	ListID       int64     `json:"list_id"`
	Title        string    `json:"title"`
	Notes        *string   `json:"notes,omitempty"`
	Done         bool      `json:"done"`
	CreatedAt    time.Time `json:"created_at"`
	CustomFields *string   `json:"custom_fields,omitempty"`
}

// Validate checks the item's required fields.
func (i Item) Validate() error {
	if i.Title == "" {
		return fmt.Errorf("%w: item title is required", shared.ErrValidation)
	}
	return nil
}

// NotesOrEmpty returns the notes, or "" when absent.
func (i Item) NotesOrEmpty() string {
	if i.Notes == nil {
		return ""
	}
	return *i.Notes
}

// CustomFieldsOrEmpty returns the raw custom fields payload, or "" when absent.
func (i Item) CustomFieldsOrEmpty() string {
	if i.CustomFields == nil {
		return ""
	}
	return *i.CustomFields
}

// ListWithCount is a read-only projection of a list and its live item count.
type ListWithCount struct {
	List
	ItemCount int `json:"item_count"`
}

// OptionalString returns nil for "", otherwise a pointer to s.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeCategory trims the category and falls back to [CategoryGeneric] when empty.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return CategoryGeneric
	}
	return category
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Now returns the current time truncated to the millisecond precision the store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// ListItems is one list together with its items.
type ListItems struct {
	List  List   `json:"list"`
	Items []Item `json:"items"`
}
