// Package models defines the domain entities of the list manager and the portable backup document.
//
// Persistent entities:
//   - [List] : A named, categorized container of items
//   - [Item] : A single entry with title, optional notes, completion status and custom fields
//
// Derived views:
//   - [ListWithCount] : A List plus the live number of items it owns
//
// Category extensions:
//   - [Extras] : Tagged variant over an item's opaque custom fields payload, decoded by category
//     ([GenericExtras] for every category without a schema, [MovieExtras] for "Movies")
//
// Portable format:
//   - [BackupDocument] : The JSON export/import document with epoch-millisecond timestamps
package models
