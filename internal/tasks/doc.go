// Package tasks runs the long operations over the whole store: backup export,
// reconciling import and per-list bulk export.
//
// # Core Operations
//
// [BackupEngine] exposes:
//
//  1. [BackupEngine.Export] : Write every list and item as one JSON document
//     - Reads a consistent snapshot of the store
//     - Custom fields are copied verbatim, never parsed
//
//  2. [ParseBackup] + [BackupEngine.Import] : Merge a document into the store
//     - Lists are matched by exact name, items by exact title
//     - Matching records are skipped, everything else is inserted
//     - A confirmation callback must approve the [Preview] before anything is written
//     - Each incoming list commits in its own transaction
//
//  3. [BackupEngine.BulkExport] : One file set per list in json, csv, markdown, txt or yaml
//     - Worker pool with a rate limiter, plus an export manifest
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Sends never block:
// when the channel is full the update is dropped.
package tasks
