// Package repositories implements SQLite persistence for lists and items.
//
// [Repository] is the single owner of the entity store. Every mutation runs in
// its own transaction under a process-wide write lock, and every committed
// mutation publishes a fresh []models.ListWithCount snapshot to subscribers.
//
// Key Implementations:
//   - [Repository] : list and item CRUD, snapshot reads and the observable projection
//   - [Batch] : a write-locked unit of work used by import, with one publish at the end
//   - [Tx] : the transactional view handed to mutation callbacks
//   - [DeleteHook] : notified after a list has been deleted
package repositories
