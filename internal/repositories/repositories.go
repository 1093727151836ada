package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listx/internal/hub"
	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/shared"
)

// Querier is satisfied by both [sql.DB] and [sql.Tx].
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DeleteHook is notified after a list and its items have been deleted.
type DeleteHook interface {
	ListDeleted(ctx context.Context, listID int64) error
}

// Repository owns the lists and items tables.
type Repository struct {
	db     *sql.DB
	logger *log.Logger

	// writeMu serializes every mutation from this process.
	writeMu sync.Mutex
	hub     *hub.Hub[[]models.ListWithCount]

	hookMu sync.RWMutex
	hooks  []DeleteHook
}

// Option configures a [Repository].
type Option func(*Repository)

// WithLogger sets the repository logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// New creates a Repository over a migrated database.
func New(db *sql.DB, opts ...Option) *Repository {
	r := &Repository{
		db:  db,
		hub: hub.New[[]models.ListWithCount](),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	return r
}

// AddDeleteHook registers h to be notified after list deletions.
func (r *Repository) AddDeleteHook(h DeleteHook) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Subscribe streams the lists-with-count projection ordered by creation date, newest first.
//
// The current snapshot is delivered immediately, then one after every mutation. A slow
// consumer only ever sees the latest snapshot. Receivers must not modify the slice.
// The channel closes when ctx ends or the repository is closed.
func (r *Repository) Subscribe(ctx context.Context) (<-chan []models.ListWithCount, error) {
	if _, ok := r.hub.Latest(); !ok {
		r.writeMu.Lock()
		err := r.publishLocked(ctx)
		r.writeMu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	return r.hub.Subscribe(ctx), nil
}

// Close ends every subscription. The database is owned by the caller.
func (r *Repository) Close() {
	r.hub.Close()
}

// Batch is a unit of work that holds the repository write lock.
type Batch struct {
	r *Repository
}

// Batch runs fn with the write lock held so no other mutation from this process can
// interleave. A snapshot is published once when fn returns, whether or not it failed.
func (r *Repository) Batch(ctx context.Context, fn func(b *Batch) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	err := fn(&Batch{r: r})
	if perr := r.publishLocked(context.WithoutCancel(ctx)); perr != nil {
		r.logger.Warn("failed to publish snapshot", "error", perr)
	}
	return err
}

// Transact runs fn in one SQL transaction. It commits when fn returns nil.
func (b *Batch) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	return b.r.transact(ctx, fn)
}

// mutate is a single-transaction batch.
func (r *Repository) mutate(ctx context.Context, fn func(tx *Tx) error) error {
	return r.Batch(ctx, func(b *Batch) error {
		return b.Transact(ctx, fn)
	})
}

func (r *Repository) transact(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// publishLocked must be called with writeMu held.
func (r *Repository) publishLocked(ctx context.Context) error {
	snapshot, err := listsWithCount(ctx, r.db)
	if err != nil {
		return err
	}
	r.hub.Publish(snapshot)
	return nil
}

func (r *Repository) notifyDeleted(ctx context.Context, listID int64) {
	r.hookMu.RLock()
	hooks := append([]DeleteHook(nil), r.hooks...)
	r.hookMu.RUnlock()

	for _, h := range hooks {
		if err := h.ListDeleted(ctx, listID); err != nil {
			r.logger.Warn("delete hook failed", "list_id", listID, "error", err)
		}
	}
}

// storageErr wraps a driver failure in [shared.ErrStorage]. Errors that already carry
// a domain sentinel pass through unchanged.
func storageErr(op string, err error) error {
	for _, sentinel := range []error{
		shared.ErrValidation, shared.ErrReferential, shared.ErrListNotFound, shared.ErrItemNotFound,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: failed to %s: %v", shared.ErrStorage, op, err)
}
