package ordering

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listx/internal/hub"
	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/prefs"
	"github.com/desertthunder/listx/internal/shared"
)

// Preference keys.
const (
	KeySortOrder         = "sort_order"
	KeyCustomSortEnabled = "custom_sort_enabled"
	orderKeyPrefix       = "order."
)

// OrderKey returns the preference key holding the custom rank of a list.
func OrderKey(listID int64) string {
	return orderKeyPrefix + strconv.FormatInt(listID, 10)
}

// Options configures an [Engine].
type Options struct {
	Logger *log.Logger
}

// Engine holds the active sort mode and custom rank map and emits sorted views of
// the snapshots it is fed.
//
// All state changes are persisted with a single [prefs.Store.Apply] so a concurrent
// reader never sees a partially written rank map. Concurrent Reorder calls are
// last-write-wins.
type Engine struct {
	store  prefs.Store
	logger *log.Logger

	mu        sync.Mutex
	mode      Mode
	ranks     map[int64]int
	latest    []models.ListWithCount
	hasLatest bool

	hub *hub.Hub[[]models.ListWithCount]
}

// New restores the engine state from store.
//
// A missing mode defaults to [ModeDate]. An unrecognized stored mode also falls back to
// [ModeDate] and is logged. Rank entries that are not integers are skipped.
func New(store prefs.Store, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	e := &Engine{
		store:  store,
		logger: logger,
		mode:   ModeDate,
		ranks:  make(map[int64]int),
		hub:    hub.New[[]models.ListWithCount](),
	}

	values, err := store.All()
	if err != nil {
		return nil, fmt.Errorf("failed to read sort preferences: %w", err)
	}

	if raw, ok := values[KeySortOrder]; ok {
		mode, err := ParseMode(raw)
		if err != nil {
			logger.Warn("unrecognized sort mode, using DATE", "value", raw)
		} else {
			e.mode = mode
		}
	}

	for key, raw := range values {
		idPart, ok := strings.CutPrefix(key, orderKeyPrefix)
		if !ok {
			continue
		}
		id, idErr := strconv.ParseInt(idPart, 10, 64)
		rank, rankErr := strconv.Atoi(strings.TrimSpace(raw))
		if idErr != nil || rankErr != nil {
			logger.Warn("skipping malformed custom rank", "key", key, "value", raw)
			continue
		}
		e.ranks[id] = rank
	}

	return e, nil
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Ranks returns a copy of the custom rank map.
func (e *Engine) Ranks() map[int64]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.ranks)
}

// Sort orders snapshot under the current mode and rank map.
func (e *Engine) Sort(snapshot []models.ListWithCount) []models.ListWithCount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Sort(e.mode, e.ranks, snapshot)
}

// SetMode persists mode and re-emits the current view under it.
func (e *Engine) SetMode(ctx context.Context, mode Mode) error {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	set := map[string]string{
		KeySortOrder:         string(mode),
		KeyCustomSortEnabled: strconv.FormatBool(mode == ModeCustom),
	}
	if err := e.store.Apply(set, nil); err != nil {
		return fmt.Errorf("failed to persist sort mode: %w", err)
	}

	e.mode = mode
	e.emitLocked()
	return nil
}

// Reorder assigns rank = position to each list in seq and replaces the whole rank map.
// Lists ranked before but absent from seq lose their rank.
func (e *Engine) Reorder(ctx context.Context, seq []models.ListWithCount) error {
	ids := make([]int64, len(seq))
	for i, l := range seq {
		ids[i] = l.ID
	}
	return e.ReorderIDs(ctx, ids)
}

// ReorderIDs is [Engine.Reorder] over bare list ids. Repeated ids are rejected.
func (e *Engine) ReorderIDs(ctx context.Context, ids []int64) error {
	next := make(map[int64]int, len(ids))
	for i, id := range ids {
		if _, dup := next[id]; dup {
			return fmt.Errorf("%w: list %d appears more than once", shared.ErrInvalidArgument, id)
		}
		next[id] = i
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.store.All()
	if err != nil {
		return fmt.Errorf("failed to read sort preferences: %w", err)
	}

	set := make(map[string]string, len(next))
	for id, rank := range next {
		set[OrderKey(id)] = strconv.Itoa(rank)
	}
	var del []string
	for key := range current {
		if _, keep := set[key]; !keep && strings.HasPrefix(key, orderKeyPrefix) {
			del = append(del, key)
		}
	}

	if err := e.store.Apply(set, del); err != nil {
		return fmt.Errorf("failed to persist custom order: %w", err)
	}

	e.ranks = next
	e.emitLocked()
	return nil
}

// ListDeleted prunes the rank of a deleted list.
func (e *Engine) ListDeleted(_ context.Context, listID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := OrderKey(listID)
	_, ranked := e.ranks[listID]
	_, stored, err := e.store.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read custom rank: %w", err)
	}
	if !ranked && !stored {
		return nil
	}
	if err := e.store.Apply(nil, []string{key}); err != nil {
		return fmt.Errorf("failed to prune custom rank: %w", err)
	}
	delete(e.ranks, listID)
	return nil
}

// Run consumes snapshots from src and emits each one sorted until ctx ends or src closes.
func (e *Engine) Run(ctx context.Context, src <-chan []models.ListWithCount) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok := <-src:
			if !ok {
				return nil
			}
			e.Observe(snapshot)
		}
	}
}

// Observe records snapshot as the latest and emits it sorted.
func (e *Engine) Observe(snapshot []models.ListWithCount) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest = snapshot
	e.hasLatest = true
	e.emitLocked()
}

// Subscribe streams sorted views. The latest view, if any, is delivered immediately.
func (e *Engine) Subscribe(ctx context.Context) <-chan []models.ListWithCount {
	return e.hub.Subscribe(ctx)
}

// Current returns the latest sorted view and whether any snapshot has been observed.
func (e *Engine) Current() ([]models.ListWithCount, bool) {
	return e.hub.Latest()
}

// Close ends every subscription.
func (e *Engine) Close() {
	e.hub.Close()
}

func (e *Engine) emitLocked() {
	if !e.hasLatest {
		return
	}
	e.hub.Publish(Sort(e.mode, e.ranks, e.latest))
}
