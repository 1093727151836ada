package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/ordering"
	"github.com/desertthunder/listx/internal/shared"
	"github.com/desertthunder/listx/internal/tasks"
)

const (
	defaultKeepAlive      = 30 * time.Second
	defaultMaxImportBytes = 32 << 20
)

// ListStore is the read side of the repository the API needs.
type ListStore interface {
	ListsWithCount(ctx context.Context) ([]models.ListWithCount, error)
	GetList(ctx context.Context, listID int64) (models.List, error)
	ItemsOfList(ctx context.Context, listID int64) ([]models.Item, error)
}

// Orderer sorts list views and stores the sort preferences.
type Orderer interface {
	Mode() ordering.Mode
	Sort(snapshot []models.ListWithCount) []models.ListWithCount
	SetMode(ctx context.Context, mode ordering.Mode) error
	ReorderIDs(ctx context.Context, ids []int64) error
	Subscribe(ctx context.Context) <-chan []models.ListWithCount
	Current() ([]models.ListWithCount, bool)
}

// Backups exports and imports the whole store.
type Backups interface {
	Document(ctx context.Context) (*models.BackupDocument, error)
	Preview(doc *models.BackupDocument) tasks.Preview
	Import(ctx context.Context, doc *models.BackupDocument, confirm tasks.ConfirmFunc, progress chan<- tasks.ProgressUpdate) (*tasks.ImportResult, error)
}

// APIOptions tunes an [API]. Zero values select the defaults.
type APIOptions struct {
	Logger         *log.Logger
	KeepAlive      time.Duration // interval between stream keepalive comments
	MaxImportBytes int64         // largest accepted import body
}

// API serves the JSON endpoints.
type API struct {
	store   ListStore
	order   Orderer
	backups Backups
	logger  *log.Logger
	opts    APIOptions
	mux     *http.ServeMux
}

// ListsView is the body of GET /api/lists and of every stream event.
type ListsView struct {
	Mode  ordering.Mode          `json:"mode"`
	Lists []models.ListWithCount `json:"lists"`
}

// ItemView is an item with its custom fields decoded for the list's category.
type ItemView struct {
	models.Item
	Extras  models.Extras `json:"extras"`
	Summary string        `json:"summary,omitempty"`
}

// ItemsView is the body of GET /api/lists/{id}/items.
type ItemsView struct {
	List  models.List `json:"list"`
	Items []ItemView  `json:"items"`
}

// ImportPreview is the 409 body of an unconfirmed import.
type ImportPreview struct {
	Preview tasks.Preview `json:"preview"`
	Message string        `json:"message"`
}

type orderRequest struct {
	IDs []int64 `json:"ids"`
}

type sortRequest struct {
	Mode string `json:"mode"`
}

// NewAPI creates an [API].
func NewAPI(store ListStore, order Orderer, backups Backups, opts APIOptions) *API {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	if opts.MaxImportBytes <= 0 {
		opts.MaxImportBytes = defaultMaxImportBytes
	}

	a := &API{
		store:   store,
		order:   order,
		backups: backups,
		logger:  opts.Logger,
		opts:    opts,
		mux:     http.NewServeMux(),
	}
	a.mux.HandleFunc("GET /api/lists", a.getLists)
	a.mux.HandleFunc("GET /api/lists/stream", a.streamLists)
	a.mux.HandleFunc("GET /api/lists/{id}/items", a.getItems)
	a.mux.HandleFunc("POST /api/order", a.postOrder)
	a.mux.HandleFunc("PUT /api/sort", a.putSort)
	a.mux.HandleFunc("GET /api/export", a.getExport)
	a.mux.HandleFunc("POST /api/import", a.postImport)
	return a
}

// Routes returns the patterns registered in [NewAPI].
func (a *API) Routes() []string {
	return []string{
		"GET /api/lists",
		"GET /api/lists/stream",
		"GET /api/lists/{id}/items",
		"POST /api/order",
		"PUT /api/sort",
		"GET /api/export",
		"POST /api/import",
	}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) sortedView(ctx context.Context) (ListsView, error) {
	lists, err := a.store.ListsWithCount(ctx)
	if err != nil {
		return ListsView{}, err
	}
	return ListsView{Mode: a.order.Mode(), Lists: a.order.Sort(lists)}, nil
}

func (a *API) getLists(w http.ResponseWriter, r *http.Request) {
	view, err := a.sortedView(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// streamLists sends the sorted view as Server-Sent Events until the client goes away.
func (a *API) streamLists(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	updates := a.order.Subscribe(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	// Nothing observed yet means the subscription has no initial value to deliver.
	if _, seen := a.order.Current(); !seen {
		view, err := a.sortedView(ctx)
		if err != nil {
			a.logger.Error("failed to read lists for stream", "err", err)
			return
		}
		if err := writeEvent(w, view); err != nil {
			return
		}
		flusher.Flush()
	}

	ticker := time.NewTicker(a.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case lists, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, ListsView{Mode: a.order.Mode(), Lists: lists}); err != nil {
				a.logger.Debug("stream closed", "err", err, "request_id", RequestIDFrom(ctx))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (a *API) getItems(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: list id %q", shared.ErrInvalidArgument, r.PathValue("id")))
		return
	}

	list, err := a.store.GetList(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	items, err := a.store.ItemsOfList(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	view := ItemsView{List: list, Items: make([]ItemView, 0, len(items))}
	for _, item := range items {
		extras := models.ParseExtras(list.Category, item.CustomFields)
		view.Items = append(view.Items, ItemView{Item: item, Extras: extras, Summary: extras.Summary()})
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) postOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	lists, err := a.store.ListsWithCount(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	known := make(map[int64]struct{}, len(lists))
	for _, l := range lists {
		known[l.ID] = struct{}{}
	}
	for _, id := range req.IDs {
		if _, ok := known[id]; !ok {
			a.writeError(w, r, fmt.Errorf("%w: %d", shared.ErrListNotFound, id))
			return
		}
	}

	if err := a.order.ReorderIDs(r.Context(), req.IDs); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListsView{Mode: a.order.Mode(), Lists: a.order.Sort(lists)})
}

func (a *API) putSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	mode, err := ordering.ParseMode(req.Mode)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.order.SetMode(r.Context(), mode); err != nil {
		a.writeError(w, r, err)
		return
	}

	view, err := a.sortedView(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) getExport(w http.ResponseWriter, r *http.Request) {
	doc, err := a.backups.Document(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=listx-backup-%d.json", doc.ExportDate))
	if err := tasks.WriteDocument(w, doc); err != nil {
		a.logger.Error("failed to write export", "err", err, "request_id", RequestIDFrom(r.Context()))
	}
}

func (a *API) postImport(w http.ResponseWriter, r *http.Request) {
	confirmed := false
	if raw := r.URL.Query().Get("confirm"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			a.writeError(w, r, fmt.Errorf("%w: confirm=%q", shared.ErrInvalidArgument, raw))
			return
		}
		confirmed = v
	}

	doc, err := tasks.ParseBackup(http.MaxBytesReader(w, r.Body, a.opts.MaxImportBytes))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if !confirmed {
		writeJSON(w, http.StatusConflict, ImportPreview{
			Preview: a.backups.Preview(doc),
			Message: "repeat with ?confirm=true to import",
		})
		return
	}

	result, err := a.backups.Import(r.Context(), doc, tasks.AutoConfirm, nil)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", RequestIDFrom(r.Context()))
	} else {
		a.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeErrorStatus(w, status, err.Error())
}

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shared.ErrListNotFound), errors.Is(err, shared.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrReferential):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrImportDeclined):
		return http.StatusConflict
	case errors.Is(err, shared.ErrFormat),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrPayloadParse),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeEvent(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode JSON", "err", err)
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
