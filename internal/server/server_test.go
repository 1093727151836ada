package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/ordering"
	"github.com/desertthunder/listx/internal/prefs"
	"github.com/desertthunder/listx/internal/repositories"
	"github.com/desertthunder/listx/internal/shared"
	"github.com/desertthunder/listx/internal/tasks"
	tu "github.com/desertthunder/listx/internal/testing"
)

type fixture struct {
	repo    *repositories.Repository
	order   *ordering.Engine
	backups *tasks.BackupEngine
	handler http.Handler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := shared.NewLogger(io.Discard)

	repo := repositories.New(tu.MustOpenDB(t, shared.DriverCGO), repositories.WithLogger(logger))
	order, err := ordering.New(prefs.NewMemoryStore(nil), ordering.Options{Logger: logger})
	if err != nil {
		t.Fatalf("ordering.New() error = %v", err)
	}
	repo.AddDeleteHook(order)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		order.Close()
		repo.Close()
	})
	src, err := repo.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	go order.Run(ctx, src)

	backups := tasks.NewBackupEngine(repo, "test", logger)
	api := NewAPI(repo, order, backups, APIOptions{Logger: logger, KeepAlive: 50 * time.Millisecond})
	srv := NewHTTPServer("127.0.0.1:0", api, logger)

	return &fixture{repo: repo, order: order, backups: backups, handler: srv.Handler}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) addList(t *testing.T, name, category string) int64 {
	t.Helper()
	id, err := f.repo.InsertList(context.Background(), name, category)
	if err != nil {
		t.Fatalf("InsertList(%q) error = %v", name, err)
	}
	return id
}

func (f *fixture) addItem(t *testing.T, listID int64, title string, custom *string) {
	t.Helper()
	_, err := f.repo.InsertItem(context.Background(), models.Item{ListID: listID, Title: title, CustomFields: custom})
	if err != nil {
		t.Fatalf("InsertItem(%q) error = %v", title, err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func names(lists []models.ListWithCount) []string {
	out := make([]string, len(lists))
	for i, l := range lists {
		out[i] = l.Name
	}
	return out
}

func TestBasicRouter(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := NewBasicRouter()
	r.Use(mark("outer"), mark("inner"))
	r.Handle("get", "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		w.Write([]byte("pong"))
	}))
	r.Handle(http.MethodPost, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	t.Run("middleware order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("body = %q, want pong", rec.Body.String())
		}
		if got := strings.Join(order, ","); got != "outer,inner,handler" {
			t.Errorf("order = %s, want outer,inner,handler", got)
		}
	})

	t.Run("methods share a path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
	})

	t.Run("unregistered method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})
}

func TestPattern(t *testing.T) {
	tc := []struct{ method, path, want string }{
		{"get", "/a", "GET /a"},
		{" POST ", "/b", "POST /b"},
		{"", "/c", "/c"},
	}
	for _, tt := range tc {
		if got := Pattern(tt.method, tt.path); got != tt.want {
			t.Errorf("Pattern(%q, %q) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("request id is assigned", func(t *testing.T) {
		var seen string
		h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = RequestIDFrom(r.Context())
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("request id = %q, header = %q", seen, rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("request id is reused", func(t *testing.T) {
		h := RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get(RequestIDHeader); got != "abc" {
			t.Errorf("header = %q, want abc", got)
		}
	})

	t.Run("logger records status", func(t *testing.T) {
		var buf strings.Builder
		h := Logger(shared.NewLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))
		if !strings.Contains(buf.String(), "418") || !strings.Contains(buf.String(), "/brew") {
			t.Errorf("log = %q, want status and path", buf.String())
		}
	})

	t.Run("recoverer", func(t *testing.T) {
		h := Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tc := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", shared.ErrListNotFound), http.StatusNotFound},
		{shared.ErrItemNotFound, http.StatusNotFound},
		{shared.ErrReferential, http.StatusUnprocessableEntity},
		{shared.ErrFormat, http.StatusBadRequest},
		{shared.ErrInvalidArgument, http.StatusBadRequest},
		{shared.ErrImportDeclined, http.StatusConflict},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{context.Canceled, http.StatusServiceUnavailable},
		{shared.ErrStorage, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tc {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAPILists(t *testing.T) {
	f := setup(t)
	f.addList(t, "bravo", "")
	f.addList(t, "alpha", "")
	f.addList(t, "charlie", "")

	rec := f.do(t, http.MethodGet, "/api/lists", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	view := decode[ListsView](t, rec)
	if view.Mode != ordering.ModeDate {
		t.Errorf("mode = %s, want DATE", view.Mode)
	}
	if got := strings.Join(names(view.Lists), ","); got != "charlie,alpha,bravo" {
		t.Errorf("lists = %s, want charlie,alpha,bravo", got)
	}

	t.Run("sort by name", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/sort", `{"mode":"name"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		view := decode[ListsView](t, rec)
		if view.Mode != ordering.ModeName {
			t.Errorf("mode = %s, want NAME", view.Mode)
		}
		if got := strings.Join(names(view.Lists), ","); got != "alpha,bravo,charlie" {
			t.Errorf("lists = %s, want alpha,bravo,charlie", got)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/sort", `{"mode":"RANDOM"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if f.order.Mode() != ordering.ModeName {
			t.Errorf("mode changed to %s", f.order.Mode())
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/lists", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestAPIOrder(t *testing.T) {
	f := setup(t)
	a := f.addList(t, "a", "")
	b := f.addList(t, "b", "")
	c := f.addList(t, "c", "")

	if rec := f.do(t, http.MethodPut, "/api/sort", `{"mode":"CUSTOM"}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/sort status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/order", fmt.Sprintf(`{"ids":[%d,%d,%d]}`, b, c, a))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	view := decode[ListsView](t, rec)
	if got := strings.Join(names(view.Lists), ","); got != "b,c,a" {
		t.Errorf("lists = %s, want b,c,a", got)
	}

	tc := []struct {
		name string
		body string
		want int
	}{
		{"unknown id", `{"ids":[999]}`, http.StatusNotFound},
		{"duplicate id", fmt.Sprintf(`{"ids":[%d,%d]}`, a, a), http.StatusBadRequest},
		{"malformed body", `{"ids":"x"}`, http.StatusBadRequest},
		{"unknown field", `{"order":[1]}`, http.StatusBadRequest},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/order", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if msg := decode[map[string]string](t, rec)["error"]; msg == "" {
				t.Error("error body is empty")
			}
		})
	}

	if got := f.order.Ranks(); got[b] != 0 || got[c] != 1 || got[a] != 2 {
		t.Errorf("ranks = %v after rejected requests", got)
	}
}

func TestAPIItems(t *testing.T) {
	f := setup(t)
	movies := f.addList(t, "Watchlist", models.CategoryMovies)
	f.addItem(t, movies, "Cléo from 5 to 7", models.OptionalString(`{"director":"Agnès Varda","release_year":"1962"}`))
	f.addItem(t, movies, "Broken", models.OptionalString(`not json`))

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/lists/%d/items", movies), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var view struct {
		List  models.List `json:"list"`
		Items []struct {
			Title        string            `json:"title"`
			CustomFields *string           `json:"custom_fields"`
			Extras       map[string]string `json:"extras"`
			Summary      string            `json:"summary"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if view.List.Name != "Watchlist" || len(view.Items) != 2 {
		t.Fatalf("view = %+v", view)
	}

	byTitle := map[string]int{}
	for i, it := range view.Items {
		byTitle[it.Title] = i
	}
	cleo := view.Items[byTitle["Cléo from 5 to 7"]]
	if cleo.Summary != "Directed by Agnès Varda • 1962" || cleo.Extras["director"] != "Agnès Varda" {
		t.Errorf("movie item = %+v", cleo)
	}
	broken := view.Items[byTitle["Broken"]]
	if broken.Summary != "" || len(broken.Extras) != 0 {
		t.Errorf("malformed item = %+v, want empty extras", broken)
	}
	if broken.CustomFields == nil || *broken.CustomFields != "not json" {
		t.Errorf("raw payload = %v, want verbatim", broken.CustomFields)
	}

	t.Run("missing list", func(t *testing.T) {
		if rec := f.do(t, http.MethodGet, "/api/lists/999/items", ""); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		if rec := f.do(t, http.MethodGet, "/api/lists/abc/items", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestAPIExportImport(t *testing.T) {
	src := setup(t)
	groceries := src.addList(t, "Groceries", "")
	src.addItem(t, groceries, "Milk", nil)
	src.addItem(t, groceries, "Eggs", nil)

	rec := src.do(t, http.MethodGet, "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "listx-backup-") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	doc := decode[models.BackupDocument](t, rec)
	if doc.AppVersion != "test" || len(doc.Lists) != 1 || len(doc.Lists[0].Items) != 2 {
		t.Fatalf("document = %+v", doc)
	}
	backup := rec.Body.String()

	dst := setup(t)
	existing := dst.addList(t, "Groceries", "")
	dst.addItem(t, existing, "Milk", nil)

	t.Run("unconfirmed import previews", func(t *testing.T) {
		rec := dst.do(t, http.MethodPost, "/api/import", backup)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		preview := decode[ImportPreview](t, rec)
		if preview.Preview.Lists != 1 || preview.Preview.Items != 2 {
			t.Errorf("preview = %+v", preview.Preview)
		}
		items, _ := dst.repo.ItemsOfList(context.Background(), existing)
		if len(items) != 1 {
			t.Errorf("unconfirmed import wrote %d items", len(items))
		}
	})

	t.Run("confirmed import merges", func(t *testing.T) {
		rec := dst.do(t, http.MethodPost, "/api/import?confirm=true", backup)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		got := decode[tasks.ImportResult](t, rec)
		want := tasks.ImportResult{ListsCreated: 0, ListsSkipped: 1, ItemsCreated: 1, ItemsSkipped: 1}
		if got != want {
			t.Errorf("result = %+v, want %+v", got, want)
		}
	})

	t.Run("malformed document", func(t *testing.T) {
		rec := dst.do(t, http.MethodPost, "/api/import?confirm=true", `{"lists":[{"list_id":1}]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("bad confirm value", func(t *testing.T) {
		rec := dst.do(t, http.MethodPost, "/api/import?confirm=maybe", backup)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestAPIImportTooLarge(t *testing.T) {
	f := setup(t)
	api := NewAPI(f.repo, f.order, f.backups, APIOptions{Logger: shared.NewLogger(io.Discard), MaxImportBytes: 8})

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(`{"lists":[]}`)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestAPIStream(t *testing.T) {
	f := setup(t)
	f.addList(t, "first", "")

	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/lists/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := make(chan ListsView)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var v ListsView
			if json.Unmarshal([]byte(line), &v) == nil {
				select {
				case events <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	waitFor := func(want string) {
		t.Helper()
		for {
			select {
			case v, ok := <-events:
				if !ok {
					t.Fatalf("stream ended before %q appeared", want)
				}
				if strings.Contains(strings.Join(names(v.Lists), ","), want) {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("first")
	f.addList(t, "second", "")
	waitFor("second")
}
