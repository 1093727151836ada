package tasks

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/repositories"
	"github.com/desertthunder/listx/internal/shared"
	tu "github.com/desertthunder/listx/internal/testing"
)

func setupTestRepo(t *testing.T) *repositories.Repository {
	t.Helper()
	repo := repositories.New(tu.MustOpenDB(t, shared.DriverCGO))
	t.Cleanup(repo.Close)
	return repo
}

func newTestEngine(t *testing.T, repo *repositories.Repository) *BackupEngine {
	t.Helper()
	var logs bytes.Buffer
	return NewBackupEngine(repo, "1.0.0", shared.NewLogger(&logs))
}

type seedItem struct {
	title   string
	notes   string
	done    bool
	payload string
}

func seed(t *testing.T, repo *repositories.Repository, name, category string, items ...seedItem) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := repo.InsertList(ctx, name, category)
	if err != nil {
		t.Fatalf("failed to insert list: %v", err)
	}
	for _, it := range items {
		_, err := repo.InsertItem(ctx, models.Item{
			ListID:       id,
			Title:        it.title,
			Notes:        models.OptionalString(it.notes),
			Done:         it.done,
			CustomFields: models.OptionalString(it.payload),
		})
		if err != nil {
			t.Fatalf("failed to insert item: %v", err)
		}
	}
	return id
}

func exportDoc(t *testing.T, e *BackupEngine) (*models.BackupDocument, string) {
	t.Helper()
	var buf bytes.Buffer
	if _, err := e.Export(context.Background(), &buf, nil); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	raw := buf.String()
	doc, err := ParseBackup(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseBackup() error = %v", err)
	}
	return doc, raw
}

// fingerprint describes the store content without ids.
func fingerprint(t *testing.T, repo *repositories.Repository) []string {
	t.Helper()
	snap, err := repo.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	var out []string
	for _, li := range snap {
		out = append(out, "list|"+li.List.Name+"|"+li.List.Category+"|"+li.List.CreatedAt.Format(time.RFC3339Nano))
		for _, it := range li.Items {
			notes, payload := "<nil>", "<nil>"
			if it.Notes != nil {
				notes = *it.Notes
			}
			if it.CustomFields != nil {
				payload = *it.CustomFields
			}
			out = append(out, strings.Join([]string{
				"item", li.List.Name, it.Title, notes, payload,
				shared.DoneMark(it.Done), it.CreatedAt.Format(time.RFC3339Nano),
			}, "|"))
		}
	}
	sort.Strings(out)
	return out
}

func seedLibrary(t *testing.T, repo *repositories.Repository) {
	t.Helper()
	seed(t, repo, "Groceries", models.CategoryGeneric,
		seedItem{title: "Milk"},
		seedItem{title: "Eggs", notes: "a dozen", done: true},
	)
	seed(t, repo, "Watchlist", models.CategoryMovies,
		seedItem{title: "Stalker", payload: `{"director":"Andrei Tarkovsky","release_year":"1979"}`},
		seedItem{title: "Broken", payload: `{not json`},
	)
	seed(t, repo, "Empty", "Board Games")
}

func TestExport(t *testing.T) {
	repo := setupTestRepo(t)
	seedLibrary(t, repo)
	e := newTestEngine(t, repo)

	progress := make(chan ProgressUpdate, 10)
	var buf bytes.Buffer
	result, err := e.Export(context.Background(), &buf, progress)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Lists != 3 || result.Items != 4 {
		t.Errorf("unexpected counts %+v", result)
	}
	close(progress)
	var phases []string
	for u := range progress {
		phases = append(phases, u.Phase.String())
	}
	if want := []string{"read_snapshot", "write_document"}; !reflect.DeepEqual(phases, want) {
		t.Errorf("progress phases = %v, want %v", phases, want)
	}

	out := buf.String()
	for _, want := range []string{
		`"exportDate": `,
		`"appVersion": "1.0.0"`,
		`"list_category_type": "Movies"`,
		`"item_notes": ""`,
		`"custom_fields": "{not json"`,
		`"custom_fields": "{\"director\":\"Andrei Tarkovsky\",\"release_year\":\"1979\"}"`,
		`"item_status": true`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %s\n%s", want, out)
		}
	}

	t.Run("Write failure", func(t *testing.T) {
		if _, err := e.Export(context.Background(), &tu.FWriter{}, nil); err == nil {
			t.Error("expected error from failing writer")
		}
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent on the same store", func(t *testing.T) {
		repo := setupTestRepo(t)
		seedLibrary(t, repo)
		e := newTestEngine(t, repo)
		before := fingerprint(t, repo)

		doc, _ := exportDoc(t, e)
		result, err := e.Import(ctx, doc, AutoConfirm, nil)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}

		want := &ImportResult{ListsSkipped: 3, ItemsSkipped: 4}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Import() = %+v, want %+v", result, want)
		}
		if after := fingerprint(t, repo); !reflect.DeepEqual(before, after) {
			t.Errorf("store changed:\nbefore %v\nafter  %v", before, after)
		}
	})

	t.Run("Round trip into an empty store", func(t *testing.T) {
		source := setupTestRepo(t)
		seedLibrary(t, source)
		doc, _ := exportDoc(t, newTestEngine(t, source))

		target := setupTestRepo(t)
		e := newTestEngine(t, target)
		result, err := e.Import(ctx, doc, AutoConfirm, nil)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}

		want := &ImportResult{ListsCreated: 3, ItemsCreated: 4}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Import() = %+v, want %+v", result, want)
		}
		if got, want := fingerprint(t, target), fingerprint(t, source); !reflect.DeepEqual(got, want) {
			t.Errorf("round trip lost data:\ngot  %v\nwant %v", got, want)
		}
	})

	t.Run("Merge into existing list", func(t *testing.T) {
		repo := setupTestRepo(t)
		groceries := seed(t, repo, "Groceries", models.CategoryGeneric, seedItem{title: "Milk"})
		e := newTestEngine(t, repo)

		doc, err := ParseBackup(strings.NewReader(`{
			"exportDate": 1700000000000,
			"appVersion": "1.0.0",
			"lists": [{
				"list_id": 99, "list_name": "Groceries", "list_category_type": "Generic",
				"creation_date": 1700000000000,
				"items": [
					{"item_id": 1, "item_title": "Milk", "item_notes": "", "item_status": false, "creation_date": 1700000000000, "custom_fields": ""},
					{"item_id": 2, "item_title": "Eggs", "item_notes": "", "item_status": false, "creation_date": 1700000000001, "custom_fields": ""}
				]
			}]
		}`))
		if err != nil {
			t.Fatalf("ParseBackup() error = %v", err)
		}

		result, err := e.Import(ctx, doc, AutoConfirm, nil)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		want := &ImportResult{ListsSkipped: 1, ItemsCreated: 1, ItemsSkipped: 1}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Import() = %+v, want %+v", result, want)
		}

		items, _ := repo.ItemsOfList(ctx, groceries)
		titles := map[string]bool{}
		for _, it := range items {
			titles[it.Title] = true
			if it.Notes != nil || it.CustomFields != nil {
				t.Errorf("empty strings should import as absent: %+v", it)
			}
		}
		if len(items) != 2 || !titles["Milk"] || !titles["Eggs"] {
			t.Errorf("unexpected items %v", titles)
		}
		if lists, _ := repo.AllLists(ctx); len(lists) != 1 {
			t.Errorf("expected no new list, got %d lists", len(lists))
		}
	})

	t.Run("Matching is exact", func(t *testing.T) {
		repo := setupTestRepo(t)
		seed(t, repo, "Groceries", models.CategoryGeneric, seedItem{title: "Milk"})
		e := newTestEngine(t, repo)

		doc := models.NewBackupDocument(time.Now(), "1.0.0", []models.BackupList{
			{ListName: "Groceries", Category: "Generic", Items: []models.BackupItem{{Title: "milk"}, {Title: "Milk "}}},
			{ListName: "groceries", Category: "Generic", Items: []models.BackupItem{{Title: "Milk"}}},
		})

		result, err := e.Import(ctx, doc, AutoConfirm, nil)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		want := &ImportResult{ListsCreated: 1, ListsSkipped: 1, ItemsCreated: 3}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Import() = %+v, want %+v", result, want)
		}
	})

	t.Run("Repeated names within one document", func(t *testing.T) {
		repo := setupTestRepo(t)
		e := newTestEngine(t, repo)

		doc := models.NewBackupDocument(time.Now(), "1.0.0", []models.BackupList{
			{ListName: "Trip", Category: "Generic", Items: []models.BackupItem{{Title: "Tent"}}},
			{ListName: "Trip", Category: "Generic", Items: []models.BackupItem{{Title: "Tent"}, {Title: "Stove"}, {Title: "Stove"}}},
		})

		result, err := e.Import(ctx, doc, AutoConfirm, nil)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		want := &ImportResult{ListsCreated: 2, ItemsCreated: 4}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Import() = %+v, want %+v", result, want)
		}
		if lists, _ := repo.AllLists(ctx); len(lists) != 2 {
			t.Errorf("expected 2 lists, got %d", len(lists))
		}
	})

	t.Run("Round trip keeps lists sharing a name", func(t *testing.T) {
		source := setupTestRepo(t)
		seed(t, source, "Todo", models.CategoryGeneric, seedItem{title: "Call mom", notes: "sunday"})
		seed(t, source, "Todo", "Work", seedItem{title: "Call mom"}, seedItem{title: "Ship"})
		doc, _ := exportDoc(t, newTestEngine(t, source))

		target := setupTestRepo(t)
		result, err := newTestEngine(t, target).Import(ctx, doc, AutoConfirm, nil)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}

		want := &ImportResult{ListsCreated: 2, ItemsCreated: 3}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Import() = %+v, want %+v", result, want)
		}
		if got, want := fingerprint(t, target), fingerprint(t, source); !reflect.DeepEqual(got, want) {
			t.Errorf("round trip lost data:\ngot  %v\nwant %v", got, want)
		}
	})

	t.Run("Merge keeps repeated incoming titles", func(t *testing.T) {
		repo := setupTestRepo(t)
		trip := seed(t, repo, "Trip", models.CategoryGeneric, seedItem{title: "Tent"})
		e := newTestEngine(t, repo)

		doc := models.NewBackupDocument(time.Now(), "1.0.0", []models.BackupList{
			{ListName: "Trip", Category: "Generic", Items: []models.BackupItem{{Title: "Tent"}, {Title: "Stove"}, {Title: "Stove"}}},
		})

		result, err := e.Import(ctx, doc, AutoConfirm, nil)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		want := &ImportResult{ListsSkipped: 1, ItemsCreated: 2, ItemsSkipped: 1}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Import() = %+v, want %+v", result, want)
		}
		if items, _ := repo.ItemsOfList(ctx, trip); len(items) != 3 {
			t.Errorf("expected 3 items, got %d", len(items))
		}
	})

	t.Run("Malformed payload passes through", func(t *testing.T) {
		repo := setupTestRepo(t)
		e := newTestEngine(t, repo)

		doc := models.NewBackupDocument(time.Now(), "1.0.0", []models.BackupList{
			{ListName: "Watchlist", Category: models.CategoryMovies, Items: []models.BackupItem{{Title: "Broken", CustomFields: `{not json`}}},
		})
		if _, err := e.Import(ctx, doc, AutoConfirm, nil); err != nil {
			t.Fatalf("Import() error = %v", err)
		}

		_, raw := exportDoc(t, e)
		if !strings.Contains(raw, `"custom_fields": "{not json"`) {
			t.Errorf("payload not preserved verbatim:\n%s", raw)
		}
	})

	t.Run("Confirmation gate", func(t *testing.T) {
		repo := setupTestRepo(t)
		e := newTestEngine(t, repo)

		doc := models.NewBackupDocument(time.Now(), "1.0.0", []models.BackupList{
			{ListName: "A", Category: "Generic", Items: []models.BackupItem{{Title: "1"}, {Title: "2"}}},
			{ListName: "B", Category: "Generic"},
		})

		var seen Preview
		decline := func(_ context.Context, p Preview) (bool, error) {
			seen = p
			return false, nil
		}
		if _, err := e.Import(ctx, doc, decline, nil); !errors.Is(err, shared.ErrImportDeclined) {
			t.Fatalf("expected ErrImportDeclined, got %v", err)
		}
		if seen != (Preview{Lists: 2, Items: 2}) {
			t.Errorf("unexpected preview %+v", seen)
		}
		if lists, _ := repo.AllLists(ctx); len(lists) != 0 {
			t.Errorf("declined import must not write, got %d lists", len(lists))
		}

		boom := errors.New("no terminal")
		failing := func(context.Context, Preview) (bool, error) { return false, boom }
		if _, err := e.Import(ctx, doc, failing, nil); !errors.Is(err, boom) {
			t.Errorf("expected confirmation error, got %v", err)
		}

		if _, err := e.Import(ctx, doc, nil, nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Cancellation stops before writing", func(t *testing.T) {
		repo := setupTestRepo(t)
		e := newTestEngine(t, repo)
		cctx, cancel := context.WithCancel(ctx)

		doc := models.NewBackupDocument(time.Now(), "1.0.0", []models.BackupList{
			{ListName: "A", Category: "Generic"},
		})
		cancelling := func(context.Context, Preview) (bool, error) {
			cancel()
			return true, nil
		}

		result, err := e.Import(cctx, doc, cancelling, nil)
		if err == nil {
			t.Fatal("expected error after cancellation")
		}
		if result != nil {
			t.Errorf("failed import must not report counts, got %+v", result)
		}
		if lists, _ := repo.AllLists(ctx); len(lists) != 0 {
			t.Errorf("expected no lists, got %d", len(lists))
		}
	})

	t.Run("Subscribers see one snapshot for the whole import", func(t *testing.T) {
		repo := setupTestRepo(t)
		e := newTestEngine(t, repo)
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := repo.Subscribe(sctx)
		if err != nil {
			t.Fatal(err)
		}
		<-ch

		doc := models.NewBackupDocument(time.Now(), "1.0.0", []models.BackupList{
			{ListName: "A", Category: "Generic"}, {ListName: "B", Category: "Generic"},
		})
		if _, err := e.Import(ctx, doc, AutoConfirm, nil); err != nil {
			t.Fatal(err)
		}

		select {
		case snap := <-ch:
			if len(snap) != 2 {
				t.Errorf("expected both lists in the snapshot, got %d", len(snap))
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot published")
		}
	})
}

func TestParseBackup(t *testing.T) {
	const item = `{"item_id": 1, "item_title": "Milk", "item_status": false, "creation_date": 1}`
	list := func(items string) string {
		return `{"lists": [{"list_id": 1, "list_name": "Groceries", "list_category_type": "Generic", "creation_date": 1, "items": [` + items + `]}]}`
	}

	t.Run("Valid variants", func(t *testing.T) {
		tc := []struct {
			name  string
			input string
			check func(t *testing.T, doc *models.BackupDocument)
		}{
			{
				name:  "empty lists",
				input: `{"exportDate": 5, "appVersion": "2.0", "lists": []}`,
				check: func(t *testing.T, doc *models.BackupDocument) {
					if doc.ExportDate != 5 || doc.AppVersion != "2.0" || len(doc.Lists) != 0 {
						t.Errorf("unexpected document %+v", doc)
					}
				},
			},
			{
				name:  "missing items array",
				input: `{"lists": [{"list_name": "A", "list_category_type": "Generic", "creation_date": 1}]}`,
				check: func(t *testing.T, doc *models.BackupDocument) {
					if len(doc.Lists[0].Items) != 0 {
						t.Errorf("expected no items, got %d", len(doc.Lists[0].Items))
					}
				},
			},
			{
				name:  "string status and string id",
				input: list(`{"item_id": "7", "item_title": "Milk", "item_status": "true", "creation_date": 1}`),
				check: func(t *testing.T, doc *models.BackupDocument) {
					it := doc.Lists[0].Items[0]
					if !it.Status || it.ItemID != 7 {
						t.Errorf("unexpected item %+v", it)
					}
				},
			},
			{
				name:  "null optional fields",
				input: list(`{"item_title": "Milk", "item_notes": null, "item_status": false, "creation_date": 1, "custom_fields": null}`),
				check: func(t *testing.T, doc *models.BackupDocument) {
					it := doc.Lists[0].Items[0].ToItem(1)
					if it.Notes != nil || it.CustomFields != nil {
						t.Errorf("null should be absent: %+v", it)
					}
				},
			},
			{
				name:  "payload kept verbatim",
				input: list(`{"item_title": "Milk", "item_status": false, "creation_date": 1, "custom_fields": "{not json"}`),
				check: func(t *testing.T, doc *models.BackupDocument) {
					if doc.Lists[0].Items[0].CustomFields != "{not json" {
						t.Errorf("unexpected payload %q", doc.Lists[0].Items[0].CustomFields)
					}
				},
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				doc, err := ParseBackup(strings.NewReader(tt.input))
				if err != nil {
					t.Fatalf("ParseBackup() error = %v", err)
				}
				tt.check(t, doc)
			})
		}
	})

	t.Run("Format errors", func(t *testing.T) {
		tc := []struct {
			name  string
			input string
		}{
			{"not json", `{"lists": [`},
			{"top level array", `[]`},
			{"missing lists", `{"exportDate": 1}`},
			{"null lists", `{"lists": null}`},
			{"lists not array", `{"lists": {"a": 1}}`},
			{"list not object", `{"lists": [1]}`},
			{"non integer list id", `{"lists": [{"list_id": 1.5, "list_name": "A", "list_category_type": "Generic", "creation_date": 1}]}`},
			{"string list id", `{"lists": [{"list_id": "abc", "list_name": "A", "list_category_type": "Generic", "creation_date": 1}]}`},
			{"missing list name", `{"lists": [{"list_category_type": "Generic", "creation_date": 1}]}`},
			{"empty list name", `{"lists": [{"list_name": "", "list_category_type": "Generic", "creation_date": 1}]}`},
			{"missing category", `{"lists": [{"list_name": "A", "creation_date": 1}]}`},
			{"missing creation date", `{"lists": [{"list_name": "A", "list_category_type": "Generic"}]}`},
			{"items not array", `{"lists": [{"list_name": "A", "list_category_type": "Generic", "creation_date": 1, "items": "x"}]}`},
			{"missing item title", list(`{"item_status": false, "creation_date": 1}`)},
			{"missing item status", list(`{"item_title": "Milk", "creation_date": 1}`)},
			{"bad item status", list(`{"item_title": "Milk", "item_status": "yes", "creation_date": 1}`)},
			{"missing item creation date", list(`{"item_title": "Milk", "item_status": false}`)},
			{"non integer item id", list(`{"item_id": "x", "item_title": "Milk", "item_status": false, "creation_date": 1}`)},
			{"numeric notes", list(`{"item_title": "Milk", "item_notes": 5, "item_status": false, "creation_date": 1}`)},
			{"second item broken", list(item + `, {"item_title": "Eggs"}`)},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := ParseBackup(strings.NewReader(tt.input)); !errors.Is(err, shared.ErrFormat) {
					t.Errorf("expected ErrFormat, got %v", err)
				}
			})
		}
	})

	t.Run("Read failure", func(t *testing.T) {
		if _, err := ParseBackup(&tu.FReader{}); err == nil || errors.Is(err, shared.ErrFormat) {
			t.Errorf("expected a read error, got %v", err)
		}
	})
}
