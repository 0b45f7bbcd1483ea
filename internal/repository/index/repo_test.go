package index

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/indexstager/internal/db"
	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
)

func TestBindings_Copies(t *testing.T) {
	raw := map[string][]string{"articles_1": {"articles"}}
	r := New(&mockStore{
		aliasBindingsFn: func(_ context.Context, _ string) (map[string][]string, error) { return raw, nil },
	})

	b, err := r.Bindings(context.Background(), "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b["articles_1"][0] = "mutated"
	if raw["articles_1"][0] != "articles" {
		t.Error("bindings share backing array with store result")
	}
}

func TestBindings_ErrorTranslation(t *testing.T) {
	transport := errors.New("conn refused")
	tests := []struct {
		name    string
		err     error
		want    error
		notWant error
	}{
		{"index not found", db.ErrIndexNotFound, domain.ErrNotFound, nil},
		{"alias not found", db.ErrAliasNotFound, domain.ErrNotFound, nil},
		{"exists", db.ErrIndexExists, domain.ErrAlreadyExists, nil},
		{"conflict", db.ErrAliasConflict, domain.ErrAlreadyExists, nil},
		{"transport", transport, transport, domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&mockStore{
				aliasBindingsFn: func(_ context.Context, _ string) (map[string][]string, error) { return nil, tc.err },
			})
			_, err := r.Bindings(context.Background(), "articles")
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, tc.err) {
				t.Errorf("original error lost: %v", err)
			}
			if tc.notWant != nil && errors.Is(err, tc.notWant) {
				t.Errorf("unexpected %v in chain", tc.notWant)
			}
		})
	}
}

func TestUpdateAliases_MapsActions(t *testing.T) {
	var got []db.AliasAction
	r := New(&mockStore{
		updateAliasesFn: func(_ context.Context, a []db.AliasAction) error {
			got = a
			return nil
		},
	})

	err := r.UpdateAliases(context.Background(), []alias.Action{
		alias.Remove("old", "articles"),
		alias.Add("new", "articles"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []db.AliasAction{
		{Type: db.AliasRemove, Index: "old", Alias: "articles"},
		{Type: db.AliasAdd, Index: "new", Alias: "articles"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("actions = %+v, want %+v", got, want)
	}
}

func TestUpdateAliases_UnknownAction(t *testing.T) {
	called := false
	r := New(&mockStore{
		updateAliasesFn: func(context.Context, []db.AliasAction) error {
			called = true
			return nil
		},
	})
	if err := r.UpdateAliases(context.Background(), []alias.Action{{Type: "swap"}}); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("store called with invalid action")
	}
}

func TestUpdateAliases_AliasMissing(t *testing.T) {
	r := New(&mockStore{
		updateAliasesFn: func(context.Context, []db.AliasAction) error {
			return &db.Error{Op: db.OpAliasDel, Err: db.ErrAliasNotFound}
		},
	})
	err := r.UpdateAliases(context.Background(), []alias.Action{alias.Remove("a", "b")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIndex(t *testing.T) {
	var dropped string
	r := New(&mockStore{
		dropIndexFn: func(_ context.Context, name string) error {
			if name == "missing" {
				return db.ErrIndexNotFound
			}
			dropped = name
			return nil
		},
	})

	if err := r.DeleteIndex(context.Background(), "articles_1"); err != nil || dropped != "articles_1" {
		t.Errorf("delete: err=%v dropped=%q", err, dropped)
	}
	if err := r.DeleteIndex(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCopyIndex(t *testing.T) {
	r := New(&mockStore{
		copyIndexFn: func(_ context.Context, src, dst string) error {
			if src != "articles" || dst != "articles-pre-staged-original" {
				t.Errorf("copy(%q, %q)", src, dst)
			}
			return db.ErrIndexExists
		},
	})
	err := r.CopyIndex(context.Background(), "articles", "articles-pre-staged-original")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestListIndexes(t *testing.T) {
	boom := errors.New("boom")
	r := New(&mockStore{
		listIndexesFn: func(context.Context) ([]string, error) { return nil, boom },
	})
	if _, err := r.ListIndexes(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}

	r = New(&mockStore{
		listIndexesFn: func(context.Context) ([]string, error) { return []string{"a", "b"}, nil },
	})
	names, err := r.ListIndexes(context.Background())
	if err != nil || !slices.Equal(names, []string{"a", "b"}) {
		t.Errorf("ListIndexes() = %v, %v", names, err)
	}
}

func TestCreateIndex(t *testing.T) {
	def := db.NewIndex("articles_20240101000000-abcd1234").Text("title").MustBuild()
	var created string
	r := New(&mockStore{
		createIndexFn: func(_ context.Context, d *db.IndexDefinition) error {
			if d.Name == "taken" {
				return db.ErrAliasConflict
			}
			created = d.Name
			return nil
		},
	})

	if err := r.CreateIndex(context.Background(), def); err != nil || created != def.Name {
		t.Errorf("create: err=%v created=%q", err, created)
	}
	taken := db.NewIndex("taken").Text("title").MustBuild()
	if err := r.CreateIndex(context.Background(), taken); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}
