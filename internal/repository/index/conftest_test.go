package index

import (
	"context"

	"github.com/kailas-cloud/indexstager/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createIndexFn   func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn     func(ctx context.Context, name string) error
	copyIndexFn     func(ctx context.Context, src, dst string) error
	listIndexesFn   func(ctx context.Context) ([]string, error)
	aliasBindingsFn func(ctx context.Context, name string) (map[string][]string, error)
	updateAliasesFn func(ctx context.Context, actions []db.AliasAction) error
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) CopyIndex(ctx context.Context, src, dst string) error {
	if m.copyIndexFn != nil {
		return m.copyIndexFn(ctx, src, dst)
	}
	return nil
}

func (m *mockStore) ListIndexes(ctx context.Context) ([]string, error) {
	if m.listIndexesFn != nil {
		return m.listIndexesFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) AliasBindings(ctx context.Context, name string) (map[string][]string, error) {
	if m.aliasBindingsFn != nil {
		return m.aliasBindingsFn(ctx, name)
	}
	return map[string][]string{}, nil
}

func (m *mockStore) UpdateAliases(ctx context.Context, actions []db.AliasAction) error {
	if m.updateAliasesFn != nil {
		return m.updateAliasesFn(ctx, actions)
	}
	return nil
}
