package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/indexstager/internal/db"
	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
)

// store is the consumer interface for index and alias operations (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	CopyIndex(ctx context.Context, src, dst string) error
	ListIndexes(ctx context.Context) ([]string, error)
	AliasBindings(ctx context.Context, name string) (map[string][]string, error)
	UpdateAliases(ctx context.Context, actions []db.AliasAction) error
}

// Repo implements usecase/staging.Repository on top of a db.Store.
type Repo struct {
	store store
}

// New creates an index repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Bindings returns the physical indexes name resolves to.
func (r *Repo) Bindings(ctx context.Context, name string) (alias.Bindings, error) {
	raw, err := r.store.AliasBindings(ctx, name)
	if err != nil {
		return nil, translate(fmt.Errorf("bindings of %s: %w", name, err))
	}
	b := make(alias.Bindings, len(raw))
	for idx, aliases := range raw {
		b[idx] = append([]string(nil), aliases...)
	}
	return b, nil
}

// UpdateAliases applies actions atomically, in order.
func (r *Repo) UpdateAliases(ctx context.Context, actions []alias.Action) error {
	dbActions := make([]db.AliasAction, 0, len(actions))
	for _, a := range actions {
		t, err := actionType(a.Type)
		if err != nil {
			return err
		}
		dbActions = append(dbActions, db.AliasAction{Type: t, Index: a.Index, Alias: a.Alias})
	}
	if err := r.store.UpdateAliases(ctx, dbActions); err != nil {
		return translate(fmt.Errorf("update aliases: %w", err))
	}
	return nil
}

// CreateIndex creates the index described by def.
func (r *Repo) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return translate(fmt.Errorf("create index %s: %w", def.Name, err))
	}
	return nil
}

// DeleteIndex drops the concrete index name.
func (r *Repo) DeleteIndex(ctx context.Context, name string) error {
	if err := r.store.DropIndex(ctx, name); err != nil {
		return translate(fmt.Errorf("drop index %s: %w", name, err))
	}
	return nil
}

// CopyIndex starts a copy of src into dst.
func (r *Repo) CopyIndex(ctx context.Context, src, dst string) error {
	if err := r.store.CopyIndex(ctx, src, dst); err != nil {
		return translate(fmt.Errorf("copy index %s to %s: %w", src, dst, err))
	}
	return nil
}

// ListIndexes returns every concrete index name.
func (r *Repo) ListIndexes(ctx context.Context) ([]string, error) {
	names, err := r.store.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	return names, nil
}

func actionType(t alias.ActionType) (db.AliasActionType, error) {
	switch t {
	case alias.ActionAdd:
		return db.AliasAdd, nil
	case alias.ActionRemove:
		return db.AliasRemove, nil
	default:
		return "", fmt.Errorf("unknown alias action %q", t)
	}
}

// translate maps db sentinels onto domain sentinels, keeping the original chain.
func translate(err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound), errors.Is(err, db.ErrAliasNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, db.ErrIndexExists), errors.Is(err, db.ErrAliasConflict):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	default:
		return err
	}
}
