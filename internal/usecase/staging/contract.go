package staging

import (
	"context"

	"github.com/kailas-cloud/indexstager/internal/domain/alias"
)

// Repository defines the index service contract used by staging and promotion.
type Repository interface {
	// Bindings returns the physical indexes reachable through name.
	// domain.ErrNotFound when nothing resolves; empty for an unaliased concrete index.
	Bindings(ctx context.Context, name string) (alias.Bindings, error)
	// UpdateAliases applies actions in order as one atomic request.
	UpdateAliases(ctx context.Context, actions []alias.Action) error
	// DeleteIndex drops a concrete index. domain.ErrNotFound when absent.
	DeleteIndex(ctx context.Context, name string) error
	// CopyIndex starts copying src into a new index dst. Completion is observed via ListIndexes.
	CopyIndex(ctx context.Context, src, dst string) error
	ListIndexes(ctx context.Context) ([]string, error)
}
