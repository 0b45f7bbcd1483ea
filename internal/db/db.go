package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	IndexManager
	AliasManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the concrete index with exactly this name.
	// Aliases are never followed; an alias name yields ErrIndexNotFound.
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DescribeIndex(ctx context.Context, name string) (*IndexDefinition, error)
	CopyIndex(ctx context.Context, src, dst string) error
	ListIndexes(ctx context.Context) ([]string, error)
}

// AliasManager provides alias introspection and mutation.
type AliasManager interface {
	// AliasBindings returns the physical indexes reachable through name, keyed by
	// index, with the aliases that bind them. A concrete index with no aliases
	// yields an empty map. ErrIndexNotFound when name resolves to nothing.
	AliasBindings(ctx context.Context, name string) (map[string][]string, error)
	// UpdateAliases applies actions in order as one request.
	UpdateAliases(ctx context.Context, actions []AliasAction) error
}

// AliasActionType selects the alias mutation.
type AliasActionType string

const (
	// AliasAdd binds an alias to an index.
	AliasAdd AliasActionType = "add"
	// AliasRemove unbinds an alias from an index.
	AliasRemove AliasActionType = "remove"
)

// AliasAction is a single step of an alias update request.
type AliasAction struct {
	Type  AliasActionType
	Index string
	Alias string
}
