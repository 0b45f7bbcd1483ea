package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexLister proves the search module answers index commands.
type IndexLister interface {
	ListIndexes(ctx context.Context) ([]string, error)
}
