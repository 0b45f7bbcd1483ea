// Package indexstager rebuilds search indexes without downtime for readers.
//
// A migration builds a fresh index under a timestamped temp name, points the
// staging alias <logical>_staged at it, then swaps the live alias onto it in
// a single alias update. Indexes the live alias used to reach are deleted
// afterwards. A live name that is still a concrete index is copied aside
// once, so it can become an alias.
//
// # One call
//
//	client, _ := indexstager.New(ctx, indexstager.WithRedis("localhost:6379", ""))
//	defer client.Close()
//	rep, err := client.Migrate(ctx, "articles", func(ctx context.Context, m *indexstager.Migration) error {
//	    if err := m.CreateTempIndex(ctx, indexstager.NewSchema("article:").Text("title")); err != nil {
//	        return err
//	    }
//	    return loadArticles(ctx, m.TempIndex())
//	})
//
// # Step by step
//
//	m, _ := client.NewMigration("articles")
//	// build and load m.TempIndex() ...
//	_ = m.Stage(ctx)
//	rep, _ := m.Promote(ctx, "")
package indexstager
