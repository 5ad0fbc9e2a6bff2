// Package resultcache caches query results over a document store.
//
// A result is stored under its fingerprint as one batch: every row of the
// batch carries the same stamp. A lookup only answers from a single batch
// that is younger than the caller's max age; rows of mixed batches, or of a
// stale batch, are reported as a miss so the caller refetches upstream.
//
// Ordinary resources share one table per resource, so storing a result
// replaces every cached row matching its condition. Virtual resources are
// parameterized query results; their rows are tagged with the fingerprint
// discriminator and only ever replaced by the same fingerprint.
//
// Basic usage:
//
//	cache, err := resultcache.Open(ctx, docstore.Config{}, registry.DefaultCategories())
//	if err != nil {
//		return err
//	}
//	defer cache.Close()
//
//	rows, ok, err := cache.Fetch(ctx, fp, 5*time.Minute)
//	if err != nil {
//		return err
//	}
//	if !ok {
//		rows = fetchUpstream(fp)
//		if err := cache.Store(ctx, rows, fp); err != nil {
//			return err
//		}
//	}
package resultcache
