// Package store selects the job.Store backend for a process.
//
// Open picks a backend from the URL scheme, probes it once, and reports
// what it ended up with in a [Selection]. An empty URL, an unknown scheme
// or an unreachable server all fall back to the in-memory store. The
// fallback is logged and flagged so health endpoints can surface it.
//
// # Available Backends
//
//   - store/memory: in-memory store, the fallback and test fake
//   - store/redis: Redis, selected by redis:// and rediss://
//   - store/postgres: PostgreSQL via pgx/v5, selected by postgres:// and postgresql://
//
// # Usage
//
//	sel := store.Open(ctx, cfg.StoreURL(), store.WithLogger(logger))
//	defer sel.Store.Close()
//	if sel.Degraded {
//	    // readiness reports the fallback
//	}
package store
