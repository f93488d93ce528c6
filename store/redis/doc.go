// Package redis implements job.Store on Redis. Each job is one JSON string
// value under "<namespace>:job:<id>". Create relies on SETNX, and SetStatus
// runs a WATCH/MULTI transaction so concurrent writers never interleave a
// read and a write on the same key.
//
// The caller may hand in its own client, in which case the caller owns its
// lifecycle, or let Open build one from a redis:// URL:
//
//	s, err := redis.Open(ctx, "redis://localhost:6379/0")
//	if err != nil { ... }
//	defer s.Close()
package redis
