// Package postgres implements job.Store on PostgreSQL using pgx/v5 with
// raw SQL. One row per job; payload and result are JSONB. SetStatus locks
// the row with SELECT ... FOR UPDATE so the forward-only check and the
// write happen atomically. Schema migrations are embedded SQL files applied
// by Migrate.
package postgres
