package postgres

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/job"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func unavailable(op string, err error) error {
	return fmt.Errorf("sodmaster/postgres: %s: %w: %w", op, sodmaster.ErrStoreUnavailable, err)
}

// encodeDocument returns nil for a nil document so the column stores NULL.
func encodeDocument(d job.Document) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// decodeDocument keeps numbers as json.Number.
func decodeDocument(data []byte) (job.Document, error) {
	if data == nil {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var d job.Document
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return d, nil
}
