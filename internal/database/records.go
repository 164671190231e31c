package database

import (
	"context"
	"fmt"
)

type record struct {
	Key     string `db:"record_key"`
	Payload string `db:"payload"`
}

// Load returns every record of the bucket. An empty bucket is not an error.
func (d *DB) Load(ctx context.Context, bucket string) (map[string][]byte, error) {
	var rows []record
	query := d.db.Rebind(`SELECT record_key, payload FROM records WHERE bucket = ?;`)
	if err := d.db.SelectContext(ctx, &rows, query, bucket); err != nil {
		return nil, fmt.Errorf("failed to query records for %s: %w", bucket, err)
	}

	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		out[r.Key] = []byte(r.Payload)
	}
	return out, nil
}

// Save replaces the bucket's records in a single transaction.
func (d *DB) Save(ctx context.Context, bucket string, records map[string][]byte) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM records WHERE bucket = ?;`), bucket); err != nil {
		return fmt.Errorf("failed to clear %s: %w", bucket, err)
	}

	insert := tx.Rebind(`INSERT INTO records (bucket, record_key, payload) VALUES (?, ?, ?);`)
	for key, payload := range records {
		if _, err := tx.ExecContext(ctx, insert, bucket, key, string(payload)); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", bucket, err)
	}
	return nil
}
