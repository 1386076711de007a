// package repositories persists cached audio features and run history in SQLite.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sequenced lists the tables that own a "<table>_sequence" counter row.
var sequenced = map[string]bool{
	"features": true,
	"runs":     true,
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// NextSequence increments and returns the counter of table in a single statement.
//
// Sequence numbers are the human-facing handles of rows, e.g. run #42 in `setlist history`.
func NextSequence(db *sql.DB, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("no sequence for table %q", table)
	}

	var next int
	query := `UPDATE ` + table + `_sequence SET value = value + 1 WHERE id = 1 RETURNING value`
	if err := db.QueryRow(query).Scan(&next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("sequence row for %s missing, run migrations", table)
		}
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return next, nil
}

// softDelete stamps deleted_at on a live row of table. missing is returned, wrapped, when no live row has id.
func softDelete(db *sql.DB, table, id string, missing error) error {
	result, err := db.Exec(`UPDATE `+table+` SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", missing, id)
	}
	return nil
}
