package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SQLiteHistoryRepository implements HistoryRepository using the
// state_history table.
type SQLiteHistoryRepository struct {
	db      *sql.DB
	now     func() time.Time
	maxRows int64
}

// NewSQLiteHistoryRepository creates a repository over an open database.
//
// Parameters:
//   - db: Open SQLite connection with the state_history table migrated
//
// Returns:
//   - *SQLiteHistoryRepository: Repository instance ready for use
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db, now: time.Now}
}

// SetMaxRows caps the table at the n most recent rows. Zero or less
// disables pruning.
func (r *SQLiteHistoryRepository) SetMaxRows(n int) {
	r.maxRows = int64(max(n, 0))
}

// Record inserts a history row for snap, then prunes rows older than
// the newest maxRows when a cap is set.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - snap: State after the change
//   - source: Origin of the change (upstream, startup)
//
// Returns:
//   - error: ErrInvalidSource for an empty source, otherwise the database error
func (r *SQLiteHistoryRepository) Record(ctx context.Context, snap Snapshot, source string) error {
	if source == "" {
		return ErrInvalidSource
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO state_history (is_on, color, source, created_at) VALUES (?, ?, ?, ?)",
		boolToInt(snap.IsOn),
		snap.Color,
		source,
		r.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	if r.maxRows == 0 {
		return nil
	}

	// AUTOINCREMENT ids never go backwards, so the newest maxRows rows
	// are exactly those above id-maxRows.
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading state history id: %w", err)
	}
	if cutoff := id - r.maxRows; cutoff > 0 {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM state_history WHERE id <= ?", cutoff); err != nil {
			return fmt.Errorf("pruning state history: %w", err)
		}
	}
	return nil
}

// List returns recent history entries, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []HistoryEntry: Entries ordered by insertion, newest first
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, is_on, color, source, created_at
		 FROM state_history
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry     HistoryEntry
			isOn      int64
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &isOn, &entry.Color, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		entry.IsOn = isOn != 0
		entry.HexColor = entry.Snapshot().HexColor()
		entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// Clear deletes every history row.
func (r *SQLiteHistoryRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM state_history")
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
