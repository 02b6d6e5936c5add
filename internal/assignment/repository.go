package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Entry is one cached assignment.
type Entry struct {
	ScopeID    string
	DeviceID   string
	Host       string
	AssignedAt time.Time
	LastUsed   *time.Time
}

// SQLiteRepository stores assignments in the assignments table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Lookup returns the cached host for a device. A miss is ("", false, nil).
func (r *SQLiteRepository) Lookup(ctx context.Context, scopeID, deviceID string) (string, bool, error) {
	if scopeID == "" || deviceID == "" {
		return "", false, ErrInvalidKey
	}

	const query = `SELECT host FROM assignments WHERE scope_id = ? AND device_id = ?`
	var host string
	err := r.db.QueryRowContext(ctx, query, scopeID, deviceID).Scan(&host)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up assignment for %s: %w", deviceID, err)
	}

	const touch = `UPDATE assignments SET last_used = ? WHERE scope_id = ? AND device_id = ?`
	if _, err := r.db.ExecContext(ctx, touch, r.stamp(), scopeID, deviceID); err != nil {
		return "", false, fmt.Errorf("touching assignment for %s: %w", deviceID, err)
	}
	return host, true, nil
}

// Store records host as the device's assignment, replacing any previous one.
func (r *SQLiteRepository) Store(ctx context.Context, scopeID, deviceID, host string) error {
	if scopeID == "" || deviceID == "" {
		return ErrInvalidKey
	}
	if host == "" {
		return ErrInvalidHost
	}

	const query = `INSERT INTO assignments (scope_id, device_id, host, assigned_at, last_used)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT (scope_id, device_id) DO UPDATE SET
			host = excluded.host,
			assigned_at = excluded.assigned_at,
			last_used = NULL`
	if _, err := r.db.ExecContext(ctx, query, scopeID, deviceID, host, r.stamp()); err != nil {
		return fmt.Errorf("storing assignment for %s: %w", deviceID, err)
	}
	return nil
}

// Forget removes the device's assignment. Forgetting a missing entry is not an error.
func (r *SQLiteRepository) Forget(ctx context.Context, scopeID, deviceID string) error {
	if scopeID == "" || deviceID == "" {
		return ErrInvalidKey
	}

	const query = `DELETE FROM assignments WHERE scope_id = ? AND device_id = ?`
	if _, err := r.db.ExecContext(ctx, query, scopeID, deviceID); err != nil {
		return fmt.Errorf("forgetting assignment for %s: %w", deviceID, err)
	}
	return nil
}

// List returns every cached assignment ordered by scope and device.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	const query = `SELECT scope_id, device_id, host, assigned_at, last_used
		FROM assignments ORDER BY scope_id, device_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			assignedAt string
			lastUsed   sql.NullString
		)
		if err := rows.Scan(&e.ScopeID, &e.DeviceID, &e.Host, &assignedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		e.AssignedAt, _ = time.Parse(time.RFC3339, assignedAt) //nolint:errcheck // Format is controlled
		if lastUsed.Valid {
			if t, err := time.Parse(time.RFC3339, lastUsed.String); err == nil {
				e.LastUsed = &t
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(time.RFC3339)
}
