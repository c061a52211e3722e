package sqlite

import (
	"context"
	"fmt"
)

// DestinationRepository implements repository.DestinationRepository for SQLite.
type DestinationRepository struct {
	db *DB
}

// NewDestinationRepository creates a new SQLite alert destination repository.
func NewDestinationRepository(db *DB) *DestinationRepository {
	return &DestinationRepository{db: db}
}

// List returns every known destination in subscription order.
func (r *DestinationRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `SELECT chat_id FROM alert_destinations ORDER BY created_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query destinations: %w", err)
	}
	defer rows.Close()

	var destinations []string
	for rows.Next() {
		var chatID string
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("failed to scan destination: %w", err)
		}
		destinations = append(destinations, chatID)
	}
	return destinations, rows.Err()
}

// Count returns the number of destinations.
func (r *DestinationRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_destinations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count destinations: %w", err)
	}
	return count, nil
}

// Add registers a destination. Adding an existing one is a no-op.
func (r *DestinationRepository) Add(ctx context.Context, chatID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `INSERT OR IGNORE INTO alert_destinations (chat_id) VALUES (?)`, chatID); err != nil {
		return fmt.Errorf("failed to insert destination: %w", err)
	}
	return nil
}

// Remove deletes one destination and reports whether it existed.
func (r *DestinationRepository) Remove(ctx context.Context, chatID string) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `DELETE FROM alert_destinations WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to delete destination: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// RemoveBatch deletes multiple destinations in a single transaction.
func (r *DestinationRepository) RemoveBatch(ctx context.Context, chatIDs []string) error {
	if len(chatIDs) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM alert_destinations WHERE chat_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, chatID := range chatIDs {
		if _, err := stmt.ExecContext(ctx, chatID); err != nil {
			return fmt.Errorf("failed to delete destination %s: %w", chatID, err)
		}
	}

	return tx.Commit()
}
