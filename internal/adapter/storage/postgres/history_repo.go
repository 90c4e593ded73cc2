package postgres

import (
	"context"
	"fmt"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HistoryRepo implements ports.HistoryRepository. The table is append-only;
// rows are never updated or deleted.
type HistoryRepo struct {
	pool Pool
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(pool Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Append inserts a history entry within a database transaction.
func (r *HistoryRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.HistoryEntry) error {
	query := `INSERT INTO transaction_history (id, transaction_id, from_status, to_status, action, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		entry.ID, entry.TransactionID, entry.FromStatus, entry.ToStatus,
		entry.Action, entry.ActorID, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ListByTransaction returns a transaction's history in insertion order.
func (r *HistoryRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.HistoryEntry, error) {
	query := `SELECT id, transaction_id, from_status, to_status, action, actor_id, details, created_at
		FROM transaction_history WHERE transaction_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		e := domain.HistoryEntry{}
		err := rows.Scan(
			&e.ID, &e.TransactionID, &e.FromStatus, &e.ToStatus,
			&e.Action, &e.ActorID, &e.Details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}
