package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DisputeRepo implements ports.DisputeRepository.
type DisputeRepo struct {
	pool Pool
}

// NewDisputeRepo creates a new DisputeRepo.
func NewDisputeRepo(pool Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

const disputeColumns = `id, transaction_id, raised_by, reason, evidence_uris,
	deadline, status, outcome, resolved_at, created_at`

// Create inserts a new dispute within a database transaction.
func (r *DisputeRepo) Create(ctx context.Context, tx pgx.Tx, dispute *domain.Dispute) error {
	query := `INSERT INTO disputes (` + disputeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		dispute.ID, dispute.TransactionID, dispute.RaisedBy, dispute.Reason, dispute.EvidenceURIs,
		dispute.Deadline, dispute.Status, dispute.Outcome, dispute.ResolvedAt, dispute.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

// GetByID fetches a dispute by UUID.
func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

	return r.scanDispute(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a dispute with a row lock so only one resolver
// finalizes it.
func (r *DisputeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`

	return r.scanDispute(tx.QueryRow(ctx, query, id))
}

// GetByTransactionID fetches the dispute attached to a transaction.
func (r *DisputeRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE transaction_id = $1`

	return r.scanDispute(r.pool.QueryRow(ctx, query, transactionID))
}

// MarkResolved finalizes a dispute with its outcome.
func (r *DisputeRepo) MarkResolved(ctx context.Context, tx pgx.Tx, id uuid.UUID, outcome domain.DisputeOutcome, resolvedAt time.Time) error {
	query := `UPDATE disputes SET status = $1, outcome = $2, resolved_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.DisputeStatusResolved, outcome, resolvedAt, id, domain.DisputeStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("mark dispute resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dispute not open: %s", id)
	}
	return nil
}

// ListExpired returns open disputes whose deadline elapsed before now.
func (r *DisputeRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes
		WHERE status = $1 AND deadline < $2 ORDER BY deadline ASC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.DisputeStatusOpen, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired disputes: %w", err)
	}
	defer rows.Close()

	var disputes []domain.Dispute
	for rows.Next() {
		d := domain.Dispute{}
		err := rows.Scan(
			&d.ID, &d.TransactionID, &d.RaisedBy, &d.Reason, &d.EvidenceURIs,
			&d.Deadline, &d.Status, &d.Outcome, &d.ResolvedAt, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dispute row: %w", err)
		}
		disputes = append(disputes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispute rows: %w", err)
	}
	return disputes, nil
}

// scanDispute is a helper to scan a single row into a Dispute.
func (r *DisputeRepo) scanDispute(row pgx.Row) (*domain.Dispute, error) {
	d := &domain.Dispute{}
	err := row.Scan(
		&d.ID, &d.TransactionID, &d.RaisedBy, &d.Reason, &d.EvidenceURIs,
		&d.Deadline, &d.Status, &d.Outcome, &d.ResolvedAt, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan dispute: %w", err)
	}
	return d, nil
}
