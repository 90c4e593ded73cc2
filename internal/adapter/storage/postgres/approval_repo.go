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

// ApprovalRepo implements ports.ApprovalRepository. Approvers live in a
// uuid[] column; AddApprover appends only when the identity is absent, so
// duplicates lose the race in the database.
type ApprovalRepo struct {
	pool Pool
}

// NewApprovalRepo creates a new ApprovalRepo.
func NewApprovalRepo(pool Pool) *ApprovalRepo {
	return &ApprovalRepo{pool: pool}
}

const approvalColumns = `id, wallet_id, kind, payload, proposed_by, approvers,
	status, result, executed_at, created_at`

// Create inserts a new pending approval.
func (r *ApprovalRepo) Create(ctx context.Context, approval *domain.PendingApproval) error {
	query := `INSERT INTO pending_approvals (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		approval.ID, approval.WalletID, approval.Kind, approval.Payload, approval.ProposedBy,
		approval.Approvers, approval.Status, approval.Result, approval.ExecutedAt, approval.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// GetByID fetches an approval by UUID.
func (r *ApprovalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM pending_approvals WHERE id = $1`

	return r.scanApproval(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an approval with a row lock.
func (r *ApprovalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PendingApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM pending_approvals WHERE id = $1 FOR UPDATE`

	return r.scanApproval(tx.QueryRow(ctx, query, id))
}

// AddApprover appends an identity to the approver set. Returns false when
// the identity already approved. The column is coalesced because
// `x = ANY(NULL)` is NULL, which would filter out a row whose approver set
// was ever stored as NULL.
func (r *ApprovalRepo) AddApprover(ctx context.Context, tx pgx.Tx, approvalID, approverID uuid.UUID) (bool, error) {
	query := `UPDATE pending_approvals SET approvers = array_append(COALESCE(approvers, '{}'), $1)
		WHERE id = $2 AND status = $3 AND NOT ($1 = ANY(COALESCE(approvers, '{}')))`

	tag, err := tx.Exec(ctx, query, approverID, approvalID, domain.ApprovalStatusPending)
	if err != nil {
		return false, fmt.Errorf("add approver: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkExecuted finalizes an approval with the operation result.
func (r *ApprovalRepo) MarkExecuted(ctx context.Context, tx pgx.Tx, id uuid.UUID, result []byte, executedAt time.Time) error {
	query := `UPDATE pending_approvals SET status = $1, result = $2, executed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.ApprovalStatusExecuted, result, executedAt, id, domain.ApprovalStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark approval executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("approval not pending: %s", id)
	}
	return nil
}

// scanApproval is a helper to scan a single row into a PendingApproval.
func (r *ApprovalRepo) scanApproval(row pgx.Row) (*domain.PendingApproval, error) {
	a := &domain.PendingApproval{}
	err := row.Scan(
		&a.ID, &a.WalletID, &a.Kind, &a.Payload, &a.ProposedBy,
		&a.Approvers, &a.Status, &a.Result, &a.ExecutedAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan approval: %w", err)
	}
	return a, nil
}
