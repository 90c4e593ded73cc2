package ports

import (
	"context"
	"time"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PartyRepository defines persistence operations for party accounts.
type PartyRepository interface {
	Create(ctx context.Context, party *domain.Party) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Party, error)
	GetByUsername(ctx context.Context, username string) (*domain.Party, error)
}

// TransactionRepository defines persistence operations for escrow
// transactions. Methods accepting pgx.Tx run inside transaction blocks so a
// status change, its history entry and the released flag commit atomically.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// GetByIDForUpdate locks the row, serializing writers per transaction id.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	MarkReleased(ctx context.Context, tx pgx.Tx, id uuid.UUID, receiptID string) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	PartyID  uuid.UUID // matches buyer or seller unless Role narrows it
	Role     *string   // "buyer" or "seller"
	Status   *domain.TransactionStatus
	Currency *string
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// HistoryRepository defines the append-only transition audit log.
type HistoryRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.HistoryEntry) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.HistoryEntry, error)
}

// DisputeRepository defines persistence operations for disputes.
type DisputeRepository interface {
	Create(ctx context.Context, tx pgx.Tx, dispute *domain.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Dispute, error)
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Dispute, error)
	MarkResolved(ctx context.Context, tx pgx.Tx, id uuid.UUID, outcome domain.DisputeOutcome, resolvedAt time.Time) error
	// ListExpired returns open disputes whose deadline elapsed before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error)
}

// VoteRepository defines persistence operations for dispute ballots.
type VoteRepository interface {
	// Create inserts a vote. Returns false without error when the
	// (dispute, voter) pair already exists, so double votes lose the race
	// even across concurrent writers.
	Create(ctx context.Context, tx pgx.Tx, vote *domain.Vote) (bool, error)
	Exists(ctx context.Context, disputeID, voterID uuid.UUID) (bool, error)
	Tally(ctx context.Context, disputeID uuid.UUID) (domain.Tally, error)
}

// WalletRepository defines persistence operations for multi-sig wallets.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.MultiSigWallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MultiSigWallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MultiSigWallet, error)
	AddCosigner(ctx context.Context, tx pgx.Tx, walletID, cosignerID uuid.UUID) error
	UpdateThreshold(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, threshold int) error
	MarkUsed(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.MultiSigWallet, error)
}

// ApprovalRepository defines persistence operations for pending approvals.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *domain.PendingApproval) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingApproval, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PendingApproval, error)
	// AddApprover returns false without error when the identity already
	// approved, mirroring VoteRepository.Create.
	AddApprover(ctx context.Context, tx pgx.Tx, approvalID, approverID uuid.UUID) (bool, error)
	MarkExecuted(ctx context.Context, tx pgx.Tx, id uuid.UUID, result []byte, executedAt time.Time) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
