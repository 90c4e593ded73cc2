package ports

import (
	"context"
	"encoding/json"
	"time"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(partyID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	PartyID  uuid.UUID
	Username string
}

// PaymentRail is the external custody backend that actually moves funds.
// Both calls are assumed idempotent per transaction id on the rail side; the
// escrow core additionally guards them with the funds_released flag.
type PaymentRail interface {
	Release(ctx context.Context, transactionID, toPartyID uuid.UUID, amount int64, currency string) (string, error)
	Refund(ctx context.Context, transactionID, toPartyID uuid.UUID, amount int64, currency string) (string, error)
}

// EventPublisher publishes lifecycle events to subscribers (UI, audit).
// Publication happens after commit and is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// IdempotencyCache is the Redis-layer replay cache (fast path). The database
// record remains the authoritative layer.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// EscrowService drives the transaction lifecycle state machine.
type EscrowService interface {
	Create(ctx context.Context, req CreateEscrowRequest) (*domain.Transaction, error)
	Accept(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error)
	Decline(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error)
	MarkDelivered(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error)
	ConfirmReceipt(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error)
	RaiseDispute(ctx context.Context, req RaiseDisputeRequest) (*domain.Dispute, error)
	Get(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	History(ctx context.Context, transactionID uuid.UUID) ([]domain.HistoryEntry, error)
}

// CreateEscrowRequest holds validated input for escrow creation.
type CreateEscrowRequest struct {
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	Amount      int64
	Currency    string
	Description string
}

// RaiseDisputeRequest holds validated input for raising a dispute.
type RaiseDisputeRequest struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	Reason        string
	EvidenceURIs  []string
}

// DisputeService tallies votes and resolves disputes.
type DisputeService interface {
	Get(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error)
	CastVote(ctx context.Context, disputeID, voterID uuid.UUID, favorBuyer bool) (domain.Tally, error)
	Tally(ctx context.Context, disputeID uuid.UUID) (domain.Tally, error)
	// Resolve finalizes a dispute once the deadline passed or quorum was
	// reached. Idempotent: resolving a resolved dispute returns the stored
	// outcome.
	Resolve(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error)
	// SweepExpired resolves all open disputes past their deadline and
	// returns how many were finalized.
	SweepExpired(ctx context.Context) (int, error)
}

// MultiSigService enforces N-of-M approval before operations commit.
type MultiSigService interface {
	CreateWallet(ctx context.Context, req CreateWalletRequest) (*domain.MultiSigWallet, error)
	GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.MultiSigWallet, error)
	ListWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.MultiSigWallet, error)
	Propose(ctx context.Context, req ProposeRequest) (*domain.PendingApproval, error)
	Approve(ctx context.Context, approvalID, identity uuid.UUID) (*ApprovalState, error)
	Execute(ctx context.Context, approvalID, identity uuid.UUID) (*domain.PendingApproval, error)
}

// CreateWalletRequest holds validated input for wallet creation.
type CreateWalletRequest struct {
	OwnerID   uuid.UUID
	Cosigners []uuid.UUID
	Threshold int
}

// ProposeRequest holds a proposed wallet operation.
type ProposeRequest struct {
	WalletID   uuid.UUID
	ProposedBy uuid.UUID
	Kind       domain.OperationKind
	Payload    json.RawMessage
}

// ApprovalState reports the approval count after an Approve call.
type ApprovalState struct {
	Approval     *domain.PendingApproval
	ThresholdMet bool
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Party, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for party registration.
type RegisterRequest struct {
	Username    string
	Password    string
	DisplayName string
}
