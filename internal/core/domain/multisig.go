package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MultiSigWallet is an account whose operations require approval from a
// threshold number of designated identities. Cosigners are unique and never
// include the owner; the owner always counts as a signer.
type MultiSigWallet struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   uuid.UUID   `json:"owner_id"`
	Cosigners []uuid.UUID `json:"cosigners"`
	Threshold int         `json:"threshold"`
	Used      bool        `json:"used"` // set on first executed operation; freezes configuration
	CreatedAt time.Time   `json:"created_at"`
}

// SignerCount returns the size of the owner+cosigner set.
func (w *MultiSigWallet) SignerCount() int {
	return len(w.Cosigners) + 1
}

// IsSigner returns true if id is the owner or a cosigner.
func (w *MultiSigWallet) IsSigner(id uuid.UUID) bool {
	if id == w.OwnerID {
		return true
	}
	for _, c := range w.Cosigners {
		if c == id {
			return true
		}
	}
	return false
}

// ValidThreshold checks the invariant 1 <= t <= |cosigners|+1.
func (w *MultiSigWallet) ValidThreshold() bool {
	return w.Threshold >= 1 && w.Threshold <= w.SignerCount()
}

// HasDuplicateCosigners reports whether the cosigner set violates uniqueness
// or includes the owner.
func (w *MultiSigWallet) HasDuplicateCosigners() bool {
	seen := map[uuid.UUID]bool{w.OwnerID: true}
	for _, c := range w.Cosigners {
		if seen[c] {
			return true
		}
		seen[c] = true
	}
	return false
}

// OperationKind tags the variant of a proposed wallet operation.
type OperationKind string

const (
	OpReleaseFunds    OperationKind = "RELEASE_FUNDS"
	OpAddCosigner     OperationKind = "ADD_COSIGNER"
	OpChangeThreshold OperationKind = "CHANGE_THRESHOLD"
)

// ApprovalStatus represents the state of a pending approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusExecuted ApprovalStatus = "EXECUTED"
)

// PendingApproval references a proposed state-changing operation and collects
// approving identities. The operation commits only once the approver count
// reaches the wallet threshold; execution is idempotent and replays the
// stored result.
type PendingApproval struct {
	ID         uuid.UUID       `json:"id"`
	WalletID   uuid.UUID       `json:"wallet_id"`
	Kind       OperationKind   `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	ProposedBy uuid.UUID       `json:"proposed_by"`
	Approvers  []uuid.UUID     `json:"approvers"`
	Status     ApprovalStatus  `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	ExecutedAt *time.Time      `json:"executed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// HasApproved returns true if id already approved this operation.
func (a *PendingApproval) HasApproved(id uuid.UUID) bool {
	for _, ap := range a.Approvers {
		if ap == id {
			return true
		}
	}
	return false
}

// ReleaseFundsPayload is the payload for OpReleaseFunds.
type ReleaseFundsPayload struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ToPartyID     uuid.UUID `json:"to_party_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
}

// AddCosignerPayload is the payload for OpAddCosigner.
type AddCosignerPayload struct {
	CosignerID uuid.UUID `json:"cosigner_id"`
}

// ChangeThresholdPayload is the payload for OpChangeThreshold.
type ChangeThresholdPayload struct {
	Threshold int `json:"threshold"`
}
