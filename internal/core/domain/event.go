package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types published to subscribers.
const (
	EventTransactionCreated   = "escrow.transaction.created"
	EventTransactionAccepted  = "escrow.transaction.accepted"
	EventTransactionDeclined  = "escrow.transaction.declined"
	EventTransactionDelivered = "escrow.transaction.delivered"
	EventTransactionCompleted = "escrow.transaction.completed"
	EventDisputeOpened        = "escrow.dispute.opened"
	EventDisputeVoteCast      = "escrow.dispute.vote_cast"
	EventDisputeResolved      = "escrow.dispute.resolved"
	EventWalletCreated        = "escrow.wallet.created"
	EventOperationProposed    = "escrow.wallet.operation_proposed"
	EventOperationApproved    = "escrow.wallet.operation_approved"
	EventOperationExecuted    = "escrow.wallet.operation_executed"
)

// Event is a state-change notification published after the owning database
// transaction commits. Delivery is best-effort; the ledger itself is the
// source of truth.
type Event struct {
	Type       string         `json:"type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
