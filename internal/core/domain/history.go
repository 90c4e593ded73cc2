package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry records one applied transition of a transaction. Entries are
// append-only and written in the same database transaction as the status
// change, so the audit trail can never diverge from the ledger.
type HistoryEntry struct {
	ID            uuid.UUID         `json:"id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	FromStatus    TransactionStatus `json:"from_status"`
	ToStatus      TransactionStatus `json:"to_status"`
	Action        TransactionAction `json:"action"`
	ActorID       uuid.UUID         `json:"actor_id"`
	Details       string            `json:"details,omitempty"` // JSON string
	CreatedAt     time.Time         `json:"created_at"`
}
