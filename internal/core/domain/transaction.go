package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of an escrow transaction.
type TransactionStatus string

const (
	TransactionStatusCreated   TransactionStatus = "CREATED"
	TransactionStatusAccepted  TransactionStatus = "ACCEPTED"
	TransactionStatusDelivered TransactionStatus = "DELIVERED"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusDeclined  TransactionStatus = "DECLINED"
	TransactionStatusDisputed  TransactionStatus = "DISPUTED"
	TransactionStatusResolved  TransactionStatus = "RESOLVED"
)

// TransactionAction is the caller-initiated action driving a transition.
type TransactionAction string

const (
	// ActionCreate only appears in history entries; it has no edge in the
	// transition table.
	ActionCreate  TransactionAction = "CREATE"
	ActionAccept  TransactionAction = "ACCEPT"
	ActionDecline TransactionAction = "DECLINE"
	ActionDeliver TransactionAction = "DELIVER"
	ActionConfirm TransactionAction = "CONFIRM"
	ActionDispute TransactionAction = "DISPUTE"
	ActionResolve TransactionAction = "RESOLVE"
)

// Transaction represents a single escrow agreement between a buyer and a
// seller. Funds for Amount/Currency are considered held by the custody rail
// from creation until release or refund. Records are never deleted; every
// status change appends a HistoryEntry.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	BuyerID       uuid.UUID         `json:"buyer_id"`
	SellerID      uuid.UUID         `json:"seller_id"`
	Amount        int64             `json:"amount"` // In smallest currency unit
	Currency      string            `json:"currency"`
	Description   string            `json:"description"`
	Status        TransactionStatus `json:"status"`
	FundsReleased bool              `json:"funds_released"`
	RailReceiptID *string           `json:"rail_receipt_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusDeclined ||
		t.Status == TransactionStatusResolved
}

// IsParty returns true if id is the buyer or the seller.
func (t *Transaction) IsParty(id uuid.UUID) bool {
	return t.BuyerID == id || t.SellerID == id
}

// CanDispute returns true if a dispute may be raised from the current state.
func (t *Transaction) CanDispute() bool {
	return t.Status == TransactionStatusAccepted || t.Status == TransactionStatusDelivered
}

// transition describes one edge of the state graph.
type transition struct {
	from TransactionStatus
	to   TransactionStatus
}

// transitions is the complete state graph. Guards (who may perform the
// action) are enforced by the escrow service; this table only answers
// whether the edge exists.
var transitions = map[TransactionAction][]transition{
	ActionAccept:  {{TransactionStatusCreated, TransactionStatusAccepted}},
	ActionDecline: {{TransactionStatusCreated, TransactionStatusDeclined}},
	ActionDeliver: {{TransactionStatusAccepted, TransactionStatusDelivered}},
	ActionConfirm: {{TransactionStatusDelivered, TransactionStatusCompleted}},
	ActionDispute: {
		{TransactionStatusAccepted, TransactionStatusDisputed},
		{TransactionStatusDelivered, TransactionStatusDisputed},
	},
	ActionResolve: {{TransactionStatusDisputed, TransactionStatusResolved}},
}

// NextStatus returns the target status for an action from the given state,
// or false if the state graph has no such edge.
func NextStatus(from TransactionStatus, action TransactionAction) (TransactionStatus, bool) {
	for _, tr := range transitions[action] {
		if tr.from == from {
			return tr.to, true
		}
	}
	return "", false
}

// SupportedCurrencies is the fixed fiat + crypto set accepted at creation.
var SupportedCurrencies = map[string]bool{
	"USD":  true,
	"EUR":  true,
	"GBP":  true,
	"VND":  true,
	"ETH":  true,
	"BTC":  true,
	"USDC": true,
}

// ValidCurrency reports whether code is in the supported set.
func ValidCurrency(code string) bool {
	return SupportedCurrencies[code]
}
