package domain

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus represents the voting state of a dispute.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "OPEN"
	DisputeStatusResolved DisputeStatus = "RESOLVED"
)

// DisputeOutcome is the resolution of a dispute vote.
type DisputeOutcome string

const (
	OutcomeFavorBuyer  DisputeOutcome = "FAVOR_BUYER"
	OutcomeFavorSeller DisputeOutcome = "FAVOR_SELLER"
)

// Dispute is a contested transaction routed to community voting. Exactly one
// dispute exists per DISPUTED transaction. Outcome stays nil until resolved.
type Dispute struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	RaisedBy      uuid.UUID       `json:"raised_by"`
	Reason        string          `json:"reason"`
	EvidenceURIs  []string        `json:"evidence_uris,omitempty"`
	Deadline      time.Time       `json:"deadline"`
	Status        DisputeStatus   `json:"status"`
	Outcome       *DisputeOutcome `json:"outcome,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IsResolved returns true once an outcome has been recorded.
func (d *Dispute) IsResolved() bool {
	return d.Status == DisputeStatusResolved
}

// DeadlinePassed reports whether voting closed at the given instant.
func (d *Dispute) DeadlinePassed(now time.Time) bool {
	return now.After(d.Deadline)
}

// Vote is one ballot on a dispute. Uniqueness of (DisputeID, VoterID) is
// enforced by storage; a duplicate insert surfaces as AlreadyVoted.
type Vote struct {
	DisputeID  uuid.UUID `json:"dispute_id"`
	VoterID    uuid.UUID `json:"voter_id"`
	FavorBuyer bool      `json:"favor_buyer"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tally is the running vote count for a dispute.
type Tally struct {
	FavorBuyer  int `json:"favor_buyer"`
	FavorSeller int `json:"favor_seller"`
}

// Total returns the number of ballots cast.
func (t Tally) Total() int {
	return t.FavorBuyer + t.FavorSeller
}

// Decide maps a tally to an outcome. Ties favor the seller: funds are
// already escrowed and the burden of proof sits with the claimant.
func (t Tally) Decide() DisputeOutcome {
	if t.FavorBuyer > t.FavorSeller {
		return OutcomeFavorBuyer
	}
	return OutcomeFavorSeller
}
