package domain

import (
	"time"

	"github.com/google/uuid"
)

// PartyStatus represents the state of a party account.
type PartyStatus string

const (
	PartyStatusActive    PartyStatus = "ACTIVE"
	PartyStatusSuspended PartyStatus = "SUSPENDED"
)

// Party represents a registered buyer/seller/voter identity. Every
// state-changing operation is attributed to exactly one party; the core
// trusts the identity resolved from the session token.
type Party struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"` // Never expose
	DisplayName  string      `json:"display_name"`
	Status       PartyStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// IsActive returns true if the party account is active.
func (p *Party) IsActive() bool {
	return p.Status == PartyStatusActive
}
