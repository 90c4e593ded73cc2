package postgres

import (
	"context"
	"errors"
	"fmt"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PartyRepo implements ports.PartyRepository.
type PartyRepo struct {
	pool Pool
}

// NewPartyRepo creates a new PartyRepo.
func NewPartyRepo(pool Pool) *PartyRepo {
	return &PartyRepo{pool: pool}
}

// Create inserts a new party.
func (r *PartyRepo) Create(ctx context.Context, party *domain.Party) error {
	query := `INSERT INTO parties (id, username, password_hash, display_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		party.ID, party.Username, party.PasswordHash, party.DisplayName,
		party.Status, party.CreatedAt, party.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

// GetByID fetches a party by UUID.
func (r *PartyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Party, error) {
	query := `SELECT id, username, password_hash, display_name, status, created_at, updated_at
		FROM parties WHERE id = $1`

	return r.scanParty(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername fetches a party by username.
func (r *PartyRepo) GetByUsername(ctx context.Context, username string) (*domain.Party, error) {
	query := `SELECT id, username, password_hash, display_name, status, created_at, updated_at
		FROM parties WHERE username = $1`

	return r.scanParty(r.pool.QueryRow(ctx, query, username))
}

// scanParty is a helper to scan a single row into a Party.
func (r *PartyRepo) scanParty(row pgx.Row) (*domain.Party, error) {
	p := &domain.Party{}
	err := row.Scan(
		&p.ID, &p.Username, &p.PasswordHash, &p.DisplayName,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan party: %w", err)
	}
	return p, nil
}
