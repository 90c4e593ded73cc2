package postgres

import (
	"context"
	"fmt"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// VoteRepo implements ports.VoteRepository. The primary key on
// (dispute_id, voter_id) enforces one ballot per voter; concurrent duplicate
// inserts lose the race in the database.
type VoteRepo struct {
	pool Pool
}

// NewVoteRepo creates a new VoteRepo.
func NewVoteRepo(pool Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// Create inserts a vote. Returns false when the (dispute, voter) pair
// already exists.
func (r *VoteRepo) Create(ctx context.Context, tx pgx.Tx, vote *domain.Vote) (bool, error) {
	query := `INSERT INTO dispute_votes (dispute_id, voter_id, favor_buyer, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dispute_id, voter_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query, vote.DisputeID, vote.VoterID, vote.FavorBuyer, vote.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert vote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether a voter already voted on a dispute.
func (r *VoteRepo) Exists(ctx context.Context, disputeID, voterID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM dispute_votes WHERE dispute_id = $1 AND voter_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, disputeID, voterID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check vote exists: %w", err)
	}
	return exists, nil
}

// Tally returns the vote counts for a dispute.
func (r *VoteRepo) Tally(ctx context.Context, disputeID uuid.UUID) (domain.Tally, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE favor_buyer) AS favor_buyer,
		COUNT(*) FILTER (WHERE NOT favor_buyer) AS favor_seller
		FROM dispute_votes WHERE dispute_id = $1`

	var tally domain.Tally
	if err := r.pool.QueryRow(ctx, query, disputeID).Scan(&tally.FavorBuyer, &tally.FavorSeller); err != nil {
		return domain.Tally{}, fmt.Errorf("tally votes: %w", err)
	}
	return tally, nil
}
