package postgres

import (
	"context"
	"testing"
	"time"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVoteRepo(mock)
	vote := &domain.Vote{
		DisputeID:  uuid.New(),
		VoterID:    uuid.New(),
		FavorBuyer: true,
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dispute_votes").
		WithArgs(vote.DisputeID, vote.VoterID, vote.FavorBuyer, vote.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.Create(context.Background(), dbTx, vote)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepo_Create_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVoteRepo(mock)
	vote := &domain.Vote{
		DisputeID:  uuid.New(),
		VoterID:    uuid.New(),
		FavorBuyer: false,
		CreatedAt:  time.Now().UTC(),
	}

	// ON CONFLICT DO NOTHING affects zero rows on a duplicate ballot
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dispute_votes").
		WithArgs(vote.DisputeID, vote.VoterID, vote.FavorBuyer, vote.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.Create(context.Background(), dbTx, vote)
	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepo_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVoteRepo(mock)
	disputeID := uuid.New()
	voterID := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(disputeID, voterID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), disputeID, voterID)
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepo_Tally(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVoteRepo(mock)
	disputeID := uuid.New()

	mock.ExpectQuery("SELECT").
		WithArgs(disputeID).
		WillReturnRows(pgxmock.NewRows([]string{"favor_buyer", "favor_seller"}).AddRow(12, 9))

	tally, err := repo.Tally(context.Background(), disputeID)
	require.NoError(t, err)
	assert.Equal(t, 12, tally.FavorBuyer)
	assert.Equal(t, 9, tally.FavorSeller)
	assert.Equal(t, 21, tally.Total())
	assert.Equal(t, domain.OutcomeFavorBuyer, tally.Decide())
	assert.NoError(t, mock.ExpectationsWereMet())
}
