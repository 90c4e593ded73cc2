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

func newTestWallet(ownerID uuid.UUID, cosigners ...uuid.UUID) *domain.MultiSigWallet {
	return &domain.MultiSigWallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Cosigners: cosigners,
		Threshold: 2,
		Used:      false,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func walletTestColumns() []string {
	return []string{"id", "owner_id", "cosigners", "threshold", "used", "created_at"}
}

func walletRow(w *domain.MultiSigWallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletTestColumns()).AddRow(
		w.ID, w.OwnerID, w.Cosigners, w.Threshold, w.Used, w.CreatedAt,
	)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	wallet := newTestWallet(uuid.New(), uuid.New(), uuid.New())

	mock.ExpectExec("INSERT INTO multisig_wallets").
		WithArgs(wallet.ID, wallet.OwnerID, wallet.Cosigners, wallet.Threshold, wallet.Used, wallet.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), wallet)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	wallet := newTestWallet(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM multisig_wallets WHERE id").
		WithArgs(wallet.ID).
		WillReturnRows(walletRow(wallet))

	result, err := repo.GetByID(context.Background(), wallet.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, wallet.ID, result.ID)
	assert.Equal(t, wallet.Threshold, result.Threshold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_AddCosigner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	cosignerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE multisig_wallets SET cosigners").
		WithArgs(cosignerID, walletID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.AddCosigner(context.Background(), dbTx, walletID, cosignerID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_AddCosigner_FrozenWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	cosignerID := uuid.New()

	// used = FALSE guard matches no rows once the wallet has spent
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE multisig_wallets SET cosigners").
		WithArgs(cosignerID, walletID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.AddCosigner(context.Background(), dbTx, walletID, cosignerID)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_MarkUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE multisig_wallets SET used").
		WithArgs(walletID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkUsed(context.Background(), dbTx, walletID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_ListByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	ownerID := uuid.New()
	wallet := newTestWallet(ownerID, uuid.New())

	mock.ExpectQuery("SELECT .+ FROM multisig_wallets WHERE owner_id").
		WithArgs(ownerID).
		WillReturnRows(walletRow(wallet))

	wallets, err := repo.ListByOwner(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, wallet.ID, wallets[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
