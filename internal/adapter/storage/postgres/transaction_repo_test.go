package postgres

import (
	"context"
	"testing"
	"time"

	"cross-border-escrow/internal/core/domain"
	"cross-border-escrow/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEscrow(buyerID, sellerID uuid.UUID) *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Transaction{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Amount:        250000,
		Currency:      "USD",
		Description:   "translation services",
		Status:        domain.TransactionStatusCreated,
		FundsReleased: false,
		RailReceiptID: nil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func escrowColumns() []string {
	return []string{"id", "buyer_id", "seller_id", "amount", "currency", "description",
		"status", "funds_released", "rail_receipt_id", "created_at", "updated_at"}
}

func escrowRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(escrowColumns()).AddRow(
		t.ID, t.BuyerID, t.SellerID, t.Amount, t.Currency, t.Description,
		t.Status, t.FundsReleased, t.RailReceiptID, t.CreatedAt, t.UpdatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestEscrow(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO escrow_transactions").
		WithArgs(
			txn.ID, txn.BuyerID, txn.SellerID, txn.Amount, txn.Currency, txn.Description,
			txn.Status, txn.FundsReleased, txn.RailReceiptID, txn.CreatedAt, txn.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestEscrow(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM escrow_transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(escrowRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, txn.Amount, result.Amount)
	assert.Equal(t, txn.Status, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM escrow_transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(escrowColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE escrow_transactions SET status").
		WithArgs(domain.TransactionStatusAccepted, pgxmock.AnyArg(), txID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), dbTx, txID, domain.TransactionStatusAccepted)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkReleased(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE escrow_transactions SET funds_released").
		WithArgs("rcpt_001", pgxmock.AnyArg(), txID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkReleased(context.Background(), dbTx, txID, "rcpt_001")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkReleased_AlreadyReleased(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txID := uuid.New()

	// funds_released = FALSE guard matches no rows on a second release
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE escrow_transactions SET funds_released").
		WithArgs("rcpt_002", pgxmock.AnyArg(), txID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkReleased(context.Background(), dbTx, txID, "rcpt_002")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	partyID := uuid.New()
	txn := newTestEscrow(partyID, uuid.New())

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(partyID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM escrow_transactions").
		WithArgs(partyID, 20, 0).
		WillReturnRows(escrowRow(txn))

	txns, total, err := repo.List(context.Background(), ports.TransactionListParams{
		PartyID:  partyID,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	partyID := uuid.New()
	role := "buyer"
	status := domain.TransactionStatusCompleted
	currency := "EUR"

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(partyID, status, currency).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM escrow_transactions").
		WithArgs(partyID, status, currency, 10, 0).
		WillReturnRows(pgxmock.NewRows(escrowColumns()))

	txns, total, err := repo.List(context.Background(), ports.TransactionListParams{
		PartyID:  partyID,
		Role:     &role,
		Status:   &status,
		Currency: &currency,
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
