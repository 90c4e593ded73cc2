package postgres

import (
	"context"
	"errors"
	"fmt"

	"cross-border-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, owner_id, cosigners, threshold, used, created_at`

// Create inserts a new multi-sig wallet.
func (r *WalletRepo) Create(ctx context.Context, wallet *domain.MultiSigWallet) error {
	query := `INSERT INTO multisig_wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		wallet.ID, wallet.OwnerID, wallet.Cosigners, wallet.Threshold, wallet.Used, wallet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MultiSigWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM multisig_wallets WHERE id = $1`

	return r.scanWallet(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a wallet with a row lock so configuration and
// spends serialize per wallet.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MultiSigWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM multisig_wallets WHERE id = $1 FOR UPDATE`

	return r.scanWallet(tx.QueryRow(ctx, query, id))
}

// AddCosigner appends a cosigner to the wallet's signer set.
func (r *WalletRepo) AddCosigner(ctx context.Context, tx pgx.Tx, walletID, cosignerID uuid.UUID) error {
	query := `UPDATE multisig_wallets SET cosigners = array_append(cosigners, $1)
		WHERE id = $2 AND used = FALSE AND NOT ($1 = ANY(cosigners))`

	tag, err := tx.Exec(ctx, query, cosignerID, walletID)
	if err != nil {
		return fmt.Errorf("add cosigner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet frozen or cosigner present: %s", walletID)
	}
	return nil
}

// UpdateThreshold changes the wallet's required approval count.
func (r *WalletRepo) UpdateThreshold(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, threshold int) error {
	query := `UPDATE multisig_wallets SET threshold = $1 WHERE id = $2 AND used = FALSE`

	tag, err := tx.Exec(ctx, query, threshold, walletID)
	if err != nil {
		return fmt.Errorf("update threshold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet frozen or not found: %s", walletID)
	}
	return nil
}

// MarkUsed freezes the wallet's configuration after its first spend.
func (r *WalletRepo) MarkUsed(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) error {
	query := `UPDATE multisig_wallets SET used = TRUE WHERE id = $1`

	tag, err := tx.Exec(ctx, query, walletID)
	if err != nil {
		return fmt.Errorf("mark wallet used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// ListByOwner returns wallets owned by a party.
func (r *WalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.MultiSigWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM multisig_wallets WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.MultiSigWallet
	for rows.Next() {
		w := domain.MultiSigWallet{}
		err := rows.Scan(&w.ID, &w.OwnerID, &w.Cosigners, &w.Threshold, &w.Used, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// scanWallet is a helper to scan a single row into a MultiSigWallet.
func (r *WalletRepo) scanWallet(row pgx.Row) (*domain.MultiSigWallet, error) {
	w := &domain.MultiSigWallet{}
	err := row.Scan(&w.ID, &w.OwnerID, &w.Cosigners, &w.Threshold, &w.Used, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
