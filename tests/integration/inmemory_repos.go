package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cross-border-escrow/internal/core/domain"
	"cross-border-escrow/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Party Repo ---

type inMemoryPartyRepo struct {
	mu      sync.RWMutex
	parties map[uuid.UUID]*domain.Party
}

func newInMemoryPartyRepo() *inMemoryPartyRepo {
	return &inMemoryPartyRepo{parties: make(map[uuid.UUID]*domain.Party)}
}

func (r *inMemoryPartyRepo) Create(ctx context.Context, p *domain.Party) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.parties {
		if existing.Username == p.Username {
			return fmt.Errorf("username already exists")
		}
	}
	r.parties[p.ID] = p
	return nil
}

func (r *inMemoryPartyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Party, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parties[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *inMemoryPartyRepo) GetByUsername(ctx context.Context, username string) (*domain.Party, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.parties {
		if p.Username == username {
			return p, nil
		}
	}
	return nil, nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.RailReceiptID != nil {
		r := *t.RailReceiptID
		c.RailReceiptID = &r
	}
	return &c
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[t.ID] = copyTransaction(t)
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	return copyTransaction(t), nil
}

func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryTransactionRepo) MarkReleased(ctx context.Context, tx pgx.Tx, id uuid.UUID, receiptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	if t.FundsReleased {
		return fmt.Errorf("funds already released")
	}
	t.FundsReleased = true
	t.RailReceiptID = &receiptID
	return nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		switch {
		case params.Role != nil && *params.Role == "buyer":
			if t.BuyerID != params.PartyID {
				continue
			}
		case params.Role != nil && *params.Role == "seller":
			if t.SellerID != params.PartyID {
				continue
			}
		default:
			if !t.IsParty(params.PartyID) {
				continue
			}
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Currency != nil && t.Currency != *params.Currency {
			continue
		}
		if params.From != nil && t.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && t.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, *copyTransaction(t))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	// Simple pagination
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory History Repo ---

type inMemoryHistoryRepo struct {
	mu      sync.RWMutex
	entries []domain.HistoryEntry
}

func newInMemoryHistoryRepo() *inMemoryHistoryRepo {
	return &inMemoryHistoryRepo{}
}

func (r *inMemoryHistoryRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryHistoryRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.HistoryEntry
	for _, e := range r.entries {
		if e.TransactionID == transactionID {
			result = append(result, e)
		}
	}
	return result, nil
}

// --- In-Memory Dispute Repo ---

type inMemoryDisputeRepo struct {
	mu       sync.RWMutex
	disputes map[uuid.UUID]*domain.Dispute
}

func newInMemoryDisputeRepo() *inMemoryDisputeRepo {
	return &inMemoryDisputeRepo{disputes: make(map[uuid.UUID]*domain.Dispute)}
}

func copyDispute(d *domain.Dispute) *domain.Dispute {
	c := *d
	c.EvidenceURIs = append([]string(nil), d.EvidenceURIs...)
	if d.Outcome != nil {
		o := *d.Outcome
		c.Outcome = &o
	}
	if d.ResolvedAt != nil {
		ts := *d.ResolvedAt
		c.ResolvedAt = &ts
	}
	return &c
}

func (r *inMemoryDisputeRepo) Create(ctx context.Context, tx pgx.Tx, dispute *domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disputes[dispute.ID] = copyDispute(dispute)
	return nil
}

func (r *inMemoryDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, nil
	}
	return copyDispute(d), nil
}

func (r *inMemoryDisputeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Dispute, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryDisputeRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.disputes {
		if d.TransactionID == transactionID {
			return copyDispute(d), nil
		}
	}
	return nil, nil
}

func (r *inMemoryDisputeRepo) MarkResolved(ctx context.Context, tx pgx.Tx, id uuid.UUID, outcome domain.DisputeOutcome, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return fmt.Errorf("dispute not found")
	}
	if d.Status == domain.DisputeStatusResolved {
		return fmt.Errorf("dispute already resolved")
	}
	d.Status = domain.DisputeStatusResolved
	d.Outcome = &outcome
	d.ResolvedAt = &resolvedAt
	return nil
}

func (r *inMemoryDisputeRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Dispute
	for _, d := range r.disputes {
		if d.Status == domain.DisputeStatusOpen && d.Deadline.Before(now) {
			result = append(result, *copyDispute(d))
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// --- In-Memory Vote Repo ---

type inMemoryVoteRepo struct {
	mu    sync.RWMutex
	votes map[string]*domain.Vote
}

func newInMemoryVoteRepo() *inMemoryVoteRepo {
	return &inMemoryVoteRepo{votes: make(map[string]*domain.Vote)}
}

func voteKey(disputeID, voterID uuid.UUID) string {
	return disputeID.String() + "/" + voterID.String()
}

// Create enforces one ballot per (dispute, voter) under a single lock, so
// concurrent duplicates lose deterministically like they would against the
// database unique constraint.
func (r *inMemoryVoteRepo) Create(ctx context.Context, tx pgx.Tx, vote *domain.Vote) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := voteKey(vote.DisputeID, vote.VoterID)
	if _, exists := r.votes[key]; exists {
		return false, nil
	}
	v := *vote
	r.votes[key] = &v
	return true, nil
}

func (r *inMemoryVoteRepo) Exists(ctx context.Context, disputeID, voterID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.votes[voteKey(disputeID, voterID)]
	return exists, nil
}

func (r *inMemoryVoteRepo) Tally(ctx context.Context, disputeID uuid.UUID) (domain.Tally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tally domain.Tally
	for _, v := range r.votes {
		if v.DisputeID != disputeID {
			continue
		}
		if v.FavorBuyer {
			tally.FavorBuyer++
		} else {
			tally.FavorSeller++
		}
	}
	return tally, nil
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.MultiSigWallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.MultiSigWallet)}
}

func copyWallet(w *domain.MultiSigWallet) *domain.MultiSigWallet {
	c := *w
	c.Cosigners = append([]uuid.UUID(nil), w.Cosigners...)
	return &c
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.MultiSigWallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.ID] = copyWallet(w)
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MultiSigWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	return copyWallet(w), nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MultiSigWallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) AddCosigner(ctx context.Context, tx pgx.Tx, walletID, cosignerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	if w.Used {
		return fmt.Errorf("wallet configuration frozen")
	}
	w.Cosigners = append(w.Cosigners, cosignerID)
	return nil
}

func (r *inMemoryWalletRepo) UpdateThreshold(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, threshold int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	if w.Used {
		return fmt.Errorf("wallet configuration frozen")
	}
	w.Threshold = threshold
	return nil
}

func (r *inMemoryWalletRepo) MarkUsed(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Used = true
	return nil
}

func (r *inMemoryWalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.MultiSigWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.MultiSigWallet
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			result = append(result, *copyWallet(w))
		}
	}
	return result, nil
}

// --- In-Memory Approval Repo ---

type inMemoryApprovalRepo struct {
	mu        sync.RWMutex
	approvals map[uuid.UUID]*domain.PendingApproval
}

func newInMemoryApprovalRepo() *inMemoryApprovalRepo {
	return &inMemoryApprovalRepo{approvals: make(map[uuid.UUID]*domain.PendingApproval)}
}

func copyApproval(a *domain.PendingApproval) *domain.PendingApproval {
	c := *a
	c.Approvers = append([]uuid.UUID(nil), a.Approvers...)
	c.Payload = append([]byte(nil), a.Payload...)
	c.Result = append([]byte(nil), a.Result...)
	if a.ExecutedAt != nil {
		ts := *a.ExecutedAt
		c.ExecutedAt = &ts
	}
	return &c
}

func (r *inMemoryApprovalRepo) Create(ctx context.Context, approval *domain.PendingApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvals[approval.ID] = copyApproval(approval)
	return nil
}

func (r *inMemoryApprovalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingApproval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.approvals[id]
	if !ok {
		return nil, nil
	}
	return copyApproval(a), nil
}

func (r *inMemoryApprovalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PendingApproval, error) {
	return r.GetByID(ctx, id)
}

// AddApprover mirrors the vote repo: duplicates lose under a single lock.
func (r *inMemoryApprovalRepo) AddApprover(ctx context.Context, tx pgx.Tx, approvalID, approverID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.approvals[approvalID]
	if !ok {
		return false, fmt.Errorf("approval not found")
	}
	if a.HasApproved(approverID) {
		return false, nil
	}
	a.Approvers = append(a.Approvers, approverID)
	return true, nil
}

func (r *inMemoryApprovalRepo) MarkExecuted(ctx context.Context, tx pgx.Tx, id uuid.UUID, result []byte, executedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.approvals[id]
	if !ok {
		return fmt.Errorf("approval not found")
	}
	if a.Status != domain.ApprovalStatusPending {
		return fmt.Errorf("approval already executed")
	}
	a.Status = domain.ApprovalStatusExecuted
	a.Result = append([]byte(nil), result...)
	a.ExecutedAt = &executedAt
	return nil
}

// --- Fake Payment Rail ---

// fakeRail records fund movements instead of calling the custody backend.
// Receipts are deterministic per transaction id, matching the rail's
// idempotency contract.
type fakeRail struct {
	releases atomic.Int64
	refunds  atomic.Int64
}

func (r *fakeRail) Release(ctx context.Context, transactionID, toPartyID uuid.UUID, amount int64, currency string) (string, error) {
	r.releases.Add(1)
	return "rel-" + transactionID.String(), nil
}

func (r *fakeRail) Refund(ctx context.Context, transactionID, toPartyID uuid.UUID, amount int64, currency string) (string, error) {
	r.refunds.Add(1)
	return "ref-" + transactionID.String(), nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
