package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cross-border-escrow/internal/core/domain"
	"cross-border-escrow/internal/core/ports"
	"cross-border-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// EscrowServiceImpl implements ports.EscrowService.
type EscrowServiceImpl struct {
	txRepo        ports.TransactionRepository
	historyRepo   ports.HistoryRepository
	disputeRepo   ports.DisputeRepository
	partyRepo     ports.PartyRepository
	transactor    ports.DBTransactor
	rail          ports.PaymentRail
	events        ports.EventPublisher
	disputeWindow time.Duration
	log           zerolog.Logger
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	txRepo ports.TransactionRepository,
	historyRepo ports.HistoryRepository,
	disputeRepo ports.DisputeRepository,
	partyRepo ports.PartyRepository,
	transactor ports.DBTransactor,
	rail ports.PaymentRail,
	events ports.EventPublisher,
	disputeWindow time.Duration,
	log zerolog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		txRepo:        txRepo,
		historyRepo:   historyRepo,
		disputeRepo:   disputeRepo,
		partyRepo:     partyRepo,
		transactor:    transactor,
		rail:          rail,
		events:        events,
		disputeWindow: disputeWindow,
		log:           log,
	}
}

// Create opens a new escrow transaction on behalf of the buyer.
func (s *EscrowServiceImpl) Create(ctx context.Context, req ports.CreateEscrowRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.ValidCurrency(req.Currency) {
		return nil, apperror.ErrUnsupportedCurrency(req.Currency)
	}
	if req.BuyerID == req.SellerID {
		return nil, apperror.ErrSelfDealing()
	}

	seller, err := s.partyRepo.GetByID(ctx, req.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find seller: %w", err))
	}
	if seller == nil {
		return nil, apperror.ErrNotFound("seller")
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:          uuid.New(),
		BuyerID:     req.BuyerID,
		SellerID:    req.SellerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Status:      domain.TransactionStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	entry := &domain.HistoryEntry{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		ToStatus:      domain.TransactionStatusCreated,
		Action:        domain.ActionCreate,
		ActorID:       req.BuyerID,
		CreatedAt:     now,
	}
	if err := s.historyRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append history: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, domain.Event{
		Type:       domain.EventTransactionCreated,
		EntityID:   txn.ID,
		ActorID:    req.BuyerID,
		Payload:    map[string]any{"amount": txn.Amount, "currency": txn.Currency},
		OccurredAt: now,
	})

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("buyer_id", req.BuyerID.String()).
		Str("seller_id", req.SellerID.String()).
		Int64("amount", req.Amount).
		Str("currency", req.Currency).
		Msg("escrow transaction created")

	return txn, nil
}

// Accept transitions created -> accepted. Seller only.
func (s *EscrowServiceImpl) Accept(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error) {
	return s.transition(ctx, transactionID, actorID, domain.ActionAccept, domain.EventTransactionAccepted, sellerGuard, nil)
}

// Decline transitions created -> declined. Seller only.
func (s *EscrowServiceImpl) Decline(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error) {
	return s.transition(ctx, transactionID, actorID, domain.ActionDecline, domain.EventTransactionDeclined, sellerGuard, nil)
}

// MarkDelivered transitions accepted -> delivered. Seller only.
func (s *EscrowServiceImpl) MarkDelivered(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error) {
	return s.transition(ctx, transactionID, actorID, domain.ActionDeliver, domain.EventTransactionDelivered, sellerGuard, nil)
}

// ConfirmReceipt transitions delivered -> completed and releases the
// escrowed funds to the seller exactly once.
func (s *EscrowServiceImpl) ConfirmReceipt(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error) {
	return s.transition(ctx, transactionID, actorID, domain.ActionConfirm, domain.EventTransactionCompleted, buyerGuard, s.releaseToSeller)
}

// sellerGuard allows only the transaction's seller.
func sellerGuard(t *domain.Transaction, actorID uuid.UUID) bool {
	return t.SellerID == actorID
}

// buyerGuard allows only the transaction's buyer.
func buyerGuard(t *domain.Transaction, actorID uuid.UUID) bool {
	return t.BuyerID == actorID
}

// releaseToSeller invokes the payment rail and flags the funds as released
// within the surrounding database transaction. The rail call happens before
// commit so a timeout leaves no partial transition behind; the rail is
// idempotent per transaction id, so a retried commit cannot double-pay.
func (s *EscrowServiceImpl) releaseToSeller(ctx context.Context, dbTx pgx.Tx, t *domain.Transaction) error {
	if t.FundsReleased {
		return nil
	}
	receipt, err := s.rail.Release(ctx, t.ID, t.SellerID, t.Amount, t.Currency)
	if err != nil {
		return err
	}
	if err := s.txRepo.MarkReleased(ctx, dbTx, t.ID, receipt); err != nil {
		return apperror.InternalError(fmt.Errorf("mark released: %w", err))
	}
	t.FundsReleased = true
	t.RailReceiptID = &receipt
	return nil
}

// transition applies one state-machine edge under a row lock. Replays of an
// already-applied transition return the stored record instead of mutating
// again.
func (s *EscrowServiceImpl) transition(
	ctx context.Context,
	transactionID, actorID uuid.UUID,
	action domain.TransactionAction,
	eventType string,
	guard func(*domain.Transaction, uuid.UUID) bool,
	effect func(context.Context, pgx.Tx, *domain.Transaction) error,
) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}

	if !guard(txn, actorID) {
		return nil, apperror.ErrUnauthorizedActor()
	}

	next, ok := domain.NextStatus(txn.Status, action)
	if !ok {
		// Duplicate submission of an applied transition: return the
		// stored result rather than failing.
		if applied, target := alreadyApplied(txn.Status, action); applied {
			s.log.Debug().
				Str("tx_id", transactionID.String()).
				Str("action", string(action)).
				Str("status", string(target)).
				Msg("transition replay, returning stored transaction")
			return txn, nil
		}
		return nil, apperror.ErrInvalidState(string(txn.Status), string(action))
	}

	from := txn.Status
	if effect != nil {
		if err := effect(ctx, dbTx, txn); err != nil {
			return nil, err
		}
	}

	if err := s.txRepo.UpdateStatus(ctx, dbTx, transactionID, next); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}

	now := time.Now().UTC()
	entry := &domain.HistoryEntry{
		ID:            uuid.New(),
		TransactionID: transactionID,
		FromStatus:    from,
		ToStatus:      next,
		Action:        action,
		ActorID:       actorID,
		CreatedAt:     now,
	}
	if txn.RailReceiptID != nil {
		details, _ := json.Marshal(map[string]string{"rail_receipt_id": *txn.RailReceiptID})
		entry.Details = string(details)
	}
	if err := s.historyRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append history: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = next
	txn.UpdatedAt = now

	s.publish(ctx, domain.Event{
		Type:       eventType,
		EntityID:   transactionID,
		ActorID:    actorID,
		OccurredAt: now,
	})

	s.log.Info().
		Str("tx_id", transactionID.String()).
		Str("action", string(action)).
		Str("from", string(from)).
		Str("to", string(next)).
		Msg("escrow transition applied")

	return txn, nil
}

// alreadyApplied reports whether the action's target state is the current
// one, i.e. the caller is replaying a transition that already committed.
func alreadyApplied(current domain.TransactionStatus, action domain.TransactionAction) (bool, domain.TransactionStatus) {
	targets := map[domain.TransactionAction]domain.TransactionStatus{
		domain.ActionAccept:  domain.TransactionStatusAccepted,
		domain.ActionDecline: domain.TransactionStatusDeclined,
		domain.ActionDeliver: domain.TransactionStatusDelivered,
		domain.ActionConfirm: domain.TransactionStatusCompleted,
		domain.ActionDispute: domain.TransactionStatusDisputed,
		domain.ActionResolve: domain.TransactionStatusResolved,
	}
	target, ok := targets[action]
	return ok && current == target, target
}

// RaiseDispute transitions accepted/delivered -> disputed and opens the
// voting window. Either party may raise it.
func (s *EscrowServiceImpl) RaiseDispute(ctx context.Context, req ports.RaiseDisputeRequest) (*domain.Dispute, error) {
	if req.Reason == "" {
		return nil, apperror.Validation("dispute reason is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	if !txn.IsParty(req.ActorID) {
		return nil, apperror.ErrUnauthorizedActor()
	}

	// Replay: the transaction is already disputed, return the open dispute.
	if txn.Status == domain.TransactionStatusDisputed {
		existing, err := s.disputeRepo.GetByTransactionID(ctx, req.TransactionID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("find dispute: %w", err))
		}
		if existing != nil {
			return existing, nil
		}
	}

	if _, ok := domain.NextStatus(txn.Status, domain.ActionDispute); !ok {
		return nil, apperror.ErrInvalidState(string(txn.Status), string(domain.ActionDispute))
	}

	now := time.Now().UTC()
	dispute := &domain.Dispute{
		ID:            uuid.New(),
		TransactionID: req.TransactionID,
		RaisedBy:      req.ActorID,
		Reason:        req.Reason,
		EvidenceURIs:  req.EvidenceURIs,
		Deadline:      now.Add(s.disputeWindow),
		Status:        domain.DisputeStatusOpen,
		CreatedAt:     now,
	}

	if err := s.disputeRepo.Create(ctx, dbTx, dispute); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create dispute: %w", err))
	}
	if err := s.txRepo.UpdateStatus(ctx, dbTx, req.TransactionID, domain.TransactionStatusDisputed); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}

	details, _ := json.Marshal(map[string]any{"dispute_id": dispute.ID, "reason": req.Reason})
	entry := &domain.HistoryEntry{
		ID:            uuid.New(),
		TransactionID: req.TransactionID,
		FromStatus:    txn.Status,
		ToStatus:      domain.TransactionStatusDisputed,
		Action:        domain.ActionDispute,
		ActorID:       req.ActorID,
		Details:       string(details),
		CreatedAt:     now,
	}
	if err := s.historyRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append history: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(ctx, domain.Event{
		Type:       domain.EventDisputeOpened,
		EntityID:   dispute.ID,
		ActorID:    req.ActorID,
		Payload:    map[string]any{"transaction_id": req.TransactionID, "deadline": dispute.Deadline},
		OccurredAt: now,
	})

	s.log.Info().
		Str("tx_id", req.TransactionID.String()).
		Str("dispute_id", dispute.ID.String()).
		Time("deadline", dispute.Deadline).
		Msg("dispute opened")

	return dispute, nil
}

// Get fetches a transaction by id.
func (s *EscrowServiceImpl) Get(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	return txn, nil
}

// List fetches transactions visible to a party with filtering and pagination.
func (s *EscrowServiceImpl) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// History returns the append-only transition log of a transaction.
func (s *EscrowServiceImpl) History(ctx context.Context, transactionID uuid.UUID) ([]domain.HistoryEntry, error) {
	txn, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	entries, err := s.historyRepo.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list history: %w", err))
	}
	return entries, nil
}

// publish emits a lifecycle event, best-effort.
func (s *EscrowServiceImpl) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Msg("failed to publish event")
	}
}
