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

// executeCacheTTL bounds how long an executed operation stays in the Redis
// replay cache.
const executeCacheTTL = 24 * time.Hour

// MultiSigServiceImpl implements ports.MultiSigService.
type MultiSigServiceImpl struct {
	walletRepo   ports.WalletRepository
	approvalRepo ports.ApprovalRepository
	transactor   ports.DBTransactor
	rail         ports.PaymentRail
	events       ports.EventPublisher
	cache        ports.IdempotencyCache
	log          zerolog.Logger
}

// NewMultiSigService creates a new MultiSigServiceImpl.
func NewMultiSigService(
	walletRepo ports.WalletRepository,
	approvalRepo ports.ApprovalRepository,
	transactor ports.DBTransactor,
	rail ports.PaymentRail,
	events ports.EventPublisher,
	cache ports.IdempotencyCache,
	log zerolog.Logger,
) *MultiSigServiceImpl {
	return &MultiSigServiceImpl{
		walletRepo:   walletRepo,
		approvalRepo: approvalRepo,
		transactor:   transactor,
		rail:         rail,
		events:       events,
		cache:        cache,
		log:          log,
	}
}

// CreateWallet registers a wallet with its cosigner set and threshold.
func (s *MultiSigServiceImpl) CreateWallet(ctx context.Context, req ports.CreateWalletRequest) (*domain.MultiSigWallet, error) {
	now := time.Now().UTC()
	wallet := &domain.MultiSigWallet{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Cosigners: req.Cosigners,
		Threshold: req.Threshold,
		CreatedAt: now,
	}

	if wallet.HasDuplicateCosigners() {
		return nil, apperror.Validation("cosigners must be unique and must not include the owner")
	}
	if !wallet.ValidThreshold() {
		return nil, apperror.ErrInvalidThreshold()
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.publish(ctx, domain.Event{
		Type:       domain.EventWalletCreated,
		EntityID:   wallet.ID,
		ActorID:    req.OwnerID,
		Payload:    map[string]any{"threshold": wallet.Threshold, "signers": wallet.SignerCount()},
		OccurredAt: now,
	})

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner_id", req.OwnerID.String()).
		Int("threshold", wallet.Threshold).
		Int("signers", wallet.SignerCount()).
		Msg("multi-sig wallet created")

	return wallet, nil
}

// GetWallet fetches a wallet by id.
func (s *MultiSigServiceImpl) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.MultiSigWallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	return wallet, nil
}

// ListWallets returns the wallets owned by a party.
func (s *MultiSigServiceImpl) ListWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.MultiSigWallet, error) {
	wallets, err := s.walletRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}

// Propose records a state-changing operation awaiting threshold approval.
// Proposing does not imply approving; the proposer approves separately.
func (s *MultiSigServiceImpl) Propose(ctx context.Context, req ports.ProposeRequest) (*domain.PendingApproval, error) {
	wallet, err := s.walletRepo.GetByID(ctx, req.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	if !wallet.IsSigner(req.ProposedBy) {
		return nil, apperror.ErrNotASigner()
	}
	if err := validatePayload(wallet, req.Kind, req.Payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	approval := &domain.PendingApproval{
		ID:         uuid.New(),
		WalletID:   req.WalletID,
		Kind:       req.Kind,
		Payload:    req.Payload,
		ProposedBy: req.ProposedBy,
		// Empty, never nil: a nil slice would land in the uuid[] column as
		// NULL and the ANY() guard in AddApprover never matches NULL.
		Approvers: []uuid.UUID{},
		Status:    domain.ApprovalStatusPending,
		CreatedAt: now,
	}

	if err := s.approvalRepo.Create(ctx, approval); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create approval: %w", err))
	}

	s.publish(ctx, domain.Event{
		Type:       domain.EventOperationProposed,
		EntityID:   approval.ID,
		ActorID:    req.ProposedBy,
		Payload:    map[string]any{"wallet_id": req.WalletID, "kind": req.Kind},
		OccurredAt: now,
	})

	s.log.Info().
		Str("approval_id", approval.ID.String()).
		Str("wallet_id", req.WalletID.String()).
		Str("kind", string(req.Kind)).
		Msg("wallet operation proposed")

	return approval, nil
}

// validatePayload checks the operation payload against the wallet's current
// configuration. Config changes are rejected once the wallet is frozen.
func validatePayload(wallet *domain.MultiSigWallet, kind domain.OperationKind, payload json.RawMessage) error {
	switch kind {
	case domain.OpReleaseFunds:
		var p domain.ReleaseFundsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return apperror.Validation("malformed release payload")
		}
		if p.Amount <= 0 {
			return apperror.ErrInvalidAmount()
		}
		if !domain.ValidCurrency(p.Currency) {
			return apperror.ErrUnsupportedCurrency(p.Currency)
		}
	case domain.OpAddCosigner:
		if wallet.Used {
			return apperror.ErrWalletInUse()
		}
		var p domain.AddCosignerPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return apperror.Validation("malformed cosigner payload")
		}
		if wallet.IsSigner(p.CosignerID) {
			return apperror.Validation("identity is already a signer")
		}
	case domain.OpChangeThreshold:
		if wallet.Used {
			return apperror.ErrWalletInUse()
		}
		var p domain.ChangeThresholdPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return apperror.Validation("malformed threshold payload")
		}
		if p.Threshold < 1 || p.Threshold > wallet.SignerCount() {
			return apperror.ErrInvalidThreshold()
		}
	default:
		return apperror.Validation(fmt.Sprintf("unknown operation kind: %s", kind))
	}
	return nil
}

// Approve records one identity's approval of a pending operation.
func (s *MultiSigServiceImpl) Approve(ctx context.Context, approvalID, identity uuid.UUID) (*ports.ApprovalState, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	approval, err := s.approvalRepo.GetByIDForUpdate(ctx, dbTx, approvalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock approval: %w", err))
	}
	if approval == nil {
		return nil, apperror.ErrNotFound("Approval")
	}
	if approval.Status == domain.ApprovalStatusExecuted {
		return nil, apperror.ErrOperationExecuted()
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, approval.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	if !wallet.IsSigner(identity) {
		return nil, apperror.ErrNotASigner()
	}

	inserted, err := s.approvalRepo.AddApprover(ctx, dbTx, approvalID, identity)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("add approver: %w", err))
	}
	if !inserted {
		return nil, apperror.ErrAlreadyApproved()
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	approval.Approvers = append(approval.Approvers, identity)
	now := time.Now().UTC()

	s.publish(ctx, domain.Event{
		Type:       domain.EventOperationApproved,
		EntityID:   approvalID,
		ActorID:    identity,
		Payload:    map[string]any{"approvals": len(approval.Approvers), "threshold": wallet.Threshold},
		OccurredAt: now,
	})

	s.log.Info().
		Str("approval_id", approvalID.String()).
		Str("identity", identity.String()).
		Int("approvals", len(approval.Approvers)).
		Int("threshold", wallet.Threshold).
		Msg("wallet operation approved")

	return &ports.ApprovalState{
		Approval:     approval,
		ThresholdMet: len(approval.Approvers) >= wallet.Threshold,
	}, nil
}

// Execute commits an operation once the approver count reaches the wallet
// threshold. Idempotent: re-executing returns the stored result.
func (s *MultiSigServiceImpl) Execute(ctx context.Context, approvalID, identity uuid.UUID) (*domain.PendingApproval, error) {
	if cached := s.cachedExecution(ctx, approvalID); cached != nil {
		return cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	approval, err := s.approvalRepo.GetByIDForUpdate(ctx, dbTx, approvalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock approval: %w", err))
	}
	if approval == nil {
		return nil, apperror.ErrNotFound("Approval")
	}
	if approval.Status == domain.ApprovalStatusExecuted {
		s.cacheExecution(ctx, approval)
		return approval, nil
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, approval.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	if !wallet.IsSigner(identity) {
		return nil, apperror.ErrNotASigner()
	}
	if len(approval.Approvers) < wallet.Threshold {
		return nil, apperror.ErrThresholdNotMet()
	}

	result, err := s.apply(ctx, dbTx, wallet, approval)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.approvalRepo.MarkExecuted(ctx, dbTx, approvalID, result, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark executed: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	approval.Status = domain.ApprovalStatusExecuted
	approval.Result = result
	approval.ExecutedAt = &now

	s.cacheExecution(ctx, approval)

	s.publish(ctx, domain.Event{
		Type:       domain.EventOperationExecuted,
		EntityID:   approvalID,
		ActorID:    identity,
		Payload:    map[string]any{"wallet_id": wallet.ID, "kind": approval.Kind},
		OccurredAt: now,
	})

	s.log.Info().
		Str("approval_id", approvalID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("kind", string(approval.Kind)).
		Msg("wallet operation executed")

	return approval, nil
}

// apply performs the operation's side effect inside the database transaction
// and returns the stored result document.
func (s *MultiSigServiceImpl) apply(ctx context.Context, dbTx pgx.Tx, wallet *domain.MultiSigWallet, approval *domain.PendingApproval) ([]byte, error) {
	switch approval.Kind {
	case domain.OpReleaseFunds:
		var p domain.ReleaseFundsPayload
		if err := json.Unmarshal(approval.Payload, &p); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("decode release payload: %w", err))
		}
		// The rail call happens before commit: a timeout rolls the whole
		// execution back and the rail dedupes retries per transaction id.
		receipt, err := s.rail.Release(ctx, p.TransactionID, p.ToPartyID, p.Amount, p.Currency)
		if err != nil {
			return nil, err
		}
		// First spend freezes the wallet configuration.
		if !wallet.Used {
			if err := s.walletRepo.MarkUsed(ctx, dbTx, wallet.ID); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("mark wallet used: %w", err))
			}
			wallet.Used = true
		}
		return json.Marshal(map[string]string{"rail_receipt_id": receipt})

	case domain.OpAddCosigner:
		if wallet.Used {
			return nil, apperror.ErrWalletInUse()
		}
		var p domain.AddCosignerPayload
		if err := json.Unmarshal(approval.Payload, &p); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("decode cosigner payload: %w", err))
		}
		if wallet.IsSigner(p.CosignerID) {
			return nil, apperror.Validation("identity is already a signer")
		}
		if err := s.walletRepo.AddCosigner(ctx, dbTx, wallet.ID, p.CosignerID); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("add cosigner: %w", err))
		}
		return json.Marshal(map[string]any{"cosigner_id": p.CosignerID, "signers": wallet.SignerCount() + 1})

	case domain.OpChangeThreshold:
		if wallet.Used {
			return nil, apperror.ErrWalletInUse()
		}
		var p domain.ChangeThresholdPayload
		if err := json.Unmarshal(approval.Payload, &p); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("decode threshold payload: %w", err))
		}
		if p.Threshold < 1 || p.Threshold > wallet.SignerCount() {
			return nil, apperror.ErrInvalidThreshold()
		}
		if err := s.walletRepo.UpdateThreshold(ctx, dbTx, wallet.ID, p.Threshold); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update threshold: %w", err))
		}
		return json.Marshal(map[string]int{"threshold": p.Threshold})

	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown operation kind: %s", approval.Kind))
	}
}

func (s *MultiSigServiceImpl) cachedExecution(ctx context.Context, approvalID uuid.UUID) *domain.PendingApproval {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, executeCacheKey(approvalID))
	if err != nil {
		s.log.Warn().Err(err).Msg("execution cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}
	var a domain.PendingApproval
	if err := json.Unmarshal(raw, &a); err != nil {
		s.log.Warn().Err(err).Msg("corrupt execution cache entry")
		return nil
	}
	return &a
}

func (s *MultiSigServiceImpl) cacheExecution(ctx context.Context, a *domain.PendingApproval) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, executeCacheKey(a.ID), raw, executeCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("execution cache write failed")
	}
}

func executeCacheKey(approvalID uuid.UUID) string {
	return "msw:executed:" + approvalID.String()
}

func (s *MultiSigServiceImpl) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Msg("failed to publish event")
	}
}
