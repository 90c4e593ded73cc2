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
	"github.com/rs/zerolog"
)

// resolveCacheTTL bounds how long a resolved dispute stays in the Redis
// replay cache. The database row remains authoritative forever.
const resolveCacheTTL = 24 * time.Hour

// sweepBatchSize caps how many expired disputes one sweep pass finalizes.
const sweepBatchSize = 50

// DisputeServiceImpl implements ports.DisputeService.
type DisputeServiceImpl struct {
	disputeRepo ports.DisputeRepository
	voteRepo    ports.VoteRepository
	txRepo      ports.TransactionRepository
	historyRepo ports.HistoryRepository
	transactor  ports.DBTransactor
	rail        ports.PaymentRail
	events      ports.EventPublisher
	cache       ports.IdempotencyCache
	quorum      int
	log         zerolog.Logger
}

// NewDisputeService creates a new DisputeServiceImpl. quorum is the total
// vote count that closes voting before the deadline.
func NewDisputeService(
	disputeRepo ports.DisputeRepository,
	voteRepo ports.VoteRepository,
	txRepo ports.TransactionRepository,
	historyRepo ports.HistoryRepository,
	transactor ports.DBTransactor,
	rail ports.PaymentRail,
	events ports.EventPublisher,
	cache ports.IdempotencyCache,
	quorum int,
	log zerolog.Logger,
) *DisputeServiceImpl {
	return &DisputeServiceImpl{
		disputeRepo: disputeRepo,
		voteRepo:    voteRepo,
		txRepo:      txRepo,
		historyRepo: historyRepo,
		transactor:  transactor,
		rail:        rail,
		events:      events,
		cache:       cache,
		quorum:      quorum,
		log:         log,
	}
}

// Get fetches a dispute by id.
func (s *DisputeServiceImpl) Get(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error) {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get dispute: %w", err))
	}
	if d == nil {
		return nil, apperror.ErrNotFound("Dispute")
	}
	return d, nil
}

// CastVote records one ballot. One vote per voter per dispute; the unique
// constraint on (dispute_id, voter_id) makes concurrent duplicates lose the
// race in the database, not in application code.
func (s *DisputeServiceImpl) CastVote(ctx context.Context, disputeID, voterID uuid.UUID, favorBuyer bool) (domain.Tally, error) {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("get dispute: %w", err))
	}
	if d == nil {
		return domain.Tally{}, apperror.ErrNotFound("Dispute")
	}
	if d.IsResolved() {
		return domain.Tally{}, apperror.ErrDisputeResolved()
	}
	now := time.Now().UTC()
	if d.DeadlinePassed(now) {
		return domain.Tally{}, apperror.ErrDeadlinePassed()
	}

	// Fast path for repeat ballots: reject without opening a transaction.
	// Concurrent duplicates that slip past this check still lose on the
	// unique constraint below.
	voted, err := s.voteRepo.Exists(ctx, disputeID, voterID)
	if err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("check vote: %w", err))
	}
	if voted {
		return domain.Tally{}, apperror.ErrAlreadyVoted()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	inserted, err := s.voteRepo.Create(ctx, dbTx, &domain.Vote{
		DisputeID:  disputeID,
		VoterID:    voterID,
		FavorBuyer: favorBuyer,
		CreatedAt:  now,
	})
	if err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("insert vote: %w", err))
	}
	if !inserted {
		return domain.Tally{}, apperror.ErrAlreadyVoted()
	}

	if err := dbTx.Commit(ctx); err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	tally, err := s.voteRepo.Tally(ctx, disputeID)
	if err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("tally votes: %w", err))
	}

	s.publish(ctx, domain.Event{
		Type:       domain.EventDisputeVoteCast,
		EntityID:   disputeID,
		ActorID:    voterID,
		Payload:    map[string]any{"favor_buyer": tally.FavorBuyer, "favor_seller": tally.FavorSeller},
		OccurredAt: now,
	})

	s.log.Info().
		Str("dispute_id", disputeID.String()).
		Str("voter_id", voterID.String()).
		Bool("favor_buyer", favorBuyer).
		Int("total_votes", tally.Total()).
		Msg("vote cast")

	// Quorum reached: finalize without waiting for the deadline.
	if s.quorum > 0 && tally.Total() >= s.quorum {
		if _, err := s.Resolve(ctx, disputeID); err != nil {
			s.log.Warn().Err(err).
				Str("dispute_id", disputeID.String()).
				Msg("quorum reached but resolution failed, sweeper will retry")
		}
	}

	return tally, nil
}

// Tally returns the current vote counts for a dispute.
func (s *DisputeServiceImpl) Tally(ctx context.Context, disputeID uuid.UUID) (domain.Tally, error) {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("get dispute: %w", err))
	}
	if d == nil {
		return domain.Tally{}, apperror.ErrNotFound("Dispute")
	}
	tally, err := s.voteRepo.Tally(ctx, disputeID)
	if err != nil {
		return domain.Tally{}, apperror.InternalError(fmt.Errorf("tally votes: %w", err))
	}
	return tally, nil
}

// Resolve finalizes a dispute: decides the outcome from the tally, moves the
// escrowed funds over the rail exactly once, and transitions the transaction
// to resolved. Idempotent; replays return the stored outcome.
func (s *DisputeServiceImpl) Resolve(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error) {
	// Fast path: a recently resolved dispute lives in the replay cache.
	if cached := s.cachedResolution(ctx, disputeID); cached != nil {
		return cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	d, err := s.disputeRepo.GetByIDForUpdate(ctx, dbTx, disputeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock dispute: %w", err))
	}
	if d == nil {
		return nil, apperror.ErrNotFound("Dispute")
	}
	if d.IsResolved() {
		// Authoritative layer already has the outcome; backfill the cache.
		s.cacheResolution(ctx, d)
		return d, nil
	}

	tally, err := s.voteRepo.Tally(ctx, disputeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("tally votes: %w", err))
	}

	now := time.Now().UTC()
	quorumMet := s.quorum > 0 && tally.Total() >= s.quorum
	if !d.DeadlinePassed(now) && !quorumMet {
		return nil, apperror.ErrVotingOpen()
	}

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, d.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	if _, ok := domain.NextStatus(txn.Status, domain.ActionResolve); !ok {
		return nil, apperror.ErrInvalidState(string(txn.Status), string(domain.ActionResolve))
	}

	outcome := tally.Decide()
	if !txn.FundsReleased {
		receipt, err := s.moveFunds(ctx, txn, outcome)
		if err != nil {
			return nil, err
		}
		if err := s.txRepo.MarkReleased(ctx, dbTx, txn.ID, receipt); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark released: %w", err))
		}
		txn.RailReceiptID = &receipt
	}

	if err := s.disputeRepo.MarkResolved(ctx, dbTx, disputeID, outcome, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark resolved: %w", err))
	}
	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusResolved); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}

	details, _ := json.Marshal(map[string]any{
		"dispute_id":   disputeID,
		"outcome":      outcome,
		"favor_buyer":  tally.FavorBuyer,
		"favor_seller": tally.FavorSeller,
	})
	entry := &domain.HistoryEntry{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		FromStatus:    domain.TransactionStatusDisputed,
		ToStatus:      domain.TransactionStatusResolved,
		Action:        domain.ActionResolve,
		ActorID:       uuid.Nil, // System-driven transition.
		Details:       string(details),
		CreatedAt:     now,
	}
	if err := s.historyRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append history: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	d.Status = domain.DisputeStatusResolved
	d.Outcome = &outcome
	d.ResolvedAt = &now

	s.cacheResolution(ctx, d)

	s.publish(ctx, domain.Event{
		Type:     domain.EventDisputeResolved,
		EntityID: disputeID,
		Payload: map[string]any{
			"transaction_id": txn.ID,
			"outcome":        outcome,
			"favor_buyer":    tally.FavorBuyer,
			"favor_seller":   tally.FavorSeller,
		},
		OccurredAt: now,
	})

	s.log.Info().
		Str("dispute_id", disputeID.String()).
		Str("tx_id", txn.ID.String()).
		Str("outcome", string(outcome)).
		Int("favor_buyer", tally.FavorBuyer).
		Int("favor_seller", tally.FavorSeller).
		Msg("dispute resolved")

	return d, nil
}

// moveFunds routes the held amount to the winning side.
func (s *DisputeServiceImpl) moveFunds(ctx context.Context, txn *domain.Transaction, outcome domain.DisputeOutcome) (string, error) {
	if outcome == domain.OutcomeFavorBuyer {
		return s.rail.Refund(ctx, txn.ID, txn.BuyerID, txn.Amount, txn.Currency)
	}
	return s.rail.Release(ctx, txn.ID, txn.SellerID, txn.Amount, txn.Currency)
}

// SweepExpired finalizes open disputes whose deadline elapsed. Returns how
// many were resolved.
func (s *DisputeServiceImpl) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.disputeRepo.ListExpired(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list expired disputes: %w", err))
	}

	resolved := 0
	for _, d := range expired {
		if _, err := s.Resolve(ctx, d.ID); err != nil {
			s.log.Error().Err(err).
				Str("dispute_id", d.ID.String()).
				Msg("failed to resolve expired dispute")
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (s *DisputeServiceImpl) cachedResolution(ctx context.Context, disputeID uuid.UUID) *domain.Dispute {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, resolveCacheKey(disputeID))
	if err != nil {
		s.log.Warn().Err(err).Msg("resolution cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}
	var d domain.Dispute
	if err := json.Unmarshal(raw, &d); err != nil {
		s.log.Warn().Err(err).Msg("corrupt resolution cache entry")
		return nil
	}
	return &d
}

func (s *DisputeServiceImpl) cacheResolution(ctx context.Context, d *domain.Dispute) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, resolveCacheKey(d.ID), raw, resolveCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("resolution cache write failed")
	}
}

func resolveCacheKey(disputeID uuid.UUID) string {
	return "dispute:resolved:" + disputeID.String()
}

func (s *DisputeServiceImpl) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Msg("failed to publish event")
	}
}
