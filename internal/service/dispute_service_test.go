package service

import (
	"context"
	"testing"
	"time"

	"cross-border-escrow/internal/core/domain"
	"cross-border-escrow/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type disputeTestDeps struct {
	svc         *DisputeServiceImpl
	disputeRepo *mocks.MockDisputeRepository
	voteRepo    *mocks.MockVoteRepository
	txRepo      *mocks.MockTransactionRepository
	historyRepo *mocks.MockHistoryRepository
	transactor  *mocks.MockDBTransactor
	rail        *mocks.MockPaymentRail
	events      *mocks.MockEventPublisher
	cache       *mocks.MockIdempotencyCache
	ctrl        *gomock.Controller
}

func setupDisputeService(t *testing.T, quorum int) *disputeTestDeps {
	ctrl := gomock.NewController(t)
	d := &disputeTestDeps{
		disputeRepo: mocks.NewMockDisputeRepository(ctrl),
		voteRepo:    mocks.NewMockVoteRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		historyRepo: mocks.NewMockHistoryRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		rail:        mocks.NewMockPaymentRail(ctrl),
		events:      mocks.NewMockEventPublisher(ctrl),
		cache:       mocks.NewMockIdempotencyCache(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewDisputeService(
		d.disputeRepo, d.voteRepo, d.txRepo, d.historyRepo,
		d.transactor, d.rail, d.events, d.cache, quorum, zerolog.Nop(),
	)
	return d
}

func openDispute(id, txID uuid.UUID, deadline time.Time) *domain.Dispute {
	return &domain.Dispute{
		ID:            id,
		TransactionID: txID,
		RaisedBy:      uuid.New(),
		Reason:        "item not as described",
		Deadline:      deadline,
		Status:        domain.DisputeStatusOpen,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
}

// ==================== CastVote Tests ====================

func TestDisputeService_CastVote_Success(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	voterID := uuid.New()
	tx := &mockTx{}

	d.disputeRepo.EXPECT().GetByID(ctx, disputeID).
		Return(openDispute(disputeID, uuid.New(), time.Now().Add(24*time.Hour)), nil)
	d.voteRepo.EXPECT().Exists(ctx, disputeID, voterID).Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.voteRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(true, nil)
	d.voteRepo.EXPECT().Tally(ctx, disputeID).Return(domain.Tally{FavorBuyer: 3, FavorSeller: 1}, nil)
	d.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	tally, err := d.svc.CastVote(ctx, disputeID, voterID, true)
	require.NoError(t, err)
	assert.Equal(t, 3, tally.FavorBuyer)
	assert.Equal(t, 1, tally.FavorSeller)
}

func TestDisputeService_CastVote_RepeatBallot(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	voterID := uuid.New()

	d.disputeRepo.EXPECT().GetByID(ctx, disputeID).
		Return(openDispute(disputeID, uuid.New(), time.Now().Add(24*time.Hour)), nil)
	// Known repeat ballots are rejected before any transaction opens.
	d.voteRepo.EXPECT().Exists(ctx, disputeID, voterID).Return(true, nil)

	_, err := d.svc.CastVote(ctx, disputeID, voterID, true)
	assertAppError(t, err, "DSP_002")
}

func TestDisputeService_CastVote_DuplicateLosesRace(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	voterID := uuid.New()
	tx := &mockTx{}

	d.disputeRepo.EXPECT().GetByID(ctx, disputeID).
		Return(openDispute(disputeID, uuid.New(), time.Now().Add(24*time.Hour)), nil)
	// A concurrent ballot landed between the existence check and the insert.
	d.voteRepo.EXPECT().Exists(ctx, disputeID, voterID).Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// The unique constraint swallowed the insert: this voter already voted.
	d.voteRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(false, nil)

	_, err := d.svc.CastVote(ctx, disputeID, voterID, true)
	assertAppError(t, err, "DSP_002")
}

func TestDisputeService_CastVote_DeadlinePassed(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()

	d.disputeRepo.EXPECT().GetByID(ctx, disputeID).
		Return(openDispute(disputeID, uuid.New(), time.Now().Add(-time.Minute)), nil)

	_, err := d.svc.CastVote(ctx, disputeID, uuid.New(), false)
	assertAppError(t, err, "DSP_003")
}

func TestDisputeService_CastVote_AlreadyResolved(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	outcome := domain.OutcomeFavorSeller

	resolved := openDispute(disputeID, uuid.New(), time.Now().Add(24*time.Hour))
	resolved.Status = domain.DisputeStatusResolved
	resolved.Outcome = &outcome

	d.disputeRepo.EXPECT().GetByID(ctx, disputeID).Return(resolved, nil)

	_, err := d.svc.CastVote(ctx, disputeID, uuid.New(), true)
	assertAppError(t, err, "DSP_001")
}

func TestDisputeService_CastVote_NotFound(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()

	d.disputeRepo.EXPECT().GetByID(ctx, disputeID).Return(nil, nil)

	_, err := d.svc.CastVote(ctx, disputeID, uuid.New(), true)
	assertAppError(t, err, "ESC_004")
}

// ==================== Resolve Tests ====================

func TestDisputeService_Resolve_BuyerMajorityRefunds(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	txID := uuid.New()
	buyerID := uuid.New()
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, resolveCacheKey(disputeID)).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.disputeRepo.EXPECT().GetByIDForUpdate(ctx, tx, disputeID).
		Return(openDispute(disputeID, txID, time.Now().Add(-time.Hour)), nil)
	d.voteRepo.EXPECT().Tally(ctx, disputeID).Return(domain.Tally{FavorBuyer: 5, FavorSeller: 2}, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txID).Return(&domain.Transaction{
		ID:       txID,
		BuyerID:  buyerID,
		SellerID: uuid.New(),
		Amount:   100000,
		Currency: "EUR",
		Status:   domain.TransactionStatusDisputed,
	}, nil)
	d.rail.EXPECT().Refund(ctx, txID, buyerID, int64(100000), "EUR").Return("rcpt_refund", nil)
	d.txRepo.EXPECT().MarkReleased(ctx, tx, txID, "rcpt_refund").Return(nil)
	d.disputeRepo.EXPECT().MarkResolved(ctx, tx, disputeID, domain.OutcomeFavorBuyer, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, txID, domain.TransactionStatusResolved).Return(nil)
	d.historyRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(ctx, resolveCacheKey(disputeID), gomock.Any(), resolveCacheTTL).Return(nil)
	d.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Resolve(ctx, disputeID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, result.Status)
	require.NotNil(t, result.Outcome)
	assert.Equal(t, domain.OutcomeFavorBuyer, *result.Outcome)
}

func TestDisputeService_Resolve_TieFavorsSeller(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	txID := uuid.New()
	sellerID := uuid.New()
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, resolveCacheKey(disputeID)).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.disputeRepo.EXPECT().GetByIDForUpdate(ctx, tx, disputeID).
		Return(openDispute(disputeID, txID, time.Now().Add(-time.Hour)), nil)
	d.voteRepo.EXPECT().Tally(ctx, disputeID).Return(domain.Tally{FavorBuyer: 3, FavorSeller: 3}, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txID).Return(&domain.Transaction{
		ID:       txID,
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Amount:   50000,
		Currency: "USD",
		Status:   domain.TransactionStatusDisputed,
	}, nil)
	d.rail.EXPECT().Release(ctx, txID, sellerID, int64(50000), "USD").Return("rcpt_release", nil)
	d.txRepo.EXPECT().MarkReleased(ctx, tx, txID, "rcpt_release").Return(nil)
	d.disputeRepo.EXPECT().MarkResolved(ctx, tx, disputeID, domain.OutcomeFavorSeller, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, txID, domain.TransactionStatusResolved).Return(nil)
	d.historyRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(ctx, resolveCacheKey(disputeID), gomock.Any(), resolveCacheTTL).Return(nil)
	d.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Resolve(ctx, disputeID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFavorSeller, *result.Outcome)
}

func TestDisputeService_Resolve_VotingStillOpen(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, resolveCacheKey(disputeID)).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.disputeRepo.EXPECT().GetByIDForUpdate(ctx, tx, disputeID).
		Return(openDispute(disputeID, uuid.New(), time.Now().Add(24*time.Hour)), nil)
	d.voteRepo.EXPECT().Tally(ctx, disputeID).Return(domain.Tally{FavorBuyer: 2, FavorSeller: 1}, nil)

	_, err := d.svc.Resolve(ctx, disputeID)
	assertAppError(t, err, "DSP_004")
}

func TestDisputeService_Resolve_QuorumClosesEarly(t *testing.T) {
	d := setupDisputeService(t, 5)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	txID := uuid.New()
	sellerID := uuid.New()
	tx := &mockTx{}

	// Deadline is a day away but 5 total votes meet quorum.
	d.cache.EXPECT().Get(ctx, resolveCacheKey(disputeID)).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.disputeRepo.EXPECT().GetByIDForUpdate(ctx, tx, disputeID).
		Return(openDispute(disputeID, txID, time.Now().Add(24*time.Hour)), nil)
	d.voteRepo.EXPECT().Tally(ctx, disputeID).Return(domain.Tally{FavorBuyer: 1, FavorSeller: 4}, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txID).Return(&domain.Transaction{
		ID:       txID,
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Amount:   75000,
		Currency: "GBP",
		Status:   domain.TransactionStatusDisputed,
	}, nil)
	d.rail.EXPECT().Release(ctx, txID, sellerID, int64(75000), "GBP").Return("rcpt_q", nil)
	d.txRepo.EXPECT().MarkReleased(ctx, tx, txID, "rcpt_q").Return(nil)
	d.disputeRepo.EXPECT().MarkResolved(ctx, tx, disputeID, domain.OutcomeFavorSeller, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, txID, domain.TransactionStatusResolved).Return(nil)
	d.historyRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(ctx, resolveCacheKey(disputeID), gomock.Any(), resolveCacheTTL).Return(nil)
	d.events.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Resolve(ctx, disputeID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFavorSeller, *result.Outcome)
}

func TestDisputeService_Resolve_CachedReplay(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()

	cached := []byte(`{"id":"` + disputeID.String() + `","status":"RESOLVED","outcome":"FAVOR_SELLER"}`)
	d.cache.EXPECT().Get(ctx, resolveCacheKey(disputeID)).Return(cached, nil)

	// No database work at all on a cache hit.
	result, err := d.svc.Resolve(ctx, disputeID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusResolved, result.Status)
	assert.Equal(t, domain.OutcomeFavorSeller, *result.Outcome)
}

func TestDisputeService_Resolve_ReplayFromDatabase(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	outcome := domain.OutcomeFavorBuyer
	now := time.Now().UTC()
	tx := &mockTx{}

	resolved := openDispute(disputeID, uuid.New(), now.Add(-time.Hour))
	resolved.Status = domain.DisputeStatusResolved
	resolved.Outcome = &outcome
	resolved.ResolvedAt = &now

	d.cache.EXPECT().Get(ctx, resolveCacheKey(disputeID)).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.disputeRepo.EXPECT().GetByIDForUpdate(ctx, tx, disputeID).Return(resolved, nil)
	// Cache gets backfilled; no rail call, no second resolution.
	d.cache.EXPECT().Set(ctx, resolveCacheKey(disputeID), gomock.Any(), resolveCacheTTL).Return(nil)

	result, err := d.svc.Resolve(ctx, disputeID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFavorBuyer, *result.Outcome)
}

// ==================== SweepExpired Tests ====================

func TestDisputeService_SweepExpired(t *testing.T) {
	d := setupDisputeService(t, 21)
	defer d.ctrl.Finish()

	ctx := context.Background()
	disputeID := uuid.New()
	outcome := domain.OutcomeFavorSeller
	tx := &mockTx{}

	expired := openDispute(disputeID, uuid.New(), time.Now().Add(-time.Hour))

	d.disputeRepo.EXPECT().ListExpired(ctx, gomock.Any(), sweepBatchSize).
		Return([]domain.Dispute{*expired}, nil)

	// The sweep funnels into Resolve; this one already resolved between
	// listing and locking, so it just counts as done.
	resolved := *expired
	resolved.Status = domain.DisputeStatusResolved
	resolved.Outcome = &outcome
	d.cache.EXPECT().Get(ctx, resolveCacheKey(disputeID)).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.disputeRepo.EXPECT().GetByIDForUpdate(ctx, tx, disputeID).Return(&resolved, nil)
	d.cache.EXPECT().Set(ctx, resolveCacheKey(disputeID), gomock.Any(), resolveCacheTTL).Return(nil)

	n, err := d.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
