package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNextStatus_ValidEdges(t *testing.T) {
	tests := []struct {
		name   string
		from   TransactionStatus
		action TransactionAction
		want   TransactionStatus
	}{
		{"accept from created", TransactionStatusCreated, ActionAccept, TransactionStatusAccepted},
		{"decline from created", TransactionStatusCreated, ActionDecline, TransactionStatusDeclined},
		{"deliver from accepted", TransactionStatusAccepted, ActionDeliver, TransactionStatusDelivered},
		{"confirm from delivered", TransactionStatusDelivered, ActionConfirm, TransactionStatusCompleted},
		{"dispute from accepted", TransactionStatusAccepted, ActionDispute, TransactionStatusDisputed},
		{"dispute from delivered", TransactionStatusDelivered, ActionDispute, TransactionStatusDisputed},
		{"resolve from disputed", TransactionStatusDisputed, ActionResolve, TransactionStatusResolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextStatus(tt.from, tt.action)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatus_InvalidEdges(t *testing.T) {
	tests := []struct {
		name   string
		from   TransactionStatus
		action TransactionAction
	}{
		{"accept from accepted", TransactionStatusAccepted, ActionAccept},
		{"decline from delivered", TransactionStatusDelivered, ActionDecline},
		{"deliver from created", TransactionStatusCreated, ActionDeliver},
		{"confirm from accepted", TransactionStatusAccepted, ActionConfirm},
		{"dispute from created", TransactionStatusCreated, ActionDispute},
		{"dispute from completed", TransactionStatusCompleted, ActionDispute},
		{"resolve from accepted", TransactionStatusAccepted, ActionResolve},
		{"confirm from resolved", TransactionStatusResolved, ActionConfirm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NextStatus(tt.from, tt.action)
			assert.False(t, ok)
		})
	}
}

func TestTransaction_IsTerminal(t *testing.T) {
	for _, s := range []TransactionStatus{TransactionStatusCompleted, TransactionStatusDeclined, TransactionStatusResolved} {
		tx := &Transaction{Status: s}
		assert.True(t, tx.IsTerminal(), string(s))
	}
	for _, s := range []TransactionStatus{TransactionStatusCreated, TransactionStatusAccepted, TransactionStatusDelivered, TransactionStatusDisputed} {
		tx := &Transaction{Status: s}
		assert.False(t, tx.IsTerminal(), string(s))
	}
}

func TestTransaction_IsParty(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()
	tx := &Transaction{BuyerID: buyer, SellerID: seller}

	assert.True(t, tx.IsParty(buyer))
	assert.True(t, tx.IsParty(seller))
	assert.False(t, tx.IsParty(uuid.New()))
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("USD"))
	assert.True(t, ValidCurrency("ETH"))
	assert.False(t, ValidCurrency("usd"))
	assert.False(t, ValidCurrency("XYZ"))
}

func TestTally_Decide(t *testing.T) {
	assert.Equal(t, OutcomeFavorBuyer, Tally{FavorBuyer: 3, FavorSeller: 2}.Decide())
	assert.Equal(t, OutcomeFavorSeller, Tally{FavorBuyer: 1, FavorSeller: 4}.Decide())
	// Exact tie favors the seller.
	assert.Equal(t, OutcomeFavorSeller, Tally{FavorBuyer: 2, FavorSeller: 2}.Decide())
	assert.Equal(t, OutcomeFavorSeller, Tally{}.Decide())
}

func TestDispute_DeadlinePassed(t *testing.T) {
	deadline := time.Now()
	d := &Dispute{Deadline: deadline}

	assert.False(t, d.DeadlinePassed(deadline.Add(-time.Minute)))
	assert.True(t, d.DeadlinePassed(deadline.Add(time.Minute)))
}

func TestMultiSigWallet_Threshold(t *testing.T) {
	owner := uuid.New()
	c1, c2 := uuid.New(), uuid.New()

	w := &MultiSigWallet{OwnerID: owner, Cosigners: []uuid.UUID{c1, c2}, Threshold: 2}
	assert.Equal(t, 3, w.SignerCount())
	assert.True(t, w.ValidThreshold())

	w.Threshold = 0
	assert.False(t, w.ValidThreshold())
	w.Threshold = 4
	assert.False(t, w.ValidThreshold())
}

func TestMultiSigWallet_IsSigner(t *testing.T) {
	owner := uuid.New()
	c1 := uuid.New()
	w := &MultiSigWallet{OwnerID: owner, Cosigners: []uuid.UUID{c1}}

	assert.True(t, w.IsSigner(owner))
	assert.True(t, w.IsSigner(c1))
	assert.False(t, w.IsSigner(uuid.New()))
}

func TestMultiSigWallet_HasDuplicateCosigners(t *testing.T) {
	owner := uuid.New()
	c1 := uuid.New()

	assert.False(t, (&MultiSigWallet{OwnerID: owner, Cosigners: []uuid.UUID{c1}}).HasDuplicateCosigners())
	assert.True(t, (&MultiSigWallet{OwnerID: owner, Cosigners: []uuid.UUID{c1, c1}}).HasDuplicateCosigners())
	// Owner in the cosigner set violates uniqueness too.
	assert.True(t, (&MultiSigWallet{OwnerID: owner, Cosigners: []uuid.UUID{owner}}).HasDuplicateCosigners())
}

func TestPendingApproval_HasApproved(t *testing.T) {
	a := &PendingApproval{Approvers: []uuid.UUID{uuid.New()}}
	assert.True(t, a.HasApproved(a.Approvers[0]))
	assert.False(t, a.HasApproved(uuid.New()))
}
