package handler

import (
	"cross-border-escrow/internal/adapter/http/dto"
	"cross-border-escrow/internal/core/domain"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:            t.ID.String(),
		BuyerID:       t.BuyerID.String(),
		SellerID:      t.SellerID.String(),
		Amount:        t.Amount,
		Currency:      t.Currency,
		Description:   t.Description,
		Status:        string(t.Status),
		FundsReleased: t.FundsReleased,
		RailReceiptID: t.RailReceiptID,
		CreatedAt:     t.CreatedAt.Format(timeFormat),
		UpdatedAt:     t.UpdatedAt.Format(timeFormat),
	}
}

// toDisputeResponse converts domain.Dispute to DTO.
func toDisputeResponse(d *domain.Dispute) dto.DisputeResponse {
	resp := dto.DisputeResponse{
		ID:            d.ID.String(),
		TransactionID: d.TransactionID.String(),
		RaisedBy:      d.RaisedBy.String(),
		Reason:        d.Reason,
		EvidenceURIs:  d.EvidenceURIs,
		Deadline:      d.Deadline.Format(timeFormat),
		Status:        string(d.Status),
		CreatedAt:     d.CreatedAt.Format(timeFormat),
	}
	if d.Outcome != nil {
		s := string(*d.Outcome)
		resp.Outcome = &s
	}
	if d.ResolvedAt != nil {
		s := d.ResolvedAt.Format(timeFormat)
		resp.ResolvedAt = &s
	}
	return resp
}

// toWalletResponse converts domain.MultiSigWallet to DTO.
func toWalletResponse(w *domain.MultiSigWallet) dto.WalletResponse {
	cosigners := make([]string, 0, len(w.Cosigners))
	for _, c := range w.Cosigners {
		cosigners = append(cosigners, c.String())
	}
	return dto.WalletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID.String(),
		Cosigners: cosigners,
		Threshold: w.Threshold,
		Used:      w.Used,
		CreatedAt: w.CreatedAt.Format(timeFormat),
	}
}

// toApprovalResponse converts domain.PendingApproval to DTO.
func toApprovalResponse(a *domain.PendingApproval) dto.ApprovalResponse {
	approvers := make([]string, 0, len(a.Approvers))
	for _, ap := range a.Approvers {
		approvers = append(approvers, ap.String())
	}
	resp := dto.ApprovalResponse{
		ID:         a.ID.String(),
		WalletID:   a.WalletID.String(),
		Kind:       string(a.Kind),
		Payload:    a.Payload,
		ProposedBy: a.ProposedBy.String(),
		Approvers:  approvers,
		Status:     string(a.Status),
		Result:     a.Result,
		CreatedAt:  a.CreatedAt.Format(timeFormat),
	}
	if a.ExecutedAt != nil {
		s := a.ExecutedAt.Format(timeFormat)
		resp.ExecutedAt = &s
	}
	return resp
}
