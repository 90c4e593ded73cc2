package handler

import (
	"context"
	"strconv"

	"cross-border-escrow/internal/adapter/http/dto"
	"cross-border-escrow/internal/adapter/http/middleware"
	"cross-border-escrow/internal/core/domain"
	"cross-border-escrow/internal/core/ports"
	"cross-border-escrow/pkg/apperror"
	"cross-border-escrow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EscrowHandler handles escrow transaction lifecycle endpoints.
type EscrowHandler struct {
	escrowSvc ports.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(escrowSvc ports.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// Create handles POST /api/v1/escrows.
func (h *EscrowHandler) Create(c *gin.Context) {
	actorID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		response.Error(c, apperror.Validation("seller_id must be a valid UUID"))
		return
	}

	txn, err := h.escrowSvc.Create(c.Request.Context(), ports.CreateEscrowRequest{
		BuyerID:     actorID,
		SellerID:    sellerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// Accept handles POST /api/v1/escrows/:id/accept.
func (h *EscrowHandler) Accept(c *gin.Context) {
	h.transition(c, h.escrowSvc.Accept)
}

// Decline handles POST /api/v1/escrows/:id/decline.
func (h *EscrowHandler) Decline(c *gin.Context) {
	h.transition(c, h.escrowSvc.Decline)
}

// Deliver handles POST /api/v1/escrows/:id/deliver.
func (h *EscrowHandler) Deliver(c *gin.Context) {
	h.transition(c, h.escrowSvc.MarkDelivered)
}

// Confirm handles POST /api/v1/escrows/:id/confirm.
func (h *EscrowHandler) Confirm(c *gin.Context) {
	h.transition(c, h.escrowSvc.ConfirmReceipt)
}

// Dispute handles POST /api/v1/escrows/:id/dispute.
func (h *EscrowHandler) Dispute(c *gin.Context) {
	actorID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	var req dto.RaiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	dispute, err := h.escrowSvc.RaiseDispute(c.Request.Context(), ports.RaiseDisputeRequest{
		TransactionID: transactionID,
		ActorID:       actorID,
		Reason:        req.Reason,
		EvidenceURIs:  req.EvidenceURIs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toDisputeResponse(dispute))
}

// Get handles GET /api/v1/escrows/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	txn, err := h.escrowSvc.Get(c.Request.Context(), transactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// List handles GET /api/v1/escrows.
func (h *EscrowHandler) List(c *gin.Context) {
	actorID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params := ports.TransactionListParams{PartyID: actorID}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	if role := c.Query("role"); role == "buyer" || role == "seller" {
		params.Role = &role
	}
	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if cur := c.Query("currency"); cur != "" {
		params.Currency = &cur
	}
	if from := c.Query("from"); from != "" {
		if ts, err := strconv.ParseInt(from, 10, 64); err == nil {
			params.From = &ts
		}
	}
	if to := c.Query("to"); to != "" {
		if ts, err := strconv.ParseInt(to, 10, 64); err == nil {
			params.To = &ts
		}
	}

	txns, total, err := h.escrowSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	totalPages := int(total) / params.PageSize
	if int(total)%params.PageSize > 0 {
		totalPages++
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	})
}

// History handles GET /api/v1/escrows/:id/history.
func (h *EscrowHandler) History(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	entries, err := h.escrowSvc.History(c.Request.Context(), transactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.HistoryEntryResponse{
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Action:     string(e.Action),
			ActorID:    e.ActorID.String(),
			Details:    e.Details,
			CreatedAt:  e.CreatedAt.Format(timeFormat),
		})
	}

	response.OK(c, items)
}

// transition runs one lifecycle action resolved from the path id and the
// authenticated actor.
func (h *EscrowHandler) transition(c *gin.Context, fn func(ctx context.Context, transactionID, actorID uuid.UUID) (*domain.Transaction, error)) {
	actorID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	txn, err := fn(c.Request.Context(), transactionID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// partyFromContext extracts the authenticated party id set by JWTAuth.
func partyFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxPartyID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
