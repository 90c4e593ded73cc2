package handler

import (
	"cross-border-escrow/internal/adapter/http/dto"
	"cross-border-escrow/internal/core/ports"
	"cross-border-escrow/pkg/apperror"
	"cross-border-escrow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DisputeHandler handles dispute voting endpoints.
type DisputeHandler struct {
	disputeSvc ports.DisputeService
}

// NewDisputeHandler creates a new DisputeHandler.
func NewDisputeHandler(disputeSvc ports.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeSvc: disputeSvc}
}

// Get handles GET /api/v1/disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	dispute, err := h.disputeSvc.Get(c.Request.Context(), disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toDisputeResponse(dispute))
}

// CastVote handles POST /api/v1/disputes/:id/votes.
func (h *DisputeHandler) CastVote(c *gin.Context) {
	voterID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	tally, err := h.disputeSvc.CastVote(c.Request.Context(), disputeID, voterID, *req.FavorBuyer)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TallyResponse{
		FavorBuyer:  tally.FavorBuyer,
		FavorSeller: tally.FavorSeller,
		Total:       tally.Total(),
	})
}

// Tally handles GET /api/v1/disputes/:id/tally.
func (h *DisputeHandler) Tally(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	tally, err := h.disputeSvc.Tally(c.Request.Context(), disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TallyResponse{
		FavorBuyer:  tally.FavorBuyer,
		FavorSeller: tally.FavorSeller,
		Total:       tally.Total(),
	})
}

// Resolve handles POST /api/v1/disputes/:id/resolve.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	dispute, err := h.disputeSvc.Resolve(c.Request.Context(), disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toDisputeResponse(dispute))
}
