package handler

import (
	"cross-border-escrow/internal/adapter/http/dto"
	"cross-border-escrow/internal/core/domain"
	"cross-border-escrow/internal/core/ports"
	"cross-border-escrow/pkg/apperror"
	"cross-border-escrow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles multi-sig wallet endpoints.
type WalletHandler struct {
	multiSigSvc ports.MultiSigService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(multiSigSvc ports.MultiSigService) *WalletHandler {
	return &WalletHandler{multiSigSvc: multiSigSvc}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	ownerID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	cosigners := make([]uuid.UUID, 0, len(req.Cosigners))
	for _, raw := range req.Cosigners {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("cosigners must be valid UUIDs"))
			return
		}
		cosigners = append(cosigners, id)
	}

	wallet, err := h.multiSigSvc.CreateWallet(c.Request.Context(), ports.CreateWalletRequest{
		OwnerID:   ownerID,
		Cosigners: cosigners,
		Threshold: req.Threshold,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// List handles GET /api/v1/wallets. Returns the caller's own wallets.
func (h *WalletHandler) List(c *gin.Context) {
	ownerID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallets, err := h.multiSigSvc.ListWallets(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, toWalletResponse(&wallets[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	wallet, err := h.multiSigSvc.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// Propose handles POST /api/v1/wallets/:id/operations.
func (h *WalletHandler) Propose(c *gin.Context) {
	proposerID, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	var req dto.ProposeOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	approval, err := h.multiSigSvc.Propose(c.Request.Context(), ports.ProposeRequest{
		WalletID:   walletID,
		ProposedBy: proposerID,
		Kind:       domain.OperationKind(req.Kind),
		Payload:    req.Payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toApprovalResponse(approval))
}

// Approve handles POST /api/v1/operations/:id/approve.
func (h *WalletHandler) Approve(c *gin.Context) {
	identity, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	approvalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	state, err := h.multiSigSvc.Approve(c.Request.Context(), approvalID, identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ApprovalStateResponse{
		Approval:     toApprovalResponse(state.Approval),
		ThresholdMet: state.ThresholdMet,
	})
}

// Execute handles POST /api/v1/operations/:id/execute.
func (h *WalletHandler) Execute(c *gin.Context) {
	identity, ok := partyFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	approvalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	approval, err := h.multiSigSvc.Execute(c.Request.Context(), approvalID, identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toApprovalResponse(approval))
}
