package dto

import "encoding/json"

// RegisterRequest is the request body for party registration.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for party login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	PartyID     string `json:"party_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateEscrowRequest is the request body for opening an escrow.
type CreateEscrowRequest struct {
	SellerID    string `json:"seller_id" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,min=3,max=4"`
	Description string `json:"description" binding:"max=500"`
}

// TransactionResponse is the response body for escrow transaction results.
type TransactionResponse struct {
	ID            string  `json:"id"`
	BuyerID       string  `json:"buyer_id"`
	SellerID      string  `json:"seller_id"`
	Amount        int64   `json:"amount"`
	Currency      string  `json:"currency"`
	Description   string  `json:"description,omitempty"`
	Status        string  `json:"status"`
	FundsReleased bool    `json:"funds_released"`
	RailReceiptID *string `json:"rail_receipt_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// HistoryEntryResponse is one audit-trail entry of a transaction.
type HistoryEntryResponse struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Action     string `json:"action"`
	ActorID    string `json:"actor_id"`
	Details    string `json:"details,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// RaiseDisputeRequest is the request body for disputing an escrow.
type RaiseDisputeRequest struct {
	Reason       string   `json:"reason" binding:"required,min=1,max=1000"`
	EvidenceURIs []string `json:"evidence_uris,omitempty" binding:"omitempty,max=10,dive,safe_url"`
}

// DisputeResponse is the response body for dispute state.
type DisputeResponse struct {
	ID            string   `json:"id"`
	TransactionID string   `json:"transaction_id"`
	RaisedBy      string   `json:"raised_by"`
	Reason        string   `json:"reason"`
	EvidenceURIs  []string `json:"evidence_uris,omitempty"`
	Deadline      string   `json:"deadline"`
	Status        string   `json:"status"`
	Outcome       *string  `json:"outcome,omitempty"`
	ResolvedAt    *string  `json:"resolved_at,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

// VoteRequest is the request body for casting a dispute vote.
type VoteRequest struct {
	FavorBuyer *bool `json:"favor_buyer" binding:"required"`
}

// TallyResponse reports the running vote count.
type TallyResponse struct {
	FavorBuyer  int `json:"favor_buyer"`
	FavorSeller int `json:"favor_seller"`
	Total       int `json:"total"`
}

// CreateWalletRequest is the request body for multi-sig wallet creation.
type CreateWalletRequest struct {
	Cosigners []string `json:"cosigners" binding:"required,min=1,max=20,dive,uuid"`
	Threshold int      `json:"threshold" binding:"required,gte=1"`
}

// WalletResponse is the response body for a multi-sig wallet.
type WalletResponse struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Cosigners []string `json:"cosigners"`
	Threshold int      `json:"threshold"`
	Used      bool     `json:"used"`
	CreatedAt string   `json:"created_at"`
}

// ProposeOperationRequest is the request body for proposing a wallet operation.
type ProposeOperationRequest struct {
	Kind    string          `json:"kind" binding:"required,oneof=RELEASE_FUNDS ADD_COSIGNER CHANGE_THRESHOLD"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// ApprovalResponse is the response body for a pending approval.
type ApprovalResponse struct {
	ID         string          `json:"id"`
	WalletID   string          `json:"wallet_id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	ProposedBy string          `json:"proposed_by"`
	Approvers  []string        `json:"approvers"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	ExecutedAt *string         `json:"executed_at,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// ApprovalStateResponse reports approval progress after an approve call.
type ApprovalStateResponse struct {
	Approval     ApprovalResponse `json:"approval"`
	ThresholdMet bool             `json:"threshold_met"`
}
