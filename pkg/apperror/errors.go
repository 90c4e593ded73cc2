package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Escrow Lifecycle (ESC) ----

func ErrInvalidAmount() *AppError {
	return New("ESC_001", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidState(from string, action string) *AppError {
	return New("ESC_002", fmt.Sprintf("Action %q not allowed from state %q", action, from), http.StatusConflict)
}

func ErrUnauthorizedActor() *AppError {
	return New("ESC_003", "Caller is not authorized for this action", http.StatusForbidden)
}

func ErrNotFound(entity string) *AppError {
	return New("ESC_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrUnsupportedCurrency(code string) *AppError {
	return New("ESC_005", fmt.Sprintf("Unsupported currency: %s", code), http.StatusBadRequest)
}

func ErrSelfDealing() *AppError {
	return New("ESC_006", "Buyer and seller must be different parties", http.StatusBadRequest)
}

// ---- Dispute Voting (DSP) ----

func ErrDisputeResolved() *AppError {
	return New("DSP_001", "Dispute has already been resolved", http.StatusConflict)
}

func ErrAlreadyVoted() *AppError {
	return New("DSP_002", "Voter has already cast a vote on this dispute", http.StatusConflict)
}

func ErrDeadlinePassed() *AppError {
	return New("DSP_003", "Voting deadline has passed", http.StatusUnprocessableEntity)
}

func ErrVotingOpen() *AppError {
	return New("DSP_004", "Voting is still open: deadline not reached and quorum not met", http.StatusUnprocessableEntity)
}

// ---- Multi-Signature Wallet (MSW) ----

func ErrInvalidThreshold() *AppError {
	return New("MSW_001", "Required signatures must be between 1 and the signer count", http.StatusBadRequest)
}

func ErrNotASigner() *AppError {
	return New("MSW_002", "Identity is not an owner or cosigner of this wallet", http.StatusForbidden)
}

func ErrAlreadyApproved() *AppError {
	return New("MSW_003", "Identity has already approved this operation", http.StatusConflict)
}

func ErrThresholdNotMet() *AppError {
	return New("MSW_004", "Not enough approvals to execute this operation", http.StatusUnprocessableEntity)
}

func ErrWalletInUse() *AppError {
	return New("MSW_005", "Wallet configuration is frozen after first use", http.StatusConflict)
}

func ErrOperationExecuted() *AppError {
	return New("MSW_006", "Operation has already been executed", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrPartySuspended() *AppError {
	return New("AUTH_004", "Party account is suspended", http.StatusForbidden)
}

// ---- Payment Rail (RAIL) ----

func ErrRailTimeout(err error) *AppError {
	return Wrap("RAIL_001", "Payment rail did not respond in time", http.StatusGatewayTimeout, err)
}

func ErrRailRejected(status int) *AppError {
	return New("RAIL_002", fmt.Sprintf("Payment rail rejected the request (status %d)", status), http.StatusBadGateway)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns an ESC_001-style validation error.
func Validation(message string) *AppError {
	return New("ESC_001", message, http.StatusBadRequest)
}
