package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"cross-border-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRail is a ports.PaymentRail backed by the custody provider's REST API.
// The provider dedupes by transaction_id, so retried calls return the
// original receipt instead of moving funds twice.
type HTTPRail struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewHTTPRail creates a new HTTPRail.
func NewHTTPRail(baseURL, apiKey string, httpClient HTTPClient, log zerolog.Logger) *HTTPRail {
	return &HTTPRail{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		log:        log,
	}
}

// transferRequest is the JSON body for release and refund calls.
type transferRequest struct {
	TransactionID string `json:"transaction_id"`
	ToPartyID     string `json:"to_party_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// transferResponse is the provider's reply.
type transferResponse struct {
	ReceiptID string `json:"receipt_id"`
}

// Release pays the held amount out to the seller side.
func (r *HTTPRail) Release(ctx context.Context, transactionID, toPartyID uuid.UUID, amount int64, currency string) (string, error) {
	return r.transfer(ctx, "/v1/release", transactionID, toPartyID, amount, currency)
}

// Refund returns the held amount to the buyer side.
func (r *HTTPRail) Refund(ctx context.Context, transactionID, toPartyID uuid.UUID, amount int64, currency string) (string, error) {
	return r.transfer(ctx, "/v1/refund", transactionID, toPartyID, amount, currency)
}

func (r *HTTPRail) transfer(ctx context.Context, path string, transactionID, toPartyID uuid.UUID, amount int64, currency string) (string, error) {
	body, err := json.Marshal(transferRequest{
		TransactionID: transactionID.String(),
		ToPartyID:     toPartyID.String(),
		Amount:        amount,
		Currency:      currency,
	})
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("marshal transfer request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("build transfer request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			r.log.Error().Err(err).
				Str("tx_id", transactionID.String()).
				Str("path", path).
				Msg("rail call timed out")
			return "", apperror.ErrRailTimeout(err)
		}
		return "", apperror.InternalError(fmt.Errorf("rail call: %w", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.log.Error().
			Str("tx_id", transactionID.String()).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("rail rejected transfer")
		return "", apperror.ErrRailRejected(resp.StatusCode)
	}

	var out transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperror.InternalError(fmt.Errorf("decode rail response: %w", err))
	}
	if out.ReceiptID == "" {
		return "", apperror.InternalError(fmt.Errorf("rail response missing receipt_id"))
	}

	r.log.Info().
		Str("tx_id", transactionID.String()).
		Str("path", path).
		Str("receipt_id", out.ReceiptID).
		Int64("amount", amount).
		Str("currency", currency).
		Msg("rail transfer confirmed")

	return out.ReceiptID, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
