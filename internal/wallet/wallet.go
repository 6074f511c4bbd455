// Package wallet settles a succeeded gateway transaction into the
// user's wallet: one confirm call, then a balance refresh from the
// account service.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrConfirmFailed marks a confirm that failed after the gateway
// reported success. Fatal for the session: retrying blindly risks a
// double credit, so the user is pointed at transaction history instead.
var ErrConfirmFailed = errors.New("confirm failed after successful payment")

// ErrAlreadyConfirmed means a settle was attempted for a transaction
// number that already went through confirm.
var ErrAlreadyConfirmed = errors.New("transaction already confirmed")

// Service exposes the wallet balance source of truth.
type Service interface {
	RefreshBalance(ctx context.Context, userID int64) (int64, error)
}

// HTTPService reads the balance from the account service.
type HTTPService struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func NewHTTPService(baseURL, token string, httpc *http.Client) *HTTPService {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPService{baseURL: baseURL, token: token, httpc: httpc}
}

func (s *HTTPService) RefreshBalance(ctx context.Context, userID int64) (int64, error) {
	url := fmt.Sprintf("%s/v1/accounts/%d/wallet", s.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("refresh wallet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("refresh wallet: account service returned %d", resp.StatusCode)
	}

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode wallet response: %w", err)
	}
	return out.Balance, nil
}
