package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type InitiateParams struct {
	Amount      int64
	ServiceCode string
	PhoneNumber string
	OneTimeCode string
}

// Transaction is the gateway's answer to an initiation. The
// TransactionNumber is the opaque idempotency key used for polling and
// confirmation; PaymentURL is set only for redirect-flow operators.
type Transaction struct {
	TransactionNumber string `json:"transactionNumber"`
	PaymentURL        string `json:"payment_url,omitempty"`
}

// Initiate starts a payment for the total charged amount. Client-error
// responses come back as ErrInsufficientFunds or *RejectedError; both
// leave the session resumable.
func (c *Client) Initiate(ctx context.Context, p InitiateParams) (*Transaction, error) {
	body := struct {
		Amount      int64  `json:"amount"`
		ServiceCode string `json:"serviceCode"`
		PhoneNumber string `json:"phoneNumber"`
		OTP         string `json:"otp,omitempty"`
	}{
		Amount:      p.Amount,
		ServiceCode: p.ServiceCode,
		PhoneNumber: p.PhoneNumber,
		OTP:         p.OneTimeCode,
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/payments", body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("initiate payment: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var txn Transaction
		if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
			return nil, fmt.Errorf("decode initiate response: %w", err)
		}
		if txn.TransactionNumber == "" {
			return nil, fmt.Errorf("initiate response missing transaction number")
		}
		return &txn, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, decodeClientError(resp)
	default:
		return nil, fmt.Errorf("initiate payment: gateway returned %d", resp.StatusCode)
	}
}

// CheckStatus fetches the gateway-side status of a transaction. A
// transport or server error means "no answer this cycle", never a
// definite FAILED; the poller keeps going on it.
func (c *Client) CheckStatus(ctx context.Context, txnNumber string) (Status, error) {
	path := fmt.Sprintf("/v1/payments/%s/status", url.PathEscape(txnNumber))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return StatusPending, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return StatusPending, fmt.Errorf("check status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusPending, fmt.Errorf("check status: gateway returned %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusPending, fmt.Errorf("decode status response: %w", err)
	}
	return NormalizeStatus(out.Status), nil
}

// Confirm credits the wallet for a succeeded transaction. At most once
// per transaction number; the caller enforces single invocation by
// leaving the pollable state before calling.
func (c *Client) Confirm(ctx context.Context, txnNumber string, creditAmount int64) error {
	body := struct {
		Amount int64 `json:"amount"`
	}{Amount: creditAmount}

	path := fmt.Sprintf("/v1/payments/%s/confirm", url.PathEscape(txnNumber))
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("confirm payment: gateway returned %d", resp.StatusCode)
	}
	return nil
}
