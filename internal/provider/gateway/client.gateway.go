// Package gateway wraps the mobile-money gateway's three payment
// operations: initiate, check-status, confirm. No retries happen at
// this layer; transport-level retry is the caller's concern.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrInsufficientFunds is returned when the gateway declines an
// initiation because the paying account cannot cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// RejectedError is any other client-error response from the gateway on
// initiation. Non-fatal for the session: the user edits inputs and
// resubmits.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway rejected payment: %s", e.Message)
	}
	return "gateway rejected payment"
}

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient builds a gateway client. The bearer token is an explicit
// dependency; the client never reads ambient session state.
func NewClient(baseURL, token string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   httpc,
	}
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decodeClientError maps a 4xx initiation response onto the error
// taxonomy. An unreadable body still yields a RejectedError.
func decodeClientError(resp *http.Response) error {
	var ge gatewayError
	body, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(body, &ge)
	if ge.Code == "INSUFFICIENT_FUNDS" {
		return ErrInsufficientFunds
	}
	return &RejectedError{Code: ge.Code, Message: ge.Message}
}
