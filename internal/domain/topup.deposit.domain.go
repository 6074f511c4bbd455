package domain

import (
	"errors"
	"time"
)

var (
	ErrUnknownOperator = errors.New("unknown payment operator")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Deposit attempt lifecycle. Transitions are append-only: a terminal
// status (completed, failed, cancelled, expired, confirm_failed) is
// never overwritten.
const (
	DepositStatusPending       = "pending"
	DepositStatusProcessing    = "processing"
	DepositStatusCompleted     = "completed"
	DepositStatusFailed        = "failed"
	DepositStatusCancelled     = "cancelled"
	DepositStatusExpired       = "expired"
	DepositStatusConfirmFailed = "confirm_failed"
)

// MinDepositAmount is the smallest accepted top-up, in the smallest
// currency unit.
const MinDepositAmount int64 = 100

// DepositAttempt is one initiated top-up against the gateway. Amounts
// are in the smallest currency unit. Immutable once submitted except
// for status bookkeeping.
type DepositAttempt struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	AttemptRef      string     `json:"attempt_ref"`
	BaseAmount      int64      `json:"base_amount"`
	FeeAmount       int64      `json:"fee_amount"`
	TotalAmount     int64      `json:"total_amount"`
	CreditAmount    int64      `json:"credit_amount"`
	Operator        Operator   `json:"operator"`
	ServiceCode     string     `json:"service_code"`
	RecipientNumber string     `json:"recipient_number"`
	PayerCoversFee  bool       `json:"payer_covers_fee"`
	Status          string     `json:"status"`
	TxnNumber       *string    `json:"txn_number,omitempty"`
	PaymentURL      *string    `json:"payment_url,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}
