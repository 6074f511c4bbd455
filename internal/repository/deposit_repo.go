package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topup-service/internal/domain"
)

var ErrAttemptNotFound = errors.New("deposit attempt not found")

type DepositRepo struct {
	db *pgxpool.Pool
}

func NewDepositRepo(db *pgxpool.Pool) *DepositRepo {
	return &DepositRepo{db: db}
}

func (r *DepositRepo) Create(ctx context.Context, a *domain.DepositAttempt) error {
	query := `
        INSERT INTO deposit_attempts
        (user_id, attempt_ref, base_amount, fee_amount, total_amount, credit_amount,
         operator, service_code, recipient_number, payer_covers_fee, status, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at, updated_at
    `
	return r.db.QueryRow(ctx, query,
		a.UserID, a.AttemptRef, a.BaseAmount, a.FeeAmount, a.TotalAmount, a.CreditAmount,
		a.Operator, a.ServiceCode, a.RecipientNumber, a.PayerCoversFee, a.Status, a.ExpiresAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// SetGatewayTransaction records the gateway handles once initiate has
// answered and moves the attempt to processing.
func (r *DepositRepo) SetGatewayTransaction(ctx context.Context, attemptRef, txnNumber, paymentURL string) error {
	query := `
        UPDATE deposit_attempts
        SET txn_number = $1, payment_url = NULLIF($2, ''), status = $3, updated_at = NOW()
        WHERE attempt_ref = $4
    `
	tag, err := r.db.Exec(ctx, query, txnNumber, paymentURL, domain.DepositStatusProcessing, attemptRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func (r *DepositRepo) MarkCompleted(ctx context.Context, attemptRef string) error {
	query := `
        UPDATE deposit_attempts
        SET status = $1, completed_at = NOW(), updated_at = NOW()
        WHERE attempt_ref = $2
    `
	tag, err := r.db.Exec(ctx, query, domain.DepositStatusCompleted, attemptRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// MarkTerminal closes an attempt with a terminal status and an optional
// user-facing message.
func (r *DepositRepo) MarkTerminal(ctx context.Context, attemptRef, status string, errorMsg *string) error {
	query := `
        UPDATE deposit_attempts
        SET status = $1, error_message = $2, updated_at = NOW()
        WHERE attempt_ref = $3
    `
	tag, err := r.db.Exec(ctx, query, status, errorMsg, attemptRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func (r *DepositRepo) GetByRef(ctx context.Context, attemptRef string) (*domain.DepositAttempt, error) {
	query := `
        SELECT id, user_id, attempt_ref, base_amount, fee_amount, total_amount, credit_amount,
               operator, service_code, recipient_number, payer_covers_fee, status,
               txn_number, payment_url, error_message, expires_at, created_at, updated_at, completed_at
        FROM deposit_attempts
        WHERE attempt_ref = $1
    `
	var a domain.DepositAttempt
	err := r.db.QueryRow(ctx, query, attemptRef).Scan(
		&a.ID, &a.UserID, &a.AttemptRef, &a.BaseAmount, &a.FeeAmount, &a.TotalAmount, &a.CreditAmount,
		&a.Operator, &a.ServiceCode, &a.RecipientNumber, &a.PayerCoversFee, &a.Status,
		&a.TxnNumber, &a.PaymentURL, &a.ErrorMessage, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *DepositRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.DepositAttempt, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM deposit_attempts WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deposit attempts: %w", err)
	}

	query := `
        SELECT id, user_id, attempt_ref, base_amount, fee_amount, total_amount, credit_amount,
               operator, service_code, recipient_number, payer_covers_fee, status,
               txn_number, payment_url, error_message, expires_at, created_at, updated_at, completed_at
        FROM deposit_attempts
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []domain.DepositAttempt
	for rows.Next() {
		var a domain.DepositAttempt
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.AttemptRef, &a.BaseAmount, &a.FeeAmount, &a.TotalAmount, &a.CreditAmount,
			&a.Operator, &a.ServiceCode, &a.RecipientNumber, &a.PayerCoversFee, &a.Status,
			&a.TxnNumber, &a.PaymentURL, &a.ErrorMessage, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
		); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}
