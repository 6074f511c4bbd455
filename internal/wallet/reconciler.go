package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Confirmer is the confirm slice of the gateway client.
type Confirmer interface {
	Confirm(ctx context.Context, txnNumber string, creditAmount int64) error
}

// Marker records that confirm has been issued for a transaction number.
// First claims the number; a false return means someone already did.
type Marker interface {
	First(ctx context.Context, txnNumber string) (bool, error)
}

// RedisMarker backs the marker with SETNX so the at-most-once guard
// also holds across process restarts.
type RedisMarker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisMarker(rdb *redis.Client) *RedisMarker {
	return &RedisMarker{rdb: rdb, ttl: 24 * time.Hour}
}

func (m *RedisMarker) First(ctx context.Context, txnNumber string) (bool, error) {
	return m.rdb.SetNX(ctx, "topup:confirmed:"+txnNumber, 1, m.ttl).Result()
}

// Reconciler runs the exactly-once settlement step: confirm the credit
// amount, then refresh the wallet balance from the source of truth.
type Reconciler struct {
	gateway Confirmer
	wallet  Service
	marker  Marker
	logger  *zap.Logger
}

func NewReconciler(gw Confirmer, wallet Service, marker Marker, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		gateway: gw,
		wallet:  wallet,
		marker:  marker,
		logger:  logger,
	}
}

// Settle confirms a succeeded transaction and returns the refreshed
// wallet balance. The caller reaches here only after the polling state
// machine has gone terminal, so confirm fires at most once per
// transaction number; the marker is a cross-process backstop on top.
func (r *Reconciler) Settle(ctx context.Context, userID int64, txnNumber string, creditAmount int64) (int64, error) {
	first, err := r.marker.First(ctx, txnNumber)
	if err != nil {
		r.logger.Warn("confirm marker unavailable, proceeding",
			zap.String("txn_number", txnNumber),
			zap.Error(err))
	} else if !first {
		return 0, ErrAlreadyConfirmed
	}

	if err := r.gateway.Confirm(ctx, txnNumber, creditAmount); err != nil {
		r.logger.Error("confirm failed after succeeded gateway status",
			zap.String("txn_number", txnNumber),
			zap.Int64("credit_amount", creditAmount),
			zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrConfirmFailed, err)
	}

	balance, err := r.wallet.RefreshBalance(ctx, userID)
	if err != nil {
		// The credit went through; a stale balance read is not fatal.
		r.logger.Warn("wallet refresh failed after confirm",
			zap.Int64("user_id", userID),
			zap.String("txn_number", txnNumber),
			zap.Error(err))
		return 0, nil
	}

	r.logger.Info("deposit settled",
		zap.Int64("user_id", userID),
		zap.String("txn_number", txnNumber),
		zap.Int64("credit_amount", creditAmount),
		zap.Int64("balance", balance))
	return balance, nil
}
