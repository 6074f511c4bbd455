package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DepositEventsChannel = "deposit_events"

// DepositEvent is the lifecycle record fanned out on redis for every
// attempt transition. Amounts are in the smallest currency unit.
type DepositEvent struct {
	EventType    string    `json:"event_type"` // deposit.initiated, deposit.completed, deposit.failed, deposit.timed_out, deposit.cancelled
	UserID       int64     `json:"user_id"`
	AttemptRef   string    `json:"attempt_ref"`
	TxnNumber    string    `json:"txn_number,omitempty"`
	Operator     string    `json:"operator"`
	BaseAmount   int64     `json:"base_amount"`
	FeeAmount    int64     `json:"fee_amount"`
	CreditAmount int64     `json:"credit_amount"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type Publisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPublisher(rdb *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, logger: logger}
}

// Publish fans the event out on the deposit channel. Best-effort from
// the caller's point of view; settlement never blocks on it.
func (p *Publisher) Publish(ctx context.Context, event *DepositEvent) error {
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal deposit event: %w", err)
	}

	if err := p.rdb.Publish(ctx, DepositEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish deposit event: %w", err)
	}

	p.logger.Info("deposit event published",
		zap.String("event_type", event.EventType),
		zap.Int64("user_id", event.UserID),
		zap.String("attempt_ref", event.AttemptRef))
	return nil
}
