// Package deposit orchestrates the top-up flow: wizard session, fee
// derivation, gateway initiation, the polling run and the settlement
// step.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"topup-service/internal/domain"
	"topup-service/internal/fee"
	"topup-service/internal/poller"
	"topup-service/internal/provider/gateway"
	"topup-service/internal/pub"
	"topup-service/internal/wizard"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoActiveRun  = errors.New("no settlement run in progress")
)

// Gateway is the initiation/status slice of the gateway client the
// orchestrator drives directly. Confirm stays behind the settler.
type Gateway interface {
	Initiate(ctx context.Context, p gateway.InitiateParams) (*gateway.Transaction, error)
	CheckStatus(ctx context.Context, txnNumber string) (gateway.Status, error)
}

// Settler runs the exactly-once confirm-and-refresh step.
type Settler interface {
	Settle(ctx context.Context, userID int64, txnNumber string, creditAmount int64) (int64, error)
}

// AttemptStore persists deposit attempts and their status transitions.
type AttemptStore interface {
	Create(ctx context.Context, a *domain.DepositAttempt) error
	SetGatewayTransaction(ctx context.Context, attemptRef, txnNumber, paymentURL string) error
	MarkCompleted(ctx context.Context, attemptRef string) error
	MarkTerminal(ctx context.Context, attemptRef, status string, errorMsg *string) error
	GetByRef(ctx context.Context, attemptRef string) (*domain.DepositAttempt, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.DepositAttempt, int64, error)
}

// EventPublisher fans out attempt lifecycle events. Best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event *pub.DepositEvent) error
}

type Usecase struct {
	sessions *wizard.Store
	gateway  Gateway
	settler  Settler
	repo     AttemptStore
	events   EventPublisher
	logger   *zap.Logger

	clock        clockz.Clock
	pollInterval time.Duration
	pollTimeout  time.Duration
}

type Option func(*Usecase)

func WithClock(c clockz.Clock) Option {
	return func(uc *Usecase) { uc.clock = c }
}

func WithPolling(interval, timeout time.Duration) Option {
	return func(uc *Usecase) {
		uc.pollInterval = interval
		uc.pollTimeout = timeout
	}
}

func NewUsecase(
	sessions *wizard.Store,
	gw Gateway,
	settler Settler,
	repo AttemptStore,
	events EventPublisher,
	logger *zap.Logger,
	opts ...Option,
) *Usecase {
	uc := &Usecase{
		sessions:     sessions,
		gateway:      gw,
		settler:      settler,
		repo:         repo,
		events:       events,
		logger:       logger,
		clock:        clockz.RealClock,
		pollInterval: poller.DefaultInterval,
		pollTimeout:  poller.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Open starts a fresh wizard session for a user.
func (uc *Usecase) Open(userID int64) *wizard.Session {
	return uc.sessions.Create(userID)
}

func (uc *Usecase) Session(id string) (*wizard.Session, error) {
	return uc.sessions.Get(id)
}

// Close destroys a session, cancelling any live polling run.
func (uc *Usecase) Close(id string) {
	uc.sessions.Close(id)
}

// Step applies a collection-phase wizard event (method, operator,
// recipient, amount, back) to a session.
func (uc *Usecase) Step(sessionID string, ev wizard.Event) (wizard.State, error) {
	sess, err := uc.sessions.Get(sessionID)
	if err != nil {
		return wizard.State{}, err
	}
	return sess.Apply(ev)
}

// SubmitResult is what the caller needs to continue: the handles of the
// initiated transaction and, for redirect operators, the address to
// show out-of-band while polling runs.
type SubmitResult struct {
	AttemptRef        string        `json:"attempt_ref"`
	TransactionNumber string        `json:"transaction_number"`
	PaymentURL        string        `json:"payment_url,omitempty"`
	Breakdown         fee.Breakdown `json:"breakdown"`
}

// Submit validates the session, initiates the payment and starts the
// session's single polling supervisor. Gateway client errors leave the
// session on the confirmation step with the message inline; the user
// edits and resubmits. A resubmit after any terminal outcome is a fresh
// initiation with a new attempt reference.
func (uc *Usecase) Submit(ctx context.Context, sessionID, oneTimeCode string) (*SubmitResult, error) {
	sess, err := uc.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	// Commits confirm -> settling, so a concurrent second submit fails
	// the transition instead of racing the gateway call.
	state, err := sess.Apply(wizard.Submit{OneTimeCode: oneTimeCode})
	if err != nil {
		return nil, err
	}

	cfg, err := domain.LookupOperator(state.Operator)
	if err != nil {
		_, _ = sess.Apply(wizard.SettleFailed{Message: err.Error()})
		return nil, err
	}

	bd, err := fee.Compute(state.BaseAmount, state.PayerCoversFee)
	if err != nil {
		_, _ = sess.Apply(wizard.SettleFailed{Message: err.Error()})
		return nil, err
	}

	attempt := &domain.DepositAttempt{
		UserID:          sess.UserID,
		AttemptRef:      fmt.Sprintf("DEP-%d-%s", sess.UserID, uuid.New().String()[:8]),
		BaseAmount:      state.BaseAmount,
		FeeAmount:       bd.Fee,
		TotalAmount:     bd.Total,
		CreditAmount:    bd.Credit,
		Operator:        state.Operator,
		ServiceCode:     cfg.ServiceCode,
		RecipientNumber: state.RecipientNumber,
		PayerCoversFee:  state.PayerCoversFee,
		Status:          domain.DepositStatusPending,
		ExpiresAt:       time.Now().Add(30 * time.Minute),
	}
	if err := uc.repo.Create(ctx, attempt); err != nil {
		_, _ = sess.Apply(wizard.SettleFailed{Message: "could not record deposit attempt"})
		return nil, fmt.Errorf("create deposit attempt: %w", err)
	}

	txn, err := uc.gateway.Initiate(ctx, gateway.InitiateParams{
		Amount:      bd.Total,
		ServiceCode: cfg.ServiceCode,
		PhoneNumber: state.RecipientNumber,
		OneTimeCode: oneTimeCode,
	})
	if err != nil {
		msg := initiateErrorMessage(err)
		_ = uc.repo.MarkTerminal(ctx, attempt.AttemptRef, domain.DepositStatusFailed, &msg)
		_, _ = sess.Apply(wizard.SettleFailed{Message: msg})
		uc.logger.Warn("payment initiation rejected",
			zap.Int64("user_id", sess.UserID),
			zap.String("attempt_ref", attempt.AttemptRef),
			zap.String("operator", string(state.Operator)),
			zap.Error(err))
		return nil, err
	}

	if err := uc.repo.SetGatewayTransaction(ctx, attempt.AttemptRef, txn.TransactionNumber, txn.PaymentURL); err != nil {
		uc.logger.Error("failed to record gateway transaction",
			zap.String("attempt_ref", attempt.AttemptRef),
			zap.Error(err))
	}

	uc.publish(ctx, "deposit.initiated", sess.UserID, attempt.AttemptRef, txn.TransactionNumber, state, bd, "")

	// The supervisor must outlive the submit request; cancellation is
	// driven through the session handle, not the request context.
	sup := poller.Start(context.Background(), uc.gateway, txn.TransactionNumber,
		poller.WithClock(uc.clock),
		poller.WithInterval(uc.pollInterval),
		poller.WithTimeout(uc.pollTimeout),
	)
	sess.BeginSettlement(attempt.AttemptRef, txn.TransactionNumber, txn.PaymentURL, bd, sup)

	go uc.awaitOutcome(sess, sup)

	uc.logger.Info("deposit submitted",
		zap.Int64("user_id", sess.UserID),
		zap.String("attempt_ref", attempt.AttemptRef),
		zap.String("txn_number", txn.TransactionNumber),
		zap.Int64("total_amount", bd.Total),
		zap.Bool("redirect", txn.PaymentURL != ""))

	return &SubmitResult{
		AttemptRef:        attempt.AttemptRef,
		TransactionNumber: txn.TransactionNumber,
		PaymentURL:        txn.PaymentURL,
		Breakdown:         bd,
	}, nil
}

// Cancel aborts the session's live polling run, typically because the
// user closed the redirect view. The outcome handler does the rest.
func (uc *Usecase) Cancel(sessionID string) error {
	sess, err := uc.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if !sess.CancelSettlement() {
		return ErrNoActiveRun
	}
	return nil
}

// Attempt returns one attempt with an ownership check.
func (uc *Usecase) Attempt(ctx context.Context, attemptRef string, userID int64) (*domain.DepositAttempt, error) {
	a, err := uc.repo.GetByRef(ctx, attemptRef)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrUnauthorized
	}
	return a, nil
}

// History lists a user's attempts, newest first.
func (uc *Usecase) History(ctx context.Context, userID int64, limit, offset int) ([]domain.DepositAttempt, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return uc.repo.ListByUser(ctx, userID, limit, offset)
}

// awaitOutcome consumes the supervisor's single terminal result and
// maps it onto the wizard, the attempt record and the event channel.
func (uc *Usecase) awaitOutcome(sess *wizard.Session, sup *poller.Supervisor) {
	res := <-sup.Done()
	ctx := context.Background()
	ref, txnNumber, _, bd := sess.Attempt()
	state := sess.State()

	switch res.Outcome {
	case poller.OutcomeSucceeded:
		uc.settleSucceeded(ctx, sess, ref, txnNumber, state, bd)
	case poller.OutcomeFailed:
		msg := "payment failed"
		_ = uc.repo.MarkTerminal(ctx, ref, domain.DepositStatusFailed, &msg)
		_, _ = sess.Apply(wizard.SettleFailed{Message: msg})
		uc.publish(ctx, "deposit.failed", sess.UserID, ref, txnNumber, state, bd, msg)
	case poller.OutcomeTimedOut:
		msg := "payment timed out, no charge was confirmed; you may try again"
		_ = uc.repo.MarkTerminal(ctx, ref, domain.DepositStatusExpired, &msg)
		_, _ = sess.Apply(wizard.SettleFailed{Message: msg})
		uc.publish(ctx, "deposit.timed_out", sess.UserID, ref, txnNumber, state, bd, msg)
	case poller.OutcomeCancelled:
		msg := "payment cancelled"
		_ = uc.repo.MarkTerminal(ctx, ref, domain.DepositStatusCancelled, &msg)
		_, _ = sess.Apply(wizard.SettleFailed{Message: msg})
		uc.publish(ctx, "deposit.cancelled", sess.UserID, ref, txnNumber, state, bd, msg)
	}

	sess.EndSettlement()
}

func (uc *Usecase) settleSucceeded(ctx context.Context, sess *wizard.Session, ref, txnNumber string, state wizard.State, bd fee.Breakdown) {
	balance, err := uc.settler.Settle(ctx, sess.UserID, txnNumber, bd.Credit)
	if err != nil {
		// Succeeded on the gateway side but not credited here. Never
		// retried silently; the user is pointed at transaction history.
		msg := "payment received but crediting could not be confirmed; check your transaction history before retrying"
		_ = uc.repo.MarkTerminal(ctx, ref, domain.DepositStatusConfirmFailed, &msg)
		_, _ = sess.Apply(wizard.SettleFatal{Message: msg})
		uc.publish(ctx, "deposit.failed", sess.UserID, ref, txnNumber, state, bd, msg)
		uc.logger.Error("settlement failed after gateway success",
			zap.Int64("user_id", sess.UserID),
			zap.String("attempt_ref", ref),
			zap.String("txn_number", txnNumber),
			zap.Error(err))
		return
	}

	sess.SetBalance(balance)
	if err := uc.repo.MarkCompleted(ctx, ref); err != nil {
		uc.logger.Error("failed to mark attempt completed",
			zap.String("attempt_ref", ref),
			zap.Error(err))
	}
	_, _ = sess.Apply(wizard.SettleSucceeded{})
	uc.publish(ctx, "deposit.completed", sess.UserID, ref, txnNumber, state, bd, "")
}

func (uc *Usecase) publish(ctx context.Context, eventType string, userID int64, ref, txnNumber string, state wizard.State, bd fee.Breakdown, errMsg string) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, &pub.DepositEvent{
		EventType:    eventType,
		UserID:       userID,
		AttemptRef:   ref,
		TxnNumber:    txnNumber,
		Operator:     string(state.Operator),
		BaseAmount:   state.BaseAmount,
		FeeAmount:    bd.Fee,
		CreditAmount: bd.Credit,
		ErrorMessage: errMsg,
	}); err != nil {
		uc.logger.Warn("failed to publish deposit event",
			zap.String("event_type", eventType),
			zap.String("attempt_ref", ref),
			zap.Error(err))
	}
}

func initiateErrorMessage(err error) string {
	var rejected *gateway.RejectedError
	switch {
	case errors.Is(err, gateway.ErrInsufficientFunds):
		return "insufficient funds on the paying account"
	case errors.As(err, &rejected):
		return rejected.Error()
	default:
		return "payment could not be initiated, please try again"
	}
}
