// Package wizard models the top-up flow as an explicit state machine:
// a tagged state plus a pure transition function, testable without any
// transport harness.
package wizard

import (
	"errors"
	"fmt"

	"topup-service/internal/domain"
)

// Step is the wizard's current position. StepSettling covers the window
// between submission and the terminal polling outcome; only StepConfirm
// accepts a submit, which is what makes starting a second polling run
// structurally impossible.
type Step int

const (
	StepMethod Step = iota + 1
	StepOperator
	StepRecipient
	StepAmount
	StepConfirm
	StepSettling
	StepSuccess
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepMethod:
		return "method"
	case StepOperator:
		return "operator"
	case StepRecipient:
		return "recipient"
	case StepAmount:
		return "amount"
	case StepConfirm:
		return "confirm"
	case StepSettling:
		return "settling"
	case StepSuccess:
		return "success"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrMissingField      = errors.New("missing required field")
)

// State carries every field the flow has collected so far. LastError is
// a non-fatal overlay shown on the confirmation step, never a state of
// its own.
type State struct {
	Step            Step
	Method          domain.Method
	Operator        domain.Operator
	RecipientNumber string
	BaseAmount      int64
	PayerCoversFee  bool
	OneTimeCode     string
	LastError       string
}

// New returns the initial state, at method selection.
func New() State {
	return State{Step: StepMethod}
}

// Event is one user or system input to the wizard.
type Event interface {
	isEvent()
}

type SelectMethod struct{ Method domain.Method }

type SelectOperator struct{ Operator domain.Operator }

type EnterRecipient struct{ Number string }

type EnterAmount struct {
	Amount         int64
	PayerCoversFee bool
}

// Back returns to the previous step. Always allowed before settlement
// and clears nothing.
type Back struct{}

// Submit moves confirm -> settling once the inputs validate. Side
// effects (initiation, polling) belong to the caller.
type Submit struct{ OneTimeCode string }

// SettleSucceeded ends the flow after reconciliation.
type SettleSucceeded struct{}

// SettleFailed returns the flow to the confirmation step with a
// user-visible message. Covers failure, timeout and cancellation; a
// resubmit is a fresh initiation.
type SettleFailed struct{ Message string }

// SettleFatal ends the flow in a dead state. Used when confirm fails
// after the gateway reported success: resubmitting could double-credit,
// so the session stops accepting events entirely.
type SettleFatal struct{ Message string }

func (SelectMethod) isEvent()    {}
func (SelectOperator) isEvent()  {}
func (EnterRecipient) isEvent()  {}
func (EnterAmount) isEvent()     {}
func (Back) isEvent()            {}
func (Submit) isEvent()          {}
func (SettleSucceeded) isEvent() {}
func (SettleFailed) isEvent()    {}
func (SettleFatal) isEvent()     {}

// Transition applies one event to a state. Pure: no I/O, no clock, no
// mutation of the input.
func Transition(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case SelectMethod:
		return selectMethod(s, e)
	case SelectOperator:
		return selectOperator(s, e)
	case EnterRecipient:
		return enterRecipient(s, e)
	case EnterAmount:
		return enterAmount(s, e)
	case Back:
		return back(s)
	case Submit:
		return submit(s, e)
	case SettleSucceeded:
		if s.Step != StepSettling {
			return s, ErrInvalidTransition
		}
		s.Step = StepSuccess
		s.LastError = ""
		return s, nil
	case SettleFailed:
		if s.Step != StepSettling {
			return s, ErrInvalidTransition
		}
		s.Step = StepConfirm
		s.LastError = e.Message
		return s, nil
	case SettleFatal:
		if s.Step != StepSettling {
			return s, ErrInvalidTransition
		}
		s.Step = StepFailed
		s.LastError = e.Message
		return s, nil
	default:
		return s, ErrInvalidTransition
	}
}

func selectMethod(s State, e SelectMethod) (State, error) {
	if s.Step != StepMethod {
		return s, ErrInvalidTransition
	}
	switch e.Method {
	case domain.MethodMobileMoney:
		s.Method = e.Method
		s.Step = StepOperator
	case domain.MethodCard:
		s.Method = e.Method
		s.Operator = domain.OperatorCard
		s.Step = StepRecipient
	default:
		return s, fmt.Errorf("%w: unknown method %q", domain.ErrInvalidRequest, e.Method)
	}
	return s, nil
}

func selectOperator(s State, e SelectOperator) (State, error) {
	if s.Step != StepOperator {
		return s, ErrInvalidTransition
	}
	if _, err := domain.LookupOperator(e.Operator); err != nil {
		return s, err
	}
	s.Operator = e.Operator
	s.Step = StepRecipient
	return s, nil
}

func enterRecipient(s State, e EnterRecipient) (State, error) {
	if s.Step != StepRecipient {
		return s, ErrInvalidTransition
	}
	n := domain.NormalizeRecipientNumber(e.Number)
	if !domain.ValidRecipientNumber(n) {
		return s, fmt.Errorf("%w: recipient number", ErrMissingField)
	}
	s.RecipientNumber = n
	s.Step = StepAmount
	return s, nil
}

func enterAmount(s State, e EnterAmount) (State, error) {
	if s.Step != StepAmount {
		return s, ErrInvalidTransition
	}
	if e.Amount < domain.MinDepositAmount {
		return s, fmt.Errorf("%w: amount below minimum", domain.ErrInvalidAmount)
	}
	s.BaseAmount = e.Amount
	s.PayerCoversFee = e.PayerCoversFee
	s.Step = StepConfirm
	return s, nil
}

func back(s State) (State, error) {
	switch s.Step {
	case StepOperator:
		s.Step = StepMethod
	case StepRecipient:
		if s.Method.RequiresOperator() {
			s.Step = StepOperator
		} else {
			s.Step = StepMethod
		}
	case StepAmount:
		s.Step = StepRecipient
	case StepConfirm:
		s.Step = StepAmount
		s.LastError = ""
	default:
		return s, ErrInvalidTransition
	}
	return s, nil
}

func submit(s State, e Submit) (State, error) {
	if s.Step != StepConfirm {
		return s, ErrInvalidTransition
	}
	cfg, err := domain.LookupOperator(s.Operator)
	if err != nil {
		return s, err
	}
	if cfg.RequiresOneTimeCode && e.OneTimeCode == "" {
		return s, fmt.Errorf("%w: one-time code", ErrMissingField)
	}
	if s.RecipientNumber == "" {
		return s, fmt.Errorf("%w: recipient number", ErrMissingField)
	}
	if s.BaseAmount <= 0 {
		return s, domain.ErrInvalidAmount
	}
	s.OneTimeCode = e.OneTimeCode
	s.Step = StepSettling
	s.LastError = ""
	return s, nil
}
