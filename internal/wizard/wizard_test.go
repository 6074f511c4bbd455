package wizard_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"topup-service/internal/domain"
	"topup-service/internal/wizard"
)

func walkToConfirm(t *testing.T, op domain.Operator) wizard.State {
	t.Helper()
	s := wizard.New()
	s, err := wizard.Transition(s, wizard.SelectMethod{Method: domain.MethodMobileMoney})
	require.NoError(t, err)
	s, err = wizard.Transition(s, wizard.SelectOperator{Operator: op})
	require.NoError(t, err)
	s, err = wizard.Transition(s, wizard.EnterRecipient{Number: "+221771234567"})
	require.NoError(t, err)
	s, err = wizard.Transition(s, wizard.EnterAmount{Amount: 10000, PayerCoversFee: true})
	require.NoError(t, err)
	require.Equal(t, wizard.StepConfirm, s.Step)
	return s
}

func TestTransition(t *testing.T) {
	t.Run("mobile money walks through the operator step", func(t *testing.T) {
		s := wizard.New()
		require.Equal(t, wizard.StepMethod, s.Step)

		s, err := wizard.Transition(s, wizard.SelectMethod{Method: domain.MethodMobileMoney})
		require.NoError(t, err)
		require.Equal(t, wizard.StepOperator, s.Step)
	})

	t.Run("card skips the operator step", func(t *testing.T) {
		s := wizard.New()
		s, err := wizard.Transition(s, wizard.SelectMethod{Method: domain.MethodCard})
		require.NoError(t, err)
		require.Equal(t, wizard.StepRecipient, s.Step)
		require.Equal(t, domain.OperatorCard, s.Operator)
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		s := wizard.New()
		_, err := wizard.Transition(s, wizard.SelectMethod{Method: domain.Method("cheque")})
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("unknown operator rejected", func(t *testing.T) {
		s := wizard.New()
		s, _ = wizard.Transition(s, wizard.SelectMethod{Method: domain.MethodMobileMoney})
		_, err := wizard.Transition(s, wizard.SelectOperator{Operator: domain.Operator("mystery")})
		require.ErrorIs(t, err, domain.ErrUnknownOperator)
	})

	t.Run("recipient is normalized on entry", func(t *testing.T) {
		s := walkToConfirm(t, domain.OperatorWave)
		require.Equal(t, "0771234567", s.RecipientNumber)
	})

	t.Run("invalid recipient blocks the step", func(t *testing.T) {
		s := wizard.New()
		s, _ = wizard.Transition(s, wizard.SelectMethod{Method: domain.MethodCard})
		_, err := wizard.Transition(s, wizard.EnterRecipient{Number: "12"})
		require.ErrorIs(t, err, wizard.ErrMissingField)
	})

	t.Run("amount below minimum blocks the step", func(t *testing.T) {
		s := wizard.New()
		s, _ = wizard.Transition(s, wizard.SelectMethod{Method: domain.MethodCard})
		s, _ = wizard.Transition(s, wizard.EnterRecipient{Number: "0771234567"})
		_, err := wizard.Transition(s, wizard.EnterAmount{Amount: domain.MinDepositAmount - 1})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("events only apply on their own step", func(t *testing.T) {
		s := wizard.New()
		_, err := wizard.Transition(s, wizard.SelectOperator{Operator: domain.OperatorWave})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
		_, err = wizard.Transition(s, wizard.EnterAmount{Amount: 10000})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
		_, err = wizard.Transition(s, wizard.Submit{})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
	})
}

func TestBack(t *testing.T) {
	t.Run("retraces the mobile money path", func(t *testing.T) {
		s := walkToConfirm(t, domain.OperatorWave)

		s, err := wizard.Transition(s, wizard.Back{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepAmount, s.Step)

		s, err = wizard.Transition(s, wizard.Back{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepRecipient, s.Step)

		s, err = wizard.Transition(s, wizard.Back{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepOperator, s.Step)

		s, err = wizard.Transition(s, wizard.Back{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepMethod, s.Step)
	})

	t.Run("skips the operator step for card", func(t *testing.T) {
		s := wizard.New()
		s, _ = wizard.Transition(s, wizard.SelectMethod{Method: domain.MethodCard})
		s, err := wizard.Transition(s, wizard.Back{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepMethod, s.Step)
	})

	t.Run("clears no collected data", func(t *testing.T) {
		s := walkToConfirm(t, domain.OperatorFreeMoney)
		s, err := wizard.Transition(s, wizard.Back{})
		require.NoError(t, err)
		require.Equal(t, "0771234567", s.RecipientNumber)
		require.Equal(t, int64(10000), s.BaseAmount)
		require.Equal(t, domain.OperatorFreeMoney, s.Operator)
	})

	t.Run("not allowed from the first step", func(t *testing.T) {
		_, err := wizard.Transition(wizard.New(), wizard.Back{})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
	})
}

func TestSubmit(t *testing.T) {
	t.Run("moves confirm to settling", func(t *testing.T) {
		s := walkToConfirm(t, domain.OperatorWave)
		s, err := wizard.Transition(s, wizard.Submit{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepSettling, s.Step)
	})

	t.Run("requires one-time code for otp operators", func(t *testing.T) {
		s := walkToConfirm(t, domain.OperatorOrangeMoney)
		_, err := wizard.Transition(s, wizard.Submit{})
		require.ErrorIs(t, err, wizard.ErrMissingField)

		s, err = wizard.Transition(s, wizard.Submit{OneTimeCode: "482913"})
		require.NoError(t, err)
		require.Equal(t, wizard.StepSettling, s.Step)
		require.Equal(t, "482913", s.OneTimeCode)
	})

	t.Run("double submit is structurally impossible", func(t *testing.T) {
		s := walkToConfirm(t, domain.OperatorWave)
		s, err := wizard.Transition(s, wizard.Submit{})
		require.NoError(t, err)
		_, err = wizard.Transition(s, wizard.Submit{})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
	})
}

func TestSettlementOutcomes(t *testing.T) {
	submitted := func(t *testing.T) wizard.State {
		s := walkToConfirm(t, domain.OperatorWave)
		s, err := wizard.Transition(s, wizard.Submit{})
		require.NoError(t, err)
		return s
	}

	t.Run("success is terminal", func(t *testing.T) {
		s, err := wizard.Transition(submitted(t), wizard.SettleSucceeded{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepSuccess, s.Step)
		require.Empty(t, s.LastError)

		_, err = wizard.Transition(s, wizard.Submit{})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
	})

	t.Run("failure returns to confirm with the message inline", func(t *testing.T) {
		s, err := wizard.Transition(submitted(t), wizard.SettleFailed{Message: "payment timed out"})
		require.NoError(t, err)
		require.Equal(t, wizard.StepConfirm, s.Step)
		require.Equal(t, "payment timed out", s.LastError)

		// The session stays resumable: a fresh submit is allowed.
		s, err = wizard.Transition(s, wizard.Submit{})
		require.NoError(t, err)
		require.Equal(t, wizard.StepSettling, s.Step)
		require.Empty(t, s.LastError)
	})

	t.Run("fatal settlement kills the session", func(t *testing.T) {
		s, err := wizard.Transition(submitted(t), wizard.SettleFatal{Message: "check transaction history"})
		require.NoError(t, err)
		require.Equal(t, wizard.StepFailed, s.Step)

		_, err = wizard.Transition(s, wizard.Submit{})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
		_, err = wizard.Transition(s, wizard.Back{})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
	})
}

func TestSessionStore(t *testing.T) {
	t.Run("create get close", func(t *testing.T) {
		st := wizard.NewStore()
		sess := st.Create(42)
		require.NotEmpty(t, sess.ID)
		require.Equal(t, int64(42), sess.UserID)
		require.Equal(t, wizard.StepMethod, sess.State().Step)

		got, err := st.Get(sess.ID)
		require.NoError(t, err)
		require.Same(t, sess, got)

		st.Close(sess.ID)
		_, err = st.Get(sess.ID)
		require.ErrorIs(t, err, wizard.ErrSessionNotFound)
	})

	t.Run("apply commits under the session lock", func(t *testing.T) {
		st := wizard.NewStore()
		sess := st.Create(1)
		_, err := sess.Apply(wizard.SelectMethod{Method: domain.MethodCard})
		require.NoError(t, err)
		require.Equal(t, wizard.StepRecipient, sess.State().Step)

		// A rejected event leaves the state untouched.
		_, err = sess.Apply(wizard.Submit{})
		require.ErrorIs(t, err, wizard.ErrInvalidTransition)
		require.Equal(t, wizard.StepRecipient, sess.State().Step)
	})
}
