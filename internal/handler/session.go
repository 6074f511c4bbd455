package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"topup-service/internal/domain"
	"topup-service/internal/wizard"
)

// sessionView is the wire shape of a wizard session. OneTimeCode is
// deliberately absent.
type sessionView struct {
	ID              string          `json:"id"`
	Step            string          `json:"step"`
	Method          domain.Method   `json:"method,omitempty"`
	Operator        domain.Operator `json:"operator,omitempty"`
	RecipientNumber string          `json:"recipient_number,omitempty"`
	BaseAmount      int64           `json:"base_amount,omitempty"`
	PayerCoversFee  bool            `json:"payer_covers_fee"`
	LastError       string          `json:"last_error,omitempty"`
	AttemptRef      string          `json:"attempt_ref,omitempty"`
	PaymentURL      string          `json:"payment_url,omitempty"`
	Balance         int64           `json:"balance,omitempty"`
}

func viewOf(sess *wizard.Session) sessionView {
	st := sess.State()
	ref, _, paymentURL, _ := sess.Attempt()
	return sessionView{
		ID:              sess.ID,
		Step:            st.Step.String(),
		Method:          st.Method,
		Operator:        st.Operator,
		RecipientNumber: st.RecipientNumber,
		BaseAmount:      st.BaseAmount,
		PayerCoversFee:  st.PayerCoversFee,
		LastError:       st.LastError,
		AttemptRef:      ref,
		PaymentURL:      paymentURL,
		Balance:         sess.Balance(),
	}
}

func (h *TopupHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	sess := h.uc.Open(uid)
	h.logger.Info("wizard session opened",
		zap.Int64("user_id", uid),
		zap.String("session_id", sess.ID))
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (h *TopupHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *TopupHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	h.uc.Close(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TopupHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return nil, false
	}
	sess, err := h.uc.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return nil, false
	}
	if sess.UserID != uid {
		writeError(w, http.StatusForbidden, "not your session")
		return nil, false
	}
	return sess, true
}
