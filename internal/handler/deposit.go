package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"topup-service/internal/domain"
	deposit "topup-service/internal/usecase/deposit"
	"topup-service/internal/wizard"
)

// Wizard step endpoints. Each one decodes its step's payload, maps it
// onto a wizard event and applies it to the session.

func (h *TopupHandler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method domain.Method `json:"method"`
	}
	h.applyStep(w, r, &req, func() wizard.Event {
		return wizard.SelectMethod{Method: req.Method}
	})
}

func (h *TopupHandler) SelectOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operator domain.Operator `json:"operator"`
	}
	h.applyStep(w, r, &req, func() wizard.Event {
		return wizard.SelectOperator{Operator: req.Operator}
	})
}

func (h *TopupHandler) EnterRecipient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number string `json:"number"`
	}
	h.applyStep(w, r, &req, func() wizard.Event {
		return wizard.EnterRecipient{Number: req.Number}
	})
}

func (h *TopupHandler) EnterAmount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount         int64 `json:"amount"`
		PayerCoversFee bool  `json:"payer_covers_fee"`
	}
	h.applyStep(w, r, &req, func() wizard.Event {
		return wizard.EnterAmount{Amount: req.Amount, PayerCoversFee: req.PayerCoversFee}
	})
}

func (h *TopupHandler) Back(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if _, err := h.uc.Step(sess.ID, wizard.Back{}); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *TopupHandler) applyStep(w http.ResponseWriter, r *http.Request, req any, ev func() wizard.Event) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if _, err := h.uc.Step(sess.ID, ev()); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// Submit initiates the payment. For redirect operators the response
// carries payment_url for out-of-band display; polling runs either way
// and the outcome lands on the session.
func (h *TopupHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	var req struct {
		OneTimeCode string `json:"one_time_code"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request format")
			return
		}
	}

	result, err := h.uc.Submit(r.Context(), sess.ID, req.OneTimeCode)
	if err != nil {
		h.logger.Warn("deposit submit rejected",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// CancelRun aborts the live polling run, e.g. when the user closes the
// redirect view. Informational, not an error: the session stays
// resumable.
func (h *TopupHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if err := h.uc.Cancel(sess.ID); err != nil {
		if errors.Is(err, deposit.ErrNoActiveRun) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (h *TopupHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	a, err := h.uc.Attempt(r.Context(), chi.URLParam(r, "attemptRef"), uid)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *TopupHandler) History(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	attempts, total, err := h.uc.History(r.Context(), uid, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deposits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deposits": attempts,
		"total":    total,
	})
}

// Operators lists the selectable mobile-money operators with their
// capability flags, so the client can render the right fields.
func (h *TopupHandler) Operators(w http.ResponseWriter, _ *http.Request) {
	type operatorView struct {
		Operator            domain.Operator `json:"operator"`
		RequiresOneTimeCode bool            `json:"requires_one_time_code"`
		UsesRedirectFlow    bool            `json:"uses_redirect_flow"`
	}
	var out []operatorView
	for _, op := range domain.Operators() {
		cfg, err := domain.LookupOperator(op)
		if err != nil {
			continue
		}
		out = append(out, operatorView{
			Operator:            op,
			RequiresOneTimeCode: cfg.RequiresOneTimeCode,
			UsesRedirectFlow:    cfg.UsesRedirectFlow,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"operators": out})
}
