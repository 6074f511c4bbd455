package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"topup-service/internal/domain"
	"topup-service/internal/provider/gateway"
	"topup-service/internal/repository"
	deposit "topup-service/internal/usecase/deposit"
	"topup-service/internal/wizard"
)

type TopupHandler struct {
	uc     *deposit.Usecase
	logger *zap.Logger
}

func NewTopupHandler(uc *deposit.Usecase, logger *zap.Logger) *TopupHandler {
	return &TopupHandler{uc: uc, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// userID comes from the auth layer in front of this service; the
// handler only reads the header it sets.
func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound),
		errors.Is(err, repository.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, deposit.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, wizard.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrInsufficientFunds),
		isRejected(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wizard.ErrMissingField),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrUnknownOperator):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isRejected(err error) bool {
	var rejected *gateway.RejectedError
	return errors.As(err, &rejected)
}
