package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Spok95/podvest/internal/domain/asset"
	"github.com/Spok95/podvest/internal/domain/fixed"
	"github.com/Spok95/podvest/internal/domain/pod"
	"github.com/Spok95/podvest/internal/domain/settings"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error     errorPayload `json:"error"`
	RequestID string       `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, errorResponse{Error: errorPayload{Code: code, Message: message}, RequestID: requestID})
}

func mapDomainError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, pod.ErrNotFound), errors.Is(err, settings.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, pod.ErrNoInvestment):
		return http.StatusNotFound, "no_investment"
	case errors.Is(err, pod.ErrNotPodAdmin), errors.Is(err, pod.ErrNotInvestor),
		errors.Is(err, settings.ErrNotPlatformAdmin):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, pod.ErrMalformedCap):
		return http.StatusForbidden, "malformed_admin_token"
	case errors.Is(err, pod.ErrInvalidParams), errors.Is(err, settings.ErrInvalidSettings):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, pod.ErrZeroAmount):
		return http.StatusBadRequest, "zero_amount"
	case errors.Is(err, pod.ErrWrongDeposit):
		return http.StatusConflict, "wrong_deposit"
	case errors.Is(err, pod.ErrNotSubscription):
		return http.StatusConflict, "not_subscription"
	case errors.Is(err, pod.ErrNotVesting):
		return http.StatusConflict, "not_vesting"
	case errors.Is(err, pod.ErrNotFailed):
		return http.StatusConflict, "not_failed"
	case errors.Is(err, pod.ErrGoalReached):
		return http.StatusConflict, "goal_reached"
	case errors.Is(err, pod.ErrAlreadyExited):
		return http.StatusConflict, "already_exited"
	case errors.Is(err, pod.ErrNothingToClaim):
		return http.StatusConflict, "nothing_to_claim"
	case errors.Is(err, pod.ErrNothingToCancel):
		return http.StatusConflict, "nothing_to_cancel"
	case errors.Is(err, fixed.ErrOverflow), errors.Is(err, fixed.ErrUnderflow),
		errors.Is(err, fixed.ErrDivideByZero), errors.Is(err, asset.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "arithmetic_abort"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
