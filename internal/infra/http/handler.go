package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Spok95/podvest/internal/application"
	"github.com/Spok95/podvest/internal/domain/settings"
	"github.com/Spok95/podvest/internal/infra/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	headerPodAdmin      = "X-Pod-Admin-Token"
	headerPlatformAdmin = "X-Platform-Admin-Token"
)

type Handler struct {
	service *application.Service
	log     *slog.Logger
}

func NewHandler(service *application.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

type investorRequest struct {
	Investor string `json:"investor"`
	Amount   uint64 `json:"amount"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapDomainError(err)
	if status == http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, code, err.Error(), middleware.GetReqID(r.Context()))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), middleware.GetReqID(r.Context()))
		return false
	}
	return true
}

func (h *Handler) investor(w http.ResponseWriter, r *http.Request) (investorRequest, bool) {
	var req investorRequest
	if !h.decode(w, r, &req) {
		return req, false
	}
	req.Investor = strings.TrimSpace(req.Investor)
	if req.Investor == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "investor is required", middleware.GetReqID(r.Context()))
		return req, false
	}
	return req, true
}

/* settings */

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	params, err := h.service.Settings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var u settings.Update
	if !h.decode(w, r, &u) {
		return
	}
	params, err := h.service.UpdateSettings(r.Context(), r.Header.Get(headerPlatformAdmin), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

/* pods */

func (h *Handler) createPod(w http.ResponseWriter, r *http.Request) {
	var in application.CreatePodInput
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.service.CreatePod(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) listPods(w http.ResponseWriter, r *http.Request) {
	pods, err := h.service.ListPods(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pods": pods})
}

func (h *Handler) getPod(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetPod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": st})
}

func (h *Handler) founderClaimable(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.FounderClaimable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"founder_claimable": v})
}

func (h *Handler) position(w http.ResponseWriter, r *http.Request) {
	pos, err := h.service.Position(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "investor"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	p, now, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := report.LedgerXLSX(p, now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ledger_"+p.ID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) invest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.investor(w, r)
	if !ok {
		return
	}
	res, err := h.service.Invest(r.Context(), chi.URLParam(r, "id"), req.Investor, investorKeyFromContext(r.Context()), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.investor(w, r)
	if !ok {
		return
	}
	refund, err := h.service.CancelSubscription(r.Context(), chi.URLParam(r, "id"), req.Investor, investorKeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refund": refund})
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	req, ok := h.investor(w, r)
	if !ok {
		return
	}
	tokens, err := h.service.ClaimTokens(r.Context(), chi.URLParam(r, "id"), req.Investor, investorKeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (h *Handler) exit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.investor(w, r)
	if !ok {
		return
	}
	res, err := h.service.ExitInvestment(r.Context(), chi.URLParam(r, "id"), req.Investor, investorKeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	req, ok := h.investor(w, r)
	if !ok {
		return
	}
	refund, err := h.service.FailedPodRefund(r.Context(), chi.URLParam(r, "id"), req.Investor, investorKeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refund": refund})
}

func (h *Handler) founderClaim(w http.ResponseWriter, r *http.Request) {
	funds, err := h.service.FounderClaimFunds(r.Context(), chi.URLParam(r, "id"), r.Header.Get(headerPodAdmin))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"funds": funds})
}

func (h *Handler) founderWithdraw(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.service.FailedPodWithdraw(r.Context(), chi.URLParam(r, "id"), r.Header.Get(headerPodAdmin))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (h *Handler) vested(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var args [4]uint64
	for i, name := range []string{"elapsed", "duration", "unlock_fraction", "total"} {
		v, err := strconv.ParseUint(q.Get(name), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", name+": "+err.Error(), middleware.GetReqID(r.Context()))
			return
		}
		args[i] = v
	}
	v, err := h.service.VestedTokens(args[0], args[1], args[2], args[3])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vested": v})
}
