package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/settings", h.getSettings)
	r.Patch("/settings", h.updateSettings)
	r.Get("/vesting", h.vested)

	r.Route("/pods", func(r chi.Router) {
		r.Post("/", h.createPod)
		r.Get("/", h.listPods)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getPod)
			r.Get("/status", h.status)
			r.Get("/founder-claimable", h.founderClaimable)
			r.Get("/investors/{investor}", h.position)
			r.Get("/ledger.xlsx", h.ledger)

			r.With(investorAuth(false)).Post("/invest", h.invest)
			r.Group(func(r chi.Router) {
				r.Use(investorAuth(true))
				r.Post("/cancel", h.cancel)
				r.Post("/claim", h.claim)
				r.Post("/exit", h.exit)
				r.Post("/refund", h.refund)
			})

			r.Post("/founder/claim", h.founderClaim)
			r.Post("/founder/withdraw", h.founderWithdraw)
		})
	})
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			log.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(started).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
