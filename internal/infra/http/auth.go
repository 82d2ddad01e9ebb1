package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const investorKeyCtx contextKey = "investor_key"

// investorAuth puts the "Authorization: Bearer <investor key>" value into the
// request context. With required set, requests without one stop with 401.
func investorAuth(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			var key string
			if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
				key = strings.TrimSpace(auth[7:])
			}
			if key == "" && (required || auth != "") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing investor bearer key", middleware.GetReqID(r.Context()))
				return
			}
			ctx := context.WithValue(r.Context(), investorKeyCtx, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func investorKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(investorKeyCtx).(string); ok {
		return v
	}
	return ""
}
