package authapi

import (
	"context"
	"net/http"

	"helix/cmd/identity"
)

type contextKey struct{ name string }

var accountContextKey = &contextKey{"account"}

// AccountFromContext returns the authenticated account attached by
// requireAuth, if any.
func AccountFromContext(ctx context.Context) (identity.Account, bool) {
	a, ok := ctx.Value(accountContextKey).(identity.Account)
	return a, ok
}

// requireAuth verifies the access token and resolves the account before
// invoking next. Requests without a valid token get a 401 and never
// reach the wrapped handler.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := h.accessTokenFromRequest(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
			return
		}

		claims, err := h.svc.VerifyAccess(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
			return
		}

		account, err := h.svc.CurrentAccount(r.Context(), claims.AccountID())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), accountContextKey, account)
		next(w, r.WithContext(ctx))
	}
}
