package httpapi

import (
	"context"
	"log"
	"net/http"

	"github.com/hperssn/focussync/internal/wire"
)

type contextKey string

const accountKey contextKey = "account"

// DevAccount is used when no proxy header names the account.
const DevAccount = "dev-user"

// ExtractAccount reads the account set by the reverse proxy. It only
// identifies the caller; authentication happens in front of the server.
func ExtractAccount(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := r.Header.Get(wire.AccountHeader)

			// Also check common alternatives
			if account == "" {
				account = r.Header.Get("X-Forwarded-User")
			}
			if account == "" {
				account = r.Header.Get("Remote-User")
			}

			if account == "" {
				account = DevAccount
				logger.Printf("warning: no account header on %s %s, using %s", r.Method, r.URL.Path, DevAccount)
			}

			ctx := context.WithValue(r.Context(), accountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AccountFrom(r *http.Request) string {
	account, ok := r.Context().Value(accountKey).(string)
	if !ok {
		return ""
	}
	return account
}
