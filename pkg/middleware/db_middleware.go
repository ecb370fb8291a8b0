package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/asptt-sync/pkg/composables"
)

// ProvideDB makes pool available to repositories through the request context.
// Transactions stay with the services that need them.
func ProvideDB(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pool != nil {
				r = r.WithContext(composables.WithPool(r.Context(), pool))
			}
			next.ServeHTTP(w, r)
		})
	}
}
