package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/mind-engage/quazian/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the stored one and rejects
// sessions of deleted or not yet activated accounts.
func AttachRoleFromDB(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := rbac.PrincipalFrom(ctx)

			var role, status string
			err := db.QueryRowContext(ctx,
				`SELECT role, status FROM users WHERE id=$1`, p.UserID,
			).Scan(&role, &status)

			switch {
			case errors.Is(err, sql.ErrNoRows):
				unauthorized(w)
			case err != nil:
				writeErr(w, http.StatusInternalServerError, "internal")
			case status != "ACTIVE":
				unauthorized(w)
			default:
				p.Role = role
				next.ServeHTTP(w, r.WithContext(rbac.WithPrincipal(ctx, p)))
			}
		})
	}
}
