package rbac

import (
	"net/http"

	"github.com/mind-engage/quazian/internal/platform/apierr"
)

// Require checks perm against DefaultPolicy.
func Require(perm string) func(http.Handler) http.Handler {
	return DefaultPolicy.Require(perm)
}

// Require answers 401 without a principal and 403 when the principal's role
// lacks perm.
func (p Policy) Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := PrincipalFrom(r.Context()).Role
			switch {
			case role == "":
				apierr.Write(w, apierr.Unauthorized())
			case !p.Allows(role, perm):
				apierr.Write(w, apierr.Forbidden("forbidden"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
