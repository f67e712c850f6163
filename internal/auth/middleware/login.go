package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quazian/internal/platform/validate"
	"github.com/mind-engage/quazian/internal/roster"
)

// UserFinder is the account lookup login needs.
type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (roster.User, error)
	HasPendingInvitation(ctx context.Context, userID string) (bool, error)
}

type loginRequest struct {
	Email    string `json:"email" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

// POST /api/{prof|student}/login  { "email": "...", "password": "..." }
func LoginHandler(a *AuthService, users UserFinder, role roster.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || validate.Struct(req) != nil {
			writeErr(w, http.StatusBadRequest, "credentials_required")
			return
		}
		u, err := users.UserByEmail(r.Context(), req.Email)
		if err != nil && !errors.Is(err, roster.ErrNotFound) {
			writeErr(w, http.StatusInternalServerError, "internal")
			return
		}
		if err != nil || u.Role != role || u.PasswordHash == "" ||
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			writeErr(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		if u.Status != roster.StatusActive {
			code := "account_inactive"
			if role == roster.RoleStudent {
				code = "invitation_expired"
				if pending, _ := users.HasPendingInvitation(r.Context(), u.ID); pending {
					code = "invitation_pending"
				}
			}
			writeErr(w, http.StatusForbidden, code)
			return
		}

		tok, err := a.IssueJWT(u.ID, string(u.Role))
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "internal")
			return
		}
		a.SetSession(w, tok)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":           true,
			"access_token": tok,
			"role":         u.Role,
			"userId":       u.ID,
		})
	}
}

// POST /api/logout
func LogoutHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.ClearSession(w)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}
