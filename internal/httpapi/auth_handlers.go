package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"deskhub.org/internal/account"
	"deskhub.org/internal/auth"
	"deskhub.org/internal/obs"
	"deskhub.org/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates credentials and issues a session cookie. Every
// rejection, whatever the underlying cause, produces the same response.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acc, err := a.authn.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sid, err := a.sessions.Create(r.Context(), session.PayloadFor(acc))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.setSessionCookie(w, sid)
	writeJSON(w, http.StatusOK, map[string]any{
		"redirect": dashboardPath(acc.Role),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		_ = a.sessions.Delete(r.Context(), cookie.Value)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

type forgotPasswordRequest struct {
	Username string `json:"username"`
}

// handleForgotPassword issues a reset token for a known active account. The
// response never discloses whether the account exists.
func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accepted := func() {
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
	}

	username := strings.TrimSpace(strings.ToLower(req.Username))
	acc, err := a.accountStore.FindByUsername(r.Context(), username)
	if err != nil || acc.Status != account.StatusActive {
		accepted()
		return
	}
	token, err := a.resetTokens.Issue(acc.ID, acc.PasswordChangedAt)
	if err != nil {
		accepted()
		return
	}
	if err := a.resetSender.SendReset(r.Context(), acc.Email, token); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "reset_send_failed",
			"error": err.Error(),
		})
	}
	accepted()
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleResetPassword redeems a reset token. A token issued before the most
// recent password change is rejected, which makes tokens single-use in
// practice: redeeming one changes the password and invalidates the rest.
func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID, stamp, err := a.resetTokens.Validate(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired token")
		return
	}
	acc, err := a.accountStore.Find(r.Context(), accountID)
	if err != nil || acc.Status != account.StatusActive {
		writeError(w, http.StatusBadRequest, "invalid or expired token")
		return
	}
	var current int64
	if acc.PasswordChangedAt != nil {
		current = acc.PasswordChangedAt.UTC().Unix()
	}
	if current != stamp {
		writeError(w, http.StatusBadRequest, "invalid or expired token")
		return
	}

	if err := a.accounts.ResetPassword(r.Context(), acc.ID, acc.ID, req.Password, clientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	payload, ok := session.PayloadFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.accounts.ChangePassword(r.Context(), payload.AccountID, req.CurrentPassword, req.NewPassword, clientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
