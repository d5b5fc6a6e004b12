package httpapi

import (
	"errors"
	"net/http"

	"deskhub.org/internal/account"
	"deskhub.org/internal/session"
)

// SessionCookie is the name of the session identifier cookie.
const SessionCookie = "deskhub_sid"

const loginPath = "/login"

// dashboardPath is where an authenticated account lands after login, and
// where it is sent back when it requests a page outside its role.
func dashboardPath(role account.Role) string {
	if role == account.RoleDepartment {
		return "/department/dashboard"
	}
	return "/admin/dashboard"
}

func (a *API) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(a.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAuthenticated resolves the session cookie and re-validates the
// account against the store on every request. A session whose account has
// been deleted or deactivated since login is destroyed on the spot; all
// failures end at the login page.
func (a *API) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		payload, err := a.sessions.Get(r.Context(), cookie.Value)
		if errors.Is(err, session.ErrNotFound) {
			clearSessionCookie(w)
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		acc, err := a.accountStore.Find(r.Context(), payload.AccountID)
		if errors.Is(err, account.ErrNotFound) || (err == nil && acc.Status != account.StatusActive) {
			_ = a.sessions.Delete(r.Context(), cookie.Value)
			clearSessionCookie(w)
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(session.ContextWithPayload(r.Context(), payload)))
	})
}

// RequireAdmin admits admin and super_admin accounts. Everyone else is sent
// to their own dashboard rather than shown an error page.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := session.PayloadFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if !payload.Role.Privileged() {
			http.Redirect(w, r, dashboardPath(payload.Role), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin admits only super_admin accounts.
func (a *API) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := session.PayloadFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if payload.Role != account.RoleSuperAdmin {
			http.Redirect(w, r, dashboardPath(payload.Role), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireDepartment admits only department accounts.
func (a *API) RequireDepartment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := session.PayloadFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if payload.Role != account.RoleDepartment {
			http.Redirect(w, r, dashboardPath(payload.Role), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
