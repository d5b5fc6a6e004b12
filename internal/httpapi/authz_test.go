package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"deskhub.org/internal/account"
	"deskhub.org/internal/session"
)

func TestAnonymousRedirectedToLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/admin/dashboard", "/admin/accounts", "/tickets", "/department/dashboard"} {
		rr := env.do(t, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != loginPath {
			t.Fatalf("%s: expected redirect to %s, got %s", path, loginPath, loc)
		}
	}
}

func TestUnknownSessionCookieRedirects(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/admin/dashboard", nil, &http.Cookie{Name: SessionCookie, Value: "bogus"})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != loginPath {
		t.Fatalf("expected redirect to login, got %d -> %s", rr.Code, rr.Header().Get("Location"))
	}
}

func TestDepartmentUserRedirectedFromAdminPages(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("ops", account.RoleDepartment, "logistics")
	cookie := env.login(t, "ops", "Str0ng!pass")

	rr := env.do(t, http.MethodGet, "/admin/accounts", nil, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/department/dashboard" {
		t.Fatalf("expected redirect to own dashboard, got %s", loc)
	}
}

func TestAdminRedirectedFromDepartmentDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("admin", account.RoleAdmin, "")
	cookie := env.login(t, "admin", "Str0ng!pass")

	rr := env.do(t, http.MethodGet, "/department/dashboard", nil, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/admin/dashboard" {
		t.Fatalf("expected redirect to admin dashboard, got %s", loc)
	}
}

func TestDeleteRequiresSuperAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount("admin", account.RoleAdmin, "")
	target := env.seedAccount("ops", account.RoleDepartment, "logistics")
	cookie := env.login(t, "admin", "Str0ng!pass")

	rr := env.do(t, http.MethodDelete, "/admin/accounts/2", nil, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for non-super-admin, got %d", rr.Code)
	}
	if _, err := env.store.Find(context.Background(), target.ID); err != nil {
		t.Fatalf("target must be untouched: %v", err)
	}
}

func TestDeactivatedAccountSessionIsDestroyed(t *testing.T) {
	env := newTestEnv(t)
	acc := env.seedAccount("ops", account.RoleDepartment, "logistics")
	cookie := env.login(t, "ops", "Str0ng!pass")

	// The first request with a live session works.
	rr := env.do(t, http.MethodGet, "/department/dashboard", nil, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	// Deactivate behind the session's back.
	status := account.StatusInactive
	if err := env.store.UpdateFields(context.Background(), acc.ID, account.Fields{Status: &status}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	rr = env.do(t, http.MethodGet, "/department/dashboard", nil, cookie)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != loginPath {
		t.Fatalf("expected redirect to login, got %d -> %s", rr.Code, rr.Header().Get("Location"))
	}

	// The session itself was removed, not just denied.
	if _, err := env.sessions.Get(context.Background(), cookie.Value); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session to be destroyed, got %v", err)
	}
}
