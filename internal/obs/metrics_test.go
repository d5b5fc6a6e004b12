package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/admin/accounts":               "/admin/accounts",
		"/admin/accounts/42":            "/admin/accounts/:id",
		"/admin/accounts/42/unlock":     "/admin/accounts/:id/unlock",
		"/admin/accounts/42/password":   "/admin/accounts/:id/password",
		"/admin/accounts/42/extra":      "/admin/accounts/42/extra",
		"/tickets/01J3ZB4T":             "/tickets/:id",
		"/tickets/01J3ZB4T/assign":      "/tickets/:id/assign",
		"/tickets/01J3ZB4T/status":      "/tickets/:id/status",
		"/tickets?department=logistics": "/tickets",
		"/login":                        "/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
