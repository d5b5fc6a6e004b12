package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"deskhub.org/internal/account"
	"deskhub.org/internal/auth"
	"deskhub.org/internal/obs"
	"deskhub.org/internal/session"
	"deskhub.org/internal/ticket"
)

// ReadyProbe checks the service's storage dependency before reporting ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// ResetSender delivers a password-reset token to the account owner. Mail
// transport is an external collaborator; production wires a real sender.
type ResetSender interface {
	SendReset(ctx context.Context, email, token string) error
}

// Config wires the API's collaborators.
type Config struct {
	Accounts      *account.Service
	AccountStore  account.Store
	Authenticator *auth.Authenticator
	Sessions      *session.Store
	SessionTTL    time.Duration
	Tickets       *ticket.Service
	ResetTokens   *auth.ResetTokenizer
	ResetSender   ResetSender
	ReadyProbe    ReadyProbe
	Version       string
}

// API is the HTTP layer.
type API struct {
	mux          *http.ServeMux
	accounts     *account.Service
	accountStore account.Store
	authn        *auth.Authenticator
	sessions     *session.Store
	sessionTTL   time.Duration
	tickets      *ticket.Service
	resetTokens  *auth.ResetTokenizer
	resetSender  ResetSender
	readyProbe   ReadyProbe
	version      string
}

func New(cfg Config) *API {
	a := &API{
		mux:          http.NewServeMux(),
		accounts:     cfg.Accounts,
		accountStore: cfg.AccountStore,
		authn:        cfg.Authenticator,
		sessions:     cfg.Sessions,
		sessionTTL:   cfg.SessionTTL,
		tickets:      cfg.Tickets,
		resetTokens:  cfg.ResetTokens,
		resetSender:  cfg.ResetSender,
		readyProbe:   cfg.ReadyProbe,
		version:      cfg.Version,
	}

	// health/ready/metrics
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.Handle("GET /metrics", obs.Handler())

	// authentication surface; login and forgot-password are rate-limited
	a.mux.Handle("POST /login", RateLimit(http.HandlerFunc(a.handleLogin), 5, 10))
	a.mux.Handle("POST /logout", a.authenticated(a.handleLogout))
	a.mux.Handle("POST /password/forgot", RateLimit(http.HandlerFunc(a.handleForgotPassword), 1, 5))
	a.mux.HandleFunc("POST /password/reset", a.handleResetPassword)
	a.mux.Handle("POST /password/change", a.authenticated(a.handleChangePassword))

	// dashboards
	a.mux.Handle("GET /admin/dashboard", a.admin(a.handleDashboard))
	a.mux.Handle("GET /department/dashboard", a.department(a.handleDashboard))

	// account administration
	a.mux.Handle("GET /admin/accounts", a.admin(a.handleListAccounts))
	a.mux.Handle("POST /admin/accounts", a.admin(a.handleCreateAccount))
	a.mux.Handle("GET /admin/accounts/{id}", a.admin(a.handleGetAccount))
	a.mux.Handle("PATCH /admin/accounts/{id}", a.admin(a.handleUpdateAccount))
	a.mux.Handle("DELETE /admin/accounts/{id}", a.superAdmin(a.handleDeleteAccount))
	a.mux.Handle("POST /admin/accounts/{id}/unlock", a.admin(a.handleUnlockAccount))
	a.mux.Handle("POST /admin/accounts/{id}/password", a.admin(a.handleAdminResetPassword))

	// tickets
	a.mux.Handle("POST /tickets", a.authenticated(a.handleCreateTicket))
	a.mux.Handle("GET /tickets", a.authenticated(a.handleListTickets))
	a.mux.Handle("GET /tickets/{id}", a.authenticated(a.handleGetTicket))
	a.mux.Handle("POST /tickets/{id}/assign", a.admin(a.handleAssignTicket))
	a.mux.Handle("POST /tickets/{id}/status", a.authenticated(a.handleTicketStatus))

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// gating helpers

func (a *API) authenticated(next http.HandlerFunc) http.Handler {
	return a.RequireAuthenticated(next)
}

func (a *API) admin(next http.HandlerFunc) http.Handler {
	return a.RequireAuthenticated(a.RequireAdmin(next))
}

func (a *API) superAdmin(next http.HandlerFunc) http.Handler {
	return a.RequireAuthenticated(a.RequireSuperAdmin(next))
}

func (a *API) department(next http.HandlerFunc) http.Handler {
	return a.RequireAuthenticated(a.RequireDepartment(next))
}

// basic handlers

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "deskhub-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	payload, _ := session.PayloadFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"username":   payload.Username,
		"role":       payload.Role,
		"department": payload.Department,
	})
}

// helpers

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeServiceError maps domain failures onto HTTP responses. Validation
// failures carry the full violation list so the UI can show every problem.
func writeServiceError(w http.ResponseWriter, err error) {
	var accValidation *account.ValidationError
	var tktValidation *ticket.ValidationError
	var invariant *account.InvariantViolation
	switch {
	case errors.As(err, &accValidation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"violations": accValidation.Violations,
		})
	case errors.As(err, &tktValidation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"violations": tktValidation.Violations,
		})
	case errors.As(err, &invariant):
		writeError(w, http.StatusConflict, invariant.Reason)
	case errors.Is(err, account.ErrNotFound), errors.Is(err, ticket.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, account.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "username or email already exists")
	case errors.Is(err, ticket.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
