package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"deskhub.org/internal/account"
	"deskhub.org/internal/session"
)

// accountView is the wire shape of an account. The password hash never
// leaves the service.
type accountView struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Department   string     `json:"department,omitempty"`
	Status       string     `json:"status"`
	FailedLogins int        `json:"failed_logins"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func viewOf(acc *account.Account) accountView {
	return accountView{
		ID:           acc.ID,
		Username:     acc.Username,
		Email:        acc.Email,
		Role:         string(acc.Role),
		Department:   acc.Department,
		Status:       string(acc.Status),
		FailedLogins: acc.FailedLogins,
		LastLoginAt:  acc.LastLoginAt,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) int64 {
	payload, _ := session.PayloadFromContext(r.Context())
	return payload.AccountID
}

func (a *API) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.accountStore.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, viewOf(acc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
}

type createAccountRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

func (a *API) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acc, err := a.accounts.Create(r.Context(), actorID(r), account.NewAccount{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Role:       account.Role(req.Role),
		Department: req.Department,
	}, clientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(acc))
}

func (a *API) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	acc, err := a.accountStore.Find(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(acc))
}

type updateAccountRequest struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Status     *string `json:"status"`
}

func (a *API) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	upd := account.UpdateRequest{
		Username:   req.Username,
		Email:      req.Email,
		Department: req.Department,
	}
	if req.Role != nil {
		role := account.Role(*req.Role)
		upd.Role = &role
	}
	if req.Status != nil {
		status := account.Status(*req.Status)
		upd.Status = &status
	}
	acc, err := a.accounts.Update(r.Context(), actorID(r), id, upd, clientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(acc))
}

func (a *API) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	if err := a.accounts.Delete(r.Context(), actorID(r), id, clientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUnlockAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	if err := a.accounts.Unlock(r.Context(), actorID(r), id, clientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminResetPasswordRequest struct {
	Password string `json:"password"`
}

func (a *API) handleAdminResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	var req adminResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.accounts.ResetPassword(r.Context(), actorID(r), id, req.Password, clientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
