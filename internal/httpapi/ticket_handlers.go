package httpapi

import (
	"net/http"
	"time"

	"deskhub.org/internal/session"
	"deskhub.org/internal/ticket"
)

type ticketView struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Department string    `json:"department"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status"`
	CreatedBy  int64     `json:"created_by"`
	AssignedTo *int64    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ticketViewOf(t *ticket.Ticket) ticketView {
	return ticketView{
		ID:         t.ID,
		Reference:  t.Reference,
		Subject:    t.Subject,
		Body:       t.Body,
		Department: t.Department,
		Priority:   string(t.Priority),
		Status:     string(t.Status),
		CreatedBy:  t.CreatedBy,
		AssignedTo: t.AssignedTo,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func actorFrom(r *http.Request) ticket.Actor {
	payload, _ := session.PayloadFromContext(r.Context())
	return ticket.Actor{
		ID:         payload.AccountID,
		Role:       payload.Role,
		Department: payload.Department,
	}
}

type createTicketRequest struct {
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Department string `json:"department"`
	Priority   string `json:"priority"`
}

func (a *API) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := a.tickets.Create(r.Context(), actorFrom(r), ticket.NewTicket{
		Subject:    req.Subject,
		Body:       req.Body,
		Department: req.Department,
		Priority:   ticket.Priority(req.Priority),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticketViewOf(t))
}

func (a *API) handleListTickets(w http.ResponseWriter, r *http.Request) {
	list, err := a.tickets.List(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]ticketView, 0, len(list))
	for _, t := range list {
		views = append(views, ticketViewOf(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": views})
}

func (a *API) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	t, err := a.tickets.Find(r.Context(), actorFrom(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketViewOf(t))
}

type assignTicketRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

func (a *API) handleAssignTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	var req assignTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := a.tickets.Assign(r.Context(), actorFrom(r), id, req.AssigneeID, clientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketViewOf(t))
}

type ticketStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	var req ticketStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := a.tickets.UpdateStatus(r.Context(), actorFrom(r), id, ticket.Status(req.Status), clientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketViewOf(t))
}
