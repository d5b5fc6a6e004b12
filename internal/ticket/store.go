package ticket

import "context"

// Store describes ticket persistence.
type Store interface {
	Create(ctx context.Context, t *Ticket) error
	Find(ctx context.Context, id int64) (*Ticket, error)
	ListAll(ctx context.Context) ([]*Ticket, error)
	ListByDepartment(ctx context.Context, department string) ([]*Ticket, error)
	Assign(ctx context.Context, id, assigneeID int64) error
	SetStatus(ctx context.Context, id int64, status Status) error
}
