package ticket

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const ticketColumns = `id, reference, subject, body, department, priority, status,
	created_by, assigned_to, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*Ticket, error) {
	var (
		t        Ticket
		assigned sql.NullInt64
	)
	err := row.Scan(
		&t.ID, &t.Reference, &t.Subject, &t.Body, &t.Department, &t.Priority,
		&t.Status, &t.CreatedBy, &assigned, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if assigned.Valid {
		t.AssignedTo = &assigned.Int64
	}
	return &t, nil
}

func (s *PGStore) Create(ctx context.Context, t *Ticket) error {
	row := s.db.QueryRowContext(ctx, `
		insert into tickets(reference, subject, body, department, priority, status, created_by)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id, created_at, updated_at
	`, t.Reference, t.Subject, t.Body, t.Department, t.Priority, t.Status, t.CreatedBy)
	return row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (s *PGStore) Find(ctx context.Context, id int64) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+ticketColumns+` from tickets where id=$1`, id)
	return scanTicket(row)
}

func (s *PGStore) ListAll(ctx context.Context) ([]*Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+ticketColumns+` from tickets order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (s *PGStore) ListByDepartment(ctx context.Context, department string) ([]*Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+ticketColumns+` from tickets where department=$1 order by created_at desc`, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Ticket, error) {
	var res []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *PGStore) Assign(ctx context.Context, id, assigneeID int64) error {
	res, err := s.db.ExecContext(ctx,
		`update tickets set assigned_to=$2, updated_at=now() where id=$1`, id, assigneeID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *PGStore) SetStatus(ctx context.Context, id int64, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`update tickets set status=$2, updated_at=now() where id=$1`, id, status)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
