package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const accountColumns = `id, username, email, password_hash, role, coalesce(department,''), status,
	failed_logins, last_login_at, password_changed_at, deleted_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var (
		acc        Account
		lastLogin  sql.NullTime
		pwdChanged sql.NullTime
		deletedAt  sql.NullTime
	)
	err := row.Scan(
		&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.Role, &acc.Department,
		&acc.Status, &acc.FailedLogins, &lastLogin, &pwdChanged, &deletedAt,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		acc.LastLoginAt = &lastLogin.Time
	}
	if pwdChanged.Valid {
		acc.PasswordChangedAt = &pwdChanged.Time
	}
	if deletedAt.Valid {
		acc.DeletedAt = &deletedAt.Time
	}
	return &acc, nil
}

func (s *PGStore) Create(ctx context.Context, acc *Account) error {
	row := s.db.QueryRowContext(ctx, `
		insert into accounts(username, email, password_hash, role, department, status)
		values ($1, $2, $3, $4, nullif($5,''), $6)
		returning id, created_at, updated_at
	`, acc.Username, acc.Email, acc.PasswordHash, acc.Role, acc.Department, acc.Status)
	if err := row.Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PGStore) Find(ctx context.Context, id int64) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1 and deleted_at is null`, id)
	return scanAccount(row)
}

func (s *PGStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where username=$1 and deleted_at is null`, username)
	return scanAccount(row)
}

func (s *PGStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+accountColumns+` from accounts where deleted_at is null order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, acc)
	}
	return res, rows.Err()
}

func (s *PGStore) UpdateFields(ctx context.Context, id int64, fields Fields) error {
	set := []string{"updated_at = now()"}
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf(expr, len(args)))
	}
	if fields.Username != nil {
		add("username = $%d", *fields.Username)
	}
	if fields.Email != nil {
		add("email = $%d", *fields.Email)
	}
	if fields.PasswordHash != nil {
		add("password_hash = $%d", *fields.PasswordHash)
	}
	if fields.Role != nil {
		add("role = $%d", *fields.Role)
	}
	if fields.Department != nil {
		add("department = nullif($%d,'')", *fields.Department)
	}
	if fields.Status != nil {
		add("status = $%d", *fields.Status)
	}
	if fields.PasswordChangedAt != nil {
		add("password_changed_at = $%d", *fields.PasswordChangedAt)
	}
	args = append(args, id)
	query := fmt.Sprintf(`update accounts set %s where id=$%d and deleted_at is null`,
		strings.Join(set, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) IncrementFailedLogins(ctx context.Context, username string) error {
	// Atomic increment; concurrent failures must all count toward lockout.
	_, err := s.db.ExecContext(ctx, `
		update accounts set failed_logins = failed_logins + 1, updated_at = now()
		where username=$1 and deleted_at is null
	`, username)
	return err
}

func (s *PGStore) ResetFailedLogins(ctx context.Context, id int64, touchLogin bool) error {
	query := `update accounts set failed_logins = 0, updated_at = now() where id=$1 and deleted_at is null`
	if touchLogin {
		query = `update accounts set failed_logins = 0, last_login_at = now(), updated_at = now()
			where id=$1 and deleted_at is null`
	}
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

func (s *PGStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts set status=$2, deleted_at=$3, updated_at=$3
		where id=$1 and deleted_at is null
	`, id, StatusDeleted, at.UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CountActive(ctx context.Context, role Role) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from accounts
		where role=$1 and status=$2 and deleted_at is null
	`, role, StatusActive).Scan(&n)
	return n, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
