package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "role", "department", "status",
		"failed_logins", "last_login_at", "password_changed_at", "deleted_at",
		"created_at", "updated_at",
	})
}

func TestPGStoreFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`select .* from accounts where id=\$1 and deleted_at is null`).
		WithArgs(int64(7)).
		WillReturnRows(accountRows().AddRow(
			int64(7), "ops", "ops@example.com", "hash", "department", "logistics",
			"active", 2, nil, nil, nil, now, now,
		))

	acc, err := store.Find(context.Background(), 7)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if acc.Username != "ops" || acc.Role != RoleDepartment || acc.FailedLogins != 2 {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if acc.LastLoginAt != nil {
		t.Fatalf("expected nil last login, got %v", acc.LastLoginAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery(`select .* from accounts where id=\$1`).
		WithArgs(int64(99)).
		WillReturnRows(accountRows())

	if _, err := store.Find(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCreateUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery(`insert into accounts`).
		WithArgs("ops", "ops@example.com", "hash", "department", "logistics", "active").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = store.Create(context.Background(), &Account{
		Username: "ops", Email: "ops@example.com", PasswordHash: "hash",
		Role: RoleDepartment, Department: "logistics", Status: StatusActive,
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPGStoreIncrementFailedLoginsIsAtomic(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	// The increment must happen in SQL, not via read-modify-write.
	mock.ExpectExec(`update accounts set failed_logins = failed_logins \+ 1`).
		WithArgs("ops").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.IncrementFailedLogins(context.Background(), "ops"); err != nil {
		t.Fatalf("IncrementFailedLogins: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreUpdateFieldsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec(`update accounts set updated_at = now\(\), email = \$1 where id=\$2 and deleted_at is null`).
		WithArgs("new@example.com", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	email := "new@example.com"
	err = store.UpdateFields(context.Background(), 99, Fields{Email: &email})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreUpdateFieldsClearsDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec(`update accounts set updated_at = now\(\), department = nullif\(\$1,''\)`).
		WithArgs("", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	empty := ""
	if err := store.UpdateFields(context.Background(), 7, Fields{Department: &empty}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
}

func TestPGStoreSoftDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	at := time.Now().UTC()
	mock.ExpectExec(`update accounts set status=\$2, deleted_at=\$3`).
		WithArgs(int64(99), StatusDeleted, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SoftDelete(context.Background(), 99, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCountActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery(`select count\(\*\) from accounts`).
		WithArgs(RoleSuperAdmin, StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountActive(context.Background(), RoleSuperAdmin)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}
