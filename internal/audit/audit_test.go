package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"deskhub.org/internal/obs"
)

func TestPGRecorderAppendWritesRowAndLogLine(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	logger := obs.Logger()
	origWriter := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(origWriter)

	rec := NewPGRecorder(db)
	targetID := int64(42)

	mock.ExpectExec(`insert into audit_log`).
		WithArgs(
			sqlmock.AnyArg(), int64(7), ActionUserCreated, "user",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "10.0.0.1", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &Entry{
		ActorID:    7,
		Action:     ActionUserCreated,
		TargetType: "user",
		TargetID:   &targetID,
		Details:    map[string]any{"username": "ops"},
		IP:         "10.0.0.1",
	}
	if err := rec.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected generated entry id")
	}
	if entry.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected mirrored log line")
	}
	var logged map[string]any
	if err := json.Unmarshal([]byte(line), &logged); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if logged["type"] != "audit" || logged["action"] != ActionUserCreated {
		t.Fatalf("unexpected log line: %v", logged)
	}
	if logged["target_id"] != float64(42) {
		t.Fatalf("target not mirrored: %v", logged)
	}
}

func TestAppendRejectsIncompleteEntries(t *testing.T) {
	rec := NewMemRecorder()
	ctx := context.Background()

	if err := rec.Append(ctx, nil); err == nil {
		t.Fatal("expected error for nil entry")
	}
	if err := rec.Append(ctx, &Entry{ActorID: 7}); err == nil {
		t.Fatal("expected error for missing action")
	}
	if err := rec.Append(ctx, &Entry{Action: ActionUserCreated}); err == nil {
		t.Fatal("expected error for missing actor")
	}
}

func TestMemRecorderCopiesEntries(t *testing.T) {
	rec := NewMemRecorder()
	entry := &Entry{ActorID: 7, Action: ActionUserUpdated, CreatedAt: time.Now()}
	if err := rec.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := rec.Entries()
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %d", len(got))
	}
	got[0].Action = "mutated"
	if rec.Entries()[0].Action != ActionUserUpdated {
		t.Fatal("Entries must return a copy")
	}
}
