package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"deskhub.org/internal/ids"
	"deskhub.org/internal/obs"
)

var _ Recorder = (*PGRecorder)(nil)

// PGRecorder appends audit entries to PostgreSQL and mirrors each entry as a
// structured log line.
type PGRecorder struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGRecorder(db *sql.DB) *PGRecorder {
	return &PGRecorder{db: db, now: time.Now}
}

func (r *PGRecorder) Append(ctx context.Context, entry *Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	var targetID sql.NullInt64
	if entry.TargetID != nil {
		targetID = sql.NullInt64{Int64: *entry.TargetID, Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
		insert into audit_log(id, actor_id, action, target_type, target_id, details, ip, created_at)
		values ($1, $2, $3, $4, $5, $6, nullif($7,''), $8)
	`, entry.ID, entry.ActorID, entry.Action, entry.TargetType, targetID, details, entry.IP, entry.CreatedAt)
	if err != nil {
		return err
	}
	logEntry(entry)
	return nil
}

func logEntry(entry *Entry) {
	line := map[string]any{
		"ts":       entry.CreatedAt.Format(time.RFC3339Nano),
		"type":     "audit",
		"action":   entry.Action,
		"actor_id": entry.ActorID,
	}
	if entry.TargetType != "" {
		line["target_type"] = entry.TargetType
	}
	if entry.TargetID != nil {
		line["target_id"] = *entry.TargetID
	}
	if entry.IP != "" {
		line["ip"] = entry.IP
	}
	if len(entry.Details) > 0 {
		line["details"] = entry.Details
	}
	obs.LogRequest(line)
}
