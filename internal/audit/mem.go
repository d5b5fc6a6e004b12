package audit

import (
	"context"
	"sync"
	"time"

	"deskhub.org/internal/ids"
)

var _ Recorder = (*MemRecorder)(nil)

// MemRecorder keeps entries in memory. Used in tests and as a fallback when
// no database is configured.
type MemRecorder struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewMemRecorder() *MemRecorder {
	return &MemRecorder{now: time.Now}
}

func (r *MemRecorder) Append(ctx context.Context, entry *Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (r *MemRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
