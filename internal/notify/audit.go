package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/models"
)

// AuditLog appends every event as one JSON line and answers per-user
// history queries with a linear scan of the file.
type AuditLog struct {
	path string
	log  *slog.Logger
	mu   sync.Mutex
	f    *os.File
}

// OpenAuditLog creates or opens the JSONL file at path, creating its
// directory when needed.
func OpenAuditLog(path string, log *slog.Logger) (*AuditLog, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &AuditLog{path: path, log: log, f: f}, nil
}

// Notify appends events. A write failure is logged; the ledger state has
// already been committed and is the source of truth.
func (a *AuditLog) Notify(ctx context.Context, events []ledger.Event) {
	if len(events) == 0 {
		return
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			a.log.ErrorContext(ctx, "audit encode failed", "event_id", events[i].ID, "err", err)
			return
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.f.Write(buf.Bytes()); err != nil {
		a.log.ErrorContext(ctx, "audit write failed", "path", a.path, "err", err)
	}
}

// History returns every recorded event that names user, as subject or
// reviewer, oldest first. Lines that do not decode are logged and skipped.
func (a *AuditLog) History(ctx context.Context, user models.Principal) ([]ledger.Event, error) {
	a.mu.Lock()
	_ = a.f.Sync()
	a.mu.Unlock()

	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []ledger.Event{}, nil
		}
		return nil, err
	}
	out := []ledger.Event{}
	for i, line := range bytes.Split(data, []byte{'\n'}) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		var e ledger.Event
		if err := json.Unmarshal(line, &e); err != nil {
			a.log.WarnContext(ctx, "skipping malformed audit line", "path", a.path, "line", i+1, "err", err)
			continue
		}
		if e.User == user || e.Reviewer == user {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}
