// Package notify delivers ledger events to external observers: the
// structured log, an append-only JSONL audit trail and live WebSocket
// subscribers.
package notify

import (
	"context"
	"log/slog"

	"github.com/Elizabethomito/gigledger/internal/ledger"
)

// Multi fans events out to every notifier in order.
type Multi []ledger.Notifier

func (m Multi) Notify(ctx context.Context, events []ledger.Event) {
	for _, n := range m {
		n.Notify(ctx, events)
	}
}

// Log writes one info record per event.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, events []ledger.Event) {
	for _, e := range events {
		attrs := []any{"event_id", e.ID, "user", e.User}
		if e.Index != nil {
			attrs = append(attrs, "index", *e.Index)
		}
		if e.ContentHash != "" {
			attrs = append(attrs, "content_hash", e.ContentHash)
		}
		if e.Reviewer != "" {
			attrs = append(attrs, "reviewer", e.Reviewer)
		}
		if e.BadgeID != 0 {
			attrs = append(attrs, "badge_id", e.BadgeID)
		}
		l.Logger.InfoContext(ctx, string(e.Kind), attrs...)
	}
}
