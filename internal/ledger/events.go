package ledger

import (
	"context"
	"time"

	"github.com/Elizabethomito/gigledger/internal/models"
)

// EventKind names a notification emitted after a committed operation.
type EventKind string

const (
	EventUserVerified    EventKind = "UserVerified"
	EventProjectAdded    EventKind = "ProjectAdded"
	EventProjectVerified EventKind = "ProjectVerified"
	EventReviewAdded     EventKind = "ReviewAdded"
	EventBadgeMinted     EventKind = "BadgeMinted"
)

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"`

	User        models.Principal `json:"user,omitempty"`
	Status      *bool            `json:"status,omitempty"`
	Index       *int             `json:"index,omitempty"`
	ContentHash string           `json:"content_hash,omitempty"`
	Link        string           `json:"link,omitempty"`
	Reviewer    models.Principal `json:"reviewer,omitempty"`
	Rating      *uint8           `json:"rating,omitempty"`
	BadgeID     uint64           `json:"badge_id,omitempty"`
	URI         string           `json:"uri,omitempty"`
	Milestone   uint64           `json:"milestone,omitempty"`
}

// Notifier receives the events of an operation after it has committed.
// Delivery problems are the notifier's to handle; the ledger state is
// already final by the time Notify is called.
type Notifier interface {
	Notify(ctx context.Context, events []Event)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, events []Event)

func (f NotifierFunc) Notify(ctx context.Context, events []Event) { f(ctx, events) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, []Event) {}

func userVerified(user models.Principal, status bool) Event {
	return Event{Kind: EventUserVerified, User: user, Status: &status}
}

func projectAdded(user models.Principal, index int, contentHash, link string) Event {
	return Event{Kind: EventProjectAdded, User: user, Index: &index, ContentHash: contentHash, Link: link}
}

func projectVerified(user models.Principal, index int, contentHash string) Event {
	return Event{Kind: EventProjectVerified, User: user, Index: &index, ContentHash: contentHash}
}

func reviewAdded(freelancer, reviewer models.Principal, rating uint8) Event {
	return Event{Kind: EventReviewAdded, User: freelancer, Reviewer: reviewer, Rating: &rating}
}

func badgeMinted(b models.Badge) Event {
	return Event{Kind: EventBadgeMinted, User: b.Owner, BadgeID: b.ID, URI: b.URI, Milestone: b.Milestone}
}
