// Package ledger is the verification-and-ledger state machine behind the
// freelancer reputation service.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE: one operation, one atomic unit
// ────────────────────────────────────────────────────────────────────
// Every mutating method follows the same shape:
//
//  1. authorize the caller (owner-only or open)
//  2. take the write lock so no two mutations interleave
//  3. run all precondition checks and writes inside Store.Update
//  4. only after the commit succeeded, hand the buffered events to the
//     Notifier
//
// If any check fails the Update callback returns the sentinel error, the
// store discards everything the callback wrote, and no event leaves the
// ledger. The badge minted by VerifyProject lives in the same callback, so
// a failed mint takes the verification down with it.
//
// The shared indexes (verified content hashes and the reviewer×hash set)
// are only reachable through the Tx handed to Update, which keeps their
// mutation confined to VerifyProject and SubmitReview.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Elizabethomito/gigledger/internal/models"
	"github.com/google/uuid"
)

// Access is the authorization an operation requires.
type Access int

const (
	// AdminOnly operations may only be invoked by the system owner.
	AdminOnly Access = iota
	// Public operations may be invoked by any principal.
	Public
)

// Ledger applies the reputation rules on top of a Store.
type Ledger struct {
	store    Store
	owner    models.Principal
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time

	// mu serialises mutations. Reads go straight to Store.View and only
	// ever observe committed state.
	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNotifier sets the receiver of post-commit events.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open initialises store with owner (first start) or checks that owner
// matches the principal the store was initialised with.
func Open(ctx context.Context, store Store, owner models.Principal, opts ...Option) (*Ledger, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner principal is required", ErrInvalidArgument)
	}
	l := &Ledger{
		store:    store,
		owner:    owner,
		notifier: nopNotifier{},
		log:      slog.New(slog.DiscardHandler),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}

	stored, err := store.Init(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if stored != owner {
		return nil, fmt.Errorf("%w: have %q, configured %q", ErrOwnerMismatch, stored, owner)
	}
	l.log.Info("ledger ready", "owner", owner)
	return l, nil
}

// Owner returns the system owner fixed at initialisation.
func (l *Ledger) Owner() models.Principal { return l.owner }

func (l *Ledger) authorize(caller models.Principal, access Access) error {
	if access == AdminOnly && caller != l.owner {
		return ErrUnauthorized
	}
	return nil
}

// mutate is the single entry point for every state change.
func (l *Ledger) mutate(ctx context.Context, op string, caller models.Principal, access Access,
	fn func(tx Tx, emit func(Event)) error) error {
	log := l.log.With("op", op, "caller", caller)

	if err := l.authorize(caller, access); err != nil {
		log.Debug("rejected", "err", err)
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var events []Event
	err := l.store.Update(ctx, func(tx Tx) error {
		events = events[:0]
		return fn(tx, func(e Event) { events = append(events, e) })
	})
	if err != nil {
		if IsPrecondition(err) {
			log.Debug("rejected", "err", err)
			return err
		}
		log.Error("operation failed", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	at := l.now()
	for i := range events {
		events[i].ID = uuid.NewString()
		events[i].At = at
	}
	log.Info("committed", "events", len(events))
	l.notifier.Notify(ctx, events)
	return nil
}

// SetUserVerified sets the eligibility flag of user. Calling it again with
// the same status is allowed and emits another UserVerified.
func (l *Ledger) SetUserVerified(ctx context.Context, caller, user models.Principal, status bool) error {
	return l.mutate(ctx, "setUserVerified", caller, AdminOnly, func(tx Tx, emit func(Event)) error {
		if err := tx.Users().SetVerified(ctx, user, status); err != nil {
			return err
		}
		emit(userVerified(user, status))
		return nil
	})
}

// AddProject appends an unverified project to a verified user's list and
// returns its index.
func (l *Ledger) AddProject(ctx context.Context, caller, user, client models.Principal, contentHash, link string) (int, error) {
	var index int
	err := l.mutate(ctx, "addProject", caller, AdminOnly, func(tx Tx, emit func(Event)) error {
		acct, err := tx.Users().Get(ctx, user)
		if err != nil {
			return err
		}
		if !acct.Verified {
			return ErrUserNotVerified
		}
		index, err = tx.Projects().Append(ctx, user, models.Project{
			Client:      client,
			ContentHash: contentHash,
			Link:        link,
			CreatedAt:   l.now(),
		})
		if err != nil {
			return err
		}
		emit(projectAdded(user, index, contentHash, link))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

// VerifyProject marks the project at index verified when status is true.
//
// The verification index is consulted before anything else, for either
// status: once a hash is verified anywhere, every later call naming a
// project with that hash fails with ErrAlreadyVerified. With status false
// and an unverified hash the call changes nothing but still emits
// ProjectVerified.
func (l *Ledger) VerifyProject(ctx context.Context, caller, user models.Principal, index int, status bool) error {
	return l.mutate(ctx, "verifyProject", caller, AdminOnly, func(tx Tx, emit func(Event)) error {
		p, ok, err := tx.Projects().Get(ctx, user, index)
		if err != nil {
			return err
		}
		if !ok {
			return ErrIndexOutOfRange
		}
		verified, err := tx.Index().Contains(ctx, p.ContentHash)
		if err != nil {
			return err
		}
		if verified {
			return ErrAlreadyVerified
		}

		if status {
			if err := tx.Projects().MarkVerified(ctx, user, index); err != nil {
				return err
			}
			if err := tx.Index().Insert(ctx, p.ContentHash); err != nil {
				return err
			}
			count, err := tx.Users().IncrementVerifiedCount(ctx, user)
			if err != nil {
				return err
			}
			if err := l.issueMilestoneBadge(ctx, tx, user, count, emit); err != nil {
				return fmt.Errorf("milestone badge: %w", err)
			}
		}
		emit(projectVerified(user, index, p.ContentHash))
		return nil
	})
}

// issueMilestoneBadge mints one badge when count has just reached a milestone.
func (l *Ledger) issueMilestoneBadge(ctx context.Context, tx Tx, user models.Principal, count uint64, emit func(Event)) error {
	if !isMilestone(count) {
		return nil
	}
	b, err := tx.Badges().Mint(ctx, user, MilestoneURI(count), count, l.now())
	if err != nil {
		return err
	}
	l.log.Info("milestone reached", "user", user, "count", count, "badge_id", b.ID)
	emit(badgeMinted(b))
	return nil
}

// SubmitReview records caller's review of freelancer for a verified content
// hash. freelancer is taken as given; it is not checked against the owner
// of the project carrying contentHash.
func (l *Ledger) SubmitReview(ctx context.Context, caller, freelancer models.Principal, contentHash string, rating uint8, commentHash string) error {
	return l.mutate(ctx, "submitReview", caller, Public, func(tx Tx, emit func(Event)) error {
		reviewer, err := tx.Users().Get(ctx, caller)
		if err != nil {
			return err
		}
		if !reviewer.Verified {
			return ErrReviewerNotVerified
		}
		verified, err := tx.Index().Contains(ctx, contentHash)
		if err != nil {
			return err
		}
		if !verified {
			return ErrProjectNotVerified
		}
		dup, err := tx.Reviews().HasReviewed(ctx, caller, contentHash)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateReview
		}

		err = tx.Reviews().Append(ctx, freelancer, models.Review{
			Reviewer:    caller,
			ContentHash: contentHash,
			Rating:      rating,
			CommentHash: commentHash,
			CreatedAt:   l.now(),
		})
		if err != nil {
			return err
		}
		if err := tx.Reviews().MarkReviewed(ctx, caller, contentHash); err != nil {
			return err
		}
		emit(reviewAdded(freelancer, caller, rating))
		return nil
	})
}

// MintBadge mints a badge with a caller-chosen URI, outside the milestone
// rules. It is not de-duplicated against milestone badges. A badge always
// has an owner, so an empty user is rejected.
func (l *Ledger) MintBadge(ctx context.Context, caller, user models.Principal, uri string) (models.Badge, error) {
	var badge models.Badge
	err := l.mutate(ctx, "mintBadge", caller, AdminOnly, func(tx Tx, emit func(Event)) error {
		if user == "" {
			return fmt.Errorf("%w: user is required", ErrInvalidArgument)
		}
		var err error
		badge, err = tx.Badges().Mint(ctx, user, uri, 0, l.now())
		if err != nil {
			return err
		}
		emit(badgeMinted(badge))
		return nil
	})
	if err != nil {
		return models.Badge{}, err
	}
	return badge, nil
}
