package ledger

import (
	"context"
	"time"

	"github.com/Elizabethomito/gigledger/internal/models"
)

// Store is the durable, versioned state behind the ledger.
//
// Update runs fn as one atomic unit: either every write fn made is
// committed, or (when fn or the commit returns an error) none of them is
// visible to anyone. View runs fn against the latest committed state.
// Writes made through the Tx handed to View are not allowed.
type Store interface {
	// Init records owner as the system owner unless one is already stored,
	// and returns the stored owner.
	Init(ctx context.Context, owner models.Principal) (models.Principal, error)
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the repositories that make up the ledger state inside one
// atomic unit.
type Tx interface {
	Users() UserRepository
	Projects() ProjectRepository
	Index() VerificationIndex
	Reviews() ReviewRepository
	Badges() BadgeRepository
}

// UserRepository holds the per-principal eligibility flag and counters.
type UserRepository interface {
	// Get never fails for an unknown principal; it returns a zero Account.
	Get(ctx context.Context, user models.Principal) (models.Account, error)
	SetVerified(ctx context.Context, user models.Principal, status bool) error
	// IncrementVerifiedCount adds one and returns the new count.
	IncrementVerifiedCount(ctx context.Context, user models.Principal) (uint64, error)
}

// ProjectRepository is the append-only per-user project list.
type ProjectRepository interface {
	Count(ctx context.Context, user models.Principal) (int, error)
	Get(ctx context.Context, user models.Principal, index int) (models.Project, bool, error)
	List(ctx context.Context, user models.Principal) ([]models.Project, error)
	// Append stores p at the end of the user's list and returns its index.
	Append(ctx context.Context, user models.Principal, p models.Project) (int, error)
	MarkVerified(ctx context.Context, user models.Principal, index int) error
}

// VerificationIndex is the system-wide set of verified content hashes.
type VerificationIndex interface {
	Contains(ctx context.Context, contentHash string) (bool, error)
	Insert(ctx context.Context, contentHash string) error
}

// ReviewRepository is the per-freelancer review list together with the
// system-wide reviewer×content-hash de-duplication set.
type ReviewRepository interface {
	HasReviewed(ctx context.Context, reviewer models.Principal, contentHash string) (bool, error)
	MarkReviewed(ctx context.Context, reviewer models.Principal, contentHash string) error
	Append(ctx context.Context, freelancer models.Principal, r models.Review) error
	List(ctx context.Context, freelancer models.Principal) ([]models.Review, error)
}

// BadgeRepository records minted badges. Ids start at 1 and are never reused.
type BadgeRepository interface {
	// Mint allocates the next badge id, binds it to owner and advances the counter.
	Mint(ctx context.Context, owner models.Principal, uri string, milestone uint64, at time.Time) (models.Badge, error)
	Get(ctx context.Context, id uint64) (models.Badge, bool, error)
	ListByOwner(ctx context.Context, owner models.Principal) ([]models.Badge, error)
}
