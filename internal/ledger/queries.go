package ledger

import (
	"context"

	"github.com/Elizabethomito/gigledger/internal/models"
)

// Account returns the ledger record of user. Unknown principals yield a
// zero, unverified account.
func (l *Ledger) Account(ctx context.Context, user models.Principal) (models.Account, error) {
	var acct models.Account
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		acct, err = tx.Users().Get(ctx, user)
		return err
	})
	return acct, err
}

// Project returns the project at index. Out-of-range indexes fail with
// ErrIndexOutOfRange rather than yielding a zero project.
func (l *Ledger) Project(ctx context.Context, user models.Principal, index int) (models.Project, error) {
	var p models.Project
	err := l.store.View(ctx, func(tx Tx) error {
		var ok bool
		var err error
		p, ok, err = tx.Projects().Get(ctx, user, index)
		if err != nil {
			return err
		}
		if !ok {
			return ErrIndexOutOfRange
		}
		return nil
	})
	return p, err
}

// Projects returns every project of user in insertion order.
func (l *Ledger) Projects(ctx context.Context, user models.Principal) ([]models.Project, error) {
	var out []models.Project
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Projects().List(ctx, user)
		return err
	})
	return out, err
}

func (l *Ledger) ProjectCount(ctx context.Context, user models.Principal) (int, error) {
	var n int
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		n, err = tx.Projects().Count(ctx, user)
		return err
	})
	return n, err
}

func (l *Ledger) VerifiedProjectCount(ctx context.Context, user models.Principal) (uint64, error) {
	acct, err := l.Account(ctx, user)
	if err != nil {
		return 0, err
	}
	return acct.VerifiedProjectCount, nil
}

// IsHashVerified reports whether contentHash is in the verification index.
func (l *Ledger) IsHashVerified(ctx context.Context, contentHash string) (bool, error) {
	var ok bool
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		ok, err = tx.Index().Contains(ctx, contentHash)
		return err
	})
	return ok, err
}

// Reviews returns the reviews received by freelancer, oldest first.
func (l *Ledger) Reviews(ctx context.Context, freelancer models.Principal) ([]models.Review, error) {
	var out []models.Review
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Reviews().List(ctx, freelancer)
		return err
	})
	return out, err
}

// Badges returns the badges bound to owner in mint order.
func (l *Ledger) Badges(ctx context.Context, owner models.Principal) ([]models.Badge, error) {
	var out []models.Badge
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Badges().ListByOwner(ctx, owner)
		return err
	})
	return out, err
}

// Badge looks a badge up by id. The bool is false when no such badge exists.
func (l *Ledger) Badge(ctx context.Context, id uint64) (models.Badge, bool, error) {
	var b models.Badge
	var ok bool
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		b, ok, err = tx.Badges().Get(ctx, id)
		return err
	})
	return b, ok, err
}
