// Package memstore is an in-memory ledger.Store.
//
// Each Update works on a private deep copy of the state and swaps it in
// only when the callback succeeds, so a failed operation leaves nothing
// behind. Readers share the committed state under a read lock.
//
// The copy covers the whole state, so every write costs time proportional
// to the total number of accounts, projects, reviews and badges. That suits
// tests and demos; durable deployments use the db package.
package memstore

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/models"
)

// ErrReadOnly is returned when a write is attempted inside View.
var ErrReadOnly = errors.New("memstore: write inside read-only view")

type account struct {
	verified      bool
	verifiedCount uint64
	projects      []models.Project
	reviews       []models.Review
}

type state struct {
	owner       models.Principal
	accounts    map[models.Principal]*account
	verified    map[string]struct{}
	reviewed    map[models.Principal]map[string]struct{}
	badges      []models.Badge // badges[i].ID == i+1
	nextBadgeID uint64
}

func newState() *state {
	return &state{
		accounts:    make(map[models.Principal]*account),
		verified:    make(map[string]struct{}),
		reviewed:    make(map[models.Principal]map[string]struct{}),
		nextBadgeID: 1,
	}
}

// clone creates a deep copy of the state.
// It MUST be called while holding MemStore.mu.
func (s *state) clone() *state {
	c := &state{
		owner:       s.owner,
		accounts:    make(map[models.Principal]*account, len(s.accounts)),
		verified:    make(map[string]struct{}, len(s.verified)),
		reviewed:    make(map[models.Principal]map[string]struct{}, len(s.reviewed)),
		badges:      slices.Clone(s.badges),
		nextBadgeID: s.nextBadgeID,
	}
	for p, a := range s.accounts {
		c.accounts[p] = &account{
			verified:      a.verified,
			verifiedCount: a.verifiedCount,
			projects:      slices.Clone(a.projects),
			reviews:       slices.Clone(a.reviews),
		}
	}
	for h := range s.verified {
		c.verified[h] = struct{}{}
	}
	for r, hashes := range s.reviewed {
		set := make(map[string]struct{}, len(hashes))
		for h := range hashes {
			set[h] = struct{}{}
		}
		c.reviewed[r] = set
	}
	return c
}

// MemStore is a thread-safe in-memory ledger.Store.
type MemStore struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty store.
func New() *MemStore {
	return &MemStore{st: newState()}
}

var _ ledger.Store = (*MemStore)(nil)

func (m *MemStore) Init(_ context.Context, owner models.Principal) (models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.owner == "" {
		m.st.owner = owner
	}
	return m.st.owner, nil
}

func (m *MemStore) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.st.clone()
	if err := fn(&tx{st: staged, writable: true}); err != nil {
		return err
	}
	m.st = staged
	return nil
}

func (m *MemStore) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&tx{st: m.st})
}

type tx struct {
	st       *state
	writable bool
}

func (t *tx) Users() ledger.UserRepository { return users{t} }
func (t *tx) Projects() ledger.ProjectRepository { return projects{t} }
func (t *tx) Index() ledger.VerificationIndex { return index{t} }
func (t *tx) Reviews() ledger.ReviewRepository { return reviews{t} }
func (t *tx) Badges() ledger.BadgeRepository { return badges{t} }

func (t *tx) write() error {
	if !t.writable {
		return ErrReadOnly
	}
	return nil
}

// account returns the record for p, creating it when create is set.
func (t *tx) account(p models.Principal, create bool) *account {
	a, ok := t.st.accounts[p]
	if !ok && create {
		a = &account{}
		t.st.accounts[p] = a
	}
	return a
}

// --- users ---

type users struct{ *tx }

func (u users) Get(_ context.Context, p models.Principal) (models.Account, error) {
	acct := models.Account{Principal: p}
	if a := u.account(p, false); a != nil {
		acct.Verified = a.verified
		acct.ProjectCount = len(a.projects)
		acct.VerifiedProjectCount = a.verifiedCount
	}
	return acct, nil
}

func (u users) SetVerified(_ context.Context, p models.Principal, status bool) error {
	if err := u.write(); err != nil {
		return err
	}
	u.account(p, true).verified = status
	return nil
}

func (u users) IncrementVerifiedCount(_ context.Context, p models.Principal) (uint64, error) {
	if err := u.write(); err != nil {
		return 0, err
	}
	a := u.account(p, true)
	a.verifiedCount++
	return a.verifiedCount, nil
}

// --- projects ---

type projects struct{ *tx }

func (r projects) Count(_ context.Context, p models.Principal) (int, error) {
	if a := r.account(p, false); a != nil {
		return len(a.projects), nil
	}
	return 0, nil
}

func (r projects) Get(_ context.Context, p models.Principal, i int) (models.Project, bool, error) {
	a := r.account(p, false)
	if a == nil || i < 0 || i >= len(a.projects) {
		return models.Project{}, false, nil
	}
	return a.projects[i], true, nil
}

func (r projects) List(_ context.Context, p models.Principal) ([]models.Project, error) {
	a := r.account(p, false)
	if a == nil {
		return []models.Project{}, nil
	}
	return append([]models.Project{}, a.projects...), nil
}

func (r projects) Append(_ context.Context, p models.Principal, proj models.Project) (int, error) {
	if err := r.write(); err != nil {
		return 0, err
	}
	a := r.account(p, true)
	proj.Index = len(a.projects)
	a.projects = append(a.projects, proj)
	return proj.Index, nil
}

func (r projects) MarkVerified(_ context.Context, p models.Principal, i int) error {
	if err := r.write(); err != nil {
		return err
	}
	a := r.account(p, false)
	if a == nil || i < 0 || i >= len(a.projects) {
		return ledger.ErrIndexOutOfRange
	}
	a.projects[i].Verified = true
	return nil
}

// --- verification index ---

type index struct{ *tx }

func (x index) Contains(_ context.Context, h string) (bool, error) {
	_, ok := x.st.verified[h]
	return ok, nil
}

func (x index) Insert(_ context.Context, h string) error {
	if err := x.write(); err != nil {
		return err
	}
	x.st.verified[h] = struct{}{}
	return nil
}

// --- reviews ---

type reviews struct{ *tx }

func (r reviews) HasReviewed(_ context.Context, reviewer models.Principal, h string) (bool, error) {
	_, ok := r.st.reviewed[reviewer][h]
	return ok, nil
}

func (r reviews) MarkReviewed(_ context.Context, reviewer models.Principal, h string) error {
	if err := r.write(); err != nil {
		return err
	}
	set, ok := r.st.reviewed[reviewer]
	if !ok {
		set = make(map[string]struct{})
		r.st.reviewed[reviewer] = set
	}
	set[h] = struct{}{}
	return nil
}

func (r reviews) Append(_ context.Context, freelancer models.Principal, rv models.Review) error {
	if err := r.write(); err != nil {
		return err
	}
	a := r.account(freelancer, true)
	a.reviews = append(a.reviews, rv)
	return nil
}

func (r reviews) List(_ context.Context, freelancer models.Principal) ([]models.Review, error) {
	a := r.account(freelancer, false)
	if a == nil {
		return []models.Review{}, nil
	}
	return append([]models.Review{}, a.reviews...), nil
}

// --- badges ---

type badges struct{ *tx }

func (b badges) Mint(_ context.Context, owner models.Principal, uri string, milestone uint64, at time.Time) (models.Badge, error) {
	if err := b.write(); err != nil {
		return models.Badge{}, err
	}
	badge := models.Badge{
		ID:        b.st.nextBadgeID,
		Owner:     owner,
		URI:       uri,
		Milestone: milestone,
		MintedAt:  at,
	}
	b.st.badges = append(b.st.badges, badge)
	b.st.nextBadgeID++
	return badge, nil
}

func (b badges) Get(_ context.Context, id uint64) (models.Badge, bool, error) {
	if id == 0 || id > uint64(len(b.st.badges)) {
		return models.Badge{}, false, nil
	}
	return b.st.badges[id-1], true, nil
}

func (b badges) ListByOwner(_ context.Context, owner models.Principal) ([]models.Badge, error) {
	out := []models.Badge{}
	for _, badge := range b.st.badges {
		if badge.Owner == owner {
			out = append(out, badge)
		}
	}
	return out, nil
}
