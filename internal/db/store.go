package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/models"
)

// Store is the SQLite-backed ledger.Store. Every Update is exactly one SQL
// transaction: `defer tx.Rollback()` undoes every write unless Commit ran.
type Store struct {
	DB *sql.DB
}

// NewStore wraps an opened, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

var _ ledger.Store = (*Store)(nil)

// Init stores owner and the initial badge counter unless they already exist.
func (s *Store) Init(ctx context.Context, owner models.Principal) (models.Principal, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is a no-op after Commit succeeds

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO system (key, value) VALUES ('owner', ?)`, string(owner)); err != nil {
		return "", fmt.Errorf("store owner: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO counters (name, value) VALUES ('next_badge_id', 1)`); err != nil {
		return "", fmt.Errorf("init badge counter: %w", err)
	}

	var stored models.Principal
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM system WHERE key = 'owner'`).Scan(&stored); err != nil {
		return "", fmt.Errorf("read owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is a no-op after Commit succeeds

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn inside a transaction that is always rolled back, so it sees
// one consistent committed snapshot. Being read-only it starts deferred and
// never waits for the write lock.
func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only; nothing to commit

	return fn(&sqlTx{tx: tx, readOnly: true})
}

// ErrReadOnly is returned when a write is attempted inside View.
var ErrReadOnly = errors.New("db: write inside read-only view")

type sqlTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) Users() ledger.UserRepository { return userRepo{t} }
func (t *sqlTx) Projects() ledger.ProjectRepository { return projectRepo{t} }
func (t *sqlTx) Index() ledger.VerificationIndex { return indexRepo{t} }
func (t *sqlTx) Reviews() ledger.ReviewRepository { return reviewRepo{t} }
func (t *sqlTx) Badges() ledger.BadgeRepository { return badgeRepo{t} }

// exec is the single write path; it refuses writes in a read-only view.
func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.readOnly {
		return nil, ErrReadOnly
	}
	return t.tx.ExecContext(ctx, query, args...)
}

// ensureAccount creates an empty account row so rows referencing the
// principal satisfy their foreign key.
func (t *sqlTx) ensureAccount(ctx context.Context, p models.Principal) error {
	_, err := t.exec(ctx, `INSERT OR IGNORE INTO accounts (principal) VALUES (?)`, string(p))
	return err
}

// ---- users ----

type userRepo struct{ *sqlTx }

func (r userRepo) Get(ctx context.Context, p models.Principal) (models.Account, error) {
	acct := models.Account{Principal: p}
	err := r.tx.QueryRowContext(ctx,
		`SELECT verified, verified_project_count FROM accounts WHERE principal = ?`, string(p),
	).Scan(&acct.Verified, &acct.VerifiedProjectCount)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	if err := r.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE principal = ?`, string(p),
	).Scan(&acct.ProjectCount); err != nil {
		return models.Account{}, fmt.Errorf("count projects: %w", err)
	}
	return acct, nil
}

func (r userRepo) SetVerified(ctx context.Context, p models.Principal, status bool) error {
	now := time.Now().UTC()
	_, err := r.exec(ctx,
		`INSERT INTO accounts (principal, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(principal) DO UPDATE SET
		   verified   = excluded.verified,
		   updated_at = excluded.updated_at`,
		string(p), status, now, now,
	)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	return nil
}

func (r userRepo) IncrementVerifiedCount(ctx context.Context, p models.Principal) (uint64, error) {
	now := time.Now().UTC()
	_, err := r.exec(ctx,
		`INSERT INTO accounts (principal, verified_project_count, created_at, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(principal) DO UPDATE SET
		   verified_project_count = verified_project_count + 1,
		   updated_at             = excluded.updated_at`,
		string(p), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("increment verified count: %w", err)
	}
	var n uint64
	if err := r.tx.QueryRowContext(ctx,
		`SELECT verified_project_count FROM accounts WHERE principal = ?`, string(p),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("read verified count: %w", err)
	}
	return n, nil
}

// ---- projects ----

type projectRepo struct{ *sqlTx }

func (r projectRepo) Count(ctx context.Context, p models.Principal) (int, error) {
	var n int
	err := r.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE principal = ?`, string(p)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

func (r projectRepo) Get(ctx context.Context, p models.Principal, index int) (models.Project, bool, error) {
	if index < 0 {
		return models.Project{}, false, nil
	}
	var pr models.Project
	err := r.tx.QueryRowContext(ctx,
		`SELECT idx, client, content_hash, link, verified, created_at
		 FROM projects WHERE principal = ? AND idx = ?`, string(p), index,
	).Scan(&pr.Index, &pr.Client, &pr.ContentHash, &pr.Link, &pr.Verified, &pr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Project{}, false, nil
		}
		return models.Project{}, false, fmt.Errorf("get project: %w", err)
	}
	return pr, true, nil
}

func (r projectRepo) List(ctx context.Context, p models.Principal) ([]models.Project, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT idx, client, content_hash, link, verified, created_at
		 FROM projects WHERE principal = ? ORDER BY idx ASC`, string(p))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		var pr models.Project
		if err := rows.Scan(&pr.Index, &pr.Client, &pr.ContentHash, &pr.Link, &pr.Verified, &pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (r projectRepo) Append(ctx context.Context, p models.Principal, pr models.Project) (int, error) {
	if err := r.ensureAccount(ctx, p); err != nil {
		return 0, fmt.Errorf("ensure account: %w", err)
	}
	index, err := r.Count(ctx, p)
	if err != nil {
		return 0, err
	}
	_, err = r.exec(ctx,
		`INSERT INTO projects (principal, idx, client, content_hash, link, verified, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		string(p), index, string(pr.Client), pr.ContentHash, pr.Link, pr.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("append project: %w", err)
	}
	return index, nil
}

func (r projectRepo) MarkVerified(ctx context.Context, p models.Principal, index int) error {
	res, err := r.exec(ctx,
		`UPDATE projects SET verified = 1 WHERE principal = ? AND idx = ?`, string(p), index)
	if err != nil {
		return fmt.Errorf("mark project verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrIndexOutOfRange
	}
	return nil
}

// ---- verification index ----

type indexRepo struct{ *sqlTx }

func (r indexRepo) Contains(ctx context.Context, h string) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM verified_hashes WHERE content_hash = ?)`, h,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup verified hash: %w", err)
	}
	return exists, nil
}

// Insert fails on a duplicate hash; the PRIMARY KEY backs up the ledger's
// own AlreadyVerified check.
func (r indexRepo) Insert(ctx context.Context, h string) error {
	_, err := r.exec(ctx,
		`INSERT INTO verified_hashes (content_hash, verified_at) VALUES (?, ?)`,
		h, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert verified hash: %w", err)
	}
	return nil
}

// ---- reviews ----

type reviewRepo struct{ *sqlTx }

func (r reviewRepo) HasReviewed(ctx context.Context, reviewer models.Principal, h string) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM review_marks WHERE reviewer = ? AND content_hash = ?)`,
		string(reviewer), h,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup review mark: %w", err)
	}
	return exists, nil
}

func (r reviewRepo) MarkReviewed(ctx context.Context, reviewer models.Principal, h string) error {
	_, err := r.exec(ctx,
		`INSERT INTO review_marks (reviewer, content_hash) VALUES (?, ?)`, string(reviewer), h)
	if err != nil {
		return fmt.Errorf("mark reviewed: %w", err)
	}
	return nil
}

func (r reviewRepo) Append(ctx context.Context, freelancer models.Principal, rv models.Review) error {
	if err := r.ensureAccount(ctx, freelancer); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	_, err := r.exec(ctx,
		`INSERT INTO reviews (freelancer, reviewer, content_hash, rating, comment_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(freelancer), string(rv.Reviewer), rv.ContentHash, int(rv.Rating), rv.CommentHash, rv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append review: %w", err)
	}
	return nil
}

func (r reviewRepo) List(ctx context.Context, freelancer models.Principal) ([]models.Review, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT reviewer, content_hash, rating, comment_hash, created_at
		 FROM reviews WHERE freelancer = ? ORDER BY seq ASC`, string(freelancer))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := []models.Review{}
	for rows.Next() {
		var rv models.Review
		var rating int
		if err := rows.Scan(&rv.Reviewer, &rv.ContentHash, &rating, &rv.CommentHash, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		rv.Rating = uint8(rating)
		out = append(out, rv)
	}
	return out, rows.Err()
}

// ---- badges ----

type badgeRepo struct{ *sqlTx }

func (r badgeRepo) Mint(ctx context.Context, owner models.Principal, uri string, milestone uint64, at time.Time) (models.Badge, error) {
	if r.readOnly {
		return models.Badge{}, ErrReadOnly
	}
	var id uint64
	if err := r.tx.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE name = 'next_badge_id'`).Scan(&id); err != nil {
		return models.Badge{}, fmt.Errorf("read badge counter: %w", err)
	}
	if _, err := r.exec(ctx,
		`INSERT INTO badges (id, owner, uri, milestone, minted_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(owner), uri, milestone, at); err != nil {
		return models.Badge{}, fmt.Errorf("insert badge: %w", err)
	}
	if _, err := r.exec(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'next_badge_id'`); err != nil {
		return models.Badge{}, fmt.Errorf("advance badge counter: %w", err)
	}
	return models.Badge{ID: id, Owner: owner, URI: uri, Milestone: milestone, MintedAt: at}, nil
}

func (r badgeRepo) Get(ctx context.Context, id uint64) (models.Badge, bool, error) {
	var b models.Badge
	err := r.tx.QueryRowContext(ctx,
		`SELECT id, owner, uri, milestone, minted_at FROM badges WHERE id = ?`, id,
	).Scan(&b.ID, &b.Owner, &b.URI, &b.Milestone, &b.MintedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Badge{}, false, nil
		}
		return models.Badge{}, false, fmt.Errorf("get badge: %w", err)
	}
	return b, true, nil
}

func (r badgeRepo) ListByOwner(ctx context.Context, owner models.Principal) ([]models.Badge, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT id, owner, uri, milestone, minted_at FROM badges WHERE owner = ? ORDER BY id ASC`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	out := []models.Badge{}
	for rows.Next() {
		var b models.Badge
		if err := rows.Scan(&b.ID, &b.Owner, &b.URI, &b.Milestone, &b.MintedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
