package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository     = (*SQLiteUserRepo)(nil)
	_ SnapshotRepository = (*SQLiteSnapshotRepo)(nil)
)

const createUsersTableSQL = `CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	name TEXT,
	status TEXT NOT NULL,
	trial_started_at TEXT,
	subscription_started_at TEXT,
	created_at TEXT NOT NULL
)`

const createSnapshotsTableSQL = `CREATE TABLE IF NOT EXISTS user_counts (
	period_key TEXT PRIMARY KEY,
	total_users INTEGER NOT NULL,
	captured_at TEXT NOT NULL
)`

// Open opens (creating if needed) the SQLite database at path and ensures
// both tables exist. The returned handle is limited to one connection:
// the registry is a single-writer store and upserts rely on transaction
// serialization.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	for _, stmt := range []string{createUsersTableSQL, createSnapshotsTableSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return db, nil
}

// SQLiteUserRepo implements UserRepository on a SQLite file.
type SQLiteUserRepo struct {
	db *sql.DB
}

func NewSQLiteUserRepo(db *sql.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: db}
}

const selectUserSQL = `SELECT id, email, name, status, trial_started_at, subscription_started_at, created_at
FROM users WHERE email = ?`

const insertUserSQL = `INSERT INTO users (id, email, name, status, trial_started_at, subscription_started_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

const updateUserSQL = `UPDATE users
SET name = ?, status = ?, trial_started_at = ?, subscription_started_at = ?
WHERE email = ?`

// createdAtLayout is fixed width so that lexicographic ordering of the
// stored strings matches chronological ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000"

func (r *SQLiteUserRepo) Upsert(ctx context.Context, params UpsertParams) (domain.User, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanUser(tx.QueryRowContext(ctx, selectUserSQL, params.Email))
	switch {
	case err == nil:
		merged, err := mergeUser(existing, params)
		if err != nil {
			return domain.User{}, false, err
		}
		if _, err := tx.ExecContext(ctx, updateUserSQL,
			merged.Name, merged.Status, merged.TrialStartedAt, merged.SubscriptionStartedAt, params.Email,
		); err != nil {
			return domain.User{}, false, fmt.Errorf("update user: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return domain.User{}, false, fmt.Errorf("commit upsert: %w", err)
		}
		return merged, false, nil

	case errors.Is(err, sql.ErrNoRows):
		created, err := newUser(params)
		if err != nil {
			return domain.User{}, false, err
		}
		if _, err := tx.ExecContext(ctx, insertUserSQL,
			created.ID, created.Email, created.Name, created.Status,
			created.TrialStartedAt, created.SubscriptionStartedAt, created.CreatedAt,
		); err != nil {
			return domain.User{}, false, fmt.Errorf("insert user: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return domain.User{}, false, fmt.Errorf("commit upsert: %w", err)
		}
		return created, true, nil

	default:
		return domain.User{}, false, fmt.Errorf("load user: %w", err)
	}
}

// mergeUser applies the field-wise merge rules to an existing record:
// last non-null name wins, omitted status keeps the stored one, each
// timestamp is replaced only when supplied.
func mergeUser(existing domain.User, params UpsertParams) (domain.User, error) {
	merged := existing

	if params.Name != nil {
		merged.Name = params.Name
	}

	var raw string
	if params.Status != nil {
		raw = *params.Status
	}
	status, err := domain.ParseStatus(raw, existing.Status)
	if err != nil {
		return domain.User{}, err
	}
	merged.Status = status

	if params.TrialStartedAt != nil {
		normalized, err := domain.NormalizeTimestamp(*params.TrialStartedAt, "trialStartedAt")
		if err != nil {
			return domain.User{}, err
		}
		merged.TrialStartedAt = &normalized
	}
	if params.SubscriptionStartedAt != nil {
		normalized, err := domain.NormalizeTimestamp(*params.SubscriptionStartedAt, "subscriptionStartedAt")
		if err != nil {
			return domain.User{}, err
		}
		merged.SubscriptionStartedAt = &normalized
	}

	return merged, nil
}

func newUser(params UpsertParams) (domain.User, error) {
	var raw string
	if params.Status != nil {
		raw = *params.Status
	}
	status, err := domain.ParseStatus(raw, "")
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:        uuid.NewString(),
		Email:     params.Email,
		Name:      params.Name,
		Status:    status,
		CreatedAt: time.Now().UTC().Format(createdAtLayout),
	}

	if params.TrialStartedAt != nil {
		normalized, err := domain.NormalizeTimestamp(*params.TrialStartedAt, "trialStartedAt")
		if err != nil {
			return domain.User{}, err
		}
		user.TrialStartedAt = &normalized
	}
	if params.SubscriptionStartedAt != nil {
		normalized, err := domain.NormalizeTimestamp(*params.SubscriptionStartedAt, "subscriptionStartedAt")
		if err != nil {
			return domain.User{}, err
		}
		user.SubscriptionStartedAt = &normalized
	}

	return user, nil
}

func (r *SQLiteUserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, name, status, trial_started_at, subscription_started_at, created_at
FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *SQLiteUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUserSQL, email))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (r *SQLiteUserRepo) CountDistinct(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT email) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user                  domain.User
		name                  sql.NullString
		trialStartedAt        sql.NullString
		subscriptionStartedAt sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Email, &name, &user.Status, &trialStartedAt, &subscriptionStartedAt, &user.CreatedAt); err != nil {
		return domain.User{}, err
	}
	if name.Valid {
		user.Name = &name.String
	}
	if trialStartedAt.Valid {
		user.TrialStartedAt = &trialStartedAt.String
	}
	if subscriptionStartedAt.Valid {
		user.SubscriptionStartedAt = &subscriptionStartedAt.String
	}
	return user, nil
}

// SQLiteSnapshotRepo implements SnapshotRepository on the same database.
type SQLiteSnapshotRepo struct {
	db *sql.DB
}

func NewSQLiteSnapshotRepo(db *sql.DB) *SQLiteSnapshotRepo {
	return &SQLiteSnapshotRepo{db: db}
}

func (r *SQLiteSnapshotRepo) Replace(ctx context.Context, snap domain.Snapshot) error {
	if _, err := r.db.ExecContext(ctx,
		`REPLACE INTO user_counts (period_key, total_users, captured_at) VALUES (?, ?, ?)`,
		snap.PeriodKey, snap.TotalUsers, snap.CapturedAt,
	); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteSnapshotRepo) Get(ctx context.Context, periodKey string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := r.db.QueryRowContext(ctx,
		`SELECT period_key, total_users, captured_at FROM user_counts WHERE period_key = ?`, periodKey,
	).Scan(&snap.PeriodKey, &snap.TotalUsers, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}
