package repository

import (
	"context"
	"errors"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// UpsertParams carries one create-or-merge request. Nil pointer fields
// mean "not supplied" and leave the existing value untouched on update.
type UpsertParams struct {
	Email                 string
	Name                  *string
	Status                *string
	TrialStartedAt        *string
	SubscriptionStartedAt *string
}

// UserRepository owns persistence of user records. It is the single
// writer; all mutation goes through Upsert.
type UserRepository interface {
	// Upsert creates the record for params.Email or merges into the
	// existing one. The bool reports whether a new record was created.
	Upsert(ctx context.Context, params UpsertParams) (domain.User, bool, error)
	// List returns all users ordered by creation time, newest first.
	List(ctx context.Context) ([]domain.User, error)
	// FindByEmail returns the record for email or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	// CountDistinct counts distinct user emails.
	CountDistinct(ctx context.Context) (int64, error)
}

// SnapshotRepository owns persistence of user-count snapshots.
type SnapshotRepository interface {
	// Replace writes the snapshot for its period key, overwriting any
	// prior capture for the same period.
	Replace(ctx context.Context, snap domain.Snapshot) error
	// Get returns the snapshot for periodKey or ErrNotFound.
	Get(ctx context.Context, periodKey string) (domain.Snapshot, error)
}
