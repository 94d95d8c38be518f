// Package repository defines the storage interfaces the service layer
// programs against. The sqlite subpackage is the only implementation; tests
// substitute in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/dsampson94/community-recruit/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// SnapshotRow is one user's raw counters as read in a single consistent
// pass over the store. The aggregator turns these into metrics; keeping the
// row at counter level keeps scoring policy out of the storage layer.
type SnapshotRow struct {
	UserID           string
	Username         string
	CreatedAt        time.Time
	GitContributions int
	HoursWorked      float64
	Breadth          int
}

// UserRepository is the entity store's user surface. All mutation is
// all-or-nothing: an operation either fully applies or leaves the store
// untouched.
type UserRepository interface {
	// CreateUser validates uniqueness of username and email, resolves any
	// initial references, and persists the user. ID and timestamps are
	// assigned here.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	// UpdateUser writes the user's scalar fields, re-checking uniqueness if
	// username or email changed. The write applies only if the record still
	// carries the Version the caller read; otherwise it fails with
	// ErrConcurrentUpdate and nothing is written. Reference sequences are
	// not touched; those mutate only through AddReference/RemoveReference.
	UpdateUser(ctx context.Context, user *model.User) error
	// DeleteUser removes the user and drops all outbound references.
	// Referenced entities survive — they may be shared.
	DeleteUser(ctx context.Context, id string) error
	// AddReference appends entityID to the user's sequence for kind.
	// Idempotent: adding an already-present id is a no-op. Both endpoints
	// are existence-checked inside the same transaction as the insert.
	AddReference(ctx context.Context, userID string, kind model.RefKind, entityID string) error
	// RemoveReference drops entityID from the user's sequence for kind.
	// Removing an id that is not present is a no-op, but a missing user or
	// entity is still a NotFound.
	RemoveReference(ctx context.Context, userID string, kind model.RefKind, entityID string) error
	// MetricsSnapshot returns every user's counters from one point-in-time
	// read, the input to a full ranking pass.
	MetricsSnapshot(ctx context.Context) ([]SnapshotRow, error)
	// SaveRanks persists a computed board: listed users get their rank,
	// everyone else drops back to unranked. One transaction.
	SaveRanks(ctx context.Context, ranks map[string]int) error
}

// EntityRepository manages the referenced Skill/Project/Event records.
type EntityRepository interface {
	CreateEntity(ctx context.Context, entity *model.Entity) error
	GetEntity(ctx context.Context, kind model.RefKind, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, kind model.RefKind, opts ListOptions) ([]model.Entity, error)
	// DeleteEntity is refused with a DanglingReference error while any user
	// still references the entity.
	DeleteEntity(ctx context.Context, kind model.RefKind, id string) error
}
