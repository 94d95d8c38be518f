package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password, full_name, bio, location,
	git_contributions, hours_worked, leaderboard_rank, version, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers work
// inside and outside transactions.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateUser inserts a new user after checking username and email
// uniqueness. Initial references, if any, are resolved and written in the
// same transaction — a single missing entity rolls back the whole create.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkUnique(ctx, tx, "username", user.Username, ""); err != nil {
			return err
		}
		if err := checkUnique(ctx, tx, "email", user.Email, ""); err != nil {
			return err
		}

		now := time.Now()
		user.ID = xid.New().String()
		user.CreatedAt = now
		user.UpdatedAt = now

		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, email, password, full_name, bio, location,
				git_contributions, hours_worked, leaderboard_rank, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
			user.ID, user.Username, user.Email, user.Password,
			user.FullName, user.Bio, user.Location,
			user.GitContributions, user.HoursWorked,
			user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
		}

		for _, kind := range []model.RefKind{model.RefSkill, model.RefProject, model.RefEvent} {
			for _, entityID := range user.Refs(kind) {
				if err := insertRef(ctx, tx, user.ID, kind, entityID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetUserByID retrieves a user and their reference sequences.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by their unique username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, "username", username)
}

// GetUserByEmail retrieves a user by their unique email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email", email)
}

func (db *DB) getUser(ctx context.Context, column, value string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %q: %w", column, value, err)
	}

	if err := loadRefs(ctx, db.conn, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns users ordered by registration time.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}

	for i := range users {
		if err := loadRefs(ctx, db.conn, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// UpdateUser writes the user's scalar fields. Uniqueness of username and
// email is re-checked against every other user inside the transaction.
//
// The write is guarded by an optimistic version check: it only applies if
// the row still carries the version the caller read. A concurrent writer
// bumps the version first, the stale write matches zero rows and fails with
// ErrConcurrentUpdate instead of silently clobbering the other write.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkUnique(ctx, tx, "username", user.Username, user.ID); err != nil {
			return err
		}
		if err := checkUnique(ctx, tx, "email", user.Email, user.ID); err != nil {
			return err
		}

		user.UpdatedAt = time.Now()
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET username = ?, email = ?, password = ?, full_name = ?, bio = ?,
				 location = ?, git_contributions = ?, hours_worked = ?,
				 version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ?`,
			user.Username, user.Email, user.Password, user.FullName, user.Bio,
			user.Location, user.GitContributions, user.HoursWorked, user.UpdatedAt,
			user.ID, user.Version,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: reading rows affected: %w", err)
		}
		if n == 0 {
			if err := requireUser(ctx, tx, user.ID); err != nil {
				return err
			}
			return apperror.ConcurrentModification("user", user.ID)
		}
		user.Version++
		return nil
	})
}

// DeleteUser removes the user; the ON DELETE CASCADE on user_refs drops
// every outbound reference with the row. Referenced entities are untouched.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// AddReference appends entityID to the user's sequence for kind. Both
// endpoints are checked and the row inserted under one transaction, so the
// reference can never be added to an entity deleted concurrently.
func (db *DB) AddReference(ctx context.Context, userID string, kind model.RefKind, entityID string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		return insertRef(ctx, tx, userID, kind, entityID)
	})
}

// RemoveReference drops entityID from the user's sequence for kind.
func (db *DB) RemoveReference(ctx context.Context, userID string, kind model.RefKind, entityID string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := requireEntity(ctx, tx, kind, entityID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM user_refs WHERE user_id = ? AND kind = ? AND entity_id = ?`,
			userID, kind, entityID)
		if err != nil {
			return fmt.Errorf("sqlite: removing %s reference: %w", kind, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return touchUser(ctx, tx, userID)
		}
		return nil // not present — removal is a no-op
	})
}

// MetricsSnapshot reads every user's counters and reference count in one
// statement. SQLite executes a single statement atomically, so the result
// is a consistent point-in-time view even with writers queued behind it.
func (db *DB) MetricsSnapshot(ctx context.Context) ([]repository.SnapshotRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.username, u.created_at, u.git_contributions, u.hours_worked,
			(SELECT COUNT(*) FROM user_refs r WHERE r.user_id = u.id) AS breadth
		 FROM users u`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading metrics snapshot: %w", err)
	}
	defer rows.Close()

	var snapshot []repository.SnapshotRow
	for rows.Next() {
		var r repository.SnapshotRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.CreatedAt,
			&r.GitContributions, &r.HoursWorked, &r.Breadth); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snapshot row: %w", err)
		}
		snapshot = append(snapshot, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snapshot rows: %w", err)
	}
	return snapshot, nil
}

// SaveRanks persists a computed board. Users absent from ranks drop back to
// unranked (0) so a deleted or no-longer-scored user never keeps a stale rank.
func (db *DB) SaveRanks(ctx context.Context, ranks map[string]int) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET leaderboard_rank = 0 WHERE leaderboard_rank <> 0`); err != nil {
			return fmt.Errorf("sqlite: clearing ranks: %w", err)
		}
		for userID, r := range ranks {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET leaderboard_rank = ? WHERE id = ?`, r, userID); err != nil {
				return fmt.Errorf("sqlite: saving rank for user %s: %w", userID, err)
			}
		}
		return nil
	})
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.Bio,
		&u.Location, &u.GitContributions, &u.HoursWorked, &u.LeaderboardRank,
		&u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// loadRefs fills the user's three reference sequences in stored order.
func loadRefs(ctx context.Context, q querier, user *model.User) error {
	user.Skills = []string{}
	user.Projects = []string{}
	user.EventsAttended = []string{}

	rows, err := q.QueryContext(ctx,
		`SELECT kind, entity_id FROM user_refs WHERE user_id = ? ORDER BY kind, position`,
		user.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading references for user %s: %w", user.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind model.RefKind
		var entityID string
		if err := rows.Scan(&kind, &entityID); err != nil {
			return fmt.Errorf("sqlite: scanning reference row: %w", err)
		}
		switch kind {
		case model.RefSkill:
			user.Skills = append(user.Skills, entityID)
		case model.RefProject:
			user.Projects = append(user.Projects, entityID)
		case model.RefEvent:
			user.EventsAttended = append(user.EventsAttended, entityID)
		}
	}
	return rows.Err()
}

// insertRef resolves the entity and appends the reference at the end of the
// kind's sequence. Already-present references are a no-op.
func insertRef(ctx context.Context, tx *sql.Tx, userID string, kind model.RefKind, entityID string) error {
	if err := requireEntity(ctx, tx, kind, entityID); err != nil {
		return err
	}

	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_refs WHERE user_id = ? AND kind = ? AND entity_id = ?`,
		userID, kind, entityID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking existing reference: %w", err)
	}
	if exists > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_refs (user_id, kind, entity_id, position)
		 VALUES (?, ?, ?,
			COALESCE((SELECT MAX(position) + 1 FROM user_refs WHERE user_id = ? AND kind = ?), 0))`,
		userID, kind, entityID, userID, kind)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s reference: %w", kind, err)
	}
	return touchUser(ctx, tx, userID)
}

func requireUser(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return apperror.NotFound("user", id)
	}
	if err != nil {
		return fmt.Errorf("sqlite: checking user %s: %w", id, err)
	}
	return nil
}

func requireEntity(ctx context.Context, q querier, kind model.RefKind, id string) error {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM entities WHERE id = ? AND kind = ?`, id, kind).Scan(&one)
	if err == sql.ErrNoRows {
		return apperror.NotFound(string(kind), id)
	}
	if err != nil {
		return fmt.Errorf("sqlite: checking %s %s: %w", kind, id, err)
	}
	return nil
}

// checkUnique fails with a Conflict if another user (excluding excludeID)
// already holds the value in the given column.
func checkUnique(ctx context.Context, q querier, column, value, excludeID string) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE `+column+` = ? AND id <> ?`,
		value, excludeID).Scan(&count)
	if err != nil {
		return fmt.Errorf("sqlite: checking %s uniqueness: %w", column, err)
	}
	if count > 0 {
		return apperror.Conflict(column, value)
	}
	return nil
}

func touchUser(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET updated_at = ? WHERE id = ?`, time.Now(), id); err != nil {
		return fmt.Errorf("sqlite: touching user %s: %w", id, err)
	}
	return nil
}

func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
