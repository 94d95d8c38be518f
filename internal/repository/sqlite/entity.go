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

// compile-time check that *DB implements repository.EntityRepository
var _ repository.EntityRepository = (*DB)(nil)

// CreateEntity inserts a new Skill/Project/Event record.
func (db *DB) CreateEntity(ctx context.Context, entity *model.Entity) error {
	entity.ID = xid.New().String()
	entity.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO entities (id, kind, name, created_at) VALUES (?, ?, ?, ?)`,
		entity.ID, entity.Kind, entity.Name, entity.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s %q: %w", entity.Kind, entity.Name, err)
	}
	return nil
}

// GetEntity retrieves an entity by kind and id.
func (db *DB) GetEntity(ctx context.Context, kind model.RefKind, id string) (*model.Entity, error) {
	var e model.Entity
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, kind, name, created_at FROM entities WHERE id = ? AND kind = ?`,
		id, kind).Scan(&e.ID, &e.Kind, &e.Name, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(string(kind), id)
		}
		return nil, fmt.Errorf("sqlite: getting %s %s: %w", kind, id, err)
	}
	return &e, nil
}

// ListEntities returns entities of one kind ordered by creation time.
func (db *DB) ListEntities(ctx context.Context, kind model.RefKind, opts repository.ListOptions) ([]model.Entity, error) {
	query := `SELECT id, kind, name, created_at FROM entities WHERE kind = ? ORDER BY created_at, id`
	args := []any{kind}
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %ss: %w", kind, err)
	}
	defer rows.Close()

	entities := []model.Entity{}
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Kind, &e.Name, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning entity row: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// DeleteEntity removes an entity, refusing while any user still references
// it. The count check and the delete share a transaction, so a reference
// added concurrently cannot slip in between.
func (db *DB) DeleteEntity(ctx context.Context, kind model.RefKind, id string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var refs int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_refs WHERE entity_id = ?`, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("sqlite: counting references to %s %s: %w", kind, id, err)
		}
		if refs > 0 {
			return apperror.DanglingReference(string(kind), id, refs)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM entities WHERE id = ? AND kind = ?`, id, kind)
		if err != nil {
			return fmt.Errorf("sqlite: deleting %s %s: %w", kind, id, err)
		}
		return requireAffected(res, string(kind), id)
	})
}
