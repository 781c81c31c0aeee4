package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sandevgo/deskbot/internal/core"
)

type IdentityRepo struct {
	conn
}

func NewIdentityRepo(db *sql.DB, timeout time.Duration) *IdentityRepo {
	return &IdentityRepo{conn: newConn(db, timeout)}
}

func (r *IdentityRepo) GetIdentity(ctx context.Context, userID int64) (*core.Identity, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var id core.Identity
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, phone, username, full_name, updated_at FROM identities WHERE user_id = ?`,
		userID,
	).Scan(&id.UserID, &id.Phone, &id.Username, &id.FullName, &id.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_identity", err)
	}
	return &id, nil
}

// UpsertIdentity replaces every column of an existing record; fields of an
// earlier claim never survive a later one.
func (r *IdentityRepo) UpsertIdentity(ctx context.Context, identity core.Identity) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	updatedAt := identity.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (user_id, phone, username, full_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			phone = excluded.phone,
			username = excluded.username,
			full_name = excluded.full_name,
			updated_at = excluded.updated_at`,
		identity.UserID, identity.Phone, identity.Username, identity.FullName, updatedAt,
	)
	if err != nil {
		return storeErr("upsert_identity", err)
	}
	return nil
}
