package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists refresh token state and the access token blocklist.
// Refresh tokens are JWTs; only their jti is stored here so they can be
// rotated and revoked server-side. Blocklisted access jtis stay invalid
// permanently, there is no un-revoke.
type TokenRepo struct {
	db *sql.DB
}

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh records a freshly issued refresh token's jti.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, jti string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, jti, expires_at) VALUES (?,?,?)",
		userID, jti, exp)
	return err
}

// ValidateRefresh returns the owning user ID when a non-revoked,
// non-expired refresh token with this jti exists.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, jti string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE jti=? LIMIT 1",
		jti).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, err
	}
	if revokedAt.Valid {
		return 0, sql.ErrNoRows
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}

// RevokeRefresh marks a refresh token as spent. Used on rotation and on
// explicit logout of a session. The WHERE clause only hits a live row, so
// when two rotations race over the same jti exactly one revokes it; the
// loser gets ErrNotFound and must not mint a new pair.
func (r *TokenRepo) RevokeRefresh(ctx context.Context, jti string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE jti=? AND revoked_at IS NULL",
		jti)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllForUser revokes every active refresh token of a user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// Block adds an access token's jti to the blocklist. Inserting the same
// jti twice is treated as success since the outcome is identical.
func (r *TokenRepo) Block(ctx context.Context, userID uint64, jti, reason string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO token_blocklist (user_id, jti, reason, created_at) VALUES (?,?,?,?)",
		userID, jti, reason, time.Now().UTC())
	if isDuplicate(err, "") {
		return nil
	}
	return err
}

// IsBlocked reports whether a jti has been revoked.
func (r *TokenRepo) IsBlocked(ctx context.Context, jti string) (bool, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM token_blocklist WHERE jti=? LIMIT 1", jti).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
