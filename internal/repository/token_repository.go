package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/mosque-manager/internal/model"
)

// TokenRepo persists the refresh token ledger: issued jtis in
// outstanding_token and the revocation set in blacklisted_token.  The
// blacklist primary key turns INSERT IGNORE into an atomic insert-if-absent,
// which is what makes rotation single-use without external locking.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Record inserts an issued refresh token row.
func (r *TokenRepo) Record(ctx context.Context, t model.IssuedToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO outstanding_token (jti, user_id, expires_at, created_at) VALUES (?,?,?,?)",
		t.JTI, t.UserID, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
	return err
}

// Revoke adds rev to the revocation set.  It reports whether this call
// inserted the row; false means the jti was already revoked.
func (r *TokenRepo) Revoke(ctx context.Context, rev model.Revocation) (bool, error) {
	return insertRevocation(ctx, r.DB, rev)
}

// Rotate revokes old and records next in one transaction.  When old is
// already in the revocation set nothing is written and false is returned.
// Concurrent callers presenting the same jti serialize on the primary key:
// exactly one sees an inserted row.
func (r *TokenRepo) Rotate(ctx context.Context, old model.Revocation, next model.IssuedToken) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := insertRevocation(ctx, tx, old)
	if err != nil || !inserted {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO outstanding_token (jti, user_id, expires_at, created_at) VALUES (?,?,?,?)",
		next.JTI, next.UserID, next.ExpiresAt.UTC(), next.CreatedAt.UTC()); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// IsRevoked reports whether jti is in the revocation set.
func (r *TokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM blacklisted_token WHERE jti=? LIMIT 1", jti).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RevokeAllForUser blacklists every unexpired outstanding token of the user
// and returns how many were newly revoked.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, reason model.RevocationReason, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO blacklisted_token (jti, user_id, reason, revoked_at, expires_at)
		 SELECT jti, user_id, ?, ?, expires_at FROM outstanding_token WHERE user_id=? AND expires_at > ?`,
		string(reason), at.UTC(), userID, at.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FlushExpired deletes ledger rows whose token lifetime has ended; such
// tokens fail validation on expiry alone.
func (r *TokenRepo) FlushExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		"DELETE FROM blacklisted_token WHERE expires_at <= ?",
		"DELETE FROM outstanding_token WHERE expires_at <= ?",
	} {
		res, err := r.DB.ExecContext(ctx, q, now.UTC())
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRevocation(ctx context.Context, db execer, rev model.Revocation) (bool, error) {
	res, err := db.ExecContext(ctx,
		"INSERT IGNORE INTO blacklisted_token (jti, user_id, reason, revoked_at, expires_at) VALUES (?,?,?,?,?)",
		rev.JTI, rev.UserID, string(rev.Reason), rev.RevokedAt.UTC(), rev.ExpiresAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
