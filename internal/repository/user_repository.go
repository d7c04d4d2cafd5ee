package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/mosque-manager/internal/model"
	"github.com/iliyamo/mosque-manager/internal/utils"
)

const userColumns = "id,username,email,password_hash,is_active,is_staff,last_login,last_seen_at,created_at,updated_at"

// UserRepo is the MySQL-backed user directory.
type UserRepo struct {
	DB *sql.DB
	// Cost is the bcrypt cost used when hashing new credentials.
	Cost int

	dummyOnce sync.Once
	dummy     string
}

// verifyPassword is swapped in tests to observe hashing work.
var verifyPassword = utils.VerifyPassword

func NewUserRepo(db *sql.DB, cost int) *UserRepo { return &UserRepo{DB: db, Cost: cost} }

// Create registers a user and returns its ID.  The e-mail is normalized;
// unique violations map to ErrUsernameExists / ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, username, email, password string, staff bool) (uint64, error) {
	username = strings.TrimSpace(username)
	email = model.NormalizeEmail(email)
	hash, err := utils.HashPassword(password, r.Cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO core_user (username, email, password_hash, is_staff) VALUES (?,?,?,?)",
		username, email, hash, staff)
	if err != nil {
		return 0, mapUserDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM core_user WHERE id=? LIMIT 1", id)
}

// GetByUsername fetches a user by exact login handle.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM core_user WHERE username=? LIMIT 1", strings.TrimSpace(username))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM core_user WHERE email=? LIMIT 1", model.NormalizeEmail(email))
}

// FindByCredentials resolves login (username, or e-mail when it contains
// "@") and checks secret against the stored hash.  It returns nil, nil when
// nothing matches, the password is wrong, or the account is inactive, so
// callers cannot tell those cases apart.  Unknown logins are checked
// against a throwaway hash so every outcome costs one bcrypt comparison.
func (r *UserRepo) FindByCredentials(ctx context.Context, login, secret string) (*model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || secret == "" {
		return nil, nil
	}
	var (
		u   model.User
		err error
	)
	if strings.Contains(login, "@") {
		u, err = r.GetByEmail(ctx, login)
	} else {
		u, err = r.GetByUsername(ctx, login)
	}
	if errors.Is(err, ErrNotFound) {
		verifyPassword(r.dummyHash(), secret)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !verifyPassword(u.PasswordHash, secret) || !u.IsActive {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) dummyHash() string {
	r.dummyOnce.Do(func() {
		r.dummy, _ = utils.HashPassword("no such user", r.Cost)
	})
	return r.dummy
}

// TouchLastSeen stamps the user's last authenticated request with the
// wall clock.  It does not follow a clock injected into the session layer.
func (r *UserRepo) TouchLastSeen(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE core_user SET last_seen_at=? WHERE id=?", time.Now().UTC(), id)
	return err
}

// TouchLastLogin stamps a successful credential login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE core_user SET last_login=? WHERE id=?", at.UTC(), id)
	return err
}

// SetPassword replaces the stored credential hash.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, password string) error {
	hash, err := utils.HashPassword(password, r.Cost)
	if err != nil {
		return err
	}
	return r.execOne(ctx, "UPDATE core_user SET password_hash=? WHERE id=?", hash, id)
}

// Deactivate disables the account.  Rows are never deleted.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	return r.execOne(ctx, "UPDATE core_user SET is_active=0 WHERE id=?", id)
}

func (r *UserRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
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

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	var (
		u                   model.User
		lastLogin, lastSeen sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsStaff,
		&lastLogin, &lastSeen, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.LastLogin = nullTimeToPtr(lastLogin)
	u.LastSeenAt = nullTimeToPtr(lastSeen)
	return u, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
