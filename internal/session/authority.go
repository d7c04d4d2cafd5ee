package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/mosque-manager/internal/model"
	"github.com/iliyamo/mosque-manager/internal/queue"
	"github.com/iliyamo/mosque-manager/internal/repository"
	"github.com/iliyamo/mosque-manager/internal/utils"
)

// Authority issues, validates, rotates and revokes tokens.  It is safe for
// concurrent use; rotation of a given refresh token is serialized by the
// store's insert-if-absent on its jti.
type Authority struct {
	cfg   Config
	codec *utils.JWTCodec
	users UserDirectory
	store TokenStore
	pub   EventPublisher
	log   *slog.Logger
	now   func() time.Time
}

// New builds an Authority.  Zero lifetimes fall back to the defaults.
func New(cfg Config, users UserDirectory, store TokenStore, opts ...Option) (*Authority, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	a := &Authority{
		cfg:   cfg,
		codec: utils.NewJWTCodec(cfg.Secret, cfg.Issuer),
		users: users,
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue mints a fresh pair for u and records the refresh jti.
func (a *Authority) Issue(ctx context.Context, u model.User) (Pair, error) {
	pair, refresh, err := a.mint(u, a.now())
	if err != nil {
		return Pair{}, err
	}
	if err := a.store.Record(ctx, refresh); err != nil {
		return Pair{}, fmt.Errorf("record refresh token: %w", err)
	}
	return pair, nil
}

// Login checks credentials against the directory and issues a pair.  The
// directory's last-login stamp is updated when it supports one.
func (a *Authority) Login(ctx context.Context, login, secret string) (Pair, model.User, error) {
	u, err := a.users.FindByCredentials(ctx, login, secret)
	if err != nil {
		return Pair{}, model.User{}, fmt.Errorf("find by credentials: %w", err)
	}
	if u == nil {
		return Pair{}, model.User{}, ErrBadCredentials
	}
	pair, err := a.Issue(ctx, *u)
	if err != nil {
		return Pair{}, model.User{}, err
	}
	if lr, ok := a.users.(loginRecorder); ok {
		if err := lr.TouchLastLogin(ctx, u.ID, a.now()); err != nil {
			a.log.Warn("update last login failed", "user_id", u.ID, "error", err)
		}
	}
	return pair, *u, nil
}

// ValidateAccess checks an access token's signature, type and expiry.
// Access tokens are not tracked, so there is no revocation lookup.  On
// success the directory's last-seen stamp is updated; a failure there is
// logged and does not reject the token.
func (a *Authority) ValidateAccess(ctx context.Context, raw string) (Principal, error) {
	claims, err := a.codec.Parse(raw, utils.TokenAccess, a.now())
	if err != nil {
		return Principal{}, a.reject("validate_access", classify(err), "", err)
	}
	p := principal(claims)
	if err := a.users.TouchLastSeen(ctx, p.UserID); err != nil {
		a.log.Warn("touch last seen failed", "user_id", p.UserID, "error", err)
	}
	return p, nil
}

// Rotate exchanges a refresh token for a new pair.  The presented jti is
// revoked in the same store operation that records its replacement, so a
// refresh token rotates at most once.  Presenting a token that is already
// revoked is logged as reuse and published as a security event.
func (a *Authority) Rotate(ctx context.Context, raw string) (Pair, error) {
	now := a.now()
	claims, err := a.codec.Parse(raw, utils.TokenRefresh, now)
	if err != nil {
		return Pair{}, a.reject("rotate", classify(err), "", err)
	}
	p := principal(claims)

	u := model.User{ID: p.UserID, IsActive: true}
	if lk, ok := a.users.(userLookup); ok {
		u, err = lk.GetByID(ctx, p.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return Pair{}, a.reject("rotate", reasonInactive, p.TokenID, err)
		}
		if err != nil {
			return Pair{}, fmt.Errorf("load user %d: %w", p.UserID, err)
		}
	}
	if !u.IsActive {
		return Pair{}, a.reject("rotate", reasonInactive, p.TokenID, nil)
	}

	pair, next, err := a.mint(u, now)
	if err != nil {
		return Pair{}, err
	}
	old := model.Revocation{
		JTI:       p.TokenID,
		UserID:    p.UserID,
		Reason:    model.ReasonRotated,
		RevokedAt: now,
		ExpiresAt: p.ExpiresAt,
	}
	rotated, err := a.store.Rotate(ctx, old, next)
	if err != nil {
		return Pair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		a.log.Error("refresh token reuse detected", "user_id", p.UserID, "jti", p.TokenID)
		a.publish(ctx, queue.SecurityEvent{
			Kind:       queue.EventRefreshReuse,
			UserID:     p.UserID,
			JTI:        p.TokenID,
			OccurredAt: now,
		})
		return Pair{}, ErrInvalid
	}
	return pair, nil
}

// Revoke retires a refresh token.  It is idempotent: a token that is
// already revoked, expired or unparseable cannot authenticate anyway, so
// those cases return nil too.  Only store failures are reported.
func (a *Authority) Revoke(ctx context.Context, raw string) error {
	claims, err := a.codec.Parse(raw, utils.TokenRefresh, a.now())
	if err != nil {
		a.log.Debug("revoke of unusable token ignored", "reason", classify(err))
		return nil
	}
	p := principal(claims)
	_, err = a.store.Revoke(ctx, model.Revocation{
		JTI:       p.TokenID,
		UserID:    p.UserID,
		Reason:    model.ReasonLogout,
		RevokedAt: a.now(),
		ExpiresAt: p.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll retires every outstanding refresh token of userID and returns
// how many were newly revoked.
func (a *Authority) RevokeAll(ctx context.Context, userID uint64) (int64, error) {
	now := a.now()
	n, err := a.store.RevokeAllForUser(ctx, userID, model.ReasonLogoutAll, now)
	if err != nil {
		return 0, fmt.Errorf("revoke all for user %d: %w", userID, err)
	}
	a.log.Info("all sessions revoked", "user_id", userID, "revoked", n)
	a.publish(ctx, queue.SecurityEvent{Kind: queue.EventLogoutAll, UserID: userID, Revoked: n, OccurredAt: now})
	return n, nil
}

// Verify reports whether raw would currently authenticate.  Access tokens
// are checked like ValidateAccess (without the last-seen side effect);
// refresh tokens are additionally checked against the revocation set.
func (a *Authority) Verify(ctx context.Context, raw string) error {
	now := a.now()
	claims, err := a.codec.Parse(raw, utils.TokenAccess, now)
	if errors.Is(err, utils.ErrTokenType) {
		claims, err = a.codec.Parse(raw, utils.TokenRefresh, now)
		if err == nil {
			revoked, serr := a.store.IsRevoked(ctx, claims.ID)
			if serr != nil {
				return fmt.Errorf("check revocation: %w", serr)
			}
			if revoked {
				return a.reject("verify", reasonRevoked, claims.ID, nil)
			}
		}
	}
	if err != nil {
		return a.reject("verify", classify(err), "", err)
	}
	return nil
}

func (a *Authority) mint(u model.User, now time.Time) (Pair, model.IssuedToken, error) {
	sub := utils.Subject{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff}
	access, err := a.codec.Sign(utils.TokenAccess, sub, now, a.cfg.AccessTTL)
	if err != nil {
		return Pair{}, model.IssuedToken{}, err
	}
	refresh, err := a.codec.Sign(utils.TokenRefresh, sub, now, a.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, model.IssuedToken{}, err
	}
	pair := Pair{
		Access:           access.Token,
		Refresh:          refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
	rec := model.IssuedToken{JTI: refresh.JTI, UserID: u.ID, ExpiresAt: refresh.ExpiresAt, CreatedAt: refresh.IssuedAt}
	return pair, rec, nil
}

func (a *Authority) reject(op string, r reason, jti string, err error) error {
	attrs := []any{"op", op, "reason", string(r)}
	if jti != "" {
		attrs = append(attrs, "jti", jti)
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	a.log.Info("token rejected", attrs...)
	return ErrInvalid
}

func (a *Authority) publish(ctx context.Context, ev queue.SecurityEvent) {
	if a.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := a.pub.Publish(ctx, ev); err != nil {
		a.log.Warn("publish security event failed", "kind", ev.Kind, "error", err)
	}
}

func classify(err error) reason {
	if errors.Is(err, utils.ErrTokenExpired) {
		return reasonExpired
	}
	return reasonMalformed
}

func principal(c *utils.Claims) Principal {
	id, _ := c.UserID() // Parse already rejected non-numeric subjects
	return Principal{
		UserID:    id,
		Username:  c.Username,
		IsStaff:   c.IsStaff,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}
}
