// Package session manages the lifetime of credentials bound to a verified
// identity: short-lived access tokens, rotating single-use refresh tokens and
// the revocation set that retires them.
//
// Every token problem a caller can observe is ErrInvalid.  Whether a token
// was malformed, expired, revoked or replayed only shows up in the logs.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/mosque-manager/internal/model"
	"github.com/iliyamo/mosque-manager/internal/queue"
)

// Default lifetimes.
const (
	DefaultAccessTTL  = 8 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalid is returned for any token that must not authenticate.
	ErrInvalid = errors.New("session: invalid token")
	// ErrBadCredentials is returned by Login when no active identity
	// matches the login and secret.
	ErrBadCredentials = errors.New("session: invalid credentials")
	// ErrNoSecret is returned by New when the signing secret is empty.
	ErrNoSecret = errors.New("session: signing secret required")
)

// Config carries the secret material and lifetimes.  It is passed in at
// construction; the package never reads the environment.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// UserDirectory is the identity store.  FindByCredentials returns nil, nil
// when nothing active matches.
type UserDirectory interface {
	FindByCredentials(ctx context.Context, login, secret string) (*model.User, error)
	TouchLastSeen(ctx context.Context, id uint64) error
}

// userLookup is implemented by directories that can reload an identity by
// id.  Rotation uses it to refresh profile claims and to refuse deactivated
// accounts.  A missing identity is reported as repository.ErrNotFound and
// rejected like a deactivated one.
type userLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// loginRecorder is implemented by directories that track credential logins.
type loginRecorder interface {
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// TokenStore holds the refresh token ledger and the revocation set.  Rotate
// and Revoke must be atomic insert-if-absent on the revoked jti and report
// whether this call performed the insert.
type TokenStore interface {
	Record(ctx context.Context, t model.IssuedToken) error
	Rotate(ctx context.Context, old model.Revocation, next model.IssuedToken) (bool, error)
	Revoke(ctx context.Context, rev model.Revocation) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint64, reason model.RevocationReason, at time.Time) (int64, error)
}

// EventPublisher receives security events.  Failures never fail the
// operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.SecurityEvent) error
}

// Pair is what a client receives after login or rotation.
type Pair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Principal is the identity a valid token speaks for.
type Principal struct {
	UserID    uint64
	Username  string
	IsStaff   bool
	TokenID   string
	ExpiresAt time.Time
}

// rejection reasons, for logs only
type reason string

const (
	reasonMalformed reason = "malformed"
	reasonExpired   reason = "expired"
	reasonRevoked   reason = "revoked"
	reasonReuse     reason = "reuse_detected"
	reasonInactive  reason = "inactive"
)

const publishTimeout = 3 * time.Second

// Option customizes an Authority.
type Option func(*Authority)

// WithClock replaces time.Now.  All expiry decisions use this clock.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// WithPublisher sends security events to p.  A nil p disables publishing.
func WithPublisher(p EventPublisher) Option {
	return func(a *Authority) { a.pub = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Authority) {
		if l != nil {
			a.log = l
		}
	}
}
