package utils // package utils provides token encoding and password hashing helpers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // HS256 signing and claim validation
	"github.com/google/uuid"       // unique jti per token
)

// TokenType distinguishes access tokens from refresh tokens.  It travels in
// the token_type claim so that one kind can never be used as the other.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Errors returned by Parse.  Callers outside the session package collapse
// them into a single "invalid token" answer; the distinction exists for logs.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenType      = errors.New("token type mismatch")
)

// Claims is the payload carried by every token.  Username and IsStaff are
// only stamped on access tokens so that protected handlers do not need a
// directory lookup on each request.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	Username  string    `json:"username,omitempty"`
	IsStaff   bool      `json:"is_staff,omitempty"`
	jwt.RegisteredClaims
}

// UserID decodes the numeric subject.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// SignedToken is a serialized JWT plus the metadata the caller needs to
// record it without parsing it again.
type SignedToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Subject is the identity a token is minted for.
type Subject struct {
	UserID   uint64
	Username string
	IsStaff  bool
}

// JWTCodec signs and verifies HS256 tokens with a shared secret.
type JWTCodec struct {
	secret []byte
	issuer string
}

// NewJWTCodec returns a codec bound to secret and issuer.
func NewJWTCodec(secret, issuer string) *JWTCodec {
	return &JWTCodec{secret: []byte(secret), issuer: issuer}
}

// Sign mints a token of the given type valid for ttl from now.  Times are
// truncated to whole seconds because that is all the wire format keeps.
func (c *JWTCodec) Sign(typ TokenType, sub Subject, now time.Time, ttl time.Duration) (SignedToken, error) {
	iat := now.UTC().Truncate(time.Second)
	exp := iat.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(sub.UserID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if typ == TokenAccess {
		claims.Username = sub.Username
		claims.IsStaff = sub.IsStaff
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return SignedToken{Token: signed, JTI: jti, IssuedAt: iat, ExpiresAt: exp}, nil
}

// Parse verifies signature, issuer and expiry against now and checks that
// the token is of the wanted type.  A token is expired once now reaches exp.
func (c *JWTCodec) Parse(raw string, want TokenType, now time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.TokenType != want {
		return nil, ErrTokenType
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenMalformed)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenMalformed)
	}
	return claims, nil
}
