package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/mosque-manager/internal/model"
)

// rotateScript revokes KEYS[1] only if absent and, in the same atomic step,
// records the replacement token (KEYS[2]) and adds it to the user's index
// (KEYS[3]).  Returns 1 when the rotation happened, 0 on reuse.
var rotateScript = redis.NewScript(`
	if not redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
		return 0
	end
	redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[4])
	redis.call('SADD', KEYS[3], ARGV[5])
	redis.call('PEXPIRE', KEYS[3], ARGV[4])
	return 1
`)

// RedisTokenStore keeps the refresh token ledger in Redis.  Entries carry a
// TTL equal to the token's remaining lifetime, so expired records vanish on
// their own.
type RedisTokenStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisTokenStore returns a store using keys under prefix (default "tok").
func NewRedisTokenStore(rdb redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "tok"
	}
	return &RedisTokenStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisTokenStore) revokedKey(jti string) string { return s.prefix + ":revoked:" + jti }
func (s *RedisTokenStore) issuedKey(jti string) string  { return s.prefix + ":issued:" + jti }
func (s *RedisTokenStore) userKey(id uint64) string {
	return s.prefix + ":user:" + strconv.FormatUint(id, 10)
}

// ttlUntil never returns less than a millisecond; SET PX rejects zero.
func (s *RedisTokenStore) ttlUntil(exp time.Time) time.Duration {
	ttl := exp.Sub(s.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl
}

// Record stores an issued refresh token and indexes it under its user.
func (s *RedisTokenStore) Record(ctx context.Context, t model.IssuedToken) error {
	ttl := s.ttlUntil(t.ExpiresAt)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.issuedKey(t.JTI), strconv.FormatUint(t.UserID, 10), ttl)
		p.SAdd(ctx, s.userKey(t.UserID), t.JTI)
		p.PExpire(ctx, s.userKey(t.UserID), ttl)
		return nil
	})
	return err
}

// Revoke adds rev to the revocation set with SET NX.
func (s *RedisTokenStore) Revoke(ctx context.Context, rev model.Revocation) (bool, error) {
	return s.rdb.SetNX(ctx, s.revokedKey(rev.JTI), string(rev.Reason), s.ttlUntil(rev.ExpiresAt)).Result()
}

// Rotate revokes old and records next atomically via a Lua script.
func (s *RedisTokenStore) Rotate(ctx context.Context, old model.Revocation, next model.IssuedToken) (bool, error) {
	keys := []string{s.revokedKey(old.JTI), s.issuedKey(next.JTI), s.userKey(next.UserID)}
	args := []any{
		string(old.Reason),
		s.ttlUntil(old.ExpiresAt).Milliseconds(),
		strconv.FormatUint(next.UserID, 10),
		s.ttlUntil(next.ExpiresAt).Milliseconds(),
		next.JTI,
	}
	n, err := rotateScript.Run(ctx, s.rdb, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IsRevoked reports whether jti is in the revocation set.
func (s *RedisTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.revokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllForUser revokes every indexed token of the user that has not
// expired yet.  Each revocation is an independent SET NX.
func (s *RedisTokenStore) RevokeAllForUser(ctx context.Context, userID uint64, reason model.RevocationReason, _ time.Time) (int64, error) {
	jtis, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	var revoked int64
	for _, jti := range jtis {
		ttl, err := s.rdb.PTTL(ctx, s.issuedKey(jti)).Result()
		if err != nil {
			return revoked, err
		}
		if ttl <= 0 {
			// expired or unknown; nothing left to revoke
			continue
		}
		ok, err := s.rdb.SetNX(ctx, s.revokedKey(jti), string(reason), ttl).Result()
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}

// FlushExpired is a no-op: Redis expires entries itself.
func (s *RedisTokenStore) FlushExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
