// file: repository/redis_token_repository.go

package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-auth-api/logger"
	"go-auth-api/model"

	"github.com/redis/go-redis/v9"
)

const minTokenTTL = time.Second

// Each script keeps the token key and the per-user index in step, so a
// concurrent caller never sees one without the other.

const insertTokenScript = `
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SADD", KEYS[2], ARGV[2])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[3]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[3])
end
return 1
`

const deleteTokenScript = `
local owner = redis.call("GET", KEYS[1])
if not owner then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. owner, ARGV[2])
return 1
`

const deleteAllTokensScript = `
local hashes = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, h in ipairs(hashes) do
  removed = removed + redis.call("DEL", ARGV[1] .. h)
end
redis.call("DEL", KEYS[1])
return removed
`

const rotateTokenScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[3], ARGV[2])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[4])
redis.call("SADD", KEYS[3], ARGV[3])
if redis.call("PTTL", KEYS[3]) < tonumber(ARGV[4]) then
  redis.call("PEXPIRE", KEYS[3], ARGV[4])
end
return 1
`

var (
	insertTokenLua    = redis.NewScript(insertTokenScript)
	deleteTokenLua    = redis.NewScript(deleteTokenScript)
	deleteAllTokenLua = redis.NewScript(deleteAllTokensScript)
	rotateTokenLua    = redis.NewScript(rotateTokenScript)
)

// RedisTokenRepository implements ITokenRepository on Redis.
//
// Layout: <prefix>:rt:<hash> holds the owning user id and expires with the
// token; <prefix>:user:<id> is the set of that user's token hashes.
type RedisTokenRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisTokenRepository creates a store that namespaces its keys under prefix.
func NewRedisTokenRepository(client redis.UniversalClient, prefix string) *RedisTokenRepository {
	if prefix == "" {
		prefix = "auth"
	}
	return &RedisTokenRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisTokenRepository) tokenKeyPrefix() string { return r.prefix + ":rt:" }
func (r *RedisTokenRepository) userKeyPrefix() string  { return r.prefix + ":user:" }

func (r *RedisTokenRepository) tokenKey(hash string) string {
	return r.tokenKeyPrefix() + hash
}

func (r *RedisTokenRepository) userKey(userID int) string {
	return r.userKeyPrefix() + strconv.Itoa(userID)
}

func (r *RedisTokenRepository) ttlMillis(expiresAt time.Time) int64 {
	ttl := expiresAt.Sub(r.now())
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	return ttl.Milliseconds()
}

func (r *RedisTokenRepository) Insert(ctx context.Context, userID int, token string, expiresAt time.Time) error {
	hash := HashToken(token)
	keys := []string{r.tokenKey(hash), r.userKey(userID)}
	if err := insertTokenLua.Run(ctx, r.client, keys, userID, hash, r.ttlMillis(expiresAt)).Err(); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to store refresh token in redis")
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RedisTokenRepository) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	hash := HashToken(token)
	key := r.tokenKey(hash)

	var getCmd *redis.StringCmd
	var ttlCmd *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, key)
		ttlCmd = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Log.WithError(err).Error("Failed to read refresh token from redis")
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	owner, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	userID, err := strconv.Atoi(owner)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token owner %q: %w", owner, err)
	}

	rt := &model.RefreshToken{UserID: userID, Token: token, TokenHash: hash}
	if ttl := ttlCmd.Val(); ttl > 0 {
		rt.ExpiresAt = r.now().Add(ttl)
	}
	return rt, nil
}

func (r *RedisTokenRepository) FindByUserAndToken(ctx context.Context, userID int, token string) (*model.RefreshToken, error) {
	rt, err := r.FindByToken(ctx, token)
	if err != nil || rt == nil {
		return nil, err
	}
	if rt.UserID != userID {
		return nil, nil
	}
	return rt, nil
}

func (r *RedisTokenRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	hash := HashToken(token)
	n, err := deleteTokenLua.Run(ctx, r.client, []string{r.tokenKey(hash)}, r.userKeyPrefix(), hash).Int64()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to delete refresh token from redis")
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	return n == 1, nil
}

func (r *RedisTokenRepository) DeleteAllForUser(ctx context.Context, userID int) (int64, error) {
	n, err := deleteAllTokenLua.Run(ctx, r.client, []string{r.userKey(userID)}, r.tokenKeyPrefix()).Int64()
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to delete refresh tokens from redis")
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}
	return n, nil
}

func (r *RedisTokenRepository) Rotate(ctx context.Context, userID int, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	oldHash, newHash := HashToken(oldToken), HashToken(newToken)
	keys := []string{r.tokenKey(oldHash), r.tokenKey(newHash), r.userKey(userID)}
	n, err := rotateTokenLua.Run(ctx, r.client, keys, strconv.Itoa(userID), oldHash, newHash, r.ttlMillis(expiresAt)).Int64()
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to rotate refresh token in redis")
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return n == 1, nil
}
