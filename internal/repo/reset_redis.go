package repo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys outlive the token by this much so late redemptions still report expiry.
const redisResetGrace = 24 * time.Hour

// consumeScript returns {status, user_id}: 0 missing, 1 consumed, 2 used, 3 expired.
var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'user_id', 'expires_at', 'used')
if not v[1] then
	return {0, ''}
end
if v[3] == '1' then
	return {2, ''}
end
if tonumber(v[2]) <= tonumber(ARGV[1]) then
	return {3, ''}
end
redis.call('HSET', KEYS[1], 'used', '1')
return {1, v[1]}
`)

type RedisResetStore struct {
	Client  redis.Cmdable
	Prefix  string
	Timeout time.Duration
}

func NewRedisResetStore(client redis.Cmdable, timeout time.Duration) *RedisResetStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RedisResetStore{Client: client, Prefix: "auth:reset:", Timeout: timeout}
}

func (s *RedisResetStore) key(hash string) string { return s.Prefix + hash }

func (s *RedisResetStore) SaveResetToken(ctx context.Context, hash string, userID uint, expiresAt int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	key := s.key(hash)
	_, err := s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"user_id", strconv.FormatUint(uint64(userID), 10),
			"expires_at", strconv.FormatInt(expiresAt, 10),
			"used", "0",
		)
		p.ExpireAt(ctx, key, time.Unix(expiresAt, 0).Add(redisResetGrace))
		return nil
	})
	return err
}

func (s *RedisResetStore) ConsumeResetToken(ctx context.Context, hash string, now int64) (uint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	res, err := consumeScript.Run(ctx, s.Client, []string{s.key(hash)}, now).Slice()
	if err != nil {
		return 0, err
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("unexpected script reply %v", res)
	}
	status, _ := res[0].(int64)
	switch status {
	case 1:
		raw, _ := res[1].(string)
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt reset token owner %q: %w", raw, err)
		}
		return uint(id), nil
	case 2:
		return 0, ErrResetUsed
	case 3:
		return 0, ErrResetExpired
	default:
		return 0, ErrResetNotFound
	}
}

// PurgeResetTokens is a no-op: key TTLs expire tokens.
func (s *RedisResetStore) PurgeResetTokens(context.Context, int64) (int64, error) {
	return 0, nil
}
