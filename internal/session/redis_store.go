package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// RedisStore keeps each session as a hash under session:<id> whose TTL is
// the idle timeout, plus a per-account set of live ids. Timestamps are
// stored as unix milliseconds so Lua can compare them exactly.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore whose keys expire after ttl of inactivity.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

var touchScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	local cur = tonumber(redis.call('HGET', KEYS[1], 'last_activity') or '0')
	local at = tonumber(ARGV[1])
	if at > cur then
		redis.call('HSET', KEYS[1], 'last_activity', ARGV[1])
	end
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 1
`)

// setCSRFScript writes the token fields only while the hash exists, so a
// rotated or destroyed id is never recreated.
var setCSRFScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	redis.call('HSET', KEYS[1], 'csrf_token', ARGV[1], 'csrf_issued_at', ARGV[2])
	return 1
`)

// renameScript moves the hash and re-indexes the account set in one step,
// so a request still holding the old id can never observe it again.
var renameScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	redis.call('RENAME', KEYS[1], KEYS[2])
	redis.call('HSET', KEYS[2], 'id', ARGV[1], 'rotated_at', ARGV[2])
	redis.call('PEXPIRE', KEYS[2], ARGV[3])
	local acct = redis.call('HGET', KEYS[2], 'account_id')
	if acct and acct ~= '0' then
		local set = 'account:' .. acct .. ':sessions'
		redis.call('SREM', set, ARGV[4])
		redis.call('SADD', set, ARGV[1])
		redis.call('PEXPIRE', set, ARGV[3])
	end
	return 1
`)

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	key := config.CacheKey.SessionKey(rec.ID)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encode(rec))
		pipe.PExpire(ctx, key, s.ttl)
		if rec.AccountID != 0 {
			setKey := config.CacheKey.AccountSessionsKey(rec.AccountID)
			pipe.SAdd(ctx, setKey, rec.ID)
			pipe.PExpire(ctx, setKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decode(fields)
}

func (s *RedisStore) Touch(ctx context.Context, id string, at time.Time) error {
	n, err := touchScript.Run(ctx, s.rdb,
		[]string{config.CacheKey.SessionKey(id)},
		at.UnixMilli(), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) SetCSRF(ctx context.Context, id, token string, issuedAt time.Time) error {
	n, err := setCSRFScript.Run(ctx, s.rdb,
		[]string{config.CacheKey.SessionKey(id)},
		token, millis(issuedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("set session csrf token: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	key := config.CacheKey.SessionKey(id)

	acct, err := s.rdb.HGet(ctx, key, "account_id").Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if acct != 0 {
			pipe.SRem(ctx, config.CacheKey.AccountSessionsKey(acct), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Rename(ctx context.Context, oldID, newID string, at time.Time) error {
	n, err := renameScript.Run(ctx, s.rdb,
		[]string{config.CacheKey.SessionKey(oldID), config.CacheKey.SessionKey(newID)},
		newID, at.UnixMilli(), s.ttl.Milliseconds(), oldID,
	).Int()
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) DeleteByAccount(ctx context.Context, accountID int64) (int, error) {
	setKey := config.CacheKey.AccountSessionsKey(accountID)

	ids, err := s.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list account sessions: %w", err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, config.CacheKey.SessionKey(id))
	}

	var deleted *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, setKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete account sessions: %w", err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

func encode(rec *Record) map[string]any {
	return map[string]any{
		"id":             rec.ID,
		"account_id":     rec.AccountID,
		"username":       rec.Username,
		"nombre":         rec.Nombre,
		"apellido":       rec.Apellido,
		"email":          rec.Email,
		"rol":            string(rec.Role),
		"created_at":     millis(rec.CreatedAt),
		"last_activity":  millis(rec.LastActivity),
		"rotated_at":     millis(rec.RotatedAt),
		"csrf_token":     rec.CSRFToken,
		"csrf_issued_at": millis(rec.CSRFIssuedAt),
	}
}

func decode(f map[string]string) (*Record, error) {
	rec := &Record{
		ID:        f["id"],
		Username:  f["username"],
		Nombre:    f["nombre"],
		Apellido:  f["apellido"],
		Email:     f["email"],
		Role:      model.Role(f["rol"]),
		CSRFToken: f["csrf_token"],
	}

	var err error
	if rec.AccountID, err = strconv.ParseInt(f["account_id"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode session account_id: %w", err)
	}
	for name, dst := range map[string]*time.Time{
		"created_at":     &rec.CreatedAt,
		"last_activity":  &rec.LastActivity,
		"rotated_at":     &rec.RotatedAt,
		"csrf_issued_at": &rec.CSRFIssuedAt,
	} {
		if *dst, err = fromMillis(f[name]); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", name, err)
		}
	}
	return rec, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(s string) (time.Time, error) {
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
