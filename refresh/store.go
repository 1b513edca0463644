package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when no record exists for a presented token.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrTokenExpired is returned when the record exists but its lifetime has
// elapsed.
var ErrTokenExpired = errors.New("refresh token expired")

// ErrTokenRevoked is returned when a revoked token is presented. During
// rotation this is the reuse-detection signal: the losing side of a
// double-rotate race and any later replay of the old token land here.
var ErrTokenRevoked = errors.New("refresh token revoked")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("refresh redis unavailable")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRevoked  int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateScript revokes the presented record and issues the replacement in
// one atomic step. Racing rotations of the same token serialize in Redis:
// the first marks the record revoked, every later one observes the mark and
// reports reuse.
const rotateScript = `
local now = tonumber(ARGV[1])

if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end

local revoked = redis.call("HGET", KEYS[1], "revoked")
if revoked == "1" then
  return {2}
end

local exp = tonumber(redis.call("HGET", KEYS[1], "exp"))
if not exp or exp <= now then
  return {1}
end

local account = redis.call("HGET", KEYS[1], "account")

redis.call("HSET", KEYS[1], "revoked", "1")
redis.call("HSET", KEYS[2],
  "id", ARGV[2],
  "account", account,
  "device", ARGV[3],
  "created", ARGV[1],
  "exp", ARGV[4],
  "revoked", "0")
redis.call("PEXPIRE", KEYS[2], ARGV[5])
redis.call("SADD", ARGV[6] .. account, ARGV[7])
redis.call("PEXPIRE", ARGV[6] .. account, ARGV[5])

return {3, account}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// Record is the stored metadata of one refresh token. The token itself is
// never stored; records are addressed by the hash of the secret.
type Record struct {
	ID        string
	AccountID string
	Device    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store persists refresh-token records in Redis and implements the
// rotation protocol. Safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a refresh token [Store] backed by the given Redis
// client. prefix namespaces all keys; ttl is the refresh-token lifetime.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) recordKey(lookup string) string {
	return s.prefix + ":t:" + lookup
}

func (s *Store) accountPrefix() string {
	return s.prefix + ":a:"
}

func (s *Store) accountKey(accountID string) string {
	return s.accountPrefix() + accountID
}

// Issue mints a fresh opaque token for the account, stores its record, and
// returns the plaintext. The plaintext exists only in the return value.
func (s *Store) Issue(ctx context.Context, accountID, device string) (string, error) {
	secret, err := newSecret()
	if err != nil {
		return "", err
	}

	lookup := lookupKey(secret)
	now := time.Now()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.recordKey(lookup)
		pipe.HSet(ctx, key,
			"id", uuid.NewString(),
			"account", accountID,
			"device", device,
			"created", now.Unix(),
			"exp", now.Add(s.ttl).Unix(),
			"revoked", "0",
		)
		pipe.PExpire(ctx, key, s.ttl)
		pipe.SAdd(ctx, s.accountKey(accountID), lookup)
		pipe.PExpire(ctx, s.accountKey(accountID), s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return encodeToken(secret), nil
}

// Validate resolves a presented token to its live record. Unknown, expired,
// and revoked tokens fail with their respective sentinel errors.
func (s *Store) Validate(ctx context.Context, token string) (*Record, error) {
	secret, err := decodeToken(token)
	if err != nil {
		return nil, ErrTokenNotFound
	}

	fields, err := s.redis.HGetAll(ctx, s.recordKey(lookupKey(secret))).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrTokenNotFound
	}

	record, err := recordFromFields(fields)
	if err != nil {
		return nil, err
	}

	if fields["revoked"] == "1" {
		return nil, ErrTokenRevoked
	}
	if !record.ExpiresAt.After(time.Now()) {
		return nil, ErrTokenExpired
	}

	return record, nil
}

// Rotate atomically revokes the presented token and issues its successor.
// Exactly one of two racing Rotate calls for the same token succeeds; the
// other fails with ErrTokenRevoked. Returns the new plaintext token and the
// owning account ID.
func (s *Store) Rotate(ctx context.Context, token, device string) (string, string, error) {
	secret, err := decodeToken(token)
	if err != nil {
		return "", "", ErrTokenNotFound
	}

	nextSecret, err := newSecret()
	if err != nil {
		return "", "", err
	}
	nextLookup := lookupKey(nextSecret)
	now := time.Now()

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(lookupKey(secret)), s.recordKey(nextLookup)},
		now.Unix(),
		uuid.NewString(),
		device,
		now.Add(s.ttl).Unix(),
		s.ttl.Milliseconds(),
		s.accountPrefix(),
		nextLookup,
	).Result()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", "", fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", "", fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return "", "", ErrTokenNotFound
	case rotateStatusExpired:
		return "", "", ErrTokenExpired
	case rotateStatusRevoked:
		return "", "", ErrTokenRevoked
	case rotateStatusRotated:
		if len(parts) < 2 {
			return "", "", fmt.Errorf("%w: missing rotate account payload", ErrRedisUnavailable)
		}
		accountID, ok := parts[1].(string)
		if !ok {
			return "", "", fmt.Errorf("%w: invalid rotate account payload", ErrRedisUnavailable)
		}
		return encodeToken(nextSecret), accountID, nil
	default:
		return "", "", fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}

// Revoke marks the presented token revoked. Reports whether a live token
// was actually revoked; revoking an unknown or already-revoked token is a
// no-op, not an error.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	secret, err := decodeToken(token)
	if err != nil {
		return false, nil
	}

	revoked, err := revokeLua.Run(ctx, s.redis, []string{s.recordKey(lookupKey(secret))}).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return revoked == 1, nil
}

// RevokeAll revokes every live token belonging to the account and returns
// how many were revoked.
//
// ATOMICITY NOTE: the member scan and the revocation writes are separate
// steps. A token issued between the two phases survives this call; it will
// be caught by the next RevokeAll or expire naturally.
func (s *Store) RevokeAll(ctx context.Context, accountID string) (int, error) {
	accountKey := s.accountKey(accountID)

	lookups, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(lookups) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	stateCmds := make([]*redis.SliceCmd, len(lookups))
	for i, lookup := range lookups {
		stateCmds[i] = pipe.HMGet(ctx, s.recordKey(lookup), "revoked", "exp")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now().Unix()
	live := make([]string, 0, len(lookups))
	for i, cmd := range stateCmds {
		vals, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
			continue
		}
		revoked, _ := vals[0].(string)
		expStr, _ := vals[1].(string)
		exp, parseErr := strconv.ParseInt(expStr, 10, 64)
		if parseErr != nil {
			continue
		}
		if revoked == "0" && exp > now {
			live = append(live, lookups[i])
		}
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, lookup := range live {
			pipe.HSet(ctx, s.recordKey(lookup), "revoked", "1")
		}
		pipe.Del(ctx, accountKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return len(live), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func recordFromFields(fields map[string]string) (*Record, error) {
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt created field", ErrRedisUnavailable)
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt exp field", ErrRedisUnavailable)
	}

	return &Record{
		ID:        fields["id"],
		AccountID: fields["account"],
		Device:    fields["device"],
		CreatedAt: time.Unix(created, 0),
		ExpiresAt: time.Unix(exp, 0),
	}, nil
}
