package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps every Redis failure other than a missing key.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrSessionNotFound is returned when a session targeted by a mutation no longer exists.
var ErrSessionNotFound = errors.New("session not found")

// ErrRecordCorrupt is returned when a stored blob cannot be decoded.
var ErrRecordCorrupt = errors.New("session record corrupt")

// ErrRecordExpired is returned when registering a record whose expiry has passed.
var ErrRecordExpired = errors.New("session record already expired")

// ErrInvalidKeyPart is returned for subjects, token ids or device ids that
// cannot be embedded in a key.
var ErrInvalidKeyPart = errors.New("invalid session key part")

const scanBatch = 128

const registerScript = `
local ttl = tonumber(ARGV[2])
local live_prefix = ARGV[6]

redis.call("SET", KEYS[1], ARGV[1], "PX", ttl)
redis.call("ZADD", KEYS[2], ARGV[4], ARGV[3])

local members = redis.call("ZRANGE", KEYS[2], 0, -1)
for _, m in ipairs(members) do
  if redis.call("EXISTS", live_prefix .. m) == 0 then
    redis.call("ZREM", KEYS[2], m)
  end
end

local evicted = {}
local max = tonumber(ARGV[5])
if max > 0 then
  while redis.call("ZCARD", KEYS[2]) > max do
    local oldest = redis.call("ZRANGE", KEYS[2], 0, 0)[1]
    if not oldest or oldest == ARGV[3] then
      break
    end
    redis.call("DEL", live_prefix .. oldest)
    redis.call("ZREM", KEYS[2], oldest)
    table.insert(evicted, oldest)
  end
end

if redis.call("PTTL", KEYS[2]) < ttl then
  redis.call("PEXPIRE", KEYS[2], ttl)
end

return evicted
`

var registerLua = redis.NewScript(registerScript)

const rotateScript = `
redis.call("ZREM", KEYS[3], ARGV[3])
if redis.call("DEL", KEYS[1]) == 0 then
  return 0
end

local ttl = tonumber(ARGV[2])
redis.call("SET", KEYS[2], ARGV[1], "PX", ttl)
redis.call("ZADD", KEYS[3], ARGV[5], ARGV[4])
if redis.call("PTTL", KEYS[3]) < ttl then
  redis.call("PEXPIRE", KEYS[3], ttl)
end
return 1
`

var rotateLua = redis.NewScript(rotateScript)

const banScript = `
redis.call("ZREM", KEYS[3], ARGV[1])
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end

redis.call("RENAME", KEYS[1], KEYS[2])
local n = redis.call("STRLEN", KEYS[2])
redis.call("SETRANGE", KEYS[2], n - 1, string.char(#ARGV[2]) .. ARGV[2])
return 1
`

var banLua = redis.NewScript(banScript)

// Store is the Redis-backed session registry. It holds no in-process state
// besides configuration and is safe for concurrent use.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	maxPerSubject int
	now           func() time.Time
}

// NewStore creates a [Store]. maxPerSubject caps live sessions per subject;
// zero disables the cap.
func NewStore(client redis.UniversalClient, prefix string, maxPerSubject int) *Store {
	if maxPerSubject < 0 {
		maxPerSubject = 0
	}
	return &Store{
		redis:         client,
		prefix:        prefix,
		maxPerSubject: maxPerSubject,
		now:           time.Now,
	}
}

func (s *Store) liveKey(subject, tokenID, deviceID string) string {
	return s.prefix + "tokens:" + subject + ":" + tokenID + ":" + deviceID
}

func (s *Store) bannedKey(subject, tokenID, deviceID string) string {
	return s.prefix + "banned:" + subject + ":" + tokenID + ":" + deviceID
}

func (s *Store) indexKey(subject string) string {
	return s.prefix + "sessions:" + subject
}

func (s *Store) livePrefix(subject string) string {
	return s.prefix + "tokens:" + subject + ":"
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
}

// Register stores rec as a live session, overwriting any record under the
// same key, and enforces the per-subject cap. It returns the token ids of
// sessions evicted to make room, oldest first.
//
//	Performance: 1 Lua script, O(n) in the subject's session count.
func (s *Store) Register(ctx context.Context, rec *Record) ([]string, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	ttl := rec.TTL(s.now())
	if ttl < time.Millisecond {
		return nil, ErrRecordExpired
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.now().UnixMicro()
	}
	rec.BanReason = ""

	data, err := Encode(rec)
	if err != nil {
		return nil, corrupt(err)
	}

	members, err := registerLua.Run(ctx, s.redis,
		[]string{s.liveKey(rec.Subject, rec.TokenID, rec.DeviceID), s.indexKey(rec.Subject)},
		data,
		ttl.Milliseconds(),
		rec.member(),
		rec.CreatedAt,
		s.maxPerSubject,
		s.livePrefix(rec.Subject),
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	evicted := make([]string, 0, len(members))
	for _, m := range members {
		if tokenID, _, ok := splitMember(m); ok {
			evicted = append(evicted, tokenID)
		}
	}
	return evicted, nil
}

// Rotate atomically replaces the live session (subject, oldTokenID,
// oldDeviceID) with next. Exactly one of several concurrent rotations of the
// same session succeeds; the others get [ErrSessionNotFound].
func (s *Store) Rotate(ctx context.Context, oldTokenID, oldDeviceID string, next *Record) error {
	if err := validateRecord(next); err != nil {
		return err
	}
	if err := validatePart(oldTokenID); err != nil {
		return err
	}

	ttl := next.TTL(s.now())
	if ttl < time.Millisecond {
		return ErrRecordExpired
	}
	if next.CreatedAt == 0 {
		next.CreatedAt = s.now().UnixMicro()
	}
	next.BanReason = ""

	data, err := Encode(next)
	if err != nil {
		return corrupt(err)
	}

	res, err := rotateLua.Run(ctx, s.redis,
		[]string{
			s.liveKey(next.Subject, oldTokenID, oldDeviceID),
			s.liveKey(next.Subject, next.TokenID, next.DeviceID),
			s.indexKey(next.Subject),
		},
		data,
		ttl.Milliseconds(),
		oldTokenID+":"+oldDeviceID,
		next.member(),
		next.CreatedAt,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// IsActive reports whether a live session exists under the exact key.
func (s *Store) IsActive(ctx context.Context, subject, tokenID, deviceID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.liveKey(subject, tokenID, deviceID)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// GetActiveOne returns one live session matching the filter, or (nil, nil)
// when none exists. With no wildcards it is a single GET.
func (s *Store) GetActiveOne(ctx context.Context, subject, tokenID, deviceID string) (*Record, error) {
	if !isWildcard(subject) && !isWildcard(tokenID) && !isWildcard(deviceID) {
		data, err := s.redis.Get(ctx, s.liveKey(subject, tokenID, deviceID)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, nil
			}
			return nil, unavailable(err)
		}
		rec, err := Decode(data)
		if err != nil {
			return nil, corrupt(err)
		}
		return rec, nil
	}

	recs, err := s.GetActiveAll(ctx, subject, tokenID, deviceID)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// GetActiveAll lists live sessions. Each of subject, tokenID and deviceID may
// be "" or "*" to match anything.
//
//	Performance: SCAN over the live namespace plus one pipelined GET batch.
func (s *Store) GetActiveAll(ctx context.Context, subject, tokenID, deviceID string) ([]*Record, error) {
	return s.list(ctx, "tokens:", subject, tokenID, deviceID)
}

// GetBanned lists banned sessions with the same wildcard rules as
// [Store.GetActiveAll].
func (s *Store) GetBanned(ctx context.Context, subject, tokenID, deviceID string) ([]*Record, error) {
	return s.list(ctx, "banned:", subject, tokenID, deviceID)
}

func (s *Store) list(ctx context.Context, namespace, subject, tokenID, deviceID string) ([]*Record, error) {
	pattern := globEscape(s.prefix) + namespace +
		globPart(subject) + ":" + globPart(tokenID) + ":" + globPart(deviceID)

	keys, err := s.scan(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringCmd, len(keys))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.Get(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	out := make([]*Record, 0, len(keys))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, unavailable(err)
		}
		rec, err := Decode(data)
		if err != nil {
			return nil, corrupt(err)
		}
		// '*' also spans ':' so the glob can over-match device ids.
		if !matches(subject, rec.Subject) || !matches(tokenID, rec.TokenID) || !matches(deviceID, rec.DeviceID) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes every live session of subject on deviceID and returns the
// number removed.
func (s *Store) Delete(ctx context.Context, subject, deviceID string) (int, error) {
	if err := validatePart(subject); err != nil {
		return 0, err
	}

	keys, err := s.scan(ctx, globEscape(s.livePrefix(subject))+"*:"+globEscape(deviceID))
	if err != nil {
		return 0, err
	}

	livePrefix := s.livePrefix(subject)
	members := make([]string, 0, len(keys))
	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		member := strings.TrimPrefix(key, livePrefix)
		if _, device, ok := splitMember(member); ok && device == deviceID {
			members = append(members, member)
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	return s.deleteKeys(ctx, subject, matched, members)
}

// Revoke deletes exactly one live session.
func (s *Store) Revoke(ctx context.Context, subject, tokenID, deviceID string) (bool, error) {
	n, err := s.deleteKeys(ctx, subject,
		[]string{s.liveKey(subject, tokenID, deviceID)},
		[]string{tokenID + ":" + deviceID},
	)
	return n > 0, err
}

// DeleteAll removes every live session of subject along with its index.
func (s *Store) DeleteAll(ctx context.Context, subject string) (int, error) {
	if err := validatePart(subject); err != nil {
		return 0, err
	}

	keys, err := s.scan(ctx, globEscape(s.livePrefix(subject))+"*")
	if err != nil {
		return 0, err
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, s.indexKey(subject))
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

func (s *Store) deleteKeys(ctx context.Context, subject string, keys, members []string) (int, error) {
	var deleted *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		args := make([]interface{}, len(members))
		for i, m := range members {
			args[i] = m
		}
		pipe.ZRem(ctx, s.indexKey(subject), args...)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return int(deleted.Val()), nil
}

// Ban moves live sessions of subject into the banned namespace, keeping their
// remaining TTL and recording reason. tokenID may be "" or "*" to ban all of
// the subject's sessions. It returns the number of sessions banned.
func (s *Store) Ban(ctx context.Context, subject, tokenID, reason string) (int, error) {
	if err := validatePart(subject); err != nil {
		return 0, err
	}
	if reason == "" {
		reason = "banned"
	}
	if len(reason) > maxBanReason {
		reason = reason[:maxBanReason]
	}

	keys, err := s.scan(ctx, globEscape(s.livePrefix(subject))+globPart(tokenID)+":*")
	if err != nil {
		return 0, err
	}

	livePrefix := s.livePrefix(subject)
	banned := 0
	for _, key := range keys {
		member := strings.TrimPrefix(key, livePrefix)
		tok, device, ok := splitMember(member)
		if !ok || !matches(tokenID, tok) {
			continue
		}
		n, err := banLua.Run(ctx, s.redis,
			[]string{key, s.bannedKey(subject, tok, device), s.indexKey(subject)},
			member,
			reason,
		).Int64()
		if err != nil {
			return banned, unavailable(err)
		}
		banned += int(n)
	}
	return banned, nil
}

// Count returns the number of indexed sessions for subject. The index is
// pruned lazily, so the count may include sessions that expired since the
// last registration.
func (s *Store) Count(ctx context.Context, subject string) (int64, error) {
	n, err := s.redis.ZCard(ctx, s.indexKey(subject)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable(err)
	}
	return keys, nil
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidKeyPart)
	}
	if err := validatePart(rec.Subject); err != nil {
		return err
	}
	if err := validatePart(rec.TokenID); err != nil {
		return err
	}
	if rec.DeviceID == "" || len(rec.DeviceID) > maxShortField {
		return fmt.Errorf("%w: device id", ErrInvalidKeyPart)
	}
	return nil
}

func validatePart(v string) error {
	if v == "" || len(v) > maxShortField || strings.ContainsAny(v, ":*?[]\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKeyPart, v)
	}
	return nil
}

func isWildcard(v string) bool {
	return v == "" || v == "*"
}

func matches(filter, v string) bool {
	return isWildcard(filter) || filter == v
}

func globPart(v string) string {
	if isWildcard(v) {
		return "*"
	}
	return globEscape(v)
}

func globEscape(v string) string {
	if !strings.ContainsAny(v, "*?[]\\") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 4)
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	return b.String()
}
