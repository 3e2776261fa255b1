package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goPortal/internal"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the backing Redis cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// ErrIDCollision is returned when a freshly generated id already exists.
var ErrIDCollision = errors.New("session id collision")

// Store is a Redis-backed session store. Each record is written once with a
// fixed TTL and removed on logout or expiry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace and ttl the lifetime of every record.
func NewStore(redis redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime applied to new records.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

// Create assigns a new session id to rec, stamps its timestamps and persists it.
//
// The write is a single SET NX PX, so a record is either fully stored or not
// stored at all.
//
//	Performance: 1 Redis SET.
func (s *Store) Create(ctx context.Context, rec *Record) (string, error) {
	if rec == nil {
		return "", errors.New("nil record")
	}
	if s.ttl <= 0 {
		return "", errors.New("session ttl must be > 0")
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}

	now := s.now()
	stored := *rec
	stored.SessionID = sid.String()
	stored.CreatedAt = now.Unix()
	stored.ExpiresAt = now.Add(s.ttl).Unix()

	data, err := Encode(&stored)
	if err != nil {
		return "", err
	}

	ok, err := s.redis.SetNX(ctx, s.key(stored.SessionID), data, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return "", ErrIDCollision
	}

	*rec = stored
	return stored.SessionID, nil
}

// Get retrieves a session by id. Unknown and expired ids return [ErrNotFound];
// an undecodable blob returns [ErrCorrupt].
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrNotFound
	}

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if rec.ExpiresAt > 0 && rec.ExpiresAt <= s.now().Unix() {
		return nil, ErrNotFound
	}
	rec.SessionID = sessionID
	return rec, nil
}

// Destroy removes a session. Destroying an unknown id is not an error.
//
//	Performance: 1 Redis DEL.
func (s *Store) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
