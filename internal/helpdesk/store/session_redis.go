package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

const sessionKeyPrefix = "helpdesk:session:"

// RedisSessionStore keeps sessions in Redis as JSON with a TTL, so multiple
// replicas share conversation state and expiry is handled server side.
type RedisSessionStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis backed session store.
func NewRedisSessionStore(client *goredis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Get returns the session or errors.ErrSessionNotFound.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return nil, errors.ErrSessionNotFound
		}
		return nil, errors.ErrCache.WithCause(err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupt payload, drop it and treat as missing.
		_ = s.client.Del(ctx, sessionKey(id)).Err()
		return nil, errors.ErrSessionNotFound
	}
	return &session, nil
}

// Put stores the session and refreshes its TTL.
func (s *RedisSessionStore) Put(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		return errors.ErrCache.WithCause(err)
	}
	return nil
}

// Delete removes the session. Deleting an absent session is a no-op.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return errors.ErrCache.WithCause(err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

var _ SessionStore = (*RedisSessionStore)(nil)
