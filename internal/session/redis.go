package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jackromo888/sourcify/internal/contract"
)

// RedisStore keeps sessions in redis with a TTL, so session expiry is owned
// by redis rather than this process.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisStore creates a redis-backed session store.
func NewRedisStore(addr, password string, db int, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &RedisStore{client: client, opts: opts}, nil
}

func sessionKey(id string) string {
	return "sourcify:session:" + id
}

// Create makes a new empty session and persists it.
func (r *RedisStore) Create(ctx context.Context) (*Session, error) {
	s := New(uuid.NewString(), r.opts.maxBytes())
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads a session by id and refreshes its TTL.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.Files == nil {
		s.Files = make(map[string]contract.File)
	}
	if s.Candidates == nil {
		s.Candidates = make(map[string]*contract.Candidate)
	}
	s.MaxBytes = r.opts.maxBytes()

	_ = r.client.Expire(ctx, sessionKey(id), r.opts.ttl()).Err()
	return &s, nil
}

// Save persists the session and resets its TTL.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.opts.ttl()).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete destroys a session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
