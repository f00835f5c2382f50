package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is how long an untouched session survives.
const TTL = 24 * time.Hour

// ErrNoSession is returned when a chat has no live session.
var ErrNoSession = errors.New("no session")

// Store keeps one Wizard per chat.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Wizard, error)
	Put(ctx context.Context, chatID int64, w *Wizard) error
	Delete(ctx context.Context, chatID int64) error
}

// MemoryStore is an in-process Store. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Wizard
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Wizard), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, chatID int64) (*Wizard, error) {
	s.mu.RLock()
	w, ok := s.sessions[chatID]
	s.mu.RUnlock()
	if !ok || s.now().Sub(w.UpdatedAt) > TTL {
		return nil, ErrNoSession
	}
	return &w, nil
}

func (s *MemoryStore) Put(_ context.Context, chatID int64, w *Wizard) error {
	w.UpdatedAt = s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = *w
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}

// RedisStore keeps sessions in Redis as JSON so they survive restarts.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// ConnectRedis parses url and verifies the connection.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

func (s *RedisStore) Get(ctx context.Context, chatID int64) (*Wizard, error) {
	data, err := s.rdb.Get(ctx, sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var w Wizard
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &w, nil
}

func (s *RedisStore) Put(ctx context.Context, chatID int64, w *Wizard) error {
	w.UpdatedAt = time.Now()
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(chatID), data, TTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, chatID int64) error {
	return s.rdb.Del(ctx, sessionKey(chatID)).Err()
}
