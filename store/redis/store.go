// Package redisstore provides a Redis-backed task store for vidtask.
package redisstore

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config describes the Redis connection.
type Config struct {
	Addr     string `yaml:"addr" json:"addr" mapstructure:"addr"`
	Password string `yaml:"password" json:"password" mapstructure:"password"`
	DB       int    `yaml:"db" json:"db" mapstructure:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size" mapstructure:"pool_size"`

	// TTL expires task records; zero keeps them forever.
	TTL time.Duration `yaml:"ttl" json:"ttl" mapstructure:"ttl"`
}

// DefaultConfig returns a local-Redis configuration with no expiry.
func DefaultConfig() Config {
	return Config{
		Addr:     "localhost:6379",
		PoolSize: 10,
	}
}

// Store implements vidtask.Store on a Redis instance, giving task records a
// durable home across restarts.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New connects to Redis and verifies the connection with a ping. A nil
// logger disables logging.
func New(config Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}

	logger.Info("redis store connected", zap.String("addr", config.Addr), zap.Int("db", config.DB))
	return &Store{
		client: client,
		ttl:    config.TTL,
		logger: logger.With(zap.String("component", "redis_store")),
	}, nil
}

// Get returns the value under key, or (nil, nil) when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("redis store is closed")
	}

	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return value, nil
}

// Put stores value under key, applying the configured TTL.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("redis store is closed")
	}

	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Close shuts the connection pool down. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
