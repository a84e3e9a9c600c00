// Package redis provides a Redis implementation of synckit.Persister.
package redis

import (
	"context"
	stderrors "errors"
	"log/slog"
	stdSync "sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"
)

const (
	opOpen  = "redis.Open"
	opLoad  = "redis.Load"
	opSave  = "redis.Save"
	opClose = "redis.Close"

	component = "storage/redis"
)

// Config holds configuration options for the Redis persister.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to every key. Defaults to "inventory-sync:".
	KeyPrefix string

	// TTL expires snapshots that are not rewritten. Zero keeps them forever.
	TTL time.Duration

	DialTimeout time.Duration // Default: 5s

	Logger *logging.Logger
}

func (c *Config) setDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "inventory-sync:"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
}

// Store persists store snapshots as Redis strings.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger *logging.Logger

	mu     stdSync.RWMutex
	closed bool
}

var _ synckit.Persister = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, config *Config) (*Store, error) {
	if config == nil || config.Addr == "" {
		return nil, errors.E(errors.Op(opOpen), errors.Component(component), errors.KindInvalid, "Addr is required")
	}
	config.setDefaults()

	client := goredis.NewClient(&goredis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.E(errors.Op(opOpen), errors.Component(component), errors.KindTransient, errors.ErrCodeStorageFailure, err)
	}
	return NewWithClient(client, config), nil
}

// NewWithClient wraps an existing client. The client is owned by the Store
// afterwards.
func NewWithClient(client *goredis.Client, config *Config) *Store {
	if config == nil {
		config = &Config{}
	}
	config.setDefaults()
	s := &Store{
		client: client,
		prefix: config.KeyPrefix,
		ttl:    config.TTL,
		logger: config.Logger.WithComponent(component),
	}
	s.logger.Info("redis persister ready", slog.String("prefix", s.prefix))
	return s
}

// Load returns the value stored under key, or errors.ErrNotFound.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(opLoad); err != nil {
		return nil, err
	}
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.E(errors.Op(opLoad), errors.Component(component), errors.KindTransient, errors.ErrCodeStorageFailure, err)
	}
	return value, nil
}

// Save writes value under key.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	if err := s.checkOpen(opSave); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return errors.E(errors.Op(opSave), errors.Component(component), errors.KindTransient, errors.ErrCodeStorageFailure, err)
	}
	return nil
}

// Close closes the client. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.WrapOpComponent(s.client.Close(), opClose, component)
}

func (s *Store) checkOpen(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.E(errors.Op(op), errors.Component(component), errors.KindClosed, "store is closed")
	}
	return nil
}
