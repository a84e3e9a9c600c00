// Package sqlite provides a SQLite implementation of synckit.Persister.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	stdSync "sync"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opOpen  = "sqlite.Open"
	opLoad  = "sqlite.Load"
	opSave  = "sqlite.Save"
	opClose = "sqlite.Close"
)

const component = "storage/sqlite"

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = stderrors.New("store is closed")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds configuration options for the SQLite persister.
type Config struct {
	// DataSourceName is the connection string for the SQLite database,
	// e.g. "file:inventory.db".
	DataSourceName string

	// EnableWAL appends "_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// TableName is the key-value table. Defaults to "sync_state".
	TableName string

	// Logger defaults to the package default logger.
	Logger *logging.Logger

	MaxOpenConns    int           // Default: 1, SQLite serializes writers anyway
	ConnMaxLifetime time.Duration // Default: 1h
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "sync_state"
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 1
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.EnableWAL && !strings.Contains(c.DataSourceName, "_journal_mode=") {
		sep := "?"
		if strings.Contains(c.DataSourceName, "?") {
			sep = "&"
		}
		c.DataSourceName += sep + "_journal_mode=WAL"
	}
}

// DefaultConfig returns a Config with WAL enabled.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// Store persists store snapshots in a SQLite key-value table.
type Store struct {
	db        *sql.DB
	mu        stdSync.RWMutex
	closed    bool
	logger    *logging.Logger
	tableName string
}

var _ synckit.Persister = (*Store)(nil)

// New opens the database and creates the table if needed.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.E(errors.Op(opOpen), errors.Component(component), errors.KindInvalid, "config cannot be nil")
	}
	config.setDefaults()
	if config.DataSourceName == "" {
		return nil, errors.E(errors.Op(opOpen), errors.Component(component), errors.KindInvalid, "DataSourceName is required")
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, errors.E(errors.Op(opOpen), errors.Component(component), errors.KindInvalid,
			fmt.Sprintf("invalid table name %q", config.TableName))
	}

	logger := config.Logger.WithComponent(component)
	logger.Info("opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL))

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, errors.WrapOpComponent(err, opOpen, component)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	s := &Store{db: db, logger: logger, tableName: config.TableName}
	if err := s.createTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.WrapOpComponent(fmt.Errorf("failed to create table: %w", err), opOpen, component)
	}
	return nil
}

// Load returns the value stored under key, or errors.ErrNotFound.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.E(errors.Op(opLoad), errors.Component(component), errors.KindClosed, ErrStoreClosed)
	}

	var value []byte
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, s.tableName)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.NewStorageError(errors.Op(opLoad), component, err)
	}
	return value, nil
}

// Save upserts value under key.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.E(errors.Op(opSave), errors.Component(component), errors.KindClosed, ErrStoreClosed)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return errors.NewStorageError(errors.Op(opSave), component, err)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return errors.WrapOpComponent(err, opClose, component)
	}
	return nil
}
