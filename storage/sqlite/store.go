// Package sqlite provides the on-device product store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
	"github.com/c0deZ3R0/productsync/logging"
	"github.com/c0deZ3R0/productsync/synckit"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opOpen            = "sqlite.Open"
	opUpdate          = "sqlite.Update"
	opAll             = "sqlite.All"
	opGetAllPending   = "sqlite.GetAllPending"
	opInsert          = "sqlite.Insert"
	opInsertAll       = "sqlite.InsertAll"
	opDeleteByID      = "sqlite.DeleteByID"
	opClearNonPending = "sqlite.ClearNonPending"
	opPendingAll      = "sqlite.PendingAll"
	opPendingInsert   = "sqlite.PendingInsert"
	opPendingDelete   = "sqlite.PendingDelete"
)

const component = "storage/sqlite"

var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the Store.
//
// DefaultConfig enables WAL and a small connection pool. In-memory databases
// are always pinned to a single connection so every query sees the same data.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:products.db" or ":memory:"
	DataSourceName string

	// EnableWAL appends _journal_mode=WAL to DataSourceName.
	EnableWAL bool

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration

	// Logger is an optional logger. If nil, the package default is used.
	Logger *slog.Logger

	MaxOpenConns    int           // Default: 4
	MaxIdleConns    int           // Default: 2
	ConnMaxLifetime time.Duration // Default: 1h
	ConnMaxIdleTime time.Duration // Default: 5m
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.Component("sqlite-store")).Logger
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 4
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}

	if isMemory(c.DataSourceName) {
		c.EnableWAL = false
		c.MaxOpenConns = 1
		c.MaxIdleConns = 1
		c.ConnMaxLifetime = 0
		c.ConnMaxIdleTime = 0
	}
}

func (c *Config) dsn() string {
	dsn := c.DataSourceName
	params := []string{"_foreign_keys=on", fmt.Sprintf("_busy_timeout=%d", c.BusyTimeout.Milliseconds())}
	if c.EnableWAL && !strings.Contains(dsn, "_journal_mode=") {
		params = append(params, "_journal_mode=WAL")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

// DefaultConfig returns a Config with WAL and pool defaults for dataSourceName.
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

// Store implements synckit.LocalStore on SQLite.
//
// Reads go straight to the pool. Writes hold writeMu for the whole
// transaction, so at most one write is in flight and observers are only
// woken after it commits.
type Store struct {
	db      *sql.DB
	mu      stdSync.RWMutex
	closed  bool
	writeMu stdSync.Mutex
	logger  *slog.Logger
	feed    *feed
}

var _ synckit.LocalStore = (*Store)(nil)

// New opens the database and creates the schema.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := config.Logger
	logger.Info("Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.dsn())
	if err != nil {
		return nil, syncErrors.WrapStorage(fmt.Errorf("failed to open sqlite database: %w", err), opOpen, component)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, syncErrors.WrapStorage(fmt.Errorf("failed to connect to sqlite database: %w", err), opOpen, component)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}
	store.feed = newFeed(store.loadAll, logger)

	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, syncErrors.WrapStorage(fmt.Errorf("failed to setup database schema: %w", err), opOpen, component)
	}

	logger.Info("Product store initialized",
		slog.Int("max_open_conns", config.MaxOpenConns),
	)
	return store, nil
}

func (s *Store) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS products (
        id           INTEGER PRIMARY KEY AUTOINCREMENT,
        image        TEXT,
        price        TEXT NOT NULL,
        name         TEXT NOT NULL,
        type         TEXT NOT NULL,
        tax          TEXT NOT NULL,
        local_thumb  TEXT,
        is_pending   INTEGER NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_products_is_pending ON products (is_pending);

    CREATE TABLE IF NOT EXISTS pending_uploads (
        id               INTEGER PRIMARY KEY AUTOINCREMENT,
        name             TEXT NOT NULL,
        type             TEXT NOT NULL,
        price            TEXT NOT NULL,
        tax              TEXT NOT NULL,
        image_path       TEXT,
        created_at       INTEGER NOT NULL,
        local_product_id INTEGER
    );
    CREATE INDEX IF NOT EXISTS idx_pending_uploads_created_at ON pending_uploads (created_at);
    `
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Update runs fn in one transaction. Observers are notified once after a
// successful commit. Any error from fn rolls everything back.
func (s *Store) Update(ctx context.Context, fn func(tx synckit.StoreTx) error) (err error) {
	if err := s.checkOpen(); err != nil {
		return syncErrors.WrapStorage(err, opUpdate, component)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return syncErrors.WrapStorage(err, opUpdate, component)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(queries{q: tx}); err != nil {
		return syncErrors.WrapStorage(err, opUpdate, component)
	}

	if err = tx.Commit(); err != nil {
		return syncErrors.WrapStorage(err, opUpdate, component)
	}

	s.feed.notify()
	return nil
}

// ObserveAll implements synckit.LocalStore.
func (s *Store) ObserveAll(ctx context.Context) <-chan synckit.ProductsChange {
	if err := s.checkOpen(); err != nil {
		ch := make(chan synckit.ProductsChange)
		close(ch)
		return ch
	}
	return s.feed.subscribe(ctx)
}

// All returns every product, newest first.
func (s *Store) All(ctx context.Context) ([]synckit.ProductRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, syncErrors.WrapStorage(err, opAll, component)
	}
	return queries{q: s.db}.all(ctx)
}

func (s *Store) loadAll(ctx context.Context) ([]synckit.ProductRecord, error) {
	return s.All(ctx)
}

func (s *Store) GetAllPending(ctx context.Context) ([]synckit.ProductRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, syncErrors.WrapStorage(err, opGetAllPending, component)
	}
	return queries{q: s.db}.GetAllPending(ctx)
}

func (s *Store) PendingAll(ctx context.Context) ([]synckit.PendingUpload, error) {
	if err := s.checkOpen(); err != nil {
		return nil, syncErrors.WrapStorage(err, opPendingAll, component)
	}
	return queries{q: s.db}.PendingAll(ctx)
}

func (s *Store) ClearNonPending(ctx context.Context) error {
	return s.Update(ctx, func(tx synckit.StoreTx) error {
		return tx.ClearNonPending(ctx)
	})
}

func (s *Store) InsertAll(ctx context.Context, records []synckit.ProductRecord) error {
	return s.Update(ctx, func(tx synckit.StoreTx) error {
		return tx.InsertAll(ctx, records)
	})
}

func (s *Store) Insert(ctx context.Context, record synckit.ProductRecord) (id int64, err error) {
	err = s.Update(ctx, func(tx synckit.StoreTx) error {
		id, err = tx.Insert(ctx, record)
		return err
	})
	return id, err
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	return s.Update(ctx, func(tx synckit.StoreTx) error {
		return tx.DeleteByID(ctx, id)
	})
}

func (s *Store) PendingInsert(ctx context.Context, upload synckit.PendingUpload) (id int64, err error) {
	err = s.Update(ctx, func(tx synckit.StoreTx) error {
		id, err = tx.PendingInsert(ctx, upload)
		return err
	})
	return id, err
}

func (s *Store) PendingDelete(ctx context.Context, id int64) error {
	return s.Update(ctx, func(tx synckit.StoreTx) error {
		return tx.PendingDelete(ctx, id)
	})
}

// Close stops all observers and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.feed.close()
	return s.db.Close()
}

// Stats returns database statistics for monitoring
func (s *Store) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}

	return s.db.Stats()
}
