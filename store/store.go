package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/studio-blockchain/studio-indexer/config"
	"github.com/studio-blockchain/studio-indexer/logging"
)

// Sentinel errors for store contract violations.
var (
	// ErrParentHashMismatch indicates the parent hash of a block being inserted does not match the stored hash of
	// the previous height. Callers react by triggering a reorg.
	ErrParentHashMismatch = errors.New("parent hash does not match stored previous block hash")

	// ErrAlreadyVerified indicates a second attempt to write verification data for a contract.
	ErrAlreadyVerified = errors.New("contract is already verified")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// Pagination bounds applied to every paginated read.
const (
	minPageLimit = 1
	maxPageLimit = 200
)

// Store is the PostgreSQL persistence layer. All block-scoped writes happen inside a single database transaction via
// IngestBlock; the remaining writers (classifier, metadata resolver, verification engine) use idempotent upserts.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// connectionString builds a PostgreSQL DSN from connection parameters.
func connectionString(cfg config.DatabaseConfig) string {
	if len(cfg.User) > 0 && len(cfg.Password) > 0 {
		return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	}
	if len(cfg.User) > 0 {
		return fmt.Sprintf("postgresql://%s@%s:%d/%s?sslmode=disable",
			cfg.User, cfg.Host, cfg.Port, cfg.Database)
	}
	return fmt.Sprintf("postgresql://%s:%d/%s?sslmode=disable", cfg.Host, cfg.Port, cfg.Database)
}

// Open connects to PostgreSQL, verifies connectivity, and applies the schema. Returns the ready Store.
func Open(cfg config.DatabaseConfig, logger *logging.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", connectionString(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to database")
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		logger: logger.NewSubLogger("module", "store"),
	}
	if err := s.applySchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// applySchema applies the idempotent DDL.
func (s *Store) applySchema() error {
	_, err := s.db.Exec(schema)
	return errors.Wrap(err, "could not apply database schema")
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// clampPage normalizes limit into [1, 200] and offset into [0, inf). Out-of-range values clamp rather than error.
func clampPage(limit int, offset int) (int, int) {
	if limit < minPageLimit {
		limit = minPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
