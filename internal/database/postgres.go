// Package database holds the Postgres repositories of the pipeline. Each
// repository wraps the shared connection pool; writes that must be atomic run
// through WithTx.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// Store owns the connection pool. Repositories embed it.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{
		db:     db,
		logger: log.New(log.Writer(), "[DB] ", log.LstdFlags),
	}, nil
}

// NewStoreWithDB wraps an existing pool. Test constructor.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: log.New(log.Writer(), "[DB] ", log.LstdFlags),
	}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for repositories in this package and for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Printf("rollback failed after %v: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
