package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/config"
)

// Queryer is satisfied by *sqlx.DB and *sqlx.Tx, so a repository runs the same
// statements inside or outside WithTx.
type Queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var (
	_ Queryer = (*sqlx.DB)(nil)
	_ Queryer = (*sqlx.Tx)(nil)
)

type DB struct {
	*sqlx.DB
}

// Connect opens the Postgres pool and waits up to DBPingTimeout for the
// server to answer.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	conn, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(config.DBMaxOpenConns)
	conn.SetMaxIdleConns(config.DBMaxIdleConns)
	conn.SetConnMaxLifetime(config.DBConnMaxLifetime)

	db := &DB{conn}
	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Wrap adapts an existing *sql.DB, e.g. one opened by a test driver.
func Wrap(db *sql.DB, driverName string) *DB {
	return &DB{sqlx.NewDb(db, driverName)}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// WithTx commits when fn returns nil. An error or a panic in fn rolls the
// transaction back; the panic keeps unwinding.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("transaction rollback failed")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
