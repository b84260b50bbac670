package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Global error declarations.
var (
	ErrNoCandles           = errors.New("no candles found in datasource")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNoPosition          = errors.New("no position for symbol")
)

// querier is the subset of pgxpool.Pool the stores need; tests can substitute
// their own implementation.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Database holds the connection pool behind the transaction, position and
// candle stores.
type Database struct {
	db   querier
	pool *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &Database{db: pool, pool: pool}, nil
}

func (d *Database) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// Migrate applies all pending migrations from sourcePath (a directory of
// golang-migrate .sql files).
func Migrate(dbURL, sourcePath string) error {
	m, err := migrate.New("file://"+sourcePath, pgx5URL(dbURL))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// pgx5URL rewrites a postgres URL to the scheme the migrate pgx/v5 driver
// registers under.
func pgx5URL(dbURL string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dbURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(dbURL, scheme)
		}
	}
	return dbURL
}
