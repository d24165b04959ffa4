package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/semaphore"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
)

// DB wraps the connection pool with a semaphore so a wide per-outlet fan-out
// cannot flood postgres with concurrent queries.
type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// NewDB creates the shared database connection pool.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

		var db *sqlx.DB
		db, err = sqlx.Connect("postgres", connStr)
		if err != nil {
			return
		}
		dbInstance = wrap(db)
	})

	return dbInstance, err
}

// Open connects with an explicit driver and URL. Used by the CLI, which takes
// a single DATABASE_URL and the pgx driver.
func Open(driver, url string) (*DB, error) {
	db, err := sqlx.Connect(driver, url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return wrap(db), nil
}

func wrap(db *sqlx.DB) *DB {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(10),
	}
}

// Gate runs fn while holding a slot of the concurrency semaphore.
func (db *DB) Gate(ctx context.Context, fn func() error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	return fn()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}
