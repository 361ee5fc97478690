package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/config"
)

// DatabaseConnector defines the interface for database connectors
type DatabaseConnector interface {
	// DB returns the underlying database connection
	DB() *sql.DB

	// DBx returns the connection wrapped with the driver's bind style
	DBx() *sqlx.DB

	// Validate verifies the connection and permissions
	Validate() error

	// ListTables returns the base tables of a schema
	ListTables(ctx context.Context, schema string) ([]string, error)

	// Close closes the connection and releases resources
	Close() error
}

// openDB opens a pool for driver, applies the pool limits, runs the
// optional session statement and pings within timeout
func openDB(ctx context.Context, driver, dsn string, pool config.PoolConfig, session string, timeout time.Duration, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s connection: %w", driver, err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if session != "" {
		if _, err := db.ExecContext(ctx, session); err != nil {
			logger.Warn("Failed to apply session settings", zap.String("statement", session), zap.Error(err))
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed after %v: %w", timeout, err)
	}
	return db, nil
}

// logPoolStats logs the pool usage of db at debug level
func logPoolStats(logger *zap.Logger, name string, db *sqlx.DB) {
	stats := db.Stats()
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConnections),
		zap.Int64("wait_count", stats.WaitCount),
	)
}

// QuoteQualified quotes a possibly dot-qualified identifier part by part
func QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
