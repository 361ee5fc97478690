package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/config"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake
type SnowflakeConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig) (*SnowflakeConnector, error) {
	logger := zap.L().Named("snowflake-connector")

	// Create DSN using Snowflake's DSN builder
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	var session string
	if cfg.QueryTimeout > 0 {
		session = fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d", int(cfg.QueryTimeout.Seconds()))
	}

	db, err := openDB(ctx, "snowflake", dsn, cfg.Pool, session, 10*time.Second, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	connector := &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	logPoolStats(logger, cfg.Database, db)
	return connector, nil
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sql.DB {
	return c.db.DB
}

// DBx returns the connection with Snowflake's "?" bind style
func (c *SnowflakeConnector) DBx() *sqlx.DB {
	return c.db
}

// Validate verifies the Snowflake connection and access rights
func (c *SnowflakeConnector) Validate() error {
	// Check basic connectivity and permissions
	var role, database, warehouse string
	err := c.db.QueryRow("SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	// Verify we're connected to the correct database
	if database != c.cfg.Database {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, c.cfg.Database)
	}

	// Verify schemas exist
	missingSchemas, err := c.verifySchemas()
	if err != nil {
		return fmt.Errorf("failed to verify schemas: %w", err)
	}

	if len(missingSchemas) > 0 {
		c.logger.Warn("Some required schemas not found",
			zap.Strings("missing_schemas", missingSchemas))
	}

	return nil
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	logPoolStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// verifySchemas reports configured schemas missing from the database
func (c *SnowflakeConnector) verifySchemas() ([]string, error) {
	rows, err := c.db.Queryx("SHOW SCHEMAS IN DATABASE " + c.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to query schemas: %w", err)
	}
	defer rows.Close()

	schemas := make(map[string]bool)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		schemas[strings.ToUpper(asString(row["name"]))] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schemas: %w", err)
	}

	var missingSchemas []string
	for _, schema := range c.cfg.Schemas {
		upperSchema := strings.ToUpper(schema)
		if !schemas[upperSchema] {
			missingSchemas = append(missingSchemas, upperSchema)
		}
	}

	return missingSchemas, nil
}

// asString unwraps driver values returned by MapScan
func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ListTables retrieves all tables in a schema
func (c *SnowflakeConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := c.db.QueryxContext(ctx, "SHOW TABLES IN SCHEMA "+schema)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tables from schema %s: %w", schema, err)
	}
	defer rows.Close()

	// SHOW TABLES output varies by Snowflake version; only "name" is needed
	var tables []string
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		if name := asString(row["name"]); name != "" {
			tables = append(tables, name)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}
