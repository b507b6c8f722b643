package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"  // MySQL driver
	_ "github.com/lib/pq"               // PostgreSQL driver
	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	_ "github.com/sijms/go-ora/v2"      // Oracle driver
	_ "modernc.org/sqlite"              // SQLite driver
)

// DefaultProgressRows is how many rows pass between progress callbacks.
const DefaultProgressRows = 8192

// SQLExecutor is the database/sql implementation of Executor. One executor
// serves one backend; queries run on a dedicated session connection so that
// per-test settings stick for the whole query.
type SQLExecutor struct {
	engine Engine
	db     *sql.DB
	logger *slog.Logger

	// ProgressEvery controls the callback granularity in rows.
	ProgressEvery uint64
}

// Open connects to a backend and verifies the connection.
func Open(ctx context.Context, engine Engine, dsn string, logger *slog.Logger) (*SQLExecutor, error) {
	if err := engine.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(engine.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", engine, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s backend: %w", engine, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLExecutor{
		engine:        engine,
		db:            db,
		logger:        logger,
		ProgressEvery: DefaultProgressRows,
	}, nil
}

// Close implements Executor.
func (e *SQLExecutor) Close() error {
	return e.db.Close()
}

// ServerVersion implements Executor.
func (e *SQLExecutor) ServerVersion(ctx context.Context) (string, error) {
	var query string
	switch e.engine {
	case EngineMySQL:
		query = "SELECT VERSION()"
	case EnginePostgres:
		query = "SHOW server_version"
	case EngineSQLServer:
		query = "SELECT @@VERSION"
	case EngineOracle:
		query = "SELECT banner FROM v$version WHERE ROWNUM = 1"
	case EngineSQLite:
		query = "SELECT sqlite_version()"
	}

	var version string
	if err := e.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return "", fmt.Errorf("probe %s server version: %w", e.engine, err)
	}
	return strings.TrimSpace(version), nil
}

// TableExists implements Executor.
func (e *SQLExecutor) TableExists(ctx context.Context, table string) (bool, error) {
	var query string
	switch e.engine {
	case EngineMySQL:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	case EnginePostgres:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
	case EngineSQLServer:
		query = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1"
	case EngineOracle:
		query = "SELECT COUNT(*) FROM user_tables WHERE table_name = UPPER(:1)"
	case EngineSQLite:
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}

	var count int
	if err := e.db.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return false, fmt.Errorf("check table %q on %s: %w", table, e.engine, err)
	}
	return count > 0, nil
}

// Execute implements Executor. It pins a session connection, applies the
// settings, then streams the result set counting rows and payload bytes.
// A false return from onProgress stops the stream early without error.
func (e *SQLExecutor) Execute(ctx context.Context, query string, settings map[string]string, onProgress ProgressFunc) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer conn.Close()

	if err := e.applySettings(ctx, conn, settings); err != nil {
		return err
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read result columns: %w", err)
	}
	raw := make([]sql.RawBytes, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	every := e.ProgressEvery
	if every == 0 {
		every = DefaultProgressRows
	}

	var progress Progress
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan result row: %w", err)
		}
		progress.Rows++
		for _, col := range raw {
			progress.Bytes += uint64(len(col))
		}
		if progress.Rows%every == 0 && onProgress != nil {
			if !onProgress(progress) {
				return nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("stream result: %w", err)
	}

	if onProgress != nil {
		onProgress(progress)
	}
	return nil
}

// applySettings forwards session settings to the backend using its own
// dialect. Settings are best effort per engine syntax; a failing statement
// aborts the run so misconfiguration does not silently skew measurements.
func (e *SQLExecutor) applySettings(ctx context.Context, conn *sql.Conn, settings map[string]string) error {
	for key, value := range settings {
		stmt := e.settingStatement(key, value)
		if stmt == "" {
			e.logger.Warn("setting has no equivalent on this engine, skipping",
				"engine", string(e.engine), "setting", key)
			continue
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply setting %s=%s: %w", key, value, err)
		}
	}
	return nil
}

func (e *SQLExecutor) settingStatement(key, value string) string {
	switch e.engine {
	case EngineMySQL:
		return fmt.Sprintf("SET SESSION %s = %s", key, quoteScalar(value))
	case EnginePostgres:
		return fmt.Sprintf("SET %s = %s", key, quoteScalar(value))
	case EngineSQLServer:
		return fmt.Sprintf("SET %s %s", strings.ToUpper(key), value)
	case EngineOracle:
		return fmt.Sprintf("ALTER SESSION SET %s = %s", key, quoteScalar(value))
	case EngineSQLite:
		return fmt.Sprintf("PRAGMA %s = %s", key, value)
	default:
		return ""
	}
}

// quoteScalar renders a setting value as a SQL literal: numbers bare,
// anything else single-quoted.
func quoteScalar(value string) string {
	for _, r := range value {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return "'" + strings.ReplaceAll(value, "'", "''") + "'"
		}
	}
	if value == "" {
		return "''"
	}
	return value
}
