// Package engine provides the SQL backend abstraction of the benchmark:
// opening a connection by engine kind, streaming query execution with row
// and byte accounting, and the per-engine probes (server version, table
// existence, session settings).
package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownEngine is returned for an engine name outside the supported
	// set.
	ErrUnknownEngine = errors.New("unknown database engine")

	// ErrTableMissing is returned by precondition checks when a required
	// table does not exist.
	ErrTableMissing = errors.New("required table does not exist")
)

// Engine identifies a supported database backend.
type Engine string

const (
	EngineMySQL     Engine = "mysql"
	EnginePostgres  Engine = "postgres"
	EngineSQLServer Engine = "sqlserver"
	EngineOracle    Engine = "oracle"
	EngineSQLite    Engine = "sqlite"
)

// Validate checks that the engine is one of the supported backends.
func (e Engine) Validate() error {
	switch e {
	case EngineMySQL, EnginePostgres, EngineSQLServer, EngineOracle, EngineSQLite:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, string(e))
	}
}

// DriverName maps the engine to its registered database/sql driver.
func (e Engine) DriverName() string {
	switch e {
	case EngineMySQL:
		return "mysql"
	case EnginePostgres:
		return "postgres"
	case EngineSQLServer:
		return "sqlserver"
	case EngineOracle:
		return "oracle"
	case EngineSQLite:
		return "sqlite"
	default:
		return ""
	}
}

// Progress is a streaming snapshot of one query execution. Counters are
// cumulative for the current query.
type Progress struct {
	Rows  uint64
	Bytes uint64
}

// ProgressFunc receives execution progress. Returning false asks the
// executor to stop streaming the current query; execution then finishes
// without error.
type ProgressFunc func(Progress) bool

// Executor runs benchmark queries against one backend.
type Executor interface {
	// ServerVersion probes the backend's version string.
	ServerVersion(ctx context.Context) (string, error)

	// Execute streams one query to completion, reporting progress along the
	// way. Session settings are applied before the query runs.
	Execute(ctx context.Context, query string, settings map[string]string, onProgress ProgressFunc) error

	// TableExists reports whether the named table is present.
	TableExists(ctx context.Context, table string) (bool, error)

	// Close releases the underlying connections.
	Close() error
}
