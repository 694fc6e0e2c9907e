// Package driver defines the Database Driver Adapter capability (spec.md
// §4.A): open a single connection, execute a parameterized query,
// validate liveness, close. Two concrete variants are provided —
// pgadapter (PostgreSQL, via pgx) and mysqladapter (MySQL/MariaDB, via
// database/sql) — selected at construction time by
// config.DatabaseConfig.Driver. Only one variant is active per
// deployment.
package driver

import (
	"context"
)

// Handle is an opaque backend connection. Concrete adapters type-assert
// it back to their own connection type; callers outside the adapter
// never touch it directly.
type Handle interface {
	// Backend returns a short tag ("postgres", "mysql") for logging.
	Backend() string
}

// Result is the mapped row data returned by Execute, opaque to every
// layer above the Database Tier.
type Result struct {
	// Rows holds one map[column]value per returned row. For the
	// single-row queries this module implements, len(Rows) is 0 or 1.
	Rows []map[string]any
}

// Adapter is the per-backend capability set required by the Database
// Tier and the Connection Pool.
type Adapter interface {
	// Open creates one backend connection. It classifies connectivity,
	// auth and missing-database failures as rerr.Broken.
	Open(ctx context.Context) (Handle, error)

	// Execute runs query with args directly on h, outside any explicit
	// transaction. Backend error codes indicating a broken link are
	// classified rerr.Broken and other backend error codes rerr.Sql;
	// errors the adapter does not recognize are rerr.Unknown.
	Execute(ctx context.Context, h Handle, query string, args ...any) (Result, error)

	// BeginTx starts an explicit transaction on h.
	BeginTx(ctx context.Context, h Handle) (Tx, error)

	// Validate runs a trivial round-trip ("SELECT 1") against h. When
	// useTx is true the probe is wrapped in an explicit transaction that
	// is committed before returning, and auto-commit is restored
	// regardless of outcome.
	Validate(ctx context.Context, h Handle, useTx bool) error

	// IsAlive reports whether h is still usable, using only locally known
	// state — no network round trip. This is the "cheap liveness test"
	// the scan-on-acquire path runs when ValidateBeforeAcquire is false
	// (spec.md §4.B step 2); Validate is the full round-trip counterpart
	// run when the flag is set.
	IsAlive(h Handle) bool

	// Close releases h. Idempotent; tolerates an already-broken handle.
	Close(h Handle)

	// Placeholder returns this backend's positional parameter marker for
	// 1-based argument position pos: "$1", "$2", ... for PostgreSQL,
	// a plain "?" for every position on MySQL/MariaDB.
	Placeholder(pos int) string
}

// Tx is an in-flight transaction handed back by BeginTx.
type Tx interface {
	Execute(ctx context.Context, query string, args ...any) (Result, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
