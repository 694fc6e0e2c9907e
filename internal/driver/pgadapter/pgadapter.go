// Package pgadapter is the PostgreSQL variant of the Database Driver
// Adapter (spec.md §4.A), built on github.com/jackc/pgx/v5 the same way
// the teacher's pkg/database/postgres.go used pgx — except here each
// Open call returns one bare *pgx.Conn rather than a pgxpool.Pool,
// because connection pooling itself is the Connection Pool component
// (internal/pool), not this adapter's job.
package pgadapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/driver"
	"github.com/mydevhero/cacherepo/internal/rerr"
)

// Adapter implements driver.Adapter for PostgreSQL.
type Adapter struct {
	connString string
	connectTimeout time.Duration
}

// New builds an Adapter from the resolved database configuration.
func New(cfg config.DatabaseConfig) *Adapter {
	return &Adapter{
		connString:     connString(cfg),
		connectTimeout: cfg.ConnectTimeout,
	}
}

func connString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s connect_timeout=%d keepalives_idle=%d keepalives_interval=%d keepalives_count=%d",
		cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password,
		int(cfg.ConnectTimeout.Seconds()),
		int(cfg.KeepaliveIdle.Seconds()),
		int(cfg.KeepaliveInterval.Seconds()),
		cfg.KeepaliveCount,
	)
}

// handle adapts *pgx.Conn to driver.Handle.
type handle struct{ conn *pgx.Conn }

func (h *handle) Backend() string { return "postgres" }

func (a *Adapter) Open(ctx context.Context) (driver.Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, a.connectTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, a.connString)
	if err != nil {
		return nil, rerr.New(rerr.Broken, "pgadapter.Open", err)
	}
	return &handle{conn: conn}, nil
}

func (a *Adapter) Execute(ctx context.Context, h driver.Handle, query string, args ...any) (driver.Result, error) {
	conn := h.(*handle).conn
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return driver.Result{}, classify("pgadapter.Execute", err)
	}
	defer rows.Close()

	result, err := scan(rows)
	if err != nil {
		return driver.Result{}, classify("pgadapter.Execute", err)
	}
	return result, nil
}

func scan(rows pgx.Rows) (driver.Result, error) {
	fields := rows.FieldDescriptions()
	var out driver.Result
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return driver.Result{}, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return driver.Result{}, err
	}
	return out, nil
}

// tx adapts pgx.Tx to driver.Tx.
type tx struct{ pgxTx pgx.Tx }

func (t *tx) Execute(ctx context.Context, query string, args ...any) (driver.Result, error) {
	rows, err := t.pgxTx.Query(ctx, query, args...)
	if err != nil {
		return driver.Result{}, classify("pgadapter.Tx.Execute", err)
	}
	defer rows.Close()
	result, err := scan(rows)
	if err != nil {
		return driver.Result{}, classify("pgadapter.Tx.Execute", err)
	}
	return result, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.pgxTx.Commit(ctx); err != nil {
		return classify("pgadapter.Tx.Commit", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if err := t.pgxTx.Rollback(ctx); err != nil {
		return classify("pgadapter.Tx.Rollback", err)
	}
	return nil
}

func (a *Adapter) BeginTx(ctx context.Context, h driver.Handle) (driver.Tx, error) {
	conn := h.(*handle).conn
	pgxTx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classify("pgadapter.BeginTx", err)
	}
	return &tx{pgxTx: pgxTx}, nil
}

func (a *Adapter) Validate(ctx context.Context, h driver.Handle, useTx bool) error {
	conn := h.(*handle).conn

	if !useTx {
		var one int
		err := conn.QueryRow(ctx, "SELECT 1").Scan(&one)
		if err != nil {
			return classify("pgadapter.Validate", err)
		}
		return nil
	}

	pgxTx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify("pgadapter.Validate", err)
	}

	var one int
	if err := pgxTx.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		_ = pgxTx.Rollback(ctx) // best-effort; secondary failure swallowed
		return classify("pgadapter.Validate", err)
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return classify("pgadapter.Validate", err)
	}
	// Auto-commit is pgx's default state once the transaction ends; no
	// further action is needed to "restore" it.
	return nil
}

func (a *Adapter) Close(h driver.Handle) {
	conn, ok := h.(*handle)
	if !ok || conn.conn == nil {
		return
	}
	// Close tolerates an already-broken connection; pgx returns an error
	// in that case which we deliberately discard (idempotent close).
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = conn.conn.Close(ctx)
}

// IsAlive checks pgx's own local connection state (the socket's observed
// open/closed flag) with no round trip to the server, the Go equivalent
// of pqxx::connection::is_open() the original source checks on the
// cheap, non-validating acquire path.
func (a *Adapter) IsAlive(h driver.Handle) bool {
	return !h.(*handle).conn.IsClosed()
}

// Placeholder returns pgx's numbered positional marker.
func (a *Adapter) Placeholder(pos int) string {
	return fmt.Sprintf("$%d", pos)
}

// classify maps pgx/pgconn errors to the rerr taxonomy: server shutdown,
// cannot-connect-now, too-many-connections, rejected credentials, a
// missing database and network-level errors are Broken; other server
// error codes and closed-transaction errors are Sql; anything else is
// Unknown.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P01", // admin_shutdown
			"57P02", // crash_shutdown
			"57P03", // cannot_connect_now
			"53300", // too_many_connections
			"28000", // invalid_authorization_specification
			"28P01", // invalid_password
			"3D000": // invalid_catalog_name (database missing)
			return rerr.New(rerr.Broken, op, err)
		}
		return rerr.New(rerr.Sql, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return rerr.New(rerr.Broken, op, err)
	}

	if errors.Is(err, pgx.ErrTxClosed) || errors.Is(err, pgx.ErrTxCommitRollback) {
		return rerr.New(rerr.Sql, op, err)
	}

	return rerr.New(rerr.Unknown, op, err)
}
