// Package mysqladapter is the MySQL/MariaDB variant of the Database
// Driver Adapter (spec.md §4.A), built on database/sql plus
// github.com/go-sql-driver/mysql — the same driver the burrowctl example
// repo uses for direct SQL execution against a MySQL backend. Each Open
// call returns one *sql.Conn checked out of a single-connection
// database/sql handle, so the bounded pooling is still owned entirely by
// internal/pool, not by this adapter or by database/sql's own pool.
package mysqladapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/driver"
	"github.com/mydevhero/cacherepo/internal/rerr"
)

// Adapter implements driver.Adapter for MySQL-compatible backends
// (including MariaDB, which speaks the same wire protocol).
type Adapter struct {
	dsn            string
	connectTimeout time.Duration
}

func New(cfg config.DatabaseConfig) *Adapter {
	mcfg := mysql.NewConfig()
	mcfg.Net = "tcp"
	mcfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mcfg.DBName = cfg.Name
	mcfg.User = cfg.User
	mcfg.Passwd = cfg.Password
	mcfg.Timeout = cfg.ConnectTimeout
	mcfg.ParseTime = true

	return &Adapter{dsn: mcfg.FormatDSN(), connectTimeout: cfg.ConnectTimeout}
}

// handle wraps a single *sql.Conn checked out of a per-connection
// *sql.DB. database/sql has no "open exactly one physical connection"
// primitive, so each handle owns a *sql.DB capped at one connection.
//
// database/sql also exposes no local open/closed state to check cheaply,
// unlike pgx's Conn.IsClosed(); broken tracks it ourselves, set whenever
// any operation on this handle classifies Broken.
type handle struct {
	db     *sql.DB
	conn   *sql.Conn
	broken atomic.Bool
}

func (h *handle) Backend() string { return "mysql" }

func (a *Adapter) Open(ctx context.Context) (driver.Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, a.connectTimeout)
	defer cancel()

	db, err := sql.Open("mysql", a.dsn)
	if err != nil {
		return nil, rerr.New(rerr.Broken, "mysqladapter.Open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, classify("mysqladapter.Open", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, classify("mysqladapter.Open", err)
	}

	return &handle{db: db, conn: conn}, nil
}

func (a *Adapter) Execute(ctx context.Context, h driver.Handle, query string, args ...any) (driver.Result, error) {
	hd := h.(*handle)
	result, err := execOn(ctx, hd.conn, query, args...)
	return result, markIfBroken(hd, err)
}

// markIfBroken records on hd that a Broken-classified error was observed,
// so a later IsAlive(hd) reports it without another round trip. err is
// returned unchanged.
func markIfBroken(hd *handle, err error) error {
	if err != nil && rerr.KindOf(err) == rerr.Broken {
		hd.broken.Store(true)
	}
	return err
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execOn(ctx context.Context, q querier, query string, args ...any) (driver.Result, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return driver.Result{}, classify("mysqladapter.Execute", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return driver.Result{}, classify("mysqladapter.Execute", err)
	}

	var out driver.Result
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return driver.Result{}, classify("mysqladapter.Execute", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return driver.Result{}, classify("mysqladapter.Execute", err)
	}
	return out, nil
}

type tx struct {
	sqlTx  *sql.Tx
	handle *handle
}

func (t *tx) Execute(ctx context.Context, query string, args ...any) (driver.Result, error) {
	result, err := execOn(ctx, t.sqlTx, query, args...)
	return result, markIfBroken(t.handle, err)
}

func (t *tx) Commit(ctx context.Context) error {
	return markIfBroken(t.handle, classify("mysqladapter.Tx.Commit", t.sqlTx.Commit()))
}

func (t *tx) Rollback(ctx context.Context) error {
	return markIfBroken(t.handle, classify("mysqladapter.Tx.Rollback", t.sqlTx.Rollback()))
}

func (a *Adapter) BeginTx(ctx context.Context, h driver.Handle) (driver.Tx, error) {
	hd := h.(*handle)
	sqlTx, err := hd.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, markIfBroken(hd, classify("mysqladapter.BeginTx", err))
	}
	return &tx{sqlTx: sqlTx, handle: hd}, nil
}

func (a *Adapter) Validate(ctx context.Context, h driver.Handle, useTx bool) error {
	hd := h.(*handle)

	if !useTx {
		var one int
		err := hd.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
		return markIfBroken(hd, classify("mysqladapter.Validate", err))
	}

	sqlTx, err := hd.conn.BeginTx(ctx, nil)
	if err != nil {
		return markIfBroken(hd, classify("mysqladapter.Validate", err))
	}

	var one int
	if err := sqlTx.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		_ = sqlTx.Rollback()
		return markIfBroken(hd, classify("mysqladapter.Validate", err))
	}

	if err := sqlTx.Commit(); err != nil {
		return markIfBroken(hd, classify("mysqladapter.Validate", err))
	}
	return nil
}

// IsAlive reports whether a Broken-classified error has been observed on
// h since it was opened. No round trip: the cheap counterpart to
// Validate on the non-validating acquire path.
func (a *Adapter) IsAlive(h driver.Handle) bool {
	return !h.(*handle).broken.Load()
}

// Placeholder returns MySQL/MariaDB's single unnumbered marker.
func (a *Adapter) Placeholder(pos int) string {
	return "?"
}

func (a *Adapter) Close(h driver.Handle) {
	hd, ok := h.(*handle)
	if !ok {
		return
	}
	if hd.conn != nil {
		_ = hd.conn.Close()
	}
	if hd.db != nil {
		_ = hd.db.Close()
	}
}

// classify maps go-sql-driver/mysql errors to the rerr taxonomy:
// too-many-connections/access-denied/unknown-database/connection-refused/
// server-gone/server-lost codes, invalid or bad connections and
// network-level errors map to Broken; other server error codes and
// finished-transaction errors are Sql; anything else is Unknown.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1040, // ER_CON_COUNT_ERROR (too many connections)
			1045, // ER_ACCESS_DENIED_ERROR
			1049, // ER_BAD_DB_ERROR (unknown database)
			2002, // CR_CONNECTION_ERROR
			2003, // CR_CONN_HOST_ERROR
			2006, // CR_SERVER_GONE_ERROR
			2013: // CR_SERVER_LOST
			return rerr.New(rerr.Broken, op, err)
		}
		return rerr.New(rerr.Sql, op, err)
	}

	if errors.Is(err, mysql.ErrInvalidConn) || strings.Contains(err.Error(), "driver: bad connection") {
		return rerr.New(rerr.Broken, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return rerr.New(rerr.Broken, op, err)
	}

	if errors.Is(err, sql.ErrTxDone) {
		return rerr.New(rerr.Sql, op, err)
	}

	return rerr.New(rerr.Unknown, op, err)
}
