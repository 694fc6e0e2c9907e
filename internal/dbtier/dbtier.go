// Package dbtier implements the Database Tier (spec.md §4.C): per-query
// methods that acquire a connection from the pool, run one short
// transaction through the driver adapter, and return a typed result or a
// classified error. It hosts the fixed set of typed query operations this
// module implements — EchoString and LookupLabel — rather than a
// code-generated method per query signature (query signature generation
// is out of scope per spec.md §1).
package dbtier

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mydevhero/cacherepo/internal/driver"
	"github.com/mydevhero/cacherepo/internal/pool"
	"github.com/mydevhero/cacherepo/internal/rerr"
	"github.com/mydevhero/cacherepo/internal/rlog"
)

// errUnavailable is the cause wrapped by the Broken error the tier raises
// when pool.Acquire returns None (spec.md §4.C step 2).
var errUnavailable = errors.New("unavailable")

// Tier is the Database Tier. It owns the connection pool and the driver
// adapter used to run queries over connections borrowed from it.
type Tier struct {
	pool    *pool.Pool
	adapter driver.Adapter
	log     *rlog.Logger

	echoQuery  string
	labelQuery string

	running atomic.Bool
}

// New wraps an already-constructed pool and adapter. Pool construction
// (initial fill, health-check worker startup) happens in pool.New before
// this call, matching the façade's construction order (spec.md §4.F).
//
// The fixed query templates are built once here using adapter.Placeholder,
// so each backend gets its own marker style ("$1" for PostgreSQL, "?" for
// MySQL/MariaDB) the same way the original source keeps a distinct
// Query.hpp per backend.
func New(p *pool.Pool, adapter driver.Adapter, log *rlog.Logger) *Tier {
	t := &Tier{
		pool:       p,
		adapter:    adapter,
		log:        log,
		echoQuery:  fmt.Sprintf("SELECT value FROM echo_store WHERE key = %s", adapter.Placeholder(1)),
		labelQuery: fmt.Sprintf("SELECT label FROM labels WHERE id = %s", adapter.Placeholder(1)),
	}
	t.running.Store(true)
	return t
}

// EchoString runs the "echo" query: looks up key and returns its stored
// string value, or found=false if no row matches.
func (t *Tier) EchoString(ctx context.Context, key string) (string, bool, error) {
	return t.queryOneString(ctx, "echo", t.echoQuery, "value", key)
}

// LookupLabel runs the "label" query: looks up id and returns its stored
// label, or found=false if no row matches.
func (t *Tier) LookupLabel(ctx context.Context, id string) (string, bool, error) {
	return t.queryOneString(ctx, "label", t.labelQuery, "label", id)
}

// queryOneString implements the §4.C sequence common to every typed
// operation this tier exposes: running flag check, acquire, transaction
// (auto-commit off/execute/commit/auto-commit restore), and the rollback
// + auto-commit-restore best-effort cleanup on any in-flight failure.
func (t *Tier) queryOneString(ctx context.Context, op, query, column string, arg string) (string, bool, error) {
	if !t.running.Load() {
		return "", false, nil
	}

	guard, err := t.pool.Acquire(ctx)
	if err != nil {
		return "", false, err
	}
	if guard == nil {
		return "", false, rerr.New(rerr.Broken, "dbtier."+op, errUnavailable)
	}
	defer guard.Release()

	tx, err := t.adapter.BeginTx(ctx, guard.Handle())
	if err != nil {
		guard.MarkBroken()
		return "", false, err
	}

	result, err := tx.Execute(ctx, query, arg)
	if err != nil {
		// Best-effort rollback; a secondary failure here is logged and
		// swallowed, matching spec.md §7's rollback-on-failure policy.
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			t.log.Warnw("rollback failed after query error", "op", op, "error", rbErr)
		}
		if rerr.KindOf(err) == rerr.Broken {
			guard.MarkBroken()
		}
		return "", false, err
	}

	if err := tx.Commit(ctx); err != nil {
		if rerr.KindOf(err) == rerr.Broken {
			guard.MarkBroken()
		}
		return "", false, err
	}

	if len(result.Rows) == 0 {
		return "", false, nil
	}

	value, ok := result.Rows[0][column].(string)
	if !ok {
		return "", false, nil
	}
	return value, true, nil
}

// Close clears the tier's running flag and closes the underlying pool, in
// the order the façade's destruction sequence requires (spec.md §4.F).
func (t *Tier) Close() {
	t.running.Store(false)
	t.pool.Close()
}
