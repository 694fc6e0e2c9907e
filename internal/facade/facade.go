// Package facade implements the Repository Facade (spec.md §4.F): the
// single entry point a caller uses to invoke query operations. It owns
// the lifetimes of the cache tier and, transitively, the database tier,
// the connection pool and the driver adapter, and is the sole root of
// ownership for these resources — there is no static mutable state.
package facade

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mydevhero/cacherepo/internal/cachedriver"
	"github.com/mydevhero/cacherepo/internal/cachetier"
	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/dbtier"
	"github.com/mydevhero/cacherepo/internal/driver"
	"github.com/mydevhero/cacherepo/internal/driver/mysqladapter"
	"github.com/mydevhero/cacherepo/internal/driver/pgadapter"
	"github.com/mydevhero/cacherepo/internal/metrics"
	"github.com/mydevhero/cacherepo/internal/pool"
	"github.com/mydevhero/cacherepo/internal/rerr"
	"github.com/mydevhero/cacherepo/internal/rlog"
)

// Facade is the single object callers use to issue query operations.
type Facade struct {
	db    *dbtier.Tier
	cache *cachetier.Tier
	log   *rlog.Logger

	registry *prometheus.Registry
}

// New constructs a Facade from a resolved configuration record, in the
// order spec.md §4.F requires: the database side first (the pool, which
// performs the initial fill synchronously and starts the health-check
// worker, then the database tier wrapping it), then the cache side (the
// cache driver adapter, then the cache tier wrapping it). A
// ConfigOutOfRange error aborts before either tier is built.
func New(ctx context.Context, cfg config.Config, log *rlog.Logger) (*Facade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, rerr.New(rerr.ConfigOutOfRange, "facade.New", err)
	}

	registry, poolMetrics, cacheMetrics := metrics.NewRegistry(cfg.Namespace)

	adapter, err := newDriverAdapter(cfg.Database)
	if err != nil {
		return nil, err
	}

	p, err := pool.New(ctx, cfg.Pool, adapter, log, poolMetrics)
	if err != nil {
		return nil, err
	}
	db := dbtier.New(p, adapter, log)

	cacheAdapter := cachedriver.New(cfg.Cache)
	cache := cachetier.New(cacheAdapter, db, cfg.Query, log, cacheMetrics)

	return &Facade{db: db, cache: cache, log: log, registry: registry}, nil
}

// newDriverAdapter selects the Database Driver Adapter variant
// (spec.md §4.A) active for this deployment. MariaDB deployments use
// DriverMySQL, since MariaDB shares MySQL's wire protocol
// (SPEC_FULL.md §4.A).
func newDriverAdapter(cfg config.DatabaseConfig) (driver.Adapter, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return pgadapter.New(cfg), nil
	case config.DriverMySQL:
		return mysqladapter.New(cfg), nil
	default:
		return nil, rerr.New(rerr.ConfigOutOfRange, "facade.newDriverAdapter", fmt.Errorf("unrecognized database driver %q", cfg.Driver))
	}
}

// Registry exposes the façade's private Prometheus registry, so a
// collaborator can serve /metrics without the core reaching for the
// global default registry (spec.md §9 "no global mutable state").
func (f *Facade) Registry() *prometheus.Registry { return f.registry }

// EchoString looks up key through the cache-aside pipeline, tagging the
// call with a fresh operation id for log correlation (SPEC_FULL.md §6).
func (f *Facade) EchoString(ctx context.Context, key string) (string, bool, error) {
	opLog := f.log.With("op_id", uuid.New().String(), "op", "echo")
	opLog.Debugw("query start", "key", key)
	val, found, err := f.cache.EchoString(ctx, key)
	if err != nil {
		opLog.Errorw("query failed", "error", err)
		return "", false, err
	}
	return val, found, nil
}

// LookupLabel looks up id through the cache-aside pipeline.
func (f *Facade) LookupLabel(ctx context.Context, id string) (string, bool, error) {
	opLog := f.log.With("op_id", uuid.New().String(), "op", "label")
	opLog.Debugw("query start", "id", id)
	val, found, err := f.cache.LookupLabel(ctx, id)
	if err != nil {
		opLog.Errorw("query failed", "error", err)
		return "", false, err
	}
	return val, found, nil
}

// Close tears the façade down in reverse construction order: the cache
// tier's adapter first, then the database tier (which clears the pool's
// running flag, wakes every waiter, joins the health-check worker, and
// closes remaining connections).
func (f *Facade) Close() error {
	cacheErr := f.cache.Close()
	f.db.Close()
	return cacheErr
}
