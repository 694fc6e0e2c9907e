// Package cachetier implements the Cache Tier (spec.md §4.E): the
// cache-aside protocol sitting between the façade and the database tier.
// Per query operation it derives a deterministic cache key, attempts a
// cache lookup, falls back to the database tier on miss, and populates
// the cache afterward without ever failing the caller on a setex error.
package cachetier

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mydevhero/cacherepo/internal/cachedriver"
	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/metrics"
	"github.com/mydevhero/cacherepo/internal/rerr"
	"github.com/mydevhero/cacherepo/internal/rlog"
)

// DataSource is the non-owning capability the cache tier borrows to
// delegate on a cache miss. The façade constructs *dbtier.Tier first and
// wires it in here, avoiding the ownership cycle spec.md §9 warns about:
// the cache tier never owns, closes, or otherwise manages the database
// tier's lifetime.
type DataSource interface {
	EchoString(ctx context.Context, key string) (string, bool, error)
	LookupLabel(ctx context.Context, id string) (string, bool, error)
}

// Tier is the Cache Tier.
type Tier struct {
	cache  *cachedriver.Adapter
	source DataSource
	query  config.QueryConfig
	log    *rlog.Logger
	m      *metrics.Cache
}

// New wires a cache tier from an already-constructed cache driver adapter
// and the database tier to fall back to.
func New(cache *cachedriver.Adapter, source DataSource, query config.QueryConfig, log *rlog.Logger, m *metrics.Cache) *Tier {
	return &Tier{cache: cache, source: source, query: query, log: log, m: m}
}

// deriveKey builds a deterministic cache key from a query name and its
// arguments using length-prefixed concatenation (spec.md §4.E step 1,
// following original_source/'s Cache.cpp key-building helper in spirit,
// per SPEC_FULL.md §11): identical arguments always produce the same
// key; different arguments never collide within the same query name,
// since the length prefix makes the segment boundary unambiguous.
func deriveKey(query string, args ...string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(query)))
	b.WriteByte(':')
	b.WriteString(query)
	for _, a := range args {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(a)))
		b.WriteByte(':')
		b.WriteString(a)
	}
	return b.String()
}

// EchoString satisfies the "echo" query through the cache-aside protocol.
func (t *Tier) EchoString(ctx context.Context, key string) (string, bool, error) {
	return t.lookup(ctx, "echo", key, func(ctx context.Context) (string, bool, error) {
		return t.source.EchoString(ctx, key)
	})
}

// LookupLabel satisfies the "label" query through the cache-aside
// protocol, independently keyed from EchoString (SPEC_FULL.md §6).
func (t *Tier) LookupLabel(ctx context.Context, id string) (string, bool, error) {
	return t.lookup(ctx, "label", id, func(ctx context.Context) (string, bool, error) {
		return t.source.LookupLabel(ctx, id)
	})
}

// lookup implements spec.md §4.E's five-step sequence once, shared by
// every query operation: derive key, get, on-miss delegate, on database
// hit setex (best-effort), on cache-get error fall through to the
// database without failing the call.
func (t *Tier) lookup(ctx context.Context, query, arg string, fromDB func(context.Context) (string, bool, error)) (string, bool, error) {
	key := deriveKey(query, arg)

	val, hit, err := t.cache.Get(ctx, key)
	if err != nil {
		// A fatal cache-get error falls through to the database without
		// attempting a secondary setex on the eventual result (spec.md
		// §4.E step 5). Broken propagates unchanged to the façade.
		t.log.Errorw("cache get failed, falling back to database", "query", query, "key", key, "error", err)
		return t.fallback(ctx, fromDB, query, key, false)
	}

	if hit {
		t.m.Hits.Inc()
		t.log.Debugw("cache hit", "query", query, "key", key)
		return val, true, nil
	}

	t.m.Misses.Inc()
	t.log.Debugw("cache miss", "query", query, "key", key)
	return t.fallback(ctx, fromDB, query, key, true)
}

// fallback delegates to the database tier and, when attemptStore is true
// and the database returned a value, stores it in the cache. A setex
// failure is logged at warn and never surfaces to the caller.
func (t *Tier) fallback(ctx context.Context, fromDB func(context.Context) (string, bool, error), query, key string, attemptStore bool) (string, bool, error) {
	val, found, err := fromDB(ctx)
	if err != nil {
		// Broken (and any other) database-tier error propagates unchanged;
		// it is the signal the façade's caller uses to decide retry policy
		// (spec.md §4.E, last paragraph).
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	if attemptStore {
		t.store(ctx, query, key, val)
	}
	return val, true, nil
}

func (t *Tier) store(ctx context.Context, query, key, val string) {
	ttl := t.query.TTLFor(query, defaultTTL)
	if err := t.cache.SetEX(ctx, key, ttl, val); err != nil {
		t.m.StoreErrors.Inc()
		t.log.Warnw("cache store failed, returning database value", "query", query, "key", key, "kind", rerr.KindOf(err), "error", err)
	}
}

// defaultTTL applies when a query has no entry in config.QueryConfig.TTL.
const defaultTTL = 5 * time.Minute

// Close releases the cache driver adapter's resources. The data source
// (database tier) is a non-owning borrow and is never closed here.
func (t *Tier) Close() error {
	return t.cache.Close()
}
