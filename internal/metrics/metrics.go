// Package metrics declares the Prometheus collectors published by a
// repository façade instance. Each façade owns its own registry rather
// than registering into the global default one, so tests can
// instantiate multiple façades side by side (spec.md §9, "no global
// mutable state").
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pool holds the collectors updated by the connection pool. Gauge values
// are counted under the pool's mutex and set after it is released.
type Pool struct {
	LiveConnections       prometheus.Gauge
	FreeConnections       prometheus.Gauge
	AcquiredConnections   prometheus.Gauge
	ConnectionsCreated    prometheus.Counter
	ConnectionsClosed     prometheus.Counter
	ValidationFailures    prometheus.Counter
	SaturationEventsTotal prometheus.Counter
	HealthCheckTicks      prometheus.Counter
}

// Cache holds the collectors updated by the cache tier.
type Cache struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	StoreErrors prometheus.Counter
}

// NewRegistry builds a fresh registry plus the Pool and Cache collector
// sets, all registered into it. namespace is typically the façade's
// configured label (e.g. "cacherepo").
func NewRegistry(namespace string) (*prometheus.Registry, *Pool, *Cache) {
	reg := prometheus.NewRegistry()

	pool := &Pool{
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "live_connections",
			Help: "Number of connections currently known to the pool.",
		}),
		FreeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "free_connections",
			Help: "Number of connections currently free.",
		}),
		AcquiredConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "acquired_connections",
			Help: "Number of connections currently acquired.",
		}),
		ConnectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "connections_created_total",
			Help: "Total connections created (initial fill, refill, emergency create).",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "connections_closed_total",
			Help: "Total connections closed (validation failure, shutdown).",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "validation_failures_total",
			Help: "Total connections that failed validation during a health check or acquire.",
		}),
		SaturationEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "saturation_events_total",
			Help: "Total acquire attempts that found no free connection with live_count == max_size.",
		}),
		HealthCheckTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "health_check_ticks_total",
			Help: "Total health-check sweeps performed.",
		}),
	}

	cache := &Cache{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Total cache-tier lookups served from the cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Total cache-tier lookups that fell through to the database.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "store_errors_total",
			Help: "Total setex failures after a database round-trip.",
		}),
	}

	reg.MustRegister(
		pool.LiveConnections, pool.FreeConnections, pool.AcquiredConnections,
		pool.ConnectionsCreated, pool.ConnectionsClosed, pool.ValidationFailures,
		pool.SaturationEventsTotal, pool.HealthCheckTicks,
		cache.Hits, cache.Misses, cache.StoreErrors,
	)

	return reg, pool, cache
}
