// Package pool implements the bounded, health-checked Connection Pool
// (spec.md §4.B) — the hardest component in this repository: shared
// mutable state under concurrent access, resource lifecycle, bounded
// waiting under saturation, and ordered shutdown. It is driver-agnostic;
// it acquires and releases driver.Handle values produced by whichever
// driver.Adapter the Database Tier configured it with.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/driver"
	"github.com/mydevhero/cacherepo/internal/metrics"
	"github.com/mydevhero/cacherepo/internal/rerr"
	"github.com/mydevhero/cacherepo/internal/rlog"
)

// errNotAlive is the cause logged when the cheap, non-validating acquire
// path (spec.md §4.B step 2) finds a free connection the adapter reports
// as no longer usable.
var errNotAlive = errors.New("connection failed cheap liveness check")

// connID is the opaque, monotonically increasing identity the pool keys
// its connection set by, in place of the raw handle address the
// original C++ source used (spec.md §9 design note).
type connID uint64

type state int8

const (
	stateFree state = iota
	stateAcquired
	statePendingRemoval
)

// minHealthCheckInterval is the floor applied when HealthCheckInterval is
// configured as zero, so the health-check worker never busy-spins
// (spec.md §8 boundary behavior).
const minHealthCheckInterval = 100 * time.Millisecond

type entry struct {
	handle driver.Handle
	state  state

	createdAt      time.Time
	lastAcquiredAt time.Time
	lastReleasedAt time.Time
	totalInUse     time.Duration
	lastInUse      time.Duration
	usageCount     int
}

// Pool is the bounded set of database connections described by
// spec.md §4.B.
type Pool struct {
	cfg     config.PoolConfig
	adapter driver.Adapter
	log     *rlog.Logger
	metrics *metrics.Pool

	mu       sync.Mutex
	entries  map[connID]*entry
	nextID   connID
	notifyCh chan struct{}

	running atomic.Bool

	refusalLatch    atomic.Bool
	saturationCount atomic.Int32

	shutdownCh chan struct{}
	hcDone     chan struct{}
}

// New constructs a Pool, performs the initial fill to MinSize
// synchronously, and starts the background health checker — matching
// the construction order spec.md §4.F requires of the façade.
func New(ctx context.Context, cfg config.PoolConfig, adapter driver.Adapter, log *rlog.Logger, m *metrics.Pool) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, rerr.New(rerr.ConfigOutOfRange, "pool.New", err)
	}

	p := &Pool{
		cfg:        cfg,
		adapter:    adapter,
		log:        log,
		metrics:    m,
		entries:    make(map[connID]*entry, cfg.MaxSize),
		notifyCh:   make(chan struct{}),
		shutdownCh: make(chan struct{}),
		hcDone:     make(chan struct{}),
	}
	p.running.Store(true)

	p.log.Infow("pool created", "min_size", cfg.MinSize, "max_size", cfg.MaxSize)

	for i := 0; i < cfg.MinSize; i++ {
		h, err := p.createOne(ctx)
		if err != nil {
			// Best-effort: a database that is down at startup must not
			// prevent the façade from existing (scenario 4, spec.md §8).
			// The health checker will retry refilling on its next tick.
			break
		}
		p.mu.Lock()
		p.insertLocked(h)
		p.mu.Unlock()
	}

	p.updateGauges()
	go p.healthCheckLoop()

	return p, nil
}

// Guard is a scoped borrow of one connection. Callers MUST release it on
// every exit path — normally via `defer guard.Release()` — which is this
// module's equivalent of the RAII discipline spec.md §5 requires.
type Guard struct {
	pool     *Pool
	id       connID
	handle   driver.Handle
	broken   atomic.Bool
	released atomic.Bool
}

// Handle returns the borrowed connection handle.
func (g *Guard) Handle() driver.Handle { return g.handle }

// MarkBroken flags the connection as broken so that Release disposes of
// it via the removal path instead of returning it to the free set
// (spec.md §4.B "Failure semantics").
func (g *Guard) MarkBroken() { g.broken.Store(true) }

// Release returns the connection to the pool, or evicts it if MarkBroken
// was called. Idempotent: a second call is a no-op.
func (g *Guard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.pool.release(g.id, g.broken.Load())
}

// Acquire borrows one free connection, following the policy in spec.md
// §4.B: emergency-create when the live set is empty, scan-then-validate
// when it isn't, a second emergency create when under max_size, and a
// bounded wait otherwise. Returns (nil, nil) — "None" — when saturated
// and acquire_wait expires, and (nil, *rerr.Error{Kind: Broken}) when the
// emergency create path failed for connectivity reasons.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	deadline := time.Now().Add(p.cfg.AcquireWait)

	for {
		if !p.running.Load() {
			return nil, nil
		}

		p.mu.Lock()
		empty := len(p.entries) == 0
		p.mu.Unlock()

		if empty {
			h, err := p.createOne(ctx)
			if err != nil {
				return nil, err
			}
			p.mu.Lock()
			id := p.insertLocked(h)
			g := p.acquireLocked(id)
			p.mu.Unlock()
			p.updateGauges()
			return g, nil
		}

		if g := p.scanFree(ctx); g != nil {
			p.updateGauges()
			return g, nil
		}

		p.mu.Lock()
		liveCount := len(p.entries)
		p.mu.Unlock()

		if liveCount < p.cfg.MaxSize {
			h, err := p.createOne(ctx)
			if err == nil {
				p.mu.Lock()
				id := p.insertLocked(h)
				g := p.acquireLocked(id)
				p.mu.Unlock()
				p.updateGauges()
				return g, nil
			}
			if rerr.KindOf(err) == rerr.Broken {
				return nil, err
			}
			// Non-broken creation failure: fall through to the wait below.
		}

		p.recordSaturation()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		p.mu.Lock()
		ch := p.notifyCh
		p.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-time.After(remaining):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// scanFree looks for one free, valid connection, in the map-iteration
// order spec.md §4.B describes (no LIFO/LRU preference required).
// Invalid ones are evicted and closed on the spot; the scan continues.
// It manages its own locking — a live map range is never held across an
// I/O-performing unlock, since concurrent release()/health-check
// mutation of the same map would otherwise race with the iterator.
//
// Every candidate is checked before being handed out: the full,
// round-trip Validate when ValidateBeforeAcquire is set, or the
// adapter's cheap, local IsAlive otherwise (spec.md §4.B step 2) — the
// scan never hands out a connection unchecked.
func (p *Pool) scanFree(ctx context.Context) *Guard {
	type candidate struct {
		id     connID
		handle driver.Handle
	}

	p.mu.Lock()
	snapshot := make([]candidate, 0, len(p.entries))
	for id, e := range p.entries {
		if e.state == stateFree {
			snapshot = append(snapshot, candidate{id: id, handle: e.handle})
		}
	}
	p.mu.Unlock()

	for _, c := range snapshot {
		var failure error
		if p.cfg.ValidateBeforeAcquire {
			failure = p.adapter.Validate(ctx, c.handle, p.cfg.ValidateUsingTx)
		} else if !p.adapter.IsAlive(c.handle) {
			failure = errNotAlive
		}

		if failure != nil {
			p.evictFree(c.id, c.handle, failure)
			continue
		}

		p.mu.Lock()
		e, ok := p.entries[c.id]
		if ok && e.state == stateFree {
			g := p.acquireLocked(c.id)
			p.mu.Unlock()
			return g
		}
		p.mu.Unlock()
	}
	return nil
}

// evictFree removes id from the free set and closes its handle, if it is
// still free — it may have raced with a concurrent Acquire or with the
// health checker and already be gone or in use.
func (p *Pool) evictFree(id connID, handle driver.Handle, cause error) {
	p.mu.Lock()
	e, stillFree := p.entries[id]
	if stillFree && e.state == stateFree {
		delete(p.entries, id)
	} else {
		stillFree = false
	}
	p.mu.Unlock()

	if !stillFree {
		return
	}
	p.metrics.ValidationFailures.Inc()
	p.log.Warnw("connection failed liveness check during acquire", "conn_id", id, "error", cause)
	p.adapter.Close(handle)
	p.metrics.ConnectionsClosed.Inc()
}

// acquireLocked flips an entry to Acquired and returns its Guard. Must be
// called with p.mu held.
func (p *Pool) acquireLocked(id connID) *Guard {
	e := p.entries[id]
	e.state = stateAcquired
	e.lastAcquiredAt = time.Now()
	return &Guard{pool: p, id: id, handle: e.handle}
}

// insertLocked adds a newly created handle as Free and returns its id.
// Must be called with p.mu held.
func (p *Pool) insertLocked(h driver.Handle) connID {
	p.nextID++
	id := p.nextID
	p.entries[id] = &entry{handle: h, state: stateFree, createdAt: time.Now()}
	return id
}

// release returns connection id to the free set, or evicts it if broken
// is true. Safe to call exactly once per Guard (enforced by Guard.Release).
func (p *Pool) release(id connID, broken bool) {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return
	}

	if broken {
		delete(p.entries, id)
		p.mu.Unlock()
		p.adapter.Close(e.handle)
		p.metrics.ConnectionsClosed.Inc()
		p.log.Errorw("database connection broken, evicted", "conn_id", id)
		p.updateGauges()
		p.broadcast()
		return
	}

	now := time.Now()
	dur := now.Sub(e.lastAcquiredAt)
	e.lastInUse = dur
	e.totalInUse += dur
	e.lastReleasedAt = now
	e.usageCount++
	e.state = stateFree
	p.mu.Unlock()

	p.updateGauges()
	p.broadcast()
}

// createOne opens one new connection via the adapter. On success it
// resets the consecutive-saturation counter (spec.md §3 invariant) and
// records a create metric; on failure it returns the adapter's
// classified error (typically Broken) without panicking or retrying.
func (p *Pool) createOne(ctx context.Context) (driver.Handle, error) {
	h, err := p.adapter.Open(ctx)
	if err != nil {
		p.log.Errorw("connection create failed", "error", err)
		return nil, err
	}
	p.metrics.ConnectionsCreated.Inc()
	p.saturationCount.Store(0)
	p.log.Debugw("connection created", "backend", h.Backend())
	return h, nil
}

func (p *Pool) recordSaturation() {
	p.metrics.SaturationEventsTotal.Inc()
	n := p.saturationCount.Add(1)
	if p.cfg.LogSaturationThreshold > 0 && int(n) >= p.cfg.LogSaturationThreshold {
		p.log.Warnw("pool saturated", "consecutive_events", n)
		p.saturationCount.Store(0)
	}
}

// broadcast wakes every goroutine currently waiting in Acquire, by
// closing the current notification channel and installing a fresh one.
func (p *Pool) broadcast() {
	p.mu.Lock()
	close(p.notifyCh)
	p.notifyCh = make(chan struct{})
	p.mu.Unlock()
}

func (p *Pool) updateGauges() {
	p.mu.Lock()
	live := len(p.entries)
	acquired := 0
	for _, e := range p.entries {
		if e.state == stateAcquired {
			acquired++
		}
	}
	p.mu.Unlock()

	p.metrics.LiveConnections.Set(float64(live))
	p.metrics.AcquiredConnections.Set(float64(acquired))
	p.metrics.FreeConnections.Set(float64(live - acquired))
}

// healthCheckLoop is the background sweep described in spec.md §4.B: it
// validates every free connection each tick, evicts failures, and then
// tops the pool back up to MinSize — stopping early on the first Broken
// error so a down database is not hammered.
func (p *Pool) healthCheckLoop() {
	defer close(p.hcDone)

	interval := p.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = minHealthCheckInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdownCh:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pool) tick() {
	p.metrics.HealthCheckTicks.Inc()
	p.refusalLatch.Store(false)
	p.log.Debugw("health check tick start")

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HealthCheckInterval+5*time.Second)
	defer cancel()

	p.mu.Lock()
	type candidate struct {
		id     connID
		handle driver.Handle
	}
	var freeSnapshot []candidate
	for id, e := range p.entries {
		if e.state == stateFree {
			freeSnapshot = append(freeSnapshot, candidate{id: id, handle: e.handle})
		}
	}
	p.mu.Unlock()

	for _, c := range freeSnapshot {
		if err := p.adapter.Validate(ctx, c.handle, p.cfg.ValidateUsingTx); err != nil {
			p.mu.Lock()
			e, ok := p.entries[c.id]
			if ok && e.state == stateFree {
				delete(p.entries, c.id)
			} else {
				ok = false
			}
			p.mu.Unlock()
			if ok {
				p.metrics.ValidationFailures.Inc()
				p.log.Warnw("connection validation failed during health check", "conn_id", c.id, "error", err)
				p.adapter.Close(c.handle)
				p.metrics.ConnectionsClosed.Inc()
			}
		}
	}

	p.mu.Lock()
	liveCount := len(p.entries)
	p.mu.Unlock()
	p.updateGauges()

	if liveCount >= p.cfg.MinSize {
		return
	}

	if p.refusalLatch.Load() {
		return
	}

	for i := 0; i < p.cfg.MinSize-liveCount; i++ {
		h, err := p.createOne(ctx)
		if err != nil {
			if rerr.KindOf(err) == rerr.Broken {
				p.refusalLatch.Store(true)
			}
			break
		}
		p.mu.Lock()
		p.insertLocked(h)
		p.mu.Unlock()
	}
	p.updateGauges()
	p.broadcast()
}

// Close shuts the pool down: it clears the running flag, wakes every
// Acquire waiter and the health-check worker, joins the health-check
// worker, and finally closes every remaining connection. Idempotent.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	close(p.shutdownCh)
	p.broadcast()
	<-p.hcDone

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, e := range p.entries {
		p.adapter.Close(e.handle)
		p.metrics.ConnectionsClosed.Inc()
		delete(p.entries, id)
	}
	p.updateGaugesLocked()
}

func (p *Pool) updateGaugesLocked() {
	p.metrics.LiveConnections.Set(0)
	p.metrics.AcquiredConnections.Set(0)
	p.metrics.FreeConnections.Set(0)
}

// LiveCount returns the current number of connections known to the
// pool, for tests and diagnostics.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
