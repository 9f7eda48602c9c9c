// Package pool implements the bounded connection pool described in §4.1:
// acquisition, health probing, idle-timeout eviction and shutdown. The
// acquire loop and idle-reaper are adapted from the
// db-bouncer pack repo's internal/pool.TenantPool (warm-up, idle reaping,
// exhaustion accounting); borrowing itself is re-expressed as a strict
// FIFO channel queue rather than a broadcast condition variable, so
// concurrent borrowers really are served in arrival order as §4.1 requires.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/neverinfamous/mysql-mcp-go/internal/config"
	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
)

// Health reports the pool's current condition (§4.1 health()).
type Health struct {
	Connected         bool
	LatencyMs         float64
	ActiveConnections int
	IdleConnections   int
	Error             string
}

// Stats mirrors Health plus the counters operators care about for capacity
// planning, adapted from db-bouncer's Stats struct.
type Stats struct {
	Active    int
	Idle      int
	Total     int
	Waiting   int
	MaxConns  int
	MinConns  int
	Exhausted int64
}

type waiter struct {
	ch chan *Conn
}

// Pool is a bounded set of MySQL connections with the {min, max,
// acquire-timeout, idle-timeout, charset, tz} configuration from §3.
type Pool struct {
	cfg        config.PoolConfig
	dsn        string
	driverName string
	db         *sql.DB
	logger     *slog.Logger

	mu        sync.Mutex
	idle      []*Conn
	active    map[*Conn]struct{}
	total     int
	waiters   []*waiter
	exhausted int64
	closed    bool
	stopCh    chan struct{}

	initOnce sync.Once
	initErr  error
}

// New creates a Pool bound to dsn, dialed through the go-sql-driver/mysql
// driver. The pool does not dial until Initialize is called.
func New(dsn string, cfg config.PoolConfig, logger *slog.Logger) *Pool {
	return newWithDriver("mysql", dsn, cfg, logger)
}

// newWithDriver is the same constructor parameterized over the registered
// driver name, so tests can bind a Pool to the testdriver fake instead of
// the real MySQL driver without changing any borrow/return/health logic.
func newWithDriver(driverName, dsn string, cfg config.PoolConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:        cfg,
		dsn:        dsn,
		driverName: driverName,
		logger:     logger,
		active:     make(map[*Conn]struct{}),
		stopCh:     make(chan struct{}),
	}
}

// NewForTesting builds a Pool against an arbitrary registered database/sql
// driver name (e.g. the testdriver fake). Production code always uses New.
func NewForTesting(driverName, dsn string, cfg config.PoolConfig, logger *slog.Logger) *Pool {
	return newWithDriver(driverName, dsn, cfg, logger)
}

// Initialize brings up min connections and verifies each with a probe.
// It is idempotent after the first successful call (§4.1).
func (p *Pool) Initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		db, err := sql.Open(p.driverName, p.dsn)
		if err != nil {
			p.initErr = dberrors.Wrap(dberrors.KindConnection, err)
			return
		}
		// We manage min/max/idle ourselves; let the driver open as many
		// physical sockets as we ask it to via Conn(ctx).
		db.SetMaxOpenConns(0)
		p.db = db

		established := 0
		for i := 0; i < p.cfg.Min; i++ {
			c, err := p.dial(ctx)
			if err == nil {
				if err = c.probe(ctx); err != nil {
					c.close()
				}
			}
			if err != nil {
				p.logger.Warn("pool warm-up connection failed", "index", i+1, "err", err)
				continue
			}
			c.markIdle()
			p.idle = append(p.idle, c)
			p.total++
			established++
		}
		if established == 0 && p.cfg.Min > 0 {
			p.initErr = dberrors.New(dberrors.KindConnection, "failed to establish any connection during initialize")
			return
		}

		go p.reapLoop()
		p.logger.Info("pool initialized", "min", p.cfg.Min, "max", p.cfg.Max, "established", established)
	})
	return p.initErr
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	raw, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if p.cfg.Charset != "" {
		if _, err := raw.ExecContext(ctx, fmt.Sprintf("SET NAMES %s", p.cfg.Charset)); err != nil {
			raw.Close()
			return nil, err
		}
	}
	if p.cfg.TZ != "" {
		if _, err := raw.ExecContext(ctx, "SET time_zone = ?", p.cfg.TZ); err != nil {
			raw.Close()
			return nil, err
		}
	}
	return newConn(raw), nil
}

// Borrow returns an in-use connection, queueing concurrent callers FIFO
// and failing with a KindConnection error after the acquire timeout.
func (p *Pool) Borrow(ctx context.Context) (*Conn, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, dberrors.ErrNotConnected
	}

	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if c.idleFor() > p.cfg.IdleTimeout && p.cfg.IdleTimeout > 0 {
			p.total--
			p.mu.Unlock()
			c.close()
			p.mu.Lock()
			continue
		}
		if err := c.probe(ctx); err != nil {
			p.total--
			p.mu.Unlock()
			c.close()
			p.mu.Lock()
			continue
		}
		c.markActive()
		p.active[c] = struct{}{}
		p.mu.Unlock()
		return c, nil
	}

	if p.total < p.cfg.Max {
		p.total++
		p.mu.Unlock()

		c, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, dberrors.Wrap(dberrors.KindConnection, err)
		}
		c.markActive()
		p.mu.Lock()
		p.active[c] = struct{}{}
		p.mu.Unlock()
		return c, nil
	}

	// Pool exhausted: enqueue a FIFO waiter.
	w := &waiter{ch: make(chan *Conn, 1)}
	p.waiters = append(p.waiters, w)
	p.exhausted++
	p.mu.Unlock()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case c, ok := <-w.ch:
		if !ok {
			return nil, dberrors.ErrNotConnected
		}
		return c, nil
	case <-timer.C:
		p.removeWaiter(w)
		return nil, dberrors.New(dberrors.KindConnection, "acquire timeout: pool exhausted")
	case <-ctx.Done():
		p.removeWaiter(w)
		return nil, dberrors.Wrap(dberrors.KindConnection, ctx.Err())
	}
}

func (p *Pool) removeWaiter(target *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == target {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// Return hands a connection back — to the next FIFO waiter if one is
// queued, otherwise onto the idle list.
func (p *Pool) Return(c *Conn) {
	p.mu.Lock()

	delete(p.active, c)

	if p.closed || c.isUnhealthy() {
		p.total--
		p.mu.Unlock()
		c.close()
		return
	}

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		c.markActive()
		p.active[c] = struct{}{}
		p.mu.Unlock()
		w.ch <- c
		return
	}

	c.markIdle()
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// withConn borrows, runs fn, and always returns the connection — atomically
// on all paths including panics, per §4.1.
func (p *Pool) withConn(ctx context.Context, fn func(*Conn) error) error {
	c, err := p.Borrow(ctx)
	if err != nil {
		return err
	}
	defer p.Return(c)

	defer func() {
		if r := recover(); r != nil {
			c.markUnhealthy()
			panic(r)
		}
	}()

	return fn(c)
}

// Query and Execute both run fn with a borrowed connection under the same
// borrow/return guarantee; the pool treats them identically, and the
// choice between the text and prepared-statement protocols is left to the
// executor.
func (p *Pool) Query(ctx context.Context, fn func(*Conn) error) error {
	return p.withConn(ctx, fn)
}

func (p *Pool) Execute(ctx context.Context, fn func(*Conn) error) error {
	return p.withConn(ctx, fn)
}

// Health reports the pool's condition; safe to call concurrently with any
// other operation (§4.1).
func (p *Pool) Health(ctx context.Context) Health {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Health{Connected: false, Error: dberrors.ErrNotConnected.Error()}
	}
	active, idle := len(p.active), len(p.idle)
	p.mu.Unlock()

	start := time.Now()
	c, err := p.Borrow(ctx)
	if err != nil {
		return Health{Connected: false, ActiveConnections: active, IdleConnections: idle, Error: err.Error()}
	}
	latency := time.Since(start)
	p.Return(c)

	return Health{
		Connected:         true,
		LatencyMs:         float64(latency.Microseconds()) / 1000.0,
		ActiveConnections: active,
		IdleConnections:   idle,
	}
}

// Stats returns a point-in-time snapshot for monitoring/metrics export.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:    len(p.active),
		Idle:      len(p.idle),
		Total:     p.total,
		Waiting:   len(p.waiters),
		MaxConns:  p.cfg.Max,
		MinConns:  p.cfg.Min,
		Exhausted: p.exhausted,
	}
}

// Shutdown stops accepting new borrows, fails every queued waiter, and
// closes the idle connections and the underlying database handle. It does
// not wait for connections that are currently borrowed; each of those is
// closed when it is returned. Every call after Shutdown fails with the fixed
// "Not connected" error (§4.1, §8 testable property 1).
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	waiters := p.waiters
	p.waiters = nil
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.stopCh)

	for _, w := range waiters {
		close(w.ch)
	}
	for _, c := range idle {
		c.close()
	}

	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// reapLoop evicts idle connections past their idle-timeout, adapted from
// db-bouncer's reapLoop.
func (p *Pool) reapLoop() {
	if p.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(p.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pool) reapOnce() {
	p.mu.Lock()
	keep := p.idle[:0]
	var evict []*Conn
	for _, c := range p.idle {
		if c.idleFor() > p.cfg.IdleTimeout && p.total > p.cfg.Min {
			evict = append(evict, c)
			p.total--
			continue
		}
		keep = append(keep, c)
	}
	p.idle = keep
	p.mu.Unlock()

	for _, c := range evict {
		c.close()
	}
}
