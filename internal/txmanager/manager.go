// Package txmanager implements the identifier-keyed, multi-connection
// transaction manager described in §4.3. The handle registry and
// begin/commit/rollback lifecycle are adapted from the teacher's
// server/transactions.go TransactionManager/Transaction types, generalized
// from a single-database-handle hash to a UUID-v4-keyed map with
// savepoints and isolation levels as the spec requires.
package txmanager

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/executor"
	"github.com/neverinfamous/mysql-mcp-go/internal/pool"
)

// allowedIsolationLevels is the closed set §4.3 requires the level be
// validated against before any string interpolation happens.
var allowedIsolationLevels = map[string]bool{
	"READ UNCOMMITTED": true,
	"READ COMMITTED":   true,
	"REPEATABLE READ":  true,
	"SERIALIZABLE":     true,
}

// identifierRe is the strict identifier regex savepoint names (and other
// unparameterizable identifiers) must match (§4.3, §4.4).
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to interpolate directly
// into SQL as a savepoint/table/column/index/event name.
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// Handle is the opaque transaction token returned by Begin.
type Handle string

// handle is the manager's internal bookkeeping for one live transaction.
type handle struct {
	id        Handle
	conn      *pool.Conn
	isolation string

	mu         sync.Mutex
	savepoints []string
	startedAt  time.Time
}

// Manager is the adapter's single shared transaction map (§3, §5).
type Manager struct {
	pool *pool.Pool
	exec *executor.Executor

	mu     sync.RWMutex
	active map[Handle]*handle
}

// New builds a Manager bound to pool/exec.
func New(p *pool.Pool, exec *executor.Executor) *Manager {
	return &Manager{
		pool:   p,
		exec:   exec,
		active: make(map[Handle]*handle),
	}
}

// Begin validates the isolation level against the closed set before any
// string interpolation, borrows a connection, issues SET TRANSACTION
// ISOLATION LEVEL (if requested) then BEGIN, mints a UUID, and registers
// the handle. Any step failing releases the connection and returns a
// KindTransaction error (§4.3, §8 testable property 3).
func (m *Manager) Begin(ctx context.Context, isolation string) (Handle, error) {
	if isolation != "" && !allowedIsolationLevels[isolation] {
		return "", dberrors.New(dberrors.KindTransaction, "invalid isolation level: "+isolation)
	}

	conn, err := m.pool.Borrow(ctx)
	if err != nil {
		return "", dberrors.Wrap(dberrors.KindTransaction, err)
	}

	if isolation != "" {
		stmt := "SET TRANSACTION ISOLATION LEVEL " + isolation
		if _, err := m.exec.RawQuery(ctx, stmt, nil, conn); err != nil {
			m.pool.Return(conn)
			return "", dberrors.Wrap(dberrors.KindTransaction, err)
		}
	}

	if _, err := m.exec.RawQuery(ctx, "BEGIN", nil, conn); err != nil {
		m.pool.Return(conn)
		return "", dberrors.Wrap(dberrors.KindTransaction, err)
	}

	id := Handle(uuid.NewString())
	h := &handle{id: id, conn: conn, isolation: isolation, startedAt: time.Now()}

	m.mu.Lock()
	m.active[id] = h
	m.mu.Unlock()

	return id, nil
}

// ConnFor returns the pinned connection for a live handle, for the
// dispatcher to pass through to the executor as the txHandle parameter.
func (m *Manager) ConnFor(h Handle) (*pool.Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.active[h]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// Commit issues COMMIT and releases the connection in all cases — commit
// success, commit failure — removing the handle from the active map
// either way (§4.3, §8 testable property 2).
func (m *Manager) Commit(ctx context.Context, h Handle) error {
	return m.finish(ctx, h, "COMMIT")
}

// Rollback issues ROLLBACK and releases the connection in all cases.
func (m *Manager) Rollback(ctx context.Context, h Handle) error {
	return m.finish(ctx, h, "ROLLBACK")
}

func (m *Manager) finish(ctx context.Context, h Handle, command string) error {
	m.mu.Lock()
	entry, ok := m.active[h]
	if ok {
		delete(m.active, h)
	}
	m.mu.Unlock()

	if !ok {
		return dberrors.New(dberrors.KindTransaction, "unknown transaction handle")
	}

	_, err := m.exec.RawQuery(ctx, command, nil, entry.conn)
	m.pool.Return(entry.conn)
	if err != nil {
		return dberrors.Wrap(dberrors.KindTransaction, err)
	}
	return nil
}

// Savepoint issues SAVEPOINT <name> on the handle's pinned connection.
// Names are validated against identifierRe before use — they are never
// parameterizable — and the statement is issued via the text protocol,
// since SAVEPOINT is rejected as a prepared statement (§4.3).
func (m *Manager) Savepoint(ctx context.Context, h Handle, name string) error {
	if !ValidIdentifier(name) {
		return dberrors.New(dberrors.KindValidation, "invalid savepoint name: "+name)
	}
	entry, ok := m.lookup(h)
	if !ok {
		return dberrors.New(dberrors.KindTransaction, "unknown transaction handle")
	}
	if _, err := m.exec.RawQuery(ctx, "SAVEPOINT "+name, nil, entry.conn); err != nil {
		return dberrors.Wrap(dberrors.KindTransaction, err)
	}
	entry.mu.Lock()
	entry.savepoints = append(entry.savepoints, name)
	entry.mu.Unlock()
	return nil
}

// ReleaseSavepoint issues RELEASE SAVEPOINT <name>.
func (m *Manager) ReleaseSavepoint(ctx context.Context, h Handle, name string) error {
	if !ValidIdentifier(name) {
		return dberrors.New(dberrors.KindValidation, "invalid savepoint name: "+name)
	}
	entry, ok := m.lookup(h)
	if !ok {
		return dberrors.New(dberrors.KindTransaction, "unknown transaction handle")
	}
	if _, err := m.exec.RawQuery(ctx, "RELEASE SAVEPOINT "+name, nil, entry.conn); err != nil {
		return dberrors.Wrap(dberrors.KindTransaction, err)
	}
	entry.mu.Lock()
	entry.removeSavepoint(name)
	entry.mu.Unlock()
	return nil
}

// RollbackToSavepoint issues ROLLBACK TO SAVEPOINT <name>.
func (m *Manager) RollbackToSavepoint(ctx context.Context, h Handle, name string) error {
	if !ValidIdentifier(name) {
		return dberrors.New(dberrors.KindValidation, "invalid savepoint name: "+name)
	}
	entry, ok := m.lookup(h)
	if !ok {
		return dberrors.New(dberrors.KindTransaction, "unknown transaction handle")
	}
	if _, err := m.exec.RawQuery(ctx, "ROLLBACK TO SAVEPOINT "+name, nil, entry.conn); err != nil {
		return dberrors.Wrap(dberrors.KindTransaction, err)
	}
	return nil
}

func (h *handle) removeSavepoint(name string) {
	for i, sp := range h.savepoints {
		if sp == name {
			h.savepoints = append(h.savepoints[:i], h.savepoints[i+1:]...)
			return
		}
	}
}

func (m *Manager) lookup(h Handle) (*handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.active[h]
	return entry, ok
}

// AtomicStatement is one step of an ExecuteAtomic call.
type AtomicStatement struct {
	SQL    string
	Params []interface{}
}

// AtomicResult captures what ExecuteAtomic produced for one statement.
type AtomicResult struct {
	IsRows       bool
	Rows         []map[string]interface{}
	RowsAffected int64
}

// ExecuteAtomic begins a transaction, runs each statement in order via
// ExecuteOnConnection, and commits; on any failure it rolls back and
// surfaces a KindTransaction error stating the set was rolled back. An
// empty statement list returns a KindValidation error without beginning a
// transaction; the execute_atomic tool checks for an empty list itself and
// reports it as {success: false, reason} (§4.3).
func (m *Manager) ExecuteAtomic(ctx context.Context, statements []AtomicStatement, isolation string) ([]AtomicResult, error) {
	if len(statements) == 0 {
		return nil, dberrors.New(dberrors.KindValidation, "executeAtomic requires at least one statement")
	}

	h, err := m.Begin(ctx, isolation)
	if err != nil {
		return nil, err
	}

	conn, _ := m.ConnFor(h)
	results := make([]AtomicResult, 0, len(statements))

	for _, stmt := range statements {
		r, err := m.exec.ExecuteOnConnection(ctx, conn, stmt.SQL, stmt.Params)
		if err != nil {
			_ = m.Rollback(ctx, h)
			return nil, dberrors.New(dberrors.KindTransaction, "statement set rolled back: "+err.Error())
		}
		if r.IsRows {
			results = append(results, AtomicResult{IsRows: true, Rows: r.Rows})
		} else {
			results = append(results, AtomicResult{IsRows: false, RowsAffected: r.RowsAffected})
		}
	}

	if err := m.Commit(ctx, h); err != nil {
		return nil, err
	}
	return results, nil
}

// Stats reports active-transaction counters, mirroring the teacher's
// TransactionManager.GetStats.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := make([]map[string]interface{}, 0, len(m.active))
	for id, h := range m.active {
		h.mu.Lock()
		txs = append(txs, map[string]interface{}{
			"id":       string(id),
			"duration": time.Since(h.startedAt).String(),
		})
		h.mu.Unlock()
	}
	return map[string]interface{}{
		"active_transactions": len(m.active),
		"transactions":        txs,
	}
}

// Drain iterates the active map, attempting a rollback on each connection
// (ignoring individual failures beyond logging) and releasing it, for use
// during adapter shutdown — only after this may the pool itself shut down
// (§4.3 adapter shutdown obligation, §8 scenario F).
func (m *Manager) Drain(ctx context.Context, onRollbackErr func(Handle, error)) {
	m.mu.Lock()
	all := m.active
	m.active = make(map[Handle]*handle)
	m.mu.Unlock()

	for id, entry := range all {
		if _, err := m.exec.RawQuery(ctx, "ROLLBACK", nil, entry.conn); err != nil && onRollbackErr != nil {
			onRollbackErr(id, err)
		}
		m.pool.Return(entry.conn)
	}
}
