// Package executor implements the query execution pipeline (§4.2): the
// dual-mode prepared/text protocol dispatch, the read/write lexical
// classifier, and result normalization. It is grounded on the teacher's
// Handler.handleSQL (query/scan loop, column-type-driven conversion) and
// on the xaas-cloud-genai-toolbox mysql tool's QueryContext/Columns/
// ColumnTypes/Scan loop.
package executor

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/pool"
	"github.com/neverinfamous/mysql-mcp-go/internal/sqltypes"
)

// Executor runs SQL against a pool, implementing the §4.2 contract.
type Executor struct {
	pool *pool.Pool
}

// New builds an Executor bound to a pool.
func New(p *pool.Pool) *Executor {
	return &Executor{pool: p}
}

// Query runs sql as a SELECT-shaped statement via the prepared-statement
// protocol, falling back to the text protocol exactly once on the
// "unsupported prepared statement" driver signal (§4.2 dual-mode dispatch).
// If conn is non-nil the statement runs on that pinned connection (a live
// transaction); otherwise a connection is borrowed from the pool.
func (e *Executor) Query(ctx context.Context, sqlText string, params []interface{}, conn *pool.Conn) (*QueryResult, error) {
	return e.dispatch(ctx, sqlText, params, conn, true)
}

// Execute runs sqlText as a mutating statement using the same dual-mode
// dispatch as Query.
func (e *Executor) Execute(ctx context.Context, sqlText string, params []interface{}, conn *pool.Conn) (*QueryResult, error) {
	return e.dispatch(ctx, sqlText, params, conn, false)
}

// RawQuery bypasses the prepared-statement attempt entirely and goes
// directly to the text protocol. It exists for statements the prepared
// protocol cannot accept at all (CHECK TABLE, SAVEPOINT, RELEASE
// SAVEPOINT, ROLLBACK TO SAVEPOINT, some SHOW … LIKE forms) — callers
// that already know this must use it instead of Query/Execute.
func (e *Executor) RawQuery(ctx context.Context, sqlText string, params []interface{}, conn *pool.Conn) (*QueryResult, error) {
	if conn != nil {
		return e.runText(ctx, conn, sqlText, params)
	}
	var result *QueryResult
	err := e.pool.Query(ctx, func(c *pool.Conn) error {
		r, err := e.runText(ctx, c, sqlText, params)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (e *Executor) dispatch(ctx context.Context, sqlText string, params []interface{}, conn *pool.Conn, asQuery bool) (*QueryResult, error) {
	if conn != nil {
		return e.dispatchOn(ctx, conn, sqlText, params, asQuery)
	}

	var result *QueryResult
	var outerErr error
	borrow := e.pool.Query
	if !asQuery {
		borrow = e.pool.Execute
	}
	outerErr = borrow(ctx, func(c *pool.Conn) error {
		r, err := e.dispatchOn(ctx, c, sqlText, params, asQuery)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, outerErr
}

// dispatchOn is the actual dual-mode attempt against a single already-
// borrowed/pinned connection (§4.2, step 1-3).
func (e *Executor) dispatchOn(ctx context.Context, conn *pool.Conn, sqlText string, params []interface{}, asQuery bool) (*QueryResult, error) {
	result, err := e.runPrepared(ctx, conn, sqlText, params, asQuery)
	if err == nil {
		return result, nil
	}
	if dberrors.IsUnsupportedPreparedStatement(err) {
		return e.runText(ctx, conn, sqlText, params)
	}
	return nil, dberrors.Wrap(dberrors.KindQuery, err, dberrors.WithSQL(sqlText))
}

func (e *Executor) runPrepared(ctx context.Context, conn *pool.Conn, sqlText string, params []interface{}, asQuery bool) (*QueryResult, error) {
	start := time.Now()
	stmt, err := conn.Raw().PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	if asQuery {
		rows, err := stmt.QueryContext(ctx, params...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return normalizeRows(rows, start)
	}

	res, err := stmt.ExecContext(ctx, params...)
	if err != nil {
		return nil, err
	}
	return normalizeMutation(res, start)
}

func (e *Executor) runText(ctx context.Context, conn *pool.Conn, sqlText string, params []interface{}) (*QueryResult, error) {
	start := time.Now()
	rows, err := conn.Raw().QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindQuery, err, dberrors.WithSQL(sqlText))
	}
	defer rows.Close()
	result, err := normalizeRows(rows, start)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindQuery, err, dberrors.WithSQL(sqlText))
	}
	return result, nil
}

// dispatchOn variant used by the transaction manager for per-statement
// execution on a pinned connection outside the Query/Execute façade
// (§4.3 executeOnConnection).
func (e *Executor) ExecuteOnConnection(ctx context.Context, conn *pool.Conn, sqlText string, params []interface{}) (*QueryResult, error) {
	asQuery := ClassifyReadOnly(sqlText)
	return e.dispatchOn(ctx, conn, sqlText, params, asQuery)
}

func normalizeRows(rows *sql.Rows, start time.Time) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	meta := make([]ColumnMeta, len(cols))
	for i, name := range cols {
		meta[i] = ColumnMeta{Name: name, SemanticType: sqltypes.SemanticName(colTypes[i].DatabaseTypeName())}
	}

	var records []map[string]interface{}
	for rows.Next() {
		scanDest := make([]interface{}, len(cols))
		for i := range scanDest {
			scanDest[i] = new(interface{})
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, err
		}
		rec := make(map[string]interface{}, len(cols))
		for i, name := range cols {
			v := *(scanDest[i].(*interface{}))
			rec[name] = sqltypes.ConvertValue(v, colTypes[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		IsRows:          true,
		Columns:         meta,
		Rows:            records,
		ExecutionTimeMs: elapsedMs(start),
	}, nil
}

func normalizeMutation(res sql.Result, start time.Time) (*QueryResult, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	insertID, err := res.LastInsertId()
	if err != nil {
		insertID = 0
	}
	return &QueryResult{
		IsRows:          false,
		RowsAffected:    affected,
		LastInsertID:    insertID,
		ExecutionTimeMs: elapsedMs(start),
	}, nil
}

// ClassifyReadOnly is the lexical (first-keyword, case-insensitive)
// read/write classifier §4.2 and §9 describe as advisory, not a security
// control. It deliberately does not parse the statement, so constructs
// like `WITH cte AS (INSERT …)` are misclassified as read-only — this is
// a documented, accepted limitation (§9 Open Question), not a bug to fix
// here.
func ClassifyReadOnly(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return true
	}
	head := strings.ToUpper(fields[0])
	switch head {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "CHECK":
		return true
	default:
		return false
	}
}

// ExecuteReadQuery and ExecuteWriteQuery are thin façades that delegate to
// Query and Execute respectively; they do not call ClassifyReadOnly.
func (e *Executor) ExecuteReadQuery(ctx context.Context, sqlText string, params []interface{}, conn *pool.Conn) (*QueryResult, error) {
	return e.Query(ctx, sqlText, params, conn)
}

func (e *Executor) ExecuteWriteQuery(ctx context.Context, sqlText string, params []interface{}, conn *pool.Conn) (*QueryResult, error) {
	return e.Execute(ctx, sqlText, params, conn)
}
