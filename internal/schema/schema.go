// Package schema implements the schema introspector (§5): reading
// information_schema and SHOW INDEX, grouping composite indexes, and
// caching results per (database, table) until InvalidateTable or
// InvalidateAll clears them. The cache is best-effort, not
// correctness-critical: schema changes made without one of those calls
// are not seen until the entry is invalidated.
// It is grounded on the teacher's Handler.handleSQL query/scan pipeline,
// reused here through the executor rather than against *sql.DB directly.
package schema

import (
	"context"
	"strings"
	"sync"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/executor"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name         string
	DataType     string
	IsNullable   bool
	ColumnKey    string
	DefaultValue *string
	Extra        string
}

// IndexInfo describes one index, with composite indexes grouped into a
// single entry carrying all of their columns in sequence order.
type IndexInfo struct {
	Name      string
	Unique    bool
	Columns   []string
	IndexType string
}

// TableInfo is the full introspection record for one table. Exists is
// false (with Columns/Indexes left empty) when the table is missing,
// matching the dispatcher's {exists:false} shaping convention.
type TableInfo struct {
	Database string
	Table    string
	Exists   bool
	Columns  []ColumnInfo
	Indexes  []IndexInfo
}

type cacheKey struct {
	db, table string
}

// Introspector reads table/index metadata through an Executor and caches
// it per (database, table) until explicitly invalidated.
type Introspector struct {
	exec *executor.Executor

	mu    sync.RWMutex
	cache map[cacheKey]*TableInfo
}

// New builds an Introspector bound to exec.
func New(exec *executor.Executor) *Introspector {
	return &Introspector{exec: exec, cache: make(map[cacheKey]*TableInfo)}
}

// DescribeTable returns the cached TableInfo for (database, table),
// populating the cache on a miss via information_schema + SHOW INDEX.
func (i *Introspector) DescribeTable(ctx context.Context, database, table string) (*TableInfo, error) {
	key := cacheKey{db: database, table: table}

	i.mu.RLock()
	if cached, ok := i.cache[key]; ok {
		i.mu.RUnlock()
		return cached, nil
	}
	i.mu.RUnlock()

	info, err := i.loadTable(ctx, database, table)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.cache[key] = info
	i.mu.Unlock()

	return info, nil
}

// ListTables returns the names of every base table in database.
func (i *Introspector) ListTables(ctx context.Context, database string) ([]string, error) {
	result, err := i.exec.Query(ctx,
		"SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME",
		[]interface{}{database}, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if name, ok := row["TABLE_NAME"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (i *Introspector) loadTable(ctx context.Context, database, table string) (*TableInfo, error) {
	if !txmanager.ValidIdentifier(database) {
		return nil, dberrors.New(dberrors.KindValidation, "invalid database name: "+database)
	}
	if !txmanager.ValidIdentifier(table) {
		return nil, dberrors.New(dberrors.KindValidation, "invalid table name: "+table)
	}

	colResult, err := i.exec.Query(ctx,
		`SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT, EXTRA
		 FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`,
		[]interface{}{database, table}, nil)
	if err != nil {
		return nil, err
	}

	if len(colResult.Rows) == 0 {
		return &TableInfo{Database: database, Table: table, Exists: false}, nil
	}

	columns := make([]ColumnInfo, 0, len(colResult.Rows))
	for _, row := range colResult.Rows {
		col := ColumnInfo{
			Name:       stringOrEmpty(row["COLUMN_NAME"]),
			DataType:   stringOrEmpty(row["DATA_TYPE"]),
			IsNullable: strings.EqualFold(stringOrEmpty(row["IS_NULLABLE"]), "YES"),
			ColumnKey:  stringOrEmpty(row["COLUMN_KEY"]),
			Extra:      stringOrEmpty(row["EXTRA"]),
		}
		if v, ok := row["COLUMN_DEFAULT"].(string); ok {
			col.DefaultValue = &v
		}
		columns = append(columns, col)
	}

	indexes, err := i.loadIndexes(ctx, database, table)
	if err != nil {
		return nil, err
	}

	return &TableInfo{
		Database: database,
		Table:    table,
		Exists:   true,
		Columns:  columns,
		Indexes:  indexes,
	}, nil
}

// loadIndexes runs SHOW INDEX and groups rows sharing the same Key_name
// into one composite IndexInfo, ordered by Seq_in_index. SHOW INDEX is
// one of the statements the text protocol must serve directly — issued
// here via RawQuery (§4.2).
func (i *Introspector) loadIndexes(ctx context.Context, database, table string) ([]IndexInfo, error) {
	qualified := "`" + database + "`.`" + table + "`"
	result, err := i.exec.RawQuery(ctx, "SHOW INDEX FROM "+qualified, nil, nil)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0)
	byName := make(map[string]*IndexInfo)
	for _, row := range result.Rows {
		name := stringOrEmpty(row["Key_name"])
		entry, ok := byName[name]
		if !ok {
			entry = &IndexInfo{
				Name:      name,
				Unique:    toInt(row["Non_unique"]) == 0,
				IndexType: stringOrEmpty(row["Index_type"]),
			}
			byName[name] = entry
			order = append(order, name)
		}
		entry.Columns = append(entry.Columns, stringOrEmpty(row["Column_name"]))
	}

	indexes := make([]IndexInfo, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *byName[name])
	}
	return indexes, nil
}

// InvalidateTable clears the cached entry for one table, called after any
// DDL statement affecting it (CREATE/ALTER/DROP TABLE, CREATE/DROP INDEX).
func (i *Introspector) InvalidateTable(database, table string) {
	i.mu.Lock()
	delete(i.cache, cacheKey{db: database, table: table})
	i.mu.Unlock()
}

// InvalidateAll clears the entire cache, used when a statement's target
// table cannot be determined precisely.
func (i *Introspector) InvalidateAll() {
	i.mu.Lock()
	i.cache = make(map[cacheKey]*TableInfo)
	i.mu.Unlock()
}

func stringOrEmpty(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		if n == "0" {
			return 0
		}
		return 1
	default:
		return 0
	}
}
