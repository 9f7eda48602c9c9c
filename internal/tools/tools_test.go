package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neverinfamous/mysql-mcp-go/internal/config"
	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/executor"
	"github.com/neverinfamous/mysql-mcp-go/internal/pool"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/schema"
	"github.com/neverinfamous/mysql-mcp-go/internal/testdriver"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
)

func newTestDeps(t *testing.T) (Deps, *pool.Pool, *testdriver.Script) {
	t.Helper()
	script := testdriver.NewScript()
	dsn := t.Name()
	testdriver.Register(dsn, script)

	cfg := config.PoolConfig{Min: 1, Max: 2, AcquireTimeout: 2 * time.Second}
	p := pool.NewForTesting("testdriver", dsn, cfg, nil)
	require.NoError(t, p.Initialize(context.Background()))
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	exec := executor.New(p)
	return Deps{
		Exec:   exec,
		Tx:     txmanager.New(p, exec),
		Schema: schema.New(exec),
		PoolStats: func() interface{} {
			return p.Stats()
		},
	}, p, script
}

func mustHandler(t *testing.T, reg *registry.Registry, name string) func(context.Context, map[string]interface{}) (interface{}, error) {
	t.Helper()
	def, ok := reg.Get(name)
	require.True(t, ok, "tool %s must be registered", name)
	return def.Handler
}

func TestRegister_RegistersEveryToolInEveryGroup(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	names := []string{
		"mysql_query", "mysql_execute",
		"describe_table", "list_tables", "create_table", "drop_table", "create_index",
		"begin_transaction", "commit_transaction", "rollback_transaction",
		"create_savepoint", "release_savepoint", "rollback_to_savepoint", "execute_atomic",
		"mysql_drop_table", "mysql_flush_tables",
		"mysql_list_active_queries", "mysql_pool_stats",
		"check_table",
	}
	for _, n := range names {
		_, ok := reg.Get(n)
		assert.True(t, ok, "expected tool %s to be registered", n)
	}
}

func TestMySQLQuery_ReturnsColumnsAndRows(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("SELECT id FROM users", &testdriver.Result{
		Columns:     []string{"id"},
		ColumnTypes: []string{"INT"},
		Rows:        []testdriver.Row{{"id": int64(1)}},
	})

	h := mustHandler(t, reg, "mysql_query")
	out, err := h(context.Background(), map[string]interface{}{"sql": "SELECT id FROM users"})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, []string{"id:INT"}, payload["columns"])
}

func TestMySQLExecute_ReturnsRowsAffectedAndLastInsertID(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("INSERT INTO users (name) VALUES (?)", &testdriver.Result{RowsAffected: 1, LastInsertID: 42})

	h := mustHandler(t, reg, "mysql_execute")
	out, err := h(context.Background(), map[string]interface{}{
		"sql":    "INSERT INTO users (name) VALUES (?)",
		"params": []interface{}{"alice"},
	})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, true, payload["success"])
	assert.EqualValues(t, 1, payload["rows_affected"])
	assert.EqualValues(t, 42, payload["last_insert_id"])
}

func TestDescribeTable_ReportsExistsFalseForMissingTable(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	h := mustHandler(t, reg, "describe_table")
	out, err := h(context.Background(), map[string]interface{}{"database": "app", "table": "ghost"})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, false, payload["exists"])
}

func TestListTables_ReturnsNames(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On(
		"SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME",
		&testdriver.Result{Columns: []string{"TABLE_NAME"}, Rows: []testdriver.Row{{"TABLE_NAME": "orders"}, {"TABLE_NAME": "users"}}},
	)

	h := mustHandler(t, reg, "list_tables")
	out, err := h(context.Background(), map[string]interface{}{"database": "app"})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, []string{"orders", "users"}, payload["tables"])
}

func TestCreateTable_RejectsInvalidTableNameBeforeExecuting(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.Default = &testdriver.Result{Err: simpleToolErr("should never be reached")}

	h := mustHandler(t, reg, "create_table")
	_, err := h(context.Background(), map[string]interface{}{
		"database":   "app",
		"table":      "users; DROP TABLE x",
		"definition": "id INT",
	})
	require.Error(t, err)
	assert.True(t, dberrors.Is(err, dberrors.KindValidation))
}

func TestCreateTable_RunsCreateTableStatement(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("CREATE TABLE `app`.`users` (id INT)", &testdriver.Result{})

	h := mustHandler(t, reg, "create_table")
	out, err := h(context.Background(), map[string]interface{}{
		"database":   "app",
		"table":      "users",
		"definition": "id INT",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
}

func TestDropTable_RunsDropTableStatement(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("DROP TABLE `app`.`users`", &testdriver.Result{})

	h := mustHandler(t, reg, "drop_table")
	out, err := h(context.Background(), map[string]interface{}{"database": "app", "table": "users"})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
}

func TestCreateIndex_RejectsInvalidColumnName(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	h := mustHandler(t, reg, "create_index")
	_, err := h(context.Background(), map[string]interface{}{
		"database":   "app",
		"table":      "users",
		"index_name": "idx_email",
		"columns":    []interface{}{"email; DROP TABLE x"},
	})
	require.Error(t, err)
	assert.True(t, dberrors.Is(err, dberrors.KindValidation))
}

func TestCreateIndex_BuildsUniqueIndexStatement(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("CREATE UNIQUE INDEX `idx_email` ON `app`.`users` (`email`)", &testdriver.Result{})

	h := mustHandler(t, reg, "create_index")
	out, err := h(context.Background(), map[string]interface{}{
		"database":   "app",
		"table":      "users",
		"index_name": "idx_email",
		"columns":    []interface{}{"email"},
		"unique":     true,
	})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
}

func TestBeginCommitTransaction_RoundTrips(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	begin := mustHandler(t, reg, "begin_transaction")
	out, err := begin(context.Background(), map[string]interface{}{"isolation_level": "READ COMMITTED"})
	require.NoError(t, err)
	txID := out.(map[string]interface{})["transaction_id"].(string)
	assert.NotEmpty(t, txID)

	commit := mustHandler(t, reg, "commit_transaction")
	out, err = commit(context.Background(), map[string]interface{}{"transaction_id": txID})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
}

func TestRollbackTransaction_ReleasesHandle(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	begin := mustHandler(t, reg, "begin_transaction")
	out, err := begin(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	txID := out.(map[string]interface{})["transaction_id"].(string)

	rollback := mustHandler(t, reg, "rollback_transaction")
	out, err = rollback(context.Background(), map[string]interface{}{"transaction_id": txID})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
}

func TestSavepointTools_Lifecycle(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	begin := mustHandler(t, reg, "begin_transaction")
	out, err := begin(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	txID := out.(map[string]interface{})["transaction_id"].(string)

	create := mustHandler(t, reg, "create_savepoint")
	_, err = create(context.Background(), map[string]interface{}{"transaction_id": txID, "name": "sp1"})
	require.NoError(t, err)

	rollbackTo := mustHandler(t, reg, "rollback_to_savepoint")
	_, err = rollbackTo(context.Background(), map[string]interface{}{"transaction_id": txID, "name": "sp1"})
	require.NoError(t, err)

	release := mustHandler(t, reg, "release_savepoint")
	_, err = release(context.Background(), map[string]interface{}{"transaction_id": txID, "name": "sp1"})
	require.NoError(t, err)

	rollback := mustHandler(t, reg, "rollback_transaction")
	_, err = rollback(context.Background(), map[string]interface{}{"transaction_id": txID})
	require.NoError(t, err)
}

func TestExecuteAtomic_RejectsEmptyStatements(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	h := mustHandler(t, reg, "execute_atomic")
	out, err := h(context.Background(), map[string]interface{}{"statements": []interface{}{}})
	require.NoError(t, err)
	payload, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, payload["success"])
	assert.NotEmpty(t, payload["reason"])
}

func TestExecuteAtomic_RunsAllStatementsAndCommits(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("UPDATE accounts SET balance = balance - 1 WHERE id = 1", &testdriver.Result{RowsAffected: 1})
	script.On("UPDATE accounts SET balance = balance + 1 WHERE id = 2", &testdriver.Result{RowsAffected: 1})

	h := mustHandler(t, reg, "execute_atomic")
	out, err := h(context.Background(), map[string]interface{}{
		"statements": []interface{}{
			"UPDATE accounts SET balance = balance - 1 WHERE id = 1",
			"UPDATE accounts SET balance = balance + 1 WHERE id = 2",
		},
	})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, true, payload["success"])
}

func TestMySQLDropTable_RequiresAdminScopeOnDefinition(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	def, ok := reg.Get("mysql_drop_table")
	require.True(t, ok)
	assert.Contains(t, def.RequiredScopes, "admin")
	assert.True(t, def.MutatesSchema)
}

func TestMySQLDropTable_RunsDropStatement(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("DROP TABLE `app`.`legacy`", &testdriver.Result{})

	h := mustHandler(t, reg, "mysql_drop_table")
	out, err := h(context.Background(), map[string]interface{}{"database": "app", "table": "legacy"})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
}

func TestMySQLFlushTables_WithNoTablesFlushesAll(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("FLUSH TABLES", &testdriver.Result{})

	h := mustHandler(t, reg, "mysql_flush_tables")
	out, err := h(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
}

func TestMySQLFlushTables_RejectsInvalidTableName(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	h := mustHandler(t, reg, "mysql_flush_tables")
	_, err := h(context.Background(), map[string]interface{}{"tables": []interface{}{"users; DROP TABLE x"}})
	require.Error(t, err)
	assert.True(t, dberrors.Is(err, dberrors.KindValidation))
}

func TestMySQLListActiveQueries_UsesDefaultsAndReturnsPayload(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On(listActiveQueriesStatement, &testdriver.Result{
		Columns: []string{"processlist_id"},
		Rows:    []testdriver.Row{{"processlist_id": int64(7)}},
	})

	h := mustHandler(t, reg, "mysql_list_active_queries")
	out, err := h(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, true, payload["success"])
}

func TestMySQLPoolStats_ReportsPoolSnapshot(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	h := mustHandler(t, reg, "mysql_pool_stats")
	out, err := h(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, true, payload["success"])
	assert.NotNil(t, payload["stats"])
}

func TestMySQLPoolStats_WithoutPoolStatsCallbackStillSucceeds(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	deps.PoolStats = nil
	reg := registry.New()
	Register(reg, deps)

	h := mustHandler(t, reg, "mysql_pool_stats")
	out, err := h(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, true, out.(map[string]interface{})["success"])
	_, hasStats := out.(map[string]interface{})["stats"]
	assert.False(t, hasStats)
}

func TestCheckTable_GoesThroughRawQueryTextProtocol(t *testing.T) {
	deps, _, script := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)
	script.On("CHECK TABLE `app`.`users`", &testdriver.Result{
		Columns: []string{"Table", "Msg_text"},
		Rows:    []testdriver.Row{{"Table": "app.users", "Msg_text": "OK"}},
	})

	h := mustHandler(t, reg, "check_table")
	out, err := h(context.Background(), map[string]interface{}{"database": "app", "table": "users"})
	require.NoError(t, err)
	payload := out.(map[string]interface{})
	assert.Equal(t, true, payload["success"])
}

func TestCheckTable_RejectsInvalidTableName(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	reg := registry.New()
	Register(reg, deps)

	h := mustHandler(t, reg, "check_table")
	_, err := h(context.Background(), map[string]interface{}{"database": "app", "table": "users; DROP TABLE x"})
	require.Error(t, err)
	assert.True(t, dberrors.Is(err, dberrors.KindValidation))
}

type simpleToolErrT string

func (e simpleToolErrT) Error() string { return string(e) }

func simpleToolErr(msg string) error { return simpleToolErrT(msg) }
