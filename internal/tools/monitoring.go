package tools

import (
	"context"

	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/scope"
	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

// listActiveQueriesStatement is ported from the xaas-cloud-genai-toolbox
// mysqllistactivequeries tool — same join shape, same parameter order
// (min_duration_secs twice for the "IS NULL OR >=" guard, then limit).
const listActiveQueriesStatement = `
	SELECT
		p.id AS processlist_id,
		substring(IFNULL(p.info, t.trx_query), 1, 100) AS query,
		t.trx_started AS trx_started,
		(UNIX_TIMESTAMP(UTC_TIMESTAMP()) - UNIX_TIMESTAMP(t.trx_started)) AS trx_duration_seconds,
		p.time AS query_time,
		t.trx_state AS trx_state,
		p.state AS process_state,
		IF(p.host IS NULL OR p.host = '', p.user, concat(p.user, '@', SUBSTRING_INDEX(p.host, ':', 1))) AS user,
		t.trx_rows_locked AS trx_rows_locked,
		t.trx_rows_modified AS trx_rows_modified,
		p.db AS db
	FROM
		information_schema.processlist p
		LEFT OUTER JOIN
		information_schema.innodb_trx t
		ON p.id = t.trx_mysql_thread_id
	WHERE
		(? IS NULL OR p.time >= ?)
		AND p.id != CONNECTION_ID()
		AND Command NOT IN ('Binlog Dump', 'Binlog Dump GTID', 'Connect', 'Connect Out', 'Register Slave')
		AND User NOT IN ('system user', 'event_scheduler')
		AND (t.trx_id IS NOT NULL OR Command != 'Sleep')
	ORDER BY
		t.trx_started
	LIMIT ?;
`

func registerMonitoring(reg *registry.Registry, deps Deps) {
	reg.Register(registry.ToolDefinition{
		Name:        "mysql_list_active_queries",
		Title:       "List Active Queries",
		Group:       registry.GroupMonitoring,
		Description: "List currently running queries and their transactions, oldest first.",
		Input: validate.Descriptor{
			{Name: "min_duration_secs", Kind: validate.KindInt, HasMin: true, Min: 0},
			{Name: "limit", Kind: validate.KindInt, HasMin: true, Min: 1, HasMax: true, Max: 1000},
		},
		RequiredScopes: []string{scope.Read},
		Annotations:    registry.Annotations{ReadOnlyHint: true, IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			duration := intOrDefault(args["min_duration_secs"], 0)
			limit := intOrDefault(args["limit"], 100)
			result, err := deps.Exec.Query(ctx, listActiveQueriesStatement, []interface{}{duration, duration, limit}, nil)
			if err != nil {
				return nil, err
			}
			return queryResultPayload(result), nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "mysql_pool_stats",
		Title:       "Pool Stats",
		Group:       registry.GroupMonitoring,
		Description: "Report connection pool capacity and utilization.",
		Input:       validate.Descriptor{},
		Annotations: registry.Annotations{ReadOnlyHint: true, IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if deps.PoolStats == nil {
				return map[string]interface{}{"success": true}, nil
			}
			return map[string]interface{}{"success": true, "stats": deps.PoolStats()}, nil
		},
	})
}

func intOrDefault(v interface{}, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return def
	}
}
