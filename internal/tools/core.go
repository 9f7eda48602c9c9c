// Package tools holds the representative slice of tool handlers §11.1
// names: core query/execute, schema introspection/DDL, transaction
// control, admin, monitoring and performance tools. None of them contain
// SQL rewriting or planning logic — each is a thin, scope-gated adapter
// between validated args and the executor/transaction-manager/schema
// components, consistent with the non-goals in §1.
package tools

import (
	"context"
	"fmt"

	"github.com/neverinfamous/mysql-mcp-go/internal/executor"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/schema"
	"github.com/neverinfamous/mysql-mcp-go/internal/scope"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

// Deps bundles every collaborator tool handlers are built against.
type Deps struct {
	Exec   *executor.Executor
	Tx     *txmanager.Manager
	Schema *schema.Introspector
	// PoolStats reports current pool capacity/utilization for
	// mysql_pool_stats; wired to pool.Pool.Stats by the caller.
	PoolStats func() interface{}
}

// Register adds every representative tool in this package to reg.
func Register(reg *registry.Registry, deps Deps) {
	registerCore(reg, deps)
	registerSchema(reg, deps)
	registerTransactions(reg, deps)
	registerAdmin(reg, deps)
	registerMonitoring(reg, deps)
	registerPerformance(reg, deps)
}

func paramsOf(args map[string]interface{}) []interface{} {
	raw, ok := args["params"]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	return list
}

func registerCore(reg *registry.Registry, deps Deps) {
	reg.Register(registry.ToolDefinition{
		Name:        "mysql_query",
		Title:       "Query",
		Group:       registry.GroupCore,
		Description: "Run a read-only SQL query and return matched rows.",
		Input: validate.Descriptor{
			{Name: "sql", Kind: validate.KindString, Required: true},
			{Name: "params", Kind: validate.KindStringSlice},
		},
		RequiredScopes: []string{scope.Read},
		Annotations:    registry.Annotations{ReadOnlyHint: true, IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			sqlText := args["sql"].(string)
			result, err := deps.Exec.Query(ctx, sqlText, paramsOf(args), nil)
			if err != nil {
				return nil, err
			}
			return queryResultPayload(result), nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "mysql_execute",
		Title:       "Execute",
		Group:       registry.GroupCore,
		Description: "Run a mutating SQL statement (INSERT/UPDATE/DELETE).",
		Input: validate.Descriptor{
			{Name: "sql", Kind: validate.KindString, Required: true},
			{Name: "params", Kind: validate.KindStringSlice},
		},
		RequiredScopes: []string{scope.Write},
		Annotations:    registry.Annotations{DestructiveHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			sqlText := args["sql"].(string)
			result, err := deps.Exec.Execute(ctx, sqlText, paramsOf(args), nil)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"success":       true,
				"rows_affected": result.RowsAffected,
				"last_insert_id": result.LastInsertID,
			}, nil
		},
	})
}

func queryResultPayload(result *executor.QueryResult) map[string]interface{} {
	cols := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		cols[i] = fmt.Sprintf("%s:%s", c.Name, c.SemanticType)
	}
	return map[string]interface{}{
		"success":           true,
		"columns":           cols,
		"rows":              result.Rows,
		"execution_time_ms": result.ExecutionTimeMs,
	}
}
