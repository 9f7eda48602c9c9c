package tools

import (
	"context"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/scope"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

// registerPerformance registers check_table, one of the statements that
// never supports the prepared-statement protocol — it must always go
// through RawQuery's direct text-protocol path (§4.2).
func registerPerformance(reg *registry.Registry, deps Deps) {
	reg.Register(registry.ToolDefinition{
		Name:        "check_table",
		Title:       "Check Table",
		Group:       registry.GroupPerformance,
		Description: "Run CHECK TABLE and report the result rows.",
		Input: validate.Descriptor{
			{Name: "database", Kind: validate.KindString, Required: true},
			{Name: "table", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Read},
		Annotations:    registry.Annotations{ReadOnlyHint: true, IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			database := args["database"].(string)
			table := args["table"].(string)
			if !txmanager.ValidIdentifier(database) {
				return nil, dberrors.New(dberrors.KindValidation, "invalid database name: "+database)
			}
			if !txmanager.ValidIdentifier(table) {
				return nil, dberrors.New(dberrors.KindValidation, "invalid table name: "+table)
			}
			qualified := "`" + database + "`.`" + table + "`"
			result, err := deps.Exec.RawQuery(ctx, "CHECK TABLE "+qualified, nil, nil)
			if err != nil {
				return nil, err
			}
			return queryResultPayload(result), nil
		},
	})
}
