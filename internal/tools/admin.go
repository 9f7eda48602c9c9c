package tools

import (
	"context"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/scope"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

// registerAdmin registers the admin-group tools, which require the admin
// scope rather than a plain write — mysql_drop_table exists specifically
// to exercise the scope-denial path §8 scenario C describes.
func registerAdmin(reg *registry.Registry, deps Deps) {
	reg.Register(registry.ToolDefinition{
		Name:        "mysql_drop_table",
		Title:       "Drop Table (Admin)",
		Group:       registry.GroupAdmin,
		Description: "Destructively drop a table. Requires the admin scope.",
		Input: validate.Descriptor{
			{Name: "database", Kind: validate.KindString, Required: true},
			{Name: "table", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Admin},
		Annotations:    registry.Annotations{DestructiveHint: true},
		MutatesSchema:  true,
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
			if _, err := deps.Exec.Execute(ctx, "DROP TABLE "+qualified, nil, nil); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "mysql_flush_tables",
		Title:       "Flush Tables",
		Group:       registry.GroupAdmin,
		Description: "Run FLUSH TABLES, optionally scoped to named tables.",
		Input: validate.Descriptor{
			{Name: "tables", Kind: validate.KindStringSlice},
		},
		RequiredScopes: []string{scope.Admin},
		Annotations:    registry.Annotations{IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			stmt := "FLUSH TABLES"
			if raw, ok := args["tables"].([]interface{}); ok && len(raw) > 0 {
				names, err := stringSlice(raw)
				if err != nil {
					return nil, err
				}
				for _, n := range names {
					if !txmanager.ValidIdentifier(n) {
						return nil, dberrors.New(dberrors.KindValidation, "invalid table name: "+n)
					}
				}
				stmt += " `" + joinBackticks(names) + "`"
			}
			if _, err := deps.Exec.RawQuery(ctx, stmt, nil, nil); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})
}

func joinBackticks(names []string) string {
	out := names[0]
	for _, n := range names[1:] {
		out += "`, `" + n
	}
	return out
}
