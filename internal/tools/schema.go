package tools

import (
	"context"
	"strings"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/scope"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

func registerSchema(reg *registry.Registry, deps Deps) {
	reg.Register(registry.ToolDefinition{
		Name:        "describe_table",
		Title:       "Describe Table",
		Group:       registry.GroupSchema,
		Description: "Describe a table's columns and indexes, or report {exists:false}.",
		Input: validate.Descriptor{
			{Name: "database", Kind: validate.KindString, Required: true},
			{Name: "table", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Read},
		Annotations:    registry.Annotations{ReadOnlyHint: true, IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			info, err := deps.Schema.DescribeTable(ctx, args["database"].(string), args["table"].(string))
			if err != nil {
				return nil, err
			}
			if !info.Exists {
				return map[string]interface{}{"exists": false}, nil
			}
			return map[string]interface{}{
				"exists":  true,
				"columns": info.Columns,
				"indexes": info.Indexes,
			}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "list_tables",
		Title:       "List Tables",
		Group:       registry.GroupSchema,
		Description: "List every base table in a database.",
		Input: validate.Descriptor{
			{Name: "database", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Read},
		Annotations:    registry.Annotations{ReadOnlyHint: true, IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			names, err := deps.Schema.ListTables(ctx, args["database"].(string))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true, "tables": names}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "create_table",
		Title:       "Create Table",
		Group:       registry.GroupSchema,
		Description: "Run a CREATE TABLE statement.",
		Input: validate.Descriptor{
			{Name: "database", Kind: validate.KindString, Required: true},
			{Name: "table", Kind: validate.KindString, Required: true},
			{Name: "definition", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Write},
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
			stmt := "CREATE TABLE " + qualified + " (" + args["definition"].(string) + ")"
			_, err := deps.Exec.Execute(ctx, stmt, nil, nil)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "drop_table",
		Title:       "Drop Table",
		Group:       registry.GroupSchema,
		Description: "Run a DROP TABLE statement.",
		Input: validate.Descriptor{
			{Name: "database", Kind: validate.KindString, Required: true},
			{Name: "table", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Write},
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
		Name:        "create_index",
		Title:       "Create Index",
		Group:       registry.GroupSchema,
		Description: "Run a CREATE INDEX statement.",
		Input: validate.Descriptor{
			{Name: "database", Kind: validate.KindString, Required: true},
			{Name: "table", Kind: validate.KindString, Required: true},
			{Name: "index_name", Kind: validate.KindString, Required: true},
			{Name: "columns", Kind: validate.KindStringSlice, Required: true},
			{Name: "unique", Kind: validate.KindBool},
		},
		RequiredScopes: []string{scope.Write},
		MutatesSchema:  true,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			database := args["database"].(string)
			table := args["table"].(string)
			indexName := args["index_name"].(string)
			if !txmanager.ValidIdentifier(database) || !txmanager.ValidIdentifier(table) || !txmanager.ValidIdentifier(indexName) {
				return nil, dberrors.New(dberrors.KindValidation, "invalid identifier")
			}
			cols, err := stringSlice(args["columns"])
			if err != nil {
				return nil, err
			}
			for _, c := range cols {
				if !txmanager.ValidIdentifier(c) {
					return nil, dberrors.New(dberrors.KindValidation, "invalid column name: "+c)
				}
			}
			unique := false
			if u, ok := args["unique"].(bool); ok {
				unique = u
			}
			keyword := "INDEX"
			if unique {
				keyword = "UNIQUE INDEX"
			}
			qualified := "`" + database + "`.`" + table + "`"
			stmt := "CREATE " + keyword + " `" + indexName + "` ON " + qualified + " (`" + strings.Join(cols, "`, `") + "`)"
			if _, err := deps.Exec.Execute(ctx, stmt, nil, nil); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})
}

func stringSlice(v interface{}) ([]string, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, dberrors.New(dberrors.KindValidation, "expected an array of strings")
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, dberrors.New(dberrors.KindValidation, "expected an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}
