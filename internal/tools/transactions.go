package tools

import (
	"context"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
	"github.com/neverinfamous/mysql-mcp-go/internal/scope"
	"github.com/neverinfamous/mysql-mcp-go/internal/txmanager"
	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

func registerTransactions(reg *registry.Registry, deps Deps) {
	reg.Register(registry.ToolDefinition{
		Name:        "begin_transaction",
		Title:       "Begin Transaction",
		Group:       registry.GroupTransactions,
		Description: "Begin a transaction, optionally at a given isolation level, returning a handle.",
		Input: validate.Descriptor{
			{Name: "isolation_level", Kind: validate.KindString,
				Enum: []string{"READ UNCOMMITTED", "READ COMMITTED", "REPEATABLE READ", "SERIALIZABLE"}},
		},
		RequiredScopes: []string{scope.Write},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			isolation, _ := args["isolation_level"].(string)
			handle, err := deps.Tx.Begin(ctx, isolation)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true, "transaction_id": string(handle)}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "commit_transaction",
		Title:       "Commit Transaction",
		Group:       registry.GroupTransactions,
		Description: "Commit a transaction by handle.",
		Input: validate.Descriptor{
			{Name: "transaction_id", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Write},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			h := txmanager.Handle(args["transaction_id"].(string))
			if err := deps.Tx.Commit(ctx, h); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "rollback_transaction",
		Title:       "Rollback Transaction",
		Group:       registry.GroupTransactions,
		Description: "Roll back a transaction by handle.",
		Input: validate.Descriptor{
			{Name: "transaction_id", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Write},
		Annotations:    registry.Annotations{IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			h := txmanager.Handle(args["transaction_id"].(string))
			if err := deps.Tx.Rollback(ctx, h); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "create_savepoint",
		Title:       "Create Savepoint",
		Group:       registry.GroupTransactions,
		Description: "Create a named savepoint inside a transaction.",
		Input: validate.Descriptor{
			{Name: "transaction_id", Kind: validate.KindString, Required: true},
			{Name: "name", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Write},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			h := txmanager.Handle(args["transaction_id"].(string))
			if err := deps.Tx.Savepoint(ctx, h, args["name"].(string)); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "release_savepoint",
		Title:       "Release Savepoint",
		Group:       registry.GroupTransactions,
		Description: "Release a named savepoint inside a transaction.",
		Input: validate.Descriptor{
			{Name: "transaction_id", Kind: validate.KindString, Required: true},
			{Name: "name", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Write},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			h := txmanager.Handle(args["transaction_id"].(string))
			if err := deps.Tx.ReleaseSavepoint(ctx, h, args["name"].(string)); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "rollback_to_savepoint",
		Title:       "Rollback To Savepoint",
		Group:       registry.GroupTransactions,
		Description: "Roll back to a named savepoint inside a transaction.",
		Input: validate.Descriptor{
			{Name: "transaction_id", Kind: validate.KindString, Required: true},
			{Name: "name", Kind: validate.KindString, Required: true},
		},
		RequiredScopes: []string{scope.Write},
		Annotations:    registry.Annotations{IdempotentHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			h := txmanager.Handle(args["transaction_id"].(string))
			if err := deps.Tx.RollbackToSavepoint(ctx, h, args["name"].(string)); err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true}, nil
		},
	})

	reg.Register(registry.ToolDefinition{
		Name:        "execute_atomic",
		Title:       "Execute Atomic",
		Group:       registry.GroupTransactions,
		Description: "Run a list of statements in one transaction, committing only if all succeed.",
		Input: validate.Descriptor{
			{Name: "statements", Kind: validate.KindStringSlice, Required: true},
			{Name: "isolation_level", Kind: validate.KindString,
				Enum: []string{"READ UNCOMMITTED", "READ COMMITTED", "REPEATABLE READ", "SERIALIZABLE"}},
		},
		RequiredScopes: []string{scope.Write},
		Annotations:    registry.Annotations{DestructiveHint: true},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			raw, ok := args["statements"].([]interface{})
			if !ok {
				return nil, dberrors.New(dberrors.KindValidation, "statements must be an array")
			}
			if len(raw) == 0 {
				return map[string]interface{}{"success": false, "reason": "statements must be a non-empty array"}, nil
			}
			statements := make([]txmanager.AtomicStatement, 0, len(raw))
			for _, s := range raw {
				sqlText, ok := s.(string)
				if !ok {
					return nil, dberrors.New(dberrors.KindValidation, "each statement must be a string")
				}
				statements = append(statements, txmanager.AtomicStatement{SQL: sqlText})
			}
			isolation, _ := args["isolation_level"].(string)
			results, err := deps.Tx.ExecuteAtomic(ctx, statements, isolation)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": true, "results": results}, nil
		},
	})
}
