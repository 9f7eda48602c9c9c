package registry

import (
	"context"

	"github.com/neverinfamous/mysql-mcp-go/internal/auth"
	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

// ErrorShape is the uniform failure envelope every dispatch failure is
// rendered into (§5, §7): {success:false, error}, optionally carrying a
// scope for insufficient_scope failures.
type ErrorShape struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Scope   string `json:"scope,omitempty"`
}

// Dispatcher runs the fixed pipeline of §4.5: transport → dispatcher →
// input validator → scope gate → handler → executor.
type Dispatcher struct {
	registry         *Registry
	onSchemaMutation func()
}

// NewDispatcher builds a Dispatcher over registry. onSchemaMutation, if
// non-nil, is invoked after any tool whose definition sets MutatesSchema
// succeeds, clearing the schema introspector's cache.
func NewDispatcher(registry *Registry, onSchemaMutation func()) *Dispatcher {
	return &Dispatcher{registry: registry, onSchemaMutation: onSchemaMutation}
}

// Dispatch looks up name, validates args against its input descriptor,
// checks the caller's scopes, invokes the handler, and returns either the
// handler's result or an ErrorShape describing why it did not run.
func (d *Dispatcher) Dispatch(ctx context.Context, authCtx auth.Context, name string, args map[string]interface{}) (interface{}, *ErrorShape) {
	def, ok := d.registry.Get(name)
	if !ok {
		return nil, &ErrorShape{Success: false, Error: "unknown tool: " + name}
	}

	if err := validate.Validate(def.Input, args); err != nil {
		return nil, &ErrorShape{Success: false, Error: err.Error()}
	}

	if len(def.RequiredScopes) > 0 {
		if authErr := auth.ValidateAuth(authCtx, auth.Requirement{RequiredScopes: def.RequiredScopes}); authErr != nil {
			if ae, ok := authErr.(*auth.Error); ok && ae.Code == auth.CodeInsufficientScope {
				return nil, &ErrorShape{Success: false, Error: "insufficient_scope", Scope: ae.RequiredScope}
			}
			return nil, &ErrorShape{Success: false, Error: "invalid_token"}
		}
	}

	result, err := def.Handler(ctx, args)
	if err != nil {
		// Driver errors that signal a missing or duplicate entity are
		// demoted to an ordinary (non-error) result instead of an
		// ErrorShape, per the classifier centralized in dberrors — a
		// mutating handler's failure here must also skip onSchemaMutation
		// below, since returning early preserves that.
		switch {
		case dberrors.IsMissingEntity(err):
			return map[string]interface{}{"exists": false}, nil
		case dberrors.IsDuplicate(err):
			return map[string]interface{}{"success": false, "reason": dberrors.Sanitize(err.Error())}, nil
		default:
			return nil, &ErrorShape{Success: false, Error: dberrors.Sanitize(err.Error())}
		}
	}

	if def.MutatesSchema && d.onSchemaMutation != nil {
		d.onSchemaMutation()
	}

	return result, nil
}
