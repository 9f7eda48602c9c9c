package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/neverinfamous/mysql-mcp-go/internal/scope"
)

// Context is the per-request authentication result §3 describes:
// produced once at the edge and passed by value into handlers.
type Context struct {
	Authenticated bool
	Claims        *Claims
	Scopes        scope.Set
}

// ExtractBearerToken reads the Authorization header and returns the raw
// token, or a TokenMissingError if the header is absent or malformed.
func ExtractBearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", newTokenMissing()
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", newTokenMissing()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", newTokenMissing()
	}
	return token, nil
}

// CreateAuthContext builds a Context from an HTTP request. Per §4.6 it
// never returns an error: a missing or invalid token simply yields an
// unauthenticated Context with no scopes, leaving the decision of whether
// that's acceptable to ValidateAuth.
func CreateAuthContext(ctx context.Context, r *http.Request, validator *Validator) Context {
	token, err := ExtractBearerToken(r)
	if err != nil {
		return Context{Authenticated: false, Scopes: scope.Parse("")}
	}
	claims, err := validator.Validate(ctx, token)
	if err != nil {
		return Context{Authenticated: false, Scopes: scope.Parse("")}
	}
	return Context{
		Authenticated: true,
		Claims:        claims,
		Scopes:        scope.Parse(strings.Join(claims.Scopes, " ")),
	}
}

// Requirement names the scopes a tool invocation demands.
type Requirement struct {
	RequiredScopes []string
}

// ValidateAuth enforces that authCtx is authenticated and satisfies every
// scope in req, returning the typed error taxonomy §4.6 specifies.
// Scope failures always report the full required list, space-delimited.
func ValidateAuth(authCtx Context, req Requirement) error {
	if !authCtx.Authenticated {
		return newTokenMissing()
	}
	if !authCtx.Scopes.HasAll(req.RequiredScopes...) {
		return newInsufficientScope(strings.Join(req.RequiredScopes, " "))
	}
	return nil
}
