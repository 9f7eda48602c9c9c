package auth

import (
	"regexp"

	"github.com/neverinfamous/mysql-mcp-go/internal/config"
)

// resourceScopePattern matches the db:<ident>/table:<ident>:<ident>
// resource-scoped patterns §4.6 says isScopeSupported must accept even
// though they're never listed literally in scopes_supported.
var resourceScopePattern = regexp.MustCompile(`^(db:[A-Za-z_][A-Za-z0-9_]*|table:[A-Za-z_][A-Za-z0-9_]*:[A-Za-z_][A-Za-z0-9_]*)$`)

// ResourceDocument is the RFC 9728 protected-resource metadata document
// served verbatim at /.well-known/oauth-protected-resource.
type ResourceDocument struct {
	Resource                          string   `json:"resource"`
	AuthorizationServers               []string `json:"authorization_servers"`
	ScopesSupported                    []string `json:"scopes_supported"`
	BearerMethodsSupported             []string `json:"bearer_methods_supported"`
	ResourceDocumentation              string   `json:"resource_documentation,omitempty"`
	ResourceSigningAlgValuesSupported  []string `json:"resource_signing_alg_values_supported"`
}

// ResourceMetadata serves the static RFC 9728 document built once from
// config and answers isScopeSupported queries against it.
type ResourceMetadata struct {
	doc ResourceDocument
}

// NewResourceMetadata builds a ResourceMetadata from the adapter's auth
// configuration.
func NewResourceMetadata(cfg config.AuthConfig) *ResourceMetadata {
	algs := cfg.AllowedAlgorithms
	if len(algs) == 0 {
		algs = []string{"RS256", "ES256"}
	}
	return &ResourceMetadata{
		doc: ResourceDocument{
			Resource:                          cfg.Resource,
			AuthorizationServers:               cfg.AuthorizationServers,
			ScopesSupported:                    cfg.ScopesSupported,
			BearerMethodsSupported:             []string{"header"},
			ResourceDocumentation:              cfg.ResourceDocumentation,
			ResourceSigningAlgValuesSupported: algs,
		},
	}
}

// Document returns the JSON-serializable metadata document.
func (m *ResourceMetadata) Document() ResourceDocument { return m.doc }

// IsScopeSupported accepts any literal listed in scopes_supported plus
// the db:<name>/table:<db>:<name> resource-scope patterns (§4.6).
func (m *ResourceMetadata) IsScopeSupported(s string) bool {
	for _, supported := range m.doc.ScopesSupported {
		if supported == s {
			return true
		}
	}
	return resourceScopePattern.MatchString(s)
}
