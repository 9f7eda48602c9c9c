package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neverinfamous/mysql-mcp-go/internal/config"
)

func TestResourceMetadata_DocumentReflectsConfig(t *testing.T) {
	cfg := config.AuthConfig{
		Resource:             "https://mcp.example.com",
		AuthorizationServers: []string{"https://auth.example.com"},
		ScopesSupported:      []string{"read", "write"},
	}
	m := NewResourceMetadata(cfg)
	doc := m.Document()

	assert.Equal(t, "https://mcp.example.com", doc.Resource)
	assert.Equal(t, []string{"https://auth.example.com"}, doc.AuthorizationServers)
	assert.Equal(t, []string{"header"}, doc.BearerMethodsSupported)
	assert.Equal(t, []string{"RS256", "ES256"}, doc.ResourceSigningAlgValuesSupported)
}

func TestResourceMetadata_DefaultsAlgorithmsWhenUnset(t *testing.T) {
	m := NewResourceMetadata(config.AuthConfig{})
	assert.Equal(t, []string{"RS256", "ES256"}, m.Document().ResourceSigningAlgValuesSupported)
}

func TestResourceMetadata_PreservesConfiguredAlgorithms(t *testing.T) {
	m := NewResourceMetadata(config.AuthConfig{AllowedAlgorithms: []string{"ES256"}})
	assert.Equal(t, []string{"ES256"}, m.Document().ResourceSigningAlgValuesSupported)
}

func TestIsScopeSupported_LiteralAndResourcePatterns(t *testing.T) {
	m := NewResourceMetadata(config.AuthConfig{ScopesSupported: []string{"read", "write", "admin"}})

	assert.True(t, m.IsScopeSupported("read"))
	assert.True(t, m.IsScopeSupported("admin"))
	assert.False(t, m.IsScopeSupported("bogus"))

	assert.True(t, m.IsScopeSupported("db:analytics"))
	assert.True(t, m.IsScopeSupported("table:analytics:events"))
	assert.False(t, m.IsScopeSupported("db:"))
	assert.False(t, m.IsScopeSupported("table:analytics"))
}
