package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// ServerMetadata is the RFC 8414 authorization-server metadata document,
// cached per issuer.
type ServerMetadata struct {
	Issuer                string   `json:"issuer"`
	TokenEndpoint         string   `json:"token_endpoint"`
	AuthorizationEndpoint string   `json:"authorization_endpoint,omitempty"`
	JWKSURI               string   `json:"jwks_uri"`
	RegistrationEndpoint  string   `json:"registration_endpoint,omitempty"`
	GrantTypesSupported   []string `json:"grant_types_supported,omitempty"`
	ScopesSupported       []string `json:"scopes_supported,omitempty"`
	FetchedAt             time.Time `json:"-"`
}

// Discoverer fetches and caches RFC 8414 metadata, with a singleflight
// group so concurrent callers for the same issuer collapse into one HTTP
// round-trip (§3 "updates are guarded against stampedes").
type Discoverer struct {
	httpClient *http.Client
	cache      *gocache.Cache
	group      singleflight.Group
	ttl        time.Duration
}

// NewDiscoverer builds a Discoverer with the given cache TTL and per-fetch
// timeout.
func NewDiscoverer(ttl, fetchTimeout time.Duration) *Discoverer {
	return &Discoverer{
		httpClient: &http.Client{Timeout: fetchTimeout},
		cache:      gocache.New(ttl, ttl*2),
		ttl:        ttl,
	}
}

// Get returns the cached metadata for issuer, fetching it (and populating
// the cache) on a miss or expiry. Concurrent Get calls for the same issuer
// made while a fetch is in flight share its single result.
func (d *Discoverer) Get(ctx context.Context, issuer string) (*ServerMetadata, error) {
	if cached, ok := d.cache.Get(issuer); ok {
		return cached.(*ServerMetadata), nil
	}

	v, err, _ := d.group.Do(issuer, func() (interface{}, error) {
		if cached, ok := d.cache.Get(issuer); ok {
			return cached, nil
		}
		md, err := d.fetch(ctx, issuer)
		if err != nil {
			return nil, err
		}
		d.cache.SetDefault(issuer, md)
		return md, nil
	})
	if err != nil {
		return nil, newAuthServerDiscovery()
	}
	return v.(*ServerMetadata), nil
}

func (d *Discoverer) fetch(ctx context.Context, issuer string) (*ServerMetadata, error) {
	url := issuer + "/.well-known/oauth-authorization-server"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authorization server metadata fetch failed with status %d", resp.StatusCode)
	}

	var md ServerMetadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, err
	}
	if md.Issuer == "" || md.TokenEndpoint == "" {
		return nil, fmt.Errorf("authorization server metadata missing required fields")
	}
	md.FetchedAt = time.Now()
	return &md, nil
}

// InvalidateCache forces the next Get for issuer to re-fetch.
func (d *Discoverer) InvalidateCache(issuer string) {
	d.cache.Delete(issuer)
}

// GetJWKSURI, GetTokenEndpoint and GetRegistrationEndpoint read through
// the cache, re-fetching on expiry (§4.6 accessors).
func (d *Discoverer) GetJWKSURI(ctx context.Context, issuer string) (string, error) {
	md, err := d.Get(ctx, issuer)
	if err != nil {
		return "", err
	}
	return md.JWKSURI, nil
}

func (d *Discoverer) GetTokenEndpoint(ctx context.Context, issuer string) (string, error) {
	md, err := d.Get(ctx, issuer)
	if err != nil {
		return "", err
	}
	return md.TokenEndpoint, nil
}

func (d *Discoverer) GetRegistrationEndpoint(ctx context.Context, issuer string) (string, error) {
	md, err := d.Get(ctx, issuer)
	if err != nil {
		return "", err
	}
	return md.RegistrationEndpoint, nil
}

// SupportsGrantType reports whether issuer's metadata advertises g among
// its supported grant types.
func (d *Discoverer) SupportsGrantType(ctx context.Context, issuer, g string) (bool, error) {
	md, err := d.Get(ctx, issuer)
	if err != nil {
		return false, err
	}
	for _, gt := range md.GrantTypesSupported {
		if gt == g {
			return true, nil
		}
	}
	return false, nil
}
