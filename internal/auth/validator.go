package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/neverinfamous/mysql-mcp-go/internal/config"
)

// Claims is the set of JWT claims §4.6 requires the validator to extract.
type Claims struct {
	Subject   string
	Scopes    []string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	NotBefore time.Time
	JTI       string
	ClientID  string
}

// Validator verifies a bearer JWT against a remote JWKS, enforcing
// issuer/audience/expiry/clock-tolerance/algorithm-allowlist per §4.6.
type Validator struct {
	cfg        config.AuthConfig
	discoverer *Discoverer
	httpClient *http.Client

	jwksCache *gocache.Cache
	jwksGroup singleflight.Group
}

// NewValidator builds a Validator bound to the given discoverer and
// configuration.
func NewValidator(cfg config.AuthConfig, discoverer *Discoverer) *Validator {
	return &Validator{
		cfg:        cfg,
		discoverer: discoverer,
		httpClient: &http.Client{Timeout: cfg.DiscoveryTimeout},
		jwksCache:  gocache.New(cfg.JWKSCacheTTL, cfg.JWKSCacheTTL*2),
	}
}

// Validate verifies tokenString and returns its extracted claims, or a
// typed *Error: TOKEN_EXPIRED, INVALID_SIGNATURE or INVALID_TOKEN, or an
// auth-server discovery error when discovery fails. There is no separate
// INVALID_CLAIMS error: issuer, audience and other claim failures return
// INVALID_TOKEN. Error messages never include the JWKS
// URI, expected issuer, or other deployment identifiers.
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, newInvalidToken()
	}
	mapClaims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return nil, newInvalidToken()
	}
	issuer, _ := mapClaims.GetIssuer()
	if issuer == "" || !v.issuerAllowed(issuer) {
		return nil, newInvalidToken()
	}

	jwksURI, err := v.discoverer.GetJWKSURI(ctx, issuer)
	if err != nil {
		return nil, newAuthServerDiscovery()
	}

	keyfunc := func(tok *jwt.Token) (interface{}, error) {
		alg := tok.Method.Alg()
		if !v.algAllowed(alg) {
			return nil, fmt.Errorf("algorithm not permitted")
		}
		kid, _ := tok.Header["kid"].(string)
		key, err := v.resolveKey(ctx, jwksURI, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	}

	parsed, err := jwt.Parse(tokenString, keyfunc,
		jwt.WithValidMethods(v.cfg.AllowedAlgorithms),
		jwt.WithLeeway(v.cfg.ClockTolerance),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(v.cfg.Resource),
	)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "token is expired"):
			return nil, newTokenExpired()
		case strings.Contains(err.Error(), "signature is invalid"):
			return nil, newInvalidSignature()
		default:
			return nil, newInvalidToken()
		}
	}
	if !parsed.Valid {
		return nil, newInvalidToken()
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, newInvalidToken()
	}
	return extractClaims(claims)
}

func (v *Validator) issuerAllowed(issuer string) bool {
	if len(v.cfg.AuthorizationServers) == 0 {
		return true
	}
	for _, a := range v.cfg.AuthorizationServers {
		if a == issuer {
			return true
		}
	}
	return false
}

func (v *Validator) algAllowed(alg string) bool {
	for _, a := range v.cfg.AllowedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// resolveKey finds the key with the given kid inside the JWKS at uri,
// fetching and caching the whole set (keyed by uri) on a miss. Concurrent
// resolutions for the same uri collapse into one fetch (stampede guard).
func (v *Validator) resolveKey(ctx context.Context, uri, kid string) (interface{}, error) {
	var ks jose.JSONWebKeySet

	if cached, ok := v.jwksCache.Get(uri); ok {
		ks = cached.(jose.JSONWebKeySet)
	} else {
		fetched, err, _ := v.jwksGroup.Do(uri, func() (interface{}, error) {
			return v.fetchJWKS(ctx, uri)
		})
		if err != nil {
			return nil, newJwksFetch()
		}
		ks = fetched.(jose.JSONWebKeySet)
		v.jwksCache.SetDefault(uri, ks)
	}

	for _, k := range ks.Keys {
		if kid == "" || k.KeyID == kid {
			if rsaKey, ok := k.Key.(*rsa.PublicKey); ok {
				return rsaKey, nil
			}
			return k.Key, nil
		}
	}
	return nil, newJwksFetch()
}

func (v *Validator) fetchJWKS(ctx context.Context, uri string) (jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("jwks fetch failed with status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	var ks jose.JSONWebKeySet
	if err := json.Unmarshal(body, &ks); err != nil {
		return jose.JSONWebKeySet{}, err
	}
	return ks, nil
}

func extractClaims(m jwt.MapClaims) (*Claims, error) {
	c := &Claims{}

	if sub, err := m.GetSubject(); err == nil {
		c.Subject = sub
	}
	if iss, err := m.GetIssuer(); err == nil {
		c.Issuer = iss
	}
	if aud, err := m.GetAudience(); err == nil {
		c.Audience = aud
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if nbf, err := m.GetNotBefore(); err == nil && nbf != nil {
		c.NotBefore = nbf.Time
	}
	if jti, ok := m["jti"].(string); ok {
		c.JTI = jti
	}
	if clientID, ok := m["client_id"].(string); ok {
		c.ClientID = clientID
	}

	switch scopeClaim := m["scope"].(type) {
	case string:
		c.Scopes = strings.Fields(scopeClaim)
	case []interface{}:
		for _, s := range scopeClaim {
			if str, ok := s.(string); ok {
				c.Scopes = append(c.Scopes, str)
			}
		}
	}

	return c, nil
}
