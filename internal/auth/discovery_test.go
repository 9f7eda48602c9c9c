package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDiscoveryServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ServerMetadata{
			Issuer:              "issuer-placeholder",
			TokenEndpoint:       "https://auth.example.com/token",
			JWKSURI:             "https://auth.example.com/jwks",
			GrantTypesSupported: []string{"client_credentials"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverer_FetchesAndCaches(t *testing.T) {
	var hits int32
	srv := startDiscoveryServer(t, &hits)

	d := NewDiscoverer(time.Minute, time.Second)
	md, err := d.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/token", md.TokenEndpoint)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = d.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second Get within TTL must not re-fetch")
}

func TestDiscoverer_ConcurrentGetsCollapseIntoOneFetch(t *testing.T) {
	var hits int32
	srv := startDiscoveryServer(t, &hits)
	d := NewDiscoverer(time.Minute, time.Second)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := d.Get(context.Background(), srv.URL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "N concurrent Get calls must trigger exactly one fetch")
}

func TestDiscoverer_InvalidateCacheForcesRefetch(t *testing.T) {
	var hits int32
	srv := startDiscoveryServer(t, &hits)
	d := NewDiscoverer(time.Minute, time.Second)

	_, err := d.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	d.InvalidateCache(srv.URL)
	_, err = d.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestDiscoverer_MissingRequiredFieldsIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ServerMetadata{})
	}))
	defer srv.Close()

	d := NewDiscoverer(time.Minute, time.Second)
	_, err := d.Get(context.Background(), srv.URL)
	require.Error(t, err)
	ae, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeAuthServerDiscovery, ae.Code)
}

func TestDiscoverer_SupportsGrantType(t *testing.T) {
	var hits int32
	srv := startDiscoveryServer(t, &hits)
	d := NewDiscoverer(time.Minute, time.Second)

	ok, err := d.SupportsGrantType(context.Background(), srv.URL, "client_credentials")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.SupportsGrantType(context.Background(), srv.URL, "authorization_code")
	require.NoError(t, err)
	assert.False(t, ok)
}
