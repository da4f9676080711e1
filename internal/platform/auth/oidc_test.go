package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// testRSAKey generates one shared 2048-bit key for the whole package; key
// generation is too slow to repeat per test.
func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate RSA key: %v", err)
		}
		testKey = k
	})
	return testKey
}

func jwkFor(key *rsa.PrivateKey, kid string) JWKSKey {
	pub := &key.PublicKey
	return JWKSKey{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// jwksServer serves whatever keys returns on each request and counts fetches.
func jwksServer(t *testing.T, keys func() []JWKSKey, fetches *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fetches != nil {
			*fetches++
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: keys()})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func discoveryServer(t *testing.T, doc map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverOIDC(t *testing.T) {
	jwks := jwksServer(t, func() []JWKSKey { return nil }, nil)
	srv := discoveryServer(t, map[string]any{
		"issuer":                 "https://idp.clinic.test",
		"authorization_endpoint": "https://idp.clinic.test/authorize",
		"token_endpoint":         "https://idp.clinic.test/token",
		"jwks_uri":               jwks.URL,
		"scopes_supported":       []string{"openid", "profile", "email"},
	})

	p, err := DiscoverOIDC(srv.URL)
	if err != nil {
		t.Fatalf("DiscoverOIDC: %v", err)
	}
	if p.JWKSURI != jwks.URL {
		t.Errorf("jwks_uri = %q, want %q", p.JWKSURI, jwks.URL)
	}
	if p.AuthorizationEndpoint != "https://idp.clinic.test/authorize" {
		t.Errorf("authorization_endpoint = %q", p.AuthorizationEndpoint)
	}
	if !p.SupportsScope("email") || p.SupportsScope("payments") {
		t.Errorf("SupportsScope misbehaving, scopes = %v", p.ScopesSupported)
	}
	if p.JWKSKeyFunc() == nil {
		t.Error("JWKSKeyFunc returned nil")
	}
}

func TestDiscoverOIDC_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(http.NotFound))
	t.Cleanup(notFound.Close)
	if _, err := DiscoverOIDC(notFound.URL); err == nil {
		t.Error("expected error for 404 discovery endpoint")
	}

	if _, err := DiscoverOIDC("http://127.0.0.1:1"); err == nil {
		t.Error("expected error for unreachable issuer")
	}

	noJWKS := discoveryServer(t, map[string]any{"issuer": "https://idp.clinic.test"})
	if _, err := DiscoverOIDC(noJWKS.URL); err == nil {
		t.Error("expected error when jwks_uri is missing")
	}
}

func TestJWKSCache_FetchAndHit(t *testing.T) {
	key := testRSAKey(t)
	fetches := 0
	srv := jwksServer(t, func() []JWKSKey { return []JWKSKey{jwkFor(key, "kid-1")} }, &fetches)

	cache := NewJWKSCache(srv.URL, 10*time.Minute)

	got, err := cache.GetKey("kid-1")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if got.N.Cmp(key.PublicKey.N) != 0 || got.E != key.PublicKey.E {
		t.Error("fetched key does not match the served key")
	}

	if _, err := cache.GetKey("kid-1"); err != nil {
		t.Fatalf("GetKey (cached): %v", err)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1 (second lookup should hit the cache)", fetches)
	}
}

func TestJWKSCache_RefetchOnExpiry(t *testing.T) {
	key := testRSAKey(t)
	fetches := 0
	srv := jwksServer(t, func() []JWKSKey { return []JWKSKey{jwkFor(key, "kid-1")} }, &fetches)

	cache := NewJWKSCache(srv.URL, time.Millisecond)
	if _, err := cache.GetKey("kid-1"); err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.GetKey("kid-1"); err != nil {
		t.Fatalf("GetKey after expiry: %v", err)
	}
	if fetches < 2 {
		t.Errorf("fetches = %d, want a refetch after the TTL", fetches)
	}
}

func TestJWKSCache_PicksUpRotatedKey(t *testing.T) {
	key := testRSAKey(t)
	rotated := false
	srv := jwksServer(t, func() []JWKSKey {
		keys := []JWKSKey{jwkFor(key, "kid-old")}
		if rotated {
			keys = append(keys, jwkFor(key, "kid-new"))
		}
		return keys
	}, nil)

	cache := NewJWKSCache(srv.URL, time.Millisecond)
	if _, err := cache.GetKey("kid-old"); err != nil {
		t.Fatalf("GetKey: %v", err)
	}

	rotated = true
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.GetKey("kid-new"); err != nil {
		t.Fatalf("rotated key not picked up: %v", err)
	}
}

func TestJWKSCache_UnknownKid(t *testing.T) {
	key := testRSAKey(t)
	srv := jwksServer(t, func() []JWKSKey { return []JWKSKey{jwkFor(key, "kid-1")} }, nil)

	cache := NewJWKSCache(srv.URL, 10*time.Minute)
	if _, err := cache.GetKey("kid-unknown"); err == nil {
		t.Error("expected error for unknown kid")
	}
}

func TestJWKSCache_EndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cache := NewJWKSCache(srv.URL, 10*time.Minute)
	if _, err := cache.GetKey("any"); err == nil {
		t.Error("expected error when the JWKS endpoint fails")
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key := testRSAKey(t)

	pub, err := parseRSAPublicKey(jwkFor(key, "kid-1"))
	if err != nil {
		t.Fatalf("parseRSAPublicKey: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Error("round-tripped key does not match")
	}

	if _, err := parseRSAPublicKey(JWKSKey{N: "%%%", E: "AQAB"}); err == nil {
		t.Error("expected error for malformed modulus")
	}
	if _, err := parseRSAPublicKey(JWKSKey{N: "AQAB", E: "%%%"}); err == nil {
		t.Error("expected error for malformed exponent")
	}
}

func TestJWKSKeyFunc_RequiresKid(t *testing.T) {
	srv := jwksServer(t, func() []JWKSKey { return nil }, nil)
	fn := jwksKeyFunc(srv.URL)

	if _, err := fn(&jwt.Token{Header: map[string]any{}}); err == nil {
		t.Error("expected error for token without kid header")
	}
}
