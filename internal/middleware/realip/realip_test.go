package realip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resolveThrough(t *testing.T, cfg Config, remoteAddr string, headers map[string]string) string {
	t.Helper()

	var got string
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestMiddleware_NoProxy(t *testing.T) {
	ip := resolveThrough(t, Config{}, "203.0.113.9:4431", map[string]string{
		"X-Forwarded-For": "198.51.100.1",
	})
	// Headers ignored when proxies are untrusted.
	assert.Equal(t, "203.0.113.9", ip)
}

func TestMiddleware_TrustedProxy(t *testing.T) {
	cfg := Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}}

	ip := resolveThrough(t, cfg, "10.1.2.3:8080", map[string]string{
		"X-Forwarded-For": "198.51.100.1",
	})
	assert.Equal(t, "198.51.100.1", ip)
}

func TestMiddleware_UntrustedPeerIgnoresHeaders(t *testing.T) {
	cfg := Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}}

	ip := resolveThrough(t, cfg, "203.0.113.9:4431", map[string]string{
		"X-Forwarded-For": "198.51.100.1",
	})
	assert.Equal(t, "203.0.113.9", ip)
}

func TestMiddleware_ChainWalksPastProxies(t *testing.T) {
	cfg := Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}}

	ip := resolveThrough(t, cfg, "10.1.2.3:8080", map[string]string{
		"X-Forwarded-For": "198.51.100.1, 10.9.9.9",
	})
	assert.Equal(t, "198.51.100.1", ip)
}

func TestMiddleware_XRealIPFallback(t *testing.T) {
	cfg := Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}}

	ip := resolveThrough(t, cfg, "10.1.2.3:8080", map[string]string{
		"X-Real-IP": "198.51.100.7",
	})
	assert.Equal(t, "198.51.100.7", ip)
}

func TestMiddleware_SingleIPTrustEntry(t *testing.T) {
	cfg := Config{TrustProxy: true, TrustedProxies: []string{"10.1.2.3"}}

	ip := resolveThrough(t, cfg, "10.1.2.3:8080", map[string]string{
		"X-Forwarded-For": "198.51.100.1",
	})
	assert.Equal(t, "198.51.100.1", ip)
}

func TestGetClientIP_Fallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.4:1234"
	assert.Equal(t, "192.0.2.4", GetClientIP(req))
}
