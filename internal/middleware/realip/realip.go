// Package realip resolves the real client IP behind trusted proxies.
package realip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const clientIPKey contextKey = "client_ip"

// Config holds the configuration for the real IP middleware.
type Config struct {
	// TrustProxy enables X-Forwarded-For header parsing.
	TrustProxy bool
	// TrustedProxies is a list of CIDR ranges (or single IPs) allowed to
	// set forwarding headers.
	TrustedProxies []string
}

// Middleware resolves the client IP for each request and stores it in the
// request context. Forwarding headers are only honored when the immediate
// peer is a trusted proxy.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	trusted := parseTrusted(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolve(r, cfg.TrustProxy, trusted)
			ctx := context.WithValue(r.Context(), clientIPKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP retrieves the resolved client IP from the request context,
// falling back to RemoteAddr.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}

func parseTrusted(cfg Config) []*net.IPNet {
	if !cfg.TrustProxy {
		return nil
	}
	var nets []*net.IPNet
	for _, entry := range cfg.TrustedProxies {
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			// Single IPs get a host mask.
			ip := net.ParseIP(entry)
			if ip == nil {
				continue
			}
			if ip.To4() != nil {
				_, network, _ = net.ParseCIDR(entry + "/32")
			} else {
				_, network, _ = net.ParseCIDR(entry + "/128")
			}
		}
		if network != nil {
			nets = append(nets, network)
		}
	}
	return nets
}

func resolve(r *http.Request, trustProxy bool, trusted []*net.IPNet) string {
	peer := stripPort(r.RemoteAddr)
	if !trustProxy || !inTrusted(peer, trusted) {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}

	// Walk the chain right to left; the first hop that is not one of our
	// proxies is the client.
	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !inTrusted(hop, trusted) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func inTrusted(ipStr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
