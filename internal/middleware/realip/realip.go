// Package realip resolves the client IP behind a trusted reverse proxy.
package realip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const clientIPKey contextKey = "client_ip"

// Config holds the configuration for the real IP middleware
type Config struct {
	// TrustProxy enables X-Forwarded-For header parsing
	TrustProxy bool
	// TrustedProxies is a list of CIDR ranges for trusted proxies
	TrustedProxies []string
}

// Middleware stores the resolved client IP in the request context. Forwarding
// headers are honored only when the direct peer is a trusted proxy.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	trusted := parseNetworks(cfg.TrustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolve(r, cfg.TrustProxy, trusted)
			ctx := context.WithValue(r.Context(), clientIPKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromRequest returns the resolved client IP, falling back to the peer
// address when the middleware did not run.
func FromRequest(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}

func resolve(r *http.Request, trustProxy bool, trusted []*net.IPNet) string {
	peer := stripPort(r.RemoteAddr)
	if !trustProxy || !contains(trusted, peer) {
		return peer
	}

	// X-Forwarded-For is "client, proxy1, proxy2"; walk right to left past
	// the proxies we trust.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !contains(trusted, hop) {
				return hop
			}
		}
		return strings.TrimSpace(hops[0])
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func parseNetworks(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		if !strings.Contains(cidr, "/") {
			if ip := net.ParseIP(cidr); ip != nil {
				if ip.To4() != nil {
					cidr += "/32"
				} else {
					cidr += "/128"
				}
			}
		}
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, network)
		}
	}
	return nets
}

func contains(nets []*net.IPNet, ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
