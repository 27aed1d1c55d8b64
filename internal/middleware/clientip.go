package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// ExtractClientIP returns the caller's IP address. When trustProxy is set it
// checks X-Forwarded-For (first entry) and X-Real-IP before RemoteAddr.
// Ports are stripped. Returns "" when nothing parses as an address.
func ExtractClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := parseHostIP(strings.TrimSpace(first)); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := parseHostIP(strings.TrimSpace(xri)); ip != "" {
				return ip
			}
		}
	}
	return parseHostIP(r.RemoteAddr)
}

// parseHostIP accepts "ip" or "ip:port" (including "[v6]:port") and returns
// the canonical address text.
func parseHostIP(s string) string {
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

// ClientIP stores the caller's address in the request context for the audit
// trail and the clock endpoint.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientIP(r.Context(), ExtractClientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClientIP returns a copy of ctx carrying ip.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// GetClientIP returns the address stored by ClientIP, or "".
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}
