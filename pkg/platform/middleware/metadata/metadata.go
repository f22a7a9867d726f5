package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"dunning/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context. The parsed client name is what request logs
// show under "client".
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, ua, ClientName(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientName renders a short "<browser> <version>" label for a User-Agent.
// Non-browser clients (curl, provider webhooks) fall back to the product token.
func ClientName(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "Mozilla/") {
		return productToken(raw)
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	name, version := ua.Browser()
	if name == "" {
		name, version = ua.Engine()
	}
	if name == "" {
		return productToken(raw)
	}
	if major, _, ok := strings.Cut(version, "."); ok {
		version = major
	}
	if version == "" {
		return name
	}
	return name + " " + version
}

func productToken(raw string) string {
	if idx := strings.IndexAny(raw, "/ "); idx > 0 {
		return raw[:idx]
	}
	return raw
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For lists client, proxy1, proxy2; the first is the original client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
