package util

import (
	"net/http"
	"strings"
)

var apiSecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"Permissions-Policy":      "geolocation=(), camera=(), microphone=()",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
}

// WithSecurityHeaders adds API-safe security response headers. Paths below
// documentPrefix are fetched cross-origin by document viewers, so they are
// marked as cross-origin resources.
func WithSecurityHeaders(documentPrefix string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range apiSecurityHeaders {
			w.Header().Set(k, v)
		}
		if documentPrefix != "" && strings.HasPrefix(r.URL.Path, documentPrefix) {
			w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		}
		if r.TLS != nil || strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
