package util

import (
	"net/http"
	"strings"
)

// APIContentSecurityPolicy is the policy for JSON responses.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"

// HeaderPolicy selects the per-route security headers. Zero fields take the
// strict defaults: the API CSP, DENY framing and no referrer.
type HeaderPolicy struct {
	CSP            string
	FrameOptions   string
	ReferrerPolicy string
}

func (p HeaderPolicy) withDefaults() HeaderPolicy {
	if strings.TrimSpace(p.CSP) == "" {
		p.CSP = APIContentSecurityPolicy
	}
	if p.FrameOptions == "" {
		p.FrameOptions = "DENY"
	}
	if p.ReferrerPolicy == "" {
		p.ReferrerPolicy = "no-referrer"
	}
	return p
}

// WithSecurityHeaders adds security response headers for policy.
func WithSecurityHeaders(policy HeaderPolicy) func(http.Handler) http.Handler {
	policy = policy.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", policy.FrameOptions)
			h.Set("Referrer-Policy", policy.ReferrerPolicy)
			h.Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")
			h.Set("Content-Security-Policy", policy.CSP)

			// HSTS only over HTTPS, direct or forwarded.
			if r.TLS != nil || strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
