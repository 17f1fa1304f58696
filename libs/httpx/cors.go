package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSPolicy covers every method the booking and calendar routes mount.
func DefaultCORSPolicy(origins []string) CORSPolicy {
	return CORSPolicy{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		MaxAge:         10 * time.Minute,
	}
}

// allows returns the Access-Control-Allow-Origin value for origin. A wildcard
// echoes the origin when credentials are allowed, since browsers refuse "*"
// together with credentials.
func (p CORSPolicy) allows(origin string) (string, bool) {
	for _, o := range p.AllowedOrigins {
		switch o = strings.TrimSpace(o); {
		case o == "*" && p.AllowCredentials:
			return origin, true
		case o == "*":
			return "*", true
		case strings.EqualFold(o, origin):
			return origin, true
		}
	}
	return "", false
}

// fixedHeaders are the response headers that do not depend on the origin.
func (p CORSPolicy) fixedHeaders() http.Header {
	h := http.Header{}
	if p.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if v := joinTrimmed(p.AllowedMethods); v != "" {
		h.Set("Access-Control-Allow-Methods", v)
	}
	if v := joinTrimmed(p.AllowedHeaders); v != "" {
		h.Set("Access-Control-Allow-Headers", v)
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}
	h["Vary"] = []string{"Origin", "Access-Control-Request-Method", "Access-Control-Request-Headers"}
	return h
}

// WithCORS answers preflights and decorates responses for allowed origins.
// Requests from other origins pass through untouched. An empty origin list
// disables the middleware.
func WithCORS(p CORSPolicy) Middleware {
	if len(p.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	fixed := p.fixedHeaders()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowOrigin, ok := p.allows(r.Header.Get("Origin"))
			if r.Header.Get("Origin") == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			for k, vs := range fixed {
				for _, v := range vs {
					h.Add(k, v)
				}
			}
			h.Set("Access-Control-Allow-Origin", allowOrigin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func joinTrimmed(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}
