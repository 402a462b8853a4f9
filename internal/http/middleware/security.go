// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders: baseline hardening headers for a JSON
// API, opt-in HSTS for HTTPS traffic, and per-path cache control. Registry
// responses carry subscription endpoints and device metadata and must not be
// cached by intermediaries, while the VAPID public key is safe to cache.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days when <= 0.
	HSTSMaxAge time.Duration
	// NoStorePrefixes lists path prefixes answered with Cache-Control:
	// no-store. "/" covers everything.
	NoStorePrefixes []string
	// PublicCache maps exact paths to a shared max-age.
	PublicCache map[string]time.Duration
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

// exposedHeaders are made readable to browser clients when present.
var exposedHeaders = []string{"X-Request-ID", "Idempotency-Replayed"}

// SecurityHeaders returns a Gin middleware that sets:
//   - always: X-Content-Type-Options, X-Frame-Options, Referrer-Policy
//   - EnablePolicy: Permissions-Policy, X-Permitted-Cross-Domain-Policies
//   - matching NoStorePrefixes: Cache-Control no-store, Pragma, Expires
//   - matching PublicCache: Cache-Control public, max-age
//   - EnableHSTS on HTTPS: Strict-Transport-Security
//
// Cache and expose headers are written after the handler runs so that
// headers set by handlers (X-Request-ID, Idempotency-Replayed) are seen.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		path := c.Request.URL.Path
		switch {
		case opt.PublicCache[path] > 0:
			h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(opt.PublicCache[path].Seconds())))
		case hasAnyPrefix(path, opt.NoStorePrefixes):
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		ew := &exposeWriter{ResponseWriter: c.Writer}
		c.Writer = ew
		c.Next()
		// bodiless responses are flushed by the engine, not through ew
		ew.expose()
	}
}

// exposeWriter adds present exposedHeaders to Access-Control-Expose-Headers
// right before the header block is sent.
type exposeWriter struct {
	gin.ResponseWriter
	done bool
}

func (w *exposeWriter) expose() {
	if w.done {
		return
	}
	w.done = true
	h := w.Header()
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	for _, name := range exposedHeaders {
		if h.Get(name) == "" || strings.Contains(cur, name) {
			continue
		}
		if cur == "" {
			cur = name
		} else {
			cur += ", " + name
		}
	}
	if cur != "" {
		h.Set(hdr, cur)
	}
}

func (w *exposeWriter) WriteHeader(code int) {
	w.expose()
	w.ResponseWriter.WriteHeader(code)
}

func (w *exposeWriter) WriteHeaderNow() {
	w.expose()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *exposeWriter) Write(b []byte) (int, error) {
	w.expose()
	return w.ResponseWriter.Write(b)
}

func (w *exposeWriter) WriteString(s string) (int, error) {
	w.expose()
	return w.ResponseWriter.WriteString(s)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request used HTTPS directly or behind a proxy
// that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
