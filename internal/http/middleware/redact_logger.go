// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger is the access logger of the service. Push addressing
// material is treated as a credential: Web Push endpoint URLs and FCM
// registration tokens let anyone holding them message the device, so both are
// scrubbed from query strings and header values before anything is written.
// Bodies are never logged.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.RequestID())
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Api-Key"},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders names extra headers whose values are replaced with "[REDACTED]".
// Matching is case-insensitive; Authorization, Cookie, Set-Cookie,
// X-Device-Token and X-Push-Endpoint are always masked.
type RedactOptions struct {
	MaskHeaders []string
}

// scrubRule replaces every match of re with its label.
type scrubRule struct {
	re    *regexp.Regexp
	label string
}

// Applied in order: endpoints and tokens first, phone numbers last since that
// pattern is the loosest and would eat digit runs inside UUIDs.
var scrubRules = []scrubRule{
	{regexp.MustCompile(`(?i)https?(?::|%3A)(?://|%2F%2F)[^\s&"]+`), "[REDACTED:endpoint]"},
	{regexp.MustCompile(`[A-Za-z0-9_\-:]{100,}`), "[REDACTED:token]"},
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func scrub(s string) string {
	for _, r := range scrubRules {
		if s == "" {
			break
		}
		s = r.re.ReplaceAllString(s, r.label)
	}
	return s
}

var alwaysMasked = []string{"authorization", "cookie", "set-cookie", "x-device-token", "x-push-endpoint"}

// RedactingLogger logs one line per request with sensitive values scrubbed
// and attaches a request-scoped logger (request_id, user_id, route) to both
// the Gin context and the request context.
//
// Level is error for 5xx or when handlers recorded gin errors, warn for 4xx,
// info otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(alwaysMasked)+len(opts.MaskHeaders))
	for _, h := range append(alwaysMasked, opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		route := routeLabel(c)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}

		l := log.With().
			Str("request_id", requestIDFor(c)).
			Str("user_id", scrub(userIDFromCtx(c))).
			Str("route", route).
			Logger()
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", scrub(c.Errors.String()))
			}
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", route).
			Str("query", scrub(c.Request.URL.RawQuery)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("replayed", IsReplay(c)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// requestIDFor prefers the ID stored by RequestID, then the response header
// set by any other correlator, then the raw request header.
func requestIDFor(c *gin.Context) string {
	if rid := RequestIDFrom(c); rid != "" {
		return rid
	}
	if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
		return rid
	}
	return scrub(c.GetHeader(requestIDHeader))
}
