// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger writes one access log line per request. Bodies are never
// logged. Header values and the query string pass through a redactor that
// replaces identifiers, e-mail addresses and phone numbers; credential
// headers and capability-bearing query parameters (push endpoints and keys)
// lose their values entirely.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

// Applied in slice order. UUIDs go first so the loose phone pattern cannot
// eat their digit groups.
var piiPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

// RedactOptions extends the built-in mask lists. MaskHeaders is merged with
// Authorization, Cookie and Set-Cookie; MaskQueryParams with api_key, token
// and endpoint. Both match case-insensitively.
type RedactOptions struct {
	MaskHeaders     []string
	MaskQueryParams []string
}

type redactor struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

func newRedactor(opts RedactOptions) redactor {
	return redactor{
		headers: lowerSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders),
		params:  lowerSet([]string{"api_key", "token", "endpoint"}, opts.MaskQueryParams),
	}
}

func lowerSet(base, extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				set[s] = struct{}{}
			}
		}
	}
	return set
}

func (redactor) text(s string) string {
	for _, p := range piiPatterns {
		if s == "" {
			break
		}
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// query scrubs the raw query so patterns see values as sent; only parameter
// names are decoded to decide on masking.
func (r redactor) query(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	for i, pair := range pairs {
		name, _, _ := strings.Cut(pair, "=")
		if dec, err := url.QueryUnescape(name); err == nil {
			name = dec
		}
		if _, masked := r.params[strings.ToLower(name)]; masked {
			pairs[i] = name + "=" + redacted
		} else {
			pairs[i] = r.text(pair)
		}
	}
	return strings.Join(pairs, "&")
}

func (r redactor) headerDict(h map[string][]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, vv := range h {
		if _, masked := r.headers[strings.ToLower(k)]; masked {
			d.Str(k, redacted)
			continue
		}
		d.Str(k, r.text(strings.Join(vv, ", ")))
	}
	return d
}

// RedactingLogger logs method, route, scrubbed query and headers, status,
// size and latency. 4xx responses log at warn and 5xx at error. Vote replays
// served from the idempotency store are flagged with replayed=true.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		query := red.query(c.Request.URL.RawQuery)
		headers := red.headerDict(c.Request.Header)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		rid := c.Writer.Header().Get(requestIDHeader)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}

		ev.Str("request_id", rid).
			Str("user_id", red.text(c.GetHeader("X-User-ID"))).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("idempotent", c.GetHeader(HeaderIdempotencyKey) != "").
			Bool("replayed", c.Writer.Header().Get(HeaderIdempotencyReplayed) == "true").
			Dict("headers", headers).
			Msg("http_request")
	}
}
