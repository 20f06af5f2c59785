// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// Idempotency: a retried vote toggle would undo the first one, so clients
// may send an Idempotency-Key. IdempotencyValidator checks the key's shape,
// asks the store whether (caller, scope, key) was already answered and
// marks the request as a replay. Handlers serve the stored body; the rate
// limiter lets replays through.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotency-Replayed"
)

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// DemoUser is the identity of callers that send none.
const DemoUser = "demo-user"

// IdempotencyOptions bounds accepted keys. MaxLen <= 0 means 200; a nil
// Pattern allows letters, digits and ._~-:
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a live stored result exists. Expiry is
// the implementation's concern. Errors are logged and the request proceeds
// as a fresh one.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (exists bool, err error)

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s, _ := c.Value(ctxKeyIdemKey).(string)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for this request's key.
func IsReplay(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyIdemReplay).(bool)
	return b
}

// IdempotencyValidator rejects malformed keys with 400 bad_idempotency_key.
// Requests without the header pass untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	if opts.MaxLen <= 0 {
		opts.MaxLen = 200
	}
	if opts.Pattern == nil {
		opts.Pattern = defaultKeyPattern
	}
	valid := func(k string) bool { return len(k) <= opts.MaxLen && opts.Pattern.MatchString(k) }

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if !valid(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup == nil {
			c.Next()
			return
		}
		exists, err := lookup(c.Request.Context(), CallerID(c), IdempotencyScope(c), key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed")
		} else if exists {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}

// IdempotencyScope is "METHOD /route/template", suffixed with "#<id>" when
// the route has an :id parameter. Keys are unique per scope, so one key
// reused on two submissions names two requests.
func IdempotencyScope(c *gin.Context) string {
	var b strings.Builder
	if c.Request != nil {
		b.WriteString(c.Request.Method)
		b.WriteByte(' ')
	}
	switch {
	case c.FullPath() != "":
		b.WriteString(c.FullPath())
	case c.Request != nil:
		b.WriteString(c.Request.URL.Path)
	}
	if id := c.Param("id"); id != "" {
		b.WriteByte('#')
		b.WriteString(id)
	}
	return b.String()
}

// CallerID resolves who is asking: a "userID" set by an auth layer, then
// X-User-ID, then DemoUser.
func CallerID(c *gin.Context) string {
	if s, ok := c.Value("userID").(string); ok && s != "" {
		return s
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return DemoUser
}
