package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndUnmatchedFold(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics("/metrics", "/health"))
	r.GET("/rounds/:id/submissions", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.PUT("/submissions/:id/vote", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "# metrics") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/votes", func(c *gin.Context) {
		c.Header(HeaderIdempotencyReplayed, "true")
		c.JSON(http.StatusOK, gin.H{"voted": true})
	})

	// Baselines (other tests may share the registry).
	baseList := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/rounds/:id/submissions", "200"))
	baseVote := testutil.ToFloat64(httpReqs.WithLabelValues("PUT", "/submissions/:id/vote", "204"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404"))
	baseScrape := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics", "200"))
	baseHealth := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/health", "200"))
	baseReplay := testutil.ToFloat64(httpReplays.WithLabelValues("/votes"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/rounds/r1/submissions", nil),
		httptest.NewRequest(http.MethodGet, "/rounds/r2/submissions", nil),
		httptest.NewRequest(http.MethodPut, "/submissions/s1/vote", nil),
		httptest.NewRequest(http.MethodGet, "/wp-admin.php", nil),
		httptest.NewRequest(http.MethodGet, "/.env", nil),
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/votes", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/rounds/:id/submissions", "200")); got != baseList+2 {
		t.Fatalf("route counter = %v; want %v", got, baseList+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("PUT", "/submissions/:id/vote", "204")); got != baseVote+1 {
		t.Fatalf("vote counter = %v; want %v", got, baseVote+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404")); got != baseMiss+2 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics", "200")); got != baseScrape {
		t.Fatalf("scrapes must not be counted, got %v", got)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/health", "200")); got != baseHealth {
		t.Fatalf("health probes must not be counted, got %v", got)
	}
	if got := testutil.ToFloat64(httpReplays.WithLabelValues("/votes")); got != baseReplay+1 {
		t.Fatalf("replay counter = %v; want %v", got, baseReplay+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
