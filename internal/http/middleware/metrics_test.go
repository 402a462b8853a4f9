package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/push/vapid-public-key", func(c *gin.Context) { c.String(http.StatusOK, "key") })
	r.DELETE("/devices/tokens", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/push/vapid-public-key", "200"))
	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/devices/tokens", "204"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404"))

	for _, rq := range []struct{ method, path string }{
		{http.MethodGet, "/push/vapid-public-key"},
		{http.MethodDelete, "/devices/tokens"},
		{http.MethodGet, "/wp-login.php"},
		{http.MethodGet, "/.env"},
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(rq.method, rq.path, nil))
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/push/vapid-public-key", "200")); got != baseOK+1 {
		t.Fatalf("vapid counter = %v, want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/devices/tokens", "204")); got != baseDel+1 {
		t.Fatalf("delete counter = %v, want %v", got, baseDel+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404")); got != baseMiss+2 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseMiss+2)
	}
	if n := testutil.CollectAndCount(httpReqs, "http_requests_total"); n == 0 {
		t.Fatal("no series collected")
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v", v)
	}
}

func TestMetrics_CountsReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.Use(func(c *gin.Context) {
		if c.GetHeader(HeaderIdempotencyKey) == "seen-before-1" {
			c.Set(ctxKeyIdemReplay, true)
		}
		c.Next()
	})
	r.POST("/notifications/send", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })

	base := testutil.ToFloat64(httpReplays.WithLabelValues("/notifications/send"))
	for _, key := range []string{"fresh-key-0001", "seen-before-1", ""} {
		req := httptest.NewRequest(http.MethodPost, "/notifications/send", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if got := testutil.ToFloat64(httpReplays.WithLabelValues("/notifications/send")); got != base+1 {
		t.Fatalf("replays = %v, want %v", got, base+1)
	}
}
