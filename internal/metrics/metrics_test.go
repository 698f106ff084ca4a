package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(CacheRequests.WithLabelValues("hit"))
	CacheRequests.WithLabelValues("hit").Inc()
	if got := testutil.ToFloat64(CacheRequests.WithLabelValues("hit")); got != before+1 {
		t.Errorf("cache hits = %v, want %v", got, before+1)
	}

	SyncPages.WithLabelValues("popular", "succeeded").Add(3)
	if got := testutil.ToFloat64(SyncPages.WithLabelValues("popular", "succeeded")); got < 3 {
		t.Errorf("synced pages = %v, want at least 3", got)
	}
}

func TestHTTPMetrics(t *testing.T) {
	HTTPRequests.WithLabelValues("GET", "/api/movies", "200").Inc()
	if got := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/movies", "200")); got < 1 {
		t.Errorf("http requests = %v, want at least 1", got)
	}
	HTTPRequestDuration.WithLabelValues("GET", "/api/movies").Observe(0.01)
}
