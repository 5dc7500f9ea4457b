package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rentcrunch/internal/adapters/observability"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	observability.Handler(observability.NewRegistry()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	return string(body)
}

func TestRegistryExposesSearchMetrics(t *testing.T) {
	observability.ObserveHTTP("/v1/search", http.MethodPost, 202, 12*time.Millisecond)
	observability.ObserveProvider("count", 503, 40*time.Millisecond)
	observability.ObserveProvider("count", 0, time.Millisecond)
	observability.ObserveSession("degraded")
	observability.ObservePage("error")
	observability.ObserveMerge("insert")
	observability.SetResultSize(17)

	out := scrape(t)
	for _, want := range []string{
		`crunch_http_requests_total{method="POST",route="/v1/search",status="202"}`,
		`crunch_provider_requests_total{endpoint="count",status="503"}`,
		`crunch_provider_requests_total{endpoint="count",status="transport_error"}`,
		`crunch_search_sessions_total{outcome="degraded"}`,
		`crunch_page_fetches_total{status="error"}`,
		`crunch_result_merges_total{kind="insert"}`,
		"crunch_result_set_size 17",
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output", want)
		}
	}
}
