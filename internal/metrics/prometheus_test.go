package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit_IsIdempotentAndExposesCounters(t *testing.T) {
	Init()
	Init()

	WebhooksReceived.WithLabelValues("received").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "sms_webhooks_total") {
		t.Fatalf("expected sms_webhooks_total in exposition")
	}
}

func TestCodesConsumed_CountsPerPlatform(t *testing.T) {
	before := testutil.ToFloat64(CodesConsumed.WithLabelValues("tiktok"))
	CodesConsumed.WithLabelValues("tiktok").Inc()

	if got := testutil.ToFloat64(CodesConsumed.WithLabelValues("tiktok")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
