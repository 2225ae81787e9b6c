package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStorefrontCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	ObserveHTTPRequest(http.MethodGet, "/api/products", http.StatusOK, 20*time.Millisecond)
	ObserveCheckout(OutcomeDeclined)
	ObserveWebhook("shippo", OutcomeDuplicate)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "smokeshop_http_requests_total", "route", "/api/products"); err != nil {
		t.Fatalf("fetch http requests: %v", err)
	} else if got < 1 {
		t.Fatalf("expected request counter, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "smokeshop_checkout_attempts_total", "outcome", OutcomeDeclined); err != nil {
		t.Fatalf("fetch checkout attempts: %v", err)
	} else if got < 1 {
		t.Fatalf("expected declined checkout, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "smokeshop_webhook_events_total", "provider", "shippo"); err != nil {
		t.Fatalf("fetch webhook events: %v", err)
	} else if got < 1 {
		t.Fatalf("expected shippo webhook counter, got %f", got)
	}
}
