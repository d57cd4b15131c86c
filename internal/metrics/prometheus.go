package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_webhooks_total",
			Help: "Inbound SMS webhooks by outcome",
		},
		[]string{"status"},
	)

	CodesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_codes_extracted_total",
			Help: "Stored messages that carried a verification code",
		},
		[]string{"platform"},
	)

	CodesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_codes_consumed_total",
			Help: "Codes handed out by the platform scoped lookup",
		},
		[]string{"platform"},
	)
)

var once sync.Once

// Init registers metrics with Prometheus
func Init() {
	once.Do(func() {
		prometheus.MustRegister(WebhooksReceived)
		prometheus.MustRegister(CodesExtracted)
		prometheus.MustRegister(CodesConsumed)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
