package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "law_alert",
		Name:      "fetch_requests_total",
		Help:      "Outbound API requests by source and status",
	}, []string{"source", "status"})
	Events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "law_alert",
		Name:      "events_total",
		Help:      "Normalized change events produced by source",
	}, []string{"source"})
	LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "law_alert",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful full run",
	})
	ChangelogItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "law_alert",
		Name:      "changelog_items",
		Help:      "Items in the cumulative changelog after the last merge",
	})
)

func init() {
	prometheus.MustRegister(FetchRequests, Events, LastSuccess, ChangelogItems)
}

// Serve exposes /metrics and /healthz; used in interval mode only.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}
