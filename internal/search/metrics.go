package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mercadolocal_search_duration_seconds",
		Help:    "Product search latency.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"outcome"})

	geoShortCircuits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercadolocal_search_geo_short_circuits_total",
		Help: "Searches answered empty because no vendor was inside the radius.",
	})

	suggestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mercadolocal_suggest_lookup_failures_total",
		Help: "Autocomplete lookups that failed and were skipped.",
	}, []string{"kind"})

	viewIncrementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mercadolocal_view_increment_failures_total",
		Help: "Product view counter increments that failed.",
	})
)

func observeSearch(start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	searchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
