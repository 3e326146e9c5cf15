package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitscout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kitscout_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	teamsScraped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitscout_teams_scraped_total",
			Help: "Raw team records returned by acquisition sources",
		},
		[]string{"source"},
	)

	scrapeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitscout_scrape_errors_total",
			Help: "Failed scrape calls",
		},
		[]string{"source"},
	)

	emailValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitscout_email_validations_total",
			Help: "Email validations by outcome",
		},
		[]string{"reason"},
	)

	classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitscout_classifications_total",
			Help: "Lead classifications by method (ai or rules)",
		},
		[]string{"method"},
	)

	dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitscout_dispatches_total",
			Help: "Outreach messages attempted, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	campaignsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitscout_campaigns_completed_total",
			Help: "Campaign runs that reached completed",
		},
		[]string{"channel"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordScrape(source string, records int) {
	teamsScraped.WithLabelValues(source).Add(float64(records))
}

func RecordScrapeError(source string) {
	scrapeErrors.WithLabelValues(source).Inc()
}

func RecordValidation(reason string) {
	emailValidations.WithLabelValues(reason).Inc()
}

func RecordClassification(method string) {
	classifications.WithLabelValues(method).Inc()
}

func RecordDispatch(channel string, success bool) {
	outcome := "failed"
	if success {
		outcome = "sent"
	}
	dispatches.WithLabelValues(channel, outcome).Inc()
}

func RecordCampaignCompleted(channel string) {
	campaignsCompleted.WithLabelValues(channel).Inc()
}
