package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Account-security metrics.
var (
	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome (success, rejected, error).",
		},
		[]string{"outcome"},
	)

	lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Accounts that reached the failed-login lockout threshold.",
	})

	sessionsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_purged_total",
		Help: "Sessions invalidated by account deactivation or deletion.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginAttempts, lockoutsTotal, sessionsPurged,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records one authentication attempt outcome.
func ObserveLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveLockout records an account hitting the lockout threshold.
func ObserveLockout() {
	lockoutsTotal.Inc()
}

// ObserveSessionsPurged records n sessions removed by a purge.
func ObserveSessionsPurged(n int) {
	if n > 0 {
		sessionsPurged.Add(float64(n))
	}
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric cardinality stays
// bounded: /admin/accounts/42/unlock -> /admin/accounts/:id/unlock.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	collapse := func(prefix []string, tail ...string) bool {
		if len(segments) != len(prefix)+1+len(tail) {
			return false
		}
		for i, p := range prefix {
			if segments[i] != p {
				return false
			}
		}
		for i, t := range tail {
			if segments[len(prefix)+1+i] != t {
				return false
			}
		}
		return true
	}
	switch {
	case collapse([]string{"admin", "accounts"}):
		return "/admin/accounts/:id"
	case collapse([]string{"admin", "accounts"}, "unlock"):
		return "/admin/accounts/:id/unlock"
	case collapse([]string{"admin", "accounts"}, "password"):
		return "/admin/accounts/:id/password"
	case collapse([]string{"tickets"}):
		return "/tickets/:id"
	case collapse([]string{"tickets"}, "assign"):
		return "/tickets/:id/assign"
	case collapse([]string{"tickets"}, "status"):
		return "/tickets/:id/status"
	}
	return path
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
