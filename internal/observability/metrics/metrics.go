package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maiclient_cache_requests_total",
		Help: "Cache lookups by data domain and result",
	}, []string{"domain", "result"})

	cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maiclient_cache_invalidations_total",
		Help: "Cache entries marked stale by tag invalidation",
	}, []string{"domain"})

	tokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maiclient_token_refreshes_total",
		Help: "Access token refresh attempts by result",
	}, []string{"result"})

	reconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maiclient_reconcile_passes_total",
		Help: "Session reconciliation passes by outcome",
	}, []string{"outcome"})

	sessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maiclient_session_authenticated",
		Help: "1 while the session is authenticated, 0 otherwise",
	})

	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maiclient_api_requests_total",
		Help: "API calls by operation and result",
	}, []string{"operation", "result"})
)

// ObserveCacheLookup records a cache lookup result ("hit", "miss" or "stale").
func ObserveCacheLookup(domain, result string) {
	cacheRequests.WithLabelValues(domain, result).Inc()
}

// ObserveInvalidation counts entries marked stale in a domain cache.
func ObserveInvalidation(domain string, count int) {
	cacheInvalidations.WithLabelValues(domain).Add(float64(count))
}

// ObserveTokenRefresh records a refresh attempt ("success", "rejected" or "error").
func ObserveTokenRefresh(result string) {
	tokenRefreshes.WithLabelValues(result).Inc()
}

// ObserveReconcilePass records a reconciliation pass outcome
// ("changed", "unchanged", "skipped" or "error").
func ObserveReconcilePass(outcome string) {
	reconcilePasses.WithLabelValues(outcome).Inc()
}

// SetAuthenticated flips the session state gauge.
func SetAuthenticated(authenticated bool) {
	if authenticated {
		sessionState.Set(1)
	} else {
		sessionState.Set(0)
	}
}

// ObserveAPIRequest records an API call result ("success" or "error").
func ObserveAPIRequest(operation, result string) {
	apiRequests.WithLabelValues(operation, result).Inc()
}
