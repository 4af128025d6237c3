package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTransitionCounter(t *testing.T) {
	before := testutil.ToFloat64(transitions.WithLabelValues("complete", OutcomeOK))
	Transition("complete", OutcomeOK)
	Transition("complete", OutcomeOK)
	assert.Equal(t, before+2, testutil.ToFloat64(transitions.WithLabelValues("complete", OutcomeOK)))
}

func TestPurchaseConflictCounter(t *testing.T) {
	before := testutil.ToFloat64(purchaseConflicts)
	PurchaseConflict()
	assert.Equal(t, before+1, testutil.ToFloat64(purchaseConflicts))
}

func TestHandlerExposesMetrics(t *testing.T) {
	Listing("create")
	ObserveHTTP(http.MethodGet, "/api/tickets", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resale_listings_total")
	assert.Contains(t, rec.Body.String(), "resale_http_request_duration_seconds")
}
