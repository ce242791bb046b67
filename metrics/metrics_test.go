package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRegistry_ObserveCheckout(t *testing.T) {
	r := NewRegistry("test")

	r.ObserveCheckout(&models.CheckoutSummary{ItemsProcessed: 3})
	r.ObserveCheckout(&models.CheckoutSummary{ItemsProcessed: 2, FailedIncrements: 2, Partial: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Checkouts.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Checkouts.WithLabelValues("partial")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.CheckoutItems))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.FailedIncrements))
}

func TestRegistry_MiddlewareAndHandler(t *testing.T) {
	r := NewRegistry("test")
	router := gin.New()
	router.Use(r.Middleware())
	router.GET("/all/products", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(r.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/all/products", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Requests.WithLabelValues("/all/products", "GET", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "marketplace_test_http_requests_total"))
}

type fakeCloudWatch struct {
	enabled bool
	counts  []string
	values  map[string]float64
}

func (f *fakeCloudWatch) IsEnabled() bool { return f.enabled }

func (f *fakeCloudWatch) RecordCount(ctx context.Context, name string, dims map[string]string) error {
	f.counts = append(f.counts, name)
	return nil
}

func (f *fakeCloudWatch) RecordValue(ctx context.Context, name string, v float64, dims map[string]string) error {
	if f.values == nil {
		f.values = map[string]float64{}
	}
	f.values[name] = v
	return nil
}

func TestCloudWatchRecorder(t *testing.T) {
	cw := &fakeCloudWatch{enabled: true}
	rec := NewCloudWatchRecorder(cw, "marketplace", nil)
	rec.sync = true

	Recorders{rec, nil}.ObserveCheckout(&models.CheckoutSummary{ItemsProcessed: 4, FailedIncrements: 1})

	assert.Equal(t, []string{awspkg.MetricCheckouts}, cw.counts)
	assert.Equal(t, 4.0, cw.values[awspkg.MetricCheckoutItems])
	assert.Equal(t, 1.0, cw.values[awspkg.MetricCheckoutFailedIncrements])

	disabled := &fakeCloudWatch{}
	NewCloudWatchRecorder(disabled, "marketplace", nil).ObserveCheckout(&models.CheckoutSummary{})
	assert.Empty(t, disabled.counts)
}
