package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveInitiate("success")
	m.ObserveInitiate("success")
	m.ObserveInitiate("invalid_tenant")
	m.ObserveCallback("signature_invalid", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.initiations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.initiations.WithLabelValues("invalid_tenant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callbacks.WithLabelValues("signature_invalid")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveInitiate("success")
		m.ObserveCallback("success", time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCallback("success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `shopinstall_callbacks_total{outcome="success"} 1`))
}
