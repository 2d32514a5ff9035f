package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersByLabel(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveResponse("normal")
	m.ObserveResponse("normal")
	m.ObserveResponse("emergency_warning")
	m.ObserveRetrieval("categories", false)
	m.ObserveRetrieval("broad_category", true)
	m.ObserveRedFlag("emergency")
	m.ObserveMention("stripped")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.responses.WithLabelValues("normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("emergency_warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retrievals.WithLabelValues("broad_category", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redFlags.WithLabelValues("emergency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mentions.WithLabelValues("stripped")))
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveResponse("rx_limit")
	m.ObserveRequest(http.MethodPost, "/api/chat", http.StatusOK, 0.2)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(text, `mia_responses_total{type="rx_limit"} 1`), text)
	assert.Contains(t, text, "mia_http_request_duration_seconds_count")
}
