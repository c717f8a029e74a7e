package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adorable-dev/adorable/internal/metrics"
)

func TestMetrics_RecordAndServe(t *testing.T) {
	m := metrics.New()

	m.ObserveHTTP("GET", "/api/teams", 200, 15*time.Millisecond)
	m.ObserveHTTP("GET", "/api/teams", 200, 5*time.Millisecond)
	m.WebhookEvent("push", "synced")
	m.InviteRedemption("success")
	m.InviteRedemption("used")
	m.GitHubSync("poller", "skipped")

	n, err := testutil.GatherAndCount(m.Registry(),
		"adorable_http_requests_total",
		"adorable_webhook_events_total",
		"adorable_invite_redemptions_total",
		"adorable_github_syncs_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `adorable_http_requests_total{method="GET",route="/api/teams",status="200"} 2`)
	assert.Contains(t, string(body), `adorable_invite_redemptions_total{outcome="used"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.WebhookEvent("ping", "pong")
		m.InviteRedemption("success")
		m.GitHubSync("webhook", "synced")
	})
}
