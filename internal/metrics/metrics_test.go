package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Counters(t *testing.T) {
	m := New("test")

	m.RecordLink("PERSONAL", true)
	m.RecordLink("PERSONAL", false)
	m.RecordInvitation("app", true, false)
	m.RecordInvitation("app", true, true)
	m.RecordInvitation("oauth", false, false)
	m.RecordProvision("org", true)
	m.RecordTask("invite", nil)
	m.RecordTask("invite", errors.New("boom"))
	m.RecordTaskDropped()
	m.RecordInstallation(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GitHubLinks.WithLabelValues("PERSONAL", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GitHubLinks.WithLabelValues("PERSONAL", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invitations.WithLabelValues("app", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invitations.WithLabelValues("app", OutcomePending)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invitations.WithLabelValues("oauth", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReposProvisioned.WithLabelValues("org", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackgroundTasks.WithLabelValues("invite", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Installations.WithLabelValues(OutcomeSuccess)))
}

func TestRecord_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLink("x", true)
		m.RecordInvitation("app", true, false)
		m.RecordProvision("user", false)
		m.RecordTask("t", nil)
		m.RecordTaskDropped()
		m.RecordInstallation(false)
		m.RecordRequest("GET", "/", 200, time.Millisecond)
	})
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New("gestteam")
	m.RecordRequest("GET", "/github/healthz", 200, 5*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `gestteam_http_requests_total{method="GET",route="/github/healthz",status="200"} 1`))
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("a")
		New("a")
	})
}
