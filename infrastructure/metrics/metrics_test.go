package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionsCounter(t *testing.T) {
	before := testutil.ToFloat64(Submissions.WithLabelValues("next"))
	Submissions.WithLabelValues("next").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Submissions.WithLabelValues("next")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	SessionsStarted.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quizsolver_sessions_started_total")
}
