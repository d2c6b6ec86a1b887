package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/pkg/model"
)

func TestPlannerObserver(t *testing.T) {
	obs := NewPlannerObserver()

	before := testutil.ToFloat64(Runs.WithLabelValues(string(model.VariantPatientFlow), "success"))
	obs.ObserveRun(model.VariantPatientFlow, "success", 20*time.Millisecond)
	after := testutil.ToFloat64(Runs.WithLabelValues(string(model.VariantPatientFlow), "success"))
	assert.Equal(t, before+1, after)

	obs.ObserveSolver("cbc", "Infeasible", time.Second)
	assert.GreaterOrEqual(t, testutil.ToFloat64(SolverCalls.WithLabelValues("cbc", "Infeasible")), 1.0)

	RecordObjective(model.VariantFixedFacility, 6.43)
	assert.Equal(t, 6.43, testutil.ToFloat64(LastObjective.WithLabelValues(string(model.VariantFixedFacility))))
}

func TestHandler(t *testing.T) {
	RecordRequestMetrics(http.MethodPost, "/api/v1/sectorize", http.StatusOK, 10*time.Millisecond)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "healthloc_http_requests_total"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
