package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveRun(t *testing.T) {
	r := NewRecorder()
	started := time.Unix(1717200000, 0)

	r.ObserveRun("scheduled", started, 2*time.Second, true)
	r.ObserveRun("manual", started, time.Second, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("scheduled", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("manual", "failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastRunStatus))
	assert.Equal(t, 1717200000.0, testutil.ToFloat64(r.lastRunUnix))
}

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.AddPosts(5, 2)
	r.AddPosts(3, 0)
	r.AddIssue("router", "high")
	r.AddIssue("router", "high")
	r.AddRecoverable("store_post")
	r.SetAssessments(4)

	assert.Equal(t, 8.0, testutil.ToFloat64(r.postsFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.newPosts))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.issuesFound.WithLabelValues("router", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recoverable.WithLabelValues("store_post")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.assessments))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.AddPosts(1, 1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "firmware_risk_scanner_posts_fetched_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
