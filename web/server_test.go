package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"firmware-risk-scanner/classifier"
	"firmware-risk-scanner/db"
	"firmware-risk-scanner/metrics"
	"firmware-risk-scanner/models"
	"firmware-risk-scanner/risk"
	"firmware-risk-scanner/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	posts []*models.Post
}

func (s *stubSource) FetchRecentPosts(ctx context.Context, limit int) ([]*models.Post, error) {
	return s.posts, nil
}

// setupTestServer creates a server backed by a temporary database and an
// orchestrator that reads from a fixed set of posts
func setupTestServer(t *testing.T) (*Server, *db.Database) {
	t.Helper()

	database, err := db.NewDatabase("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	src := &stubSource{posts: []*models.Post{
		{ID: "p1", Title: "UDM firmware 3.2.7 crashed", Body: "Rebooted twice since the upgrade.", CreatedUTC: 1717200000},
		{ID: "p2", Title: "Best rack for a homelab?", Body: "Looking for recommendations.", CreatedUTC: 1717200100},
	}}
	recorder := metrics.NewRecorder()
	orchestrator := scanner.NewOrchestrator(src, classifier.Default(), database, risk.NewAggregator(database),
		scanner.WithMetrics(recorder))

	server := NewServer(database, Options{
		Port:       "8080",
		Version:    "test",
		EnableCORS: true,
		Runner:     orchestrator,
		Metrics:    recorder,
	})
	return server, database
}

func doRequest(t *testing.T, server *Server, method, path string, body io.Reader) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := server.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &response))
	return response
}

func TestNewServer(t *testing.T) {
	server, _ := setupTestServer(t)

	assert.NotNil(t, server.app)
	assert.NotNil(t, server.database)
	assert.Equal(t, "8080", server.port)
}

func TestHealthCheckEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	status, body := doRequest(t, server, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, status)

	response := decode(t, body)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "ok", response["database"])
	assert.Equal(t, "test", response["version"])
}

func TestAPIInfoEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	status, body := doRequest(t, server, "GET", "/api/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "/api/v1/issues")
}

func TestTriggerScanAndReports(t *testing.T) {
	server, _ := setupTestServer(t)

	status, body := doRequest(t, server, "POST", "/api/v1/scan/trigger", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	response := decode(t, body)
	assert.Equal(t, true, response["success"])
	result := response["result"].(map[string]interface{})
	assert.Equal(t, float64(2), result["posts_scanned"])
	assert.Equal(t, float64(2), result["new_posts"])
	assert.Equal(t, float64(1), result["issues_found"])
	assert.Equal(t, "manual", result["trigger"])

	t.Run("issues", func(t *testing.T) {
		status, body := doRequest(t, server, "GET", "/api/v1/issues?equipmentType=router", nil)
		require.Equal(t, http.StatusOK, status)

		response := decode(t, body)
		issues := response["issues"].([]interface{})
		require.Len(t, issues, 1)
		issue := issues[0].(map[string]interface{})
		assert.Equal(t, "p1", issue["post_id"])
		assert.Equal(t, "3.2.7", issue["firmware_version"])

		pagination := response["pagination"].(map[string]interface{})
		assert.Equal(t, float64(1), pagination["total"])
		assert.Equal(t, float64(1), pagination["totalPages"])
		assert.Equal(t, float64(20), pagination["limit"])
	})

	t.Run("issues filtered out", func(t *testing.T) {
		status, body := doRequest(t, server, "GET", "/api/v1/issues?severity=low", nil)
		require.Equal(t, http.StatusOK, status)

		response := decode(t, body)
		assert.Empty(t, response["issues"])
	})

	t.Run("invalid severity", func(t *testing.T) {
		status, _ := doRequest(t, server, "GET", "/api/v1/issues?severity=critical", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("issue detail", func(t *testing.T) {
		_, body := doRequest(t, server, "GET", "/api/v1/issues", nil)
		issues := decode(t, body)["issues"].([]interface{})
		id := int(issues[0].(map[string]interface{})["id"].(float64))

		status, body := doRequest(t, server, "GET", "/api/v1/issues/"+strconv.Itoa(id), nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "stability", decode(t, body)["issue_type"])

		status, _ = doRequest(t, server, "GET", "/api/v1/issues/9999", nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = doRequest(t, server, "GET", "/api/v1/issues/abc", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("equipment types", func(t *testing.T) {
		status, body := doRequest(t, server, "GET", "/api/v1/issues/meta/equipment-types", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), decode(t, body)["router"])
	})

	t.Run("assessments", func(t *testing.T) {
		status, body := doRequest(t, server, "GET", "/api/v1/assessments?severity=medium", nil)
		require.Equal(t, http.StatusOK, status)

		response := decode(t, body)
		assessments := response["assessments"].([]interface{})
		require.Len(t, assessments, 1)
		assessment := assessments[0].(map[string]interface{})
		assert.Equal(t, float64(70), assessment["risk_percentage"])
		assert.Equal(t, "router", assessment["equipment_type"])

		pagination := response["pagination"].(map[string]interface{})
		assert.Equal(t, float64(1), pagination["page"])
		assert.Equal(t, float64(1), pagination["total"])
		assert.Equal(t, float64(1), pagination["totalPages"])

		// a page past the end is empty but still reports the full total
		status, body = doRequest(t, server, "GET", "/api/v1/assessments?page=2&limit=1", nil)
		require.Equal(t, http.StatusOK, status)
		response = decode(t, body)
		assert.Empty(t, response["assessments"])
		pagination = response["pagination"].(map[string]interface{})
		assert.Equal(t, float64(1), pagination["total"])
		assert.Equal(t, float64(1), pagination["totalPages"])

		status, body = doRequest(t, server, "GET", "/api/v1/assessments/meta/distribution", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), decode(t, body)["medium"])
	})

	t.Run("stats", func(t *testing.T) {
		status, body := doRequest(t, server, "GET", "/api/v1/stats", nil)
		require.Equal(t, http.StatusOK, status)

		response := decode(t, body)
		overview := response["overview"].(map[string]interface{})
		assert.Equal(t, float64(2), overview["total_posts"])
		assert.Equal(t, float64(2), overview["processed_posts"])
		assert.Equal(t, float64(1), overview["total_issues"])
		assert.Equal(t, float64(1), overview["total_scans"])
		assert.NotNil(t, response["last_scan"])
	})

	t.Run("scan history and status", func(t *testing.T) {
		status, body := doRequest(t, server, "GET", "/api/v1/scan/history", nil)
		require.Equal(t, http.StatusOK, status)

		response := decode(t, body)
		assert.Equal(t, float64(1), response["total"])
		assert.Len(t, response["scans"], 1)

		status, body = doRequest(t, server, "GET", "/api/v1/scan/status", nil)
		require.Equal(t, http.StatusOK, status)

		response = decode(t, body)
		assert.Equal(t, false, response["running"])
		latest := response["latest"].(map[string]interface{})
		assert.Equal(t, true, latest["success"])
	})

	t.Run("metrics", func(t *testing.T) {
		status, body := doRequest(t, server, "GET", "/metrics", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(body), `firmware_risk_scanner_scan_runs_total{status="success",trigger="manual"} 1`)
	})
}

func TestTriggerScanAsync(t *testing.T) {
	server, database := setupTestServer(t)

	status, body := doRequest(t, server, "POST", "/api/v1/scan/trigger?async=true", nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "started", decode(t, body)["status"])

	assert.Eventually(t, func() bool {
		count, err := database.CountScanResults(context.Background())
		return err == nil && count == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScanStatus_NoScans(t *testing.T) {
	server, _ := setupTestServer(t)

	status, body := doRequest(t, server, "GET", "/api/v1/scan/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "No scans completed yet", decode(t, body)["message"])
}

func TestTriggerScan_NoRunner(t *testing.T) {
	database, err := db.NewDatabase("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	server := NewServer(database, Options{Port: "8080"})

	status, _ := doRequest(t, server, "POST", "/api/v1/scan/trigger", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = doRequest(t, server, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSlackTestEndpoint_Validation(t *testing.T) {
	server, _ := setupTestServer(t)

	status, body := doRequest(t, server, "POST", "/api/v1/notifications/slack/test", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "webhook_url is required")

	payload, err := json.Marshal(map[string]string{"webhook_url": "https://example.com/hook"})
	require.NoError(t, err)
	status, body = doRequest(t, server, "POST", "/api/v1/notifications/slack/test", bytes.NewReader(payload))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "Invalid Slack configuration")
}

func TestCORSHeaders(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := server.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
