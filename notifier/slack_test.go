package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"firmware-risk-scanner/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRisks struct {
	assessments []*models.RiskAssessment
	err         error
	severity    string
}

func (f *fakeRisks) ListRiskAssessments(ctx context.Context, severity string, limit, offset int) ([]*models.RiskAssessment, error) {
	f.severity = severity
	return f.assessments, f.err
}

type webhook struct {
	server   *httptest.Server
	calls    int32
	status   int
	messages chan SlackMessage
}

func newWebhook(t *testing.T, status int) *webhook {
	w := &webhook{status: status, messages: make(chan SlackMessage, 8)}
	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&w.calls, 1)
		var msg SlackMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			w.messages <- msg
		}
		rw.WriteHeader(w.status)
	}))
	t.Cleanup(w.server.Close)
	return w
}

func newTestNotifier(url string, risks RiskSource, options *NotificationOptions) *SlackNotifier {
	n := NewSlackNotifier(url, "Firmware Scanner", "#firmware", ":satellite:", risks, options)
	n.retryDelay = time.Millisecond
	return n
}

func sampleResult(success bool) *models.ScanResult {
	result := &models.ScanResult{
		RunID:        "run-1",
		Timestamp:    time.Unix(1717200000, 0),
		PostsScanned: 2,
		NewPosts:     1,
		IssuesFound:  1,
		Success:      success,
		Trigger:      models.TriggerScheduled,
	}
	if !success {
		result.ErrorMessage = "failed to fetch posts: timeout"
	}
	return result
}

func TestNewSlackNotifier(t *testing.T) {
	n := NewSlackNotifier("https://hooks.slack.com/test", "Firmware Scanner", "#firmware", ":satellite:", nil, nil)

	assert.Equal(t, "https://hooks.slack.com/test", n.webhookURL)
	assert.Equal(t, "#firmware", n.channel)
	assert.Equal(t, 3, n.maxRetries)
	assert.Equal(t, 10, n.options.MaxAssessmentsShown)
	assert.False(t, n.options.NotifyOnSuccess)
}

func TestValidateConfiguration(t *testing.T) {
	assert.NoError(t, NewSlackNotifier("https://hooks.slack.com/services/x", "", "", "", nil, nil).ValidateConfiguration())
	assert.Error(t, NewSlackNotifier("", "", "", "", nil, nil).ValidateConfiguration())
	assert.Error(t, NewSlackNotifier("https://example.com/hook", "", "", "", nil, nil).ValidateConfiguration())
}

func TestNotifyScanResult_Failure(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	n := newTestNotifier(hook.server.URL, nil, &NotificationOptions{MentionUsers: []string{"U123"}})

	require.NoError(t, n.NotifyScanResult(context.Background(), sampleResult(false)))

	msg := <-hook.messages
	assert.Contains(t, msg.Text, "scan failed")
	assert.Contains(t, msg.Text, "<@U123>")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "danger", msg.Attachments[0].Color)
	assert.Equal(t, "failed to fetch posts: timeout", msg.Attachments[0].Text)
	assert.Equal(t, "#firmware", msg.Channel)
}

func TestNotifyScanResult_HighRisk(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	risks := &fakeRisks{assessments: []*models.RiskAssessment{
		{EquipmentType: models.EquipmentRouter, FirmwareVersion: "3.2.7", RiskPercentage: 90, Severity: models.SeverityHigh, IssueCount: 5},
		{EquipmentType: models.EquipmentSwitch, FirmwareVersion: "7.1.0", RiskPercentage: 75, Severity: models.SeverityHigh, IssueCount: 3},
	}}
	n := newTestNotifier(hook.server.URL, risks, &NotificationOptions{MaxAssessmentsShown: 1, CustomChannel: "#alerts"})

	require.NoError(t, n.NotifyScanResult(context.Background(), sampleResult(true)))
	assert.Equal(t, "high", risks.severity)

	msg := <-hook.messages
	assert.Contains(t, msg.Text, "High risk firmware")
	assert.Equal(t, "#alerts", msg.Channel)

	fields := msg.Attachments[0].Fields
	last := fields[len(fields)-1]
	assert.Equal(t, "High Risk Firmware", last.Title)
	assert.Contains(t, last.Value, "*router* 3.2.7: 90% (5 issues)")
	assert.Contains(t, last.Value, "... and more")
	assert.NotContains(t, last.Value, "7.1.0")
}

func TestNotifyScanResult_QuietSuccess(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	n := newTestNotifier(hook.server.URL, &fakeRisks{}, nil)

	require.NoError(t, n.NotifyScanResult(context.Background(), sampleResult(true)))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hook.calls))

	n.options.NotifyOnSuccess = true
	require.NoError(t, n.NotifyScanResult(context.Background(), sampleResult(true)))
	msg := <-hook.messages
	assert.Contains(t, msg.Text, "completed")
	assert.Equal(t, "good", msg.Attachments[0].Color)
}

func TestNotifyScanResult_RiskSourceError(t *testing.T) {
	n := newTestNotifier("http://127.0.0.1:0", &fakeRisks{err: errors.New("db closed")}, nil)

	err := n.NotifyScanResult(context.Background(), sampleResult(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db closed")
}

func TestSendMessage_RetriesServerErrors(t *testing.T) {
	hook := newWebhook(t, http.StatusInternalServerError)
	n := newTestNotifier(hook.server.URL, nil, nil)

	err := n.SendCustomMessage(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hook.calls))
}

func TestSendMessage_NoRetryOnClientError(t *testing.T) {
	hook := newWebhook(t, http.StatusBadRequest)
	n := newTestNotifier(hook.server.URL, nil, nil)

	err := n.SendCustomMessage(context.Background(), "hello", "#other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hook.calls))

	msg := <-hook.messages
	assert.Equal(t, "#other", msg.Channel)
}

func TestGetSeverityEmoji(t *testing.T) {
	assert.Equal(t, ":red_circle:", getSeverityEmoji("HIGH"))
	assert.Equal(t, ":large_orange_circle:", getSeverityEmoji("medium"))
	assert.Equal(t, ":large_green_circle:", getSeverityEmoji("low"))
	assert.Equal(t, ":white_circle:", getSeverityEmoji("unknown"))
}
