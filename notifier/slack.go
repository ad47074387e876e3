package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"firmware-risk-scanner/models"
)

// RiskSource lists stored risk assessments
type RiskSource interface {
	ListRiskAssessments(ctx context.Context, severity string, limit, offset int) ([]*models.RiskAssessment, error)
}

// SlackNotifier posts scan summaries to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	username   string
	channel    string
	iconEmoji  string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	risks      RiskSource
	options    *NotificationOptions
}

// NewSlackNotifier creates a new Slack notifier instance. risks may be nil, in
// which case run summaries carry no assessment list.
func NewSlackNotifier(webhookURL, username, channel, iconEmoji string, risks RiskSource, options *NotificationOptions) *SlackNotifier {
	if options == nil {
		options = DefaultNotificationOptions()
	}
	if options.MaxAssessmentsShown <= 0 {
		options.MaxAssessmentsShown = 10
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		username:   username,
		channel:    channel,
		iconEmoji:  iconEmoji,
		maxRetries: 3,
		retryDelay: time.Second * 2,
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
		risks:   risks,
		options: options,
	}
}

// SlackMessage represents a Slack message structure
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NotificationOptions contains options for notifications
type NotificationOptions struct {
	NotifyOnSuccess     bool
	MaxAssessmentsShown int
	MentionUsers        []string
	CustomChannel       string
}

// DefaultNotificationOptions returns default notification options
func DefaultNotificationOptions() *NotificationOptions {
	return &NotificationOptions{
		NotifyOnSuccess:     false,
		MaxAssessmentsShown: 10,
	}
}

// NotifyScanResult sends a failure alert for failed runs and a high-risk
// summary for successful ones. Successful runs with no high-risk firmware are
// only reported when NotifyOnSuccess is set.
func (sn *SlackNotifier) NotifyScanResult(ctx context.Context, result *models.ScanResult) error {
	if !result.Success {
		return sn.sendMessage(ctx, sn.buildFailureMessage(result))
	}

	var highRisk []*models.RiskAssessment
	if sn.risks != nil {
		assessments, err := sn.risks.ListRiskAssessments(ctx, string(models.SeverityHigh), sn.options.MaxAssessmentsShown+1, 0)
		if err != nil {
			return fmt.Errorf("failed to load high risk assessments: %w", err)
		}
		highRisk = assessments
	}

	if len(highRisk) == 0 && !sn.options.NotifyOnSuccess {
		return nil
	}

	return sn.sendMessage(ctx, sn.buildSummaryMessage(result, highRisk))
}

// SendCustomMessage sends a custom message to Slack
func (sn *SlackNotifier) SendCustomMessage(ctx context.Context, text string, channel string) error {
	message := &SlackMessage{
		Text:      text,
		Username:  sn.username,
		Channel:   getChannel(channel, sn.channel),
		IconEmoji: sn.iconEmoji,
	}

	return sn.sendMessage(ctx, message)
}

func (sn *SlackNotifier) buildFailureMessage(result *models.ScanResult) *SlackMessage {
	attachment := SlackAttachment{
		Color:     "danger",
		Title:     fmt.Sprintf("Run %s (%s)", result.RunID, result.Trigger),
		Text:      result.ErrorMessage,
		Footer:    "Firmware Risk Scanner",
		Timestamp: result.Timestamp.Unix(),
	}
	attachment.Fields = append(attachment.Fields, sn.countFields(result)...)

	return &SlackMessage{
		Text:        sn.withMentions(":x: *Firmware scan failed*"),
		Username:    sn.username,
		Channel:     getChannel(sn.options.CustomChannel, sn.channel),
		IconEmoji:   sn.iconEmoji,
		Attachments: []SlackAttachment{attachment},
	}
}

func (sn *SlackNotifier) buildSummaryMessage(result *models.ScanResult, highRisk []*models.RiskAssessment) *SlackMessage {
	color := "good"
	mainText := ":white_check_mark: *Firmware scan completed*"
	if len(highRisk) > 0 {
		color = "danger"
		mainText = ":rotating_light: *High risk firmware detected*"
	}

	attachment := SlackAttachment{
		Color:     color,
		Title:     fmt.Sprintf("Run %s (%s)", result.RunID, result.Trigger),
		Footer:    "Firmware Risk Scanner",
		Timestamp: result.Timestamp.Unix(),
	}
	attachment.Fields = append(attachment.Fields, sn.countFields(result)...)

	if len(highRisk) > 0 {
		attachment.Fields = append(attachment.Fields, SlackField{
			Title: "High Risk Firmware",
			Value: sn.formatAssessments(highRisk, sn.options.MaxAssessmentsShown),
			Short: false,
		})
	}

	return &SlackMessage{
		Text:        sn.withMentions(mainText),
		Username:    sn.username,
		Channel:     getChannel(sn.options.CustomChannel, sn.channel),
		IconEmoji:   sn.iconEmoji,
		Attachments: []SlackAttachment{attachment},
	}
}

func (sn *SlackNotifier) countFields(result *models.ScanResult) []SlackField {
	return []SlackField{
		{Title: "Posts Scanned", Value: fmt.Sprintf("%d", result.PostsScanned), Short: true},
		{Title: "New Posts", Value: fmt.Sprintf("%d", result.NewPosts), Short: true},
		{Title: "Issues Found", Value: fmt.Sprintf("%d", result.IssuesFound), Short: true},
		{Title: "Duration", Value: fmt.Sprintf("%dms", result.ScanDurationMS), Short: true},
	}
}

func (sn *SlackNotifier) withMentions(text string) string {
	if len(sn.options.MentionUsers) == 0 {
		return text
	}
	mentions := make([]string, len(sn.options.MentionUsers))
	for i, user := range sn.options.MentionUsers {
		mentions[i] = fmt.Sprintf("<@%s>", user)
	}
	return text + " " + strings.Join(mentions, " ")
}

// formatAssessments formats a list of assessments for display
func (sn *SlackNotifier) formatAssessments(assessments []*models.RiskAssessment, maxShown int) string {
	var lines []string
	for i, assessment := range assessments {
		if i >= maxShown {
			lines = append(lines, "... and more")
			break
		}
		lines = append(lines, fmt.Sprintf("%s *%s* %s: %d%% (%d issues)",
			getSeverityEmoji(string(assessment.Severity)), assessment.EquipmentType,
			assessment.FirmwareVersion, assessment.RiskPercentage, assessment.IssueCount))
	}
	return strings.Join(lines, "\n")
}

// sendMessage sends a message to Slack with retry logic
func (sn *SlackNotifier) sendMessage(ctx context.Context, message *SlackMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= sn.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(sn.retryDelay):
			case <-ctx.Done():
				return fmt.Errorf("slack notification cancelled: %w", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sn.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := sn.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}

		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}

		lastErr = fmt.Errorf("slack API returned status %d", resp.StatusCode)

		// Don't retry for client errors
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}

	return fmt.Errorf("failed to send Slack notification after retries: %w", lastErr)
}

// ValidateConfiguration validates the Slack notifier configuration
func (sn *SlackNotifier) ValidateConfiguration() error {
	if sn.webhookURL == "" {
		return fmt.Errorf("Slack webhook URL is required")
	}

	if !strings.HasPrefix(sn.webhookURL, "https://hooks.slack.com/") {
		return fmt.Errorf("invalid Slack webhook URL format")
	}

	return nil
}

func getSeverityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "high":
		return ":red_circle:"
	case "medium":
		return ":large_orange_circle:"
	case "low":
		return ":large_green_circle:"
	default:
		return ":white_circle:"
	}
}

func getChannel(customChannel, defaultChannel string) string {
	if customChannel != "" {
		return customChannel
	}
	return defaultChannel
}
