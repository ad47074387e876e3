package service

import (
	"fmt"
	"time"

	"firmware-risk-scanner/notifier"

	"github.com/gofiber/fiber/v2"
)

type NotificationService struct {
	username  string
	iconEmoji string
}

func NewNotificationService(username, iconEmoji string) *NotificationService {
	return &NotificationService{username: username, iconEmoji: iconEmoji}
}

// Slack test request structure
type SlackTestRequest struct {
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel"`
}

// HandleAPISlackTest sends a test Slack notification
func (ds *NotificationService) HandleAPISlackTest(c *fiber.Ctx) error {
	var req SlackTestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.WebhookURL == "" {
		return c.Status(400).JSON(fiber.Map{"error": "webhook_url is required"})
	}

	slackNotifier := notifier.NewSlackNotifier(req.WebhookURL, ds.username, req.Channel, ds.iconEmoji, nil, nil)

	if err := slackNotifier.ValidateConfiguration(); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error":   "Invalid Slack configuration",
			"details": err.Error(),
		})
	}

	testMessage := fmt.Sprintf(":test_tube: *Firmware Risk Scanner notification test*\n\nSlack notifications are working.\n*Sent at:* %s",
		time.Now().UTC().Format("2006-01-02 15:04:05 MST"))

	if err := slackNotifier.SendCustomMessage(c.UserContext(), testMessage, req.Channel); err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error":   "Failed to send Slack test notification",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Slack test notification sent",
	})
}
