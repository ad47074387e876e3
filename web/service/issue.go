package service

import (
	"errors"
	"strconv"

	"firmware-risk-scanner/db"
	"firmware-risk-scanner/models"

	"github.com/gofiber/fiber/v2"
)

type IssueService struct {
	database *db.Database
}

func NewIssueService(db *db.Database) *IssueService {
	return &IssueService{database: db}
}

// HandleAPIIssues lists issues, newest first, filtered by equipmentType,
// severity and firmwareVersion
func (ds *IssueService) HandleAPIIssues(c *fiber.Ctx) error {
	page, limit, offset := parsePage(c)

	severity := c.Query("severity")
	if severity != "" && !models.Severity(severity).IsValid() {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid severity"})
	}

	issues, total, err := ds.database.ListIssues(c.UserContext(), db.IssueFilter{
		EquipmentType:   c.Query("equipmentType"),
		Severity:        severity,
		FirmwareVersion: c.Query("firmwareVersion"),
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch issues"})
	}
	if issues == nil {
		issues = []*models.Issue{}
	}

	return c.JSON(fiber.Map{
		"issues":     issues,
		"pagination": newPagination(page, limit, total),
	})
}

func (ds *IssueService) HandleAPIIssueDetail(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid issue ID"})
	}

	issue, err := ds.database.GetIssue(c.UserContext(), id)
	if errors.Is(err, db.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "Issue not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch issue"})
	}

	return c.JSON(issue)
}

func (ds *IssueService) HandleAPIEquipmentTypes(c *fiber.Ctx) error {
	counts, err := ds.database.EquipmentTypeCounts(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch equipment types"})
	}
	return c.JSON(counts)
}
