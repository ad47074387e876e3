package service

import (
	"firmware-risk-scanner/db"
	"firmware-risk-scanner/models"

	"github.com/gofiber/fiber/v2"
)

type AssessmentService struct {
	database *db.Database
}

func NewAssessmentService(db *db.Database) *AssessmentService {
	return &AssessmentService{database: db}
}

// HandleAPIAssessments lists risk assessments, highest risk first
func (ds *AssessmentService) HandleAPIAssessments(c *fiber.Ctx) error {
	page, limit, offset := parsePage(c)

	severity := c.Query("severity")
	if severity != "" && !models.Severity(severity).IsValid() {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid severity"})
	}

	assessments, err := ds.database.ListRiskAssessments(c.UserContext(), severity, limit, offset)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch risk assessments"})
	}
	if assessments == nil {
		assessments = []*models.RiskAssessment{}
	}

	total, err := ds.database.CountRiskAssessments(c.UserContext(), severity)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to count risk assessments"})
	}

	return c.JSON(fiber.Map{
		"assessments": assessments,
		"pagination":  newPagination(page, limit, total),
	})
}

func (ds *AssessmentService) HandleAPIRiskDistribution(c *fiber.Ctx) error {
	distribution, err := ds.database.RiskDistribution(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch risk distribution"})
	}
	return c.JSON(distribution)
}
