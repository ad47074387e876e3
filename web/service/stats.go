package service

import (
	"errors"

	"firmware-risk-scanner/db"

	"github.com/gofiber/fiber/v2"
)

type StatsService struct {
	database *db.Database
}

func NewStatsService(db *db.Database) *StatsService {
	return &StatsService{database: db}
}

func (ds *StatsService) HandleAPIStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	stats, err := ds.database.GetStats(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to get stats"})
	}

	equipment, err := ds.database.EquipmentTypeCounts(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to get stats"})
	}

	distribution, err := ds.database.RiskDistribution(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to get stats"})
	}

	response := fiber.Map{
		"overview":          stats,
		"equipment_types":   equipment,
		"risk_distribution": distribution,
		"last_scan":         nil,
	}

	latest, err := ds.database.GetLatestScanResult(ctx)
	switch {
	case err == nil:
		response["last_scan"] = latest
	case !errors.Is(err, db.ErrNotFound):
		return c.Status(500).JSON(fiber.Map{"error": "Failed to get stats"})
	}

	return c.JSON(response)
}
