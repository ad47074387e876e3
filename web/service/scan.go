package service

import (
	"context"
	"errors"
	"log"

	"firmware-risk-scanner/db"
	"firmware-risk-scanner/models"

	"github.com/gofiber/fiber/v2"
)

// ScanRunner performs one orchestrator run
type ScanRunner interface {
	Run(ctx context.Context, trigger models.ScanTrigger) (*models.ScanResult, error)
	Running() bool
}

type ScanService struct {
	database *db.Database
	runner   ScanRunner
}

func NewScanService(db *db.Database, runner ScanRunner) *ScanService {
	return &ScanService{database: db, runner: runner}
}

// HandleAPITriggerScan runs a manual scan. With ?async=true the run is started
// in the background and 202 is returned immediately.
func (ds *ScanService) HandleAPITriggerScan(c *fiber.Ctx) error {
	if ds.runner == nil {
		return c.Status(503).JSON(fiber.Map{"error": "Scanner is not configured"})
	}

	if c.QueryBool("async", false) {
		go func() {
			if _, err := ds.runner.Run(context.Background(), models.TriggerManual); err != nil {
				log.Printf("Background scan failed: %v", err)
			}
		}()

		return c.Status(202).JSON(fiber.Map{
			"status":  "started",
			"message": "Scan started",
		})
	}

	log.Println("Manual scan triggered")
	result, err := ds.runner.Run(c.UserContext(), models.TriggerManual)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"error":   "Scan failed",
			"message": err.Error(),
			"result":  result,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

func (ds *ScanService) HandleAPIScanStatus(c *fiber.Ctx) error {
	running := ds.runner != nil && ds.runner.Running()

	latest, err := ds.database.GetLatestScanResult(c.UserContext())
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(fiber.Map{
			"running": running,
			"message": "No scans completed yet",
		})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch scan status"})
	}

	return c.JSON(fiber.Map{
		"running": running,
		"latest":  latest,
	})
}

func (ds *ScanService) HandleAPIScanHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > maxPageSize {
		limit = 10
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx := c.UserContext()
	results, err := ds.database.GetLatestScanResults(ctx, limit, offset)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch scan history"})
	}
	if results == nil {
		results = []*models.ScanResult{}
	}

	total, err := ds.database.CountScanResults(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch scan history"})
	}

	return c.JSON(fiber.Map{
		"scans":  results,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
