package service

import (
	"time"

	"firmware-risk-scanner/db"

	"github.com/gofiber/fiber/v2"
)

type HealthService struct {
	database *db.Database
	version  string
}

func NewHealthService(db *db.Database, version string) *HealthService {
	return &HealthService{database: db, version: version}
}

func (ds *HealthService) HandleHealthCheck(c *fiber.Ctx) error {
	status := "ok"
	code := 200
	database := "ok"
	if err := ds.database.Ping(); err != nil {
		status = "degraded"
		code = 503
		database = "error"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   ds.version,
	})
}
