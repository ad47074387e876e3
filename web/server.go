package web

import (
	"log"
	"strings"

	"firmware-risk-scanner/db"
	"firmware-risk-scanner/metrics"
	"firmware-risk-scanner/web/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Options configures the API server
type Options struct {
	Port           string
	Version        string
	EnableCORS     bool
	AllowedOrigins []string

	// Runner backs the scan trigger endpoint; nil disables it
	Runner service.ScanRunner
	// Metrics is served on /metrics when set
	Metrics *metrics.Recorder

	SlackUsername  string
	SlackIconEmoji string
}

// Server is the reporting and trigger API
type Server struct {
	app      *fiber.App
	database *db.Database
	port     string

	issueService        *service.IssueService
	assessmentService   *service.AssessmentService
	statsService        *service.StatsService
	scanService         *service.ScanService
	healthService       *service.HealthService
	notificationService *service.NotificationService
	metrics             *metrics.Recorder
}

// NewServer creates a new API server instance
func NewServer(database *db.Database, opts Options) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Firmware Risk Scanner",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: log.Writer()}))
	if opts.EnableCORS {
		origins := "*"
		if len(opts.AllowedOrigins) > 0 {
			origins = strings.Join(opts.AllowedOrigins, ",")
		}
		app.Use(cors.New(cors.Config{AllowOrigins: origins}))
	}

	if opts.Version == "" {
		opts.Version = "dev"
	}

	server := &Server{
		app:                 app,
		database:            database,
		port:                opts.Port,
		issueService:        service.NewIssueService(database),
		assessmentService:   service.NewAssessmentService(database),
		statsService:        service.NewStatsService(database),
		scanService:         service.NewScanService(database, opts.Runner),
		healthService:       service.NewHealthService(database, opts.Version),
		notificationService: service.NewNotificationService(opts.SlackUsername, opts.SlackIconEmoji),
		metrics:             opts.Metrics,
	}

	server.setupRoutes(opts.Version)
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes(version string) {
	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := s.app.Group("/api")
	api.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "Firmware Risk Scanner API",
			"version": version,
			"endpoints": fiber.Map{
				"scan":        "/api/v1/scan",
				"issues":      "/api/v1/issues",
				"assessments": "/api/v1/assessments",
				"stats":       "/api/v1/stats",
			},
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/health", s.healthService.HandleHealthCheck)
	v1.Get("/stats", s.statsService.HandleAPIStats)

	// Issues
	v1.Get("/issues", s.issueService.HandleAPIIssues)
	v1.Get("/issues/meta/equipment-types", s.issueService.HandleAPIEquipmentTypes)
	v1.Get("/issues/:id", s.issueService.HandleAPIIssueDetail)

	// Risk assessments
	v1.Get("/assessments", s.assessmentService.HandleAPIAssessments)
	v1.Get("/assessments/meta/distribution", s.assessmentService.HandleAPIRiskDistribution)

	// Scans
	v1.Post("/scan/trigger", s.scanService.HandleAPITriggerScan)
	v1.Get("/scan/status", s.scanService.HandleAPIScanStatus)
	v1.Get("/scan/history", s.scanService.HandleAPIScanHistory)

	v1.Post("/notifications/slack/test", s.notificationService.HandleAPISlackTest)
}

// Start starts the API server and blocks until it stops
func (s *Server) Start() error {
	log.Printf("Starting Firmware Risk Scanner API on port %s", s.port)
	return s.app.Listen(":" + s.port)
}

// Stop gracefully stops the API server
func (s *Server) Stop() error {
	return s.app.Shutdown()
}
