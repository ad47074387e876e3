package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"firmware-risk-scanner/scanner"
	"firmware-risk-scanner/web"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the scheduler and the reporting API",
	Long: `Start the scan scheduler and the HTTP API. A scan runs shortly after
startup and then on the configured schedule. Scans can also be triggered with
POST /api/v1/scan/trigger.`,
	RunE: runServer,
}

var (
	serverPort  string
	noScheduler bool
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&serverPort, "port", "p", "", "API server port (overrides server.port)")
	serverCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve the API without scheduled scans")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if serverPort != "" {
		cfg.Server.Port = serverPort
	}

	app, err := initializeComponents(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scheduler *scanner.Scheduler
	if cfg.Scanner.Enabled && !noScheduler {
		scheduler = scanner.NewScheduler(app.Orchestrator, cfg.Scanner.Schedule, cfg.Scanner.InitialDelay())
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Printf("Scheduled scans: %s", cfg.Scanner.Schedule)
	}

	opts := web.Options{
		Port:           cfg.Server.Port,
		Version:        appVersion,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Runner:         app.Orchestrator,
		SlackUsername:  cfg.Notification.Username,
		SlackIconEmoji: cfg.Notification.IconEmoji,
	}
	if cfg.Server.EnableMetrics {
		opts.Metrics = app.Metrics
	}
	server := web.NewServer(app.Database, opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Printf("API URL: http://localhost:%s/api/v1", cfg.Server.Port)

	select {
	case <-ctx.Done():
		log.Println("Shutting down server...")
	case err = <-errCh:
		if err != nil {
			err = fmt.Errorf("failed to start server: %w", err)
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	if stopErr := server.Stop(); stopErr != nil {
		log.Printf("Server forced to shutdown: %v", stopErr)
	}

	return err
}
