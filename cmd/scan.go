package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"firmware-risk-scanner/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	outputFormat string
	maxPosts     int
	noNotify     bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan immediately",
	Long: `Scan fetches recent posts, classifies firmware issues, refreshes the risk
assessments and records the run in the scan history.

Examples:
  # run one scan with the configured limits
  firmware-risk-scanner scan

  # fetch at most 50 posts and print the result as JSON
  firmware-risk-scanner scan --max-posts 50 -o json

  # do not send Slack notifications for this run
  firmware-risk-scanner scan --no-notify`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	scanCmd.Flags().IntVar(&maxPosts, "max-posts", 0, "Maximum posts to fetch (overrides scanner.max_posts)")
	scanCmd.Flags().BoolVar(&noNotify, "no-notify", false, "Disable notifications for this run")
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(outputFormat); err != nil {
		return err
	}

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if maxPosts > 0 {
		cfg.Scanner.MaxPosts = maxPosts
	}
	if noNotify {
		cfg.Notification.SlackWebhookURL = ""
	}

	app, err := initializeComponents(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := app.Orchestrator.Run(ctx, models.TriggerCLI)
	if err := printScanResult(cmd.OutOrStdout(), result, outputFormat); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("scan failed: %w", runErr)
	}
	return nil
}

func validateOutputFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table, json or yaml)", format)
	}
}

// printScanResult writes a run summary in the requested format
func printScanResult(w io.Writer, result *models.ScanResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(result)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	status := "success"
	if !result.Success {
		status = "failed"
	}
	fmt.Fprintf(tw, "Run ID:\t%s\n", result.RunID)
	fmt.Fprintf(tw, "Trigger:\t%s\n", result.Trigger)
	fmt.Fprintf(tw, "Status:\t%s\n", status)
	fmt.Fprintf(tw, "Posts scanned:\t%d\n", result.PostsScanned)
	fmt.Fprintf(tw, "New posts:\t%d\n", result.NewPosts)
	fmt.Fprintf(tw, "Issues found:\t%d\n", result.IssuesFound)
	fmt.Fprintf(tw, "Duration:\t%dms\n", result.ScanDurationMS)
	if result.ErrorMessage != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", result.ErrorMessage)
	}
	return tw.Flush()
}
