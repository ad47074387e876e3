package cmd

import (
	"fmt"
	"io"

	"firmware-risk-scanner/config"
	"firmware-risk-scanner/logging"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	// Version information
	appVersion string
	appCommit  string
	appDate    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "firmware-risk-scanner",
	Short: "Scans community reports for firmware issues and scores firmware risk",
	Long: `Firmware Risk Scanner periodically reads recent posts from a community
forum, classifies firmware related reports by equipment, issue type and
severity, and keeps a per-firmware risk assessment over a trailing window.

Main features:
- Scheduled and on-demand scans of the Reddit listing
- Rule based classification with a configurable taxonomy
- SQLite storage of posts, issues, assessments and scan history
- Reporting API with Prometheus metrics
- Optional Slack notifications`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(version, commit, date string) error {
	appVersion = version
	appCommit = commit
	appDate = date
	rootCmd.Version = getVersionString()

	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.firmware-risk-scanner.yaml or $HOME/.firmware-risk-scanner.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration and sets up logging for a command run.
// The returned closer releases the log file, if any.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	closer, err := logging.Init(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	logging.Debugf("Database: %s, subreddit: r/%s, schedule: %s", cfg.Database.GetDSN(), cfg.Source.Subreddit, cfg.Scanner.Schedule)

	return cfg, closer, nil
}

// getVersionString returns formatted version information
func getVersionString() string {
	if appVersion == "" {
		appVersion = "unknown"
	}
	if appCommit == "" {
		appCommit = "unknown"
	}
	if appDate == "" {
		appDate = "unknown"
	}

	return fmt.Sprintf("%s (commit: %s, date: %s)", appVersion, appCommit, appDate)
}
