package cmd

import (
	"fmt"
	"log"

	"firmware-risk-scanner/classifier"
	"firmware-risk-scanner/config"
	"firmware-risk-scanner/db"
	"firmware-risk-scanner/metrics"
	"firmware-risk-scanner/notifier"
	"firmware-risk-scanner/risk"
	"firmware-risk-scanner/scanner"
	"firmware-risk-scanner/source"
)

// components holds everything a scan run needs
type components struct {
	Config       *config.Config
	Database     *db.Database
	Classifier   *classifier.Classifier
	Aggregator   *risk.Aggregator
	Metrics      *metrics.Recorder
	Notifier     *notifier.SlackNotifier
	Orchestrator *scanner.Orchestrator
}

// initializeComponents opens the database and wires the scan pipeline
func initializeComponents(cfg *config.Config, src source.Source) (*components, error) {
	c := &components{Config: cfg}

	classif, err := newClassifier(cfg.Taxonomy.File)
	if err != nil {
		return nil, err
	}
	c.Classifier = classif

	if src == nil {
		src, err = newSource(cfg.Source)
		if err != nil {
			return nil, err
		}
	}

	c.Database, err = db.NewDatabase(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c.Aggregator = risk.NewAggregator(c.Database, risk.WithWindow(cfg.Scanner.RiskWindow()))
	c.Metrics = metrics.NewRecorder()

	opts := []scanner.Option{
		scanner.WithMaxPosts(cfg.Scanner.MaxPosts),
		scanner.WithMetrics(c.Metrics),
	}

	if cfg.Notification.NotificationsEnabled() {
		c.Notifier = notifier.NewSlackNotifier(
			cfg.Notification.SlackWebhookURL,
			cfg.Notification.Username,
			cfg.Notification.SlackChannel,
			cfg.Notification.IconEmoji,
			c.Database,
			&notifier.NotificationOptions{
				NotifyOnSuccess: cfg.Notification.NotifyOnSuccess,
				MentionUsers:    cfg.Notification.MentionUsers,
			},
		)
		if err := c.Notifier.ValidateConfiguration(); err != nil {
			log.Printf("Warning: Slack notifier configuration: %v", err)
		}
		opts = append(opts, scanner.WithNotifier(c.Notifier))
	}

	c.Orchestrator = scanner.NewOrchestrator(src, c.Classifier, c.Database, c.Aggregator, opts...)
	return c, nil
}

// Close releases the database
func (c *components) Close() error {
	if c.Database == nil {
		return nil
	}
	return c.Database.Close()
}

func newClassifier(taxonomyFile string) (*classifier.Classifier, error) {
	if taxonomyFile == "" {
		return classifier.Default(), nil
	}

	taxonomy, err := classifier.LoadTaxonomyFile(taxonomyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}

	classif, err := classifier.New(taxonomy)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	log.Printf("Loaded taxonomy version %s from %s", taxonomy.Version, taxonomyFile)
	return classif, nil
}

func newSource(cfg config.SourceConfig) (source.Source, error) {
	client, err := source.NewRedditClient(source.RedditConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UserAgent:    cfg.UserAgent,
		Subreddit:    cfg.Subreddit,
		BaseURL:      cfg.BaseURL,
		TokenURL:     cfg.TokenURL,
		Timeout:      cfg.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Reddit client: %w", err)
	}
	return client, nil
}
