package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"firmware-risk-scanner/metrics"
	"firmware-risk-scanner/models"
	"firmware-risk-scanner/source"

	"github.com/google/uuid"
)

// DefaultMaxPosts bounds how many posts one run fetches
const DefaultMaxPosts = 200

// Store is the persistence used by a run
type Store interface {
	UpsertPost(ctx context.Context, post *models.Post) (bool, error)
	UpsertIssue(ctx context.Context, issue *models.Issue) error
	MarkPostsProcessed(ctx context.Context, ids []string) error
	CreateScanResult(ctx context.Context, result *models.ScanResult) error
}

// Classifier turns a batch of posts into issues
type Classifier interface {
	ClassifyAll(posts []*models.Post) []*models.Issue
}

// Aggregator rebuilds risk assessments from stored issues
type Aggregator interface {
	Recompute(ctx context.Context) (int, error)
}

// Notifier is told about every recorded run
type Notifier interface {
	NotifyScanResult(ctx context.Context, result *models.ScanResult) error
}

// Orchestrator runs the fetch, classify, aggregate pipeline and records one
// ScanResult per invocation
type Orchestrator struct {
	source     source.Source
	classifier Classifier
	store      Store
	aggregator Aggregator

	maxPosts int
	metrics  *metrics.Recorder
	notifier Notifier
	now      func() time.Time

	runMu   sync.Mutex
	running atomic.Bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMaxPosts sets the per-run fetch limit
func WithMaxPosts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPosts = n
		}
	}
}

// WithMetrics attaches a metrics recorder
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = recorder
	}
}

// WithNotifier attaches a notifier called after each recorded run
func WithNotifier(notifier Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = notifier
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator wires a pipeline from its dependencies
func NewOrchestrator(src source.Source, classifier Classifier, store Store, aggregator Aggregator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:     src,
		classifier: classifier,
		store:      store,
		aggregator: aggregator,
		maxPosts:   DefaultMaxPosts,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a run is in progress
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run executes one full pipeline pass. Runs are serialized; a caller that
// arrives during a run waits and then performs its own. The returned result is
// always the recorded one; err is the fatal error that ended the run, if any.
func (o *Orchestrator) Run(ctx context.Context, trigger models.ScanTrigger) (*models.ScanResult, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	o.running.Store(true)
	defer o.running.Store(false)

	start := o.now().UTC()
	result := &models.ScanResult{
		RunID:     uuid.NewString(),
		Timestamp: start,
		Trigger:   trigger,
	}

	log.Printf("Starting %s scan %s", trigger, result.RunID)

	runErr := o.execute(ctx, result)

	result.ScanDurationMS = o.now().Sub(start).Milliseconds()
	result.Success = runErr == nil
	if runErr != nil {
		result.ErrorMessage = runErr.Error()
		log.Printf("Scan %s failed: %v", result.RunID, runErr)
	} else {
		log.Printf("Scan %s completed in %dms. Posts: %d, New: %d, Issues: %d",
			result.RunID, result.ScanDurationMS, result.PostsScanned, result.NewPosts, result.IssuesFound)
	}

	// the audit record must be written even when the caller gave up
	if err := o.store.CreateScanResult(context.WithoutCancel(ctx), result); err != nil {
		log.Printf("Failed to record scan result %s: %v", result.RunID, err)
	}

	if o.metrics != nil {
		o.metrics.ObserveRun(string(trigger), start, time.Duration(result.ScanDurationMS)*time.Millisecond, result.Success)
	}

	if o.notifier != nil {
		if err := o.notifier.NotifyScanResult(context.WithoutCancel(ctx), result); err != nil {
			log.Printf("Failed to send scan notification: %v", err)
		}
	}

	return result, runErr
}

func (o *Orchestrator) execute(ctx context.Context, result *models.ScanResult) error {
	posts, err := o.source.FetchRecentPosts(ctx, o.maxPosts)
	if err != nil {
		return fmt.Errorf("failed to fetch posts: %w", err)
	}
	if len(posts) == 0 {
		log.Println("No posts fetched from source")
	}

	result.PostsScanned = len(posts)

	var skipped []*RecoverableError
	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)

		inserted, err := o.store.UpsertPost(ctx, post)
		if err != nil {
			skipped = append(skipped, o.recoverable(StageStorePost, post.ID, err))
			continue
		}
		if inserted {
			result.NewPosts++
		}
	}
	if o.metrics != nil {
		o.metrics.AddPosts(result.PostsScanned, result.NewPosts)
	}

	issues := o.classifier.ClassifyAll(posts)
	result.IssuesFound = len(issues)
	log.Printf("Found %d firmware issues", len(issues))

	for _, issue := range issues {
		if o.metrics != nil {
			o.metrics.AddIssue(string(issue.EquipmentType), string(issue.Severity))
		}
		if err := o.store.UpsertIssue(ctx, issue); err != nil {
			skipped = append(skipped, o.recoverable(StageStoreIssue, issue.Key(), err))
		}
	}

	if len(skipped) > 0 {
		log.Printf("Skipped %d items during scan %s", len(skipped), result.RunID)
	}

	written, err := o.aggregator.Recompute(ctx)
	if err != nil {
		return fmt.Errorf("failed to update risk assessments: %w", err)
	}
	if o.metrics != nil {
		o.metrics.SetAssessments(written)
	}

	if err := o.store.MarkPostsProcessed(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark posts processed: %w", err)
	}

	return nil
}

func (o *Orchestrator) recoverable(stage, key string, err error) *RecoverableError {
	rec := &RecoverableError{Stage: stage, Key: key, Err: err}
	log.Printf("Warning: skipping item: %v", rec)
	if o.metrics != nil {
		o.metrics.AddRecoverable(stage)
	}
	return rec
}
