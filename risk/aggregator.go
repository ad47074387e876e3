package risk

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"firmware-risk-scanner/models"
)

// DefaultWindow is the trailing period of issues that feed an assessment
const DefaultWindow = 30 * 24 * time.Hour

const (
	highThreshold   = 70
	mediumThreshold = 40
)

// Store is the persistence the aggregator reads issues from and writes
// assessments to
type Store interface {
	GroupIssuesSince(ctx context.Context, since time.Time) ([]models.IssueGroup, error)
	UpsertRiskAssessment(ctx context.Context, assessment *models.RiskAssessment) error
}

// Aggregator recomputes risk assessments from recent issues
type Aggregator struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithWindow overrides the trailing window
func WithWindow(window time.Duration) Option {
	return func(a *Aggregator) {
		if window > 0 {
			a.window = window
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an aggregator over store
func NewAggregator(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Window returns the trailing window in use
func (a *Aggregator) Window() time.Duration {
	return a.window
}

// Recompute rebuilds the assessment of every (equipment, firmware) pair seen in
// the window and returns the number of rows written. Pairs that fell out of
// the window keep their last assessment.
func (a *Aggregator) Recompute(ctx context.Context) (int, error) {
	now := a.now().UTC()
	since := now.Add(-a.window)

	groups, err := a.store.GroupIssuesSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to load issue groups: %w", err)
	}

	written := 0
	for _, group := range groups {
		assessment := Assess(group)
		assessment.LastUpdated = now

		if err := a.store.UpsertRiskAssessment(ctx, assessment); err != nil {
			return written, fmt.Errorf("failed to store risk assessment: %w", err)
		}
		written++
	}

	log.Printf("Risk assessments updated: %d pairs (window %s)", written, a.window)
	return written, nil
}

// Assess scores one issue group
func Assess(group models.IssueGroup) *models.RiskAssessment {
	percentage := Percentage(group.IssueCount, group.AvgSeverity)
	return &models.RiskAssessment{
		EquipmentType:   group.EquipmentType,
		FirmwareVersion: group.FirmwareVersion,
		RiskPercentage:  percentage,
		Severity:        Bucket(percentage),
		IssueCount:      group.IssueCount,
	}
}

// Percentage is min(100, round(count*10 + avgSeverity*20))
func Percentage(issueCount int, avgSeverity float64) int {
	score := math.Round(float64(issueCount)*10 + avgSeverity*20)
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return int(score)
}

// Bucket maps a percentage to a severity: above 70 is high, above 40 medium
func Bucket(percentage int) models.Severity {
	switch {
	case percentage > highThreshold:
		return models.SeverityHigh
	case percentage > mediumThreshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
