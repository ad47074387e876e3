package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"firmware-risk-scanner/models"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule     = "@every 6h"
	DefaultInitialDelay = 5 * time.Second
)

// Runner is the pipeline entry point the scheduler drives
type Runner interface {
	Run(ctx context.Context, trigger models.ScanTrigger) (*models.ScanResult, error)
}

// Scheduler triggers runs on a cron schedule plus once shortly after start
type Scheduler struct {
	runner       Runner
	schedule     string
	initialDelay time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. A negative initialDelay disables the
// startup run.
func NewScheduler(runner Runner, schedule string, initialDelay time.Duration) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		runner:       runner,
		schedule:     schedule,
		initialDelay: initialDelay,
		cron:         cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

// Start registers the cron job and schedules the startup run
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runOnce("scheduled") }); err != nil {
		s.cancel()
		return fmt.Errorf("failed to schedule scan %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.Printf("Scan scheduler started (%s)", s.schedule)

	if s.initialDelay >= 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			timer := time.NewTimer(s.initialDelay)
			defer timer.Stop()

			select {
			case <-timer.C:
				s.runOnce("initial")
			case <-s.ctx.Done():
			}
		}()
	}

	return nil
}

// Stop cancels pending runs and waits for an in-flight scan to finish. The
// in-flight scan keeps its context and completes normally.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Println("Scan scheduler stopped")
}

func (s *Scheduler) runOnce(reason string) {
	if s.ctx.Err() != nil {
		return
	}
	log.Printf("Running %s scan...", reason)
	if _, err := s.runner.Run(context.WithoutCancel(s.ctx), models.TriggerScheduled); err != nil {
		log.Printf("Scheduled scan failed: %v", err)
	}
}
