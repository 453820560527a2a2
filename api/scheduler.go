/*
scheduler.go - Automated plan regeneration

PURPOSE:
  Periodically regenerates the current month's plan so targets follow the
  revenue recorded since the last run. Locked rows are preserved by the
  planner, so a scheduled run never undoes a manual edit.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Each run regenerates the month containing the clock's today
  - Failures are logged and retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to regenerate (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPlanScheduler(planner)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GeneratePlan endpoint (manual regeneration)
  - plan/planner.go: Planner.GeneratePlan
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/payplan/generic"
	"github.com/warp/payplan/plan"
)

// PlanScheduler regenerates the current month's plan on an interval.
type PlanScheduler struct {
	Planner       *plan.Planner
	Clock         generic.Clock
	CheckInterval time.Duration
	Enabled       bool
	Logger        *log.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPlanScheduler creates a new scheduler.
func NewPlanScheduler(planner *plan.Planner) *PlanScheduler {
	return &PlanScheduler{
		Planner:       planner,
		Clock:         generic.SystemClock{},
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

func (ps *PlanScheduler) logger() *log.Logger {
	if ps.Logger != nil {
		return ps.Logger
	}
	return log.Default()
}

// Start begins the scheduler.
func (ps *PlanScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.logger().Println("[Scheduler] Disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run(ps.ticker.C, ps.stop)

	ps.logger().Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler and waits for a running regeneration to finish.
func (ps *PlanScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.logger().Println("[Scheduler] Stopped")
	}
}

func (ps *PlanScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.regenerate()

	for {
		select {
		case <-tick:
			ps.regenerate()
		case <-stop:
			return
		}
	}
}

func (ps *PlanScheduler) regenerate() {
	if _, err := ps.RunNow(context.Background()); err != nil {
		ps.logger().Printf("[Scheduler] Regeneration failed: %v", err)
	}
}

// RunNow regenerates the current month immediately (for testing/admin).
func (ps *PlanScheduler) RunNow(ctx context.Context) (*plan.Outcome, error) {
	month := generic.MonthStart(generic.Today(ps.Clock))
	ps.logger().Printf("[Scheduler] Regenerating plan for %s", month.MonthString())
	return ps.Planner.GeneratePlan(ctx, month)
}

// NextRunTime returns when the next scheduled check will occur.
func (ps *PlanScheduler) NextRunTime() time.Time {
	return ps.Clock.Now().Add(ps.CheckInterval)
}
