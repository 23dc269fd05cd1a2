/*
sweeper.go - Automated overdue fine sweeper

PURPOSE:
  Periodically accrues fines for every outstanding overdue loan so that
  ledgers stay current even for members who never hit the dues endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Delegates to Engine.SweepOverdueLoans, which is idempotent per
    loan/day - running the sweep twice never double-charges
  - Each sweep uses the current date, so a process that stays up across
    midnight charges the new day on its next tick

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether sweeper is active (default: true)

USAGE:
  sweeper := NewOverdueSweeper(handler)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: SweepOverdue endpoint (manual sweep)
  - circulation/facade.go: Engine.SweepOverdueLoans
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/circulation-engine/circulation"
)

// OverdueSweeper handles automated fine accrual.
type OverdueSweeper struct {
	Engine        *circulation.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueSweeper creates a new sweeper over the handler's engine.
func NewOverdueSweeper(h *Handler) *OverdueSweeper {
	return &OverdueSweeper{
		Engine:        h.Engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (sw *OverdueSweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	sw.ticker = time.NewTicker(sw.CheckInterval)
	sw.wg.Add(1)

	go sw.run()

	log.Printf("[Sweeper] Started with check interval: %v", sw.CheckInterval)
}

// Stop stops the sweeper.
func (sw *OverdueSweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		sw.ticker.Stop()
		close(sw.stop)
		sw.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (sw *OverdueSweeper) run() {
	defer sw.wg.Done()

	// Run immediately on start
	sw.sweep()

	for {
		select {
		case <-sw.ticker.C:
			sw.sweep()
		case <-sw.stop:
			return
		}
	}
}

func (sw *OverdueSweeper) sweep() {
	ctx := context.Background()
	asOf := circulation.Today()

	// A partial sweep still charges some members, so report both.
	charged, err := sw.Engine.SweepOverdueLoans(ctx, asOf)
	if charged > 0 {
		log.Printf("[Sweeper] Charged %d fine entries as of %s", charged, asOf)
	}
	if err != nil {
		log.Printf("[Sweeper] Error sweeping overdue loans: %v", err)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (sw *OverdueSweeper) RunNow() {
	sw.sweep()
}
