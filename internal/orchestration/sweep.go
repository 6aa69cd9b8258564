package orchestration

import (
	"context"
	"log"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
)

// DefaultSweepInterval is how often the SLA sweep runs when unconfigured.
const DefaultSweepInterval = time.Minute

// SweepStats reports what one sweep pass changed.
type SweepStats struct {
	Scanned  int
	AtRisk   int
	Breached int
}

// SweepClocks scans unresolved clocks once, breaching those past their
// deadline and flagging those past their at-risk threshold. The sweep is the
// sole driver of both transitions; every transition it applies is guarded by
// a state precondition, so overlapping sweeps are harmless. A failure on one
// clock is logged and does not stop the pass.
func (e *Engine) SweepClocks(ctx context.Context) (SweepStats, error) {
	clocks, err := e.clocks.ListUnresolvedSlaClocks(ctx)
	if err != nil {
		return SweepStats{}, err
	}

	stats := SweepStats{Scanned: len(clocks)}
	now := e.now()
	for _, clock := range clocks {
		switch {
		case clock.BreachedAt == nil && !now.Before(clock.DeadlineAt):
			if _, err := e.clockCommand(ctx, clock.ID, func(clock *slaclock.Clock) error {
				return clock.MarkBreached(e.now())
			}); err != nil {
				log.Printf("sweep: breach clock %s: %v", clock.ID, err)
				continue
			}
			stats.Breached++

		case clock.State == slaclock.StateRunning && clock.AtRiskAt == nil && !now.Before(clock.AtRiskThresholdAt):
			if _, err := e.clockCommand(ctx, clock.ID, func(clock *slaclock.Clock) error {
				return clock.MarkAtRisk(e.now())
			}); err != nil {
				log.Printf("sweep: mark clock %s at risk: %v", clock.ID, err)
				continue
			}
			stats.AtRisk++
		}
	}
	return stats, nil
}

// RunSweep sweeps on an interval until the context is canceled.
func (e *Engine) RunSweep(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if stats, err := e.SweepClocks(ctx); err != nil {
			log.Printf("sweep: %v", err)
		} else if stats.AtRisk > 0 || stats.Breached > 0 {
			log.Printf("sweep: scanned %d clocks, %d at risk, %d breached", stats.Scanned, stats.AtRisk, stats.Breached)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
