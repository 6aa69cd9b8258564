package orchestration

import (
	"context"
	"errors"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/calendar"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
)

// PauseClock pauses a running clock with the given reason.
func (e *Engine) PauseClock(ctx context.Context, clockID, reason string) (*slaclock.Clock, error) {
	return e.clockCommand(ctx, clockID, func(clock *slaclock.Clock) error {
		return clock.Pause(reason, e.now())
	})
}

// ResumeClock resumes a paused clock, accumulating the pause duration. The
// deadline is not shifted; call ExtendDeadline when policy grants the paused
// time back.
func (e *Engine) ResumeClock(ctx context.Context, clockID string) (*slaclock.Clock, error) {
	return e.clockCommand(ctx, clockID, func(clock *slaclock.Clock) error {
		return clock.Resume(e.now())
	})
}

// ExtendDeadline shifts a clock's deadline forward and recomputes the
// at-risk threshold at the clock's configured percent. The aggregate never
// does this on its own; extension is an explicit policy decision.
func (e *Engine) ExtendDeadline(ctx context.Context, clockID string, extension time.Duration) (*slaclock.Clock, error) {
	if extension <= 0 {
		return nil, domainerrors.New(domainerrors.CodeSlaClockDeadlineInvalid, "deadline extension must be positive")
	}
	return e.clockCommand(ctx, clockID, func(clock *slaclock.Clock) error {
		if clock.IsTerminal() {
			return domainerrors.Newf(domainerrors.CodeSlaClockTerminal, "deadline extension rejected in state %s", clock.State)
		}
		deadlineAt := clock.DeadlineAt.Add(extension)
		thresholdAt, err := calendar.AtRiskThreshold(clock.StartedAt, deadlineAt, clock.AtRiskPercent)
		if err != nil {
			return err
		}
		clock.DeadlineAt = deadlineAt
		clock.AtRiskThresholdAt = thresholdAt
		clock.LastUpdatedAt = e.now().UTC()
		return nil
	})
}

// completeOrderClock completes the order's fulfillment clock if one exists.
// Completion on an already breached clock is a silent no-op inside the
// aggregate; a missing clock is not an error.
func (e *Engine) completeOrderClock(ctx context.Context, orderID string) error {
	clock, err := e.clocks.GetSlaClockByOrder(ctx, orderID, slaclock.KindFulfillment)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = e.clockCommand(ctx, clock.ID, func(clock *slaclock.Clock) error {
		return clock.Complete(e.now())
	})
	return err
}
