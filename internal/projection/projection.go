// Package projection maintains read-optimized tables derived from the
// event journal.
//
// Each projection is an Applier that folds event batches into its table.
// The Runner drives appliers through the journal in batches ordered by
// global sequence, persisting a checkpoint after every committed batch so
// replay is resumable and never reprocesses a batch. Live incremental
// updates and full replays share the same code path, which is what makes
// replay deterministic.
package projection

import (
	"context"
	"log"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage/cursor"
)

// DefaultBatchSize bounds how many events one batch processes.
const DefaultBatchSize = 200

// Applier folds event batches into one read-model table.
type Applier interface {
	// Name identifies the projection; it keys the checkpoint row.
	Name() string
	// Reset clears the projection's table before a replay from zero.
	Reset(ctx context.Context) error
	// Apply folds one batch of journal-ordered events into the table.
	Apply(ctx context.Context, events []event.Event) error
}

// Runner replays the event journal into a projection.
type Runner struct {
	events      storage.EventStore
	checkpoints storage.CheckpointStore
	applier     Applier
	batchSize   int
	now         func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBatchSize overrides the default batch size.
func WithBatchSize(size int) RunnerOption {
	return func(r *Runner) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// WithClock overrides the checkpoint timestamp source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner builds a replay runner for one projection.
func NewRunner(events storage.EventStore, checkpoints storage.CheckpointStore, applier Applier, opts ...RunnerOption) *Runner {
	runner := &Runner{
		events:      events,
		checkpoints: checkpoints,
		applier:     applier,
		batchSize:   DefaultBatchSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Run replays the journal into the projection until it is caught up.
//
// With reset the projection table and its checkpoint are cleared first and
// replay starts from zero; otherwise replay resumes strictly after the
// persisted cursor. A malformed cursor degrades to a full rebuild, reset
// included, with a logged warning. Cancellation is honored at batch
// boundaries so the last committed checkpoint stays consistent.
func (r *Runner) Run(ctx context.Context, reset bool) error {
	name := r.applier.Name()

	if reset {
		if err := r.applier.Reset(ctx); err != nil {
			return err
		}
		if err := r.checkpoints.ClearCheckpoint(ctx, name); err != nil {
			return err
		}
	}

	position, afterSeq, degraded, err := r.loadCheckpoint(ctx, name, reset)
	if err != nil {
		return err
	}
	if degraded {
		// The table may hold state from the unreadable checkpoint's run;
		// replaying over it would double-apply events.
		if err := r.applier.Reset(ctx); err != nil {
			return err
		}
		if err := r.checkpoints.ClearCheckpoint(ctx, name); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := r.events.ListEventsAfter(ctx, afterSeq, r.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		if err := r.applier.Apply(ctx, events); err != nil {
			return err
		}

		afterSeq = events[len(events)-1].GlobalSeq
		position += uint64(len(events))
		token, err := cursor.Encode(cursor.New(name, afterSeq))
		if err != nil {
			return err
		}
		checkpoint := storage.Checkpoint{
			Projection: name,
			Position:   position,
			Cursor:     token,
			UpdatedAt:  r.now().UTC(),
		}
		if err := r.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
			return err
		}
	}
}

// loadCheckpoint resolves the replay start position. Checkpoint corruption
// is survivable: the projection reports degraded and rebuilds from zero
// instead of failing.
func (r *Runner) loadCheckpoint(ctx context.Context, name string, reset bool) (position, afterSeq uint64, degraded bool, err error) {
	if reset {
		return 0, 0, false, nil
	}
	checkpoint, ok, err := r.checkpoints.GetCheckpoint(ctx, name)
	if err != nil {
		return 0, 0, false, err
	}
	if !ok {
		return 0, 0, false, nil
	}
	decoded, err := cursor.Decode(checkpoint.Cursor)
	if err != nil {
		log.Printf("projection %s: malformed checkpoint cursor, rebuilding from zero: %v", name, err)
		return 0, 0, true, nil
	}
	if err := cursor.ValidateProjectionHash(decoded, name); err != nil {
		log.Printf("projection %s: checkpoint cursor rejected, rebuilding from zero: %v", name, err)
		return 0, 0, true, nil
	}
	return checkpoint.Position, decoded.GlobalSeq, false, nil
}
