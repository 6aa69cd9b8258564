// Package slaclock implements the turnaround deadline timer aggregate.
//
// A clock tracks one turnaround commitment for a phase of an order. Deadline
// and at-risk instants are computed upstream by the business calendar; the
// aggregate only enforces transition legality and pause bookkeeping. Pausing
// never shifts the deadline: callers that want deadline extension for paused
// time recompute and persist shifted values explicitly.
package slaclock

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/calendar"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
	"github.com/Turnage-Digital/Holmes-sub001/internal/id"
)

// Kind names the tracked phase.
type Kind string

const (
	// KindFulfillment tracks the fulfillment phase turnaround.
	KindFulfillment Kind = "fulfillment"
)

// State describes the clock lifecycle.
type State string

const (
	StateRunning   State = "running"
	StateAtRisk    State = "at_risk"
	StatePaused    State = "paused"
	StateBreached  State = "breached"
	StateCompleted State = "completed"
)

// Clock is the SLA deadline timer aggregate.
type Clock struct {
	ID         string
	OrderID    string
	CustomerID string
	Kind       Kind

	State              State
	StartedAt          time.Time
	DeadlineAt         time.Time
	AtRiskThresholdAt  time.Time
	AtRiskPercent      float64
	TargetBusinessDays int

	AccumulatedPauseTime time.Duration
	PausedAt             *time.Time
	PauseReason          string
	AtRiskAt             *time.Time
	BreachedAt           *time.Time
	CompletedAt          *time.Time

	LastUpdatedAt time.Time

	// Version guards optimistic concurrency in storage.
	Version int64

	pending []event.Event
}

// StartInput describes what is needed to start a clock.
type StartInput struct {
	OrderID            string
	CustomerID         string
	Kind               Kind
	StartedAt          time.Time
	DeadlineAt         time.Time
	AtRiskThresholdAt  time.Time
	AtRiskPercent      float64
	TargetBusinessDays int
}

// Start creates a running clock. The at-risk threshold must not pass the
// deadline.
func Start(input StartInput) (*Clock, error) {
	if input.TargetBusinessDays <= 0 {
		return nil, domainerrors.New(domainerrors.CodeSlaClockTargetDaysInvalid, "target business days must be positive")
	}
	if !input.DeadlineAt.After(input.StartedAt) {
		return nil, domainerrors.New(domainerrors.CodeSlaClockDeadlineInvalid, "deadline must follow start")
	}
	if input.AtRiskThresholdAt.After(input.DeadlineAt) {
		return nil, domainerrors.New(domainerrors.CodeSlaClockThresholdInvalid, "at-risk threshold must not pass the deadline")
	}
	kind := input.Kind
	if kind == "" {
		kind = KindFulfillment
	}
	percent := input.AtRiskPercent
	if percent == 0 {
		percent = calendar.DefaultAtRiskPercent
	}

	clockID, err := id.NewID()
	if err != nil {
		return nil, err
	}

	startedAt := input.StartedAt.UTC()
	clock := &Clock{
		ID:                 clockID,
		OrderID:            strings.TrimSpace(input.OrderID),
		CustomerID:         strings.TrimSpace(input.CustomerID),
		Kind:               kind,
		State:              StateRunning,
		StartedAt:          startedAt,
		DeadlineAt:         input.DeadlineAt.UTC(),
		AtRiskThresholdAt:  input.AtRiskThresholdAt.UTC(),
		AtRiskPercent:      percent,
		TargetBusinessDays: input.TargetBusinessDays,
		LastUpdatedAt:      startedAt,
	}
	clock.emit(event.TypeSlaClockStarted, startedAt, event.SlaClockStartedPayload{
		Kind:               string(kind),
		StartedAt:          clock.StartedAt.Format(time.RFC3339),
		DeadlineAt:         clock.DeadlineAt.Format(time.RFC3339),
		AtRiskThresholdAt:  clock.AtRiskThresholdAt.Format(time.RFC3339),
		AtRiskPercent:      percent,
		TargetBusinessDays: input.TargetBusinessDays,
	})
	return clock, nil
}

// IsTerminal reports whether the clock reached a final state.
func (c *Clock) IsTerminal() bool {
	return c.State == StateBreached || c.State == StateCompleted
}

// MarkAtRisk flags the clock as at risk of breach. Only the sweep drives
// this transition. Re-marking an at-risk clock is a no-op.
func (c *Clock) MarkAtRisk(at time.Time) error {
	if c.State == StateAtRisk {
		return nil
	}
	if c.State != StateRunning {
		return domainerrors.Newf(domainerrors.CodeSlaClockNotRunning, "at-risk requires running state, have %s", c.State)
	}
	c.State = StateAtRisk
	atRiskAt := at.UTC()
	c.AtRiskAt = &atRiskAt
	c.touch(at)
	c.emit(event.TypeSlaClockAtRisk, at, nil)
	return nil
}

// MarkBreached records a missed deadline. Only the sweep drives this
// transition. Re-marking a breached clock is a no-op; breaching a completed
// clock is an error.
func (c *Clock) MarkBreached(at time.Time) error {
	if c.State == StateBreached {
		return nil
	}
	if c.State != StateRunning && c.State != StateAtRisk {
		return domainerrors.Newf(domainerrors.CodeSlaClockTerminal, "breach requires running or at-risk state, have %s", c.State)
	}
	c.State = StateBreached
	breachedAt := at.UTC()
	c.BreachedAt = &breachedAt
	c.touch(at)
	c.emit(event.TypeSlaClockBreached, at, nil)
	return nil
}

// Complete records on-time completion. A late completion signal that arrives
// after breach or completion is silently absorbed rather than rejected: it
// must not resurrect or overwrite a terminal state.
func (c *Clock) Complete(at time.Time) error {
	if c.IsTerminal() {
		return nil
	}
	if c.State != StateRunning && c.State != StateAtRisk {
		return domainerrors.Newf(domainerrors.CodeSlaClockNotRunning, "complete requires running or at-risk state, have %s", c.State)
	}
	c.State = StateCompleted
	completedAt := at.UTC()
	c.CompletedAt = &completedAt
	c.touch(at)
	c.emit(event.TypeSlaClockCompleted, at, nil)
	return nil
}

// Pause suspends a running clock. A pause that arrives after the clock is
// already terminal is a no-op so late signals cannot corrupt final state.
func (c *Clock) Pause(reason string, at time.Time) error {
	if c.IsTerminal() || c.State == StatePaused {
		return nil
	}
	if c.State != StateRunning {
		return domainerrors.Newf(domainerrors.CodeSlaClockNotRunning, "pause requires running state, have %s", c.State)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domainerrors.New(domainerrors.CodeSlaClockPauseReasonEmpty, "pause reason is required")
	}
	c.State = StatePaused
	pausedAt := at.UTC()
	c.PausedAt = &pausedAt
	c.PauseReason = reason
	c.touch(at)
	c.emit(event.TypeSlaClockPaused, at, event.SlaClockPausedPayload{Reason: reason})
	return nil
}

// Resume returns a paused clock to running and accumulates the elapsed
// pause duration. Deadline and at-risk instants are left untouched.
func (c *Clock) Resume(at time.Time) error {
	if c.State != StatePaused {
		return domainerrors.Newf(domainerrors.CodeSlaClockNotPaused, "resume requires paused state, have %s", c.State)
	}
	pausedFor := at.UTC().Sub(*c.PausedAt)
	if pausedFor < 0 {
		pausedFor = 0
	}
	c.AccumulatedPauseTime += pausedFor
	c.PausedAt = nil
	c.PauseReason = ""
	c.State = StateRunning
	c.touch(at)
	c.emit(event.TypeSlaClockResumed, at, event.SlaClockResumedPayload{
		PausedForMillis: pausedFor.Milliseconds(),
	})
	return nil
}

// PendingEvents returns the events appended since the last drain.
func (c *Clock) PendingEvents() []event.Event {
	return c.pending
}

// DrainEvents returns and clears pending events.
func (c *Clock) DrainEvents() []event.Event {
	drained := c.pending
	c.pending = nil
	return drained
}

func (c *Clock) touch(at time.Time) {
	c.LastUpdatedAt = at.UTC()
}

func (c *Clock) emit(eventType event.Type, at time.Time, payload any) {
	var payloadJSON []byte
	if payload != nil {
		payloadJSON, _ = json.Marshal(payload)
	}
	c.pending = append(c.pending, event.Event{
		StreamType:  event.StreamSlaClock,
		StreamID:    c.ID,
		Type:        eventType,
		Timestamp:   at.UTC(),
		OrderID:     c.OrderID,
		CustomerID:  c.CustomerID,
		PayloadJSON: payloadJSON,
	})
}
