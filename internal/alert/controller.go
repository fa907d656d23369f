// Package alert implements the intrusion alert state machine: bounded
// snapshot capture, a one-shot email notification and a debounced audible
// alarm, all driven by qualifying detections.
package alert

import (
	"context"
	"log/slog"
)

// Notifier sends the intrusion notification. It is called at most once per
// run.
type Notifier interface {
	Notify(ctx context.Context, snapshotPath string, count int) error
}

// Alarm is the audible alarm. Play must be safe to call while already
// playing and must not block.
type Alarm interface {
	IsPlaying() bool
	Play()
}

// Capture persists the current raw frame as snapshot number index and
// returns the written path.
type Capture func(index int) (path string, err error)

// Phase is the alert phase of a run.
type Phase int

const (
	// PhaseIdle means no qualifying detection has happened yet.
	PhaseIdle Phase = iota
	// PhaseAlerting is entered on the first qualifying detection and kept
	// for the rest of the run.
	PhaseAlerting
)

// String returns a string representation of the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAlerting:
		return "ALERTING"
	default:
		return "UNKNOWN"
	}
}

// State is the alert state of one detection run. It is a plain value: the
// run holds it and Controller.Step returns the successor.
type State struct {
	// SnapshotCount only grows, and never past MaxSnapshots.
	SnapshotCount int
	MaxSnapshots  int
	// EmailSent turns true after the single notification attempt.
	EmailSent bool
	// Triggers counts qualifying detections seen so far.
	Triggers int
}

// NewState returns the state at the start of a run.
func NewState(maxSnapshots int) State {
	return State{MaxSnapshots: max(maxSnapshots, 0)}
}

// Phase derives the alert phase from the trigger count.
func (s State) Phase() Phase {
	if s.Triggers > 0 {
		return PhaseAlerting
	}
	return PhaseIdle
}

// Outcome reports what one Step did.
type Outcome struct {
	// Captured is true when a snapshot was written. SnapshotIndex and
	// SnapshotPath describe it.
	Captured      bool
	SnapshotIndex int
	SnapshotPath  string
	CaptureErr    error

	// Notified is true when the notification was attempted in this step.
	Notified  bool
	NotifyErr error

	// AlarmStarted is true when playback was started in this step.
	AlarmStarted bool

	// Entered is true when this step moved the run from idle to alerting.
	Entered bool
}

// Controller applies qualifying detections to a State. Notifier and Alarm
// may be nil, which disables that channel.
type Controller struct {
	notifier Notifier
	alarm    Alarm
	logger   *slog.Logger
}

// NewController creates a controller. A nil logger discards output.
func NewController(notifier Notifier, alarm Alarm, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{notifier: notifier, alarm: alarm, logger: logger}
}

// Step handles one qualifying detection. The three actions are independent:
//
//  1. While SnapshotCount < MaxSnapshots, capture the raw frame as snapshot
//     SnapshotCount and increment. A failed capture does not use up a slot.
//  2. When this step took SnapshotCount from 0 to 1 and no email has been
//     sent, notify once with that snapshot. EmailSent is set whatever the
//     result, and failures are never retried.
//  3. Start the alarm unless it is already playing.
func (c *Controller) Step(ctx context.Context, st State, capture Capture) (State, Outcome) {
	out := Outcome{SnapshotIndex: -1}

	if st.Triggers == 0 {
		out.Entered = true
		c.logger.Warn("Intrusion detected in restricted zone",
			"from", PhaseIdle,
			"to", PhaseAlerting)
	}
	st.Triggers++

	if st.SnapshotCount < st.MaxSnapshots && capture != nil {
		index := st.SnapshotCount
		path, err := capture(index)
		if err != nil {
			out.CaptureErr = err
			c.logger.Error("Failed to save snapshot",
				"snapshot_index", index,
				"error", err)
		} else {
			st.SnapshotCount++
			out.Captured = true
			out.SnapshotIndex = index
			out.SnapshotPath = path
			c.logger.Info("Snapshot saved",
				"snapshot_index", index,
				"snapshot_path", path,
				"snapshot_count", st.SnapshotCount,
				"max_snapshots", st.MaxSnapshots)
		}
	}

	// The only way into the notification is the 0 -> 1 snapshot transition.
	if out.Captured && st.SnapshotCount == 1 && !st.EmailSent && c.notifier != nil {
		out.Notified = true
		st.EmailSent = true
		if err := c.notifier.Notify(ctx, out.SnapshotPath, st.SnapshotCount); err != nil {
			out.NotifyErr = err
			c.logger.Error("Failed to send alert email",
				"snapshot_path", out.SnapshotPath,
				"error", err)
		} else {
			c.logger.Info("Alert email sent",
				"snapshot_path", out.SnapshotPath,
				"records", st.SnapshotCount)
		}
	}

	if c.alarm != nil && !c.alarm.IsPlaying() {
		c.alarm.Play()
		out.AlarmStarted = true
		c.logger.Debug("Alarm started")
	}

	return st, out
}
