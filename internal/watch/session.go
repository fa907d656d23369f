// Package watch runs one detection session: the operator draws the
// restricted zone on the first frame, then every frame of the stream is run
// through the detector and qualifying detections drive the alert controller.
package watch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/clalos/zoneguard/internal/alert"
	"github.com/clalos/zoneguard/internal/detect"
	"github.com/clalos/zoneguard/internal/metrics"
	"github.com/clalos/zoneguard/internal/vision"
	"github.com/clalos/zoneguard/internal/zone"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// ErrStreamUnavailable is returned when the video source cannot be opened or
// yields no first frame.
var ErrStreamUnavailable = errors.New("video stream unavailable")

// Operator keys.
const (
	KeyEnter    = 13
	KeyLineFeed = 10
	KeyEsc      = 27
)

// Source is an opened video stream. *gocv.VideoCapture satisfies it.
type Source interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens the configured source from its first frame. It is called
// once for the edit phase and again for the detection phase.
type Opener func() (Source, error)

// Detector finds objects in a frame. Box coordinates are in the pixel space
// of the frame passed in.
type Detector interface {
	Detect(frame gocv.Mat) (iter.Seq[detect.Detection], error)
}

// Display shows frames to the operator and collects input.
type Display interface {
	Show(img gocv.Mat)
	PollKey() int
	OnPointer(fn func(zone.Pointer))
	Close() error
}

// SnapshotWriter persists a raw frame as snapshot index.
type SnapshotWriter interface {
	Save(frame gocv.Mat, index int) (string, error)
}

// Config holds the per-session settings.
type Config struct {
	// Width is the width frames are resized to before editing and detection.
	Width int
	// Targets are the classes that can trigger an alert.
	Targets detect.TargetSet
	// MaxSnapshots bounds the snapshots written per session.
	MaxSnapshots int
}

// Components are the collaborators a session drives. Open, Detector,
// Display, Snapshots and Controller are required. A nil Editor starts an
// empty one; a nil Metrics records into a private registry.
type Components struct {
	Open       Opener
	Detector   Detector
	Display    Display
	Snapshots  SnapshotWriter
	Controller *alert.Controller
	Editor     *zone.Editor
	Metrics    *metrics.RunMetrics
}

// Session is one edit-then-detect run over a video source. It is not safe
// for concurrent use.
type Session struct {
	config     Config
	open       Opener
	detector   Detector
	display    Display
	snapshots  SnapshotWriter
	controller *alert.Controller
	editor     *zone.Editor
	metrics    *metrics.RunMetrics
	logger     *slog.Logger
	runID      string
}

// NewSession creates a session. Each session gets its own run id, attached
// to every log record it writes.
func NewSession(config Config, c Components, logger *slog.Logger) *Session {
	if config.Width <= 0 {
		config.Width = vision.DefaultWidth
	}
	if c.Editor == nil {
		c.Editor = zone.NewEditor()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}

	runID := uuid.NewString()
	return &Session{
		config:     config,
		open:       c.Open,
		detector:   c.Detector,
		display:    c.Display,
		snapshots:  c.Snapshots,
		controller: c.Controller,
		editor:     c.Editor,
		metrics:    c.Metrics,
		logger:     logger.With("run_id", runID),
		runID:      runID,
	}
}

// RunID identifies this session in logs.
func (s *Session) RunID() string {
	return s.runID
}

// Run executes the session and returns the final alert state.
//
// Run proceeds in four steps:
//  1. Open the source and read the first frame. Failure here is fatal and
//     returned as ErrStreamUnavailable.
//  2. Let the operator draw the zone over that frame. Enter confirms, q or
//     Esc ends the session without detecting. Skipped when the editor was
//     confirmed up front.
//  3. Reopen the source so detection starts at the first frame.
//  4. Run every frame through the detector until the stream ends, the
//     operator quits or ctx is cancelled.
//
// Quitting and cancellation are not errors. The source is closed on every
// path.
func (s *Session) Run(ctx context.Context) (alert.State, error) {
	state := alert.NewState(s.config.MaxSnapshots)

	s.logger.Info("Session started",
		"targets", s.config.Targets.Labels(),
		"max_snapshots", s.config.MaxSnapshots,
		"width", s.config.Width)

	proceed, err := s.editZone(ctx)
	if err != nil || !proceed {
		return state, err
	}

	source, err := s.openSource()
	if err != nil {
		return state, err
	}
	defer source.Close()

	state, err = s.detectFrames(ctx, source, state)
	if err != nil {
		return state, err
	}

	s.logger.Info("Session finished",
		"phase", state.Phase(),
		"triggers", state.Triggers,
		"snapshots", state.SnapshotCount,
		"email_sent", state.EmailSent)
	s.metrics.LogSummary(s.logger)

	return state, nil
}

func (s *Session) openSource() (Source, error) {
	source, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}
	return source, nil
}

// editZone runs the edit phase. It reports whether detection should follow.
func (s *Session) editZone(ctx context.Context) (bool, error) {
	source, err := s.openSource()
	if err != nil {
		return false, err
	}
	defer source.Close()

	first := gocv.NewMat()
	defer first.Close()
	if !source.Read(&first) || first.Empty() {
		return false, fmt.Errorf("%w: no first frame", ErrStreamUnavailable)
	}

	base := vision.ResizeToWidth(first, s.config.Width)
	defer base.Close()

	s.logger.Debug("First frame read",
		"source_width", first.Cols(),
		"source_height", first.Rows(),
		"width", base.Cols(),
		"height", base.Rows())

	if s.editor.Phase() == zone.PhaseDetecting {
		s.logger.Info("Using preset zone", "zone", s.editor.Polygon().String())
		return true, nil
	}

	s.display.OnPointer(func(p zone.Pointer) {
		if !s.editor.HandlePointer(p) {
			return
		}
		if p.Action == zone.PointerReset {
			s.logger.Info("Zone reset")
			return
		}
		s.logger.Info("Zone point added", "x", p.X, "y", p.Y, "points", len(s.editor.Points()))
	})

	s.logger.Info("Draw the zone with left clicks, right click to reset, Enter to start detection")

	for {
		if ctx.Err() != nil {
			s.logger.Info("Session cancelled during zone editing")
			return false, nil
		}

		preview := base.Clone()
		vision.DrawEditPreview(&preview, s.editor.Points())
		s.display.Show(preview)
		preview.Close()

		switch key := s.display.PollKey(); {
		case key == KeyEnter || key == KeyLineFeed:
			if err := s.editor.Confirm(); err != nil {
				s.logger.Warn("Zone not confirmed",
					"points", len(s.editor.Points()),
					"min_points", zone.MinPoints,
					"error", err)
				continue
			}
			s.logger.Info("Zone confirmed, starting detection", "zone", s.editor.Polygon().String())
			return true, nil
		case isQuitKey(key):
			s.logger.Info("Quit requested during zone editing")
			return false, nil
		}
	}
}

// detectFrames runs the detection phase. A reopened source that yields no
// frame at all is reported as ErrStreamUnavailable.
func (s *Session) detectFrames(ctx context.Context, source Source, state alert.State) (alert.State, error) {
	polygon := s.editor.Polygon()

	frame := gocv.NewMat()
	defer frame.Close()

	for frameIndex := 0; ; frameIndex++ {
		if ctx.Err() != nil {
			s.logger.Info("Session cancelled", "frame_index", frameIndex)
			return state, nil
		}

		if !source.Read(&frame) || frame.Empty() {
			if frameIndex == 0 {
				return state, fmt.Errorf("%w: no frame after reopening", ErrStreamUnavailable)
			}
			s.logger.Info("End of stream", "frames", frameIndex)
			return state, nil
		}
		s.metrics.FrameProcessed()

		view := vision.ResizeToWidth(frame, s.config.Width)
		state = s.processFrame(ctx, frameIndex, frame, &view, polygon, state)
		s.display.Show(view)
		view.Close()

		if isQuitKey(s.display.PollKey()) {
			s.logger.Info("Quit requested", "frame_index", frameIndex)
			return state, nil
		}
	}
}

// processFrame runs detection on view, feeds qualifying detections to the
// controller and draws the overlay onto view. Snapshots are taken from raw.
func (s *Session) processFrame(ctx context.Context, frameIndex int, raw gocv.Mat, view *gocv.Mat, polygon zone.Polygon, state alert.State) alert.State {
	defer vision.DrawZone(view, polygon)

	start := time.Now()
	detections, err := s.detector.Detect(*view)
	s.metrics.ObserveInference(time.Since(start))
	if err != nil {
		s.metrics.DetectorError()
		s.logger.Error("Detection failed, skipping frame",
			"frame_index", frameIndex,
			"error", err)
		return state
	}
	if detections == nil {
		return state
	}

	capture := func(index int) (string, error) {
		return s.snapshots.Save(raw, index)
	}

	banner := ""
	for d := range detections {
		s.metrics.Detection()
		if !s.config.Targets.Contains(d.Class) {
			continue
		}
		s.metrics.TargetDetection()

		centroid := d.Centroid()
		qualifying := polygon.Ready() && zone.Contains(polygon, centroid)
		if qualifying {
			s.metrics.Intrusion()
			s.logger.Debug("Target inside zone",
				"frame_index", frameIndex,
				"class", d.Class,
				"confidence", d.Confidence,
				"x", centroid.X,
				"y", centroid.Y)

			var out alert.Outcome
			state, out = s.controller.Step(ctx, state, capture)
			s.record(out)
			banner = d.Class
		}
		vision.DrawDetection(view, d, qualifying)
	}

	if banner != "" {
		vision.DrawBanner(view, banner)
	}
	return state
}

func (s *Session) record(out alert.Outcome) {
	if out.Captured {
		s.metrics.Snapshot()
	}
	if out.CaptureErr != nil {
		s.metrics.SnapshotError()
	}
	if out.Notified {
		if out.NotifyErr != nil {
			s.metrics.NotificationError()
		} else {
			s.metrics.Notification()
		}
	}
	if out.AlarmStarted {
		s.metrics.AlarmStart()
	}
}

func isQuitKey(key int) bool {
	return key == 'q' || key == 'Q' || key == KeyEsc
}
