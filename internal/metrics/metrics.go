// Package metrics tracks counters for one detection run and exposes them
// through a private Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunMetrics counts what happened during a run. The frame loop updates the
// counters; the optional HTTP endpoint reads them from its own goroutine.
type RunMetrics struct {
	// framesProcessed counts frames read from the source in the detection phase.
	framesProcessed atomic.Int64
	// detections counts every detection returned by the detector.
	detections atomic.Int64
	// targetDetections counts detections of a target class.
	targetDetections atomic.Int64
	// intrusions counts qualifying detections (target class inside the zone).
	intrusions atomic.Int64
	// snapshots counts snapshot files written.
	snapshots atomic.Int64
	// snapshotErrors counts failed snapshot writes.
	snapshotErrors atomic.Int64
	// notifications counts successful alert emails.
	notifications atomic.Int64
	// notificationErrors counts failed alert emails.
	notificationErrors atomic.Int64
	// alarmStarts counts alarm playback starts.
	alarmStarts atomic.Int64
	// detectorErrors counts frames the detector failed on.
	detectorErrors atomic.Int64
	// avgInferenceNs is an exponential moving average of detector latency.
	avgInferenceNs atomic.Int64

	registry *prometheus.Registry
}

// New creates a RunMetrics with its collectors registered.
func New() *RunMetrics {
	m := &RunMetrics{registry: prometheus.NewRegistry()}
	m.register()
	return m
}

func (m *RunMetrics) register() {
	counter := func(name, help string, v *atomic.Int64) {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: "zoneguard", Name: name, Help: help},
			func() float64 { return float64(v.Load()) },
		))
	}

	counter("frames_processed_total", "Frames read during the detection phase", &m.framesProcessed)
	counter("detections_total", "Objects returned by the detector", &m.detections)
	counter("target_detections_total", "Detections of a target class", &m.targetDetections)
	counter("intrusions_total", "Target detections whose centroid is inside the zone", &m.intrusions)
	counter("snapshots_total", "Snapshot images written", &m.snapshots)
	counter("snapshot_errors_total", "Snapshot writes that failed", &m.snapshotErrors)
	counter("notifications_total", "Alert emails sent", &m.notifications)
	counter("notification_errors_total", "Alert emails that failed", &m.notificationErrors)
	counter("alarm_starts_total", "Times the audible alarm was started", &m.alarmStarts)
	counter("detector_errors_total", "Frames the detector failed on", &m.detectorErrors)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "zoneguard", Name: "inference_latency_ms", Help: "Average detector latency in milliseconds"},
		func() float64 { return m.AvgInferenceMs() },
	))
}

func (m *RunMetrics) FrameProcessed() { m.framesProcessed.Add(1) }
func (m *RunMetrics) Detection() { m.detections.Add(1) }
func (m *RunMetrics) TargetDetection() { m.targetDetections.Add(1) }
func (m *RunMetrics) Intrusion() { m.intrusions.Add(1) }
func (m *RunMetrics) Snapshot() { m.snapshots.Add(1) }
func (m *RunMetrics) SnapshotError() { m.snapshotErrors.Add(1) }
func (m *RunMetrics) Notification() { m.notifications.Add(1) }
func (m *RunMetrics) NotificationError() { m.notificationErrors.Add(1) }
func (m *RunMetrics) AlarmStart() { m.alarmStarts.Add(1) }
func (m *RunMetrics) DetectorError() { m.detectorErrors.Add(1) }
func (m *RunMetrics) FramesProcessed() int64 { return m.framesProcessed.Load() }
func (m *RunMetrics) Intrusions() int64 { return m.intrusions.Load() }
func (m *RunMetrics) Snapshots() int64 { return m.snapshots.Load() }

// ObserveInference folds one detector latency into the moving average.
func (m *RunMetrics) ObserveInference(d time.Duration) {
	current := m.avgInferenceNs.Load()
	sample := d.Nanoseconds()
	if current == 0 {
		m.avgInferenceNs.Store(sample)
		return
	}
	// EMA with alpha = 0.1
	m.avgInferenceNs.Store(int64(float64(current)*0.9 + float64(sample)*0.1))
}

// AvgInferenceMs returns the average detector latency in milliseconds.
func (m *RunMetrics) AvgInferenceMs() float64 {
	return float64(m.avgInferenceNs.Load()) / 1e6
}

// Handler serves the registry in the Prometheus text format.
func (m *RunMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// LogSummary writes the end-of-run report.
func (m *RunMetrics) LogSummary(logger *slog.Logger) {
	logger.Info("Run metrics report",
		"frames_processed", m.framesProcessed.Load(),
		"detections", m.detections.Load(),
		"target_detections", m.targetDetections.Load(),
		"intrusions", m.intrusions.Load(),
		"snapshots", m.snapshots.Load(),
		"snapshot_errors", m.snapshotErrors.Load(),
		"notifications", m.notifications.Load(),
		"notification_errors", m.notificationErrors.Load(),
		"alarm_starts", m.alarmStarts.Load(),
		"detector_errors", m.detectorErrors.Load(),
		"avg_inference_ms", m.AvgInferenceMs())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *RunMetrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
