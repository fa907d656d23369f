package vision

import (
	"fmt"
	"image"
	"testing"

	"github.com/clalos/zoneguard/internal/detect"
	"github.com/clalos/zoneguard/internal/zone"
	"gocv.io/x/gocv"
)

// BenchmarkResizeToWidth measures the per-frame resize done before
// detection for common camera resolutions.
func BenchmarkResizeToWidth(b *testing.B) {
	sizes := []image.Point{{X: 640, Y: 480}, {X: 1280, Y: 720}, {X: 1920, Y: 1080}}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dx%d", size.X, size.Y), func(b *testing.B) {
			src := gocv.NewMatWithSize(size.Y, size.X, gocv.MatTypeCV8UC3)
			src.SetTo(gocv.NewScalar(255, 255, 255, 0))
			defer src.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				dst := ResizeToWidth(src, DefaultWidth)
				dst.Close()
			}
		})
	}
}

// BenchmarkOverlay measures drawing a busy frame: zone outline, banner and
// a handful of detections.
func BenchmarkOverlay(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	img := gocv.NewMatWithSize(360, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	poly := zone.Polygon{{100, 100}, {500, 80}, {560, 300}, {120, 320}}
	dets := make([]detect.Detection, 10)
	for i := range dets {
		x := 20 + i*60
		dets[i] = detect.Detection{Box: image.Rect(x, 100, x+50, 250), Class: "person", Confidence: 0.8}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j, d := range dets {
			DrawDetection(&img, d, j%2 == 0)
		}
		DrawZone(&img, poly)
		DrawBanner(&img, "person")
	}
}
