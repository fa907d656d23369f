// Package vision holds the OpenCV side of the detector: opening the video
// source, resizing frames, running the YOLO network, drawing the overlay,
// writing snapshots and the operator window.
package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DefaultWidth is the width every frame is resized to before detection.
const DefaultWidth = 640

// OpenStream opens a video file, stream URL or numeric device id.
//
// The returned capture must be closed by the caller. An error is returned
// when OpenCV cannot open the source or reports it as not opened.
func OpenStream(source string) (*gocv.VideoCapture, error) {
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture: %w", err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture is not opened: %s", source)
	}

	return capture, nil
}

// ResizeToWidth returns a copy of src scaled to width pixels wide with the
// aspect ratio preserved. The caller must close the returned Mat.
//
// An empty src or a non-positive width yields a plain copy.
func ResizeToWidth(src gocv.Mat, width int) gocv.Mat {
	dst := gocv.NewMat()
	if src.Empty() || width <= 0 || src.Cols() == 0 {
		src.CopyTo(&dst)
		return dst
	}

	height := max(1, width*src.Rows()/src.Cols())
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return dst
}
