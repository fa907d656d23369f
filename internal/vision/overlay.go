package vision

import (
	"image"
	"image/color"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clalos/zoneguard/internal/detect"
	"github.com/clalos/zoneguard/internal/zone"
	"gocv.io/x/gocv"
)

var (
	colorPreview = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	colorPoint   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	colorAlert   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorBox     = color.RGBA{R: 0, G: 255, B: 255, A: 255}
)

// EditHint is drawn on the edit-phase preview.
const EditHint = "Left click: add point  Right click: reset  Enter: start  Q: quit"

// DrawEditPreview draws the in-progress zone: an open polyline through the
// points once there are two of them, and a dot on every point.
func DrawEditPreview(img *gocv.Mat, points zone.Polygon) {
	if len(points) > 1 {
		polyline(img, points, false, colorPreview, 2)
	}
	for _, pt := range points {
		gocv.Circle(img, pt, 5, colorPoint, -1)
	}
	gocv.PutText(img, EditHint, image.Pt(10, img.Rows()-10), gocv.FontHersheySimplex, 0.45, colorPreview, 1)
}

// DrawZone outlines the confirmed zone. Incomplete zones are not drawn.
func DrawZone(img *gocv.Mat, poly zone.Polygon) {
	if !poly.Ready() {
		return
	}
	polyline(img, poly, true, colorAlert, 2)
}

// DrawDetection draws the box, class label and centroid of a target-class
// detection. Qualifying detections, those inside the zone, are additionally
// outlined in red and tagged "Target" at the centroid.
func DrawDetection(img *gocv.Mat, d detect.Detection, qualifying bool) {
	c := d.Centroid()
	if qualifying {
		gocv.PutText(img, "Target", c, gocv.FontHersheySimplex, 1, colorAlert, 2)
		gocv.Rectangle(img, d.Box, colorAlert, 3)
	}
	gocv.Rectangle(img, d.Box, colorBox, 2)
	gocv.PutText(img, d.Class, d.Box.Min, gocv.FontHersheySimplex, 0.8, colorBox, 2)
	gocv.Circle(img, c, 5, colorAlert, -1)
}

// DrawBanner writes the alert banner for class in the top-left corner.
func DrawBanner(img *gocv.Mat, class string) {
	gocv.PutText(img, BannerText(class), image.Pt(20, 30), gocv.FontHersheySimplex, 1, colorAlert, 2)
}

// BannerText is "<Class> Detected" with the class capitalised.
func BannerText(class string) string {
	class = strings.TrimSpace(class)
	if class == "" {
		return "Intrusion Detected"
	}
	r, size := utf8.DecodeRuneInString(class)
	return string(unicode.ToUpper(r)) + class[size:] + " Detected"
}

func polyline(img *gocv.Mat, pts zone.Polygon, closed bool, c color.RGBA, thickness int) {
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.Polylines(img, pv, closed, c, thickness)
}
