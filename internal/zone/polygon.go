// Package zone holds the restricted-zone polygon, the inclusive
// point-in-polygon test run against every detection, and the editor that
// builds the polygon from operator input.
package zone

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// MinPoints is the smallest polygon accepted as a zone.
const MinPoints = 4

// Polygon is an ordered list of pixel coordinates. The last point closes
// back onto the first.
type Polygon []image.Point

// Clone returns an independent copy of p.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Ready reports whether p has enough points to act as a zone.
func (p Polygon) Ready() bool {
	return len(p) >= MinPoints
}

// Contains reports whether pt lies inside poly using the even-odd rule.
// Points on an edge or a vertex count as inside. The test is exact integer
// arithmetic and accepts any point sequence, including self-intersecting or
// collinear ones; polygons with fewer than three points only contain the
// points of their segments.
func Contains(poly Polygon, pt image.Point) bool {
	n := len(poly)
	if n == 0 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[j], poly[i]
		if onSegment(a, b, pt) {
			return true
		}
		if (a.Y > pt.Y) == (b.Y > pt.Y) {
			continue
		}
		// Does the horizontal ray from pt towards +X cross edge a-b?
		// Compare pt.X against the crossing X without dividing.
		dy := b.Y - a.Y
		lhs := (pt.X - a.X) * dy
		rhs := (pt.Y - a.Y) * (b.X - a.X)
		if (dy > 0 && lhs < rhs) || (dy < 0 && lhs > rhs) {
			inside = !inside
		}
	}
	return inside
}

func onSegment(a, b, p image.Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if cross != 0 {
		return false
	}
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// ParsePolygon parses "x1,y1;x2,y2;..." into a polygon. Whitespace around
// numbers is ignored. The result is not checked for readiness.
func ParsePolygon(s string) (Polygon, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var poly Polygon
	for i, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("point %d: expected x,y, got %q", i+1, pair)
		}
		x, err := strconv.Atoi(strings.TrimSpace(xs))
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid x: %w", i+1, err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(ys))
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid y: %w", i+1, err)
		}
		poly = append(poly, image.Pt(x, y))
	}
	return poly, nil
}

// String formats p in the form accepted by ParsePolygon.
func (p Polygon) String() string {
	parts := make([]string, len(p))
	for i, pt := range p {
		parts[i] = strconv.Itoa(pt.X) + "," + strconv.Itoa(pt.Y)
	}
	return strings.Join(parts, ";")
}
