// Package detect defines the detection records produced for each frame and
// the pure post-processing around the object detector: YOLO output
// decoding, non-maximum suppression, class labels and target filtering.
package detect

import (
	"image"
	"slices"
	"strings"
)

// Detection is one object found in a frame. Box is (x1,y1)-(x2,y2) in the
// pixel space of the frame that was given to the detector.
type Detection struct {
	Box        image.Rectangle
	Class      string
	Confidence float32
}

// Centroid returns the integer midpoint of the bounding box.
func (d Detection) Centroid() image.Point {
	return image.Pt((d.Box.Min.X+d.Box.Max.X)/2, (d.Box.Min.Y+d.Box.Max.Y)/2)
}

// TargetSet is the set of class labels treated as intrusive. Labels are
// compared case-insensitively. It is built once and only read afterwards.
type TargetSet struct {
	labels map[string]struct{}
}

// NewTargetSet builds a set from labels, ignoring blanks.
func NewTargetSet(labels ...string) TargetSet {
	s := TargetSet{labels: make(map[string]struct{}, len(labels))}
	for _, l := range labels {
		l = normalizeLabel(l)
		if l != "" {
			s.labels[l] = struct{}{}
		}
	}
	return s
}

// ParseTargetSet builds a set from a comma-separated list.
func ParseTargetSet(list string) TargetSet {
	return NewTargetSet(strings.Split(list, ",")...)
}

// Contains reports whether label is a target class.
func (s TargetSet) Contains(label string) bool {
	_, ok := s.labels[normalizeLabel(label)]
	return ok
}

// Len returns the number of target classes.
func (s TargetSet) Len() int {
	return len(s.labels)
}

// Labels returns the target classes in sorted order.
func (s TargetSet) Labels() []string {
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

func normalizeLabel(l string) string {
	return strings.ToLower(strings.TrimSpace(l))
}
