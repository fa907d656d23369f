package detect

import (
	"cmp"
	"fmt"
	"image"
	"slices"

	"github.com/chewxy/math32"
)

const (
	DefaultProbabilityThreshold = 0.5
	DefaultNmsIouThreshold      = 0.45
)

// Params controls post-processing of raw detector output.
type Params struct {
	ProbabilityThreshold float32 // Minimum class score kept. Zero uses the default.
	NmsIouThreshold      float32 // Boxes of one class overlapping more than this are merged. Zero uses the default.
}

// DefaultParams returns the thresholds used when none are configured.
func DefaultParams() Params {
	return Params{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
	}
}

func (p Params) withDefaults() Params {
	if p.ProbabilityThreshold <= 0 {
		p.ProbabilityThreshold = DefaultProbabilityThreshold
	}
	if p.NmsIouThreshold <= 0 {
		p.NmsIouThreshold = DefaultNmsIouThreshold
	}
	return p
}

// Candidate is a decoded box before labels are attached.
type Candidate struct {
	Box     image.Rectangle
	ClassID int
	Score   float32
}

// Detection attaches the class name from classes. Unknown ids are named
// "class_<id>".
func (c Candidate) Detection(classes []string) Detection {
	label := fmt.Sprintf("class_%d", c.ClassID)
	if c.ClassID >= 0 && c.ClassID < len(classes) {
		label = classes[c.ClassID]
	}
	return Detection{Box: c.Box, Class: label, Confidence: c.Score}
}

// DecodeYOLO decodes the output tensor of a YOLOv8 / YOLO11 detection head.
// dims is the tensor shape, either [1, 4+classes, anchors] or the transposed
// [1, anchors, 4+classes]. Each anchor holds cx, cy, w, h in network input
// pixels followed by one score per class. scaleX and scaleY map network input
// pixels back to frame pixels. Only the best class per anchor is kept, and
// only when it reaches params.ProbabilityThreshold. The result is not
// suppressed; see NMS.
func DecodeYOLO(output []float32, dims []int, scaleX, scaleY float32, params Params) ([]Candidate, error) {
	params = params.withDefaults()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected YOLO output shape %v", dims)
	}

	attrs, anchors := dims[1], dims[2]
	transposed := false
	if attrs > anchors {
		attrs, anchors = anchors, attrs
		transposed = true
	}
	if attrs <= 4 {
		return nil, fmt.Errorf("YOLO output has no class scores: shape %v", dims)
	}
	if len(output) < attrs*anchors {
		return nil, fmt.Errorf("YOLO output too short: have %d values, shape %v", len(output), dims)
	}

	at := func(attr, anchor int) float32 {
		if transposed {
			return output[anchor*attrs+attr]
		}
		return output[attr*anchors+anchor]
	}

	var out []Candidate
	for i := 0; i < anchors; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 4; c < attrs; c++ {
			if s := at(c, i); s > bestScore {
				bestScore = s
				bestClass = c - 4
			}
		}
		if bestClass < 0 || bestScore < params.ProbabilityThreshold {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		box := image.Rect(
			int(math32.Round((cx-w/2)*scaleX)),
			int(math32.Round((cy-h/2)*scaleY)),
			int(math32.Round((cx+w/2)*scaleX)),
			int(math32.Round((cy+h/2)*scaleY)),
		)
		out = append(out, Candidate{Box: box, ClassID: bestClass, Score: bestScore})
	}
	return out, nil
}

// IOU returns the intersection over union of two boxes.
func IOU(a, b image.Rectangle) float32 {
	inter := area(a.Intersect(b))
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return float32(inter) / float32(union)
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// NMS performs greedy per-class non-maximum suppression. Candidates are
// visited from highest to lowest score; a candidate is dropped when it
// overlaps an already kept box of the same class by more than iouThreshold.
// The result is ordered by descending score.
func NMS(cands []Candidate, iouThreshold float32) []Candidate {
	if iouThreshold <= 0 {
		iouThreshold = DefaultNmsIouThreshold
	}

	sorted := slices.Clone(cands)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})

	kept := make([]Candidate, 0, len(sorted))
	for _, c := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == c.ClassID && IOU(k.Box, c.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}
