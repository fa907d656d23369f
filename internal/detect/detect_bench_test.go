package detect

import (
	"math/rand/v2"
	"testing"
)

// syntheticOutput builds a [1, 84, 8400] tensor, the output of a 640x640
// COCO model, with a sprinkling of confident anchors.
func syntheticOutput() ([]float32, []int) {
	const attrs, anchors = 84, 8400
	r := rand.New(rand.NewPCG(1, 2))
	data := make([]float32, attrs*anchors)
	for a := 0; a < anchors; a++ {
		data[0*anchors+a] = r.Float32() * 640
		data[1*anchors+a] = r.Float32() * 640
		data[2*anchors+a] = 20 + r.Float32()*100
		data[3*anchors+a] = 20 + r.Float32()*100
		for c := 4; c < attrs; c++ {
			data[c*anchors+a] = r.Float32() * 0.3
		}
		if a%50 == 0 {
			data[(4+r.IntN(80))*anchors+a] = 0.6 + r.Float32()*0.4
		}
	}
	return data, []int{1, attrs, anchors}
}

func BenchmarkDecodeYOLO(b *testing.B) {
	data, dims := syntheticOutput()
	params := DefaultParams()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeYOLO(data, dims, 2, 1.125, params); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNMS(b *testing.B) {
	data, dims := syntheticOutput()
	cands, err := DecodeYOLO(data, dims, 1, 1, DefaultParams())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NMS(cands, DefaultNmsIouThreshold)
	}
}
