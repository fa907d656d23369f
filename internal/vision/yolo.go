package vision

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"iter"
	"log/slog"
	"strings"

	"github.com/clalos/zoneguard/internal/detect"
	"gocv.io/x/gocv"
)

// DefaultInputSize is the square input resolution of exported YOLOv8 / YOLO11
// models.
const DefaultInputSize = 640

// ErrEmptyFrame is returned by Detect for a frame without pixels.
var ErrEmptyFrame = errors.New("empty frame")

// YOLOConfig describes the network to load.
type YOLOConfig struct {
	// Model is the path to an ONNX export of the network.
	Model string
	// Classes names the class ids in output order. Empty uses COCO.
	Classes []string
	// InputSize is the square network input. Zero uses DefaultInputSize.
	InputSize int
	// Backend and Target select the OpenCV DNN backend ("default", "cuda",
	// "openvino") and target device ("cpu", "cuda", "cuda_fp16").
	Backend string
	Target  string

	Params detect.Params
}

// YOLO runs a YOLOv8 / YOLO11 ONNX network through the OpenCV DNN module.
// It is not safe for concurrent use; the frame loop owns it.
type YOLO struct {
	net       gocv.Net
	classes   []string
	inputSize int
	params    detect.Params
}

// NewYOLO loads the network described by cfg. The caller must call Close.
func NewYOLO(cfg YOLOConfig, logger *slog.Logger) (*YOLO, error) {
	net := gocv.ReadNetFromONNX(cfg.Model)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", cfg.Model)
	}

	backend := strings.ToLower(cmp.Or(cfg.Backend, "default"))
	target := strings.ToLower(cmp.Or(cfg.Target, "cpu"))
	net.SetPreferableBackend(gocv.ParseNetBackend(backend))
	net.SetPreferableTarget(gocv.ParseNetTarget(target))

	classes := cfg.Classes
	if len(classes) == 0 {
		classes = detect.COCOClasses
	}

	params := cfg.Params
	defaults := detect.DefaultParams()
	if params.ProbabilityThreshold <= 0 {
		params.ProbabilityThreshold = defaults.ProbabilityThreshold
	}
	if params.NmsIouThreshold <= 0 {
		params.NmsIouThreshold = defaults.NmsIouThreshold
	}

	inputSize := cfg.InputSize
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}

	logger.Info("Detection model loaded",
		"model", cfg.Model,
		"classes", len(classes),
		"input_size", inputSize,
		"dnn_backend", backend,
		"dnn_target", target,
		"confidence", params.ProbabilityThreshold,
		"nms_iou", params.NmsIouThreshold)

	return &YOLO{net: net, classes: classes, inputSize: inputSize, params: params}, nil
}

// Detect runs the network on frame. Box coordinates in the result are in
// frame pixels. The sequence is computed eagerly and may be ranged over more
// than once; nothing is cached between calls.
func (y *YOLO) Detect(frame gocv.Mat) (iter.Seq[detect.Detection], error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(y.inputSize, y.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	scaleX := float32(frame.Cols()) / float32(y.inputSize)
	scaleY := float32(frame.Rows()) / float32(y.inputSize)
	candidates, err := detect.DecodeYOLO(data, output.Size(), scaleX, scaleY, y.params)
	if err != nil {
		return nil, err
	}

	kept := detect.NMS(candidates, y.params.NmsIouThreshold)
	classes := y.classes
	return func(yield func(detect.Detection) bool) {
		for _, c := range kept {
			if !yield(c.Detection(classes)) {
				return
			}
		}
	}, nil
}

// Classes returns the class names in output order.
func (y *YOLO) Classes() []string {
	return y.classes
}

// Close releases the network.
func (y *YOLO) Close() error {
	return y.net.Close()
}
