// Package wildnet wraps the wildlife object-detection model. The model is an
// external black box: given an image it returns (label, confidence, box)
// tuples. This package owns loading, preprocessing, invocation and output
// parsing for SSD-style TFLite detection models.
package wildnet

import (
	"fmt"
	"os"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/conf"
	"github.com/wildsight/wildsight-go/internal/detection"
	"github.com/wildsight/wildsight-go/internal/errors"
)

// inputSize is the fixed square input resolution of the detection model.
const inputSize = 320

// maxDetections caps how many raw detections one invocation may return.
const maxDetections = 25

// Detector runs the object-detection model. Invocations are serialized; the
// TFLite interpreter is not re-entrant.
type Detector struct {
	interpreter *tflite.Interpreter
	labels      []string
	threshold   float64
	modelName   string
	mu          sync.Mutex
}

// LoadResult is the outcome of a model load attempt at startup. A failed
// load keeps the service running degraded; the health endpoint surfaces Err.
type LoadResult struct {
	Detector *Detector
	Path     string
	Err      error
}

// Loaded reports whether the model is usable.
func (r *LoadResult) Loaded() bool {
	return r != nil && r.Err == nil && r.Detector != nil
}

// Load attempts to load the detection model described by settings. It never
// panics and never exits; missing files are reported through LoadResult.Err.
func Load(settings *conf.ModelSettings) LoadResult {
	result := LoadResult{Path: settings.Path}

	detector, err := newDetector(settings)
	if err != nil {
		result.Err = err
		return result
	}
	result.Detector = detector
	return result
}

func newDetector(settings *conf.ModelSettings) (*Detector, error) {
	modelData, err := os.ReadFile(settings.Path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("wildnet: failed to read model file: %w", err)).
			Component("wildnet").
			Category(errors.CategoryModelLoad).
			Context("model_path", settings.Path).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("wildnet: cannot load TensorFlow Lite model").
			Component("wildnet").
			Category(errors.CategoryModelLoad).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)
	options.SetErrorReporter(func(msg string, userData any) {
		logger.Error("TFLite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("wildnet: cannot create interpreter").
			Component("wildnet").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("wildnet: tensor allocation failed").
			Component("wildnet").
			Category(errors.CategoryModelLoad).
			Build()
	}

	labels, err := loadLabels(settings.LabelsPath)
	if err != nil {
		return nil, err
	}

	return &Detector{
		interpreter: interpreter,
		labels:      labels,
		threshold:   settings.Threshold,
		modelName:   modelName(settings.Path),
	}, nil
}

// Name returns a short identifier for the loaded model.
func (d *Detector) Name() string {
	if d == nil {
		return ""
	}
	return d.modelName
}

// Detect runs the detection model on an encoded image and returns raw
// detections above the configured confidence threshold. Box coordinates are
// normalized [0,1] (ymin, xmin, ymax, xmax).
func (d *Detector) Detect(imageData []byte) ([]detection.RawDetection, error) {
	if d == nil || d.interpreter == nil {
		return nil, errors.Newf("wildnet: detection model not loaded").
			Component("wildnet").
			Category(errors.CategoryModelLoad).
			Build()
	}

	tensor, err := condition.PrepareInput(imageData, inputSize)
	if err != nil {
		return nil, err
	}

	boxes, classes, scores, count, err := d.invoke(tensor)
	if err != nil {
		return nil, err
	}

	return ParseOutput(d.labels, boxes, classes, scores, count, d.threshold), nil
}

// invoke runs one inference pass and copies out the four SSD output tensors:
// boxes, class indices, scores and valid detection count.
func (d *Detector) invoke(tensor []float32) (boxes, classes, scores []float32, count int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	input := d.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, nil, nil, 0, errors.Newf("wildnet: cannot get input tensor").
			Component("wildnet").
			Category(errors.CategoryModelInference).
			Build()
	}
	copy(input.Float32s(), tensor)

	if status := d.interpreter.Invoke(); status != tflite.OK {
		return nil, nil, nil, 0, errors.Newf("wildnet: tensor invoke failed: %v", status).
			Component("wildnet").
			Category(errors.CategoryModelInference).
			Build()
	}

	boxes = copyTensor(d.interpreter.GetOutputTensor(0))
	classes = copyTensor(d.interpreter.GetOutputTensor(1))
	scores = copyTensor(d.interpreter.GetOutputTensor(2))

	countTensor := d.interpreter.GetOutputTensor(3)
	if countTensor != nil && len(countTensor.Float32s()) > 0 {
		count = int(countTensor.Float32s()[0])
	} else {
		count = len(scores)
	}

	return boxes, classes, scores, count, nil
}

func copyTensor(t *tflite.Tensor) []float32 {
	if t == nil {
		return nil
	}
	out := make([]float32, len(t.Float32s()))
	copy(out, t.Float32s())
	return out
}

// ParseOutput converts SSD-style output tensors into raw detections,
// dropping entries below threshold or with out-of-range class indices.
func ParseOutput(labels []string, boxes, classes, scores []float32, count int, threshold float64) []detection.RawDetection {
	if count > len(scores) {
		count = len(scores)
	}
	if count > maxDetections {
		count = maxDetections
	}

	result := make([]detection.RawDetection, 0, count)
	for i := range count {
		score := float64(scores[i])
		if score < threshold {
			continue
		}
		classIdx := int(classes[i])
		if classIdx < 0 || classIdx >= len(labels) {
			continue
		}
		var box detection.Box
		if len(boxes) >= (i+1)*4 {
			for j := range 4 {
				box[j] = float64(boxes[i*4+j])
			}
		}
		result = append(result, detection.RawDetection{
			Label:      labels[classIdx],
			Confidence: score,
			Box:        box,
		})
	}
	return result
}
