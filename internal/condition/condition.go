// Package condition wraps the animal condition classification model. It owns
// the fixed preprocessing transform, the numerically stable softmax applied
// to the raw model output, and the degrade-to-Unknown failure policy: a
// classification never fails into the caller.
package condition

import (
	"fmt"
	"math"
	"os"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/wildsight/wildsight-go/internal/conf"
	"github.com/wildsight/wildsight-go/internal/errors"
)

// Condition labels, in model output order. Unknown is the sentinel for any
// failure and is never produced by the model itself.
const (
	LabelHealthy      = "Healthy"
	LabelInjured      = "Injured"
	LabelMalnourished = "Malnourished"
	LabelUnknown      = "Unknown"
)

// DefaultLabels is the model's output order.
var DefaultLabels = []string{LabelHealthy, LabelInjured, LabelMalnourished}

// inputSize is the fixed square resolution the model expects.
const inputSize = 224

// Result is the outcome of one condition classification.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // argmax probability x 100, 2 decimals
	// Probabilities is the full per-class distribution, absent on failure.
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// UnknownResult is returned for any classification failure.
func UnknownResult() Result {
	return Result{Label: LabelUnknown, Confidence: 0.0}
}

// Classifier runs the condition model. The underlying TFLite interpreter is
// not re-entrant, so invocations are serialized with a mutex.
type Classifier struct {
	interpreter *tflite.Interpreter
	labels      []string
	mu          sync.Mutex
}

// New loads the condition model from settings. A missing or unloadable model
// returns an error; callers keep the service running degraded and a nil
// Classifier still classifies everything as Unknown.
func New(settings *conf.ModelSettings) (*Classifier, error) {
	modelData, err := os.ReadFile(settings.Path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("condition: failed to read model file: %w", err)).
			Component("condition").
			Category(errors.CategoryModelLoad).
			Context("model_path", settings.Path).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("condition: cannot load TensorFlow Lite model").
			Component("condition").
			Category(errors.CategoryModelLoad).
			Context("model_size_kb", len(modelData)/1024).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)
	options.SetErrorReporter(func(msg string, userData any) {
		logger.Error("TFLite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("condition: cannot create interpreter").
			Component("condition").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("condition: tensor allocation failed").
			Component("condition").
			Category(errors.CategoryModelLoad).
			Build()
	}

	labels := DefaultLabels
	if settings.LabelsPath != "" {
		loaded, err := loadLabels(settings.LabelsPath)
		if err != nil {
			logger.Warn("falling back to built-in condition labels", "error", err)
		} else {
			labels = loaded
		}
	}

	return &Classifier{interpreter: interpreter, labels: labels}, nil
}

// Classify runs the condition model on an encoded image. Preprocessing is
// fixed: decode to 3-channel color, resize to a square resolution, scale
// pixel values to [0,1], add a batch dimension of 1. Any failure returns the
// Unknown sentinel instead of an error.
func (c *Classifier) Classify(imageData []byte) Result {
	result, err := c.classify(imageData)
	if err != nil {
		logger.Warn("condition classification degraded to Unknown", "error", err)
		return UnknownResult()
	}
	return result
}

func (c *Classifier) classify(imageData []byte) (Result, error) {
	if c == nil || c.interpreter == nil {
		return Result{}, errors.Newf("condition model not loaded").
			Component("condition").
			Category(errors.CategoryModelLoad).
			Build()
	}

	tensor, err := PrepareInput(imageData, inputSize)
	if err != nil {
		return Result{}, err
	}

	raw, err := c.invoke(tensor)
	if err != nil {
		return Result{}, err
	}

	return Postprocess(c.labels, raw)
}

// invoke runs one inference pass, serialized because the interpreter is not
// thread-safe.
func (c *Classifier) invoke(tensor []float32) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, errors.Newf("condition: cannot get input tensor").
			Component("condition").
			Category(errors.CategoryModelInference).
			Build()
	}
	copy(input.Float32s(), tensor)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("condition: tensor invoke failed: %v", status).
			Component("condition").
			Category(errors.CategoryModelInference).
			Build()
	}

	output := c.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, errors.Newf("condition: cannot get output tensor").
			Component("condition").
			Category(errors.CategoryModelInference).
			Build()
	}

	raw := make([]float32, len(output.Float32s()))
	copy(raw, output.Float32s())
	return raw, nil
}

// Postprocess turns raw model output into a Result. The stable softmax is
// applied even when the model already normalizes its output, guarding
// against unnormalized logits.
func Postprocess(labels []string, raw []float32) (Result, error) {
	if len(raw) == 0 || len(raw) > len(labels) {
		return Result{}, errors.Newf("condition: output size %d does not match %d labels", len(raw), len(labels)).
			Component("condition").
			Category(errors.CategoryModelInference).
			Build()
	}

	probs := Softmax(raw)

	argmax := 0
	for i := range probs {
		if probs[i] > probs[argmax] {
			argmax = i
		}
	}

	probabilities := make(map[string]float64, len(probs))
	for i, p := range probs {
		probabilities[labels[i]] = p
	}

	return Result{
		Label:         labels[argmax],
		Confidence:    math.Round(probs[argmax]*10000) / 100,
		Probabilities: probabilities,
	}, nil
}

// Softmax computes a numerically stable softmax over raw scores, subtracting
// the maximum before exponentiating.
func Softmax(raw []float32) []float64 {
	if len(raw) == 0 {
		return nil
	}

	maxVal := raw[0]
	for _, v := range raw[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float64, len(raw))
	var sum float64
	for i, v := range raw {
		e := math.Exp(float64(v - maxVal))
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
