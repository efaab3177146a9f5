package condition

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmax_SumsToOne(t *testing.T) {
	t.Parallel()

	cases := [][]float32{
		{2.0, 1.0, 0.1},
		{0.0, 0.0, 0.0},
		{-5.0, 3.0, 100.0}, // large values must not overflow
		{0.33, 0.33, 0.34}, // already-normalized outputs get re-normalized
	}
	for _, raw := range cases {
		probs := Softmax(raw)
		var sum float64
		for _, p := range probs {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "input %v", raw)
	}
}

func TestSoftmax_UnnormalizedLogits(t *testing.T) {
	t.Parallel()

	result, err := Postprocess(DefaultLabels, []float32{2.0, 1.0, 0.1})
	require.NoError(t, err)

	assert.Equal(t, LabelHealthy, result.Label)
	assert.InDelta(t, 65.9, result.Confidence, 0.05)
	require.Len(t, result.Probabilities, 3)
	assert.Greater(t, result.Probabilities[LabelHealthy], result.Probabilities[LabelInjured])
}

func TestSoftmax_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Softmax(nil))
}

func TestPostprocess_OutputLabelMismatch(t *testing.T) {
	t.Parallel()

	_, err := Postprocess(DefaultLabels, []float32{0.1, 0.2, 0.3, 0.4})
	assert.Error(t, err)

	_, err = Postprocess(DefaultLabels, nil)
	assert.Error(t, err)
}

func TestPostprocess_ConfidenceRounding(t *testing.T) {
	t.Parallel()

	// Equal logits: each class gets exactly 1/3, confidence 33.33.
	result, err := Postprocess(DefaultLabels, []float32{1.0, 1.0, 1.0})
	require.NoError(t, err)
	assert.InDelta(t, 33.33, result.Confidence, 1e-9)
}

func TestClassify_NilClassifierDegradesToUnknown(t *testing.T) {
	t.Parallel()

	var c *Classifier
	result := c.Classify([]byte("not an image"))
	assert.Equal(t, LabelUnknown, result.Label)
	assert.Zero(t, result.Confidence)
	assert.Nil(t, result.Probabilities)
}

func TestPrepareInput_ValidImage(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 128, B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	tensor, err := PrepareInput(buf.Bytes(), 4)
	require.NoError(t, err)
	assert.Len(t, tensor, 4*4*3)

	for i := 0; i < len(tensor); i += 3 {
		assert.InDelta(t, 1.0, float64(tensor[i]), 0.01, "red channel")
		assert.InDelta(t, 128.0/255.0, float64(tensor[i+1]), 0.01, "green channel")
		assert.InDelta(t, 0.0, float64(tensor[i+2]), 0.01, "blue channel")
	}
}

func TestPrepareInput_UndecodableImage(t *testing.T) {
	t.Parallel()

	_, err := PrepareInput([]byte{0xde, 0xad, 0xbe, 0xef}, 224)
	assert.Error(t, err)
}
