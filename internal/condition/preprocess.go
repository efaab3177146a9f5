package condition

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	xdraw "golang.org/x/image/draw"

	"github.com/wildsight/wildsight-go/internal/errors"
)

// PrepareInput decodes an encoded image and produces the model input tensor:
// 3-channel RGB, resized to size x size, pixel values scaled to [0,1], in
// NHWC layout with an implicit leading batch dimension of 1.
func PrepareInput(imageData []byte, size int) ([]float32, error) {
	img, err := DecodeRGB(imageData)
	if err != nil {
		return nil, err
	}
	resized := resizeSquare(img, size)
	return toTensor(resized), nil
}

// DecodeRGB decodes image bytes into an RGBA image, normalizing whatever
// color model the source used to 3 usable color channels.
func DecodeRGB(imageData []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode image: %w", err)).
			Component("condition").
			Category(errors.CategoryImageDecode).
			Build()
	}

	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(rgba, rgba.Bounds(), src, bounds.Min, xdraw.Src)
	return rgba, nil
}

// resizeSquare scales the image to size x size with bilinear interpolation.
// Aspect ratio is intentionally not preserved; the model was trained on
// squashed square inputs.
func resizeSquare(src *image.RGBA, size int) *image.RGBA {
	if src.Bounds().Dx() == size && src.Bounds().Dy() == size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// toTensor flattens an RGBA image into NHWC float32 RGB values in [0,1].
func toTensor(img *image.RGBA) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	tensor := make([]float32, 0, w*h*3)
	for y := range h {
		for x := range w {
			offset := img.PixOffset(x, y)
			// Pix is R, G, B, A order; alpha is dropped.
			tensor = append(tensor,
				float32(img.Pix[offset])/255.0,
				float32(img.Pix[offset+1])/255.0,
				float32(img.Pix[offset+2])/255.0,
			)
		}
	}
	return tensor
}
