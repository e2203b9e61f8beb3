package blur

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/convolution"
)

// KernelSize is the fixed Gaussian window, in pixels per side.
const KernelSize = 15

// Filter blurs a rectangle of an image in place.
type Filter interface {
	fmt.Stringer
	Apply(img *image.RGBA, r image.Rectangle) error
}

// newDefault is swapped by build-tagged backends.
var newDefault = func() Filter { return NewGaussian() }

// Default returns the best Gaussian backend compiled into this binary.
func Default() Filter {
	return newDefault()
}

// Sigma derives the standard deviation from the window size the same way
// OpenCV does when asked for sigma 0.
func Sigma(size int) float64 {
	return 0.3*(float64(size-1)*0.5-1) + 0.8
}

// Kernel1D returns a normalized 1-D Gaussian of the given odd size.
func Kernel1D(size int) []float64 {
	sigma := Sigma(size)
	center := size / 2
	k := make([]float64, size)
	var sum float64
	for i := range k {
		d := float64(i - center)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// Gaussian is the pure-Go separable Gaussian backed by bild's convolution.
type Gaussian struct {
	kernel *convolution.Kernel
	opts   *convolution.Options
}

var _ Filter = (*Gaussian)(nil)

func NewGaussian() *Gaussian {
	k := convolution.NewKernel(KernelSize, 1)
	copy(k.Matrix, Kernel1D(KernelSize))
	// Each pass is stored as uint8 by truncation; the bias makes it round,
	// so flat areas keep their exact value.
	opts := &convolution.Options{Bias: 0.5, Wrap: false, KeepAlpha: true}
	return &Gaussian{kernel: k, opts: opts}
}

func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian(%dx%d, sigma=%.2f)", KernelSize, KernelSize, Sigma(KernelSize))
}

// Apply blurs r in isolation: pixels outside r never bleed into it.
func (g *Gaussian) Apply(img *image.RGBA, r image.Rectangle) error {
	// Clip rect to image bounds to prevent panics
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}

	roi := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(roi, roi.Bounds(), img, r.Min, draw.Src)

	out := convolution.Convolve(roi, g.kernel, g.opts)
	out = convolution.Convolve(out, g.kernel.Transposed(), g.opts)

	draw.Draw(img, r, out, out.Bounds().Min, draw.Src)
	return nil
}
