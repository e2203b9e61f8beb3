//go:build with_cv
// +build with_cv

package blur

import (
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"
)

func init() {
	newDefault = func() Filter { return CVGaussian{} }
}

// CVGaussian runs the blur through OpenCV with a reflect-101 border.
type CVGaussian struct{}

var _ Filter = CVGaussian{}

func (CVGaussian) String() string {
	return fmt.Sprintf("CVGaussian(%dx%d)", KernelSize, KernelSize)
}

func (CVGaussian) Apply(img *image.RGBA, r image.Rectangle) error {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}

	roi := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(roi, roi.Bounds(), img, r.Min, draw.Src)

	src, err := gocv.ImageToMatRGBA(roi)
	if err != nil {
		return fmt.Errorf("unable to convert region to a Mat: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.GaussianBlur(src, &dst, image.Pt(KernelSize, KernelSize), 0, 0, gocv.BorderReflect101)

	out, err := dst.ToImage()
	if err != nil {
		return fmt.Errorf("unable to convert the blurred Mat back: %w", err)
	}
	draw.Draw(img, r, out, out.Bounds().Min, draw.Src)
	return nil
}
