package testutil

import (
	"image"

	"github.com/disintegration/imaging"
)

// Degradation turns a clean code image into a harder one, the way a poor
// camera, glare or a reversed print would.
type Degradation struct {
	Name  string
	Apply func(img image.Image) *image.NRGBA
}

// Degradations returns the synthetic capture conditions fixtures are built from.
// The first entry is always the untouched image.
func Degradations() []Degradation {
	return []Degradation{
		{Name: "clean", Apply: imaging.Clone},
		{Name: "inverted", Apply: imaging.Invert},
		{Name: "low_contrast", Apply: func(img image.Image) *image.NRGBA {
			return imaging.AdjustContrast(img, -70)
		}},
		{Name: "washed_out", Apply: func(img image.Image) *image.NRGBA {
			return imaging.AdjustBrightness(imaging.AdjustContrast(img, -50), 35)
		}},
		{Name: "dark", Apply: func(img image.Image) *image.NRGBA {
			return imaging.AdjustGamma(img, 0.35)
		}},
		{Name: "blurred", Apply: func(img image.Image) *image.NRGBA {
			return imaging.Blur(img, 1.2)
		}},
		{Name: "small", Apply: func(img image.Image) *image.NRGBA {
			w := max(img.Bounds().Dx()/3, 1)
			return imaging.Resize(img, w, 0, imaging.NearestNeighbor)
		}},
	}
}

// DegradationByName returns the named degradation.
func DegradationByName(name string) (Degradation, bool) {
	for _, d := range Degradations() {
		if d.Name == name {
			return d, true
		}
	}
	return Degradation{}, false
}
