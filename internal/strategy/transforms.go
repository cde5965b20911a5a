package strategy

import (
	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/disintegration/imaging"
)

// Tuning for the built-in transforms, picked on glare and low-contrast phone footage.
const (
	contrastBoostPercent = 60.0
	sharpenSigma         = 1.2
	gammaDarkenLevel     = 0.6
	denoiseSigma         = 1.0
	stretchClipFraction  = 0.01
	upscaleFactor        = 2
	upscaleMaxDimension  = 2048
)

func builtinEntries() []Entry {
	return []Entry{
		{Name: Grayscale, Description: "drop colour so chroma noise cannot split modules", Transform: grayscale},
		{Name: HistogramStretch, Description: "stretch the 1st..99th luminance percentile to full range", Transform: histogramStretch},
		{Name: ContrastBoost, Description: "raise contrast around mid-grey", Transform: contrastBoost},
		{Name: Sharpen, Description: "unsharp mask against mild motion blur", Transform: sharpen},
		{Name: OtsuThreshold, Description: "global binarisation at the Otsu level", Transform: otsuThreshold},
		{Name: AdaptiveThreshold, Description: "local-mean binarisation for uneven lighting", Transform: adaptiveThreshold},
		{Name: GammaDarken, Description: "gamma < 1 to pull detail out of glare", Transform: gammaDarken},

		{Name: Invert, Description: "swap light and dark", Transform: invert, Extended: true},
		{Name: Denoise, Description: "gaussian blur against sensor noise", Transform: denoise, Extended: true},
		{Name: Upscale, Description: "nearest-neighbour 2x enlargement for tiny codes", Transform: upscale, Extended: true},
		{Name: MorphClose, Description: "Otsu binarisation followed by a 3x3 closing of dark modules", Transform: morphClose, Extended: true},
	}
}

func grayscale(src *frame.Buffer) (*frame.Buffer, error) {
	return frame.Wrap(imaging.Grayscale(src.Image()))
}

func contrastBoost(src *frame.Buffer) (*frame.Buffer, error) {
	return frame.Wrap(imaging.AdjustContrast(src.Image(), contrastBoostPercent))
}

func sharpen(src *frame.Buffer) (*frame.Buffer, error) {
	return frame.Wrap(imaging.Sharpen(src.Image(), sharpenSigma))
}

func gammaDarken(src *frame.Buffer) (*frame.Buffer, error) {
	return frame.Wrap(imaging.AdjustGamma(src.Image(), gammaDarkenLevel))
}

func invert(src *frame.Buffer) (*frame.Buffer, error) {
	return frame.Wrap(imaging.Invert(src.Image()))
}

func denoise(src *frame.Buffer) (*frame.Buffer, error) {
	return frame.Wrap(imaging.Blur(src.Image(), denoiseSigma))
}

// upscale doubles the frame, capped so the longer side stays decodable.
func upscale(src *frame.Buffer) (*frame.Buffer, error) {
	w, h := src.Width(), src.Height()
	longest := max(w, h)
	factor := float64(upscaleFactor)
	if float64(longest)*factor > upscaleMaxDimension {
		factor = float64(upscaleMaxDimension) / float64(longest)
	}
	if factor <= 1 {
		return frame.Wrap(imaging.Clone(src.Image()))
	}
	nw, nh := int(float64(w)*factor), int(float64(h)*factor)
	return frame.Wrap(imaging.Resize(src.Image(), nw, nh, imaging.NearestNeighbor))
}

// histogramStretch maps the clipped luminance range onto 0..255.
func histogramStretch(src *frame.Buffer) (*frame.Buffer, error) {
	lum := src.Gray()
	lo, hi := percentileRange(lum, stretchClipFraction)
	if hi > lo {
		span := float64(hi - lo)
		for i, v := range lum {
			switch {
			case v <= lo:
				lum[i] = 0
			case v >= hi:
				lum[i] = 255
			default:
				lum[i] = uint8(float64(v-lo)*255/span + 0.5) //nolint:gosec // G115: bounded by the branch above
			}
		}
	}
	return frame.FromGray(lum, src.Width(), src.Height())
}

// percentileRange returns the luminance levels below which frac of the pixels
// fall at each end of the histogram.
func percentileRange(lum []uint8, frac float64) (uint8, uint8) {
	var hist [256]int
	for _, v := range lum {
		hist[v]++
	}
	clip := int(float64(len(lum)) * frac)

	lo, acc := 0, 0
	for ; lo < 255; lo++ {
		acc += hist[lo]
		if acc > clip {
			break
		}
	}
	hi := 255
	acc = 0
	for ; hi > 0; hi-- {
		acc += hist[hi]
		if acc > clip {
			break
		}
	}
	return uint8(lo), uint8(hi) //nolint:gosec // G115: loop bounds keep both in 0..255
}

func otsuThreshold(src *frame.Buffer) (*frame.Buffer, error) {
	lum := src.Gray()
	binarize(lum, otsuLevel(lum))
	return frame.FromGray(lum, src.Width(), src.Height())
}

func adaptiveThreshold(src *frame.Buffer) (*frame.Buffer, error) {
	w, h := src.Width(), src.Height()
	out := adaptiveBinarize(src.Gray(), w, h, adaptiveWindow(w, h), adaptiveOffset)
	return frame.FromGray(out, w, h)
}

func morphClose(src *frame.Buffer) (*frame.Buffer, error) {
	w, h := src.Width(), src.Height()
	lum := src.Gray()
	binarize(lum, otsuLevel(lum))
	lum = applyMorphology(lum, w, h, morphConfig{Operation: morphClosing, KernelSize: 3, Iterations: 1})
	return frame.FromGray(lum, w, h)
}
