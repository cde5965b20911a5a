package strategy

const (
	minAdaptiveWindow = 15
	adaptiveOffset    = 7
)

// otsuLevel returns the luminance level that maximises between-class variance.
// Pixels strictly above the level are treated as background.
func otsuLevel(lum []uint8) uint8 {
	if len(lum) == 0 {
		return 127
	}

	var histogram [256]int
	for _, v := range lum {
		histogram[v]++
	}
	total := len(lum)

	var sumAll float64
	for i, n := range histogram {
		sumAll += float64(i) * float64(n)
	}

	var (
		sumB        float64
		wB          int
		maxVariance float64
		best        int
	)
	for t, n := range histogram {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}

		sumB += float64(t) * float64(n)
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)

		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best) //nolint:gosec // G115: histogram index is 0..255
}

// binarize maps lum in place to 0 (at or below level) and 255 (above).
func binarize(lum []uint8, level uint8) {
	for i, v := range lum {
		if v > level {
			lum[i] = 255
		} else {
			lum[i] = 0
		}
	}
}

// adaptiveWindow picks an odd window about a sixteenth of the short side.
func adaptiveWindow(w, h int) int {
	win := min(w, h) / 16
	if win < minAdaptiveWindow {
		win = minAdaptiveWindow
	}
	return win | 1
}

// adaptiveBinarize thresholds each pixel against the mean of its window minus
// offset, using an integral image so the cost is independent of window size.
func adaptiveBinarize(lum []uint8, w, h, window, offset int) []uint8 {
	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := range h {
		var row int64
		for x := range w {
			row += int64(lum[y*w+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	half := window / 2
	out := make([]uint8, len(lum))
	for y := range h {
		y0, y1 := max(0, y-half), min(h-1, y+half)
		for x := range w {
			x0, x1 := max(0, x-half), min(w-1, x+half)
			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			if int64(lum[y*w+x])*area <= sum-int64(offset)*area {
				out[y*w+x] = 0
			} else {
				out[y*w+x] = 255
			}
		}
	}
	return out
}
