package strategy

// morphOp is a morphological operation on a luminance plane where dark pixels
// are the foreground (code modules).
type morphOp int

const (
	morphNone morphOp = iota
	morphDilate
	morphErode
	morphOpening // erode then dilate: removes isolated dark specks
	morphClosing // dilate then erode: fills light gaps inside modules
)

type morphConfig struct {
	Operation  morphOp
	KernelSize int
	Iterations int
}

// applyMorphology returns a new plane; lum is not modified.
func applyMorphology(lum []uint8, width, height int, cfg morphConfig) []uint8 {
	result := make([]uint8, len(lum))
	copy(result, lum)
	if cfg.Operation == morphNone || cfg.KernelSize <= 1 || cfg.Iterations <= 0 {
		return result
	}

	for range cfg.Iterations {
		switch cfg.Operation {
		case morphDilate:
			result = dilateDark(result, width, height, cfg.KernelSize)
		case morphErode:
			result = erodeDark(result, width, height, cfg.KernelSize)
		case morphOpening:
			result = dilateDark(erodeDark(result, width, height, cfg.KernelSize), width, height, cfg.KernelSize)
		case morphClosing:
			result = erodeDark(dilateDark(result, width, height, cfg.KernelSize), width, height, cfg.KernelSize)
		}
	}
	return result
}

// dilateDark grows dark regions: each pixel takes the minimum of its kernel.
func dilateDark(lum []uint8, width, height, kernelSize int) []uint8 {
	return kernelFilter(lum, width, height, kernelSize, func(a, b uint8) bool { return b < a })
}

// erodeDark shrinks dark regions: each pixel takes the maximum of its kernel.
func erodeDark(lum []uint8, width, height, kernelSize int) []uint8 {
	return kernelFilter(lum, width, height, kernelSize, func(a, b uint8) bool { return b > a })
}

func kernelFilter(lum []uint8, width, height, kernelSize int, better func(cur, cand uint8) bool) []uint8 {
	result := make([]uint8, len(lum))
	half := kernelSize / 2

	for y := range height {
		for x := range width {
			v := lum[y*width+x]
			for ky := -half; ky <= half; ky++ {
				ny := y + ky
				if ny < 0 || ny >= height {
					continue
				}
				for kx := -half; kx <= half; kx++ {
					nx := x + kx
					if nx < 0 || nx >= width {
						continue
					}
					if c := lum[ny*width+nx]; better(v, c) {
						v = c
					}
				}
			}
			result[y*width+x] = v
		}
	}
	return result
}
