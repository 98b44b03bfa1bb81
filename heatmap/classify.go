package heatmap

import (
	"image/color"
	"math"
)

// Colormap maps a normalized value in [0,1] to a colour
type Colormap func(float64) color.NRGBA

// Normalize maps v into [0,1] against r, clamping values outside the range.
// A degenerate range and NaN both map to 0.
func Normalize(v float64, r ThresholdRange) float64 {
	if r.Degenerate() || math.IsNaN(v) {
		return 0
	}
	f := (v - r.Min) / (r.Max - r.Min)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Classify normalizes every grid value against r and maps it through cmap
func Classify(values [][]float64, r ThresholdRange, cmap Colormap) ([][]float64, ColorGrid) {
	normalized := make([][]float64, len(values))
	colors := make(ColorGrid, len(values))
	for y, row := range values {
		normalized[y] = make([]float64, len(row))
		colors[y] = make([]color.NRGBA, len(row))
		for x, v := range row {
			f := Normalize(v, r)
			normalized[y][x] = f
			colors[y][x] = cmap(f)
		}
	}
	return normalized, colors
}

// ContourLevels returns n evenly spaced iso-values strictly inside r.
// A degenerate range has no isolines.
func ContourLevels(r ThresholdRange, n int) []float64 {
	if n <= 0 || r.Degenerate() {
		return nil
	}
	levels := make([]float64, n)
	step := (r.Max - r.Min) / float64(n+1)
	for i := range levels {
		levels[i] = r.Min + step*float64(i+1)
	}
	return levels
}
