package heatmap

import (
	"fmt"
	"math"
)

// pixelsPerColumn is the horizontal resolution of the evaluation grid
const pixelsPerColumn = 4

// Grid is the regular mesh of evaluation coordinates spanning [0,W] x [0,H]
type Grid struct {
	NumX   int
	NumY   int
	Width  float64
	Height float64
	Xs     []float64
	Ys     []float64
}

// MakeGrid computes the evaluation grid for a raster of width x height pixels.
// One column is used per four pixels and the row count keeps the aspect ratio.
func MakeGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDegenerateImage, width, height)
	}

	w, h := float64(width), float64(height)
	numX := width / pixelsPerColumn
	if numX < 1 {
		numX = 1
	}
	numY := int(math.Floor(float64(numX) / (w / h)))
	if numY < 1 {
		numY = 1
	}

	return &Grid{
		NumX:   numX,
		NumY:   numY,
		Width:  w,
		Height: h,
		Xs:     linspace(0, w, numX),
		Ys:     linspace(0, h, numY),
	}, nil
}

// linspace returns n evenly spaced values from start to stop inclusive.
// A single value is start.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	span := stop - start
	for i := range out {
		out[i] = start + span*float64(i)/float64(n-1)
	}
	out[n-1] = stop
	return out
}

// Len returns the number of grid nodes
func (g *Grid) Len() int {
	return g.NumX * g.NumY
}

// Coords returns the grid nodes flattened row-major, y varying slowest
func (g *Grid) Coords() []Point {
	coords := make([]Point, 0, g.Len())
	for _, y := range g.Ys {
		for _, x := range g.Xs {
			coords = append(coords, Point{X: x, Y: y})
		}
	}
	return coords
}

// Extent returns the raster area the grid covers
func (g *Grid) Extent() Extent {
	return Extent{MinX: 0, MinY: 0, MaxX: g.Width, MaxY: g.Height}
}

// Reshape turns a flattened row-major value list into NumY rows of NumX values
func (g *Grid) Reshape(flat []float64) ([][]float64, error) {
	if len(flat) != g.Len() {
		return nil, fmt.Errorf("reshape: have %d values, grid has %d nodes", len(flat), g.Len())
	}
	rows := make([][]float64, g.NumY)
	for r := range rows {
		rows[r] = flat[r*g.NumX : (r+1)*g.NumX : (r+1)*g.NumX]
	}
	return rows, nil
}
