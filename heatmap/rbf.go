package heatmap

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Kernel is a radial basis function of the distance between two points
type Kernel func(r float64) float64

// LinearKernel is phi(r) = r
func LinearKernel(r float64) float64 { return r }

// CubicKernel is phi(r) = r^3
func CubicKernel(r float64) float64 { return r * r * r }

// ThinPlateKernel is phi(r) = r^2 log r, with phi(0) = 0
func ThinPlateKernel(r float64) float64 {
	if r == 0 {
		return 0
	}
	return r * r * math.Log(r)
}

// ParseKernel maps "linear", "cubic" or "thin_plate" to a Kernel.
// An empty name is linear.
func ParseKernel(name string) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return LinearKernel, nil
	case "cubic":
		return CubicKernel, nil
	case "thin_plate", "thin-plate":
		return ThinPlateKernel, nil
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

// FitOption configures Fit
type FitOption func(*fitConfig)

type fitConfig struct {
	kernel Kernel
}

// WithKernel replaces the default linear kernel
func WithKernel(k Kernel) FitOption {
	return func(c *fitConfig) {
		if k != nil {
			c.kernel = k
		}
	}
}

// Surface is a fitted radial basis surface. A flat surface evaluates to a
// constant everywhere.
type Surface struct {
	centers  []Point
	weights  []float64
	kernel   Kernel
	flat     bool
	constant float64
}

// ConstantSurface returns a surface equal to v everywhere
func ConstantSurface(v float64) *Surface {
	return &Surface{flat: true, constant: v}
}

// Fit solves for the weights of a surface that passes through every sample.
// Fewer than two samples, or samples that all share one value, yield a
// constant surface without solving. Coincident positions make the system
// singular and return ErrSingularSystem.
func Fit(positions []Point, values []float64, opts ...FitOption) (*Surface, error) {
	if len(positions) != len(values) {
		return nil, fmt.Errorf("%w: %d positions, %d values", ErrHolePattern, len(positions), len(values))
	}
	n := len(positions)
	if n == 0 {
		return nil, fmt.Errorf("fit: %w: no samples", ErrInsufficientData)
	}

	cfg := fitConfig{kernel: LinearKernel}
	for _, opt := range opts {
		opt(&cfg)
	}

	if n < 2 || allEqual(values) {
		return ConstantSurface(values[0]), nil
	}

	seen := make(map[Point]int, n)
	for i, p := range positions {
		if j, ok := seen[p]; ok {
			return nil, fmt.Errorf("%w: samples %d and %d share position (%g, %g)",
				ErrSingularSystem, j, i, p.X, p.Y)
		}
		seen[p] = i
	}

	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := cfg.kernel(distance(positions[i], positions[j]))
			a.Set(i, j, v)
			a.Set(j, i, v)
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), values...))

	var w mat.VecDense
	if err := w.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %g", ErrSingularSystem, float64(cond))
		}
		return nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = w.AtVec(i)
	}

	return &Surface{
		centers: append([]Point(nil), positions...),
		weights: weights,
		kernel:  cfg.kernel,
	}, nil
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Flat reports whether the surface is constant
func (s *Surface) Flat() bool {
	return s.flat
}

// At evaluates the surface at p
func (s *Surface) At(p Point) float64 {
	if s.flat {
		return s.constant
	}
	sum := 0.0
	for i, c := range s.centers {
		sum += s.weights[i] * s.kernel(distance(p, c))
	}
	return sum
}

// Evaluate evaluates the surface at every coordinate, preserving order
func (s *Surface) Evaluate(coords []Point) []float64 {
	out := make([]float64, len(coords))
	for i, p := range coords {
		out[i] = s.At(p)
	}
	return out
}

// EvaluateGrid evaluates the surface on g and returns NumY rows of NumX values.
// It fails when the grid axes disagree with NumX and NumY.
func (s *Surface) EvaluateGrid(g *Grid) ([][]float64, error) {
	return g.Reshape(s.Evaluate(g.Coords()))
}
