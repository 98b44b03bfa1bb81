package heatmap

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFit_ExactAtKnots(t *testing.T) {
	positions := []Point{{10, 10}, {90, 15}, {50, 50}, {20, 80}, {85, 85}, {0, 0}}
	values := []float64{-80, -62, -55, -71, -48, -90}

	kernels := map[string]Kernel{
		"linear":     LinearKernel,
		"cubic":      CubicKernel,
		"thin_plate": ThinPlateKernel,
	}
	for name, k := range kernels {
		t.Run(name, func(t *testing.T) {
			s, err := Fit(positions, values, WithKernel(k))
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if s.Flat() {
				t.Fatal("Fit() returned a flat surface for varying values")
			}
			got := s.Evaluate(positions)
			if diff := cmp.Diff(values, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
				t.Errorf("surface at knots mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFit_DuplicatePositions(t *testing.T) {
	positions := []Point{{10, 10}, {10, 10}, {50, 50}}
	values := []float64{-70, -60, -50}

	_, err := Fit(positions, values)
	if !errors.Is(err, ErrSingularSystem) {
		t.Fatalf("Fit() error = %v, want ErrSingularSystem", err)
	}
}

func TestFit_ConstantValues(t *testing.T) {
	positions := []Point{{0, 0}, {10, 0}, {10, 10}, {10, 10}}
	values := []float64{-60, -60, -60, -60}

	// Equal values short-circuit before the duplicate check
	s, err := Fit(positions, values)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if !s.Flat() {
		t.Error("Fit() of constant values should be flat")
	}
	if got := s.At(Point{123, 456}); got != -60 {
		t.Errorf("At() = %g, want -60", got)
	}
}

func TestFit_SingleSample(t *testing.T) {
	s, err := Fit([]Point{{5, 5}}, []float64{3})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if !s.Flat() || s.At(Point{0, 0}) != 3 {
		t.Errorf("single sample should give the constant surface 3, got flat=%v at=%g", s.Flat(), s.At(Point{0, 0}))
	}
}

func TestFit_Errors(t *testing.T) {
	if _, err := Fit(nil, nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Fit(nil) error = %v, want ErrInsufficientData", err)
	}
	if _, err := Fit([]Point{{0, 0}, {1, 1}}, []float64{1}); !errors.Is(err, ErrHolePattern) {
		t.Errorf("Fit() with mismatched lengths error = %v, want ErrHolePattern", err)
	}
}

func TestSurface_EvaluateGrid(t *testing.T) {
	g, err := MakeGrid(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Fit([]Point{{0, 0}, {100, 100}}, []float64{0, 10})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := s.EvaluateGrid(g)
	if err != nil {
		t.Fatalf("EvaluateGrid() error = %v", err)
	}
	if len(rows) != g.NumY {
		t.Fatalf("len(rows) = %d, want %d", len(rows), g.NumY)
	}
	for i, row := range rows {
		if len(row) != g.NumX {
			t.Fatalf("len(rows[%d]) = %d, want %d", i, len(row), g.NumX)
		}
	}
	if math.Abs(rows[0][0]) > 1e-9 || math.Abs(rows[g.NumY-1][g.NumX-1]-10) > 1e-9 {
		t.Errorf("corner values = %g, %g; want 0, 10", rows[0][0], rows[g.NumY-1][g.NumX-1])
	}
}

func TestSurface_EvaluateGrid_Inconsistent(t *testing.T) {
	g := &Grid{NumX: 3, NumY: 2, Width: 10, Height: 10, Xs: []float64{0, 10}, Ys: []float64{0, 10}}
	rows, err := ConstantSurface(1).EvaluateGrid(g)
	if err == nil {
		t.Fatalf("EvaluateGrid() = %v, want an error for 4 coords on a 3x2 grid", rows)
	}
}

func TestConstantSurface(t *testing.T) {
	s := ConstantSurface(-42)
	got := s.Evaluate([]Point{{0, 0}, {1e6, -1e6}})
	if diff := cmp.Diff([]float64{-42, -42}, got); diff != "" {
		t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseKernel(t *testing.T) {
	tests := []struct {
		name    string
		r       float64
		want    float64
		wantErr bool
	}{
		{"", 3, 3, false},
		{"linear", 3, 3, false},
		{"cubic", 2, 8, false},
		{"thin_plate", math.E, math.E * math.E, false},
		{"THIN-PLATE", 1, 0, false},
		{"gaussian", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKernel(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Error("ParseKernel() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKernel() error = %v", err)
			}
			if got := k(tt.r); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("kernel(%g) = %g, want %g", tt.r, got, tt.want)
			}
		})
	}

	if ThinPlateKernel(0) != 0 {
		t.Error("thin plate kernel at 0 should be 0")
	}
}
