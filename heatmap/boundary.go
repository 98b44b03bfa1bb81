package heatmap

import (
	"fmt"
	"strings"
)

// BoundaryPolicy decides what value synthetic corner samples carry
type BoundaryPolicy int

const (
	// BoundaryMin pins each corner to the lowest observed value, assuming
	// coverage degrades toward unmeasured edges.
	BoundaryMin BoundaryPolicy = iota
	// BoundaryMean pins each corner to the mean observed value.
	BoundaryMean
	// BoundaryNone adds no corners; the surface extrapolates freely.
	BoundaryNone
)

func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryMin:
		return "min"
	case BoundaryMean:
		return "mean"
	case BoundaryNone:
		return "none"
	}
	return fmt.Sprintf("boundary(%d)", int(p))
}

// ParseBoundaryPolicy parses "min", "mean" or "none". An empty string is "min".
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "min":
		return BoundaryMin, nil
	case "mean":
		return BoundaryMean, nil
	case "none":
		return BoundaryNone, nil
	}
	return 0, fmt.Errorf("unknown boundary policy %q", s)
}

func (p BoundaryPolicy) cornerValue(values []float64) float64 {
	if p == BoundaryMean {
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}
	lowest := values[0]
	for _, v := range values[1:] {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

// Corners returns the four raster extremes (0,0), (0,H), (W,0), (W,H)
func Corners(width, height int) []Point {
	w, h := float64(width), float64(height)
	return []Point{{0, 0}, {0, h}, {w, 0}, {w, h}}
}

// AugmentedDataSet is a DataSet padded with synthetic corner samples.
// Positions holds the measured points followed by the corners. A corner is
// a null reading for any metric that already has a knot at that position.
type AugmentedDataSet struct {
	Positions []Point
	Measured  int

	series  map[Metric][]Reading
	skipped map[Metric]error
}

// Augment pads ds with the given corner positions. Each corner gets, per
// metric, the value chosen by policy from that metric's valid readings.
// A corner that coincides with a measured position holding a valid reading
// for a metric is left out of that metric; a null reading there does not
// displace the corner. Metrics that cannot be augmented are recorded as
// skipped rather than failing the call.
func Augment(ds *DataSet, corners []Point, policy BoundaryPolicy) *AugmentedDataSet {
	measured := ds.Positions()

	var added []Point
	if policy != BoundaryNone {
		seen := make(map[Point]bool, len(corners))
		for _, c := range corners {
			if seen[c] {
				continue
			}
			seen[c] = true
			added = append(added, c)
		}
	}

	aug := &AugmentedDataSet{
		Positions: make([]Point, 0, len(measured)+len(added)),
		Measured:  len(measured),
		series:    make(map[Metric][]Reading, len(AllMetrics)),
		skipped:   make(map[Metric]error),
	}
	aug.Positions = append(aug.Positions, measured...)
	aug.Positions = append(aug.Positions, added...)

	for _, m := range AllMetrics {
		readings, ok := ds.Values(m)
		if !ok {
			aug.skipped[m] = fmt.Errorf("%s: %w: metric not present", m, ErrInsufficientData)
			continue
		}
		if len(readings) != len(measured) {
			aug.skipped[m] = fmt.Errorf("%s: %w: %d readings for %d positions",
				m, ErrHolePattern, len(readings), len(measured))
			continue
		}
		valid := validValues(readings)
		if len(valid) == 0 {
			aug.skipped[m] = fmt.Errorf("%s: %w: no valid readings", m, ErrInsufficientData)
			continue
		}

		padded := make([]Reading, 0, len(aug.Positions))
		padded = append(padded, readings...)
		if len(added) > 0 {
			knots := make(map[Point]bool, len(valid))
			for i, r := range readings {
				if r.Valid {
					knots[measured[i]] = true
				}
			}
			edge := Some(policy.cornerValue(valid))
			for _, c := range added {
				if knots[c] {
					padded = append(padded, Reading{})
					continue
				}
				padded = append(padded, edge)
			}
		}
		aug.series[m] = padded
	}
	return aug
}

// Skipped returns the reason m cannot be interpolated, or nil
func (a *AugmentedDataSet) Skipped(m Metric) error {
	return a.skipped[m]
}

// Samples returns the interpolation knots for m: every position with a valid
// reading, corners included, with its value.
func (a *AugmentedDataSet) Samples(m Metric) ([]Point, []float64, error) {
	if err := a.skipped[m]; err != nil {
		return nil, nil, err
	}
	readings, ok := a.series[m]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w: metric not present", m, ErrInsufficientData)
	}
	positions := make([]Point, 0, len(readings))
	values := make([]float64, 0, len(readings))
	for i, r := range readings {
		if !r.Valid {
			continue
		}
		positions = append(positions, a.Positions[i])
		values = append(values, r.Value)
	}
	return positions, values, nil
}
