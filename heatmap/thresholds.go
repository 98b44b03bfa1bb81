package heatmap

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// ThresholdOverride fixes one or both ends of a metric's range.
// A nil bound is computed from the data.
type ThresholdOverride struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Thresholds maps metrics to externally supplied range overrides.
// It is the shape of the thresholds JSON file.
type Thresholds map[Metric]ThresholdOverride

// For returns the override for m; the zero value when none is set
func (t Thresholds) For(m Metric) ThresholdOverride {
	if t == nil {
		return ThresholdOverride{}
	}
	return t[m]
}

// LoadThresholds reads a thresholds JSON file
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading thresholds file: %w", err)
	}
	var t Thresholds
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing thresholds JSON: %w", err)
	}
	if t == nil {
		t = Thresholds{}
	}
	return t, nil
}

// SaveThresholds writes t as a thresholds JSON file
func SaveThresholds(path string, t Thresholds) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling thresholds: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing thresholds file: %w", err)
	}
	return nil
}

// Resolve determines the classification range for one metric. Each bound of
// the override is used verbatim when set; otherwise the observed minimum or
// maximum of the valid readings is used.
func Resolve(values []Reading, override ThresholdOverride) (ThresholdRange, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	observed := false
	for _, r := range values {
		if !r.Valid {
			continue
		}
		observed = true
		lo = math.Min(lo, r.Value)
		hi = math.Max(hi, r.Value)
	}

	if override.Min != nil {
		lo = *override.Min
	}
	if override.Max != nil {
		hi = *override.Max
	}
	if !observed && (override.Min == nil || override.Max == nil) {
		return ThresholdRange{}, fmt.Errorf("resolve: %w: no valid readings", ErrInsufficientData)
	}
	if lo > hi {
		return ThresholdRange{}, fmt.Errorf("%w: min %g > max %g", ErrInvalidRange, lo, hi)
	}
	return ThresholdRange{Min: lo, Max: hi}, nil
}

// GlobalThresholds computes, per metric, the min and max over every data set,
// ignoring null readings. Metrics without any valid reading are omitted.
func GlobalThresholds(sets []*DataSet, metrics []Metric) Thresholds {
	out := make(Thresholds, len(metrics))
	for _, m := range metrics {
		var all []Reading
		for _, ds := range sets {
			if values, ok := ds.Values(m); ok {
				all = append(all, values...)
			}
		}
		r, err := Resolve(all, ThresholdOverride{})
		if err != nil {
			continue
		}
		lo, hi := r.Min, r.Max
		out[m] = ThresholdOverride{Min: &lo, Max: &hi}
	}
	return out
}
