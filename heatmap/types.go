package heatmap

import (
	"fmt"
	"image/color"
)

// Metric identifies one of the signal metrics recorded at each survey point
type Metric int

const (
	SensorRSSI Metric = iota
	SensorSNR
	GatewayRSSI
	GatewaySNR

	metricCount
)

// AllMetrics lists every metric in plotting order
var AllMetrics = []Metric{SensorRSSI, SensorSNR, GatewayRSSI, GatewaySNR}

var metricNames = [metricCount]string{
	SensorRSSI:  "sensor_rssi",
	SensorSNR:   "sensor_snr",
	GatewayRSSI: "gateway_rssi",
	GatewaySNR:  "gateway_snr",
}

var metricTitles = [metricCount][2]string{
	SensorRSSI:  {"Received Signal Strength Indication", "dBm"},
	SensorSNR:   {"Signal-to-Noise Ratio", "dB"},
	GatewayRSSI: {"Received Signal Strength Indication", "dBm"},
	GatewaySNR:  {"Signal-to-Noise Ratio", "dB"},
}

// String returns the wire name of the metric, e.g. "sensor_rssi"
func (m Metric) String() string {
	if m < 0 || m >= metricCount {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricNames[m]
}

// Title returns the human readable plot title for the metric
func (m Metric) Title() string {
	if m < 0 || m >= metricCount {
		return m.String()
	}
	return metricTitles[m][0]
}

// Unit returns the measurement unit for the metric
func (m Metric) Unit() string {
	if m < 0 || m >= metricCount {
		return ""
	}
	return metricTitles[m][1]
}

// Valid reports whether m is one of the known metrics
func (m Metric) Valid() bool {
	return m >= 0 && m < metricCount
}

// MarshalText lets Metric key JSON objects
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(metricNames[m]), nil
}

// UnmarshalText parses a wire name into a Metric
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMetric converts a wire name into a Metric
func ParseMetric(name string) (Metric, error) {
	for i, n := range metricNames {
		if n == name {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

// ParseMetrics converts a list of wire names, rejecting duplicates
func ParseMetrics(names []string) ([]Metric, error) {
	seen := make(map[Metric]bool, len(names))
	metrics := make([]Metric, 0, len(names))
	for _, name := range names {
		m, err := ParseMetric(name)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			return nil, fmt.Errorf("metric %q listed twice", name)
		}
		seen[m] = true
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// Point represents a 2D coordinate in image pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Reading is an optional metric value. Valid is false when the reading failed.
type Reading struct {
	Value float64
	Valid bool
}

// Some returns a valid reading
func Some(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// MetricReadings holds one reading per metric, indexed by Metric
type MetricReadings [metricCount]Reading

// Get returns the reading for m
func (r MetricReadings) Get(m Metric) Reading {
	if !m.Valid() {
		return Reading{}
	}
	return r[m]
}

// SurveyPoint is one measurement taken at a position on the floor plan
type SurveyPoint struct {
	Position Point
	Label    *string
	Readings MetricReadings
}

// ThresholdRange is the [Min, Max] window used to classify a metric
type ThresholdRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate reports whether the range collapses to a single value
func (r ThresholdRange) Degenerate() bool {
	return r.Min == r.Max
}

// Extent is the raster area a colour grid covers, in image pixels
type Extent struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// InterpolatedField is a metric's estimated values on the grid, NumY rows by NumX columns
type InterpolatedField struct {
	Metric Metric
	Values [][]float64
	Range  ThresholdRange
}

// ColorGrid is a NumY x NumX grid of overlay colours
type ColorGrid [][]color.NRGBA

// OverlayPoint is a measured point to draw on top of the heatmap
type OverlayPoint struct {
	Position Point
	Label    string
	Value    float64
	Color    color.NRGBA
}

// Isoline is one traced contour at a given level, in image pixel space
type Isoline struct {
	Level float64
	Path  []Point
}
