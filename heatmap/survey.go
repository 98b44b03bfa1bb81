package heatmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SurveyFile is a parsed survey document
type SurveyFile struct {
	Points    []SurveyPoint
	ImagePath string // background image, resolved against the survey directory when loaded from disk
	Path      string // source path or URL, empty for in-memory documents
}

// Title returns the survey name used for output files: the source file stem
func (s *SurveyFile) Title() string {
	if s.Path == "" {
		return "survey"
	}
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DataSet builds the column form of the survey for a raster of the given size
func (s *SurveyFile) DataSet(width, height int) *DataSet {
	return NewDataSet(s.Points, width, height)
}

type rawSurvey struct {
	SurveyPoints *[]rawSurveyPoint `json:"survey_points"`
	ImagePath    string            `json:"img_path,omitempty"`
}

type rawSurveyPoint struct {
	X      *float64   `json:"x"`
	Y      *float64   `json:"y"`
	Label  *string    `json:"label"`
	Result *rawResult `json:"result"`
}

type rawResult struct {
	RSSI        *float64 `json:"rssi"`
	SNR         *float64 `json:"snr"`
	GatewayRSSI *float64 `json:"gateway_rssi"`
	GatewaySNR  *float64 `json:"gateway_snr"`
}

func (r *rawResult) readings() MetricReadings {
	var out MetricReadings
	set := func(m Metric, v *float64) {
		if v != nil {
			out[m] = Some(*v)
		}
	}
	set(SensorRSSI, r.RSSI)
	set(SensorSNR, r.SNR)
	set(GatewayRSSI, r.GatewayRSSI)
	set(GatewaySNR, r.GatewaySNR)
	return out
}

// LoadSurveyFile reads and parses a survey JSON file
func LoadSurveyFile(path string) (*SurveyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading survey file: %w", err)
	}
	s, err := ParseSurveyJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	if s.ImagePath != "" && !filepath.IsAbs(s.ImagePath) {
		s.ImagePath = filepath.Join(filepath.Dir(path), s.ImagePath)
	}
	return s, nil
}

// ParseSurveyJSON parses a survey document. The document must contain a
// survey_points array and every record needs x, y and a result block.
func ParseSurveyJSON(data []byte) (*SurveyFile, error) {
	var raw rawSurvey
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %v", ErrSchema, err)
	}
	if raw.SurveyPoints == nil {
		return nil, fmt.Errorf("%w: no survey_points found", ErrSchema)
	}

	points := make([]SurveyPoint, 0, len(*raw.SurveyPoints))
	for i, rp := range *raw.SurveyPoints {
		switch {
		case rp.X == nil:
			return nil, fmt.Errorf("%w: survey_points[%d].x", ErrMissingField, i)
		case rp.Y == nil:
			return nil, fmt.Errorf("%w: survey_points[%d].y", ErrMissingField, i)
		case rp.Result == nil:
			return nil, fmt.Errorf("%w: survey_points[%d].result", ErrMissingField, i)
		}
		points = append(points, SurveyPoint{
			Position: Point{X: *rp.X, Y: *rp.Y},
			Label:    rp.Label,
			Readings: rp.Result.readings(),
		})
	}

	return &SurveyFile{
		Points:    points,
		ImagePath: raw.ImagePath,
	}, nil
}

// DataSet is the immutable column form of a survey: positions, labels and
// one reading series per metric, aligned by index, plus the raster size.
type DataSet struct {
	positions []Point
	labels    []*string
	series    map[Metric][]Reading
	width     int
	height    int
}

// NewDataSet builds a DataSet from survey points
func NewDataSet(points []SurveyPoint, width, height int) *DataSet {
	ds := &DataSet{
		positions: make([]Point, len(points)),
		labels:    make([]*string, len(points)),
		series:    make(map[Metric][]Reading, len(AllMetrics)),
		width:     width,
		height:    height,
	}
	for _, m := range AllMetrics {
		ds.series[m] = make([]Reading, len(points))
	}
	for i, p := range points {
		ds.positions[i] = p.Position
		ds.labels[i] = p.Label
		for _, m := range AllMetrics {
			ds.series[m][i] = p.Readings.Get(m)
		}
	}
	return ds
}

// NewDataSetFromSeries builds a DataSet from columns. Series lengths are not
// checked here; a series that does not match positions is reported as a hole
// pattern when the metric is processed. Metrics missing from series count as
// having no data.
func NewDataSetFromSeries(positions []Point, labels []*string, series map[Metric][]Reading, width, height int) *DataSet {
	ds := &DataSet{
		positions: append([]Point(nil), positions...),
		labels:    make([]*string, len(positions)),
		series:    make(map[Metric][]Reading, len(series)),
		width:     width,
		height:    height,
	}
	copy(ds.labels, labels)
	for m, values := range series {
		ds.series[m] = append([]Reading(nil), values...)
	}
	return ds
}

// Width returns the raster width in pixels
func (ds *DataSet) Width() int { return ds.width }

// Height returns the raster height in pixels
func (ds *DataSet) Height() int { return ds.height }

// Len returns the number of measured points
func (ds *DataSet) Len() int { return len(ds.positions) }

// Positions returns the measured positions. Callers must not modify the slice.
func (ds *DataSet) Positions() []Point { return ds.positions }

// Labels returns every point label with "" for unlabelled points
func (ds *DataSet) Labels() []string {
	out := make([]string, len(ds.labels))
	for i := range ds.labels {
		out[i] = ds.Label(i)
	}
	return out
}

// Metrics returns the metrics present in the data set, in AllMetrics order
func (ds *DataSet) Metrics() []Metric {
	var out []Metric
	for _, m := range AllMetrics {
		if _, ok := ds.series[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Label returns the label of point i, or "" when it has none
func (ds *DataSet) Label(i int) string {
	if i < 0 || i >= len(ds.labels) || ds.labels[i] == nil {
		return ""
	}
	return *ds.labels[i]
}

// Values returns the reading series for m, aligned with Positions.
// The second result is false when the metric is absent from the data set.
func (ds *DataSet) Values(m Metric) ([]Reading, bool) {
	v, ok := ds.series[m]
	return v, ok
}

// ValidValues returns the non-null readings of m
func (ds *DataSet) ValidValues(m Metric) []float64 {
	return validValues(ds.series[m])
}

func validValues(readings []Reading) []float64 {
	out := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Valid {
			out = append(out, r.Value)
		}
	}
	return out
}
