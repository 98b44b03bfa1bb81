package heatmap

import (
	"math"
	"time"
)

// Summary statuses
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
)

// MetricSummary is the JSON digest of one metric's outcome
type MetricSummary struct {
	Metric   string   `json:"metric"`
	Status   string   `json:"status"`
	Skip     string   `json:"skip,omitempty"`
	Error    string   `json:"error,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Mean     *float64 `json:"mean,omitempty"` // Mean of the interpolated grid
	Points   int      `json:"points"`
	Isolines int      `json:"isolines"`
}

// SurveySummary is the JSON digest of a pipeline run over one survey
type SurveySummary struct {
	Survey    string          `json:"survey"`
	RunID     string          `json:"runId"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Points    int             `json:"points"`
	Metrics   []MetricSummary `json:"metrics"`
	Timestamp int64           `json:"timestamp"`
}

// Summarize condenses a result into a SurveySummary
func Summarize(survey, runID string, ds *DataSet, res *Result) *SurveySummary {
	s := &SurveySummary{
		Survey:    survey,
		RunID:     runID,
		Width:     res.Width,
		Height:    res.Height,
		Points:    ds.Len(),
		Metrics:   make([]MetricSummary, 0, len(res.Metrics)),
		Timestamp: time.Now().Unix(),
	}
	for i := range res.Metrics {
		s.Metrics = append(s.Metrics, summarizeMetric(&res.Metrics[i]))
	}
	return s
}

func summarizeMetric(mr *MetricResult) MetricSummary {
	ms := MetricSummary{Metric: mr.Metric.String()}
	if !mr.OK() {
		ms.Status = StatusSkipped
		ms.Skip = string(mr.Skip)
		if mr.Err != nil {
			ms.Error = mr.Err.Error()
		}
		return ms
	}

	ms.Status = StatusOK
	lo, hi := mr.Field.Range.Min, mr.Field.Range.Max
	ms.Min, ms.Max = &lo, &hi
	if mean, ok := gridMean(mr.Field.Values); ok {
		ms.Mean = &mean
	}
	ms.Points = len(mr.Points)
	ms.Isolines = len(mr.Isolines)
	return ms
}

func gridMean(values [][]float64) (float64, bool) {
	sum, n := 0.0, 0
	for _, row := range values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Metric returns the summary of the named metric
func (s *SurveySummary) Metric(name string) (*MetricSummary, bool) {
	for i := range s.Metrics {
		if s.Metrics[i].Metric == name {
			return &s.Metrics[i], true
		}
	}
	return nil, false
}
