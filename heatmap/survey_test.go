package heatmap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleSurvey = `{
  "img_path": "plans/floor.png",
  "survey_points": [
    {"x": 10, "y": 20, "label": "door", "result": {"rssi": -71, "snr": 6.5, "gateway_rssi": -80, "gateway_snr": 2}},
    {"x": 30.5, "y": 40, "label": null, "result": {"rssi": -65, "snr": 8, "gateway_rssi": null, "gateway_snr": null}}
  ]
}`

func TestParseSurveyJSON(t *testing.T) {
	s, err := ParseSurveyJSON([]byte(sampleSurvey))
	if err != nil {
		t.Fatalf("ParseSurveyJSON() error = %v", err)
	}

	if s.ImagePath != "plans/floor.png" {
		t.Errorf("ImagePath = %q, want plans/floor.png", s.ImagePath)
	}
	if len(s.Points) != 2 {
		t.Fatalf("len(Points) = %d, want 2", len(s.Points))
	}

	p := s.Points[1]
	if p.Position != (Point{30.5, 40}) {
		t.Errorf("Position = %+v, want {30.5 40}", p.Position)
	}
	if p.Label != nil {
		t.Errorf("Label = %q, want nil", *p.Label)
	}
	if got := p.Readings.Get(SensorSNR); !got.Valid || got.Value != 8 {
		t.Errorf("snr = %+v, want valid 8", got)
	}
	if p.Readings.Get(GatewayRSSI).Valid {
		t.Error("null gateway_rssi should be invalid")
	}
	if p.Readings.Get(Metric(99)).Valid {
		t.Error("unknown metric should read as invalid")
	}
}

func TestParseSurveyJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"not json", `{`, ErrSchema},
		{"no survey_points", `{"img_path": "x.png"}`, ErrSchema},
		{"survey_points wrong type", `{"survey_points": 3}`, ErrSchema},
		{"missing x", `{"survey_points": [{"y": 1, "result": {}}]}`, ErrMissingField},
		{"missing y", `{"survey_points": [{"x": 1, "result": {}}]}`, ErrMissingField},
		{"missing result", `{"survey_points": [{"x": 1, "y": 1}]}`, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSurveyJSON([]byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSurveyJSON_EmptyPoints(t *testing.T) {
	s, err := ParseSurveyJSON([]byte(`{"survey_points": []}`))
	if err != nil {
		t.Fatalf("ParseSurveyJSON() error = %v", err)
	}
	if len(s.Points) != 0 {
		t.Errorf("len(Points) = %d, want 0", len(s.Points))
	}
}

func TestLoadSurveyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "office.json")
	if err := os.WriteFile(path, []byte(sampleSurvey), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSurveyFile(path)
	if err != nil {
		t.Fatalf("LoadSurveyFile() error = %v", err)
	}
	if want := filepath.Join(dir, "plans", "floor.png"); s.ImagePath != want {
		t.Errorf("ImagePath = %q, want %q", s.ImagePath, want)
	}
	if s.Title() != "office" {
		t.Errorf("Title() = %q, want office", s.Title())
	}

	if _, err := LoadSurveyFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadSurveyFile() on a missing file should fail")
	}
}

func TestSurveyFile_Title(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "survey"},
		{"/data/lab.json", "lab"},
		{"https://example.com/surveys/attic.json", "attic"},
	}
	for _, tt := range tests {
		s := &SurveyFile{Path: tt.path}
		if got := s.Title(); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDataSet(t *testing.T) {
	s, err := ParseSurveyJSON([]byte(sampleSurvey))
	if err != nil {
		t.Fatal(err)
	}
	ds := s.DataSet(640, 480)

	if ds.Width() != 640 || ds.Height() != 480 || ds.Len() != 2 {
		t.Errorf("DataSet = %dx%d with %d points", ds.Width(), ds.Height(), ds.Len())
	}
	if got := ds.Labels(); got[0] != "door" || got[1] != "" {
		t.Errorf("Labels() = %q", got)
	}
	if ds.Label(-1) != "" || ds.Label(5) != "" {
		t.Error("out of range labels should be empty")
	}
	if got := ds.ValidValues(GatewayRSSI); len(got) != 1 || got[0] != -80 {
		t.Errorf("ValidValues(gateway_rssi) = %v, want [-80]", got)
	}
	if got := ds.Metrics(); len(got) != len(AllMetrics) {
		t.Errorf("Metrics() = %v, want all metrics", got)
	}

	partial := NewDataSetFromSeries([]Point{{1, 1}}, nil, map[Metric][]Reading{GatewaySNR: {Some(1)}}, 10, 10)
	if got := partial.Metrics(); len(got) != 1 || got[0] != GatewaySNR {
		t.Errorf("Metrics() = %v, want [gateway_snr]", got)
	}
	if _, ok := partial.Values(SensorRSSI); ok {
		t.Error("absent metric should report ok=false")
	}
}

func TestParseMetric(t *testing.T) {
	for _, m := range AllMetrics {
		got, err := ParseMetric(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMetric(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMetric("rssi"); err == nil {
		t.Error("ParseMetric(rssi) should fail")
	}
	if _, err := ParseMetrics([]string{"sensor_rssi", "sensor_rssi"}); err == nil {
		t.Error("duplicate metrics should fail")
	}
	if SensorRSSI.Unit() != "dBm" || GatewaySNR.Unit() != "dB" {
		t.Error("unexpected metric units")
	}
	if Metric(-1).Valid() || Metric(4).String() != "metric(4)" {
		t.Error("out of range metrics should be invalid")
	}
}
