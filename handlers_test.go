package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/heatsurvey/heatmap"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// populatedTracker returns a StateTracker holding one processed survey named "office".
func populatedTracker(t *testing.T) *heatmap.StateTracker {
	t.Helper()
	_, surveyPath := writeFixture(t, "office")

	app := NewApp()
	app.ApplyOptions(AppOptions{Contours: 3, SetFlags: map[string]bool{"contours": true}})
	require.NoError(t, app.configure())

	survey, err := heatmap.LoadSurveyFile(surveyPath)
	require.NoError(t, err)
	entry, err := app.processSurvey(context.Background(), "office", survey)
	require.NoError(t, err)

	app.StateTracker.Update(entry)
	return app.StateTracker
}

func newTestServer(st *heatmap.StateTracker) http.Handler {
	cmap, _ := heatmap.LookupColormap(heatmap.DefaultColormap)
	return newHTTPServer(st, cmap)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// parseArtifact
// ---------------------------------------------------------------------------

func TestParseArtifact(t *testing.T) {
	tests := []struct {
		file       string
		wantMetric heatmap.Metric
		wantKind   string
		wantErr    bool
	}{
		{file: "sensor_rssi.png", wantMetric: heatmap.SensorRSSI, wantKind: artifactRaster},
		{file: "gateway_snr.plot.png", wantMetric: heatmap.GatewaySNR, wantKind: artifactPlot},
		{file: "sensor_snr.svg", wantMetric: heatmap.SensorSNR, wantKind: artifactSVG},
		{file: "sensor_rssi.jpg", wantErr: true},
		{file: "noise.png", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m, kind, err := parseArtifact(tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMetric, m)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

// ---------------------------------------------------------------------------
// endpoints
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	rec := get(t, newTestServer(heatmap.NewStateTracker()), "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status struct {
		Status  string `json:"status"`
		Surveys int    `json:"surveys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 0, status.Surveys)
}

func TestSurveysEndpoint(t *testing.T) {
	h := newTestServer(populatedTracker(t))

	rec := get(t, h, "/surveys")
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []heatmap.SurveySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "office", summaries[0].Survey)
	assert.Len(t, summaries[0].Metrics, 4)

	rec = get(t, h, "/surveys/office")
	require.Equal(t, http.StatusOK, rec.Code)
	var one heatmap.SurveySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, 5, one.Points)

	rec = get(t, h, "/surveys/attic")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeatmapEndpoints(t *testing.T) {
	h := newTestServer(populatedTracker(t))

	tests := []struct {
		name        string
		path        string
		wantCode    int
		contentType string
	}{
		{"raster", "/surveys/office/sensor_rssi.png", http.StatusOK, "image/png"},
		{"plot", "/surveys/office/sensor_snr.plot.png", http.StatusOK, "image/png"},
		{"svg", "/surveys/office/sensor_rssi.svg", http.StatusOK, "image/svg+xml"},
		{"skipped metric", "/surveys/office/gateway_rssi.png", http.StatusServiceUnavailable, ""},
		{"unknown survey", "/surveys/attic/sensor_rssi.png", http.StatusNotFound, ""},
		{"unknown artifact", "/surveys/office/sensor_rssi.bmp", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.contentType == "" {
				return
			}
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
			assert.NotZero(t, rec.Body.Len())
		})
	}
}

func TestRasterEndpoint_DecodesAsPNG(t *testing.T) {
	h := newTestServer(populatedTracker(t))

	rec := get(t, h, "/surveys/office/sensor_rssi.png")
	require.Equal(t, http.StatusOK, rec.Code)

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 100, "colorbar panel widens the image")
}

func TestGeoJSONEndpoint(t *testing.T) {
	h := newTestServer(populatedTracker(t))

	rec := get(t, h, "/surveys/office/features.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), `"FeatureCollection"`))
}

func TestThresholdsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(heatmap.NewStateTracker()), "/thresholds.json")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(t, newTestServer(populatedTracker(t)), "/thresholds.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, -80.0, got["sensor_rssi"].Min)
	assert.Equal(t, -50.0, got["sensor_rssi"].Max)
	assert.NotContains(t, got, "gateway_rssi")
}
