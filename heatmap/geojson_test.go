package heatmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultToGeoJSON(t *testing.T) {
	_, res := cornerResult(t, Options{Contours: 3, ShowPoints: true})

	fc := ResultToGeoJSON("office", res)
	require.NotEmpty(t, fc.Features)

	extent := fc.Features[0]
	assert.Equal(t, FeatureExtent, extent.Properties["kind"])
	assert.Equal(t, orb.Bound{Max: orb.Point{100, 100}}, extent.Geometry.Bound())

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
		if f.Properties["kind"] == FeatureIsoline {
			ls, ok := f.Geometry.(orb.LineString)
			require.True(t, ok)
			assert.GreaterOrEqual(t, len(ls), 2)
			assert.Greater(t, f.Properties.MustFloat64("length"), 0.0)
		}
	}
	assert.Equal(t, 1, kinds[FeatureExtent])
	assert.Equal(t, 5*3, kinds[FeaturePoint], "five points per rendered metric")
	assert.NotZero(t, kinds[FeatureIsoline])

	assert.Equal(t, "office", fc.ExtraMembers["survey"])
	skipped := fc.ExtraMembers["skipped"].(map[string]string)
	assert.Equal(t, string(SkipInsufficientData), skipped["gateway_snr"])
}

func TestSaveGeoJSON(t *testing.T) {
	_, res := cornerResult(t, Options{Metrics: []Metric{SensorRSSI}, ShowPoints: true})
	path := filepath.Join(t.TempDir(), "office.geojson")
	require.NoError(t, SaveGeoJSON(path, "office", res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Equal(t, "office", fc.ExtraMembers["survey"])

	var labelled int
	for _, f := range fc.Features {
		if _, ok := f.Properties["label"]; ok {
			labelled++
		}
	}
	assert.Equal(t, 5, labelled)

	assert.Error(t, SaveGeoJSON(filepath.Join(t.TempDir(), "no", "x.geojson"), "office", res))
}
