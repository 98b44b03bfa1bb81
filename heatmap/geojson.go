package heatmap

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Feature kinds written to the "kind" property
const (
	FeatureExtent  = "extent"
	FeatureIsoline = "isoline"
	FeaturePoint   = "point"
)

// ResultToGeoJSON exports a pipeline result as a FeatureCollection in image
// pixel coordinates (y grows downward). It holds the raster extent, every
// isoline and every overlay point of the rendered metrics; skipped metrics
// are listed with their reason in the "skipped" member.
func ResultToGeoJSON(survey string, res *Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	ext := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(res.Width), float64(res.Height)}}
	extent := geojson.NewFeature(ext.ToPolygon())
	extent.Properties["kind"] = FeatureExtent
	extent.Properties["survey"] = survey
	fc.Append(extent)

	skipped := make(map[string]string)
	for i := range res.Metrics {
		mr := &res.Metrics[i]
		if !mr.OK() {
			skipped[mr.Metric.String()] = string(mr.Skip)
			continue
		}
		for _, iso := range mr.Isolines {
			ls := pathToLineString(iso.Path)
			f := geojson.NewFeature(ls)
			f.Properties["kind"] = FeatureIsoline
			f.Properties["metric"] = mr.Metric.String()
			f.Properties["level"] = iso.Level
			f.Properties["length"] = planar.Length(ls)
			fc.Append(f)
		}
		for _, p := range mr.Points {
			f := geojson.NewFeature(orb.Point{p.Position.X, p.Position.Y})
			f.Properties["kind"] = FeaturePoint
			f.Properties["metric"] = mr.Metric.String()
			f.Properties["value"] = p.Value
			if p.Label != "" {
				f.Properties["label"] = p.Label
			}
			fc.Append(f)
		}
	}

	fc.ExtraMembers = geojson.Properties{
		"survey":  survey,
		"skipped": skipped,
	}
	return fc
}

func pathToLineString(path []Point) orb.LineString {
	ls := make(orb.LineString, len(path))
	for i, p := range path {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

// SaveGeoJSON writes the GeoJSON export of res to path
func SaveGeoJSON(path, survey string, res *Result) error {
	data, err := ResultToGeoJSON(survey, res).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}
