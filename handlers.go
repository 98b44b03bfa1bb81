package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kwv/heatsurvey/heatmap"
)

// Heatmap artifact kinds served per metric
const (
	artifactRaster = "png"
	artifactPlot   = "plot.png"
	artifactSVG    = "svg"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *heatmap.StateTracker, cmap heatmap.Colormap) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Surveys   int       `json:"surveys"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Surveys:   stateTracker.Len(),
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("GET /surveys", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, stateTracker.Summaries())
	})

	mux.HandleFunc("GET /surveys/{name}", func(w http.ResponseWriter, r *http.Request) {
		entry, ok := stateTracker.Get(r.PathValue("name"))
		if !ok {
			http.Error(w, "Survey not found", http.StatusNotFound)
			return
		}
		writeJSON(w, entry.Summary)
	})

	mux.HandleFunc("GET /surveys/{name}/features.geojson", func(w http.ResponseWriter, r *http.Request) {
		entry, ok := stateTracker.Get(r.PathValue("name"))
		if !ok {
			http.Error(w, "Survey not found", http.StatusNotFound)
			return
		}
		data, err := heatmap.ResultToGeoJSON(entry.Name, entry.Result).MarshalJSON()
		if err != nil {
			log.Printf("Error encoding GeoJSON for %s: %v", entry.Name, err)
			http.Error(w, "Encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing GeoJSON for %s: %v", entry.Name, err)
		}
	})

	mux.HandleFunc("GET /surveys/{name}/{file}", func(w http.ResponseWriter, r *http.Request) {
		entry, ok := stateTracker.Get(r.PathValue("name"))
		if !ok {
			http.Error(w, "Survey not found", http.StatusNotFound)
			return
		}
		metric, kind, err := parseArtifact(r.PathValue("file"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		mr, ok := entry.Result.Metric(metric)
		if !ok {
			http.Error(w, "Metric not processed", http.StatusNotFound)
			return
		}
		if !mr.OK() {
			// The survey exists but this metric had nothing to interpolate
			http.Error(w, fmt.Sprintf("Metric skipped: %s", mr.Skip), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		switch kind {
		case artifactRaster:
			w.Header().Set("Content-Type", "image/png")
			err = heatmap.NewRasterRenderer(entry.Background, cmap).RenderToPNG(w, entry.Result, mr)
		case artifactPlot:
			w.Header().Set("Content-Type", "image/png")
			err = heatmap.NewPlotRenderer(entry.Background, cmap).RenderToPNG(w, entry.Result, mr)
		case artifactSVG:
			w.Header().Set("Content-Type", "image/svg+xml")
			err = heatmap.NewVectorRenderer(entry.Background, cmap).RenderToSVG(w, entry.Result, mr)
		}
		if err != nil {
			log.Printf("Error rendering %s/%s: %v", entry.Name, r.PathValue("file"), err)
		}
	})

	mux.HandleFunc("GET /thresholds.json", func(w http.ResponseWriter, r *http.Request) {
		sets := stateTracker.DataSets()
		if len(sets) == 0 {
			http.Error(w, "No surveys available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, heatmap.GlobalThresholds(sets, heatmap.AllMetrics))
	})

	return mux
}

// parseArtifact splits "<metric>.<kind>" into its parts
func parseArtifact(file string) (heatmap.Metric, string, error) {
	for _, kind := range []string{artifactPlot, artifactRaster, artifactSVG} {
		name, ok := strings.CutSuffix(file, "."+kind)
		if !ok {
			continue
		}
		m, err := heatmap.ParseMetric(name)
		if err != nil {
			return 0, "", err
		}
		return m, kind, nil
	}
	return 0, "", errors.New("unknown artifact (want <metric>.png, <metric>.plot.png or <metric>.svg)")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}
