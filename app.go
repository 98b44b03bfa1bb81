package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/kwv/heatsurvey/heatmap"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *heatmap.Config
	StateTracker *heatmap.StateTracker
	MQTTClient   *heatmap.MQTTClient
	Publisher    *heatmap.Publisher
	Pipeline     *heatmap.Pipeline

	// CLI Flags (effectively dependencies)
	Options AppOptions
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: heatmap.NewStateTracker(),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	if opts.SetFlags == nil {
		opts.SetFlags = make(map[string]bool)
	}
	a.Options = opts
}

// configure loads the config file, applies explicit flags on top of it and
// builds the pipeline.
func (a *App) configure() error {
	path := a.Options.ConfigFile
	if path == "" && a.Options.DataDir != "" {
		candidate := filepath.Join(a.Options.DataDir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	config := heatmap.DefaultConfig()
	if path != "" {
		loaded, err := heatmap.LoadConfig(path)
		if err != nil {
			return err
		}
		config = loaded
		log.Printf("Loaded config from %s", path)
	}

	o, set := a.Options, a.Options.SetFlags
	if set["colormap"] {
		config.Colormap = o.Colormap
	}
	if set["contours"] {
		config.Contours = o.Contours
	}
	if set["picture"] {
		config.Image = o.Picture
	}
	if set["show-points"] {
		config.ShowPoints = o.ShowPoints
	}
	if set["thresholds"] {
		config.Thresholds = o.Thresholds
	}
	if set["format"] {
		config.Format = o.Format
	}
	if set["output-dir"] {
		config.OutputDir = o.OutputDir
	}
	if set["boundary"] {
		config.Boundary = o.Boundary
	}
	if set["kernel"] {
		config.Kernel = o.Kernel
	}
	if set["workers"] {
		config.Workers = o.Workers
	}

	var logf func(string, ...interface{})
	if o.Verbose {
		logf = log.Printf
	}
	pipeOpts, err := config.PipelineOptions(logf)
	if err != nil {
		return err
	}

	a.Config = config
	a.Pipeline = heatmap.NewPipeline(pipeOpts)
	return nil
}

// loadSurvey reads a survey from a local path or an http(s) URL
func (a *App) loadSurvey(ctx context.Context, arg string) (*heatmap.SurveyFile, error) {
	if heatmap.IsRemote(arg) {
		return heatmap.FetchSurvey(ctx, arg)
	}
	return heatmap.LoadSurveyFile(arg)
}

// processSurvey loads the floor plan, runs the pipeline and summarizes the run
func (a *App) processSurvey(ctx context.Context, name string, survey *heatmap.SurveyFile) (*heatmap.SurveyEntry, error) {
	bgPath := a.Config.Image
	if bgPath == "" {
		bgPath = survey.ImagePath
	}
	if bgPath == "" {
		return nil, fmt.Errorf("%s: no floor plan image (set --picture or img_path)", name)
	}

	bg, err := heatmap.LoadImage(bgPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	w, h := heatmap.ImageSize(bg)

	ds := survey.DataSet(w, h)
	res, err := a.Pipeline.Run(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	for _, mr := range res.Metrics {
		if !mr.OK() {
			log.Printf("%s: skipping %s: %s (%v)", name, mr.Metric, mr.Skip, mr.Err)
		}
	}

	return &heatmap.SurveyEntry{
		Name:       name,
		Survey:     survey,
		DataSet:    ds,
		Result:     res,
		Summary:    heatmap.Summarize(name, uuid.NewString(), ds, res),
		Background: bg,
	}, nil
}

// outputDir returns where files for a survey go: the configured directory,
// else next to a local survey file, else the working directory.
func (a *App) outputDir(survey *heatmap.SurveyFile) string {
	if a.Config.OutputDir != "" {
		return a.Config.OutputDir
	}
	if survey.Path != "" && !heatmap.IsRemote(survey.Path) {
		return filepath.Dir(survey.Path)
	}
	return "."
}

// writeOutputs renders every successful metric in the configured formats
// and returns the written paths.
func (a *App) writeOutputs(entry *heatmap.SurveyEntry, dir string) ([]string, error) {
	formats, err := heatmap.ParseFormats(a.Config.Format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	cmap := a.Pipeline.Options().Colormap
	stem := filepath.Join(dir, entry.Name)
	var written []string

	for _, mr := range entry.Result.Rendered() {
		base := fmt.Sprintf("%s_%s", stem, mr.Metric)
		for _, format := range formats {
			var path string
			switch format {
			case heatmap.FormatRaster:
				path = base + ".png"
				err = heatmap.NewRasterRenderer(entry.Background, cmap).SavePNG(path, entry.Result, &mr)
			case heatmap.FormatPlot:
				path = base + "_plot.png"
				err = heatmap.NewPlotRenderer(entry.Background, cmap).SavePNG(path, entry.Result, &mr)
			case heatmap.FormatSVG:
				path = base + ".svg"
				err = heatmap.NewVectorRenderer(entry.Background, cmap).SaveSVG(path, entry.Result, &mr)
			}
			if err != nil {
				return written, fmt.Errorf("rendering %s: %w", path, err)
			}
			written = append(written, path)
		}
	}

	if a.Options.GeoJSON {
		path := stem + ".geojson"
		if err := heatmap.SaveGeoJSON(path, entry.Name, entry.Result); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// RunRender renders every survey given on the command line
func (a *App) RunRender() {
	if err := a.renderSurveys(context.Background()); err != nil {
		log.Fatalf("Render failed: %v", err)
	}
}

func (a *App) renderSurveys(ctx context.Context) error {
	if err := a.configure(); err != nil {
		return err
	}
	if len(a.Options.Surveys) == 0 {
		return errors.New("no surveys given")
	}

	for _, arg := range a.Options.Surveys {
		survey, err := a.loadSurvey(ctx, arg)
		if err != nil {
			return err
		}
		entry, err := a.processSurvey(ctx, survey.Title(), survey)
		if err != nil {
			return err
		}
		a.StateTracker.Update(entry)

		written, err := a.writeOutputs(entry, a.outputDir(survey))
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Printf("Wrote %s\n", path)
		}
		if len(entry.Result.Rendered()) == 0 {
			fmt.Printf("%s: no metric could be rendered\n", entry.Name)
		}
	}
	return nil
}

// RunThresholds computes global thresholds over the given surveys and saves them
func (a *App) RunThresholds() {
	if err := a.generateThresholds(context.Background()); err != nil {
		log.Fatalf("Generating thresholds failed: %v", err)
	}
}

func (a *App) generateThresholds(ctx context.Context) error {
	if err := a.configure(); err != nil {
		return err
	}
	if len(a.Options.Surveys) == 0 {
		return errors.New("no surveys given")
	}

	sets := make([]*heatmap.DataSet, 0, len(a.Options.Surveys))
	for _, arg := range a.Options.Surveys {
		survey, err := a.loadSurvey(ctx, arg)
		if err != nil {
			return err
		}
		sets = append(sets, survey.DataSet(0, 0))
	}

	thresholds := heatmap.GlobalThresholds(sets, a.Pipeline.Options().Metrics)
	out := a.Options.ThresholdsOut
	if out == "" {
		out = "thresholds.json"
	}
	if err := heatmap.SaveThresholds(out, thresholds); err != nil {
		return err
	}
	fmt.Printf("Wrote thresholds for %d metrics over %d surveys to %s\n", len(thresholds), len(sets), out)
	return nil
}

// handleSurvey processes a survey received over MQTT and publishes its summary
func (a *App) handleSurvey(name string, survey *heatmap.SurveyFile, err error) {
	if err != nil {
		log.Printf("Error receiving survey %s: %v", name, err)
		return
	}
	if survey.ImagePath != "" && !filepath.IsAbs(survey.ImagePath) {
		survey.ImagePath = filepath.Join(a.Options.DataDir, survey.ImagePath)
	}

	entry, err := a.processSurvey(context.Background(), name, survey)
	if err != nil {
		log.Printf("Error processing survey %s: %v", name, err)
		return
	}
	a.StateTracker.Update(entry)
	log.Printf("%s: processed %d points, %d of %d metrics rendered",
		name, entry.DataSet.Len(), len(entry.Result.Rendered()), len(entry.Result.Metrics))

	if a.Config.OutputDir != "" {
		if _, err := a.writeOutputs(entry, a.Config.OutputDir); err != nil {
			log.Printf("Error writing outputs for %s: %v", name, err)
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishSummary(entry.Summary); err != nil {
			log.Printf("Error publishing summary for %s: %v", name, err)
		}
	}
}

// RunService runs MQTT and/or HTTP service mode until interrupted
func (a *App) RunService() {
	fmt.Println("Starting heatsurvey service...")

	if err := a.configure(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	initial := a.loadInitialSurveys(a.Options.DataDir)
	for _, entry := range initial {
		a.StateTracker.Update(entry)
	}
	if len(initial) > 0 {
		fmt.Printf("Loaded %d initial surveys from %s\n", len(initial), a.Options.DataDir)
	}

	if a.Options.MqttMode {
		mqttClient, err := heatmap.InitMQTT(a.Config, a.handleSurvey)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		if mqttClient == nil {
			log.Fatal("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.MQTTClient = mqttClient

		a.Publisher = heatmap.NewPublisher(mqttClient.GetClient(), a.Config.MQTT.PublishPrefix)
		fmt.Println("MQTT summary publisher initialized")
	}

	if a.Options.HttpMode {
		httpServer := newHTTPServer(a.StateTracker, a.Pipeline.Options().Colormap)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.Options.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
			log.Printf("[HTTP] Server stopped unexpectedly")
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.Options.MqttMode {
		topic := a.Config.MQTT.SurveyTopic
		if topic == "" {
			topic = heatmap.DefaultSurveyTopic
		}
		fmt.Println("\nMQTT:")
		fmt.Printf("  Subscribed topic: %s\n", topic)
		fmt.Printf("  Publishing to: %s/{survey}/{metric}\n", a.Publisher.Prefix())
		fmt.Printf("  Run summaries: %s/{survey}/summary\n", a.Publisher.Prefix())
	}

	if a.Options.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.Options.HttpPort)
		fmt.Println("  GET /health                          - Health check")
		fmt.Println("  GET /surveys                         - Summaries of every survey")
		fmt.Println("  GET /surveys/{name}                  - Summary of one survey")
		fmt.Println("  GET /surveys/{name}/{metric}.png     - Raster heatmap")
		fmt.Println("  GET /surveys/{name}/{metric}.plot.png - Plot heatmap with axes")
		fmt.Println("  GET /surveys/{name}/{metric}.svg     - Vector heatmap")
		fmt.Println("  GET /surveys/{name}/features.geojson - Isolines and points")
		fmt.Println("  GET /thresholds.json                 - Global thresholds over every survey")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
}

// loadInitialSurveys processes the survey JSON files in the data directory
func (a *App) loadInitialSurveys(dataDir string) []*heatmap.SurveyEntry {
	var entries []*heatmap.SurveyEntry

	files, err := filepath.Glob(filepath.Join(dataDir, "*.json"))
	if err != nil {
		return entries
	}

	for _, file := range files {
		if strings.HasPrefix(filepath.Base(file), "thresholds") {
			continue
		}
		survey, err := heatmap.LoadSurveyFile(file)
		if err != nil {
			log.Printf("Warning: Failed to load %s: %v", file, err)
			continue
		}
		entry, err := a.processSurvey(context.Background(), survey.Title(), survey)
		if err != nil {
			log.Printf("Warning: Failed to process %s: %v", file, err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries
}
