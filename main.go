package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line. SetFlags records which flags were
// given explicitly so they can override the config file.
type AppOptions struct {
	ConfigFile         string
	Colormap           string
	Contours           int
	Picture            string
	ShowPoints         bool
	Thresholds         string
	Format             string
	OutputDir          string
	GeoJSON            bool
	Boundary           string
	Kernel             string
	Workers            int
	GenerateThresholds bool
	ThresholdsOut      string
	MqttMode           bool
	HttpMode           bool
	HttpPort           int
	DataDir            string
	Verbose            bool
	Surveys            []string
	SetFlags           map[string]bool
}

// Runner is implemented by App; tests substitute a mock
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunRender()
	RunThresholds()
	RunService()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("heatsurvey", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "", "Path to YAML configuration file")
	fs.StringVar(&opts.Colormap, "colormap", "", "Colormap name, optionally reversed (_r) or banded (name//N)")
	fs.IntVar(&opts.Contours, "contours", 0, "Number of contour lines to draw (0 disables)")
	fs.StringVar(&opts.Picture, "picture", "", "Floor plan image overriding the survey's img_path")
	fs.BoolVar(&opts.ShowPoints, "show-points", false, "Draw measured points with their labels")
	fs.StringVar(&opts.Thresholds, "thresholds", "", "Thresholds JSON fixing per-metric min/max")
	fs.StringVar(&opts.Format, "format", "", "Output format: raster, plot, svg or all")
	fs.StringVar(&opts.OutputDir, "output-dir", "", "Directory for rendered files (default: next to the survey)")
	fs.BoolVar(&opts.GeoJSON, "geojson", false, "Also write isolines and points as GeoJSON")
	fs.StringVar(&opts.Boundary, "boundary", "", "Corner value policy: min, mean or none")
	fs.StringVar(&opts.Kernel, "kernel", "", "Radial basis kernel: linear, cubic or thin_plate")
	fs.IntVar(&opts.Workers, "workers", 0, "Metrics interpolated concurrently (0 = all)")
	fs.BoolVar(&opts.GenerateThresholds, "generate-thresholds", false, "Compute global thresholds over the given surveys and exit")
	fs.StringVar(&opts.ThresholdsOut, "thresholds-out", "thresholds.json", "Output file for --generate-thresholds")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode, rendering surveys as they arrive")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for serving heatmaps")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.StringVar(&opts.DataDir, "data-dir", ".", "Directory with survey JSON files loaded at service start-up")
	fs.BoolVar(&opts.Verbose, "v", false, "Verbose pipeline logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(out, "heatsurvey version: %s\n", Version)

	opts.Surveys = fs.Args()
	opts.SetFlags = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.SetFlags[f.Name] = true })

	app.ApplyOptions(opts)

	switch {
	case opts.GenerateThresholds:
		app.RunThresholds()
	case opts.MqttMode || opts.HttpMode:
		app.RunService()
	case len(opts.Surveys) > 0:
		app.RunRender()
	default:
		fmt.Fprintln(out, "No surveys given.")
		fmt.Fprintln(out, "Usage: heatsurvey [flags] SURVEY.json|URL...")
		fmt.Fprintln(out, "Use --generate-thresholds SURVEY.json... to write global thresholds")
		fmt.Fprintln(out, "Use --mqtt to render surveys received over MQTT")
		fmt.Fprintln(out, "Use --http to serve heatmaps over HTTP")
		fmt.Fprintln(out, "Use --help for all flags")
	}
	return nil
}
