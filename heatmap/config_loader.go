package heatmap

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatRaster = "raster"
	FormatPlot   = "plot"
	FormatSVG    = "svg"
	FormatAll    = "all"
)

// DefaultSurveyTopic is the MQTT subscription for incoming surveys. The last
// topic level names the survey.
const DefaultSurveyTopic = "heatsurvey/surveys/+"

// Config represents the full configuration file
type Config struct {
	Colormap   string     `yaml:"colormap,omitempty" json:"colormap,omitempty"`
	Contours   int        `yaml:"contours,omitempty" json:"contours,omitempty"`
	ShowPoints bool       `yaml:"showPoints,omitempty" json:"showPoints,omitempty"`
	Boundary   string     `yaml:"boundary,omitempty" json:"boundary,omitempty"` // min, mean or none
	Kernel     string     `yaml:"kernel,omitempty" json:"kernel,omitempty"`     // linear, cubic or thin_plate
	Thresholds string     `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	Format     string     `yaml:"format,omitempty" json:"format,omitempty"`
	OutputDir  string     `yaml:"outputDir,omitempty" json:"outputDir,omitempty"`
	Metrics    []string   `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Image      string     `yaml:"image,omitempty" json:"image,omitempty"` // Floor plan overriding the survey's img_path
	Workers    int        `yaml:"workers,omitempty" json:"workers,omitempty"`
	MQTT       MQTTConfig `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	SurveyTopic   string `yaml:"surveyTopic,omitempty" json:"surveyTopic,omitempty"`
}

// DefaultConfig returns the settings used when no config file is given
func DefaultConfig() *Config {
	return &Config{
		Colormap: DefaultColormap,
		Boundary: BoundaryMin.String(),
		Kernel:   "linear",
		Format:   FormatRaster,
		MQTT: MQTTConfig{
			SurveyTopic: DefaultSurveyTopic,
		},
	}
}

// LoadConfig loads the configuration from a YAML file. Unset keys keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks every enumerated setting
func (c *Config) Validate() error {
	if _, err := LookupColormap(c.Colormap); err != nil {
		return fmt.Errorf("colormap: %w", err)
	}
	if c.Contours < 0 {
		return fmt.Errorf("contours must not be negative, got %d", c.Contours)
	}
	if _, err := ParseBoundaryPolicy(c.Boundary); err != nil {
		return fmt.Errorf("boundary: %w", err)
	}
	if _, err := ParseKernel(c.Kernel); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	if _, err := ParseFormats(c.Format); err != nil {
		return err
	}
	if _, err := ParseMetrics(c.Metrics); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// ParseFormats expands a format setting into the list of renderers to run.
// An empty setting is raster; "all" is every renderer.
func ParseFormats(s string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatRaster:
		return []string{FormatRaster}, nil
	case FormatPlot:
		return []string{FormatPlot}, nil
	case FormatSVG:
		return []string{FormatSVG}, nil
	case FormatAll:
		return []string{FormatRaster, FormatPlot, FormatSVG}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want raster, plot, svg or all)", s)
}

// PipelineOptions resolves the configuration into pipeline options, loading
// the thresholds file when one is configured.
func (c *Config) PipelineOptions(logf func(format string, v ...interface{})) (Options, error) {
	if err := c.Validate(); err != nil {
		return Options{}, err
	}
	cmap, _ := LookupColormap(c.Colormap)
	boundary, _ := ParseBoundaryPolicy(c.Boundary)
	kernel, _ := ParseKernel(c.Kernel)
	metrics, _ := ParseMetrics(c.Metrics)

	var thresholds Thresholds
	if c.Thresholds != "" {
		t, err := LoadThresholds(c.Thresholds)
		if err != nil {
			return Options{}, err
		}
		thresholds = t
	}

	return Options{
		Metrics:    metrics,
		Thresholds: thresholds,
		Colormap:   cmap,
		Contours:   c.Contours,
		ShowPoints: c.ShowPoints,
		Boundary:   boundary,
		Kernel:     kernel,
		Workers:    c.Workers,
		Logf:       logf,
	}, nil
}
