package heatmap

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultContourTolerance is the Douglas-Peucker tolerance, in pixels, applied to isolines
const DefaultContourTolerance = 1.0

// Options configures a Pipeline. Zero values select the defaults: every
// metric, the default colormap, the linear kernel, corners at the minimum
// and one worker per metric.
type Options struct {
	Metrics          []Metric
	Thresholds       Thresholds
	Colormap         Colormap
	Contours         int
	ContourTolerance float64
	ShowPoints       bool
	Boundary         BoundaryPolicy
	Kernel           Kernel
	Workers          int

	// Logf receives progress and skip messages. Nil discards them.
	Logf func(format string, v ...interface{})
}

// Pipeline turns a DataSet into one classified heatmap per metric
type Pipeline struct {
	opts Options
}

// NewPipeline fills in defaults for unset options
func NewPipeline(opts Options) *Pipeline {
	if len(opts.Metrics) == 0 {
		opts.Metrics = AllMetrics
	}
	if opts.Colormap == nil {
		opts.Colormap, _ = LookupColormap(DefaultColormap)
	}
	if opts.Kernel == nil {
		opts.Kernel = LinearKernel
	}
	if opts.ContourTolerance == 0 {
		opts.ContourTolerance = DefaultContourTolerance
	}
	if opts.Workers <= 0 {
		opts.Workers = len(opts.Metrics)
	}
	return &Pipeline{opts: opts}
}

// Options returns the effective options after defaults were applied
func (p *Pipeline) Options() Options {
	return p.opts
}

func (p *Pipeline) logf(format string, v ...interface{}) {
	if p.opts.Logf != nil {
		p.opts.Logf(format, v...)
	}
}

// Result holds the per-metric outcomes of one run, in configured metric order
type Result struct {
	Width   int
	Height  int
	Grid    *Grid
	Metrics []MetricResult
}

// Metric returns the outcome for m
func (r *Result) Metric(m Metric) (*MetricResult, bool) {
	for i := range r.Metrics {
		if r.Metrics[i].Metric == m {
			return &r.Metrics[i], true
		}
	}
	return nil, false
}

// Rendered returns the metrics that produced a heatmap
func (r *Result) Rendered() []MetricResult {
	var out []MetricResult
	for _, mr := range r.Metrics {
		if mr.OK() {
			out = append(out, mr)
		}
	}
	return out
}

// MetricResult is either a classified heatmap or a skip with its reason
type MetricResult struct {
	Metric     Metric
	Field      *InterpolatedField
	Normalized [][]float64
	Colors     ColorGrid
	Extent     Extent
	Levels     []float64
	Isolines   []Isoline
	Points     []OverlayPoint

	Skip SkipReason
	Err  error
}

// OK reports whether the metric produced a heatmap
func (mr *MetricResult) OK() bool {
	return mr.Skip == SkipNone && mr.Err == nil
}

func skipped(m Metric, err error) MetricResult {
	return MetricResult{Metric: m, Skip: SkipReasonFor(err), Err: err}
}

// Run interpolates and classifies every configured metric of ds. Fatal
// errors, such as a degenerate raster, return no result. Metrics that cannot
// be rendered come back skipped while the rest proceed.
func (p *Pipeline) Run(ctx context.Context, ds *DataSet) (*Result, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: no data set", ErrSchema)
	}
	grid, err := MakeGrid(ds.Width(), ds.Height())
	if err != nil {
		return nil, err
	}
	aug := Augment(ds, Corners(ds.Width(), ds.Height()), p.opts.Boundary)
	coords := grid.Coords()

	p.logf("Interpolating %d points (+%d corners) onto %dx%d grid",
		aug.Measured, len(aug.Positions)-aug.Measured, grid.NumX, grid.NumY)

	results := make([]MetricResult, len(p.opts.Metrics))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, m := range p.opts.Metrics {
		g.Go(func() error {
			mr, err := p.runMetric(gctx, ds, aug, grid, coords, m)
			if err != nil {
				return err
			}
			results[i] = mr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, mr := range results {
		if !mr.OK() {
			p.logf("Skipping %s: %s (%v)", mr.Metric, mr.Skip, mr.Err)
		}
	}

	return &Result{
		Width:   ds.Width(),
		Height:  ds.Height(),
		Grid:    grid,
		Metrics: results,
	}, nil
}

// runMetric returns a non-nil error only when ctx is done
func (p *Pipeline) runMetric(ctx context.Context, ds *DataSet, aug *AugmentedDataSet, grid *Grid, coords []Point, m Metric) (MetricResult, error) {
	if err := ctx.Err(); err != nil {
		return MetricResult{}, err
	}
	if err := aug.Skipped(m); err != nil {
		return skipped(m, err), nil
	}

	readings, _ := ds.Values(m)
	r, err := Resolve(readings, p.opts.Thresholds.For(m))
	if err != nil {
		return skipped(m, fmt.Errorf("%s: %w", m, err)), nil
	}

	var surface *Surface
	if r.Degenerate() {
		surface = ConstantSurface(r.Min)
	} else {
		positions, values, err := aug.Samples(m)
		if err != nil {
			return skipped(m, err), nil
		}
		surface, err = Fit(positions, values, WithKernel(p.opts.Kernel))
		if err != nil {
			return skipped(m, fmt.Errorf("%s: %w", m, err)), nil
		}
	}

	flat := surface.Evaluate(coords)
	if err := ctx.Err(); err != nil {
		return MetricResult{}, err
	}
	values, err := grid.Reshape(flat)
	if err != nil {
		return MetricResult{}, err
	}

	normalized, colors := Classify(values, r, p.opts.Colormap)
	levels := ContourLevels(r, p.opts.Contours)

	mr := MetricResult{
		Metric:     m,
		Field:      &InterpolatedField{Metric: m, Values: values, Range: r},
		Normalized: normalized,
		Colors:     colors,
		Extent:     grid.Extent(),
		Levels:     levels,
		Isolines:   TraceIsolines(values, grid, levels, p.opts.ContourTolerance),
	}
	if p.opts.ShowPoints {
		mr.Points = p.overlayPoints(ds, readings, r)
	}

	p.logf("%s: range [%g, %g], %d isolines", m, r.Min, r.Max, len(mr.Isolines))
	return mr, nil
}

// overlayPoints returns the measured points with a valid reading; corners are
// never included.
func (p *Pipeline) overlayPoints(ds *DataSet, readings []Reading, r ThresholdRange) []OverlayPoint {
	positions := ds.Positions()
	var out []OverlayPoint
	for i, reading := range readings {
		if !reading.Valid || i >= len(positions) {
			continue
		}
		out = append(out, OverlayPoint{
			Position: positions[i],
			Label:    ds.Label(i),
			Value:    reading.Value,
			Color:    p.opts.Colormap(Normalize(reading.Value, r)),
		})
	}
	return out
}
