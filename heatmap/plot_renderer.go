package heatmap

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// PlotRenderer draws a metric as a gonum chart: axes in image pixels, the
// floor plan behind the heatmap, isolines, labelled points and a colour bar.
type PlotRenderer struct {
	Background image.Image
	Colormap   Colormap
	Opacity    float64
	DPI        int
	Width      vg.Length // 0 sizes the chart from the raster
}

// NewPlotRenderer creates a chart renderer with default settings
func NewPlotRenderer(background image.Image, cmap Colormap) *PlotRenderer {
	if cmap == nil {
		cmap, _ = LookupColormap(DefaultColormap)
	}
	return &PlotRenderer{
		Background: background,
		Colormap:   cmap,
		Opacity:    defaultOpacity,
		DPI:        96,
	}
}

// fieldGrid exposes a normalized grid to plotter.HeatMap with y flipped so
// that image row 0 is drawn at the top.
type fieldGrid struct {
	g      *Grid
	values [][]float64
}

func (f fieldGrid) Dims() (c, r int)   { return f.g.NumX, f.g.NumY }
func (f fieldGrid) X(c int) float64    { return f.g.Xs[c] }
func (f fieldGrid) Y(r int) float64    { return f.g.Height - f.g.Ys[f.g.NumY-1-r] }
func (f fieldGrid) Z(c, r int) float64 { return f.values[f.g.NumY-1-r][c] }

// rangeColorMap adapts a Colormap to palette.ColorMap over a metric range
type rangeColorMap struct {
	cmap     Colormap
	min, max float64
	alpha    float64
	constant bool
}

func newRangeColorMap(cmap Colormap, r ThresholdRange, alpha float64) *rangeColorMap {
	cm := &rangeColorMap{cmap: cmap, min: r.Min, max: r.Max, alpha: alpha}
	if r.Degenerate() {
		// the colour bar needs a non-empty span; every value maps to the bottom colour
		cm.constant = true
		cm.min, cm.max = r.Min-0.5, r.Max+0.5
	}
	return cm
}

func (cm *rangeColorMap) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, palette.ErrNaN
	case v < cm.min:
		return nil, palette.ErrUnderflow
	case v > cm.max:
		return nil, palette.ErrOverflow
	}
	f := 0.0
	if !cm.constant {
		f = (v - cm.min) / (cm.max - cm.min)
	}
	c := cm.cmap(f)
	c.A = uint8(math.Round(cm.alpha * 255))
	return c, nil
}

func (cm *rangeColorMap) Max() float64       { return cm.max }
func (cm *rangeColorMap) Min() float64       { return cm.min }
func (cm *rangeColorMap) SetMax(v float64)   { cm.max = v }
func (cm *rangeColorMap) SetMin(v float64)   { cm.min = v }
func (cm *rangeColorMap) Alpha() float64     { return cm.alpha }
func (cm *rangeColorMap) SetAlpha(a float64) { cm.alpha = a }
func (cm *rangeColorMap) Palette(n int) palette.Palette {
	return sampledPalette(cm.cmap, n, cm.alpha)
}

type colorPalette []color.Color

func (p colorPalette) Colors() []color.Color { return p }

// sampledPalette samples cmap at n evenly spaced points
func sampledPalette(cmap Colormap, n int, alpha float64) palette.Palette {
	if n < 2 {
		n = 2
	}
	p := make(colorPalette, n)
	for i := range p {
		c := cmap(float64(i) / float64(n-1))
		c.A = uint8(math.Round(alpha * 255))
		p[i] = c
	}
	return p
}

// flippedTicks labels a y axis measured upward with image rows measured downward
type flippedTicks struct {
	height float64
}

func (t flippedTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = fmt.Sprintf("%g", t.height-ticks[i].Value)
		}
	}
	return ticks
}

// flipY converts an image-space point to chart space
func flipY(p Point, height float64) (float64, float64) {
	return p.X, height - p.Y
}

// Plot builds the chart for mr without the colour bar
func (r *PlotRenderer) Plot(res *Result, mr *MetricResult) (*plot.Plot, error) {
	if !mr.OK() {
		return nil, fmt.Errorf("plot %s: metric was skipped: %s", mr.Metric, mr.Skip)
	}
	if res.Grid == nil || res.Grid.NumX < 2 || res.Grid.NumY < 2 {
		return nil, fmt.Errorf("plot %s: grid too small for a heatmap", mr.Metric)
	}
	w, h := float64(res.Width), float64(res.Height)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", mr.Metric.Title(), mr.Metric.Unit())
	p.X.Min, p.X.Max = 0, w
	p.Y.Min, p.Y.Max = 0, h
	p.Y.Tick.Marker = flippedTicks{height: h}

	if r.Background != nil {
		p.Add(plotter.NewImage(r.Background, 0, 0, w, h))
	}

	// The heat map works on the normalized grid so a degenerate range never
	// divides by zero inside the plotter.
	hm := plotter.NewHeatMap(fieldGrid{g: res.Grid, values: mr.Normalized},
		sampledPalette(r.Colormap, 256, r.Opacity))
	hm.Min, hm.Max = 0, 1
	p.Add(hm)

	for _, iso := range mr.Isolines {
		xys := make(plotter.XYs, len(iso.Path))
		for i, pt := range iso.Path {
			xys[i].X, xys[i].Y = flipY(pt, h)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("plot %s: isoline %g: %w", mr.Metric, iso.Level, err)
		}
		line.LineStyle.Color = contourColor
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)
	}

	if len(mr.Points) > 0 {
		xys := make(plotter.XYs, len(mr.Points))
		labels := make([]string, len(mr.Points))
		for i, pt := range mr.Points {
			xys[i].X, xys[i].Y = flipY(pt.Position, h)
			labels[i] = pt.Label
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("plot %s: points: %w", mr.Metric, err)
		}
		sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{
				Color:  mr.Points[i].Color,
				Radius: vg.Points(4),
				Shape:  draw.CircleGlyph{},
			}
		}
		p.Add(sc)

		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return nil, fmt.Errorf("plot %s: labels: %w", mr.Metric, err)
		}
		lbl.Offset = vg.Point{Y: vg.Points(labelOffset)}
		p.Add(lbl)
	}

	return p, nil
}

// colorBar builds the vertical colour bar for a range. A degenerate range
// gets a single tick.
func (r *PlotRenderer) colorBar(rng ThresholdRange, unit string) *plot.Plot {
	cb := plot.New()
	cb.Add(&plot.ColorBar{
		ColorMap: newRangeColorMap(r.Colormap, rng, 1),
		Vertical: true,
		Colors:   255,
	})
	cb.HideX()
	cb.Y.Label.Text = unit
	if rng.Degenerate() {
		cb.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{{Value: rng.Min, Label: formatTick(rng.Min)}})
	}
	return cb
}

// RenderToPNG writes the chart for mr as a PNG
func (r *PlotRenderer) RenderToPNG(w io.Writer, res *Result, mr *MetricResult) error {
	p, err := r.Plot(res, mr)
	if err != nil {
		return err
	}

	width := r.Width
	if width == 0 {
		width = vg.Length(res.Width) * vg.Inch / vg.Length(r.DPI)
		width += 2 * vg.Inch
	}
	height := width * vg.Length(res.Height) / vg.Length(res.Width)
	barWidth := vg.Inch

	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(r.DPI))
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
	r.colorBar(mr.Field.Range, mr.Metric.Unit()).Draw(draw.Crop(dc, width-barWidth, 0, 0, 0))

	_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

// SavePNG saves the chart for mr to a file
func (r *PlotRenderer) SavePNG(path string, res *Result, mr *MetricResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.RenderToPNG(f, res, mr); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
