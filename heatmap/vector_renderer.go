package heatmap

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer renders a metric as SVG: the floor plan embedded as an
// image, heatmap cells as filled paths, isolines and points as vectors.
type VectorRenderer struct {
	Background  image.Image
	Colormap    Colormap
	Opacity     float64
	PointRadius float64
	BarWidth    float64 // Colour bar width in image pixels
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(background image.Image, cmap Colormap) *VectorRenderer {
	if cmap == nil {
		cmap, _ = LookupColormap(DefaultColormap)
	}
	return &VectorRenderer{
		Background:  background,
		Colormap:    cmap,
		Opacity:     defaultOpacity,
		PointRadius: 5,
		BarWidth:    colorbarWidth,
	}
}

// canvasRenderer is the subset of canvas renderers the vector output needs
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
	RenderImage(img image.Image, m canvas.Matrix)
}

// RenderToSVG writes the heatmap for mr as an SVG
func (r *VectorRenderer) RenderToSVG(w io.Writer, res *Result, mr *MetricResult) error {
	if !mr.OK() {
		return fmt.Errorf("render %s: metric was skipped: %s", mr.Metric, mr.Skip)
	}
	width := float64(res.Width) + colorbarPanel
	height := float64(res.Height)

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, res, mr, height)
	return svgRenderer.Close()
}

// SaveSVG saves the heatmap for mr to a file
func (r *VectorRenderer) SaveSVG(path string, res *Result, mr *MetricResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.RenderToSVG(f, res, mr); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, res *Result, mr *MetricResult, height float64) {
	w, h := float64(res.Width), float64(res.Height)

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(w+colorbarPanel, h), bgStyle, canvas.Identity)

	if r.Background != nil {
		bw, bh := ImageSize(r.Background)
		renderer.RenderImage(r.Background, canvas.Identity.Scale(w/float64(bw), h/float64(bh)))
	}

	// Canvas y grows upward; image rows grow downward.
	toCanvas := func(p Point) (float64, float64) {
		return p.X, height - p.Y
	}

	r.renderCells(renderer, mr.Colors, w, h)

	lineStyle := canvas.DefaultStyle
	lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lineStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(contourColor)}
	lineStyle.StrokeWidth = 1.0

	for _, iso := range mr.Isolines {
		cp := &canvas.Path{}
		for i, pt := range iso.Path {
			cx, cy := toCanvas(pt)
			if i == 0 {
				cp.MoveTo(cx, cy)
			} else {
				cp.LineTo(cx, cy)
			}
		}
		renderer.RenderPath(cp, lineStyle, canvas.Identity)
	}

	for _, p := range mr.Points {
		cx, cy := toCanvas(p.Position)
		pointStyle := canvas.DefaultStyle
		pointStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(p.Color)}
		pointStyle.Stroke = canvas.Paint{Color: canvas.Black}
		pointStyle.StrokeWidth = 1.0
		renderer.RenderPath(canvas.Circle(r.PointRadius).Translate(cx, cy), pointStyle, canvas.Identity)
	}

	r.renderColorbar(renderer, w+15, h)
}

// renderCells fills one rectangle per run of equal colours in each grid row
func (r *VectorRenderer) renderCells(renderer canvasRenderer, colors ColorGrid, w, h float64) {
	if len(colors) == 0 || len(colors[0]) == 0 {
		return
	}
	rows, cols := len(colors), len(colors[0])
	cw, ch := w/float64(cols), h/float64(rows)
	alpha := uint8(r.Opacity * 255)

	cellStyle := canvas.DefaultStyle
	cellStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

	for y, row := range colors {
		for x := 0; x < cols; {
			run := x + 1
			for run < cols && row[run] == row[x] {
				run++
			}
			c := row[x]
			c.A = alpha
			cellStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(c)}
			rect := canvas.Rectangle(float64(run-x)*cw, ch).
				Translate(float64(x)*cw, h-float64(y+1)*ch)
			renderer.RenderPath(rect, cellStyle, canvas.Identity)
			x = run
		}
	}
}

// renderColorbar stacks the colormap from min at the bottom to max at the top
func (r *VectorRenderer) renderColorbar(renderer canvasRenderer, x, h float64) {
	const steps = 64
	style := canvas.DefaultStyle
	style.Stroke = canvas.Paint{Color: canvas.Transparent}
	step := h / steps
	for i := 0; i < steps; i++ {
		style.Fill = canvas.Paint{Color: nrgbaToRGBA(r.Colormap(float64(i) / (steps - 1)))}
		renderer.RenderPath(canvas.Rectangle(r.BarWidth, step).Translate(x, float64(i)*step), style, canvas.Identity)
	}
}
