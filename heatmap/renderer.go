package heatmap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	titleHeight    = 20
	colorbarPanel  = 80
	colorbarWidth  = 18
	labelOffset    = 13
	defaultOpacity = 0.4
)

var (
	contourColor = color.NRGBA{0, 0, 0, 77} // black at 0.3
	textColor    = color.RGBA{0, 0, 0, 255}
)

// RasterRenderer draws a classified metric over its floor plan as a bitmap:
// title band on top, heatmap with contours and points, colour bar on the right.
type RasterRenderer struct {
	Background  image.Image // nil renders on white
	Colormap    Colormap
	Opacity     float64 // Overlay alpha in [0,1]
	PointRadius int
}

// NewRasterRenderer creates a renderer with default settings
func NewRasterRenderer(background image.Image, cmap Colormap) *RasterRenderer {
	if cmap == nil {
		cmap, _ = LookupColormap(DefaultColormap)
	}
	return &RasterRenderer{
		Background:  background,
		Colormap:    cmap,
		Opacity:     defaultOpacity,
		PointRadius: 5,
	}
}

// Render creates the heatmap image for one metric of res
func (r *RasterRenderer) Render(res *Result, mr *MetricResult) (*image.RGBA, error) {
	if !mr.OK() {
		return nil, fmt.Errorf("render %s: metric was skipped: %s", mr.Metric, mr.Skip)
	}
	w, h := res.Width, res.Height
	img := image.NewRGBA(image.Rect(0, 0, w+colorbarPanel, h+titleHeight))
	xdraw.Draw(img, img.Bounds(), image.White, image.Point{}, xdraw.Src)

	plot := image.Rect(0, titleHeight, w, h+titleHeight)
	if r.Background != nil {
		xdraw.CatmullRom.Scale(img, plot, r.Background, r.Background.Bounds(), xdraw.Src, nil)
	}

	r.drawOverlay(img, plot, mr.Colors)

	toImage := func(p Point) (int, int) {
		return int(math.Round(p.X)), int(math.Round(p.Y)) + titleHeight
	}

	for _, iso := range mr.Isolines {
		for i := 1; i < len(iso.Path); i++ {
			x0, y0 := toImage(iso.Path[i-1])
			x1, y1 := toImage(iso.Path[i])
			drawLine(img, x0, y0, x1, y1, contourColor)
		}
	}

	for _, p := range mr.Points {
		x, y := toImage(p.Position)
		drawCircle(img, x, y, r.PointRadius+1, textColor)
		drawCircle(img, x, y, r.PointRadius, nrgbaToRGBA(p.Color))
		label := p.Label
		if label == "" {
			label = fmt.Sprintf("%.1f", p.Value)
		}
		drawText(img, x-len(label)*7/2, y-labelOffset, label, textColor)
	}

	drawText(img, 5, 14, fmt.Sprintf("%s (%s)", mr.Metric.Title(), mr.Metric.Unit()), textColor)
	r.drawColorbar(img, image.Rect(w+15, titleHeight, w+15+colorbarWidth, h+titleHeight), mr.Field.Range)

	return img, nil
}

// drawOverlay scales the colour grid onto the plot area at the renderer opacity
func (r *RasterRenderer) drawOverlay(img *image.RGBA, plot image.Rectangle, colors ColorGrid) {
	if len(colors) == 0 || len(colors[0]) == 0 {
		return
	}
	alpha := uint8(math.Round(math.Max(0, math.Min(1, r.Opacity)) * 255))
	overlay := image.NewNRGBA(image.Rect(0, 0, len(colors[0]), len(colors)))
	for y, row := range colors {
		for x, c := range row {
			c.A = alpha
			overlay.SetNRGBA(x, y, c)
		}
	}
	xdraw.BiLinear.Scale(img, plot, overlay, overlay.Bounds(), xdraw.Over, nil)
}

// drawColorbar paints the colormap bottom (min) to top (max) with tick labels.
// A degenerate range gets a single tick in the middle.
func (r *RasterRenderer) drawColorbar(img *image.RGBA, bar image.Rectangle, rng ThresholdRange) {
	n := bar.Dy()
	for y := 0; y < n; y++ {
		f := 1.0
		if n > 1 {
			f = 1 - float64(y)/float64(n-1)
		}
		c := nrgbaToRGBA(r.Colormap(f))
		for x := bar.Min.X; x < bar.Max.X; x++ {
			img.SetRGBA(x, bar.Min.Y+y, c)
		}
	}

	tx := bar.Max.X + 4
	if rng.Degenerate() {
		drawText(img, tx, bar.Min.Y+n/2+4, formatTick(rng.Min), textColor)
		return
	}
	drawText(img, tx, bar.Min.Y+10, formatTick(rng.Max), textColor)
	drawText(img, tx, bar.Max.Y, formatTick(rng.Min), textColor)
}

func formatTick(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

// RenderToPNG writes the heatmap for mr as a PNG
func (r *RasterRenderer) RenderToPNG(w io.Writer, res *Result, mr *MetricResult) error {
	img, err := r.Render(res, mr)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePNG saves the heatmap for mr to a file
func (r *RasterRenderer) SavePNG(path string, res *Result, mr *MetricResult) error {
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

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// blendColors alpha-blends fg over an opaque bg
func blendColors(bg color.RGBA, fg color.NRGBA) color.RGBA {
	alpha := float64(fg.A) / 255.0
	invAlpha := 1.0 - alpha
	return color.RGBA{
		R: uint8(float64(fg.R)*alpha + float64(bg.R)*invAlpha),
		G: uint8(float64(fg.G)*alpha + float64(bg.G)*invAlpha),
		B: uint8(float64(fg.B)*alpha + float64(bg.B)*invAlpha),
		A: 255,
	}
}

// drawLine blends a one pixel line from (x0,y0) to (x1,y1) using Bresenham
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	b := img.Bounds()
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(b) {
			img.SetRGBA(x0, y0, blendColors(img.RGBAAt(x0, y0), c))
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

// drawText renders text onto an image with its baseline at (x, y)
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
