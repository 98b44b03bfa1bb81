package heatmap

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// DefaultColormap is used when no colormap name is configured
const DefaultColormap = "RdYlBu_r"

// colormapTableSize is the number of entries in a banded colormap table
const colormapTableSize = 256

// Gradient is a continuous colormap interpolating evenly spaced stops in
// CIE L*a*b* space.
type Gradient []colorful.Color

// Map returns the gradient colour at f, clamping f to [0,1]
func (g Gradient) Map(f float64) color.NRGBA {
	if len(g) == 0 {
		return color.NRGBA{A: 255}
	}
	if math.IsNaN(f) || f <= 0 {
		return toNRGBA(g[0])
	}
	if f >= 1 {
		return toNRGBA(g[len(g)-1])
	}
	pos := f * float64(len(g)-1)
	i := int(pos)
	return toNRGBA(g[i].BlendLab(g[i+1], pos-float64(i)).Clamped())
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func hexGradient(hexes ...string) Gradient {
	g := make(Gradient, len(hexes))
	for i, h := range hexes {
		g[i] = colorful.MustParseHex(h)
	}
	return g
}

var gradients = map[string]Gradient{
	"RdYlBu": hexGradient("#a50026", "#d73027", "#f46d43", "#fdae61", "#fee090",
		"#ffffbf", "#e0f3f8", "#abd9e9", "#74add1", "#4575b4", "#313695"),
	"RdYlGn": hexGradient("#a50026", "#d73027", "#f46d43", "#fdae61", "#fee08b",
		"#ffffbf", "#d9ef8b", "#a6d96a", "#66bd63", "#1a9850", "#006837"),
	"viridis": hexGradient("#440154", "#482878", "#3e4989", "#31688e", "#26828e",
		"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"),
	"jet": hexGradient("#00007f", "#0000ff", "#007fff", "#00ffff", "#7fff7f",
		"#ffff00", "#ff7f00", "#ff0000", "#7f0000"),
	"Greys": hexGradient("#ffffff", "#000000"),
}

var colorMaps = map[string]func() palette.ColorMap{
	"coolwarm":             moreland.SmoothBlueRed,
	"smooth_blue_red":      moreland.SmoothBlueRed,
	"smooth_blue_tan":      moreland.SmoothBlueTan,
	"smooth_green_purple":  moreland.SmoothGreenPurple,
	"smooth_green_red":     moreland.SmoothGreenRed,
	"smooth_purple_orange": moreland.SmoothPurpleOrange,
	"kindlmann":            moreland.Kindlmann,
	"extended_kindlmann":   moreland.ExtendedKindlmann,
	"blackbody":            moreland.BlackBody,
	"extended_blackbody":   moreland.ExtendedBlackBody,
}

// ColormapNames lists every name LookupColormap accepts, without "_r" or "//N" forms
func ColormapNames() []string {
	names := make([]string, 0, len(gradients)+len(colorMaps)+1)
	for n := range gradients {
		names = append(names, n)
	}
	for n := range colorMaps {
		names = append(names, n)
	}
	names = append(names, "heat")
	sort.Strings(names)
	return names
}

// LookupColormap resolves a colormap by name. A "_r" suffix reverses it and a
// "name//N" form paints N evenly spaced black bands into a 256-entry table.
func LookupColormap(name string) (Colormap, error) {
	if name == "" {
		name = DefaultColormap
	}

	base, stepsStr, banded := strings.Cut(name, "//")
	cmap, err := lookupBase(base)
	if err != nil {
		return nil, err
	}
	if !banded {
		return cmap, nil
	}

	steps, err := strconv.Atoi(stepsStr)
	if err != nil {
		return nil, fmt.Errorf("colormap %q: invalid band count: %w", name, err)
	}
	return bandedColormap(cmap, steps), nil
}

func lookupBase(name string) (Colormap, error) {
	reversed := false
	if strings.HasSuffix(name, "_r") {
		name = strings.TrimSuffix(name, "_r")
		reversed = true
	}

	var cmap Colormap
	if g, ok := gradients[name]; ok {
		cmap = g.Map
	} else if mk, ok := colorMaps[name]; ok {
		cmap = FromColorMap(mk())
	} else if name == "heat" {
		cmap = FromPalette(palette.Heat(colormapTableSize, 1))
	} else {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}

	if reversed {
		fwd := cmap
		cmap = func(f float64) color.NRGBA { return fwd(1 - f) }
	}
	return cmap, nil
}

// FromColorMap adapts a gonum continuous colour map to a Colormap over [0,1]
func FromColorMap(cm palette.ColorMap) Colormap {
	cm.SetMin(0)
	cm.SetMax(1)
	return func(f float64) color.NRGBA {
		if math.IsNaN(f) {
			f = 0
		}
		f = math.Max(0, math.Min(1, f))
		c, err := cm.At(f)
		if err != nil {
			return color.NRGBA{A: 255}
		}
		return color.NRGBAModel.Convert(c).(color.NRGBA)
	}
}

// FromPalette adapts a discrete gonum palette to a Colormap over [0,1]
func FromPalette(p palette.Palette) Colormap {
	colors := p.Colors()
	table := make([]color.NRGBA, len(colors))
	for i, c := range colors {
		table[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	return tableColormap(table)
}

// tableColormap looks values up in a table the way a listed colormap does:
// index = floor(f*N), clamped to the last entry.
func tableColormap(table []color.NRGBA) Colormap {
	return func(f float64) color.NRGBA {
		if len(table) == 0 {
			return color.NRGBA{A: 255}
		}
		if math.IsNaN(f) || f < 0 {
			f = 0
		}
		i := int(f * float64(len(table)))
		if i >= len(table) {
			i = len(table) - 1
		}
		return table[i]
	}
}

// bandedColormap samples cmap into a 256-entry table and blackens every
// (256/steps)-th entry. Non-positive step counts leave the table unbanded.
func bandedColormap(cmap Colormap, steps int) Colormap {
	table := make([]color.NRGBA, colormapTableSize)
	for i := range table {
		table[i] = cmap(float64(i) / float64(colormapTableSize-1))
	}
	if steps > 0 {
		interval := colormapTableSize / steps
		if interval < 1 {
			interval = 1
		}
		for i := 0; i < colormapTableSize; i += interval {
			table[i] = color.NRGBA{A: 255}
		}
	}
	return tableColormap(table)
}
