package heatmap

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// edgeKey identifies a grid edge: the one from node (r,c) to (r,c+1), or to
// (r+1,c) when vertical. Neighbouring cells share the key of a common edge.
type edgeKey struct {
	r, c     int
	vertical bool
}

// TraceIsolines extracts contour lines of values (NumY x NumX on g) at each
// level using marching squares, stitches the cell segments into polylines and
// simplifies them with the given tolerance in pixels. Isolines come back in
// level order.
func TraceIsolines(values [][]float64, g *Grid, levels []float64, tolerance float64) []Isoline {
	if g == nil || g.NumX < 2 || g.NumY < 2 || len(values) != g.NumY {
		return nil
	}
	var out []Isoline
	for _, level := range levels {
		for _, ls := range traceLevel(values, g, level) {
			if tolerance > 0 {
				if s, ok := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone()).(orb.LineString); ok {
					ls = s
				}
			}
			if len(ls) < 2 {
				continue
			}
			path := make([]Point, len(ls))
			for i, p := range ls {
				path[i] = Point{X: p[0], Y: p[1]}
			}
			out = append(out, Isoline{Level: level, Path: path})
		}
	}
	return out
}

// traceLevel returns the stitched polylines for one level
func traceLevel(values [][]float64, g *Grid, level float64) []orb.LineString {
	crossings := make(map[edgeKey]orb.Point)
	var segments [][2]edgeKey

	cross := func(k edgeKey) edgeKey {
		if _, ok := crossings[k]; ok {
			return k
		}
		r2, c2 := k.r, k.c+1
		if k.vertical {
			r2, c2 = k.r+1, k.c
		}
		v1, v2 := values[k.r][k.c], values[r2][c2]
		t := 0.5
		if v1 != v2 {
			t = (level - v1) / (v2 - v1)
		}
		x1, y1 := g.Xs[k.c], g.Ys[k.r]
		x2, y2 := g.Xs[c2], g.Ys[r2]
		crossings[k] = orb.Point{x1 + t*(x2-x1), y1 + t*(y2-y1)}
		return k
	}

	for r := 0; r+1 < g.NumY; r++ {
		for c := 0; c+1 < g.NumX; c++ {
			tl, tr := values[r][c], values[r][c+1]
			bl, br := values[r+1][c], values[r+1][c+1]

			idx := 0
			if tl >= level {
				idx |= 8
			}
			if tr >= level {
				idx |= 4
			}
			if br >= level {
				idx |= 2
			}
			if bl >= level {
				idx |= 1
			}
			if idx == 0 || idx == 15 {
				continue
			}

			top := edgeKey{r, c, false}
			bottom := edgeKey{r + 1, c, false}
			left := edgeKey{r, c, true}
			right := edgeKey{r, c + 1, true}
			add := func(a, b edgeKey) {
				segments = append(segments, [2]edgeKey{cross(a), cross(b)})
			}

			centerAbove := (tl+tr+bl+br)/4 >= level
			switch idx {
			case 1, 14:
				add(left, bottom)
			case 2, 13:
				add(bottom, right)
			case 3, 12:
				add(left, right)
			case 4, 11:
				add(top, right)
			case 6, 9:
				add(top, bottom)
			case 7, 8:
				add(left, top)
			case 5:
				if centerAbove {
					add(left, top)
					add(bottom, right)
				} else {
					add(top, right)
					add(left, bottom)
				}
			case 10:
				if centerAbove {
					add(top, right)
					add(left, bottom)
				} else {
					add(left, top)
					add(bottom, right)
				}
			}
		}
	}

	return stitch(segments, crossings)
}

// stitch joins segments that share an edge crossing into polylines.
// Closed contours end on their starting point.
func stitch(segments [][2]edgeKey, crossings map[edgeKey]orb.Point) []orb.LineString {
	adj := make(map[edgeKey][]int, len(segments)*2)
	for i, s := range segments {
		adj[s[0]] = append(adj[s[0]], i)
		adj[s[1]] = append(adj[s[1]], i)
	}
	used := make([]bool, len(segments))

	extend := func(chain []edgeKey) []edgeKey {
		for {
			last := chain[len(chain)-1]
			next := -1
			for _, j := range adj[last] {
				if !used[j] {
					next = j
					break
				}
			}
			if next < 0 {
				return chain
			}
			used[next] = true
			other := segments[next][0]
			if other == last {
				other = segments[next][1]
			}
			chain = append(chain, other)
		}
	}

	var lines []orb.LineString
	for i, s := range segments {
		if used[i] {
			continue
		}
		used[i] = true
		chain := extend([]edgeKey{s[0], s[1]})
		for a, b := 0, len(chain)-1; a < b; a, b = a+1, b-1 {
			chain[a], chain[b] = chain[b], chain[a]
		}
		chain = extend(chain)

		ls := make(orb.LineString, len(chain))
		for j, k := range chain {
			ls[j] = crossings[k]
		}
		lines = append(lines, ls)
	}
	return lines
}
