// Package result turns the solver's scattered cut-plane output into a
// uniform visualization grid with summary statistics.
package result

import (
	"math"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/vtk"
)

const (
	// bucketFactor sizes the spatial-hash buckets relative to the grid
	// spacing; 0.6 keeps the nearest sample within the 3x3 neighborhood of
	// a node's own bucket for the acceptance radius below.
	bucketFactor = 0.6

	// acceptFactor bounds how far (in spacings) the nearest sample may be
	// before a node is reported as a hole instead of extrapolated. Holes
	// near sparse regions are preferred over invented values.
	acceptFactor = 1.5

	// trimFraction is cut off each side of the raw scatter extent when no
	// building context is available; the outermost rows carry
	// boundary-condition artifacts.
	trimFraction = 0.10

	// buildingWindowMargin is the margin around the building bounding box,
	// in tallest-building heights, used when a manifest provides context.
	buildingWindowMargin = 2.0

	defaultSpacing = 5.0
	maxNodes       = 200
	minNodes       = 10
)

// Window is the 2D bounding region the grid covers.
type Window struct {
	XMin, XMax float64
	YMin, YMax float64
}

// BuildingWindow centers the grid on the building cluster with a fixed
// multiple-of-height margin. Preferred over the scatter fallback because it
// frames the area of interest regardless of domain elongation.
func BuildingWindow(bbox domain.BoundingBox, maxHeight float64) Window {
	m := buildingWindowMargin * maxHeight
	return Window{
		XMin: bbox.XMin - m,
		XMax: bbox.XMax + m,
		YMin: bbox.YMin - m,
		YMax: bbox.YMax + m,
	}
}

// scatterWindow trims a percentage margin off the raw scattered extent,
// discarding the edge rows known to carry boundary artifacts.
func scatterWindow(points []vtk.SamplePoint) Window {
	w := Window{
		XMin: math.Inf(1), XMax: math.Inf(-1),
		YMin: math.Inf(1), YMax: math.Inf(-1),
	}
	for _, p := range points {
		w.XMin = math.Min(w.XMin, p.X)
		w.XMax = math.Max(w.XMax, p.X)
		w.YMin = math.Min(w.YMin, p.Y)
		w.YMax = math.Max(w.YMax, p.Y)
	}
	mx := (w.XMax - w.XMin) * trimFraction
	my := (w.YMax - w.YMin) * trimFraction
	return Window{XMin: w.XMin + mx, XMax: w.XMax - mx, YMin: w.YMin + my, YMax: w.YMax - my}
}

// Grid is the uniform resampled field. Values[iy][ix] is the speed at
// node (origin + ix·spacing, origin + iy·spacing); VX/VY carry the
// horizontal velocity components for vector overlays. Holes are zero.
type Grid struct {
	NX      int         `json:"nx"`
	NY      int         `json:"ny"`
	Spacing float64     `json:"spacing"`
	Origin  [2]float64  `json:"origin"`
	Values  [][]float64 `json:"values"`
	VX      [][]float64 `json:"vx"`
	VY      [][]float64 `json:"vy"`
}

// Stats summarizes the resampled grid, not the raw scatter, so the numbers
// match what is actually displayed. Points counts grid nodes that accepted
// a sample.
type Stats struct {
	MinSpeed float64 `json:"min_speed"`
	MaxSpeed float64 `json:"max_speed"`
	Points   int     `json:"points"`
}

// Resample buckets the scattered samples into a uniform spatial hash and
// assigns every grid node the nearest sample within acceptFactor spacings,
// or zero when none is close enough. Lookup cost per node is bounded by the
// 3x3 bucket neighborhood, independent of the total sample count.
func Resample(points []vtk.SamplePoint, window *Window, spacing float64) (Grid, Stats) {
	if spacing <= 0 {
		spacing = defaultSpacing
	}
	var w Window
	if window != nil {
		w = *window
	} else {
		w = scatterWindow(points)
	}

	nx := int((w.XMax-w.XMin)/spacing) + 1
	if nx < minNodes {
		nx = minNodes
	}
	if nx > maxNodes {
		nx = maxNodes
		spacing = (w.XMax - w.XMin) / float64(nx-1)
	}
	ny := int((w.YMax-w.YMin)/spacing) + 1
	if ny < minNodes {
		ny = minNodes
	}
	if ny > maxNodes {
		ny = maxNodes
	}

	bucketSize := spacing * bucketFactor
	type key struct{ cx, cy int }
	buckets := make(map[key][]int, len(points))
	for i, p := range points {
		k := key{cx: int(math.Floor(p.X / bucketSize)), cy: int(math.Floor(p.Y / bucketSize))}
		buckets[k] = append(buckets[k], i)
	}

	acceptSq := (spacing * acceptFactor) * (spacing * acceptFactor)

	grid := Grid{
		NX:      nx,
		NY:      ny,
		Spacing: spacing,
		Origin:  [2]float64{w.XMin, w.YMin},
		Values:  make([][]float64, ny),
		VX:      make([][]float64, ny),
		VY:      make([][]float64, ny),
	}
	stats := Stats{MinSpeed: math.Inf(1), MaxSpeed: math.Inf(-1)}

	for iy := 0; iy < ny; iy++ {
		y := w.YMin + float64(iy)*spacing
		row := make([]float64, nx)
		vxRow := make([]float64, nx)
		vyRow := make([]float64, nx)

		for ix := 0; ix < nx; ix++ {
			x := w.XMin + float64(ix)*spacing
			cx := int(math.Floor(x / bucketSize))
			cy := int(math.Floor(y / bucketSize))

			best := -1
			bestSq := math.Inf(1)
			for dcx := -1; dcx <= 1; dcx++ {
				for dcy := -1; dcy <= 1; dcy++ {
					for _, idx := range buckets[key{cx: cx + dcx, cy: cy + dcy}] {
						p := points[idx]
						dx, dy := p.X-x, p.Y-y
						d := dx*dx + dy*dy
						if d < bestSq {
							bestSq = d
							best = idx
						}
					}
				}
			}

			if best >= 0 && bestSq < acceptSq {
				p := points[best]
				row[ix] = p.Speed
				vxRow[ix] = p.VX
				vyRow[ix] = p.VY
				stats.Points++
				stats.MinSpeed = math.Min(stats.MinSpeed, p.Speed)
				stats.MaxSpeed = math.Max(stats.MaxSpeed, p.Speed)
			}
		}
		grid.Values[iy] = row
		grid.VX[iy] = vxRow
		grid.VY[iy] = vyRow
	}

	if stats.Points == 0 {
		stats.MinSpeed, stats.MaxSpeed = 0, 0
	}
	return grid, stats
}
