package domain

import (
	"fmt"
	"math"
)

// ABL profile constants (see package doc).
const (
	Kappa = 0.41
	CMu   = 0.09
)

// directionThreshold is the minimum flow component magnitude along an axis
// for one of its faces to count as clearly downwind. Below it the wind runs
// close enough to parallel that neither face can carry the analytic inflow
// profile.
const directionThreshold = 0.3

// seedClearance is how far above the tallest roof the mesh seed point sits.
const seedClearance = 5.0

// Face identifies one vertical boundary face of the axis-aligned domain.
type Face string

const (
	FaceXMin Face = "xMin"
	FaceXMax Face = "xMax"
	FaceYMin Face = "yMin"
	FaceYMax Face = "yMax"
)

// PatchType is the boundary condition family assigned to a face.
type PatchType string

const (
	// PatchInlet carries the fixed ABL inflow profile.
	PatchInlet PatchType = "inlet"
	// PatchOutlet is the permissive downwind outflow.
	PatchOutlet PatchType = "outlet"
	// PatchInletOutlet is the outlet-type condition for faces the flow runs
	// parallel to; it admits back-flow instead of forcing a false profile.
	PatchInletOutlet PatchType = "inletOutlet"
)

// SizerConfig holds every domain sizing option. Zero values are replaced by
// the documented defaults via Normalize.
type SizerConfig struct {
	InletFactor   float64 // upwind extension in building heights (default 3)
	OutletFactor  float64 // downwind extension (default 8)
	LateralFactor float64 // cross-flow extension (default 3)
	HeightFactor  float64 // domain top (default 5)

	CellSize      float64 // background mesh cell edge in metres (default 3)
	MaxCellsXY    int     // per-axis horizontal cell ceiling (default 150)
	MaxCellsZ     int     // vertical cell ceiling (default 50)
	RefinementMin int     // surface refinement level range (default 1..1)
	RefinementMax int

	MinHeight       float64 // floor for the tallest-building height H (default 10)
	Roughness       float64 // aerodynamic roughness length z0 (default 0.5, urban)
	ReferenceHeight float64 // meteorological reference height zRef (default 10)

	Iterations   int     // solver iteration budget (default 400)
	SampleHeight float64 // post-processing cut height (default 1.75, pedestrian)
}

// DefaultSizerConfig returns the interactive-use defaults.
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		InletFactor:     3,
		OutletFactor:    8,
		LateralFactor:   3,
		HeightFactor:    5,
		CellSize:        3,
		MaxCellsXY:      150,
		MaxCellsZ:       50,
		RefinementMin:   1,
		RefinementMax:   1,
		MinHeight:       10,
		Roughness:       0.5,
		ReferenceHeight: 10,
		Iterations:      400,
		SampleHeight:    1.75,
	}
}

// Normalize fills unset (zero or negative) options from the defaults.
func (c SizerConfig) Normalize() SizerConfig {
	d := DefaultSizerConfig()
	if c.InletFactor <= 0 {
		c.InletFactor = d.InletFactor
	}
	if c.OutletFactor <= 0 {
		c.OutletFactor = d.OutletFactor
	}
	if c.LateralFactor <= 0 {
		c.LateralFactor = d.LateralFactor
	}
	if c.HeightFactor <= 0 {
		c.HeightFactor = d.HeightFactor
	}
	if c.CellSize <= 0 {
		c.CellSize = d.CellSize
	}
	if c.MaxCellsXY <= 0 {
		c.MaxCellsXY = d.MaxCellsXY
	}
	if c.MaxCellsZ <= 0 {
		c.MaxCellsZ = d.MaxCellsZ
	}
	if c.RefinementMin <= 0 {
		c.RefinementMin = d.RefinementMin
	}
	if c.RefinementMax < c.RefinementMin {
		c.RefinementMax = c.RefinementMin
	}
	if c.MinHeight <= 0 {
		c.MinHeight = d.MinHeight
	}
	if c.Roughness <= 0 {
		c.Roughness = d.Roughness
	}
	if c.ReferenceHeight <= 0 {
		c.ReferenceHeight = d.ReferenceHeight
	}
	if c.Iterations <= 0 {
		c.Iterations = d.Iterations
	}
	if c.SampleHeight <= 0 {
		c.SampleHeight = d.SampleHeight
	}
	return c
}

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float64
}

// Vec3 is a 3D coordinate.
type Vec3 struct {
	X, Y, Z float64
}

// FlowVector converts a meteorological wind direction (degrees, 0 = north,
// clockwise, "wind from") into the unit vector air actually travels along.
func FlowVector(directionDeg float64) Vec2 {
	rad := directionDeg * math.Pi / 180
	x, y := -math.Sin(rad), -math.Cos(rad)
	// Avoid negative zero leaking into rendered case files.
	if x == 0 {
		x = 0
	}
	if y == 0 {
		y = 0
	}
	return Vec2{X: x, Y: y}
}

// DomainSpec is the computed simulation domain: extended bounds, grid
// resolution, seed point, and per-face boundary classification. Created
// once per calculation and immutable afterwards.
type DomainSpec struct {
	Bounds         BoundingBox
	BuildingBounds BoundingBox
	MaxHeight      float64 // tallest building H
	Height         float64 // domain top, heightFactor × H
	Flow           Vec2
	CellSize       float64
	NX, NY, NZ     int
	Seed           Vec3 // mesh-fill point, guaranteed in open air
	Patches        map[Face]PatchType
}

// InflowProfile holds the ABL-derived turbulence constants for the inlet.
type InflowProfile struct {
	FrictionVelocity       float64
	TurbulentKineticEnergy float64
	TurbulentDissipation   float64
}

// Inflow derives the inlet profile constants from the reference wind speed.
func Inflow(speed float64, cfg SizerConfig) InflowProfile {
	cfg = cfg.Normalize()
	ustar := speed * Kappa / math.Log((cfg.ReferenceHeight+cfg.Roughness)/cfg.Roughness)
	return InflowProfile{
		FrictionVelocity:       ustar,
		TurbulentKineticEnergy: ustar * ustar / math.Sqrt(CMu),
		TurbulentDissipation:   ustar * ustar * ustar / (Kappa * (cfg.ReferenceHeight + cfg.Roughness)),
	}
}

// SizeDomain computes the COST 732 domain around the building set for the
// given wind direction.
func SizeDomain(buildings []Building, directionDeg float64, cfg SizerConfig) (DomainSpec, error) {
	cfg = cfg.Normalize()

	bbox, err := BoundsOf(buildings)
	if err != nil {
		return DomainSpec{}, err
	}

	h := MaxHeight(buildings, cfg.MinHeight)
	flow := FlowVector(directionDeg)

	xMinMargin, xMaxMargin, xMinPatch, xMaxPatch := axisMargins(flow.X, h, cfg)
	yMinMargin, yMaxMargin, yMinPatch, yMaxPatch := axisMargins(flow.Y, h, cfg)

	bounds := BoundingBox{
		XMin: bbox.XMin - xMinMargin,
		XMax: bbox.XMax + xMaxMargin,
		YMin: bbox.YMin - yMinMargin,
		YMax: bbox.YMax + yMaxMargin,
	}
	height := cfg.HeightFactor * h

	spec := DomainSpec{
		Bounds:         bounds,
		BuildingBounds: bbox,
		MaxHeight:      h,
		Height:         height,
		Flow:           flow,
		CellSize:       cfg.CellSize,
		NX:             clampCells(bounds.Width()/cfg.CellSize, 20, cfg.MaxCellsXY),
		NY:             clampCells(bounds.Depth()/cfg.CellSize, 20, cfg.MaxCellsXY),
		NZ:             clampCells(height/cfg.CellSize, 15, cfg.MaxCellsZ),
		Patches: map[Face]PatchType{
			FaceXMin: xMinPatch,
			FaceXMax: xMaxPatch,
			FaceYMin: yMinPatch,
			FaceYMax: yMaxPatch,
		},
	}
	spec.Seed = seedPoint(buildings, bbox, bounds, h)
	return spec, nil
}

// axisMargins picks the extensions and face classification for one axis.
// A dominant positive flow component makes the max face downwind (outlet)
// and the min face upwind (inlet); near-parallel flow gets lateral margins
// and back-flow-tolerant faces on both sides.
func axisMargins(f, h float64, cfg SizerConfig) (minMargin, maxMargin float64, minPatch, maxPatch PatchType) {
	switch {
	case f > directionThreshold:
		return cfg.InletFactor * h, cfg.OutletFactor * h, PatchInlet, PatchOutlet
	case f < -directionThreshold:
		return cfg.OutletFactor * h, cfg.InletFactor * h, PatchOutlet, PatchInlet
	default:
		return cfg.LateralFactor * h, cfg.LateralFactor * h, PatchInletOutlet, PatchInletOutlet
	}
}

// clampCells converts an extent/cell ratio to a cell count within
// [floor, ceiling].
func clampCells(cells float64, floor, ceiling int) int {
	n := int(cells)
	if n < floor {
		n = floor
	}
	if n > ceiling {
		n = ceiling
	}
	return n
}

// seedPoint places the snappyHexMesh locationInMesh: the building-cluster
// center raised above the tallest roof. If that lands inside a footprint it
// is relocated 10% in from the extended domain's minimum corner, which the
// sizing margins guarantee is open air.
func seedPoint(buildings []Building, bbox, bounds BoundingBox, maxHeight float64) Vec3 {
	c := bbox.Center()
	seed := Vec3{X: c.X, Y: c.Y, Z: maxHeight + seedClearance}
	for _, b := range buildings {
		if b.Footprint.Contains(seed.X, seed.Y) {
			seed.X = bounds.XMin + bounds.Width()*0.1
			seed.Y = bounds.YMin + bounds.Depth()*0.1
			break
		}
	}
	return seed
}

// Describe returns a one-line summary for logging.
func (d DomainSpec) Describe() string {
	return fmt.Sprintf("X=[%.0f, %.0f] Y=[%.0f, %.0f] Z=[0, %.0f] grid %dx%dx%d",
		d.Bounds.XMin, d.Bounds.XMax, d.Bounds.YMin, d.Bounds.YMax, d.Height, d.NX, d.NY, d.NZ)
}
