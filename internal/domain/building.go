package domain

// Building is a single extruded obstacle: a footprint polygon and a roof
// height in metres. Immutable once parsed.
type Building struct {
	Footprint Polygon
	Height    float64
}

// DefaultBuildingHeight is assumed when a feature carries no usable height
// property (three storeys).
const DefaultBuildingHeight = 9.0

// FeatureCollection mirrors the GeoJSON-like payload posted by the client:
// polygon features, each with a height property.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one building candidate.
type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   FeatureGeometry   `json:"geometry"`
}

// FeatureProperties carries the extrusion height.
type FeatureProperties struct {
	Height float64 `json:"height"`
}

// FeatureGeometry is the polygon outline. Only the exterior ring
// (Coordinates[0]) is used; holes in footprints are not supported by the
// downstream mesh generator.
type FeatureGeometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// ParseBuildings normalizes a feature collection into typed buildings.
// Non-polygon features and rings with fewer than three vertices are
// skipped; missing or non-positive heights fall back to
// DefaultBuildingHeight.
func ParseBuildings(fc FeatureCollection) []Building {
	var out []Building
	for _, f := range fc.Features {
		if f.Geometry.Type != "Polygon" || len(f.Geometry.Coordinates) == 0 {
			continue
		}
		ring := f.Geometry.Coordinates[0]
		if len(ring) < 3 {
			continue
		}
		poly := make(Polygon, 0, len(ring))
		for _, c := range ring {
			if len(c) < 2 {
				continue
			}
			poly = append(poly, Point{X: c[0], Y: c[1]})
		}
		if len(poly) < 3 {
			continue
		}
		height := f.Properties.Height
		if height <= 0 {
			height = DefaultBuildingHeight
		}
		out = append(out, Building{Footprint: poly, Height: height})
	}
	return out
}

// MaxHeight returns the tallest building height, never below floor.
func MaxHeight(buildings []Building, floor float64) float64 {
	h := floor
	for _, b := range buildings {
		if b.Height > h {
			h = b.Height
		}
	}
	return h
}
