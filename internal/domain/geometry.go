package domain

import "fmt"

// Point is a 2D coordinate in the local metric system.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is an ordered ring of vertices. It is treated as implicitly
// closed: a duplicated first/last vertex is tolerated but not required.
type Polygon []Point

// Closed returns the ring with the first vertex appended when the input
// does not already end where it starts.
func (p Polygon) Closed() Polygon {
	if len(p) == 0 {
		return p
	}
	if p[0] == p[len(p)-1] {
		return p
	}
	out := make(Polygon, len(p)+1)
	copy(out, p)
	out[len(p)] = p[0]
	return out
}

// Open returns the ring without a duplicated closing vertex.
func (p Polygon) Open() Polygon {
	if len(p) >= 2 && p[0] == p[len(p)-1] {
		return p[:len(p)-1]
	}
	return p
}

// Contains reports whether the point lies inside the ring, by ray casting.
func (p Polygon) Contains(px, py float64) bool {
	ring := p.Open()
	n := len(ring)
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i].X, ring[i].Y
		xj, yj := ring[j].X, ring[j].Y
		if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Centroid returns the vertex average of the ring (closing vertex excluded).
func (p Polygon) Centroid() Point {
	ring := p.Open()
	if len(ring) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, v := range ring {
		sx += v.X
		sy += v.Y
	}
	n := float64(len(ring))
	return Point{X: sx / n, Y: sy / n}
}

// SignedArea returns the shoelace area of the ring: positive for
// counter-clockwise winding, negative for clockwise.
func (p Polygon) SignedArea() float64 {
	ring := p.Closed()
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return sum / 2
}

// BoundingBox is an axis-aligned 2D extent.
type BoundingBox struct {
	XMin, XMax float64
	YMin, YMax float64
}

func (b BoundingBox) Width() float64  { return b.XMax - b.XMin }
func (b BoundingBox) Depth() float64  { return b.YMax - b.YMin }
func (b BoundingBox) Center() Point   { return Point{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2} }

// BoundsOf computes the union bounding box of all building footprints.
// An empty set has no coordinates to size a domain from and fails with
// ErrValidation.
func BoundsOf(buildings []Building) (BoundingBox, error) {
	first := true
	var b BoundingBox
	for _, bld := range buildings {
		for _, v := range bld.Footprint {
			if first {
				b = BoundingBox{XMin: v.X, XMax: v.X, YMin: v.Y, YMax: v.Y}
				first = false
				continue
			}
			if v.X < b.XMin {
				b.XMin = v.X
			}
			if v.X > b.XMax {
				b.XMax = v.X
			}
			if v.Y < b.YMin {
				b.YMin = v.Y
			}
			if v.Y > b.YMax {
				b.YMax = v.Y
			}
		}
	}
	if first {
		return BoundingBox{}, fmt.Errorf("%w: no building geometry", ErrValidation)
	}
	if b.XMin >= b.XMax || b.YMin >= b.YMax {
		return BoundingBox{}, fmt.Errorf("%w: degenerate building extent", ErrValidation)
	}
	return b, nil
}
