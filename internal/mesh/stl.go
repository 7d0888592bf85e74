// Package mesh extrudes building footprints into watertight triangulated
// solids and serializes them as ASCII STL for the volumetric mesh generator.
package mesh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
)

// degenerateEdge is the minimum footprint edge length; shorter edges are
// skipped because they produce zero-area wall triangles.
const degenerateEdge = 1e-3

// Vertex is one corner of a triangle.
type Vertex struct {
	X, Y, Z float64
}

// Triangle is a facet with an explicit normal, STL-style.
type Triangle struct {
	Normal  Vertex
	A, B, C Vertex
}

// Solid is an ordered triangle soup forming one or more closed volumes.
type Solid struct {
	Name      string
	Triangles []Triangle
}

// BuildSolid extrudes every building into a closed solid: two wall
// triangles per footprint edge, a roof fan at full height (+Z normal) and
// a floor fan at ground level with reversed winding (-Z normal). The floor
// cap is what makes the volume watertight; without it the mesh generator
// treats the building as an open shell and floods its interior.
func BuildSolid(buildings []domain.Building) Solid {
	s := Solid{Name: "buildings"}
	for _, b := range buildings {
		s.Triangles = append(s.Triangles, extrude(b)...)
	}
	return s
}

func extrude(b domain.Building) []Triangle {
	ring := b.Footprint.Closed()
	if len(ring) < 4 { // triangle + closing vertex
		return nil
	}
	h := b.Height

	// Outward wall normals depend on winding: for a counter-clockwise ring
	// the right-hand perpendicular (dy, -dx) points away from the interior.
	outwardSign := 1.0
	if b.Footprint.SignedArea() < 0 {
		outwardSign = -1.0
	}

	var tris []Triangle
	for i := 0; i < len(ring)-1; i++ {
		p0, p1 := ring[i], ring[i+1]
		dx, dy := p1.X-p0.X, p1.Y-p0.Y
		length := math.Hypot(dx, dy)
		if length < degenerateEdge {
			continue
		}
		n := Vertex{X: outwardSign * dy / length, Y: outwardSign * -dx / length}

		base0 := Vertex{X: p0.X, Y: p0.Y}
		base1 := Vertex{X: p1.X, Y: p1.Y}
		top0 := Vertex{X: p0.X, Y: p0.Y, Z: h}
		top1 := Vertex{X: p1.X, Y: p1.Y, Z: h}

		tris = append(tris,
			Triangle{Normal: n, A: base0, B: base1, C: top1},
			Triangle{Normal: n, A: base0, B: top1, C: top0},
		)
	}

	c := b.Footprint.Centroid()
	up := Vertex{Z: 1}
	down := Vertex{Z: -1}
	for i := 0; i < len(ring)-1; i++ {
		p0, p1 := ring[i], ring[i+1]
		// Cap winding follows the ring winding: traverse a clockwise ring
		// backwards so the roof fan winds +Z and the floor fan -Z.
		if outwardSign < 0 {
			p0, p1 = p1, p0
		}
		tris = append(tris,
			Triangle{
				Normal: up,
				A:      Vertex{X: c.X, Y: c.Y, Z: h},
				B:      Vertex{X: p0.X, Y: p0.Y, Z: h},
				C:      Vertex{X: p1.X, Y: p1.Y, Z: h},
			},
			Triangle{
				Normal: down,
				A:      Vertex{X: c.X, Y: c.Y},
				B:      Vertex{X: p1.X, Y: p1.Y},
				C:      Vertex{X: p0.X, Y: p0.Y},
			},
		)
	}
	return tris
}

// WriteASCII serializes the solid in ASCII STL.
func (s Solid) WriteASCII(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", s.Name)
	for _, t := range s.Triangles {
		fmt.Fprintf(bw, "  facet normal %g %g %g\n", t.Normal.X, t.Normal.Y, t.Normal.Z)
		fmt.Fprintf(bw, "    outer loop\n")
		for _, v := range []Vertex{t.A, t.B, t.C} {
			fmt.Fprintf(bw, "      vertex %g %g %g\n", v.X, v.Y, v.Z)
		}
		fmt.Fprintf(bw, "    endloop\n")
		fmt.Fprintf(bw, "  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", s.Name)
	return bw.Flush()
}

// WriteFile writes the solid to path, creating or truncating it.
func (s Solid) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write stl: %w", err)
	}
	if err := s.WriteASCII(f); err != nil {
		f.Close()
		return fmt.Errorf("write stl: %w", err)
	}
	return f.Close()
}
