// Package vtk parses the legacy ASCII VTK files produced by the OpenFOAM
// cut-plane sampler.
//
// Only the sections the sampler emits are understood: a POINTS block with a
// flat stream of coordinate triples, and a velocity block that appears
// either as "VECTORS U" or inside a generic "FIELD" attribute named U.
// Point i and velocity i are positionally paired; the writer guarantees
// matching order.
package vtk

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
)

// SamplePoint is one scattered sample at the cut height. Speed includes the
// vertical velocity component even though the cut is rendered in 2D.
type SamplePoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
}

// ParseFile reads and parses a cut-plane export from disk.
func ParseFile(path string) ([]SamplePoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read cut-plane export: %v", domain.ErrExtraction, err)
	}
	return Parse(string(raw))
}

// Parse extracts positionally paired point/velocity samples from legacy
// ASCII VTK content. Zero parsed pairs is an extraction failure.
func Parse(content string) ([]SamplePoint, error) {
	lines := strings.Split(content, "\n")

	var coords, velocities []float64
	nPoints := 0

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		switch {
		case strings.HasPrefix(line, "POINTS"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				continue
			}
			nPoints = n
			coords, i = readFloats(lines, i+1, n*3)
		case strings.HasPrefix(line, "VECTORS") && strings.Contains(line, "U"):
			velocities, i = readFloats(lines, i+1, nPoints*3)
		case strings.HasPrefix(line, "FIELD"):
			// FIELD FieldData <n> is followed by per-array headers of the
			// form "<name> <components> <tuples> <type>".
			if i+1 >= len(lines) {
				continue
			}
			header := strings.Fields(strings.TrimSpace(lines[i+1]))
			if len(header) >= 3 && header[0] == "U" {
				n, err := strconv.Atoi(header[2])
				if err != nil || n <= 0 {
					continue
				}
				velocities, i = readFloats(lines, i+2, n*3)
			}
		}
	}

	pairs := len(coords) / 3
	if len(velocities)/3 < pairs {
		pairs = len(velocities) / 3
	}

	points := make([]SamplePoint, 0, pairs)
	for i := 0; i < pairs; i++ {
		vx, vy, vz := velocities[i*3], velocities[i*3+1], velocities[i*3+2]
		points = append(points, SamplePoint{
			X:     coords[i*3],
			Y:     coords[i*3+1],
			Speed: math.Sqrt(vx*vx + vy*vy + vz*vz),
			VX:    vx,
			VY:    vy,
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points in cut-plane export", domain.ErrExtraction)
	}
	return points, nil
}

// readFloats consumes whitespace-separated floats starting at line index
// start until want values are collected or input runs out. Non-numeric
// tokens are skipped, matching the tolerance of the historical parser.
// It returns the values and the index of the last consumed line.
func readFloats(lines []string, start, want int) ([]float64, int) {
	values := make([]float64, 0, want)
	i := start
	for ; i < len(lines) && len(values) < want; i++ {
		for _, tok := range strings.Fields(lines[i]) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				continue
			}
			values = append(values, v)
		}
	}
	return values, i - 1
}
