// Command validate performs integrity checks on a generated case directory:
// required dictionaries and initial fields, manifest consistency, the
// building surface, solver output, and the cut-plane export. It is the tool
// to reach for when a run produced a grid that looks wrong, before blaming
// the solver.
//
// Usage:
//
//	go run ./cmd/validate -case ~/cfd/case_20240426_153000_270deg
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/vtk"
)

// requiredFiles is the minimal tree a runnable case must have.
var requiredFiles = []string{
	"system/blockMeshDict",
	"system/snappyHexMeshDict",
	"system/controlDict",
	"system/fvSchemes",
	"system/fvSolution",
	"0/U",
	"0/p",
	"0/k",
	"0/epsilon",
	"0/nut",
	"constant/transportProperties",
	"constant/turbulenceProperties",
	"constant/triSurface/buildings.stl",
}

var directionSuffixRe = regexp.MustCompile(`_(\d+)deg$`)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	caseDir := flag.String("case", "", "case directory to validate")
	flag.Parse()

	if *caseDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	phases := []*phase{
		checkTree(*caseDir),
		checkManifest(*caseDir),
		checkSurface(*caseDir),
		checkSolution(*caseDir),
		checkExport(*caseDir),
	}

	failed := false
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed = true
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func checkTree(dir string) *phase {
	p := &phase{name: "case tree"}
	for _, f := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			p.errorf("missing %s", f)
		}
	}
	return p
}

func checkManifest(dir string) *phase {
	p := &phase{name: "manifest"}
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		p.errorf("manifest.json unreadable: %v", err)
		return p
	}
	var m struct {
		Direction  int     `json:"direction"`
		WindSpeed  float64 `json:"wind_speed"`
		Iterations int     `json:"iterations"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		p.errorf("manifest.json invalid: %v", err)
		return p
	}
	if m.WindSpeed <= 0 {
		p.errorf("wind_speed %g not positive", m.WindSpeed)
	}
	if m.Iterations <= 0 {
		p.errorf("iterations %d not positive", m.Iterations)
	}
	if match := directionSuffixRe.FindStringSubmatch(filepath.Base(dir)); match != nil {
		if d, _ := strconv.Atoi(match[1]); d != m.Direction {
			p.errorf("directory says %ddeg, manifest says %d", d, m.Direction)
		}
	}
	return p
}

// checkSurface scans the ASCII STL: solid/endsolid framing, facet count,
// and the watertight-extrusion invariant that triangles come in groups of
// four per footprint edge.
func checkSurface(dir string) *phase {
	p := &phase{name: "building surface"}
	f, err := os.Open(filepath.Join(dir, "constant", "triSurface", "buildings.stl"))
	if err != nil {
		p.errorf("buildings.stl unreadable: %v", err)
		return p
	}
	defer f.Close()

	facets := 0
	opened, closed := false, false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "solid "):
			opened = true
		case strings.HasPrefix(line, "endsolid"):
			closed = true
		case strings.HasPrefix(line, "facet normal"):
			facets++
		}
	}
	if err := sc.Err(); err != nil {
		p.errorf("scan failed: %v", err)
		return p
	}
	if !opened || !closed {
		p.errorf("missing solid/endsolid framing")
	}
	if facets == 0 {
		p.errorf("no facets")
	} else if facets%4 != 0 {
		p.errorf("%d facets, not a multiple of 4: surface is not a clean extrusion", facets)
	}
	return p
}

func checkSolution(dir string) *phase {
	p := &phase{name: "solver output"}
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.errorf("read case directory: %v", err)
		return p
	}
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		if v, err := strconv.ParseFloat(ent.Name(), 64); err == nil && v > 0 {
			return p
		}
	}
	p.errorf("no output time directories: the solver never wrote results")
	return p
}

// checkExport parses whatever cut-plane exports exist. A case without an
// export is fine (never extracted); a present export must parse.
func checkExport(dir string) *phase {
	p := &phase{name: "cut-plane export"}
	matches, _ := filepath.Glob(filepath.Join(dir, "postProcessing", "sampleDict", "*", "zSlice.vtk"))
	for _, m := range matches {
		points, err := vtk.ParseFile(m)
		if err != nil {
			p.errorf("%s: %v", m, err)
			continue
		}
		fmt.Printf("      %s: %d points\n", m, len(points))
	}
	return p
}
