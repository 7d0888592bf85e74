package result

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/foam"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/vtk"
)

// cutSurface is the sampled surface name inside the postProcessing tree;
// it matches the surfaces entry written by foam.WriteSampleDict.
const cutSurface = "zSlice"

// Executor runs one external toolchain step inside a case directory,
// capturing its output in logName.
type Executor interface {
	Run(ctx context.Context, dir, logName, name string, args ...string) error
}

// Result is the full extraction product for one wind direction: the
// resampled grid plus the request context needed to reproduce it.
type Result struct {
	WindDirection int     `json:"wind_direction"`
	WindSpeed     float64 `json:"wind_speed"`
	SampleHeight  float64 `json:"sample_height"`
	Grid          Grid    `json:"grid"`
	Stats         Stats   `json:"stats"`
}

// Extractor drives the external cut-plane sampler and converts its output
// into a Result.
type Extractor struct {
	exec    Executor
	spacing float64
	logger  *slog.Logger
}

// NewExtractor creates an Extractor. spacing <= 0 selects the default grid
// spacing.
func NewExtractor(exec Executor, spacing float64, logger *slog.Logger) *Extractor {
	return &Extractor{exec: exec, spacing: spacing, logger: logger}
}

// Request identifies what to extract from a case directory.
type Request struct {
	CaseDir   string
	Direction int
	Speed     float64
	Height    float64
	Window    *Window // nil falls back to the trimmed scatter extent
}

// Extract materializes a cut-plane export at the requested height and
// resamples it onto a uniform grid. The sampler re-runs on every call so a
// resample at a new height always reflects the stored solution.
func (e *Extractor) Extract(ctx context.Context, req Request) (Result, error) {
	lastTime, err := latestTimeDir(req.CaseDir)
	if err != nil {
		return Result{}, err
	}
	e.logger.Info("extracting cut plane",
		"case", filepath.Base(req.CaseDir), "time", lastTime, "height", req.Height)

	if err := foam.WriteSampleDict(req.CaseDir, req.Height); err != nil {
		return Result{}, err
	}

	// Stale exports from an earlier height would win the glob below.
	ppDir := filepath.Join(req.CaseDir, "postProcessing", "sampleDict")
	if err := os.RemoveAll(ppDir); err != nil {
		return Result{}, fmt.Errorf("%w: clear postProcessing: %v", domain.ErrExtraction, err)
	}

	if err := e.exec.Run(ctx, req.CaseDir, "log.postProcess",
		"postProcess", "-func", "sampleDict", "-latestTime"); err != nil {
		return Result{}, fmt.Errorf("%w: postProcess: %v", domain.ErrExternalProcess, err)
	}

	vtkPath, err := findCutExport(ppDir, lastTime)
	if err != nil {
		return Result{}, err
	}

	points, err := vtk.ParseFile(vtkPath)
	if err != nil {
		return Result{}, err
	}
	e.logger.Info("parsed cut plane", "points", len(points))

	grid, stats := Resample(points, req.Window, e.spacing)
	return Result{
		WindDirection: req.Direction,
		WindSpeed:     req.Speed,
		SampleHeight:  req.Height,
		Grid:          grid,
		Stats:         stats,
	}, nil
}

// latestTimeDir returns the numerically largest positive time directory
// name in the case root.
func latestTimeDir(caseDir string) (string, error) {
	entries, err := os.ReadDir(caseDir)
	if err != nil {
		return "", fmt.Errorf("%w: read case directory: %v", domain.ErrExtraction, err)
	}

	best := ""
	bestVal := 0.0
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		v, err := strconv.ParseFloat(ent.Name(), 64)
		if err != nil || v <= 0 {
			continue
		}
		if v > bestVal {
			bestVal = v
			best = ent.Name()
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no output time directories", domain.ErrExtraction)
	}
	return best, nil
}

// findCutExport locates the sampled VTK file, preferring the expected time
// directory and falling back to any time subdirectory (the sampler
// occasionally rounds the directory name differently).
func findCutExport(ppDir, lastTime string) (string, error) {
	exact := filepath.Join(ppDir, lastTime, cutSurface+".vtk")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}
	matches, _ := filepath.Glob(filepath.Join(ppDir, "*", cutSurface+".vtk"))
	if len(matches) > 0 {
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: cut-plane export not found", domain.ErrExtraction)
}
