package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/foam"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/mesh"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/observability"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/result"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/store"
	"github.com/jonboulle/clockwork"
)

// defaultResampleSpeed labels a resampled grid when neither a cached
// result nor a manifest records the original reference speed.
const defaultResampleSpeed = 4.0

// Run lifecycle event types published to the optional notifier.
const (
	EventStarted   = "calculation_started"
	EventCompleted = "calculation_completed"
	EventFailed    = "calculation_failed"
	EventStopped   = "calculation_stopped"
)

// Event is a run lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	Direction int       `json:"direction"`
	WindSpeed float64   `json:"wind_speed"`
	Points    int       `json:"points,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier publishes run lifecycle events to an external system.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Options wires the Calculator's collaborators. Notifier may be nil.
type Options struct {
	Base      domain.SizerConfig
	Store     *store.Store
	Exec      result.Executor
	Extractor *result.Extractor
	Metrics   *observability.Metrics
	Notifier  Notifier
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Calculator runs wind calculations: one at a time, asynchronously, with
// results filed in the store per integer wind direction.
type Calculator struct {
	opts    Options
	tracker *Tracker
}

func New(opts Options) *Calculator {
	return &Calculator{opts: opts, tracker: NewTracker()}
}

// Tracker exposes the run-state tracker for status reporting.
func (c *Calculator) Tracker() *Tracker { return c.tracker }

// Calculate validates the request, claims the single run slot, and starts
// the pipeline in the background. Returns ErrValidation for a bad request
// and ErrBusy when a run is already in flight.
func (c *Calculator) Calculate(req domain.CalculationRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		c.opts.Metrics.CalculationsTotal.WithLabelValues("rejected").Inc()
		return err
	}
	buildings := domain.ParseBuildings(req.Buildings)
	if len(buildings) == 0 {
		c.opts.Metrics.CalculationsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: no usable building footprints", domain.ErrValidation)
	}
	if err := c.tracker.Begin(); err != nil {
		return err
	}

	c.opts.Logger.Info("calculation started",
		"direction", req.DirectionKey(), "speed", req.Wind.Speed, "buildings", len(buildings))
	c.notify(Event{Type: EventStarted, Direction: req.DirectionKey(), WindSpeed: req.Wind.Speed})

	go c.run(context.Background(), req, buildings)
	return nil
}

// Stop requests cooperative cancellation of the current run. A toolchain
// step already in flight finishes, but the run's final state stays stopped.
func (c *Calculator) Stop() {
	c.opts.Logger.Info("stop requested")
	c.tracker.Stop()
}

func (c *Calculator) run(ctx context.Context, req domain.CalculationRequest, buildings []domain.Building) {
	start := c.opts.Clock.Now()
	c.opts.Metrics.CalculationRunning.Set(1)
	defer c.opts.Metrics.CalculationRunning.Set(0)

	res, err := c.execute(ctx, req, buildings)
	elapsed := c.opts.Clock.Since(start)
	c.opts.Metrics.CalculationDuration.Observe(elapsed.Seconds())

	// A stop request wins over whatever the run produced: the tracker
	// already reports stopped, and the published event must agree.
	if c.tracker.Stopped() {
		c.opts.Logger.Info("calculation stopped",
			"direction", req.DirectionKey(), "elapsed", elapsed)
		c.opts.Metrics.CalculationsTotal.WithLabelValues("stopped").Inc()
		c.notify(Event{Type: EventStopped, Direction: req.DirectionKey(), WindSpeed: req.Wind.Speed})
		return
	}

	if err != nil {
		c.opts.Logger.Error("calculation failed",
			"direction", req.DirectionKey(), "elapsed", elapsed, "error", err)
		c.tracker.Fail(err.Error())
		c.opts.Metrics.CalculationsTotal.WithLabelValues("error").Inc()
		c.notify(Event{Type: EventFailed, Direction: req.DirectionKey(), WindSpeed: req.Wind.Speed, Message: err.Error()})
		return
	}

	c.opts.Logger.Info("calculation completed",
		"direction", req.DirectionKey(), "elapsed", elapsed, "points", res.Stats.Points)
	c.tracker.Complete()
	c.opts.Metrics.CalculationsTotal.WithLabelValues("completed").Inc()
	c.opts.Metrics.ExtractionPoints.Observe(float64(res.Stats.Points))
	c.notify(Event{Type: EventCompleted, Direction: req.DirectionKey(), WindSpeed: req.Wind.Speed, Points: res.Stats.Points})
}

func (c *Calculator) execute(ctx context.Context, req domain.CalculationRequest, buildings []domain.Building) (result.Result, error) {
	direction := req.DirectionKey()
	cfg := req.Settings.Apply(c.opts.Base).Normalize()

	spec, err := domain.SizeDomain(buildings, req.Wind.Direction, cfg)
	if err != nil {
		return result.Result{}, err
	}
	profile := domain.Inflow(req.Wind.Speed, cfg)

	c.tracker.SetPhase(progressCase, "generating case")
	caseDir, err := c.opts.Store.CreateCase(store.Manifest{
		Direction:      direction,
		WindSpeed:      req.Wind.Speed,
		SampleHeight:   cfg.SampleHeight,
		CellSize:       cfg.CellSize,
		Iterations:     cfg.Iterations,
		MaxHeight:      spec.MaxHeight,
		BuildingBounds: spec.BuildingBounds,
	})
	if err != nil {
		return result.Result{}, err
	}

	fc := foam.Case{Spec: spec, Profile: profile, Speed: req.Wind.Speed, Config: cfg}
	if err := fc.Write(caseDir); err != nil {
		return result.Result{}, err
	}
	solid := mesh.BuildSolid(buildings)
	stlPath := filepath.Join(caseDir, "constant", "triSurface", foam.SurfaceName+".stl")
	if err := solid.WriteFile(stlPath); err != nil {
		return result.Result{}, err
	}
	c.opts.Logger.Info("case generated",
		"case", filepath.Base(caseDir), "domain", spec.Describe(), "triangles", len(solid.Triangles))

	c.tracker.SetPhase(progressBlockMesh, "meshing background grid")
	c.step(ctx, caseDir, "log.blockMesh", "blockMesh")

	c.tracker.SetPhase(progressSnappy, "carving building geometry")
	c.step(ctx, caseDir, "log.snappyHexMesh", "snappyHexMesh", "-overwrite")

	c.tracker.BeginSolve(filepath.Join(caseDir, "log.simpleFoam"), cfg.Iterations)
	c.step(ctx, caseDir, "log.simpleFoam", "simpleFoam")
	c.tracker.EndSolve()

	window := result.BuildingWindow(spec.BuildingBounds, spec.MaxHeight)
	res, err := c.opts.Extractor.Extract(ctx, result.Request{
		CaseDir:   caseDir,
		Direction: direction,
		Speed:     req.Wind.Speed,
		Height:    cfg.SampleHeight,
		Window:    &window,
	})
	if err != nil {
		return result.Result{}, err
	}

	c.opts.Store.SetResult(direction, res)
	c.opts.Store.SetCurrent(direction)
	return res, nil
}

// step runs one external toolchain stage. An abnormal exit is recorded but
// does not abort the run: meshing utilities return non-zero on warnings,
// so a genuinely broken stage surfaces later as a missing extraction
// product with the log file naming the culprit.
func (c *Calculator) step(ctx context.Context, dir, logName, name string, args ...string) {
	if err := c.opts.Exec.Run(ctx, dir, logName, name, args...); err != nil {
		c.opts.Metrics.ToolchainStepErrors.Inc()
		c.opts.Logger.Warn("toolchain step exited abnormally", "step", name, "error", err)
	}
}

// Resample re-extracts the stored solution for a direction at a new cut
// height, replacing the cached grid. A nil direction targets the most
// recent calculation.
func (c *Calculator) Resample(ctx context.Context, direction *int, height float64) (result.Result, error) {
	var d int
	if direction != nil {
		d = *direction
	} else {
		cur, ok := c.opts.Store.Current()
		if !ok {
			return result.Result{}, fmt.Errorf("%w: no calculation on record", domain.ErrNotFound)
		}
		d = cur
	}

	caseDir, ok := c.opts.Store.CaseDir(d)
	if !ok {
		return result.Result{}, fmt.Errorf("%w: no case for direction %d", domain.ErrNotFound, d)
	}

	speed := defaultResampleSpeed
	if prev, ok := c.opts.Store.Result(d); ok {
		speed = prev.WindSpeed
	} else if m, ok := c.opts.Store.Manifest(d); ok && m.WindSpeed > 0 {
		speed = m.WindSpeed
	}

	var window *result.Window
	if m, ok := c.opts.Store.Manifest(d); ok && m.MaxHeight > 0 {
		w := result.BuildingWindow(m.BuildingBounds, m.MaxHeight)
		window = &w
	}

	if height <= 0 {
		height = c.opts.Base.Normalize().SampleHeight
	}

	c.opts.Logger.Info("resampling stored case", "direction", d, "height", height)
	res, err := c.opts.Extractor.Extract(ctx, result.Request{
		CaseDir:   caseDir,
		Direction: d,
		Speed:     speed,
		Height:    height,
		Window:    window,
	})
	if err != nil {
		return result.Result{}, err
	}

	c.opts.Store.SetResult(d, res)
	c.opts.Metrics.ResampleRequests.Inc()
	return res, nil
}

func (c *Calculator) notify(ev Event) {
	if c.opts.Notifier == nil {
		return
	}
	ev.At = c.opts.Clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.opts.Notifier.Publish(ctx, ev); err != nil {
		c.opts.Logger.Warn("event publish failed", "type", ev.Type, "error", err)
	}
}
