package domain

import (
	"fmt"
	"math"
)

// DefaultWindSpeed is used when the request omits the reference speed.
const DefaultWindSpeed = 5.0

// WindRequest is the meteorological wind condition: direction the wind
// blows FROM, in compass degrees, and reference speed at zRef.
type WindRequest struct {
	Direction float64 `json:"direction"`
	Speed     float64 `json:"speed"`
}

// Settings carries the client's simulation overrides. Zero values fall
// back to the server defaults.
type Settings struct {
	CellSize      float64 `json:"cellSize"`
	Iterations    int     `json:"iterations"`
	SampleHeight  float64 `json:"sampleHeight"`
	RefinementMin int     `json:"refinementMin"`
	RefinementMax int     `json:"refinementMax"`
}

// Apply overlays the non-zero settings onto a base configuration.
func (s Settings) Apply(cfg SizerConfig) SizerConfig {
	if s.CellSize > 0 {
		cfg.CellSize = s.CellSize
	}
	if s.Iterations > 0 {
		cfg.Iterations = s.Iterations
	}
	if s.SampleHeight > 0 {
		cfg.SampleHeight = s.SampleHeight
	}
	if s.RefinementMin > 0 {
		cfg.RefinementMin = s.RefinementMin
	}
	if s.RefinementMax > 0 {
		cfg.RefinementMax = s.RefinementMax
	}
	return cfg
}

// CalculationRequest is the body of a calculation submission.
type CalculationRequest struct {
	Wind      WindRequest       `json:"wind"`
	Buildings FeatureCollection `json:"buildings"`
	Settings  Settings          `json:"settings"`
}

// Normalize fills the omitted wind speed.
func (r *CalculationRequest) Normalize() {
	if r.Wind.Speed == 0 {
		r.Wind.Speed = DefaultWindSpeed
	}
}

// Validate rejects requests the solver cannot act on. Buildings are
// validated separately by ParseBuildings.
func (r CalculationRequest) Validate() error {
	if r.Wind.Speed <= 0 {
		return fmt.Errorf("%w: wind speed must be positive, got %g", ErrValidation, r.Wind.Speed)
	}
	if math.IsNaN(r.Wind.Direction) || r.Wind.Direction < 0 || r.Wind.Direction >= 360 {
		return fmt.Errorf("%w: wind direction must be in [0, 360), got %g", ErrValidation, r.Wind.Direction)
	}
	return nil
}

// DirectionKey is the integer degree under which the calculation's case
// and result are filed.
func (r CalculationRequest) DirectionKey() int {
	return int(r.Wind.Direction)
}
