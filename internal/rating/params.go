package rating

import (
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Params holds the numeric settings shared by every rating variant.
type Params struct {
	InitialRating      float64 `json:"initial_rating"`
	InitialUncertainty float64 `json:"initial_uncertainty"`
	// UncertaintyStep is subtracted from both teams' uncertainty after each match.
	UncertaintyStep float64 `json:"uncertainty_step"`
	// UncertaintyFloor is the lowest value uncertainty can be reduced to.
	UncertaintyFloor float64 `json:"uncertainty_floor"`
	// K is the classic variant's step size.
	K float64 `json:"k"`
}

// DefaultParams returns the settings used when nothing is configured.
func DefaultParams() Params {
	return Params{
		InitialRating:      1500,
		InitialUncertainty: 100,
		UncertaintyStep:    1,
		UncertaintyFloor:   1,
		K:                  32,
	}
}

// Validate rejects settings that would make the sweep meaningless.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"initial rating":      p.InitialRating,
		"initial uncertainty": p.InitialUncertainty,
		"uncertainty step":    p.UncertaintyStep,
		"uncertainty floor":   p.UncertaintyFloor,
		"k":                   p.K,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if p.UncertaintyStep < 0 {
		return errors.New("uncertainty step must not be negative")
	}
	if p.UncertaintyFloor <= 0 {
		return errors.New("uncertainty floor must be positive")
	}
	if p.InitialUncertainty < p.UncertaintyFloor {
		return errors.New("initial uncertainty must not be below the floor")
	}
	if p.K <= 0 {
		return errors.New("k must be positive")
	}
	return nil
}

// Fingerprint identifies a parameter set. Results computed under different
// parameters never share a cache key or a stored run.
func (p Params) Fingerprint() string {
	raw := fmt.Sprintf("%v|%v|%v|%v|%v",
		p.InitialRating, p.InitialUncertainty, p.UncertaintyStep, p.UncertaintyFloor, p.K)
	return fmt.Sprintf("%016x", xxhash.Sum64String(raw))
}

// reduceUncertainty returns the change to apply to u after one match.
// The result is never positive.
func (p Params) reduceUncertainty(u float64) float64 {
	next := clamp(p.UncertaintyFloor, u-p.UncertaintyStep, u)
	return next - u
}

// clamp bounds v to [low, high].
func clamp(low, v, high float64) float64 {
	if v < low {
		return low
	} else if v > high {
		return high
	}
	return v
}
