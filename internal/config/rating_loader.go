package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/utakatalp/league-ratings/internal/rating"
)

// RatingConfig mirrors rating.Params in YAML. Nil fields keep their defaults.
type RatingConfig struct {
	InitialRating      *float64 `yaml:"initial_rating"`
	InitialUncertainty *float64 `yaml:"initial_uncertainty"`
	UncertaintyStep    *float64 `yaml:"uncertainty_step"`
	UncertaintyFloor   *float64 `yaml:"uncertainty_floor"`
	KFactor            *float64 `yaml:"k_factor"`
}

// LoadRatingParams returns the default parameters overlaid with the YAML file
// at path. An empty path returns the defaults.
func LoadRatingParams(path string) (rating.Params, error) {
	if path == "" {
		return rating.DefaultParams(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rating.Params{}, fmt.Errorf("read rating config: %w", err)
	}

	var rc RatingConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return rating.Params{}, fmt.Errorf("parse rating config: %w", err)
	}

	p := rc.Apply(rating.DefaultParams())
	if err := p.Validate(); err != nil {
		return rating.Params{}, fmt.Errorf("rating config %s: %w", path, err)
	}
	return p, nil
}

// Apply overlays the set fields onto p.
func (rc RatingConfig) Apply(p rating.Params) rating.Params {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.InitialRating, rc.InitialRating)
	set(&p.InitialUncertainty, rc.InitialUncertainty)
	set(&p.UncertaintyStep, rc.UncertaintyStep)
	set(&p.UncertaintyFloor, rc.UncertaintyFloor)
	set(&p.K, rc.KFactor)
	return p
}
