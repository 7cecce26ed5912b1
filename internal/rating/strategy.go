package rating

import (
	"fmt"
	"math"
	"strings"
)

// Kind names one of the supported rating variants.
type Kind int

const (
	KindClassic Kind = iota
	KindBayesian
	KindGlicko
)

// Kinds lists every variant in a stable order.
var Kinds = []Kind{KindClassic, KindBayesian, KindGlicko}

func (k Kind) String() string {
	switch k {
	case KindClassic:
		return "classic"
	case KindBayesian:
		return "bayesian"
	case KindGlicko:
		return "glicko"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts a variant name case-insensitively.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown rating system %q", s)
}

// Strategy supplies the two formulas that distinguish one rating variant from another.
type Strategy interface {
	Kind() Kind
	// ExpectedOutcome is the model's expected score for the home side, in [0, 1].
	ExpectedOutcome(homeRating, awayRating float64) (float64, error)
	// UpdateIncrement is the signed rating change for the home side; the away
	// side receives its negation.
	UpdateIncrement(expected, outcome, uncertainty float64) (float64, error)
}

// NewStrategy returns the strategy for kind. k is only used by the classic variant.
func NewStrategy(kind Kind, k float64) (Strategy, error) {
	switch kind {
	case KindClassic:
		return Classic{K: k}, nil
	case KindBayesian:
		return Bayesian{}, nil
	case KindGlicko:
		return Glicko{}, nil
	default:
		return nil, fmt.Errorf("unknown rating system %v", kind)
	}
}

// Classic is Elo's original system with a fixed step size K.
type Classic struct {
	K float64
}

func (Classic) Kind() Kind { return KindClassic }

func (Classic) ExpectedOutcome(homeRating, awayRating float64) (float64, error) {
	return 1 / (1 + math.Pow(10, -(homeRating-awayRating)/400)), nil
}

func (c Classic) UpdateIncrement(expected, outcome, _ float64) (float64, error) {
	return c.K * (outcome - expected), nil
}

// bayesScale converts a rating difference to log-odds: 400 points is a factor of 10.
var bayesScale = math.Log(10) / 400

// Bayesian treats the rating as a Gaussian estimate and scales each step by
// the larger of the two teams' uncertainties (Ingram, 2021).
type Bayesian struct{}

func (Bayesian) Kind() Kind { return KindBayesian }

func (Bayesian) ExpectedOutcome(homeRating, awayRating float64) (float64, error) {
	return sigmoid(bayesScale * (homeRating - awayRating)), nil
}

func (Bayesian) UpdateIncrement(expected, outcome, uncertainty float64) (float64, error) {
	b := bayesScale
	k := (b / 2) / (1/(2*uncertainty*uncertainty) + b*b*expected*(1-expected))
	return k * (outcome - expected), nil
}

func sigmoid(x float64) float64 {
	// Split on sign so math.Exp never overflows.
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	ex := math.Exp(x)
	return ex / (1 + ex)
}

// Glicko is reserved for a Glicko rating variant. Every call fails with ErrNotImplemented.
type Glicko struct{}

func (Glicko) Kind() Kind { return KindGlicko }

func (Glicko) ExpectedOutcome(_, _ float64) (float64, error) {
	return 0, fmt.Errorf("glicko expected outcome: %w", ErrNotImplemented)
}

func (Glicko) UpdateIncrement(_, _, _ float64) (float64, error) {
	return 0, fmt.Errorf("glicko update increment: %w", ErrNotImplemented)
}
