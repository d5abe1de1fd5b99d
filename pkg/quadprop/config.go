package quadprop

// config.go: shared engine configuration.
//
// All tunables live in one immutable struct handed to each component at
// construction time. There is no ambient global state; two constraints
// built from different configs coexist without interference.

import "math"

// Config collects the numeric tolerances and limits used by the term
// store, the propagator and the cut generator. Construct with
// DefaultConfig and override fields before first use; a Config must not
// be mutated once any component holds it.
type Config struct {
	// Epsilon is the numeric-zero tolerance. Coefficients with absolute
	// value below Epsilon are dropped on add/merge.
	Epsilon float64

	// FeasTol is the feasibility tolerance used when comparing
	// activities against constraint sides and when deciding whether a
	// tightened bound actually changed.
	FeasTol float64

	// Infinity is the practical infinity threshold. Any magnitude at or
	// beyond Infinity is treated as unbounded, never as a number; this
	// turns floating-point overflow into "unbounded", not an error.
	Infinity float64

	// SoftInfinity is the finite sentinel substituted for a truly
	// infinite per-term contribution when aggregating quadratic
	// activity, so that one unbounded term does not immediately poison
	// the whole sum. The default is sqrt(Infinity). The exact value is
	// an implementation choice, not a contract; it only needs to be
	// consistently large.
	SoftInfinity float64

	// MaxPropRounds bounds the number of propagation rounds per call.
	MaxPropRounds int

	// MinCutEfficacy is the minimum efficacy (violation scaled by the
	// largest cut coefficient) a generated cut must reach; weaker cuts
	// are discarded.
	MinCutEfficacy float64

	// MaxCutCoefRange is the maximum admitted ratio between the largest
	// and smallest nonzero absolute coefficient in a cut. Cuts whose
	// range cannot be repaired by bound-folding are abandoned.
	MaxCutCoefRange float64

	// CurvatureTol is the eigenvalue tolerance for the convexity check:
	// convex iff the smallest eigenvalue >= -CurvatureTol, concave iff
	// the largest <= +CurvatureTol.
	CurvatureTol float64
}

// DefaultConfig returns the configuration used throughout the tests and
// examples. The values mirror common MINLP solver defaults.
func DefaultConfig() Config {
	inf := 1e20
	return Config{
		Epsilon:         1e-9,
		FeasTol:         1e-6,
		Infinity:        inf,
		SoftInfinity:    math.Sqrt(inf),
		MaxPropRounds:   100,
		MinCutEfficacy:  1e-4,
		MaxCutCoefRange: 1e7,
		CurvatureTol:    1e-9,
	}
}

// IsInfinity reports whether v is at or beyond the practical infinity
// threshold (in either direction).
func (c Config) IsInfinity(v float64) bool {
	return v >= c.Infinity || v <= -c.Infinity || math.IsInf(v, 0)
}

// IsZero reports whether v is numerically zero under Epsilon.
func (c Config) IsZero(v float64) bool {
	return math.Abs(v) < c.Epsilon
}
