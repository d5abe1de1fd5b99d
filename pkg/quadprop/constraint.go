package quadprop

// constraint.go: the quadratic constraint aggregate.
//
// A QuadConstraint owns one QuadExpr plus the derived caches: linear
// activity (event-driven), quadratic activity (interval recomputation
// on demand), and the curvature classification. Mutators invalidate;
// readers refresh lazily. Callers must not read an activity without
// calling the corresponding refresh first.

import (
	"fmt"
	"math"
)

// QuadConstraint represents lhs <= linear + quadratic <= rhs over an
// external variable store.
type QuadConstraint struct {
	cfg   Config
	store VarStore
	name  string

	lhs, rhs float64
	expr     *QuadExpr

	// Linear activity cache. min/max hold the directed-rounded sums of
	// the finite contributions only; the Inf counters say how many
	// terms contribute an infinity on that side. Whenever a counter is
	// positive the numeric sum is meaningless and the side reads as
	// -Inf/+Inf.
	linActValid bool
	minLinAct   float64
	maxLinAct   float64
	minLinInf   int
	maxLinInf   int

	// Quadratic activity cache. quadAct aggregates per-term
	// contribution intervals with the soft-infinity sentinel standing
	// in for truly unbounded contributions; quadContrib caches the raw
	// per-term intervals for residual computations.
	quadActValid bool
	quadAct      Interval
	quadMinInf   int
	quadMaxInf   int
	quadContrib  []Interval

	curvature  Curvature
	propagated bool

	monitor *PropagationMonitor
}

// NewQuadConstraint creates a constraint lhs <= f(x) <= rhs with an
// empty expression. lhs must not exceed rhs.
func NewQuadConstraint(cfg Config, store VarStore, name string, lhs, rhs float64) (*QuadConstraint, error) {
	if store == nil {
		return nil, fmt.Errorf("quadprop: nil store: %w", ErrInvalidArgument)
	}
	if lhs > rhs {
		return nil, fmt.Errorf("quadprop: lhs %g > rhs %g: %w", lhs, rhs, ErrInvalidArgument)
	}
	return &QuadConstraint{
		cfg:   cfg,
		store: store,
		name:  name,
		lhs:   lhs,
		rhs:   rhs,
		expr:  NewQuadExpr(cfg),
	}, nil
}

// Name returns the constraint name.
func (c *QuadConstraint) Name() string { return c.name }

// Lhs returns the left-hand side.
func (c *QuadConstraint) Lhs() float64 { return c.lhs }

// Rhs returns the right-hand side.
func (c *QuadConstraint) Rhs() float64 { return c.rhs }

// Expr returns the underlying term store for read access. Structural
// edits must go through the constraint's Add/Remove wrappers so the
// caches are invalidated.
func (c *QuadConstraint) Expr() *QuadExpr { return c.expr }

// Store returns the variable store the constraint operates on.
func (c *QuadConstraint) Store() VarStore { return c.store }

// SetMonitor attaches a statistics monitor. Optional.
func (c *QuadConstraint) SetMonitor(m *PropagationMonitor) { c.monitor = m }

// String returns a short description.
func (c *QuadConstraint) String() string {
	return fmt.Sprintf("QuadConstraint(%s: %g <= %d lin + %d quad + %d bilin <= %g)",
		c.name, c.lhs, c.expr.NumLinear(), c.expr.NumQuadVars(), c.expr.NumBilinear(), c.rhs)
}

// Invalidate drops all derived caches. Any structural or coefficient
// change must call this (the Add/Remove wrappers do).
func (c *QuadConstraint) Invalidate() {
	c.linActValid = false
	c.quadActValid = false
	c.curvature = Curvature{}
	c.propagated = false
}

// AddLinearTerm appends coef*v to the linear part.
func (c *QuadConstraint) AddLinearTerm(v Var, coef float64) {
	c.expr.AddLinear(v, coef)
	c.Invalidate()
}

// AddQuadVarTerm appends sqrCoef*v^2 + linCoef*v and returns the
// position of the new quadratic term.
func (c *QuadConstraint) AddQuadVarTerm(v Var, linCoef, sqrCoef float64) int {
	pos := c.expr.AddQuadVar(v, linCoef, sqrCoef)
	c.Invalidate()
	return pos
}

// AddBilinearTerm adds coef * x * y for the quadratic variables at the
// given positions.
func (c *QuadConstraint) AddBilinearTerm(posA, posB int, coef float64) error {
	if err := c.expr.AddBilinear(posA, posB, coef); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// RemoveFixedVariables substitutes out all inactive variables and folds
// the split-off constant into both sides. Each variable the cascade
// eliminates counts as one substitution on the attached monitor.
func (c *QuadConstraint) RemoveFixedVariables() error {
	var before map[Var]struct{}
	if c.monitor != nil {
		before = c.referencedVars()
	}
	constant, err := c.expr.RemoveFixedVariables(c.store)
	if err != nil {
		return err
	}
	c.shiftSides(constant)
	c.Invalidate()
	if c.monitor != nil {
		after := c.referencedVars()
		for v := range before {
			if _, ok := after[v]; !ok {
				c.monitor.RecordSubstitution()
			}
		}
	}
	return nil
}

// referencedVars returns the set of variables the expression currently
// references. Bilinear terms only reference quadratic variables, so the
// linear and quadratic term lists cover everything.
func (c *QuadConstraint) referencedVars() map[Var]struct{} {
	vars := make(map[Var]struct{}, c.expr.NumLinear()+c.expr.NumQuadVars())
	for i := 0; i < c.expr.NumLinear(); i++ {
		vars[c.expr.LinearTermAt(i).Var] = struct{}{}
	}
	for i := 0; i < c.expr.NumQuadVars(); i++ {
		vars[c.expr.QuadVarTermAt(i).Var] = struct{}{}
	}
	return vars
}

// shiftSides moves a constant from the function into the sides:
// lhs <= f + k <= rhs becomes lhs-k <= f <= rhs-k.
func (c *QuadConstraint) shiftSides(constant float64) {
	if constant == 0 {
		return
	}
	if !c.cfg.IsInfinity(c.lhs) {
		c.lhs -= constant
	}
	if !c.cfg.IsInfinity(c.rhs) {
		c.rhs -= constant
	}
}

// RegisterEvents subscribes the constraint to bound-change events of
// every referenced variable so the linear activity stays incrementally
// up to date and propagation is re-triggered after external changes.
func (c *QuadConstraint) RegisterEvents() {
	seen := make(map[Var]struct{})
	sub := func(v Var) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		c.store.Subscribe(v, c)
	}
	for i := 0; i < c.expr.NumLinear(); i++ {
		sub(c.expr.LinearTermAt(i).Var)
	}
	for i := 0; i < c.expr.NumQuadVars(); i++ {
		sub(c.expr.QuadVarTermAt(i).Var)
	}
}

// IsPropagated reports whether the constraint has been propagated since
// the last relevant change.
func (c *QuadConstraint) IsPropagated() bool { return c.propagated }

// markPropagated is called by the propagator at the end of a clean round.
func (c *QuadConstraint) markPropagated() { c.propagated = true }

// Violation returns by how much the point violates the constraint
// (positive for violation, zero when satisfied within tolerance) and
// which side is violated.
func (c *QuadConstraint) Violation(point map[Var]float64) (viol float64, side ViolatedSide) {
	act := c.evalAt(point)
	if !c.cfg.IsInfinity(c.rhs) && act > c.rhs+c.cfg.FeasTol {
		return act - c.rhs, ViolatedRhs
	}
	if !c.cfg.IsInfinity(c.lhs) && act < c.lhs-c.cfg.FeasTol {
		return c.lhs - act, ViolatedLhs
	}
	return 0, ViolatedNone
}

// evalAt evaluates the constraint function at a point. Missing
// variables evaluate as zero.
func (c *QuadConstraint) evalAt(point map[Var]float64) float64 {
	sum := 0.0
	for i := 0; i < c.expr.NumLinear(); i++ {
		t := c.expr.LinearTermAt(i)
		sum += t.Coef * point[t.Var]
	}
	for i := 0; i < c.expr.NumQuadVars(); i++ {
		t := c.expr.QuadVarTermAt(i)
		x := point[t.Var]
		sum += t.SqrCoef*x*x + t.LinCoef*x
	}
	for i := 0; i < c.expr.NumBilinear(); i++ {
		t := c.expr.BilinTermAt(i)
		sum += t.Coef * point[t.Var1] * point[t.Var2]
	}
	return sum
}

// ViolatedSide says which constraint side a point or activity violates.
type ViolatedSide int

const (
	// ViolatedNone means the constraint is satisfied.
	ViolatedNone ViolatedSide = iota
	// ViolatedLhs means the activity falls below the left-hand side.
	ViolatedLhs
	// ViolatedRhs means the activity exceeds the right-hand side.
	ViolatedRhs
)

// String returns a human-readable side name.
func (s ViolatedSide) String() string {
	switch s {
	case ViolatedLhs:
		return "lhs"
	case ViolatedRhs:
		return "rhs"
	default:
		return "none"
	}
}

// projectIntoBounds clamps v into the variable's current domain.
func (c *QuadConstraint) projectIntoBounds(v Var, val float64) float64 {
	lb := c.store.LowerBound(v)
	ub := c.store.UpperBound(v)
	return math.Max(lb, math.Min(ub, val))
}
