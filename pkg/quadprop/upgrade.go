package quadprop

// upgrade.go: recognition of simpler constraint forms.
//
// A quadratic constraint that loses its quadratic part through presolve
// is better handled by a dedicated linear mechanism in the surrounding
// solver. The registry holds prioritized recognizers; each inspects a
// constraint and either describes the simpler form it found or passes.
//
// Design Philosophy:
//   - Open registration: Solvers plug in their own recognizers
//   - Priority ordered: Higher priority recognizers run first
//   - Descriptive results: An Upgrade describes the simpler form, it
//     does not perform the replacement. Ownership of constraints stays
//     with the caller.

import (
	"fmt"
	"sort"
)

// UpgradeKind identifies the simpler form a recognizer found.
type UpgradeKind int

const (
	// UpgradeLinear means the constraint has no quadratic part left and
	// is an ordinary linear constraint.
	UpgradeLinear UpgradeKind = iota
	// UpgradeVarBound means the constraint reduces to a bound on a
	// single variable.
	UpgradeVarBound
	// UpgradeEmpty means the constraint has no terms at all; it is
	// either trivially true or trivially infeasible, see Feasible.
	UpgradeEmpty
)

// String returns a human-readable kind name.
func (k UpgradeKind) String() string {
	switch k {
	case UpgradeLinear:
		return "linear"
	case UpgradeVarBound:
		return "varbound"
	case UpgradeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Upgrade describes a simpler form of a quadratic constraint. The
// caller decides whether to replace the constraint accordingly.
type Upgrade struct {
	Kind UpgradeKind

	// Terms is the linear form for UpgradeLinear.
	Terms []LinearTerm

	// Var, VarLb and VarUb carry the bound for UpgradeVarBound.
	Var   Var
	VarLb float64
	VarUb float64

	// Feasible is set for UpgradeEmpty: whether 0 satisfies the sides.
	Feasible bool
}

// UpgradeFunc inspects a constraint and reports a simpler form, or
// (nil, false) when it does not apply. Recognizers must not modify the
// constraint beyond normalization (merging terms is fine).
type UpgradeFunc func(c *QuadConstraint) (*Upgrade, bool)

type upgradeEntry struct {
	name     string
	priority int
	fn       UpgradeFunc
}

// UpgradeRegistry holds prioritized upgrade recognizers.
//
// Usage Pattern:
//  1. Create a registry with NewUpgradeRegistry()
//  2. Optionally Register() solver-specific recognizers
//  3. After presolve, call Upgrade() per constraint and replace those
//     that report a simpler form
//
// A new registry already contains the built-in recognizers for linear,
// variable-bound and empty constraints.
type UpgradeRegistry struct {
	entries []upgradeEntry
}

// NewUpgradeRegistry creates a registry with the built-in recognizers.
func NewUpgradeRegistry() *UpgradeRegistry {
	r := &UpgradeRegistry{}
	// Registration on a fresh registry cannot collide.
	_ = r.Register("empty", 30, upgradeEmpty)
	_ = r.Register("varbound", 20, upgradeVarBound)
	_ = r.Register("linear", 10, upgradeLinear)
	return r
}

// Register adds a recognizer under a unique name. Higher priorities run
// first; equal priorities run in registration order.
func (r *UpgradeRegistry) Register(name string, priority int, fn UpgradeFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("quadprop: upgrade recognizer needs name and function: %w", ErrInvalidArgument)
	}
	for _, e := range r.entries {
		if e.name == name {
			return fmt.Errorf("quadprop: upgrade recognizer %q already registered: %w", name, ErrInvalidArgument)
		}
	}
	r.entries = append(r.entries, upgradeEntry{name: name, priority: priority, fn: fn})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority > r.entries[j].priority
	})
	return nil
}

// Names returns the registered recognizer names in execution order.
func (r *UpgradeRegistry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Upgrade runs the recognizers in priority order and returns the first
// simpler form found, along with the recognizer's name.
func (r *UpgradeRegistry) Upgrade(c *QuadConstraint) (*Upgrade, string, bool) {
	nl, nq, nb := c.expr.NumLinear(), c.expr.NumQuadVars(), c.expr.NumBilinear()
	c.expr.MergeLinear()
	c.expr.MergeQuadVars(c.store)
	c.expr.MergeBilinear()
	if nl != c.expr.NumLinear() || nq != c.expr.NumQuadVars() || nb != c.expr.NumBilinear() {
		c.Invalidate()
	}
	for _, e := range r.entries {
		if up, ok := e.fn(c); ok {
			return up, e.name, true
		}
	}
	return nil, "", false
}

func upgradeEmpty(c *QuadConstraint) (*Upgrade, bool) {
	if c.expr.NumLinear() != 0 || c.expr.IsQuadratic() {
		return nil, false
	}
	feasible := true
	if !c.cfg.IsInfinity(c.lhs) && c.lhs > c.cfg.FeasTol {
		feasible = false
	}
	if !c.cfg.IsInfinity(c.rhs) && c.rhs < -c.cfg.FeasTol {
		feasible = false
	}
	return &Upgrade{Kind: UpgradeEmpty, Feasible: feasible}, true
}

func upgradeVarBound(c *QuadConstraint) (*Upgrade, bool) {
	if c.expr.IsQuadratic() || c.expr.NumLinear() != 1 {
		return nil, false
	}
	t := c.expr.LinearTermAt(0)
	// lhs <= coef*x <= rhs as bounds on x, sign-aware.
	lb, ub := c.lhs/t.Coef, c.rhs/t.Coef
	if t.Coef < 0 {
		lb, ub = ub, lb
	}
	up := &Upgrade{Kind: UpgradeVarBound, Var: t.Var, VarLb: lb, VarUb: ub}
	if c.cfg.IsInfinity(up.VarLb) {
		up.VarLb = -c.cfg.Infinity
	}
	if c.cfg.IsInfinity(up.VarUb) {
		up.VarUb = c.cfg.Infinity
	}
	return up, true
}

func upgradeLinear(c *QuadConstraint) (*Upgrade, bool) {
	if c.expr.IsQuadratic() {
		return nil, false
	}
	terms := make([]LinearTerm, c.expr.NumLinear())
	for i := range terms {
		terms[i] = c.expr.LinearTermAt(i)
	}
	return &Upgrade{Kind: UpgradeLinear, Terms: terms}, true
}
