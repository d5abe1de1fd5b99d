package quadprop

// propagate.go: interval-based bound propagation.
//
// Each round refreshes the activity caches, rules out the cheap
// outcomes (redundant, infeasible), and then solves one univariate
// quadratic interval inequality per variable: for a quadratic variable
// x the adjacent bilinear products are absorbed into an interval linear
// coefficient and everything else into an interval right-hand side, so
// tightening x reduces to SolveUnivariateQuad. Tightenings are applied
// immediately; rounds repeat until a fixed point, the round limit, or a
// cutoff.
//
// Soundness note: bound changes applied mid-round invalidate the
// quadratic activity cache, but the round keeps using the stale
// contributions. Stale caches were computed from wider domains, so they
// over-approximate the current residuals; the derived bounds remain
// valid, merely not as tight as a recomputation would give. The next
// round recomputes.

import "math"

// PropagationResult is the outcome of a propagation call.
type PropagationResult int

const (
	// ResultDidNotRun means propagation was not attempted (already
	// propagated and no bounds changed since).
	ResultDidNotRun PropagationResult = iota
	// ResultDidNotFind means propagation ran but tightened nothing.
	ResultDidNotFind
	// ResultReduced means at least one bound was tightened.
	ResultReduced
	// ResultCutoff means the constraint is infeasible for the current
	// domains. Tightenings applied before the cutoff remain valid and
	// are kept.
	ResultCutoff
)

// String returns a human-readable result name.
func (r PropagationResult) String() string {
	switch r {
	case ResultDidNotRun:
		return "did-not-run"
	case ResultDidNotFind:
		return "did-not-find"
	case ResultReduced:
		return "reduced"
	case ResultCutoff:
		return "cutoff"
	default:
		return "unknown"
	}
}

// BoundsPropagator tightens variable domains against quadratic
// constraints.
type BoundsPropagator struct {
	cfg     Config
	store   VarStore
	monitor *PropagationMonitor
}

// NewBoundsPropagator creates a propagator over the given store.
func NewBoundsPropagator(cfg Config, store VarStore) *BoundsPropagator {
	return &BoundsPropagator{cfg: cfg, store: store}
}

// SetMonitor attaches a statistics monitor. Optional.
func (p *BoundsPropagator) SetMonitor(m *PropagationMonitor) { p.monitor = m }

// sideInterval returns [lhs, rhs] with practical infinities widened to
// real infinities and the feasibility tolerance applied outward.
func (p *BoundsPropagator) sideInterval(c *QuadConstraint) Interval {
	lo := c.lhs
	hi := c.rhs
	if p.cfg.IsInfinity(lo) {
		lo = math.Inf(-1)
	} else {
		lo -= p.cfg.FeasTol
	}
	if p.cfg.IsInfinity(hi) {
		hi = math.Inf(1)
	} else {
		hi += p.cfg.FeasTol
	}
	return Interval{Inf: lo, Sup: hi}
}

// Propagate runs rounds of domain propagation on the constraint until a
// fixed point, the configured round limit, or a cutoff. It returns the
// strongest outcome observed and the number of rounds executed.
func (p *BoundsPropagator) Propagate(c *QuadConstraint) (PropagationResult, int) {
	if c.IsPropagated() {
		return ResultDidNotRun, 0
	}
	if p.monitor != nil {
		p.monitor.StartPropagation()
		defer p.monitor.EndPropagation()
	}
	result := ResultDidNotFind
	rounds := 0
	for rounds < p.cfg.MaxPropRounds {
		rounds++
		if p.monitor != nil {
			p.monitor.RecordRound()
		}
		r := p.propagateOnce(c)
		if r == ResultCutoff {
			if p.monitor != nil {
				p.monitor.RecordCutoff()
			}
			return ResultCutoff, rounds
		}
		if r == ResultReduced {
			result = ResultReduced
			continue
		}
		break
	}
	c.markPropagated()
	return result, rounds
}

// propagateOnce performs one pass over all variables of the constraint.
func (p *BoundsPropagator) propagateOnce(c *QuadConstraint) PropagationResult {
	// Normalization can move value between the parts (linear terms of
	// quadratic variables fold into the quadratic term, purely linear
	// quadratic terms demote). Term-count changes flag that and force an
	// activity recomputation.
	nl, nq, nb := c.expr.NumLinear(), c.expr.NumQuadVars(), c.expr.NumBilinear()
	c.expr.MergeLinear()
	c.expr.MergeQuadVars(p.store)
	c.expr.MergeBilinear()
	c.expr.MergeLinearIntoQuad()
	if nl != c.expr.NumLinear() || nq != c.expr.NumQuadVars() || nb != c.expr.NumBilinear() {
		c.linActValid = false
		c.quadActValid = false
	}
	c.UpdateLinearActivity()
	c.ComputeQuadActivity()

	sides := p.sideInterval(c)
	total := c.TotalActivity()
	if total.Inf > sides.Sup || total.Sup < sides.Inf {
		return ResultCutoff
	}
	if sides.ContainsInterval(total) {
		// Redundant for the current domains; nothing to deduce.
		return ResultDidNotFind
	}

	tightened := false
	quadIv := c.QuadActivity()

	// Linear part: admissible coef*x lies in sides minus everything
	// else. The infinity counters implement the "one responsible term"
	// rule: a side with an unrelated infinite contribution yields no
	// deduction for this term.
	for i := 0; i < c.expr.NumLinear(); i++ {
		t := c.expr.LinearTermAt(i)
		res := p.linResidual(c, t).Add(quadIv)
		admissible := sides.Sub(res)
		if admissible.IsEmpty() {
			return ResultCutoff
		}
		infeas, changed := p.tightenFactor(t.Var, t.Coef, admissible)
		if infeas {
			return ResultCutoff
		}
		tightened = tightened || changed
	}

	// Quadratic part.
	var r PropagationResult
	if c.expr.NumQuadVars() == 2 && c.expr.NumBilinear() == 1 {
		r = p.propagateBilinearPair(c, sides)
	} else {
		r = p.propagateQuadVars(c, sides)
	}
	if r == ResultCutoff {
		return ResultCutoff
	}
	if r == ResultReduced || tightened {
		return ResultReduced
	}
	return ResultDidNotFind
}

// linResidual returns the interval of the linear activity excluding
// term t's contribution, honoring the infinity counters.
func (p *BoundsPropagator) linResidual(c *QuadConstraint, t LinearTerm) Interval {
	lo := math.Inf(-1)
	hi := math.Inf(1)
	lb := p.store.LowerBound(t.Var)
	ub := p.store.UpperBound(t.Var)
	minBnd, maxBnd := lb, ub
	if t.Coef < 0 {
		minBnd, maxBnd = ub, lb
	}
	if !p.cfg.IsInfinity(c.rhs) {
		switch {
		case c.minLinInf == 0:
			lo = addDown(c.minLinAct, -mulUp(t.Coef, minBnd))
		case c.minLinInf == 1 && p.cfg.IsInfinity(minBnd):
			lo = c.minLinAct
		}
	}
	if !p.cfg.IsInfinity(c.lhs) {
		switch {
		case c.maxLinInf == 0:
			hi = addUp(c.maxLinAct, -mulDown(t.Coef, maxBnd))
		case c.maxLinInf == 1 && p.cfg.IsInfinity(maxBnd):
			hi = c.maxLinAct
		}
	}
	return Interval{Inf: lo, Sup: hi}
}

// tightenFactor applies coef*x in admissible to x's bounds.
func (p *BoundsPropagator) tightenFactor(v Var, coef float64, admissible Interval) (infeasible, tightened bool) {
	if coef == 0 {
		return false, false
	}
	var lo, hi float64
	if coef > 0 {
		lo = roundDown(admissible.Inf / coef)
		hi = roundUp(admissible.Sup / coef)
	} else {
		lo = roundDown(admissible.Sup / coef)
		hi = roundUp(admissible.Inf / coef)
	}
	return p.tightenTo(v, Interval{Inf: lo, Sup: hi})
}

// tightenTo intersects x's domain with iv, treating out-of-range edges
// as unbounded rather than as bounds.
func (p *BoundsPropagator) tightenTo(v Var, iv Interval) (infeasible, tightened bool) {
	if iv.IsEmpty() {
		return true, false
	}
	if !p.cfg.IsInfinity(iv.Inf) {
		inf, chg := p.store.TightenLowerBound(v, iv.Inf)
		if inf {
			return true, tightened
		}
		tightened = tightened || chg
		if p.monitor != nil && chg {
			p.monitor.RecordTightening()
		}
	}
	if !p.cfg.IsInfinity(iv.Sup) {
		inf, chg := p.store.TightenUpperBound(v, iv.Sup)
		if inf {
			return true, tightened
		}
		tightened = tightened || chg
		if p.monitor != nil && chg {
			p.monitor.RecordTightening()
		}
	}
	return false, tightened
}

// propagateQuadVars runs the general per-variable path: solve
// a*x^2 + b*x in sides - residual for every quadratic variable, where b
// absorbs the bilinear terms canonically assigned to x and the residual
// covers everything else.
func (p *BoundsPropagator) propagateQuadVars(c *QuadConstraint, sides Interval) PropagationResult {
	tightened := false
	linIv := c.LinearActivity()
	for i := 0; i < c.expr.NumQuadVars(); i++ {
		t := c.expr.QuadVarTermAt(i)
		residual := c.quadResidual(i).Add(linIv)
		rhsIv := sides.Sub(residual)
		if rhsIv.IsEmpty() {
			return ResultCutoff
		}
		if math.IsInf(rhsIv.Inf, -1) && math.IsInf(rhsIv.Sup, 1) {
			continue // nothing to deduce for this variable
		}
		b := c.bilinLinCoef(i, true)
		xb := p.store.Bounds(t.Var)
		sol := SolveUnivariateQuad(t.SqrCoef, b, rhsIv, xb)
		if sol.IsEmpty() {
			return ResultCutoff
		}
		inf, chg := p.tightenTo(t.Var, sol)
		if inf {
			return ResultCutoff
		}
		tightened = tightened || chg
	}
	if tightened {
		return ResultReduced
	}
	return ResultDidNotFind
}

// propagateBilinearPair handles the two-variable single-product special
// case a1*x^2 + b1*x + a2*y^2 + b2*y + d*x*y tightly: solving for x
// absorbs d*y into the interval linear coefficient and the exact image
// of y's own terms into the right-hand side, and symmetrically for y.
func (p *BoundsPropagator) propagateBilinearPair(c *QuadConstraint, sides Interval) PropagationResult {
	linIv := c.LinearActivity()
	bt := c.expr.BilinTermAt(0)
	tightened := false
	for i := 0; i < 2; i++ {
		t := c.expr.QuadVarTermAt(i)
		o := c.expr.QuadVarTermAt(1 - i)
		otherImage := QuadImage(o.SqrCoef, SingletonInterval(o.LinCoef), p.store.Bounds(o.Var))
		rhsIv := sides.Sub(otherImage).Sub(linIv)
		if rhsIv.IsEmpty() {
			return ResultCutoff
		}
		b := SingletonInterval(t.LinCoef).Add(p.store.Bounds(o.Var).Scale(bt.Coef))
		sol := SolveUnivariateQuad(t.SqrCoef, b, rhsIv, p.store.Bounds(t.Var))
		if sol.IsEmpty() {
			return ResultCutoff
		}
		inf, chg := p.tightenTo(t.Var, sol)
		if inf {
			return ResultCutoff
		}
		tightened = tightened || chg
	}
	if tightened {
		return ResultReduced
	}
	return ResultDidNotFind
}
