package quadprop

// activity.go: activity tracking for the linear and quadratic parts.
//
// Linear activity is event-driven: a full directed-rounding summation
// establishes the cache, after which single bound changes adjust the
// relevant side in O(1) with per-adjustment rounding, so the cache is
// never tighter than a fresh recomputation. Infinite bound
// contributions are counted, not summed; while a counter is positive
// the numeric sum on that side is meaningless.
//
// Quadratic activity is recomputed on demand from interval images. Each
// bilinear term is absorbed into the contribution of its canonical
// first variable, so the per-term contributions partition the quadratic
// function exactly and their interval sum is an outer approximation of
// its range. Truly unbounded contributions enter the aggregate as the
// finite SoftInfinity sentinel; separate counters record how many there
// are per side so residual computations can reconstruct the
// one-infinite-contributor case.

import "math"

// UpdateLinearActivity establishes the linear activity cache. It is a
// no-op while the cache is valid and internally consistent. The minimum
// activity is only tracked when rhs is finite (it is irrelevant
// otherwise and reads as -Inf); the maximum only when lhs is finite.
func (c *QuadConstraint) UpdateLinearActivity() {
	if c.linActValid && c.minLinInf >= 0 && c.maxLinInf >= 0 &&
		(c.minLinInf > 0 || c.maxLinInf > 0 || c.minLinAct <= c.maxLinAct || c.expr.NumLinear() == 0) {
		return
	}
	c.minLinAct, c.maxLinAct = 0, 0
	c.minLinInf, c.maxLinInf = 0, 0
	c.expr.MergeLinear()
	needMin := !c.cfg.IsInfinity(c.rhs)
	needMax := !c.cfg.IsInfinity(c.lhs)
	for i := 0; i < c.expr.NumLinear(); i++ {
		t := c.expr.LinearTermAt(i)
		lb := c.store.LowerBound(t.Var)
		ub := c.store.UpperBound(t.Var)
		if needMin {
			bnd := lb
			if t.Coef < 0 {
				bnd = ub
			}
			if c.cfg.IsInfinity(bnd) {
				c.minLinInf++
			} else {
				c.minLinAct = addDown(c.minLinAct, mulDown(t.Coef, bnd))
			}
		}
		if needMax {
			bnd := ub
			if t.Coef < 0 {
				bnd = lb
			}
			if c.cfg.IsInfinity(bnd) {
				c.maxLinInf++
			} else {
				c.maxLinAct = addUp(c.maxLinAct, mulUp(t.Coef, bnd))
			}
		}
	}
	c.linActValid = true
}

// LinearActivity returns the current linear activity interval. The
// cache must have been refreshed by UpdateLinearActivity. A side with
// infinite contributions, or a side that is not tracked because the
// opposing constraint side is infinite, reads as unbounded.
func (c *QuadConstraint) LinearActivity() Interval {
	lo := math.Inf(-1)
	hi := math.Inf(1)
	if !c.cfg.IsInfinity(c.rhs) && c.minLinInf == 0 {
		lo = c.minLinAct
	}
	if !c.cfg.IsInfinity(c.lhs) && c.maxLinInf == 0 {
		hi = c.maxLinAct
	}
	return Interval{Inf: lo, Sup: hi}
}

// OnBoundChanged implements BoundObserver: it incrementally updates the
// linear activity cache for the changed variable and marks the
// constraint for re-propagation. Quadratic activity is invalidated, not
// adjusted; it is interval-based and recomputed on demand.
func (c *QuadConstraint) OnBoundChanged(v Var, kind BoundKind, oldBound, newBound float64) {
	c.propagated = false
	c.quadActValid = false
	if !c.linActValid {
		return
	}
	pos, ok := c.expr.FindLinear(v)
	if !ok {
		return
	}
	coef := c.expr.LinearTermAt(pos).Coef

	// A lower bound feeds the minimum for positive coefficients and the
	// maximum for negative ones; upper bounds mirror that.
	minSide := (kind == LowerBoundKind) == (coef > 0)
	if minSide {
		if c.cfg.IsInfinity(c.rhs) {
			return // minimum not tracked
		}
		if c.cfg.IsInfinity(oldBound) {
			c.minLinInf--
		} else {
			c.minLinAct = addDown(c.minLinAct, -mulUp(coef, oldBound))
		}
		if c.cfg.IsInfinity(newBound) {
			c.minLinInf++
		} else {
			c.minLinAct = addDown(c.minLinAct, mulDown(coef, newBound))
		}
		return
	}
	if c.cfg.IsInfinity(c.lhs) {
		return // maximum not tracked
	}
	if c.cfg.IsInfinity(oldBound) {
		c.maxLinInf--
	} else {
		c.maxLinAct = addUp(c.maxLinAct, -mulDown(coef, oldBound))
	}
	if c.cfg.IsInfinity(newBound) {
		c.maxLinInf++
	} else {
		c.maxLinAct = addUp(c.maxLinAct, mulUp(coef, newBound))
	}
}

// bilinLinCoef returns the interval linear coefficient of the variable
// at quadratic position pos, absorbing the bilinear partner domains.
// When firstOnly is set, only terms canonically assigned to this
// variable (it being Var1) are absorbed; that is the activity
// partitioning convention. Propagation solving for this variable
// absorbs the same subset so no term is counted twice against the
// residual.
func (c *QuadConstraint) bilinLinCoef(pos int, firstOnly bool) Interval {
	t := c.expr.QuadVarTermAt(pos)
	b := SingletonInterval(t.LinCoef)
	for _, bi := range t.adjacency {
		bt := c.expr.BilinTermAt(bi)
		partner := bt.Var2
		if bt.Var1 != t.Var {
			if firstOnly {
				continue
			}
			partner = bt.Var1
		}
		b = b.Add(c.store.Bounds(partner).Scale(bt.Coef))
	}
	return b
}

// ComputeQuadActivity refreshes the quadratic activity cache: the exact
// interval image of each quadratic variable's partition of the
// function, aggregated with soft-infinity substitution.
func (c *QuadConstraint) ComputeQuadActivity() {
	if c.quadActValid {
		return
	}
	c.expr.MergeQuadVars(nil)
	c.expr.MergeBilinear()
	n := c.expr.NumQuadVars()
	if cap(c.quadContrib) < n {
		c.quadContrib = make([]Interval, n)
	}
	c.quadContrib = c.quadContrib[:n]
	c.quadMinInf, c.quadMaxInf = 0, 0
	lo, hi := 0.0, 0.0
	for i := 0; i < n; i++ {
		t := c.expr.QuadVarTermAt(i)
		b := c.bilinLinCoef(i, true)
		img := QuadImage(t.SqrCoef, b, c.store.Bounds(t.Var))
		c.quadContrib[i] = img
		if img.Inf <= -c.cfg.Infinity || math.IsInf(img.Inf, -1) {
			c.quadMinInf++
			lo = addDown(lo, -c.cfg.SoftInfinity)
		} else {
			lo = addDown(lo, img.Inf)
		}
		if img.Sup >= c.cfg.Infinity || math.IsInf(img.Sup, 1) {
			c.quadMaxInf++
			hi = addUp(hi, c.cfg.SoftInfinity)
		} else {
			hi = addUp(hi, img.Sup)
		}
	}
	c.quadAct = Interval{Inf: lo, Sup: hi}
	c.quadActValid = true
}

// QuadActivity returns the quadratic activity interval with genuine
// infinities restored: a side with any unbounded contribution reads as
// unbounded. The cache must have been refreshed by ComputeQuadActivity.
func (c *QuadConstraint) QuadActivity() Interval {
	lo := c.quadAct.Inf
	hi := c.quadAct.Sup
	if c.quadMinInf > 0 {
		lo = math.Inf(-1)
	}
	if c.quadMaxInf > 0 {
		hi = math.Inf(1)
	}
	return Interval{Inf: lo, Sup: hi}
}

// TotalActivity returns linear plus quadratic activity. Both caches
// must be fresh.
func (c *QuadConstraint) TotalActivity() Interval {
	return c.LinearActivity().Add(c.QuadActivity())
}

// quadResidual returns an outer approximation of the quadratic activity
// excluding the contribution of the quadratic term at position pos,
// distinguishing the zero / one / many unbounded-contributor cases per
// side: with exactly one unbounded contributor, and it is this term,
// the residual is the finite remainder; with any other unbounded
// contributor the residual side is unbounded and no deduction is
// possible from it.
func (c *QuadConstraint) quadResidual(pos int) Interval {
	contrib := c.quadContrib[pos]
	lo := math.Inf(-1)
	hi := math.Inf(1)
	contribMinInf := contrib.Inf <= -c.cfg.Infinity || math.IsInf(contrib.Inf, -1)
	contribMaxInf := contrib.Sup >= c.cfg.Infinity || math.IsInf(contrib.Sup, 1)
	switch {
	case c.quadMinInf == 0:
		lo = addDown(c.quadAct.Inf, -roundUp(contrib.Inf))
	case c.quadMinInf == 1 && contribMinInf:
		lo = addDown(c.quadAct.Inf, c.cfg.SoftInfinity)
	}
	switch {
	case c.quadMaxInf == 0:
		hi = addUp(c.quadAct.Sup, -roundDown(contrib.Sup))
	case c.quadMaxInf == 1 && contribMaxInf:
		hi = addUp(c.quadAct.Sup, -c.cfg.SoftInfinity)
	}
	return Interval{Inf: lo, Sup: hi}
}
