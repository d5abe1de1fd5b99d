package quadprop

// cuts.go: linear outer-approximation cuts.
//
// Every cut is produced in the normalized form sum(coef*x) <= rhs. A
// violated right-hand side is separated with a linear underestimator of
// the constraint function; a violated left-hand side is the same
// problem for the negated function, so one builder serves both sides.
//
// The underestimator is the whole-function tangent when the function is
// convex (globally valid), and otherwise a sum of per-term envelopes:
// tangents for convex square terms, secants for concave ones, McCormick
// facets for bilinear products. Envelope pieces depend on the current
// variable domains, so those cuts are only locally valid.

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Cut is a linear inequality sum(Coefs[i]*Vars[i]) <= Rhs derived from
// a quadratic constraint.
type Cut struct {
	Name  string
	Vars  []Var
	Coefs []float64
	Rhs   float64

	// IsGlobal reports whether the cut is valid for the whole problem
	// or only under the variable bounds it was derived from.
	IsGlobal bool

	// Efficacy is the violation of the generating reference point
	// scaled by the largest coefficient magnitude.
	Efficacy float64
}

// Violation returns by how much the point violates the cut. Missing
// variables evaluate as zero.
func (ct *Cut) Violation(point map[Var]float64) float64 {
	act := 0.0
	for i, v := range ct.Vars {
		act += ct.Coefs[i] * point[v]
	}
	return act - ct.Rhs
}

// String returns a short description.
func (ct *Cut) String() string {
	scope := "local"
	if ct.IsGlobal {
		scope = "global"
	}
	return fmt.Sprintf("Cut(%s: %d terms <= %g, %s, efficacy %g)",
		ct.Name, len(ct.Vars), ct.Rhs, scope, ct.Efficacy)
}

// RowSink receives generated cuts. The separation loop of a surrounding
// solver implements it; cut pool and LP row management stay on that
// side of the boundary.
type RowSink interface {
	AddCut(cut *Cut) error
}

// CutGenerator separates violated quadratic constraints with linear
// cuts.
type CutGenerator struct {
	cfg     Config
	store   VarStore
	monitor *PropagationMonitor
}

// NewCutGenerator creates a generator over the given store.
func NewCutGenerator(cfg Config, store VarStore) *CutGenerator {
	return &CutGenerator{cfg: cfg, store: store}
}

// SetMonitor attaches a statistics monitor. Optional.
func (g *CutGenerator) SetMonitor(m *PropagationMonitor) { g.monitor = m }

// cutBuilder accumulates coefficients and the constant offset of a
// linear underestimator g(x) = sum(coef*x) + g0 with g <= f on the
// relevant domain.
type cutBuilder struct {
	coefs map[Var]float64
	g0    float64
	local bool
	fail  bool
}

func newCutBuilder() *cutBuilder {
	return &cutBuilder{coefs: make(map[Var]float64)}
}

func (b *cutBuilder) add(v Var, coef float64) { b.coefs[v] += coef }

// Separate generates a cut for the constraint if the point violates it,
// and hands an accepted cut to the sink. It returns the cut (nil when
// none was produced) so callers without a sink can inspect it directly.
func (g *CutGenerator) Separate(c *QuadConstraint, point map[Var]float64, ca *CurvatureAnalyzer, sink RowSink) (*Cut, error) {
	if g.monitor != nil {
		g.monitor.StartSeparation()
		defer g.monitor.EndSeparation()
	}
	_, side := c.Violation(point)
	if side == ViolatedNone {
		return nil, nil
	}
	cut := g.generate(c, point, c.Curvature(ca), side)
	if cut == nil {
		if g.monitor != nil {
			g.monitor.RecordCutRejected()
		}
		return nil, nil
	}
	if g.monitor != nil {
		g.monitor.RecordCut()
	}
	if sink != nil {
		if err := sink.AddCut(cut); err != nil {
			return cut, err
		}
	}
	return cut, nil
}

// generate builds the cut for one violated side. The left-hand side is
// handled by negating the function: lhs <= f is -f <= -lhs.
func (g *CutGenerator) generate(c *QuadConstraint, point map[Var]float64, cv Curvature, side ViolatedSide) *Cut {
	c.expr.MergeLinear()
	c.expr.MergeQuadVars(g.store)
	c.expr.MergeBilinear()

	sign := 1.0
	rhs := c.rhs
	tangentOK := cv.Checked && cv.Convex
	if side == ViolatedLhs {
		sign = -1.0
		rhs = -c.lhs
		tangentOK = cv.Checked && cv.Concave
	}
	if g.cfg.IsInfinity(rhs) {
		return nil
	}

	// Reference point, projected into the domains so envelope pieces
	// are evaluated where they are valid.
	ref := make(map[Var]float64, len(point))
	collect := func(v Var) {
		if _, ok := ref[v]; !ok {
			ref[v] = c.projectIntoBounds(v, point[v])
		}
	}
	for i := 0; i < c.expr.NumLinear(); i++ {
		collect(c.expr.LinearTermAt(i).Var)
	}
	for i := 0; i < c.expr.NumQuadVars(); i++ {
		collect(c.expr.QuadVarTermAt(i).Var)
	}

	b := newCutBuilder()
	for i := 0; i < c.expr.NumLinear(); i++ {
		t := c.expr.LinearTermAt(i)
		b.add(t.Var, sign*t.Coef)
	}
	if tangentOK {
		g.buildTangent(c, b, sign, ref)
	} else {
		g.buildEnvelope(c, b, sign, ref)
	}
	if b.fail {
		return nil
	}
	return g.finish(c, b, rhs, ref, side)
}

// buildTangent linearizes the whole quadratic part at the reference
// point. Valid because sign*f is convex. Separable integer variables
// with a fractional reference get the integer secant of their parabola
// instead of the tangent, which is tighter and still globally valid
// over the integers.
func (g *CutGenerator) buildTangent(c *QuadConstraint, b *cutBuilder, sign float64, ref map[Var]float64) {
	for i := 0; i < c.expr.NumQuadVars(); i++ {
		t := c.expr.QuadVarTermAt(i)
		a := sign * t.SqrCoef
		lin := sign * t.LinCoef
		r := ref[t.Var]
		if g.cfg.IsInfinity(r) {
			b.fail = true
			return
		}
		if a >= 0 && len(t.adjacency) == 0 && g.store.Type(t.Var) != VarContinuous && !g.isIntegral(r) {
			g.addIntegerSecant(b, t.Var, a, lin, r)
			continue
		}
		b.add(t.Var, 2*a*r+lin)
		b.g0 -= a * r * r
	}
	for i := 0; i < c.expr.NumBilinear(); i++ {
		t := c.expr.BilinTermAt(i)
		cc := sign * t.Coef
		rx, ry := ref[t.Var1], ref[t.Var2]
		b.add(t.Var1, cc*ry)
		b.add(t.Var2, cc*rx)
		b.g0 -= cc * rx * ry
	}
}

// buildEnvelope sums per-term underestimators: tangent for convex
// square terms, secant for concave ones, a McCormick facet per bilinear
// product. Secants and McCormick facets need the involved bounds to be
// finite.
func (g *CutGenerator) buildEnvelope(c *QuadConstraint, b *cutBuilder, sign float64, ref map[Var]float64) {
	for i := 0; i < c.expr.NumQuadVars(); i++ {
		t := c.expr.QuadVarTermAt(i)
		a := sign * t.SqrCoef
		lin := sign * t.LinCoef
		r := ref[t.Var]
		switch {
		case a == 0:
			b.add(t.Var, lin)
		case a > 0:
			if g.store.Type(t.Var) != VarContinuous && !g.isIntegral(r) {
				g.addIntegerSecant(b, t.Var, a, lin, r)
				continue
			}
			b.add(t.Var, 2*a*r+lin)
			b.g0 -= a * r * r
		default:
			// a*x^2 with a < 0 is concave; its secant over [lb, ub] is
			// the underestimator a*(lb+ub)*x - a*lb*ub.
			lb := g.store.LowerBound(t.Var)
			ub := g.store.UpperBound(t.Var)
			if g.cfg.IsInfinity(lb) || g.cfg.IsInfinity(ub) {
				b.fail = true
				return
			}
			b.add(t.Var, a*(lb+ub)+lin)
			b.g0 -= a * lb * ub
			b.local = true
		}
	}
	for i := 0; i < c.expr.NumBilinear(); i++ {
		t := c.expr.BilinTermAt(i)
		if !g.addMcCormick(b, sign*t.Coef, t.Var1, t.Var2, ref) {
			b.fail = true
			return
		}
	}
}

// addIntegerSecant adds the chord of a*x^2 + lin*x through the two
// integers around the fractional reference. For integer x the chord of
// a convex parabola never exceeds the function, so the piece is valid
// everywhere, not just under the current bounds.
func (g *CutGenerator) addIntegerSecant(b *cutBuilder, v Var, a, lin, r float64) {
	f := math.Floor(r)
	b.add(v, a*(2*f+1)+lin)
	b.g0 -= a * f * (f + 1)
}

// addMcCormick adds one facet of the McCormick envelope of cc*x*y,
// chosen as the facet the reference point is closest to. Returns false
// when a needed bound is infinite.
func (g *CutGenerator) addMcCormick(b *cutBuilder, cc float64, x, y Var, ref map[Var]float64) bool {
	if cc == 0 {
		return true
	}
	lx, ux := g.store.LowerBound(x), g.store.UpperBound(x)
	ly, uy := g.store.LowerBound(y), g.store.UpperBound(y)
	if g.cfg.IsInfinity(lx) || g.cfg.IsInfinity(ux) || g.cfg.IsInfinity(ly) || g.cfg.IsInfinity(uy) {
		return false
	}
	rx, ry := ref[x], ref[y]
	var px, py float64
	if cc > 0 {
		// Underestimators of x*y touch at (lx,ly) and (ux,uy). The
		// reference sits on the (lx,ly) facet's side of the diagonal
		// when rx*(uy-ly) + ry*(ux-lx) <= ux*uy - lx*ly.
		if rx*(uy-ly)+ry*(ux-lx) <= ux*uy-lx*ly {
			px, py = lx, ly
		} else {
			px, py = ux, uy
		}
	} else {
		// cc < 0 flips the envelope side: use the overestimator facets
		// of x*y, touching at (lx,uy) and (ux,ly).
		if rx*(uy-ly)-ry*(ux-lx) <= lx*uy-ux*ly {
			px, py = lx, uy
		} else {
			px, py = ux, ly
		}
	}
	b.add(x, cc*py)
	b.add(y, cc*px)
	b.g0 -= cc * px * py
	b.local = true
	return true
}

// finish converts the accumulated underestimator into a cut, enforces
// numerical quality, and computes the efficacy. The cut inequality is
// sum(coef*x) <= rhs - g0.
func (g *CutGenerator) finish(c *QuadConstraint, b *cutBuilder, rhs float64, ref map[Var]float64, side ViolatedSide) *Cut {
	cutRhs := rhs - b.g0

	vars := make([]Var, 0, len(b.coefs))
	for v, coef := range b.coefs {
		if g.cfg.IsZero(coef) {
			continue
		}
		vars = append(vars, v)
	}
	if len(vars) == 0 {
		return nil
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	coefs := make([]float64, len(vars))
	refs := make([]float64, len(vars))
	for i, v := range vars {
		coefs[i] = b.coefs[v]
		refs[i] = ref[v]
	}

	vars, coefs, refs, cutRhs, ok := g.controlCoefRange(vars, coefs, refs, cutRhs, &b.local)
	if !ok {
		return nil
	}
	maxAbs := floats.Norm(coefs, math.Inf(1))
	if maxAbs >= g.cfg.Infinity || math.Abs(cutRhs) >= g.cfg.Infinity ||
		math.IsNaN(maxAbs) || math.IsNaN(cutRhs) {
		return nil
	}

	viol := floats.Dot(coefs, refs) - cutRhs
	efficacy := viol / math.Max(1, maxAbs)
	if efficacy < g.cfg.MinCutEfficacy {
		return nil
	}

	kind := "under"
	if side == ViolatedLhs {
		kind = "over"
	}
	return &Cut{
		Name:     fmt.Sprintf("%s_%s", c.Name(), kind),
		Vars:     vars,
		Coefs:    coefs,
		Rhs:      cutRhs,
		IsGlobal: !b.local,
		Efficacy: efficacy,
	}
}

// controlCoefRange keeps the ratio of largest to smallest coefficient
// magnitude below the configured limit by substituting small
// coefficients at a bound. For a <=-inequality, c*x with c > 0
// contributes at least c*lb, so replacing the term by c*lb relaxes the
// cut and keeps it valid; c < 0 symmetrically folds at the upper bound.
// Coefficients are eliminated smallest first; an infinite bound on a
// coefficient that would have to go abandons the cut.
func (g *CutGenerator) controlCoefRange(vars []Var, coefs, refs []float64, cutRhs float64, local *bool) ([]Var, []float64, []float64, float64, bool) {
	order := make([]int, len(coefs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return math.Abs(coefs[order[i]]) < math.Abs(coefs[order[j]])
	})
	maxAbs := floats.Norm(coefs, math.Inf(1))
	drop := make(map[int]bool)
	for _, idx := range order {
		small := math.Abs(coefs[idx])
		if small*g.cfg.MaxCutCoefRange >= maxAbs {
			break
		}
		bound := g.store.LowerBound(vars[idx])
		if coefs[idx] < 0 {
			bound = g.store.UpperBound(vars[idx])
		}
		if g.cfg.IsInfinity(bound) {
			return nil, nil, nil, 0, false
		}
		cutRhs -= coefs[idx] * bound
		drop[idx] = true
		*local = true
	}
	if len(drop) == 0 {
		return vars, coefs, refs, cutRhs, true
	}
	outV := vars[:0]
	outC := coefs[:0]
	outR := refs[:0]
	for i := range vars {
		if drop[i] {
			continue
		}
		outV = append(outV, vars[i])
		outC = append(outC, coefs[i])
		outR = append(outR, refs[i])
	}
	if len(outV) == 0 {
		return nil, nil, nil, 0, false
	}
	return outV, outC, outR, cutRhs, true
}

// isIntegral reports whether a value is integral within the feasibility
// tolerance.
func (g *CutGenerator) isIntegral(v float64) bool {
	return math.Abs(v-math.Round(v)) <= g.cfg.FeasTol
}
