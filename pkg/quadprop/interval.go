package quadprop

// interval.go: directed-rounding interval arithmetic.
//
// Go exposes no control over the FPU rounding mode, so soundness is
// obtained by outward ulp-widening: every arithmetic result is nudged
// one ulp toward -Inf for lower endpoints and one ulp toward +Inf for
// upper endpoints. The resulting intervals are therefore always outer
// approximations of the exact real-arithmetic result, which is the
// property bound propagation relies on (a bound may be slightly weaker
// than exact, never stronger).
//
// Conventions:
//   - An interval with Inf > Sup is empty.
//   - Infinite endpoints are represented by math.Inf; the practical
//     Infinity threshold from Config is applied by the callers, not
//     here.
//   - Multiplication uses the convention 0 * inf = 0, which is the
//     correct convention for activity sums (a zero coefficient
//     contributes nothing regardless of the variable's domain).

import "math"

// Interval is a closed real interval [Inf, Sup].
type Interval struct {
	Inf float64
	Sup float64
}

// NewInterval returns the interval [inf, sup].
func NewInterval(inf, sup float64) Interval {
	return Interval{Inf: inf, Sup: sup}
}

// EntireInterval returns (-inf, +inf).
func EntireInterval() Interval {
	return Interval{Inf: math.Inf(-1), Sup: math.Inf(1)}
}

// EmptyInterval returns a canonical empty interval.
func EmptyInterval() Interval {
	return Interval{Inf: 1, Sup: -1}
}

// SingletonInterval returns [v, v].
func SingletonInterval(v float64) Interval {
	return Interval{Inf: v, Sup: v}
}

// IsEmpty reports whether the interval contains no point.
func (iv Interval) IsEmpty() bool {
	return iv.Inf > iv.Sup
}

// Contains reports whether v lies in the interval.
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Inf && v <= iv.Sup
}

// ContainsInterval reports whether other is a subset of iv. An empty
// other is a subset of everything.
func (iv Interval) ContainsInterval(other Interval) bool {
	if other.IsEmpty() {
		return true
	}
	return other.Inf >= iv.Inf && other.Sup <= iv.Sup
}

// Intersect returns the intersection of two intervals.
func (iv Interval) Intersect(other Interval) Interval {
	return Interval{Inf: math.Max(iv.Inf, other.Inf), Sup: math.Min(iv.Sup, other.Sup)}
}

// Hull returns the convex hull of two intervals, ignoring empty inputs.
func (iv Interval) Hull(other Interval) Interval {
	if iv.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return iv
	}
	return Interval{Inf: math.Min(iv.Inf, other.Inf), Sup: math.Max(iv.Sup, other.Sup)}
}

// Neg returns -iv.
func (iv Interval) Neg() Interval {
	if iv.IsEmpty() {
		return iv
	}
	return Interval{Inf: -iv.Sup, Sup: -iv.Inf}
}

// roundDown nudges a finite value one ulp toward -inf.
func roundDown(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Nextafter(v, math.Inf(-1))
}

// roundUp nudges a finite value one ulp toward +inf.
func roundUp(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Nextafter(v, math.Inf(1))
}

// addDown returns a+b rounded toward -inf. inf + (-inf) cannot occur in
// well-formed activity sums; it is mapped to -inf to stay conservative.
func addDown(a, b float64) float64 {
	s := a + b
	if math.IsNaN(s) {
		return math.Inf(-1)
	}
	return roundDown(s)
}

// addUp returns a+b rounded toward +inf.
func addUp(a, b float64) float64 {
	s := a + b
	if math.IsNaN(s) {
		return math.Inf(1)
	}
	return roundUp(s)
}

// mulDown returns a*b rounded toward -inf, with 0*inf = 0.
func mulDown(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if math.IsNaN(p) {
		return math.Inf(-1)
	}
	return roundDown(p)
}

// mulUp returns a*b rounded toward +inf, with 0*inf = 0.
func mulUp(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if math.IsNaN(p) {
		return math.Inf(1)
	}
	return roundUp(p)
}

// Add returns iv + other with outward rounding.
func (iv Interval) Add(other Interval) Interval {
	if iv.IsEmpty() || other.IsEmpty() {
		return EmptyInterval()
	}
	return Interval{Inf: addDown(iv.Inf, other.Inf), Sup: addUp(iv.Sup, other.Sup)}
}

// Sub returns iv - other with outward rounding.
func (iv Interval) Sub(other Interval) Interval {
	return iv.Add(other.Neg())
}

// AddScalar returns iv + v with outward rounding.
func (iv Interval) AddScalar(v float64) Interval {
	if iv.IsEmpty() {
		return iv
	}
	return Interval{Inf: addDown(iv.Inf, v), Sup: addUp(iv.Sup, v)}
}

// Scale returns c * iv with outward rounding.
func (iv Interval) Scale(c float64) Interval {
	if iv.IsEmpty() {
		return iv
	}
	if c == 0 {
		return SingletonInterval(0)
	}
	if c > 0 {
		return Interval{Inf: mulDown(c, iv.Inf), Sup: mulUp(c, iv.Sup)}
	}
	return Interval{Inf: mulDown(c, iv.Sup), Sup: mulUp(c, iv.Inf)}
}

// Mul returns the interval product iv * other with outward rounding.
func (iv Interval) Mul(other Interval) Interval {
	if iv.IsEmpty() || other.IsEmpty() {
		return EmptyInterval()
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, a := range [2]float64{iv.Inf, iv.Sup} {
		for _, b := range [2]float64{other.Inf, other.Sup} {
			lo = math.Min(lo, mulDown(a, b))
			hi = math.Max(hi, mulUp(a, b))
		}
	}
	return Interval{Inf: lo, Sup: hi}
}

// Div returns an outer approximation of iv / other. If other contains
// zero the result is the entire line (the conservative choice for a
// propagation context; callers that need the two-piece result split
// the domain by sign first).
func (iv Interval) Div(other Interval) Interval {
	if iv.IsEmpty() || other.IsEmpty() {
		return EmptyInterval()
	}
	if other.Contains(0) {
		return EntireInterval()
	}
	inv := Interval{Inf: roundDown(1 / other.Sup), Sup: roundUp(1 / other.Inf)}
	return iv.Mul(inv)
}

// Square returns the image of x^2 over iv with outward rounding.
func (iv Interval) Square() Interval {
	if iv.IsEmpty() {
		return iv
	}
	switch {
	case iv.Inf >= 0:
		return Interval{Inf: mulDown(iv.Inf, iv.Inf), Sup: mulUp(iv.Sup, iv.Sup)}
	case iv.Sup <= 0:
		return Interval{Inf: mulDown(iv.Sup, iv.Sup), Sup: mulUp(iv.Inf, iv.Inf)}
	default:
		m := math.Max(mulUp(iv.Inf, iv.Inf), mulUp(iv.Sup, iv.Sup))
		return Interval{Inf: 0, Sup: m}
	}
}

// evalQuadAt returns an outer approximation of {a*t^2 + u*t : u in b}
// for a fixed scalar t.
func evalQuadAt(a float64, b Interval, t float64) Interval {
	s := a * t * t
	sq := Interval{Inf: roundDown(roundDown(s)), Sup: roundUp(roundUp(s))}
	return sq.Add(b.Scale(t))
}

// QuadImage returns an outer approximation of the image
//
//	{ a*t^2 + u*t : t in x, u in b }
//
// i.e. the range of a univariate quadratic whose linear coefficient is
// only known as an interval. This is the primitive behind quadratic
// activity computation: the linear coefficient interval absorbs the
// contributions of bilinear partner variables.
//
// The extrema of the upper envelope a*t^2 + max(b.Inf*t, b.Sup*t) and
// lower envelope a*t^2 + min(b.Inf*t, b.Sup*t) over x are attained at
// the endpoints of x, at t = 0 (the envelope kink), or at the vertices
// of the four envelope parabolas; evaluating that candidate set yields
// the exact range up to rounding.
func QuadImage(a float64, b Interval, x Interval) Interval {
	if x.IsEmpty() || b.IsEmpty() {
		return EmptyInterval()
	}
	res := EmptyInterval()

	// Asymptotic contributions of unbounded domain edges.
	if math.IsInf(x.Inf, -1) {
		switch {
		case a > 0:
			res = res.Hull(SingletonInterval(math.Inf(1)))
		case a < 0:
			res = res.Hull(SingletonInterval(math.Inf(-1)))
		default:
			if b.Inf < 0 {
				res = res.Hull(SingletonInterval(math.Inf(1)))
			}
			if b.Sup > 0 {
				res = res.Hull(SingletonInterval(math.Inf(-1)))
			}
		}
	}
	if math.IsInf(x.Sup, 1) {
		switch {
		case a > 0:
			res = res.Hull(SingletonInterval(math.Inf(1)))
		case a < 0:
			res = res.Hull(SingletonInterval(math.Inf(-1)))
		default:
			if b.Sup > 0 {
				res = res.Hull(SingletonInterval(math.Inf(1)))
			}
			if b.Inf < 0 {
				res = res.Hull(SingletonInterval(math.Inf(-1)))
			}
		}
	}

	candidates := make([]float64, 0, 6)
	if !math.IsInf(x.Inf, 0) {
		candidates = append(candidates, x.Inf)
	}
	if !math.IsInf(x.Sup, 0) {
		candidates = append(candidates, x.Sup)
	}
	if x.Contains(0) {
		candidates = append(candidates, 0)
	}
	if a != 0 {
		for _, c := range [2]float64{b.Inf, b.Sup} {
			if math.IsInf(c, 0) {
				continue
			}
			v := -c / (2 * a)
			if x.Contains(v) {
				candidates = append(candidates, v)
			}
		}
	}
	for _, t := range candidates {
		res = res.Hull(evalQuadAt(a, b, t))
	}
	return res
}

// quadRoots returns the real roots r1 <= r2 of a*x^2 + c*x + q = 0 for
// a != 0, widened outward by one ulp on each side. ok is false when the
// discriminant is negative.
func quadRoots(a, c, q float64) (r1, r2 float64, ok bool) {
	// Upper bound of the discriminant, so a near-tangent case whose
	// naive value rounds marginally negative still yields its roots
	// instead of an empty (unsound) solution set.
	disc := addUp(mulUp(c, c), -mulDown(4*a, q))
	if disc < 0 {
		return 0, 0, false
	}
	sq := math.Sqrt(disc)
	var p float64
	if c >= 0 {
		p = -(c + sq) / 2
	} else {
		p = -(c - sq) / 2
	}
	var x1, x2 float64
	x1 = p / a
	if p != 0 {
		x2 = q / p
	} else {
		x2 = 0
	}
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	return roundDown(x1), roundUp(x2), true
}

// solveQuadUpperPositive returns the hull of {x >= 0 : a*x^2 + c*x <= d}.
func solveQuadUpperPositive(a, c, d float64) Interval {
	if math.IsInf(d, 1) {
		return Interval{Inf: 0, Sup: math.Inf(1)}
	}
	if a == 0 {
		switch {
		case c > 0:
			if d < 0 {
				return EmptyInterval()
			}
			return Interval{Inf: 0, Sup: roundUp(d / c)}
		case c < 0:
			if d >= 0 {
				return Interval{Inf: 0, Sup: math.Inf(1)}
			}
			return Interval{Inf: math.Max(0, roundDown(d/c)), Sup: math.Inf(1)}
		default:
			if d >= 0 {
				return Interval{Inf: 0, Sup: math.Inf(1)}
			}
			return EmptyInterval()
		}
	}
	r1, r2, ok := quadRoots(a, c, -d)
	if a > 0 {
		// Solution set is [r1, r2] when real roots exist, else empty.
		if !ok || r2 < 0 {
			return EmptyInterval()
		}
		return Interval{Inf: math.Max(0, r1), Sup: r2}
	}
	// a < 0: parabola opens downward, solution set is the complement of
	// the open root interval. The hull over x >= 0 collapses the gap;
	// that is a sound outer approximation.
	if !ok {
		return Interval{Inf: 0, Sup: math.Inf(1)}
	}
	if r1 > 0 {
		return Interval{Inf: 0, Sup: math.Inf(1)}
	}
	if r2 <= 0 {
		return Interval{Inf: 0, Sup: math.Inf(1)}
	}
	return Interval{Inf: r2, Sup: math.Inf(1)}
}

// solveQuadLowerPositive returns the hull of {x >= 0 : a*x^2 + c*x >= d}.
func solveQuadLowerPositive(a, c, d float64) Interval {
	return solveQuadUpperPositive(-a, -c, -d)
}

// solveQuadPositive returns the hull of nonnegative x with
// a*x^2 + u*x in rhs possible for some u in b.
func solveQuadPositive(a float64, b, rhs Interval) Interval {
	// The reachable value set at x >= 0 is [a x^2 + b.Inf x, a x^2 + b.Sup x];
	// it meets rhs iff the upper envelope reaches rhs.Inf and the lower
	// envelope stays below rhs.Sup.
	upper := solveQuadUpperPositive(a, b.Inf, rhs.Sup)
	lower := solveQuadLowerPositive(a, b.Sup, rhs.Inf)
	return upper.Intersect(lower)
}

// SolveUnivariateQuad returns an outer approximation of
//
//	{ x in xbnds : exists u in b with a*x^2 + u*x in rhs }
//
// the solution set of an interval quadratic inequality. An empty result
// proves that no value in xbnds can satisfy the constraint, i.e.
// infeasibility of the enclosing propagation step.
//
// The domain is split at zero: on each sign branch the envelope
// monotonicity is known, so the scalar sub-solvers can round their root
// computations outward correctly. The negative branch is solved by
// mirroring (y = -x flips the sign of the linear coefficient interval).
func SolveUnivariateQuad(a float64, b, rhs, xbnds Interval) Interval {
	if xbnds.IsEmpty() || rhs.IsEmpty() {
		return EmptyInterval()
	}
	if a == 0 && b.Inf == 0 && b.Sup == 0 {
		// Pure feasibility check: the term contributes exactly zero.
		if rhs.Contains(0) {
			return xbnds
		}
		return EmptyInterval()
	}

	res := EmptyInterval()
	if xbnds.Sup >= 0 {
		pos := solveQuadPositive(a, b, rhs)
		pos = pos.Intersect(Interval{Inf: math.Max(0, xbnds.Inf), Sup: xbnds.Sup})
		res = res.Hull(pos)
	}
	if xbnds.Inf < 0 {
		neg := solveQuadPositive(a, b.Neg(), rhs)
		neg = neg.Intersect(Interval{Inf: math.Max(0, -xbnds.Sup), Sup: -xbnds.Inf})
		if !neg.IsEmpty() {
			res = res.Hull(neg.Neg())
		}
	}
	return res
}
