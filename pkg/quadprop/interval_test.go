package quadprop

import (
	"math"
	"testing"
)

// matches reports endpoint equality within tol, treating infinities of
// the same sign as equal.
func matches(got, want, tol float64) bool {
	if math.IsInf(want, 0) || math.IsInf(got, 0) {
		return got == want
	}
	return math.Abs(got-want) <= tol
}

func checkInterval(t *testing.T, name string, got, want Interval, tol float64) {
	t.Helper()
	if want.IsEmpty() {
		if !got.IsEmpty() {
			t.Errorf("%s: got %v, want empty", name, got)
		}
		return
	}
	if !matches(got.Inf, want.Inf, tol) || !matches(got.Sup, want.Sup, tol) {
		t.Errorf("%s: got [%g, %g], want [%g, %g]", name, got.Inf, got.Sup, want.Inf, want.Sup)
	}
}

func TestIntervalArithmetic(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name string
		got  Interval
		want Interval
	}{
		{"add", NewInterval(1, 2).Add(NewInterval(3, 4)), NewInterval(4, 6)},
		{"sub", NewInterval(1, 2).Sub(NewInterval(3, 4)), NewInterval(-3, -1)},
		{"scale_neg", NewInterval(1, 2).Scale(-3), NewInterval(-6, -3)},
		{"scale_zero", NewInterval(-inf, inf).Scale(0), SingletonInterval(0)},
		{"mul_mixed", NewInterval(-1, 2).Mul(NewInterval(3, 4)), NewInterval(-4, 8)},
		{"mul_neg", NewInterval(-2, -1).Mul(NewInterval(-4, -3)), NewInterval(3, 8)},
		{"mul_zero_inf", NewInterval(0, 1).Mul(NewInterval(0, inf)), NewInterval(0, inf)},
		{"square_straddle", NewInterval(-2, 3).Square(), NewInterval(0, 9)},
		{"square_pos", NewInterval(1, 2).Square(), NewInterval(1, 4)},
		{"square_neg", NewInterval(-3, -2).Square(), NewInterval(4, 9)},
		{"div", NewInterval(1, 2).Div(NewInterval(2, 4)), NewInterval(0.25, 1)},
		{"div_by_zero", NewInterval(1, 2).Div(NewInterval(-1, 1)), EntireInterval()},
		{"add_empty", EmptyInterval().Add(NewInterval(1, 2)), EmptyInterval()},
	}
	for _, tt := range tests {
		checkInterval(t, tt.name, tt.got, tt.want, 1e-9)
	}
}

func TestIntervalPredicates(t *testing.T) {
	iv := NewInterval(-1, 3)
	if iv.IsEmpty() {
		t.Fatal("[-1, 3] should not be empty")
	}
	if !EmptyInterval().IsEmpty() {
		t.Fatal("EmptyInterval should be empty")
	}
	if !iv.Contains(0) || iv.Contains(4) {
		t.Errorf("Contains wrong for %v", iv)
	}
	if !iv.ContainsInterval(NewInterval(0, 2)) || iv.ContainsInterval(NewInterval(0, 4)) {
		t.Errorf("ContainsInterval wrong for %v", iv)
	}
	checkInterval(t, "intersect", iv.Intersect(NewInterval(1, 5)), NewInterval(1, 3), 0)
	checkInterval(t, "hull", iv.Hull(NewInterval(4, 5)), NewInterval(-1, 5), 0)
	checkInterval(t, "hull_empty", EmptyInterval().Hull(iv), iv, 0)
	checkInterval(t, "neg", iv.Neg(), NewInterval(-3, 1), 0)
}

// Directed rounding must always widen outward, so the true result is
// never outside the computed interval.
func TestDirectedRoundingOutward(t *testing.T) {
	pairs := [][2]float64{{0.1, 0.2}, {1e15, -3.7}, {2.5, 2.5}, {-1e-12, 7}}
	for _, p := range pairs {
		s := p[0] + p[1]
		if addDown(p[0], p[1]) > s || addUp(p[0], p[1]) < s {
			t.Errorf("add rounding not outward for %v", p)
		}
		m := p[0] * p[1]
		if mulDown(p[0], p[1]) > m || mulUp(p[0], p[1]) < m {
			t.Errorf("mul rounding not outward for %v", p)
		}
	}
	if mulDown(0, math.Inf(1)) != 0 || mulUp(0, math.Inf(-1)) != 0 {
		t.Error("0*inf must be 0 by convention")
	}
}

func TestQuadImage(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name string
		a    float64
		b    Interval
		x    Interval
		want Interval
	}{
		{"pure_square", 1, SingletonInterval(0), NewInterval(-2, 3), NewInterval(0, 9)},
		{"vertex_inside", 1, SingletonInterval(-2), NewInterval(0, 3), NewInterval(-1, 3)},
		{"linear_only", 0, NewInterval(1, 2), NewInterval(-1, 2), NewInterval(-2, 4)},
		{"linear_singleton", 0, SingletonInterval(1), NewInterval(2, 5), NewInterval(2, 5)},
		{"unbounded_up", 1, SingletonInterval(0), NewInterval(0, inf), NewInterval(0, inf)},
		{"concave_entire", -1, SingletonInterval(0), EntireInterval(), NewInterval(-inf, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkInterval(t, tt.name, QuadImage(tt.a, tt.b, tt.x), tt.want, 1e-9)
		})
	}
}

// QuadImage must contain every achievable value; sample the parameter
// box and check membership with a small slack for rounding.
func TestQuadImageEnclosure(t *testing.T) {
	a := -1.5
	b := NewInterval(-2, 1)
	x := NewInterval(-1, 4)
	img := QuadImage(a, b, x)
	for tx := x.Inf; tx <= x.Sup; tx += 0.25 {
		for u := b.Inf; u <= b.Sup; u += 0.25 {
			v := a*tx*tx + u*tx
			if v < img.Inf-1e-9 || v > img.Sup+1e-9 {
				t.Fatalf("value %g at (x=%g, u=%g) outside image [%g, %g]", v, tx, u, img.Inf, img.Sup)
			}
		}
	}
}

func TestSolveUnivariateQuad(t *testing.T) {
	inf := math.Inf(1)
	r := (1 + math.Sqrt(17)) / 2
	tests := []struct {
		name  string
		a     float64
		b     Interval
		rhs   Interval
		xbnds Interval
		want  Interval
	}{
		{"square_upper", 1, SingletonInterval(0), NewInterval(-inf, 4), EntireInterval(), NewInterval(-2, 2)},
		{"square_lower", 1, SingletonInterval(0), NewInterval(9, inf), NewInterval(0, 10), NewInterval(3, 10)},
		{"linear", 0, SingletonInterval(2), NewInterval(-inf, 6), NewInterval(-10, 10), NewInterval(-10, 3)},
		{"interval_coef", 1, NewInterval(-1, 1), NewInterval(-inf, 4), NewInterval(-5, 5), NewInterval(-r, r)},
		{"infeasible", 1, SingletonInterval(0), NewInterval(9, 16), NewInterval(-2, 2), EmptyInterval()},
		{"zero_term_feasible", 0, SingletonInterval(0), NewInterval(-1, 1), NewInterval(2, 5), NewInterval(2, 5)},
		{"zero_term_infeasible", 0, SingletonInterval(0), NewInterval(1, 2), NewInterval(2, 5), EmptyInterval()},
		{"empty_domain", 1, SingletonInterval(0), NewInterval(-inf, 4), EmptyInterval(), EmptyInterval()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SolveUnivariateQuad(tt.a, tt.b, tt.rhs, tt.xbnds)
			checkInterval(t, tt.name, got, tt.want, 1e-9)
		})
	}
}

// The solver result must contain every domain value that can satisfy
// the inequality for some linear coefficient in b.
// Near-tangent inequalities sit on the sign boundary of the
// discriminant. The solve is an outer approximation, so a right-hand
// side within rounding noise of the tangent value must keep the tangent
// point, never report an empty set.
func TestSolveUnivariateQuadNearTangent(t *testing.T) {
	entire := EntireInterval()
	b := SingletonInterval(2)

	// x^2 + 2x <= -1 holds exactly at x = -1.
	sol := SolveUnivariateQuad(1, b, NewInterval(math.Inf(-1), -1), entire)
	if sol.IsEmpty() || !sol.Contains(-1) {
		t.Fatalf("tangent case: solution [%g, %g] must contain -1", sol.Inf, sol.Sup)
	}

	// One ulp below the tangent value the naive discriminant is
	// marginally negative; the widened solve still returns the point.
	tight := math.Nextafter(-1, math.Inf(-1))
	sol = SolveUnivariateQuad(1, b, NewInterval(math.Inf(-1), tight), entire)
	if sol.IsEmpty() || !sol.Contains(-1) {
		t.Fatalf("near-tangent case: solution [%g, %g] must contain -1", sol.Inf, sol.Sup)
	}

	// Far below the tangent value the set is genuinely empty.
	sol = SolveUnivariateQuad(1, b, NewInterval(math.Inf(-1), -1.001), entire)
	if !sol.IsEmpty() {
		t.Fatalf("infeasible case: got [%g, %g], want empty", sol.Inf, sol.Sup)
	}
}

func TestSolveUnivariateQuadSoundness(t *testing.T) {
	cases := []struct {
		a     float64
		b     Interval
		rhs   Interval
		xbnds Interval
	}{
		{2, NewInterval(-1, 3), NewInterval(-4, 5), NewInterval(-6, 6)},
		{-1, NewInterval(0, 2), NewInterval(-3, 1), NewInterval(-4, 4)},
		{0.5, SingletonInterval(-2), NewInterval(1, math.Inf(1)), NewInterval(-10, 10)},
	}
	for _, c := range cases {
		sol := SolveUnivariateQuad(c.a, c.b, c.rhs, c.xbnds)
		for x := c.xbnds.Inf; x <= c.xbnds.Sup; x += 0.125 {
			feasible := false
			for u := c.b.Inf; u <= c.b.Sup && !feasible; u += 0.125 {
				v := c.a*x*x + u*x
				feasible = v >= c.rhs.Inf-1e-9 && v <= c.rhs.Sup+1e-9
			}
			if feasible && !sol.Contains(x) {
				t.Fatalf("a=%g b=%v rhs=%v: feasible x=%g not in solution [%g, %g]",
					c.a, c.b, c.rhs, x, sol.Inf, sol.Sup)
			}
		}
	}
}
