package quadprop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cutRecorder struct {
	cuts []*Cut
}

func (r *cutRecorder) AddCut(cut *Cut) error {
	r.cuts = append(r.cuts, cut)
	return nil
}

func coefOf(t *testing.T, cut *Cut, v Var) float64 {
	t.Helper()
	for i, cv := range cut.Vars {
		if cv == v {
			return cut.Coefs[i]
		}
	}
	t.Fatalf("cut has no coefficient for variable %d", v)
	return 0
}

// A convex constraint gets a gradient cut: it separates the violating
// reference point and keeps every feasible point.
func TestTangentCutConvexCircle(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, 3, VarContinuous)
	y := store.NewVar(0, 3, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "circle", math.Inf(-1), 9.5)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, 1)
	c.AddQuadVarTerm(y, 0, 1)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)
	sink := &cutRecorder{}

	point := map[Var]float64{x: 2.2, y: 2.2}
	cut, err := g.Separate(c, point, ca, sink)
	require.NoError(t, err)
	require.NotNil(t, cut)
	require.Len(t, sink.cuts, 1)

	assert.InDelta(t, 4.4, coefOf(t, cut, x), 1e-9)
	assert.InDelta(t, 4.4, coefOf(t, cut, y), 1e-9)
	assert.InDelta(t, 19.18, cut.Rhs, 1e-9)
	assert.True(t, cut.IsGlobal, "gradient cut of a convex function is globally valid")

	// Separates the reference point by exactly its violation.
	assert.InDelta(t, 0.18, cut.Violation(point), 1e-9)
	// Keeps feasible points.
	assert.LessOrEqual(t, cut.Violation(map[Var]float64{x: 0, y: 0}), 0.0)
	assert.LessOrEqual(t, cut.Violation(map[Var]float64{x: 2, y: 2}), 1e-9)
}

// A bilinear product over a box gets a McCormick facet.
func TestMcCormickCut(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, 2, VarContinuous)
	y := store.NewVar(0, 2, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "prod", math.Inf(-1), 1)
	require.NoError(t, err)
	px := c.AddQuadVarTerm(x, 0, 0)
	py := c.AddQuadVarTerm(y, 0, 0)
	require.NoError(t, c.AddBilinearTerm(px, py, 1))

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)

	point := map[Var]float64{x: 1.5, y: 1.5}
	cut, err := g.Separate(c, point, ca, nil)
	require.NoError(t, err)
	require.NotNil(t, cut)

	// Facet through (ub, ub): x*y >= 2x + 2y - 4, so 2x + 2y <= 5.
	assert.InDelta(t, 2, coefOf(t, cut, x), 1e-9)
	assert.InDelta(t, 2, coefOf(t, cut, y), 1e-9)
	assert.InDelta(t, 5, cut.Rhs, 1e-9)
	assert.False(t, cut.IsGlobal, "envelope cuts depend on the current bounds")

	assert.InDelta(t, 1, cut.Violation(point), 1e-9)
	assert.LessOrEqual(t, cut.Violation(map[Var]float64{x: 0.5, y: 0.5}), 0.0)
}

// A concave square term is underestimated by its secant over the
// domain.
func TestSecantCutConcaveSquare(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(1, 3, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "conc", math.Inf(-1), -5)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, -1)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)

	cut, err := g.Separate(c, map[Var]float64{x: 1.5}, ca, nil)
	require.NoError(t, err)
	require.NotNil(t, cut)

	// Secant of -x^2 over [1, 3]: -4x + 3 <= -5, i.e. -4x <= -8 (x >= 2).
	assert.InDelta(t, -4, coefOf(t, cut, x), 1e-9)
	assert.InDelta(t, -8, cut.Rhs, 1e-9)
	assert.False(t, cut.IsGlobal)
	assert.InDelta(t, 2, cut.Violation(map[Var]float64{x: 1.5}), 1e-9)
}

// A violated left-hand side is separated through the negated function.
func TestLhsViolationCut(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(1, 3, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "low", 5, math.Inf(1))
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, 1)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)

	cut, err := g.Separate(c, map[Var]float64{x: 1.5}, ca, nil)
	require.NoError(t, err)
	require.NotNil(t, cut)
	assert.Equal(t, "low_over", cut.Name)
	assert.InDelta(t, -4, coefOf(t, cut, x), 1e-9)
	assert.InDelta(t, -8, cut.Rhs, 1e-9)
}

// A fractional reference on a separable integer square gets the integer
// secant, which is tighter than the tangent and globally valid.
func TestIntegerSecantCut(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, 5, VarInteger)

	c, err := NewQuadConstraint(cfg, store, "intsq", math.Inf(-1), 6.5)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, 1)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)

	cut, err := g.Separate(c, map[Var]float64{x: 2.6}, ca, nil)
	require.NoError(t, err)
	require.NotNil(t, cut)

	// Chord through (2, 4) and (3, 9): 5x - 6 <= 6.5.
	assert.InDelta(t, 5, coefOf(t, cut, x), 1e-9)
	assert.InDelta(t, 12.5, cut.Rhs, 1e-9)
	assert.True(t, cut.IsGlobal)
	// Valid at every integer point of the domain.
	for xi := 0.0; xi <= 5; xi++ {
		if xi*xi <= 6.5 {
			assert.LessOrEqual(t, cut.Violation(map[Var]float64{x: xi}), 1e-9, "x=%g", xi)
		}
	}
}

func TestNoCutWithoutViolation(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, 3, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "sq", math.Inf(-1), 9.5)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, 1)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)
	cut, err := g.Separate(c, map[Var]float64{x: 1}, ca, nil)
	require.NoError(t, err)
	assert.Nil(t, cut)
}

// A coefficient below the admissible dynamic range is folded away at
// the bound that preserves validity.
func TestCutCoefficientRangeFolding(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, 10, VarContinuous)
	z := store.NewVar(0, 1, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "range", math.Inf(-1), 4)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, 1)
	c.AddLinearTerm(z, 1e-8)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)

	cut, err := g.Separate(c, map[Var]float64{x: 3, z: 0.5}, ca, nil)
	require.NoError(t, err)
	require.NotNil(t, cut)

	require.Len(t, cut.Vars, 1)
	assert.Equal(t, x, cut.Vars[0])
	assert.InDelta(t, 6, cut.Coefs[0], 1e-9)
	// z has a positive coefficient, so it folds at its lower bound 0 and
	// the right-hand side is unchanged.
	assert.InDelta(t, 13, cut.Rhs, 1e-12)
	assert.False(t, cut.IsGlobal, "bound folding makes the cut local")
}

// Folding must relax the cut, never strengthen it: every point feasible
// for the constraint stays feasible for the folded cut.
func TestFoldedCutKeepsFeasiblePoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCutCoefRange = 10
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, 3, VarContinuous)
	z := store.NewVar(0, 1, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "fold", math.Inf(-1), 4)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, 1)
	c.AddLinearTerm(z, 0.1)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)

	// Tangent at x=2.5: 5x - 6.25 + 0.1z <= 4; z's coefficient is below
	// the admitted range and folds away.
	cut, err := g.Separate(c, map[Var]float64{x: 2.5, z: 1}, ca, nil)
	require.NoError(t, err)
	require.NotNil(t, cut)

	require.Len(t, cut.Vars, 1)
	assert.Equal(t, x, cut.Vars[0])
	assert.InDelta(t, 5, cut.Coefs[0], 1e-9)
	assert.InDelta(t, 10.25, cut.Rhs, 1e-9)

	// (2, 0) satisfies the constraint with equality and must survive.
	assert.LessOrEqual(t, cut.Violation(map[Var]float64{x: 2, z: 0}), 0.0)
	for tx := 0.0; tx <= 3; tx += 0.25 {
		for _, tz := range []float64{0, 0.5, 1} {
			if tx*tx+0.1*tz <= 4 {
				assert.LessOrEqual(t, cut.Violation(map[Var]float64{x: tx, z: tz}), 1e-9,
					"feasible point (%g, %g) cut off", tx, tz)
			}
		}
	}
}

// Envelope pieces need finite bounds; an unbounded domain aborts the
// cut instead of producing an invalid one.
func TestNoEnvelopeCutOnUnboundedDomain(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, math.Inf(1), VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "unb", math.Inf(-1), -5)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, -1)

	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	g := NewCutGenerator(cfg, store)
	mon := NewPropagationMonitor()
	g.SetMonitor(mon)

	cut, err := g.Separate(c, map[Var]float64{x: 1.5}, ca, nil)
	require.NoError(t, err)
	assert.Nil(t, cut)
	assert.Equal(t, 1, mon.GetStats().CutsRejected)
}
