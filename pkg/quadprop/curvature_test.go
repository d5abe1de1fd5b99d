package quadprop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildExpr assembles an expression from square coefficients per
// variable and bilinear coefficients per pair.
func buildExpr(t *testing.T, cfg Config, sqr map[Var]float64, bilin map[[2]Var]float64) *QuadExpr {
	t.Helper()
	e := NewQuadExpr(cfg)
	pos := make(map[Var]int)
	for v, a := range sqr {
		pos[v] = e.AddQuadVar(v, 0, a)
	}
	for pair, c := range bilin {
		for _, v := range pair {
			if _, ok := pos[v]; !ok {
				pos[v] = e.AddQuadVar(v, 0, 0)
			}
		}
		require.NoError(t, e.AddBilinear(pos[pair[0]], pos[pair[1]], c))
	}
	return e
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()
	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})
	tests := []struct {
		name    string
		sqr     map[Var]float64
		bilin   map[[2]Var]float64
		convex  bool
		concave bool
	}{
		{"zero_function", nil, nil, true, true},
		{"diagonal_convex", map[Var]float64{0: 1, 1: 2}, nil, true, false},
		{"diagonal_concave", map[Var]float64{0: -1}, nil, false, true},
		{"diagonal_indefinite", map[Var]float64{0: 1, 1: -1}, nil, false, false},
		{"pair_psd_boundary", map[Var]float64{0: 1, 1: 1}, map[[2]Var]float64{{0, 1}: 2}, true, false},
		{"pair_product_only", nil, map[[2]Var]float64{{0, 1}: 1}, false, false},
		{"general_convex", map[Var]float64{0: 1, 1: 1, 2: 1}, map[[2]Var]float64{{0, 1}: 1}, true, false},
		{"general_indefinite", map[Var]float64{0: 1, 1: 1, 2: 1}, map[[2]Var]float64{{0, 1}: 3}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := ca.Classify(buildExpr(t, cfg, tt.sqr, tt.bilin))
			require.True(t, cv.Checked)
			assert.Equal(t, tt.convex, cv.Convex, "convex")
			assert.Equal(t, tt.concave, cv.Concave, "concave")
		})
	}
}

// Without an eigensolver the general case must degrade to indefinite,
// never silently claim convexity.
func TestClassifyWithoutEigensolver(t *testing.T) {
	cfg := DefaultConfig()
	ca := NewCurvatureAnalyzer(cfg, nil)
	e := buildExpr(t, cfg, map[Var]float64{0: 1, 1: 1, 2: 1}, map[[2]Var]float64{{0, 1}: 1})
	cv := ca.Classify(e)
	require.True(t, cv.Checked)
	assert.False(t, cv.Convex)
	assert.False(t, cv.Concave)
	assert.Equal(t, "indefinite", cv.String())
}

func TestCurvatureString(t *testing.T) {
	assert.Equal(t, "unchecked", Curvature{}.String())
	assert.Equal(t, "linear", Curvature{Checked: true, Convex: true, Concave: true}.String())
	assert.Equal(t, "convex", Curvature{Checked: true, Convex: true}.String())
	assert.Equal(t, "concave", Curvature{Checked: true, Concave: true}.String())
}

func TestGonumEigensolverErrors(t *testing.T) {
	_, err := GonumEigensolver{}.SymmetricEigenvalues(2, []float64{1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	vals, err := GonumEigensolver{}.SymmetricEigenvalues(2, []float64{1, 0.5, 0.5, 1})
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.InDelta(t, 0.5, vals[0], 1e-12)
	assert.InDelta(t, 1.5, vals[1], 1e-12)
}

// The cached classification must be recomputed after structural edits.
func TestConstraintCurvatureCache(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(-1, 1, VarContinuous)
	ca := NewCurvatureAnalyzer(cfg, GonumEigensolver{})

	c, err := NewQuadConstraint(cfg, store, "cv", 0, 1)
	require.NoError(t, err)
	c.AddQuadVarTerm(x, 0, 1)
	assert.True(t, c.Curvature(ca).Convex)

	y := store.NewVar(-1, 1, VarContinuous)
	c.AddQuadVarTerm(y, 0, -3)
	cv := c.Curvature(ca)
	assert.False(t, cv.Convex)
	assert.False(t, cv.Concave)
}
