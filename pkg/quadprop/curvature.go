package quadprop

// curvature.go: convexity classification of the quadratic function.
//
// The classification drives cut generation: a convex function admits
// globally valid tangent cuts, a concave one admits them on the other
// side, anything indefinite falls back to secant/McCormick envelopes.
// The result is a lattice, not a boolean pair: the zero quadratic
// function is both convex and concave, and "unchecked" is distinct
// from "neither".

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Curvature is the cached classification of a quadratic function. The
// zero value means unchecked.
type Curvature struct {
	Checked bool
	Convex  bool
	Concave bool
}

// String returns a human-readable classification.
func (cv Curvature) String() string {
	switch {
	case !cv.Checked:
		return "unchecked"
	case cv.Convex && cv.Concave:
		return "linear"
	case cv.Convex:
		return "convex"
	case cv.Concave:
		return "concave"
	default:
		return "indefinite"
	}
}

// Eigensolver computes the eigenvalue spectrum of a dense symmetric
// matrix given in row-major order. Implementations return the values in
// ascending order. The analyzer treats a nil or failing solver as "no
// spectrum available" and conservatively classifies as indefinite.
type Eigensolver interface {
	SymmetricEigenvalues(n int, a []float64) ([]float64, error)
}

// GonumEigensolver is the default Eigensolver backed by gonum's
// symmetric eigendecomposition.
type GonumEigensolver struct{}

// SymmetricEigenvalues implements Eigensolver.
func (GonumEigensolver) SymmetricEigenvalues(n int, a []float64) ([]float64, error) {
	if n <= 0 || len(a) != n*n {
		return nil, fmt.Errorf("quadprop: %dx%d matrix with %d entries: %w", n, n, len(a), ErrInvalidArgument)
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(mat.NewSymDense(n, a), false); !ok {
		return nil, fmt.Errorf("quadprop: eigendecomposition did not converge")
	}
	vals := eig.Values(nil)
	sort.Float64s(vals)
	return vals, nil
}

// CurvatureAnalyzer classifies quadratic expressions. A nil eigensolver
// is allowed; the general case then degrades to indefinite instead of
// failing.
type CurvatureAnalyzer struct {
	cfg    Config
	solver Eigensolver
}

// NewCurvatureAnalyzer creates an analyzer. Pass nil to operate without
// an eigensolver.
func NewCurvatureAnalyzer(cfg Config, solver Eigensolver) *CurvatureAnalyzer {
	return &CurvatureAnalyzer{cfg: cfg, solver: solver}
}

// Classify determines the curvature of the expression's quadratic part.
func (ca *CurvatureAnalyzer) Classify(e *QuadExpr) Curvature {
	e.MergeQuadVars(nil)
	e.MergeBilinear()

	if e.NumQuadVars() == 0 && e.NumBilinear() == 0 {
		return Curvature{Checked: true, Convex: true, Concave: true}
	}

	if e.NumBilinear() == 0 {
		// Diagonal Hessian: the signs of the square coefficients decide.
		cv := Curvature{Checked: true, Convex: true, Concave: true}
		for i := 0; i < e.NumQuadVars(); i++ {
			a := e.QuadVarTermAt(i).SqrCoef
			if a < -ca.cfg.CurvatureTol {
				cv.Convex = false
			}
			if a > ca.cfg.CurvatureTol {
				cv.Concave = false
			}
		}
		return cv
	}

	if e.NumQuadVars() == 2 && e.NumBilinear() == 1 {
		return ca.classify2x2(e)
	}

	return ca.classifyGeneral(e)
}

// classify2x2 applies the closed-form eigenvalue test for
// a*x^2 + b*y^2 + c*x*y: the Hessian [a c/2; c/2 b] is PSD iff
// a >= 0, b >= 0 and 4ab >= c^2 (NSD with flipped diagonal signs).
func (ca *CurvatureAnalyzer) classify2x2(e *QuadExpr) Curvature {
	a := e.QuadVarTermAt(0).SqrCoef
	b := e.QuadVarTermAt(1).SqrCoef
	cc := e.BilinTermAt(0).Coef
	tol := ca.cfg.CurvatureTol
	cv := Curvature{Checked: true}
	if a >= -tol && b >= -tol && 4*a*b >= cc*cc-tol {
		cv.Convex = true
	}
	if a <= tol && b <= tol && 4*a*b >= cc*cc-tol {
		cv.Concave = true
	}
	return cv
}

// classifyGeneral builds the symmetric Hessian restricted to variables
// with bilinear adjacency and inspects its spectrum. Variables without
// bilinear coupling contribute only diagonal entries and are checked
// first as an early exit: one negative diagonal entry rules out
// convexity, one positive rules out concavity, and when both are ruled
// out no matrix needs to be built.
func (ca *CurvatureAnalyzer) classifyGeneral(e *QuadExpr) Curvature {
	tol := ca.cfg.CurvatureTol
	mayConvex, mayConcave := true, true
	cols := make(map[Var]int)
	for i := 0; i < e.NumQuadVars(); i++ {
		t := e.QuadVarTermAt(i)
		if t.SqrCoef < -tol {
			mayConvex = false
		}
		if t.SqrCoef > tol {
			mayConcave = false
		}
		if len(t.adjacency) > 0 {
			if _, ok := cols[t.Var]; !ok {
				cols[t.Var] = len(cols)
			}
		}
	}
	// Bilinear terms may reference variables without an own square term
	// only through their quadratic entries; after merging every bilinear
	// endpoint has one, so cols is complete.
	if !mayConvex && !mayConcave {
		return Curvature{Checked: true}
	}
	if ca.solver == nil {
		// Never silently assume convexity without a spectrum.
		return Curvature{Checked: true}
	}

	n := len(cols)
	h := make([]float64, n*n)
	for i := 0; i < e.NumQuadVars(); i++ {
		t := e.QuadVarTermAt(i)
		if j, ok := cols[t.Var]; ok {
			h[j*n+j] = t.SqrCoef
		}
	}
	for i := 0; i < e.NumBilinear(); i++ {
		t := e.BilinTermAt(i)
		j1, ok1 := cols[t.Var1]
		j2, ok2 := cols[t.Var2]
		if !ok1 || !ok2 {
			return Curvature{Checked: true} // inconsistent adjacency; stay conservative
		}
		h[j1*n+j2] = t.Coef / 2
		h[j2*n+j1] = t.Coef / 2
	}
	vals, err := ca.solver.SymmetricEigenvalues(n, h)
	if err != nil || len(vals) == 0 {
		return Curvature{Checked: true}
	}
	cv := Curvature{Checked: true}
	cv.Convex = mayConvex && vals[0] >= -tol
	cv.Concave = mayConcave && vals[len(vals)-1] <= tol
	return cv
}

// Curvature returns the constraint's cached classification, computing
// it with the given analyzer when the cache is stale. The cache is
// invalidated by every structural or coefficient change.
func (c *QuadConstraint) Curvature(ca *CurvatureAnalyzer) Curvature {
	if c.curvature.Checked {
		return c.curvature
	}
	c.curvature = ca.Classify(c.expr)
	if c.monitor != nil {
		c.monitor.RecordCurvatureCheck()
	}
	return c.curvature
}
