package quadprop

import (
	"math"
	"testing"
)

func newLinConstraint(t *testing.T, cfg Config, store VarStore, lhs, rhs float64, terms []LinearTerm) *QuadConstraint {
	t.Helper()
	c, err := NewQuadConstraint(cfg, store, "lin", lhs, rhs)
	if err != nil {
		t.Fatalf("NewQuadConstraint: %v", err)
	}
	for _, lt := range terms {
		c.AddLinearTerm(lt.Var, lt.Coef)
	}
	return c
}

// The event-driven cache must agree with a full recomputation after a
// series of bound changes.
func TestLinearActivityIncrementalMatchesFull(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(-1, 2, VarContinuous)
	y := store.NewVar(0, 4, VarContinuous)
	z := store.NewVar(-3, 3, VarContinuous)
	terms := []LinearTerm{{x, 2}, {y, -3}, {z, 1}}

	c := newLinConstraint(t, cfg, store, -5, 10, terms)
	c.RegisterEvents()
	c.UpdateLinearActivity()

	store.TightenLowerBound(x, 0)
	store.TightenUpperBound(y, 2)
	store.TightenUpperBound(z, 1)
	store.TightenLowerBound(z, -1)

	incr := c.LinearActivity()
	fresh := newLinConstraint(t, cfg, store, -5, 10, terms)
	fresh.UpdateLinearActivity()
	full := fresh.LinearActivity()

	if math.Abs(incr.Inf-full.Inf) > 1e-9 || math.Abs(incr.Sup-full.Sup) > 1e-9 {
		t.Errorf("incremental activity [%g, %g] != full recomputation [%g, %g]",
			incr.Inf, incr.Sup, full.Inf, full.Sup)
	}
	if math.Abs(full.Inf-(-7)) > 1e-6 || math.Abs(full.Sup-5) > 1e-6 {
		t.Errorf("activity [%g, %g], want approximately [-7, 5]", full.Inf, full.Sup)
	}
}

// An unbounded variable is counted, not summed; once its bound becomes
// finite the side recovers a numeric value without a recomputation.
func TestLinearActivityInfinityCounter(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(1, 2, VarContinuous)
	y := store.NewVar(math.Inf(-1), 5, VarContinuous)

	c := newLinConstraint(t, cfg, store, math.Inf(-1), 5, []LinearTerm{{x, 1}, {y, 1}})
	c.RegisterEvents()
	c.UpdateLinearActivity()

	if act := c.LinearActivity(); !math.IsInf(act.Inf, -1) {
		t.Fatalf("minimum activity = %g, want -Inf with unbounded contributor", act.Inf)
	}

	store.TightenLowerBound(y, 0)
	act := c.LinearActivity()
	if math.Abs(act.Inf-1) > 1e-6 {
		t.Errorf("minimum activity after bounding y = %g, want 1", act.Inf)
	}
}

// Quadratic activity partitions the function by quadratic variable; a
// bilinear term counts toward its first variable only, so the aggregate
// encloses the true range without double counting.
func TestQuadActivityPartition(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(0, 1, VarContinuous)
	y := store.NewVar(0, 1, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "q", 0, 10)
	if err != nil {
		t.Fatalf("NewQuadConstraint: %v", err)
	}
	px := c.AddQuadVarTerm(x, 0, 1)
	py := c.AddQuadVarTerm(y, 0, 0)
	if err := c.AddBilinearTerm(px, py, 1); err != nil {
		t.Fatalf("AddBilinearTerm: %v", err)
	}

	c.UpdateLinearActivity()
	c.ComputeQuadActivity()
	act := c.QuadActivity()
	if math.Abs(act.Inf-0) > 1e-9 || math.Abs(act.Sup-2) > 1e-9 {
		t.Errorf("quadratic activity [%g, %g], want [0, 2]", act.Inf, act.Sup)
	}
	total := c.TotalActivity()
	if math.Abs(total.Inf-0) > 1e-9 || math.Abs(total.Sup-2) > 1e-9 {
		t.Errorf("total activity [%g, %g], want [0, 2]", total.Inf, total.Sup)
	}

	// The aggregate must enclose the function over the whole box.
	for tx := 0.0; tx <= 1; tx += 0.25 {
		for ty := 0.0; ty <= 1; ty += 0.25 {
			v := tx*tx + tx*ty
			if v < act.Inf-1e-9 || v > act.Sup+1e-9 {
				t.Fatalf("value %g at (%g, %g) outside activity [%g, %g]", v, tx, ty, act.Inf, act.Sup)
			}
		}
	}
}

// A bound change invalidates the quadratic cache and is reflected after
// the next recomputation.
func TestQuadActivityRefreshAfterBoundChange(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMapVarStore(cfg)
	x := store.NewVar(1, 3, VarContinuous)

	c, err := NewQuadConstraint(cfg, store, "sq", 0, 100)
	if err != nil {
		t.Fatalf("NewQuadConstraint: %v", err)
	}
	c.AddQuadVarTerm(x, 0, 1)
	c.RegisterEvents()

	c.UpdateLinearActivity()
	c.ComputeQuadActivity()
	if act := c.QuadActivity(); math.Abs(act.Sup-9) > 1e-9 {
		t.Fatalf("activity sup = %g, want 9", act.Sup)
	}
	c.markPropagated()

	store.TightenUpperBound(x, 2)
	c.ComputeQuadActivity()
	if act := c.QuadActivity(); math.Abs(act.Sup-4) > 1e-9 {
		t.Errorf("activity sup after tightening = %g, want 4", act.Sup)
	}
	if c.IsPropagated() {
		t.Error("bound change must clear the propagated flag")
	}
}
