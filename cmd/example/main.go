// This example walks through the main quadprop workflows: building a
// quadratic constraint, propagating bounds, classifying curvature,
// separating cuts, and recognizing upgradable constraints.
package main

import (
	"fmt"
	"math"

	"github.com/gitrdm/goquad/pkg/quadprop"
)

func main() {
	fmt.Println("=== GoQuad Examples ===")
	fmt.Println()

	boundPropagation()
	bilinearPropagation()
	curvatureAndCuts()
	mccormickCut()
	upgradeRecognition()
	monitorStats()
}

// boundPropagation deduces finite bounds from a univariate quadratic.
func boundPropagation() {
	fmt.Println("1. Bound Propagation:")

	cfg := quadprop.DefaultConfig()
	store := quadprop.NewMapVarStore(cfg)
	x := store.NewVar(math.Inf(-1), math.Inf(1), quadprop.VarContinuous)

	// x^2 + 2x <= 8 over an unbounded domain.
	c, _ := quadprop.NewQuadConstraint(cfg, store, "parabola", math.Inf(-1), 8)
	c.AddQuadVarTerm(x, 2, 1)
	c.RegisterEvents()

	p := quadprop.NewBoundsPropagator(cfg, store)
	result, rounds := p.Propagate(c)

	fmt.Printf("   x^2 + 2x <= 8 => %v after %d round(s)\n", result, rounds)
	fmt.Printf("   x in [%.4f, %.4f]\n", store.LowerBound(x), store.UpperBound(x))
	fmt.Println()
}

// bilinearPropagation bounds one factor of a product using the other.
func bilinearPropagation() {
	fmt.Println("2. Bilinear Propagation:")

	cfg := quadprop.DefaultConfig()
	store := quadprop.NewMapVarStore(cfg)
	x := store.NewVar(1, 2, quadprop.VarContinuous)
	y := store.NewVar(0, 100, quadprop.VarContinuous)

	// x*y <= 4 with x >= 1 forces y <= 4.
	c, _ := quadprop.NewQuadConstraint(cfg, store, "prod", math.Inf(-1), 4)
	px := c.AddQuadVarTerm(x, 0, 0)
	py := c.AddQuadVarTerm(y, 0, 0)
	if err := c.AddBilinearTerm(px, py, 1); err != nil {
		fmt.Printf("   AddBilinearTerm: %v\n", err)
		return
	}
	c.RegisterEvents()

	p := quadprop.NewBoundsPropagator(cfg, store)
	result, _ := p.Propagate(c)

	fmt.Printf("   x*y <= 4, x in [1, 2] => %v\n", result)
	fmt.Printf("   y in [%.4f, %.4f]\n", store.LowerBound(y), store.UpperBound(y))
	fmt.Println()
}

// curvatureAndCuts classifies a convex constraint and separates a
// violating relaxation point with a gradient cut.
func curvatureAndCuts() {
	fmt.Println("3. Curvature and Gradient Cuts:")

	cfg := quadprop.DefaultConfig()
	store := quadprop.NewMapVarStore(cfg)
	x := store.NewVar(0, 3, quadprop.VarContinuous)
	y := store.NewVar(0, 3, quadprop.VarContinuous)

	c, _ := quadprop.NewQuadConstraint(cfg, store, "circle", math.Inf(-1), 9.5)
	c.AddQuadVarTerm(x, 0, 1)
	c.AddQuadVarTerm(y, 0, 1)

	ca := quadprop.NewCurvatureAnalyzer(cfg, quadprop.GonumEigensolver{})
	fmt.Printf("   x^2 + y^2 <= 9.5 is %v\n", c.Curvature(ca))

	g := quadprop.NewCutGenerator(cfg, store)
	point := map[quadprop.Var]float64{x: 2.2, y: 2.2}
	cut, _ := g.Separate(c, point, ca, nil)
	if cut != nil {
		fmt.Printf("   cut at (2.2, 2.2): %v\n", cut)
		fmt.Printf("   violation at the point: %.3f, global: %v\n",
			cut.Violation(point), cut.IsGlobal)
	}
	fmt.Println()
}

// mccormickCut separates a bilinear product with an envelope facet.
func mccormickCut() {
	fmt.Println("4. McCormick Envelope Cuts:")

	cfg := quadprop.DefaultConfig()
	store := quadprop.NewMapVarStore(cfg)
	x := store.NewVar(0, 2, quadprop.VarContinuous)
	y := store.NewVar(0, 2, quadprop.VarContinuous)

	c, _ := quadprop.NewQuadConstraint(cfg, store, "box", math.Inf(-1), 1)
	px := c.AddQuadVarTerm(x, 0, 0)
	py := c.AddQuadVarTerm(y, 0, 0)
	if err := c.AddBilinearTerm(px, py, 1); err != nil {
		fmt.Printf("   AddBilinearTerm: %v\n", err)
		return
	}

	ca := quadprop.NewCurvatureAnalyzer(cfg, quadprop.GonumEigensolver{})
	g := quadprop.NewCutGenerator(cfg, store)

	point := map[quadprop.Var]float64{x: 1.5, y: 1.5}
	cut, _ := g.Separate(c, point, ca, nil)
	if cut != nil {
		fmt.Printf("   x*y <= 1 on [0, 2]^2 at (1.5, 1.5): %v\n", cut)
		fmt.Printf("   local cut (depends on current bounds): %v\n", !cut.IsGlobal)
	}
	fmt.Println()
}

// upgradeRecognition detects constraints that presolve has reduced to a
// simpler class.
func upgradeRecognition() {
	fmt.Println("5. Upgrade Recognition:")

	cfg := quadprop.DefaultConfig()
	store := quadprop.NewMapVarStore(cfg)
	x := store.NewVar(0, 10, quadprop.VarContinuous)
	y := store.NewVar(-5, 5, quadprop.VarContinuous)

	// x^2 + 2*x*y stops being quadratic once x is fixed: the square
	// becomes a constant and the product collapses to a linear term.
	c, _ := quadprop.NewQuadConstraint(cfg, store, "degen", math.Inf(-1), 6)
	px := c.AddQuadVarTerm(x, 0, 1)
	py := c.AddQuadVarTerm(y, 0, 0)
	_ = c.AddBilinearTerm(px, py, 2)

	reg := quadprop.NewUpgradeRegistry()
	if _, _, ok := reg.Upgrade(c); !ok {
		fmt.Println("   before fixing: still genuinely quadratic")
	}

	store.Fix(x, 2)
	_ = c.RemoveFixedVariables()

	if up, name, ok := reg.Upgrade(c); ok {
		fmt.Printf("   after fixing x=2: recognized by %q as %v\n", name, up.Kind)
	}
	fmt.Println()
}

// monitorStats aggregates counters across several propagation calls.
func monitorStats() {
	fmt.Println("6. Monitoring:")

	cfg := quadprop.DefaultConfig()
	store := quadprop.NewMapVarStore(cfg)
	mon := quadprop.NewPropagationMonitor()

	p := quadprop.NewBoundsPropagator(cfg, store)
	p.SetMonitor(mon)

	for i := 0; i < 3; i++ {
		x := store.NewVar(math.Inf(-1), math.Inf(1), quadprop.VarContinuous)
		c, _ := quadprop.NewQuadConstraint(cfg, store, fmt.Sprintf("sq%d", i), math.Inf(-1), float64(4+i))
		c.AddQuadVarTerm(x, 0, 1)
		c.RegisterEvents()
		p.Propagate(c)
	}

	fmt.Printf("   %v\n", mon.GetStats())
	fmt.Println()
}
