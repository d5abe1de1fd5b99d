package quadprop

// terms.go: the sparse quadratic term store.
//
// A QuadExpr holds the three term containers of a quadratic function
//
//	sum(b_i*x_i) + sum(a_j*x_j^2 + c_j*x_j) + sum(d_k*y_k*z_k)
//
// and the adjacency lists linking each quadratic variable to the
// bilinear terms it participates in. Edits are cheap and may leave the
// containers transiently unsorted or with duplicate entries; the dirty
// flags record that, and the Sort*/Merge* routines restore canonical
// form lazily before any operation that depends on it.
//
// Index lifetime: a position into a container is valid only until the
// next structural mutation of that container. Adjacency entries are
// positions into the bilinear slice and are remapped in one pass by
// every compaction (removeBilinearSet, sortBilinear).

import (
	"fmt"
	"sort"
)

// LinearTerm is one linear summand coef*Var.
type LinearTerm struct {
	Var  Var
	Coef float64
}

// QuadVarTerm is the per-variable quadratic summand
// SqrCoef*Var^2 + LinCoef*Var, plus the adjacency list of bilinear
// terms this variable participates in.
type QuadVarTerm struct {
	Var     Var
	LinCoef float64
	SqrCoef float64

	// adjacency holds positions into the bilinear slice. Each bilinear
	// term appears exactly once in the adjacency of each of its two
	// variables when the expression is consistent.
	adjacency []int
}

// Adjacency returns the bilinear positions this variable participates
// in. The returned slice is owned by the expression; callers must not
// mutate it and must not hold it across structural edits.
func (t *QuadVarTerm) Adjacency() []int { return t.adjacency }

// BilinTerm is one bilinear summand Coef*Var1*Var2 with Var1 < Var2 in
// the global variable order once canonicalized.
type BilinTerm struct {
	Var1 Var
	Var2 Var
	Coef float64
}

// QuadExpr is the sparse store for one constraint's quadratic function.
type QuadExpr struct {
	cfg Config

	lin   []LinearTerm
	quad  []QuadVarTerm
	bilin []BilinTerm

	// quadIndex maps a variable to its position in quad. Only valid
	// while quadMerged holds; rebuilt by MergeQuadVars.
	quadIndex map[Var]int

	linSorted  bool
	linMerged  bool
	quadMerged bool
	bilinSorted bool
	bilinMerged bool
}

// NewQuadExpr returns an empty expression using cfg's tolerances.
func NewQuadExpr(cfg Config) *QuadExpr {
	return &QuadExpr{
		cfg:         cfg,
		quadIndex:   make(map[Var]int),
		linSorted:   true,
		linMerged:   true,
		quadMerged:  true,
		bilinSorted: true,
		bilinMerged: true,
	}
}

// NumLinear returns the number of linear terms (including unmerged
// duplicates).
func (e *QuadExpr) NumLinear() int { return len(e.lin) }

// NumQuadVars returns the number of quadratic-variable terms.
func (e *QuadExpr) NumQuadVars() int { return len(e.quad) }

// NumBilinear returns the number of bilinear terms.
func (e *QuadExpr) NumBilinear() int { return len(e.bilin) }

// LinearTermAt returns the linear term at pos.
func (e *QuadExpr) LinearTermAt(pos int) LinearTerm {
	if pos < 0 || pos >= len(e.lin) {
		panic(fmt.Sprintf("quadprop: linear %v: %d", ErrPositionRange, pos))
	}
	return e.lin[pos]
}

// QuadVarTermAt returns a pointer to the quadratic-variable term at
// pos. The pointer is invalidated by the next structural mutation.
func (e *QuadExpr) QuadVarTermAt(pos int) *QuadVarTerm {
	if pos < 0 || pos >= len(e.quad) {
		panic(fmt.Sprintf("quadprop: quadvar %v: %d", ErrPositionRange, pos))
	}
	return &e.quad[pos]
}

// BilinTermAt returns the bilinear term at pos.
func (e *QuadExpr) BilinTermAt(pos int) BilinTerm {
	if pos < 0 || pos >= len(e.bilin) {
		panic(fmt.Sprintf("quadprop: bilinear %v: %d", ErrPositionRange, pos))
	}
	return e.bilin[pos]
}

// IsQuadratic reports whether the expression has any quadratic content.
func (e *QuadExpr) IsQuadratic() bool {
	return len(e.quad) > 0 || len(e.bilin) > 0
}

// AddLinear appends a linear term coef*v. Coefficients below the
// numeric-zero tolerance are ignored. Duplicate variables are allowed
// transiently; MergeLinear consolidates them.
func (e *QuadExpr) AddLinear(v Var, coef float64) {
	if e.cfg.IsZero(coef) {
		return
	}
	if n := len(e.lin); n > 0 && e.lin[n-1].Var > v {
		e.linSorted = false
	}
	if _, dup := e.findLinearLinear(v); dup {
		e.linMerged = false
	}
	e.lin = append(e.lin, LinearTerm{Var: v, Coef: coef})
}

// findLinearLinear is a linear scan used only to maintain the merged
// flag on insertion; lookups after MergeLinear use binary search.
func (e *QuadExpr) findLinearLinear(v Var) (int, bool) {
	for i := range e.lin {
		if e.lin[i].Var == v {
			return i, true
		}
	}
	return -1, false
}

// SortLinear restores ascending variable order on the linear terms.
func (e *QuadExpr) SortLinear() {
	if e.linSorted {
		return
	}
	sort.SliceStable(e.lin, func(i, j int) bool { return e.lin[i].Var < e.lin[j].Var })
	e.linSorted = true
}

// MergeLinear consolidates duplicate linear terms by summing their
// coefficients and drops terms whose merged coefficient is numerically
// zero. Idempotent; a no-op when already merged.
func (e *QuadExpr) MergeLinear() {
	if e.linMerged {
		return
	}
	e.SortLinear()
	out := e.lin[:0]
	for i := 0; i < len(e.lin); {
		v := e.lin[i].Var
		sum := 0.0
		for ; i < len(e.lin) && e.lin[i].Var == v; i++ {
			sum += e.lin[i].Coef
		}
		if !e.cfg.IsZero(sum) {
			out = append(out, LinearTerm{Var: v, Coef: sum})
		}
	}
	e.lin = out
	e.linMerged = true
}

// FindLinear returns the position of v's linear term. It merges first
// so the position is unique.
func (e *QuadExpr) FindLinear(v Var) (int, bool) {
	e.MergeLinear()
	i := sort.Search(len(e.lin), func(i int) bool { return e.lin[i].Var >= v })
	if i < len(e.lin) && e.lin[i].Var == v {
		return i, true
	}
	return -1, false
}

// MergeLinearIntoQuad folds linear terms of variables that also carry a
// quadratic term into that term's linear coefficient, so every variable
// belongs to exactly one of the two parts. Propagation relies on this
// split: the linear residual of a quadratic variable must not contain
// the variable itself.
func (e *QuadExpr) MergeLinearIntoQuad() {
	e.MergeLinear()
	e.mergeQuadVarsStructural()
	if len(e.quad) == 0 {
		return
	}
	out := e.lin[:0]
	for _, t := range e.lin {
		if pos, ok := e.quadIndex[t.Var]; ok {
			e.quad[pos].LinCoef += t.Coef
			continue
		}
		out = append(out, t)
	}
	e.lin = out
}

// AddQuadVar appends a quadratic-variable term and returns its
// position. Duplicate variables are allowed transiently; MergeQuadVars
// consolidates them.
func (e *QuadExpr) AddQuadVar(v Var, linCoef, sqrCoef float64) int {
	if _, exists := e.quadIndex[v]; exists {
		e.quadMerged = false
	} else if e.quadMerged {
		e.quadIndex[v] = len(e.quad)
	}
	e.quad = append(e.quad, QuadVarTerm{Var: v, LinCoef: linCoef, SqrCoef: sqrCoef})
	return len(e.quad) - 1
}

// FindQuadVar returns the position of v's quadratic term, merging
// first so positions are unique.
func (e *QuadExpr) FindQuadVar(v Var) (int, bool) {
	if !e.quadMerged {
		e.mergeQuadVarsStructural()
	}
	pos, ok := e.quadIndex[v]
	return pos, ok
}

// ensureQuadVar returns the position of v's quadratic term, creating a
// zero term when absent.
func (e *QuadExpr) ensureQuadVar(v Var) int {
	if pos, ok := e.FindQuadVar(v); ok {
		return pos
	}
	return e.AddQuadVar(v, 0, 0)
}

// AddBilinear adds coef*x*y where x and y are the quadratic variables
// at positions posA and posB. The variable pair is canonicalized to the
// global variable order and the new term is linked into both adjacency
// lists. Adding a term on the same variable twice is a contract
// violation reported as ErrDegenerateBilinear.
func (e *QuadExpr) AddBilinear(posA, posB int, coef float64) error {
	if posA < 0 || posA >= len(e.quad) || posB < 0 || posB >= len(e.quad) {
		panic(fmt.Sprintf("quadprop: bilinear endpoints %v: %d,%d", ErrPositionRange, posA, posB))
	}
	v1 := e.quad[posA].Var
	v2 := e.quad[posB].Var
	if v1 == v2 {
		return fmt.Errorf("%w: variable %d", ErrDegenerateBilinear, v1)
	}
	if e.cfg.IsZero(coef) {
		return nil
	}
	if v1 > v2 {
		v1, v2 = v2, v1
	}
	if n := len(e.bilin); n > 0 {
		last := e.bilin[n-1]
		if last.Var1 > v1 || (last.Var1 == v1 && last.Var2 >= v2) {
			e.bilinSorted = false
			e.bilinMerged = false
		}
	}
	idx := len(e.bilin)
	e.bilin = append(e.bilin, BilinTerm{Var1: v1, Var2: v2, Coef: coef})
	e.quad[posA].adjacency = append(e.quad[posA].adjacency, idx)
	e.quad[posB].adjacency = append(e.quad[posB].adjacency, idx)
	return nil
}

// remapAdjacency rewrites every adjacency list through oldToNew in one
// pass; entries mapped to -1 are dropped.
func (e *QuadExpr) remapAdjacency(oldToNew []int) {
	for qi := range e.quad {
		adj := e.quad[qi].adjacency[:0]
		for _, old := range e.quad[qi].adjacency {
			if nw := oldToNew[old]; nw >= 0 {
				adj = append(adj, nw)
			}
		}
		e.quad[qi].adjacency = adj
	}
}

// RemoveBilinearSet deletes the bilinear terms at the given positions
// with a single left-to-right compaction and rewrites all adjacency
// lists through the resulting index map. The input slice is sorted in
// place. Cost is O(bilinear terms + total adjacency size).
func (e *QuadExpr) RemoveBilinearSet(positions []int) {
	if len(positions) == 0 {
		return
	}
	sort.Ints(positions)
	oldToNew := make([]int, len(e.bilin))
	for i := range oldToNew {
		oldToNew[i] = -1
	}
	out := e.bilin[:0]
	pi := 0
	for i := range e.bilin {
		if pi < len(positions) && positions[pi] == i {
			for pi < len(positions) && positions[pi] == i {
				pi++ // tolerate duplicate positions
			}
			continue
		}
		oldToNew[i] = len(out)
		out = append(out, e.bilin[i])
	}
	e.bilin = out
	e.remapAdjacency(oldToNew)
}

// SortBilinear restores the canonical (Var1, Var2) order on the
// bilinear terms and remaps the adjacency lists accordingly.
func (e *QuadExpr) SortBilinear() {
	if e.bilinSorted {
		return
	}
	perm := make([]int, len(e.bilin))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ta, tb := e.bilin[perm[a]], e.bilin[perm[b]]
		if ta.Var1 != tb.Var1 {
			return ta.Var1 < tb.Var1
		}
		return ta.Var2 < tb.Var2
	})
	sorted := make([]BilinTerm, len(e.bilin))
	oldToNew := make([]int, len(e.bilin))
	for newPos, oldPos := range perm {
		sorted[newPos] = e.bilin[oldPos]
		oldToNew[oldPos] = newPos
	}
	e.bilin = sorted
	e.remapAdjacency(oldToNew)
	e.bilinSorted = true
}

// MergeBilinear consolidates duplicate variable pairs by summing their
// coefficients and drops numerically zero terms. Idempotent.
func (e *QuadExpr) MergeBilinear() {
	if e.bilinMerged {
		return
	}
	e.SortBilinear()
	var removals []int
	for i := 0; i < len(e.bilin); {
		j := i + 1
		for j < len(e.bilin) && e.bilin[j].Var1 == e.bilin[i].Var1 && e.bilin[j].Var2 == e.bilin[i].Var2 {
			e.bilin[i].Coef += e.bilin[j].Coef
			removals = append(removals, j)
			j++
		}
		if e.cfg.IsZero(e.bilin[i].Coef) {
			removals = append(removals, i)
		}
		i = j
	}
	e.RemoveBilinearSet(removals)
	e.bilinMerged = true
	e.bilinSorted = true
}

// FindBilinear returns the position of the bilinear term for the pair
// (x, y), canonicalizing the pair and re-sorting first. Binary search.
func (e *QuadExpr) FindBilinear(x, y Var) (int, bool) {
	if x == y {
		return -1, false
	}
	if x > y {
		x, y = y, x
	}
	e.MergeBilinear()
	i := sort.Search(len(e.bilin), func(i int) bool {
		t := e.bilin[i]
		if t.Var1 != x {
			return t.Var1 >= x
		}
		return t.Var2 >= y
	})
	if i < len(e.bilin) && e.bilin[i].Var1 == x && e.bilin[i].Var2 == y {
		return i, true
	}
	return -1, false
}

// mergeQuadVarsStructural consolidates duplicate quadratic-variable
// entries (summing coefficients, concatenating adjacency) and rebuilds
// the variable index. It does not perform the binary x^2=x folding;
// MergeQuadVars adds that on top when a store is available.
func (e *QuadExpr) mergeQuadVarsStructural() {
	if e.quadMerged {
		return
	}
	index := make(map[Var]int, len(e.quad))
	out := e.quad[:0]
	for i := range e.quad {
		t := e.quad[i]
		if at, ok := index[t.Var]; ok {
			out[at].LinCoef += t.LinCoef
			out[at].SqrCoef += t.SqrCoef
			out[at].adjacency = append(out[at].adjacency, t.adjacency...)
			continue
		}
		index[t.Var] = len(out)
		out = append(out, t)
	}
	e.quad = out
	e.quadIndex = index
	e.quadMerged = true
}

// MergeQuadVars consolidates duplicate quadratic-variable terms and
// simplifies the result:
//
//   - for a binary variable with no bilinear adjacency, x^2 = x folds
//     the square coefficient into the linear one;
//   - a term that is purely linear after folding (zero square
//     coefficient, empty adjacency) is demoted to a linear term and
//     removed from the quadratic part.
//
// store may be nil, in which case only the structural merge runs.
// Idempotent with respect to the dirty flag.
func (e *QuadExpr) MergeQuadVars(store VarStore) {
	wasMerged := e.quadMerged
	e.mergeQuadVarsStructural()
	if store == nil || (wasMerged && len(e.quad) == 0) {
		return
	}
	var demoted bool
	out := e.quad[:0]
	index := make(map[Var]int, len(e.quad))
	for i := range e.quad {
		t := e.quad[i]
		if len(t.adjacency) == 0 && !e.cfg.IsZero(t.SqrCoef) && store.IsBinary(t.Var) {
			t.LinCoef += t.SqrCoef
			t.SqrCoef = 0
		}
		if len(t.adjacency) == 0 && e.cfg.IsZero(t.SqrCoef) {
			if !e.cfg.IsZero(t.LinCoef) {
				e.AddLinear(t.Var, t.LinCoef)
			}
			demoted = true
			continue
		}
		index[t.Var] = len(out)
		out = append(out, t)
	}
	e.quad = out
	e.quadIndex = index
	if demoted {
		e.MergeLinear()
	}
}

// removeQuadVarAt deletes the quadratic term at pos by moving the last
// element into the freed slot. The term's adjacency must already be
// empty; bilinear indices held by other terms stay valid because the
// bilinear slice is untouched.
func (e *QuadExpr) removeQuadVarAt(pos int) {
	if pos < 0 || pos >= len(e.quad) {
		panic(fmt.Sprintf("quadprop: quadvar %v: %d", ErrPositionRange, pos))
	}
	if len(e.quad[pos].adjacency) != 0 {
		panic("quadprop: removing quadratic term with live bilinear adjacency")
	}
	last := len(e.quad) - 1
	moved := e.quad[last]
	delete(e.quadIndex, e.quad[pos].Var)
	if pos != last {
		e.quad[pos] = moved
		if e.quadMerged {
			e.quadIndex[moved.Var] = pos
		}
	}
	e.quad = e.quad[:last]
}

// ReplaceQuadVar substitutes x = scale*newVar + offset into the
// quadratic term at pos (variable x), rewriting the term itself, every
// adjacent bilinear term, and returning the constant that the
// substitution splits off (to be folded into the constraint sides by
// the caller).
//
// A bilinear term whose partner equals newVar degenerates into a square
// term and is folded into the rewritten quadratic term. With scale = 0
// the variable is effectively fixed to offset and the quadratic term is
// removed entirely.
func (e *QuadExpr) ReplaceQuadVar(pos int, newVar Var, scale, offset float64) (constant float64, err error) {
	if pos < 0 || pos >= len(e.quad) {
		panic(fmt.Sprintf("quadprop: quadvar %v: %d", ErrPositionRange, pos))
	}
	oldVar := e.quad[pos].Var
	a, b := e.quad[pos].SqrCoef, e.quad[pos].LinCoef
	constant = a*offset*offset + b*offset

	// Rewrite adjacent bilinear terms first: c*x*z becomes
	// c*scale*newVar*z + c*offset*z. When z == newVar the product
	// degenerates into a square term; its coefficient is folded into
	// the rewritten quadratic term below.
	var removals []int
	degenerateSqr := 0.0
	for _, bi := range e.quad[pos].adjacency {
		bt := &e.bilin[bi]
		partner := bt.Var1
		if partner == oldVar {
			partner = bt.Var2
		}
		c := bt.Coef
		if !e.cfg.IsZero(c * offset) {
			e.AddLinear(partner, c*offset)
		}
		switch {
		case scale == 0 || e.cfg.IsZero(c*scale):
			removals = append(removals, bi)
		case partner == newVar:
			degenerateSqr += c * scale
			removals = append(removals, bi)
		default:
			v1, v2 := newVar, partner
			if v1 > v2 {
				v1, v2 = v2, v1
			}
			bt.Var1, bt.Var2 = v1, v2
			bt.Coef = c * scale
			e.bilinSorted = false
			e.bilinMerged = false
		}
	}
	// The compaction also drops the removed entries from this term's
	// own adjacency list via the index remap.
	e.RemoveBilinearSet(removals)

	t := &e.quad[pos]
	if scale == 0 {
		// x is fixed to offset; the whole term went into the constant
		// and the linear rewrites above.
		e.removeQuadVarAt(pos)
		return constant, nil
	}

	// a*x^2 + b*x = a*s^2*y^2 + (2*a*s*o + b*s)*y + (a*o^2 + b*o).
	delete(e.quadIndex, oldVar)
	t.Var = newVar
	t.SqrCoef = a*scale*scale + degenerateSqr
	t.LinCoef = (2*a*offset + b) * scale
	if at, exists := e.quadIndex[newVar]; exists && at != pos {
		e.quadMerged = false
	} else if e.quadMerged {
		e.quadIndex[newVar] = pos
	}
	return constant, nil
}

// multiAggregateQuadVar substitutes x = sum_k scales[k]*vars[k] + offset
// into the quadratic term at pos, fanning the term out into O(k) new
// quadratic terms and O(k^2) new bilinear terms for the expanded
// square, and rewriting every adjacent bilinear product. Returns the
// split-off constant.
func (e *QuadExpr) multiAggregateQuadVar(pos int, agg VarAggregation) (constant float64) {
	if pos < 0 || pos >= len(e.quad) {
		panic(fmt.Sprintf("quadprop: quadvar %v: %d", ErrPositionRange, pos))
	}
	oldVar := e.quad[pos].Var
	a, b := e.quad[pos].SqrCoef, e.quad[pos].LinCoef
	o := agg.Offset
	constant = a*o*o + b*o

	// Capture partner data, then drop all old bilinear products of x in
	// one compaction pass. c*x*z fans out into c*s_k*y_k*z + c*o*z.
	type partnerTerm struct {
		partner Var
		coef    float64
	}
	partners := make([]partnerTerm, 0, len(e.quad[pos].adjacency))
	removals := make([]int, 0, len(e.quad[pos].adjacency))
	for _, bi := range e.quad[pos].adjacency {
		bt := e.bilin[bi]
		p := bt.Var1
		if p == oldVar {
			p = bt.Var2
		}
		partners = append(partners, partnerTerm{partner: p, coef: bt.Coef})
		removals = append(removals, bi)
	}
	e.RemoveBilinearSet(removals)
	e.removeQuadVarAt(pos)

	// Quadratic fan-out of a*x^2 + b*x:
	//   a*s_k^2*y_k^2 + (2*a*o + b)*s_k*y_k        per variable
	//   2*a*s_k*s_l*y_k*y_l                        per pair k < l
	kpos := make([]int, len(agg.Vars))
	for k, y := range agg.Vars {
		s := agg.Scales[k]
		kpos[k] = e.ensureQuadVar(y)
		t := &e.quad[kpos[k]]
		t.SqrCoef += a * s * s
		t.LinCoef += (2*a*o + b) * s
	}
	for k := range agg.Vars {
		for l := k + 1; l < len(agg.Vars); l++ {
			c := 2 * a * agg.Scales[k] * agg.Scales[l]
			if e.cfg.IsZero(c) {
				continue
			}
			if agg.Vars[k] == agg.Vars[l] {
				// Duplicate base variable: the cross product is a square.
				e.quad[kpos[k]].SqrCoef += c
				continue
			}
			if err := e.AddBilinear(kpos[k], kpos[l], c); err != nil {
				// Unreachable: k != l vars checked above.
				panic(err)
			}
		}
	}

	// Bilinear fan-out of each old product c*x*z.
	for _, pt := range partners {
		if !e.cfg.IsZero(pt.coef * o) {
			e.AddLinear(pt.partner, pt.coef*o)
		}
		ppos := e.ensureQuadVar(pt.partner)
		for k, y := range agg.Vars {
			c := pt.coef * agg.Scales[k]
			if e.cfg.IsZero(c) {
				continue
			}
			if y == pt.partner {
				// Degenerate product turns into a square of the partner.
				e.quad[ppos].SqrCoef += c
				continue
			}
			ypos := e.ensureQuadVar(y)
			ppos = e.quadIndex[pt.partner] // ensureQuadVar may have appended
			if err := e.AddBilinear(ypos, ppos, c); err != nil {
				panic(err)
			}
		}
	}
	e.bilinMerged = false
	return constant
}

// RemoveFixedVariables eliminates every reference to a fixed,
// aggregated or multi-aggregated variable by substituting its defining
// expression, iterating to a fixed point (a substitution can introduce
// variables that are themselves inactive). The accumulated constant is
// returned for the caller to fold into the constraint sides.
//
// This is the substitution cascade: an explicit worklist loop rather
// than recursion, so termination is bounded by the number of inactive
// variables regardless of aggregation chains.
func (e *QuadExpr) RemoveFixedVariables(store VarStore) (constant float64, err error) {
	if store == nil {
		return 0, fmt.Errorf("quadprop: nil store: %w", ErrInvalidArgument)
	}
	for changed := true; changed; {
		changed = false

		// Linear terms: coef*v with v = sum s_k*y_k + o.
		var nlin []LinearTerm
		rewroteLin := false
		for _, lt := range e.lin {
			if store.IsActive(lt.Var) {
				nlin = append(nlin, lt)
				continue
			}
			agg, _ := store.Aggregation(lt.Var)
			constant += lt.Coef * agg.Offset
			for k, y := range agg.Vars {
				c := lt.Coef * agg.Scales[k]
				if !e.cfg.IsZero(c) {
					nlin = append(nlin, LinearTerm{Var: y, Coef: c})
				}
			}
			rewroteLin = true
			changed = true
		}
		if rewroteLin {
			e.lin = nlin
			e.linSorted = false
			e.linMerged = false
			e.MergeLinear()
		}

		// Quadratic terms: substitute one inactive variable per sweep
		// position; positions shift under removal, so restart the scan
		// index conservatively after each substitution.
		for pos := 0; pos < len(e.quad); {
			v := e.quad[pos].Var
			if store.IsActive(v) {
				pos++
				continue
			}
			agg, _ := store.Aggregation(v)
			switch len(agg.Vars) {
			case 0:
				c, rerr := e.ReplaceQuadVar(pos, NoVar, 0, agg.Offset)
				if rerr != nil {
					return constant, rerr
				}
				constant += c
			case 1:
				c, rerr := e.ReplaceQuadVar(pos, agg.Vars[0], agg.Scales[0], agg.Offset)
				if rerr != nil {
					return constant, rerr
				}
				constant += c
			default:
				constant += e.multiAggregateQuadVar(pos, agg)
			}
			changed = true
			pos = 0
		}
		if changed {
			e.MergeBilinear()
			e.MergeQuadVars(store)
			e.MergeLinear()
		}
	}
	return constant, nil
}
