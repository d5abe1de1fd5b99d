package quadprop

// varstore.go: the variable-store collaborator boundary.
//
// The engine never owns variable bounds. It reads and tightens them
// through the VarStore interface and learns about external bound
// changes through BoundObserver callbacks. MapVarStore is the
// in-memory reference implementation used by the tests and demos; a
// host solver supplies its own implementation backed by its bound
// storage.
//
// All operations are single-goroutine by contract (see package doc):
// observers are invoked synchronously from the mutators, so an
// observer may read from the store but must not mutate it.

import (
	"fmt"
	"math"
)

// Var is an opaque variable handle issued by a VarStore. The integer
// order of handles doubles as the global variable order used to
// canonicalize bilinear terms.
type Var int

// NoVar is the zero value for "no variable".
const NoVar Var = -1

// VarType describes the domain type of a variable.
type VarType int

const (
	// VarContinuous is a real-valued variable.
	VarContinuous VarType = iota
	// VarInteger is an integer variable.
	VarInteger
	// VarBinary is an integer variable with domain {0, 1}.
	VarBinary
)

// String returns a human-readable type name.
func (t VarType) String() string {
	switch t {
	case VarContinuous:
		return "continuous"
	case VarInteger:
		return "integer"
	case VarBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// BoundKind distinguishes lower from upper bound events.
type BoundKind int

const (
	// LowerBoundKind marks a lower-bound change.
	LowerBoundKind BoundKind = iota
	// UpperBoundKind marks an upper-bound change.
	UpperBoundKind
)

// VarStatus describes how presolve has disposed of a variable.
type VarStatus int

const (
	// StatusActive means the variable is a live problem variable.
	StatusActive VarStatus = iota
	// StatusFixed means the variable is fixed to a constant.
	StatusFixed
	// StatusAggregated means the variable equals scale*base + offset
	// for a single base variable.
	StatusAggregated
	// StatusMultiAggregated means the variable equals a weighted sum of
	// several base variables plus an offset.
	StatusMultiAggregated
)

// VarAggregation describes the defining expression of a fixed,
// aggregated or multi-aggregated variable:
//
//	v = sum_i Scales[i]*Vars[i] + Offset
//
// A fixed variable has no Vars and Offset equal to its value; a simple
// aggregation has exactly one entry.
type VarAggregation struct {
	Scales []float64
	Vars   []Var
	Offset float64
}

// BoundObserver receives synchronous notifications about bound changes
// on subscribed variables. Implementations update incremental caches
// (activities) and mark dependent constraints for re-propagation.
type BoundObserver interface {
	OnBoundChanged(v Var, kind BoundKind, oldBound, newBound float64)
}

// VarStore is the engine's view of the host solver's variable storage.
type VarStore interface {
	// LowerBound and UpperBound return the current bounds; unbounded
	// sides are +-Inf (or beyond the configured Infinity threshold).
	LowerBound(v Var) float64
	UpperBound(v Var) float64

	// Bounds returns both bounds as an interval.
	Bounds(v Var) Interval

	// TightenLowerBound raises the lower bound to newBound if that is
	// an actual improvement. It reports (infeasible, tightened):
	// infeasible when the new bound contradicts the upper bound beyond
	// the feasibility tolerance, tightened when the stored bound
	// changed.
	TightenLowerBound(v Var, newBound float64) (infeasible, tightened bool)

	// TightenUpperBound is the mirror operation for upper bounds.
	TightenUpperBound(v Var, newBound float64) (infeasible, tightened bool)

	// Type returns the variable's domain type.
	Type(v Var) VarType

	// IsBinary reports whether the variable is binary either by type or
	// by an integral [0,1] domain.
	IsBinary(v Var) bool

	// IsActive reports whether the variable is still a live problem
	// variable (not fixed, aggregated or multi-aggregated).
	IsActive(v Var) bool

	// Status returns the presolve status of the variable.
	Status(v Var) VarStatus

	// Aggregation returns the defining expression of a non-active
	// variable. ok is false for active variables.
	Aggregation(v Var) (agg VarAggregation, ok bool)

	// Subscribe registers an observer for bound changes on v.
	Subscribe(v Var, obs BoundObserver)
}

// mapVar is the internal record of a MapVarStore variable.
type mapVar struct {
	lb, ub    float64
	typ       VarType
	status    VarStatus
	agg       VarAggregation
	observers []BoundObserver
}

// MapVarStore is a slice-backed VarStore for tests, demos and
// standalone use. Variables are issued dense handles starting at 0.
type MapVarStore struct {
	cfg  Config
	vars []mapVar
}

// NewMapVarStore creates an empty store using the given configuration
// for tolerance and infinity handling.
func NewMapVarStore(cfg Config) *MapVarStore {
	return &MapVarStore{cfg: cfg, vars: make([]mapVar, 0, 16)}
}

// NewVar adds a variable with the given bounds and type and returns its
// handle.
func (s *MapVarStore) NewVar(lb, ub float64, typ VarType) Var {
	if typ == VarBinary {
		lb = math.Max(lb, 0)
		ub = math.Min(ub, 1)
	}
	s.vars = append(s.vars, mapVar{lb: lb, ub: ub, typ: typ, status: StatusActive})
	return Var(len(s.vars) - 1)
}

// NumVars returns the number of variables issued so far.
func (s *MapVarStore) NumVars() int { return len(s.vars) }

func (s *MapVarStore) rec(v Var) *mapVar {
	if v < 0 || int(v) >= len(s.vars) {
		panic(fmt.Sprintf("quadprop: unknown variable %d", v))
	}
	return &s.vars[v]
}

// LowerBound implements VarStore.
func (s *MapVarStore) LowerBound(v Var) float64 { return s.rec(v).lb }

// UpperBound implements VarStore.
func (s *MapVarStore) UpperBound(v Var) float64 { return s.rec(v).ub }

// Bounds implements VarStore.
func (s *MapVarStore) Bounds(v Var) Interval {
	r := s.rec(v)
	return Interval{Inf: r.lb, Sup: r.ub}
}

// Type implements VarStore.
func (s *MapVarStore) Type(v Var) VarType { return s.rec(v).typ }

// IsBinary implements VarStore.
func (s *MapVarStore) IsBinary(v Var) bool {
	r := s.rec(v)
	if r.typ == VarBinary {
		return true
	}
	return r.typ == VarInteger && r.lb >= 0 && r.ub <= 1
}

// IsActive implements VarStore.
func (s *MapVarStore) IsActive(v Var) bool { return s.rec(v).status == StatusActive }

// Status implements VarStore.
func (s *MapVarStore) Status(v Var) VarStatus { return s.rec(v).status }

// Aggregation implements VarStore.
func (s *MapVarStore) Aggregation(v Var) (VarAggregation, bool) {
	r := s.rec(v)
	if r.status == StatusActive {
		return VarAggregation{}, false
	}
	return r.agg, true
}

// Subscribe implements VarStore.
func (s *MapVarStore) Subscribe(v Var, obs BoundObserver) {
	r := s.rec(v)
	r.observers = append(r.observers, obs)
}

func (s *MapVarStore) notify(v Var, kind BoundKind, oldBound, newBound float64) {
	for _, obs := range s.rec(v).observers {
		obs.OnBoundChanged(v, kind, oldBound, newBound)
	}
}

// TightenLowerBound implements VarStore. Integer variables round the
// candidate bound up to the next integer (within tolerance) before
// applying it.
func (s *MapVarStore) TightenLowerBound(v Var, newBound float64) (infeasible, tightened bool) {
	r := s.rec(v)
	if s.cfg.IsInfinity(newBound) {
		if newBound > 0 {
			return true, false
		}
		return false, false
	}
	if r.typ != VarContinuous {
		newBound = math.Ceil(newBound - s.cfg.FeasTol)
	}
	if newBound <= r.lb+s.cfg.FeasTol {
		return false, false
	}
	if newBound > r.ub+s.cfg.FeasTol {
		return true, false
	}
	old := r.lb
	r.lb = math.Min(newBound, r.ub)
	s.notify(v, LowerBoundKind, old, r.lb)
	return false, true
}

// TightenUpperBound implements VarStore.
func (s *MapVarStore) TightenUpperBound(v Var, newBound float64) (infeasible, tightened bool) {
	r := s.rec(v)
	if s.cfg.IsInfinity(newBound) {
		if newBound < 0 {
			return true, false
		}
		return false, false
	}
	if r.typ != VarContinuous {
		newBound = math.Floor(newBound + s.cfg.FeasTol)
	}
	if newBound >= r.ub-s.cfg.FeasTol {
		return false, false
	}
	if newBound < r.lb-s.cfg.FeasTol {
		return true, false
	}
	old := r.ub
	r.ub = math.Max(newBound, r.lb)
	s.notify(v, UpperBoundKind, old, r.ub)
	return false, true
}

// Fix marks v as fixed to value. Subsequent substitution passes replace
// every occurrence of v by the constant.
func (s *MapVarStore) Fix(v Var, value float64) {
	r := s.rec(v)
	r.status = StatusFixed
	r.agg = VarAggregation{Offset: value}
	r.lb, r.ub = value, value
}

// Aggregate marks v as scale*base + offset.
func (s *MapVarStore) Aggregate(v Var, scale float64, base Var, offset float64) {
	r := s.rec(v)
	r.status = StatusAggregated
	r.agg = VarAggregation{Scales: []float64{scale}, Vars: []Var{base}, Offset: offset}
}

// MultiAggregate marks v as sum_i scales[i]*vars[i] + offset.
func (s *MapVarStore) MultiAggregate(v Var, scales []float64, vars []Var, offset float64) error {
	if len(scales) != len(vars) {
		return fmt.Errorf("quadprop: multi-aggregation arity mismatch: %w", ErrInvalidArgument)
	}
	r := s.rec(v)
	sc := make([]float64, len(scales))
	copy(sc, scales)
	vs := make([]Var, len(vars))
	copy(vs, vars)
	r.status = StatusMultiAggregated
	r.agg = VarAggregation{Scales: sc, Vars: vs, Offset: offset}
	return nil
}
