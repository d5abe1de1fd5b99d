// Package quadprop implements the numerical core of a quadratic
// constraint handler for mixed-integer nonlinear solvers: sparse
// storage of quadratic expressions, interval-arithmetic bound
// propagation, convexity classification, and linear cut generation.
//
// A constraint has the form
//
//	lhs <= sum(b_i*x_i) + sum(a_j*y_j*z_j) <= rhs
//
// where the quadratic part mixes square terms and bilinear products.
// The package provides four cooperating subsystems:
//
//   - QuadExpr: the sparse term store (linear terms, quadratic-variable
//     terms, bilinear terms, adjacency lists) with incremental edits,
//     lazy sorting/merging and affine variable substitution.
//   - Activity tracking: event-driven min/max activity of the linear
//     part and on-demand interval activity of the quadratic part, both
//     with directed (outward) rounding so cached bounds are never
//     tighter than an exact recomputation.
//   - Bound propagation: per-variable univariate quadratic solves over
//     interval right-hand sides, detecting infeasibility (cutoff) or
//     producing sound bound tightenings.
//   - Cut generation: tangent, secant and McCormick linearizations with
//     coefficient-range control and efficacy filtering.
//
// The package is single-threaded: all entry points are meant to be
// driven from a host solver's propagation/separation callbacks on one
// goroutine. Caches are invalidated by mutators and rebuilt lazily
// by readers.
//
// Variable storage is external. The VarStore interface is the only
// contact surface with the host's bound storage; MapVarStore is an
// in-memory implementation suitable for tests and standalone use.
package quadprop
