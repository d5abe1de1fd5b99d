package quadprop

// monitor.go: monitoring and statistics for propagation and separation

import (
	"fmt"
	"sync"
	"time"
)

// PropagationStats holds statistics about propagation and cut
// generation.
type PropagationStats struct {
	// Propagation statistics
	PropagationCount int           // Number of propagation calls
	PropagationTime  time.Duration // Time spent in propagation
	Rounds           int           // Total propagation rounds executed
	Tightenings      int           // Number of bound tightenings applied
	Cutoffs          int           // Number of infeasibility detections

	// Separation statistics
	CutsGenerated  int           // Number of cuts accepted
	CutsRejected   int           // Number of cuts discarded (efficacy or range)
	SeparationTime time.Duration // Time spent generating cuts

	// Presolve statistics
	Substitutions   int // Number of fixed/aggregated variables removed
	CurvatureChecks int // Number of curvature classifications computed
}

// PropagationMonitor provides monitoring capabilities for the
// propagation engine. All methods are safe for concurrent use so a
// single monitor can aggregate over constraints handled on different
// goroutines.
type PropagationMonitor struct {
	mu        sync.Mutex
	stats     *PropagationStats
	propStart time.Time
	sepStart  time.Time
}

// NewPropagationMonitor creates a new monitor.
func NewPropagationMonitor() *PropagationMonitor {
	return &PropagationMonitor{stats: &PropagationStats{}}
}

// GetStats returns a copy of the current statistics.
func (m *PropagationMonitor) GetStats() *PropagationStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := *m.stats
	return &stats
}

// StartPropagation marks the beginning of a propagation call.
func (m *PropagationMonitor) StartPropagation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propStart = time.Now()
}

// EndPropagation marks the end of a propagation call.
func (m *PropagationMonitor) EndPropagation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.propStart.IsZero() {
		m.stats.PropagationTime += time.Since(m.propStart)
		m.stats.PropagationCount++
		m.propStart = time.Time{}
	}
}

// StartSeparation marks the beginning of a cut generation call.
func (m *PropagationMonitor) StartSeparation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sepStart = time.Now()
}

// EndSeparation marks the end of a cut generation call.
func (m *PropagationMonitor) EndSeparation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sepStart.IsZero() {
		m.stats.SeparationTime += time.Since(m.sepStart)
		m.sepStart = time.Time{}
	}
}

// RecordRound records a completed propagation round.
func (m *PropagationMonitor) RecordRound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Rounds++
}

// RecordTightening records an applied bound tightening.
func (m *PropagationMonitor) RecordTightening() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Tightenings++
}

// RecordCutoff records an infeasibility detection.
func (m *PropagationMonitor) RecordCutoff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Cutoffs++
}

// RecordCut records an accepted cut.
func (m *PropagationMonitor) RecordCut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.CutsGenerated++
}

// RecordCutRejected records a cut discarded by the quality filters.
func (m *PropagationMonitor) RecordCutRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.CutsRejected++
}

// RecordSubstitution records a variable removed by presolve.
func (m *PropagationMonitor) RecordSubstitution() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Substitutions++
}

// RecordCurvatureCheck records a curvature classification.
func (m *PropagationMonitor) RecordCurvatureCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.CurvatureChecks++
}

// String returns a formatted string representation of the statistics.
func (s *PropagationStats) String() string {
	return fmt.Sprintf(
		"Propagation Statistics:\n"+
			"  Propagation: %d calls, %d rounds, %d tightenings, %d cutoffs, %v time\n"+
			"  Separation: %d cuts, %d rejected, %v time\n"+
			"  Presolve: %d substitutions, %d curvature checks",
		s.PropagationCount, s.Rounds, s.Tightenings, s.Cutoffs, s.PropagationTime,
		s.CutsGenerated, s.CutsRejected, s.SeparationTime,
		s.Substitutions, s.CurvatureChecks,
	)
}
