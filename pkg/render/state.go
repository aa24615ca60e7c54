package render

import (
	"sync"
	"sync/atomic"
)

// passState tracks the lifecycle of one rendering engine: whether the
// worker pool should keep running, whether a recompute is pending or
// in flight, and whether the in-flight pass has gone stale. Kernels
// poll it at every marching step and pixel write, so reads are plain
// atomic loads; compound transitions hold the mutex to keep paired
// flag updates consistent.
type passState struct {
	mu        sync.Mutex
	running   atomic.Bool
	computing atomic.Bool
	restart   atomic.Bool
}

// StartRunning marks the worker pool live.
func (s *passState) StartRunning() {
	s.mu.Lock()
	s.running.Store(true)
	s.mu.Unlock()
}

// StopRunning shuts the pool down. An interrupted recompute is
// recorded as a pending restart so the next start picks it up.
func (s *passState) StopRunning() {
	s.mu.Lock()
	s.running.Store(false)
	if s.computing.Load() {
		s.restart.Store(true)
	}
	s.computing.Store(false)
	s.mu.Unlock()
}

// Running reports whether the worker pool should keep going.
func (s *passState) Running() bool {
	return s.running.Load()
}

// RequestCompute asks for a fresh raster. A request landing while a
// pass is in flight marks that pass stale so it aborts and reruns.
func (s *passState) RequestCompute() {
	s.mu.Lock()
	if s.computing.Load() {
		s.restart.Store(true)
	}
	s.computing.Store(true)
	s.mu.Unlock()
}

// FinishComputing marks the recompute satisfied after a fully
// completed pass. If a restart request arrived after the workers'
// last staleness poll, the pending flag stays set and the next pass
// begins instead.
func (s *passState) FinishComputing() {
	s.mu.Lock()
	if !s.restart.Load() {
		s.computing.Store(false)
	}
	s.mu.Unlock()
}

// Computing reports whether a recompute is pending or in flight.
func (s *passState) Computing() bool {
	return s.computing.Load()
}

// ShouldRestart reports whether the in-flight pass has been declared
// stale.
func (s *passState) ShouldRestart() bool {
	return s.restart.Load()
}

// ClearRestart acknowledges a restart at the start of a new pass.
func (s *passState) ClearRestart() {
	s.mu.Lock()
	s.restart.Store(false)
	s.mu.Unlock()
}

// Stale reports whether the current pass should abort: either the
// recompute was cancelled or a restart was requested. Kernels check
// this before every sample and every pixel write.
func (s *passState) Stale() bool {
	return !s.computing.Load() || s.restart.Load()
}
