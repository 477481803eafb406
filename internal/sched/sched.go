// Package sched is a cooperative single-threaded step/suspend driver:
// no goroutines perform the reasoning itself, only the driver loop and
// cancellation signal are reused from a worker pool's bookkeeping
// idioms (atomic counters, a sync.Once-guarded shutdown channel, a
// stats struct), repurposed for a single call stack that suspends at
// explicit checkpoints instead of fanning work out to goroutines.
package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status is the outcome of one Step call.
type Status int

const (
	// Progress means the stepper made progress and wants to be called
	// again.
	Progress Status = iota
	// NeedsInput means the stepper is suspended at a checkpoint awaiting
	// an external decision (used by interactive drivers; the CLI driver
	// never produces this).
	NeedsInput
	// Done means the stepper has finished; Run will not call Step again.
	Done
)

// Stepper is anything that can be driven one unit of work at a time.
// cmd/veripi's queryStepper, an adapter over pkg/veripi.QueryEngine, is
// the only Stepper in this module, but the
// interface keeps the driver loop itself free of any reasoning-specific
// detail.
type Stepper interface {
	Step() Status
}

// Stats accumulates driver-loop bookkeeping with atomic counters, the
// same instrumentation shape a worker pool's execution stats collect,
// trimmed to what a single-threaded loop can report.
type Stats struct {
	Started  time.Time
	Finished time.Time

	stepsRun  int64
	cancelled int64
}

// StepsRun returns the number of Step calls the driver made.
func (s *Stats) StepsRun() int64 { return atomic.LoadInt64(&s.stepsRun) }

// Cancelled reports whether the run ended via Cancel rather than Done.
func (s *Stats) Cancelled() bool { return atomic.LoadInt64(&s.cancelled) != 0 }

// Driver runs a Stepper to completion or cancellation, one Step call at
// a time. The Stepper itself decides where its suspension checkpoints
// fall by returning Progress from Step; the Driver's only job is to
// keep calling it and to stop promptly once cancelled.
type Driver struct {
	cancelCh chan struct{}
	once     sync.Once
	stats    *Stats
}

// NewDriver constructs a driver ready to run once.
func NewDriver() *Driver {
	return &Driver{
		cancelCh: make(chan struct{}),
		stats:    &Stats{},
	}
}

// Cancel requests the driver stop at its next Step boundary. Idempotent.
func (d *Driver) Cancel() {
	d.once.Do(func() {
		atomic.StoreInt64(&d.stats.cancelled, 1)
		close(d.cancelCh)
	})
}

// Cancelled reports whether Cancel has been called.
func (d *Driver) Cancelled() bool {
	select {
	case <-d.cancelCh:
		return true
	default:
		return false
	}
}

// Run drives s.Step() until it reports Done, or until the driver is
// cancelled, whichever comes first. It returns the accumulated Stats.
func (d *Driver) Run(s Stepper) *Stats {
	d.stats.Started = time.Now()
	defer func() { d.stats.Finished = time.Now() }()

	for {
		if d.Cancelled() {
			return d.stats
		}
		status := s.Step()
		atomic.AddInt64(&d.stats.stepsRun, 1)
		if status == Done {
			return d.stats
		}
		// NeedsInput and Progress both simply loop back: this driver has
		// no external input source to wait on, matching the CLI's
		// non-interactive use.
	}
}
