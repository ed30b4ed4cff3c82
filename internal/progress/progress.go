// Package progress defines the two-phase progress contract shared by the
// ingestion and transcoding stages.
package progress

import "sync"

// Phase names the stage a progress event belongs to.
type Phase string

const (
	// PhaseReading is emitted while a large input is read in chunks.
	PhaseReading Phase = "reading"
	// PhaseProcessing is emitted while the codec subprocess runs.
	PhaseProcessing Phase = "processing"
)

// Event is a single progress report.
type Event struct {
	Phase Phase `json:"phase,omitempty"`
	// Percent is in [0, 100].
	Percent float64 `json:"percent"`
	// CurrentTime is the encoder position as HH:MM:SS.cc, when known.
	CurrentTime string `json:"currentTime,omitempty"`
	// TargetSize is the number of output bytes written so far, when known.
	TargetSize int64 `json:"targetSize,omitempty"`
}

// Func receives progress events. A nil Func is valid and discards events.
type Func func(Event)

// Emit calls f if it is not nil.
func (f Func) Emit(e Event) {
	if f != nil {
		f(e)
	}
}

// Scale maps the 0..100 events of an inner stage into the [lo, hi] band of
// the outer one, tagging them with phase.
func Scale(next Func, phase Phase, lo, hi float64) Func {
	return func(e Event) {
		e.Phase = phase
		e.Percent = lo + clamp(e.Percent)*(hi-lo)/100
		next.Emit(e)
	}
}

// Tracker forwards events to a Func while guaranteeing that the percent values
// it emits are clamped to [0, 100] and never decrease. It is safe for
// concurrent use.
type Tracker struct {
	mu   sync.Mutex
	last float64
	next Func
}

// NewTracker creates a Tracker that forwards to next.
func NewTracker(next Func) *Tracker {
	return &Tracker{next: next}
}

// Report forwards e, raising its percent to the highest value seen so far.
// Events are delivered in the order their percent was assigned, so next must
// not call back into t.
func (t *Tracker) Report(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := clamp(e.Percent)
	if p < t.last {
		p = t.last
	}
	t.last = p
	e.Percent = p
	t.next.Emit(e)
}

// Func returns t.Report as a Func.
func (t *Tracker) Func() Func {
	return t.Report
}

// Percent returns the highest percent reported so far.
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func clamp(p float64) float64 {
	switch {
	case p != p: // NaN
		return 0
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
