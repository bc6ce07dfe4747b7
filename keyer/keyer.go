// Package keyer implements the iambic paddle keyer and the
// straight-key adapter. Both are time-driven state machines that turn
// key events into a stream of tone.Tone elements on a gen.Generator's
// queue, and notify a receiver.Receiver in lock-step so self-generated
// tones are also "received". A Keyer takes non-owning references to
// both and outlives neither.
package keyer

import (
	"errors"
	"sync"
	"time"

	"github.com/ColonelBlimp/gomorse/gen"
	"github.com/ColonelBlimp/gomorse/receiver"
	"github.com/ColonelBlimp/gomorse/tone"
)

// State is one node of the iambic keyer's state machine.
type State int

const (
	Idle State = iota
	Dot
	Dash
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Dot:
		return "Dot"
	case Dash:
		return "Dash"
	default:
		return "Unknown"
	}
}

// ErrNoGenerator is returned by New when g is nil; a keyer cannot exist
// without something to enqueue tones on.
var ErrNoGenerator = errors.New("keyer: generator must not be nil")

// Keyer is an iambic (Curtis mode-B) paddle keyer. It borrows a
// Generator to enqueue dot/dash elements on, and optionally a Receiver
// to notify of each element as it actually plays (for echo/practice
// modes); either reference may outlive the Keyer, which holds no
// ownership over them.
type Keyer struct {
	mu sync.Mutex

	gen *gen.Generator
	rcv *receiver.Receiver

	state                State
	dotPaddle, dashPaddle bool
	dotLatch, dashLatch   bool
}

// New returns an iambic keyer driving g, optionally notifying rcv of
// each element played. New registers itself as g's keying callback, so
// a generator should have at most one Keyer attached at a time.
func New(g *gen.Generator, rcv *receiver.Receiver) (*Keyer, error) {
	if g == nil {
		return nil, ErrNoGenerator
	}
	k := &Keyer{gen: g, rcv: rcv, state: Idle}
	g.SetKeyingCallback(k.onKeyChange)
	return k, nil
}

// State returns the keyer's current state.
func (k *Keyer) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// DotPaddle reports a change in the dot paddle's contact state. A
// press while Idle starts a dot immediately; a press while the dash
// element is playing sets the mode-B latch, honored at the next
// element boundary even if released before then.
func (k *Keyer) DotPaddle(down bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.dotPaddle = down
	if !down {
		return nil
	}
	k.dotLatch = true
	if k.state == Idle {
		if err := k.enqueueElement(receiver.Dot); err != nil {
			return err
		}
		k.state = Dot
		k.dotLatch = false
	}
	return nil
}

// DashPaddle reports a change in the dash paddle's contact state; see
// DotPaddle.
func (k *Keyer) DashPaddle(down bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.dashPaddle = down
	if !down {
		return nil
	}
	k.dashLatch = true
	if k.state == Idle {
		if err := k.enqueueElement(receiver.Dash); err != nil {
			return err
		}
		k.state = Dash
		k.dashLatch = false
	}
	return nil
}

// onKeyChange is the Generator's keying callback. A key-up edge marks
// the completion of the element currently playing (including its
// trailing inter-mark space starting now) -- this is the keyer's
// "tick()" event, delivered by the real audio clock
// rather than a software timer.
func (k *Keyer) onKeyChange(ts time.Time, down bool) {
	if down {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.onElementEnd(ts)
}

// onElementEnd applies the iambic state transition table at an
// element boundary. Must be called with k.mu held.
func (k *Keyer) onElementEnd(ts time.Time) {
	if k.state == Idle {
		return // stray tick, e.g. from Silence(); nothing of ours ended
	}

	finishing := receiver.Dot
	if k.state == Dash {
		finishing = receiver.Dash
	}

	switch k.state {
	case Dot:
		switch {
		case k.dashLatch || k.dashPaddle:
			_ = k.enqueueElement(receiver.Dash)
			k.state = Dash
		case k.dotPaddle:
			_ = k.enqueueElement(receiver.Dot)
			k.state = Dot
		default:
			k.state = Idle
		}
	case Dash:
		switch {
		case k.dotLatch || k.dotPaddle:
			_ = k.enqueueElement(receiver.Dot)
			k.state = Dot
		case k.dashPaddle:
			_ = k.enqueueElement(receiver.Dash)
			k.state = Dash
		default:
			k.state = Idle
		}
	}

	// Consumed (or not) latches are cleared at every boundary; a paddle
	// still physically held is re-latched on its next press edge, and
	// its continued-down state is already tracked independently via
	// dotPaddle/dashPaddle.
	k.dotLatch = false
	k.dashLatch = false

	if k.rcv != nil {
		_ = k.rcv.AddMark(finishing, &ts)
	}
}

// enqueueElement enqueues one dot or dash tone followed by its
// inter-mark space, using the generator's current frequency and
// derived timings. Must be called with k.mu held.
func (k *Keyer) enqueueElement(kind receiver.MarkKind) error {
	p := k.gen.Params()
	d := k.gen.Derived()
	q := k.gen.Queue()

	dur := d.DotLenUS
	if kind == receiver.Dash {
		dur = d.DashLenUS
	}

	if err := q.Enqueue(tone.Tone{
		DurationUS:  dur,
		FrequencyHz: p.FrequencyHz,
		Slope:       tone.SlopeStandard,
	}); err != nil {
		return err
	}
	return q.Enqueue(tone.Tone{
		DurationUS:  d.EoeDelayUS,
		FrequencyHz: 0,
		Slope:       tone.SlopeNone,
	})
}
