package keyer

import (
	"errors"
	"sync"
	"time"

	"github.com/ColonelBlimp/gomorse/gen"
	"github.com/ColonelBlimp/gomorse/receiver"
	"github.com/ColonelBlimp/gomorse/tone"
)

var (
	ErrAlreadyDown = errors.New("keyer: straight key already down")
	ErrNotDown     = errors.New("keyer: straight key not down")
)

// StraightKey adapts a single-contact key's open/close events to a
// Generator's tone queue. Unlike the iambic Keyer, which always knows
// the exact element it is producing, a straight key's mark duration is
// whatever the operator holds it for -- so it is measured, not
// assumed: KeyDown enqueues the distinguished forever tone (duration
// unknown until release) and opens a receiver mark via MarkBegin;
// KeyUp enqueues a real tone behind it (ending the forever hold) and
// closes the mark via MarkEnd, letting the Receiver classify the
// measured length.
type StraightKey struct {
	mu   sync.Mutex
	gen  *gen.Generator
	rcv  *receiver.Receiver
	down bool
}

// NewStraightKey returns a straight-key adapter driving g, optionally
// notifying rcv of each measured mark.
func NewStraightKey(g *gen.Generator, rcv *receiver.Receiver) (*StraightKey, error) {
	if g == nil {
		return nil, ErrNoGenerator
	}
	return &StraightKey{gen: g, rcv: rcv}, nil
}

// IsDown reports whether the key is currently held closed.
func (sk *StraightKey) IsDown() bool {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	return sk.down
}

// KeyDown reports the key contact closing at ts (nil meaning "now").
func (sk *StraightKey) KeyDown(ts *time.Time) error {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if sk.down {
		return ErrAlreadyDown
	}
	sk.down = true

	freq := sk.gen.Params().FrequencyHz
	if err := sk.gen.Queue().Enqueue(tone.NewForever(freq, tone.SlopeStandard)); err != nil {
		return err
	}
	if sk.rcv != nil {
		return sk.rcv.MarkBegin(ts)
	}
	return nil
}

// KeyUp reports the key contact opening at ts (nil meaning "now").
func (sk *StraightKey) KeyUp(ts *time.Time) error {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if !sk.down {
		return ErrNotDown
	}
	sk.down = false

	d := sk.gen.Derived()
	if err := sk.gen.Queue().Enqueue(tone.Tone{
		DurationUS:  d.EoeDelayUS,
		FrequencyHz: 0,
		Slope:       tone.SlopeNone,
	}); err != nil {
		return err
	}
	if sk.rcv != nil {
		return sk.rcv.MarkEnd(ts)
	}
	return nil
}
