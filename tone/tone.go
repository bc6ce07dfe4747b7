// Package tone implements the timed-tone data model, the bounded
// producer/consumer tone queue used to decouple a client from the
// audio-writing generator, and the slope envelope tables used to
// shape tone onsets and offsets.
package tone

// SlopeMode selects which ends of a tone get an amplitude envelope
// applied, to avoid audible clicks at onset/offset.
type SlopeMode int

const (
	// SlopeNone applies no envelope; the tone is a flat-amplitude burst.
	SlopeNone SlopeMode = iota
	// SlopeRising ramps amplitude up only at the start of the tone.
	SlopeRising
	// SlopeFalling ramps amplitude down only at the end of the tone.
	SlopeFalling
	// SlopeStandard ramps up at the start and down at the end.
	SlopeStandard
)

// SlopeShape selects the envelope curve used to build a slope table.
type SlopeShape int

const (
	ShapeLinear SlopeShape = iota
	ShapeRaisedCosine
	ShapeSine
	ShapeRectangular
)

const (
	// QuantumUS is the generator's base timing quantum in microseconds,
	// taken from the original C implementation's CW_AUDIO_QUANTUM_USECS.
	QuantumUS = 100

	// ForeverDurationUS is the sentinel duration that marks a "forever"
	// tone: one that the queue keeps returning on dequeue, unconsumed,
	// until a real tone is enqueued behind it.
	ForeverDurationUS = -QuantumUS
)

// Tone is one timed keying action: a frequency held (or silence, at
// frequency 0) for a duration, with an envelope shape applied at its
// edges.
type Tone struct {
	DurationUS  int64
	FrequencyHz int32
	Slope       SlopeMode
	Forever     bool
}

// NewForever returns the distinguished "forever" tone used to hold a
// key state of unknown duration (e.g. a straight key held closed,
// before the matching release event arrives).
func NewForever(frequencyHz int32, slope SlopeMode) Tone {
	return Tone{
		DurationUS:  ForeverDurationUS,
		FrequencyHz: frequencyHz,
		Slope:       slope,
		Forever:     true,
	}
}

// IsForever reports whether t is the distinguished forever tone.
func (t Tone) IsForever() bool {
	return t.Forever
}
