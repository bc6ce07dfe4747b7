package gen

import (
	"strings"

	"github.com/ColonelBlimp/gomorse/code"
	"github.com/ColonelBlimp/gomorse/tone"
)

// EnqueueCharacter enqueues the dot/dash tones for one character, with
// the configured slope shape, using the derived timings in effect at
// call time. It does not add the trailing inter-character gap; callers
// sending connected text should follow it with an inter-character or
// inter-word gap as appropriate (see EnqueueWord/EnqueueText).
func (g *Generator) EnqueueCharacter(c rune) error {
	if g.Faulted() {
		return ErrFaulted
	}
	repr, ok := code.CharToRepr(c)
	if !ok {
		return code.ErrUnknownChar
	}
	d := g.Derived()
	p := g.Params()

	for i := 0; i < len(repr); i++ {
		if i > 0 {
			if err := g.enqueueGap(d.EoeDelayUS); err != nil {
				return err
			}
		}
		dur := d.DotLenUS
		if repr[i] == code.Dash {
			dur = d.DashLenUS
		}
		if err := g.queue.Enqueue(tone.Tone{
			DurationUS:  dur,
			FrequencyHz: p.FrequencyHz,
			Slope:       tone.SlopeStandard,
		}); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueWord enqueues every character of word separated by
// inter-character gaps, followed by one inter-word gap -- including
// after the last word sent, per the PARIS calibration convention
// (PARIS counts its trailing word gap as part of the 50-dot-unit
// standard).
func (g *Generator) EnqueueWord(word string) error {
	d := g.Derived()
	for i, c := range word {
		if i > 0 {
			if err := g.enqueueGap(d.EocDelayUS + g.Derived().AdditionalDelayUS); err != nil {
				return err
			}
		}
		if err := g.EnqueueCharacter(c); err != nil {
			return err
		}
	}
	return g.enqueueGap(d.EowDelayUS)
}

// EnqueueText splits text on whitespace and enqueues each word via
// EnqueueWord, so every word (including the last) is followed by one
// inter-word gap.
func (g *Generator) EnqueueText(text string) error {
	for _, w := range strings.Fields(text) {
		if err := g.EnqueueWord(w); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) enqueueGap(durUS int64) error {
	return g.queue.Enqueue(tone.Tone{
		DurationUS:  durUS,
		FrequencyHz: 0,
		Slope:       tone.SlopeNone,
	})
}
