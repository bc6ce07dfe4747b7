// Package receiver implements the receive-side state machine: it ingests mark-begin/mark-end timestamps or pre-classified
// marks, classifies marks as dots or dashes, accumulates a
// representation, detects inter-character/inter-word gaps on poll,
// tracks an adaptive moving-average speed estimate, and maintains
// timing-error statistics.
package receiver

import (
	"errors"
	"sync"
	"time"

	"github.com/ColonelBlimp/gomorse/code"
	"github.com/ColonelBlimp/gomorse/timing"
)

// State is one node of the receiver's state machine.
type State int

const (
	Idle State = iota
	Mark
	Space
	EocGap
	EowGap
	EocGapErr
	EowGapErr
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Mark:
		return "Mark"
	case Space:
		return "Space"
	case EocGap:
		return "EocGap"
	case EowGap:
		return "EowGap"
	case EocGapErr:
		return "EocGapErr"
	case EowGapErr:
		return "EowGapErr"
	default:
		return "Unknown"
	}
}

// MarkKind is the classification of one mark.
type MarkKind int

const (
	Dot MarkKind = iota
	Dash
)

// ReprCap is the representation buffer's fixed capacity.
const ReprCap = 256

var (
	ErrBadTimestamp = errors.New("receiver: timestamp not monotonic")
	ErrOutOfRange   = errors.New("receiver: operation not valid in current state")
	ErrUnknown      = errors.New("receiver: mark length matches no known element")
	ErrAgain        = errors.New("receiver: not enough data yet")
	ErrBufferFull   = errors.New("receiver: representation buffer full")
)

// Receiver is the client-owned receive state machine. It is not
// internally shared across goroutines in the sense the tone queue is:
// it runs entirely on the client task, so its mutex exists only to let
// a signal/callback context safely hand timestamps to it rather than
// to support concurrent polling.
type Receiver struct {
	mu sync.Mutex

	params  Params
	derived Derived
	dirty   bool

	state       State
	preMarkState State // state to roll back to if this mark is noise

	markStart time.Time
	markEnd   time.Time
	prevTS    time.Time

	repr     []byte
	errored  bool // true once the buffered representation was truncated by overflow

	avgDot  movingAverage
	avgDash movingAverage

	stats statsRing
}

// New returns a Receiver in the Idle state with the given parameters.
func New(params Params) (*Receiver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	r := &Receiver{
		params: params,
		repr:   make([]byte, 0, ReprCap),
	}
	r.resync()
	return r, nil
}

// Params returns the current parameters.
func (r *Receiver) Params() Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// SetParams validates and installs new parameters; derived timings are
// recomputed lazily on next use.
func (r *Receiver) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = p
	r.dirty = true
	return nil
}

// Derived returns the currently-effective derived timing windows.
func (r *Receiver) Derived() Derived {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncIfDirty()
	return r.derived
}

// GetReceiveSpeed returns the current speed estimate: the configured
// speed in non-adaptive mode, or the speed implied by the adaptive
// moving averages once at least one mark of each kind has been seen.
func (r *Receiver) GetReceiveSpeed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncIfDirty()
	if !r.params.Adaptive || r.derived.UnitUS <= 0 {
		return r.params.SpeedWPM
	}
	wpm := CWDotCalibrationUS / int(r.derived.UnitUS)
	return clampWPM(wpm)
}

func clampWPM(wpm int) int {
	if wpm < SpeedMinWPM {
		return SpeedMinWPM
	}
	if wpm > SpeedMaxWPM {
		return SpeedMaxWPM
	}
	return wpm
}

// wpmForSync guards only against non-positive values (which would
// divide by zero or invert sign in syncFromWPM); it deliberately does
// NOT clamp to [SpeedMinWPM, SpeedMaxWPM] so the first resync pass can
// observe an out-of-range speed and the second pass's clamp has
// something real to correct.
func wpmForSync(wpm int) int {
	if wpm < 1 {
		return 1
	}
	return wpm
}

// syncIfDirty recomputes derived timings if a setter has dirtied them,
// or if adaptive mode is active and the moving averages moved since the
// last computation. Must be called with r.mu held.
func (r *Receiver) syncIfDirty() {
	if r.dirty || r.derived.UnitUS == 0 {
		r.resync()
	}
}

// resync recomputes derived from params (and, in adaptive mode, from
// the moving averages), then clamps the implied speed to
// [SpeedMinWPM, SpeedMaxWPM]. A clamp forces a second resync pass
// using the clamped speed so every dependent timing is consistent
// with it, rather than folding the clamp into one pass.
func (r *Receiver) resync() {
	wpm := r.params.SpeedWPM
	if r.params.Adaptive && r.avgDot.ready() && r.avgDash.ready() {
		threshold := (r.avgDash.value() + r.avgDot.value()) / 2
		// The threshold sits midway between a 1-unit dot and a 3-unit
		// dash, so it spans two units.
		if unit := threshold / 2; unit > 0 {
			wpm = CWDotCalibrationUS / int(unit)
		}
	}

	// First pass: derive timings straight from the (possibly
	// out-of-range) observed speed.
	r.derived = syncFromWPM(wpmForSync(wpm), r.params.Tolerance)

	clamped := clampWPM(wpm)
	if clamped != wpm {
		// Second resync pass: the first pass's unit came from an
		// out-of-range wpm; recompute once more from the clamped value so
		// every dependent timing agrees with the speed actually reported.
		r.derived = syncFromWPM(clamped, r.params.Tolerance)
	}

	r.dirty = false
}

// MarkBegin records the start of a mark at ts (nil meaning "now").
func (r *Receiver) MarkBegin(ts *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Mark {
		return ErrOutOfRange
	}

	t, err := r.validateTimestamp(ts)
	if err != nil {
		return err
	}

	r.preMarkState = r.state
	r.markStart = t
	r.state = Mark
	return nil
}

// MarkEnd records the end of a mark at ts, classifies it, applies the
// noise filter, updates statistics and the adaptive tracker, and
// appends the classified symbol to the representation buffer.
func (r *Receiver) MarkEnd(ts *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Mark {
		return ErrOutOfRange
	}

	t, err := r.validateTimestamp(ts)
	if err != nil {
		return err
	}
	r.markEnd = t
	length := timing.DiffMicros(r.markStart, r.markEnd)

	if r.params.NoiseSpikeThresholdUS > 0 && length <= r.params.NoiseSpikeThresholdUS {
		// Discard the pair entirely and roll back to the state held
		// before mark_begin.
		r.state = r.preMarkState
		return nil
	}

	r.syncIfDirty()
	kind, err := r.identifyMark(length)
	if err != nil {
		r.state = Space
		return err
	}

	if len(r.repr) >= ReprCap {
		// Buffer overflow: the overflowing mark's length is treated as
		// a space length for state-transition/statistics purposes, an
		// inherited quirk kept here even though it was a mark, not a
		// space, that overflowed.
		r.stats.push(StatInterCharSpace, length-r.derived.EocLen.Ideal)
		r.state = EocGapErr
		r.errored = true
		return ErrBufferFull
	}

	r.appendMark(kind, length)
	r.state = Space
	return nil
}

// AddMark appends a pre-classified mark (kind already known, e.g. from
// a keyer that generated the element itself) without timing-based
// classification. Statistics are not updated since no duration was
// measured independently of the keyer's own timing.
func (r *Receiver) AddMark(kind MarkKind, ts *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Mark {
		return ErrOutOfRange
	}
	t, err := r.validateTimestamp(ts)
	if err != nil {
		return err
	}

	if len(r.repr) >= ReprCap {
		r.state = EocGapErr
		r.errored = true
		return ErrBufferFull
	}

	sym := byte(code.Dot)
	if kind == Dash {
		sym = code.Dash
	}
	r.repr = append(r.repr, sym)
	r.markEnd = t
	r.state = Space
	return nil
}

func (r *Receiver) appendMark(kind MarkKind, length int64) {
	sym := byte(code.Dot)
	ideal := r.derived.DotLen.Ideal
	statType := StatDot
	if kind == Dash {
		sym = code.Dash
		ideal = r.derived.DashLen.Ideal
		statType = StatDash
	}
	r.repr = append(r.repr, sym)
	r.stats.push(statType, length-ideal)

	if r.params.Adaptive {
		if kind == Dot {
			r.avgDot.add(length)
		} else {
			r.avgDash.add(length)
		}
		r.dirty = true
	}
}

// identifyMark classifies a mark length against the dot/dash timing
// windows. Must be called with r.mu held and derived already synced.
func (r *Receiver) identifyMark(length int64) (MarkKind, error) {
	if r.params.Adaptive && r.avgDot.ready() {
		if length <= 2*r.avgDot.value() {
			return Dot, nil
		}
		return Dash, nil
	}
	if length >= r.derived.DotLen.Min && length <= r.derived.DotLen.Max {
		return Dot, nil
	}
	if length >= r.derived.DashLen.Min && length <= r.derived.DashLen.Max {
		return Dash, nil
	}
	return 0, ErrUnknown
}

// PollRepresentation polls for a completed representation. It reports
// ErrAgain if the receiver has not yet seen an end-of-character gap,
// and is idempotent for an already-completed gap until Clear is called.
func (r *Receiver) PollRepresentation(ts *time.Time) (repr string, endOfWord bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Mark:
		return "", false, ErrAgain
	case Idle:
		return "", false, ErrAgain
	case EocGap:
		return string(r.repr), false, r.errIfErrored()
	case EowGap:
		return string(r.repr), true, r.errIfErrored()
	case EocGapErr:
		return string(r.repr), false, ErrBufferFull
	case EowGapErr:
		return string(r.repr), true, ErrBufferFull
	case Space:
		// A poll only reads the clock: it may share the timestamp of the
		// mark event before or after it, so it is checked against the last
		// mark event without being recorded as one.
		t := timing.OrNow(ts)
		if t.Before(r.prevTS) {
			return "", false, ErrBadTimestamp
		}
		r.syncIfDirty()
		s := timing.DiffMicros(r.markEnd, t)
		switch {
		case s < r.derived.EocLen.Min:
			return "", false, ErrAgain
		case s <= r.derived.EocLen.Max:
			r.state = EocGap
			return string(r.repr), false, r.errIfErrored()
		default:
			r.state = EowGap
			return string(r.repr), true, r.errIfErrored()
		}
	default:
		return "", false, ErrOutOfRange
	}
}

func (r *Receiver) errIfErrored() error {
	if r.errored {
		return ErrBufferFull
	}
	return nil
}

// PollCharacter polls for a completed character by decoding the
// completed representation through the code table.
func (r *Receiver) PollCharacter(ts *time.Time) (ch rune, endOfWord bool, err error) {
	repr, eow, err := r.PollRepresentation(ts)
	if err != nil && err != ErrBufferFull {
		return 0, eow, err
	}
	if repr == "" {
		return 0, eow, ErrAgain
	}
	c, ok := code.ReprToChar(repr)
	if !ok {
		return 0, eow, errors.Join(ErrUnknown, err)
	}
	return c, eow, err
}

// Clear returns the receiver to Idle and empties the representation
// buffer; statistics and adaptive averages are left intact (use
// ResetStats to clear those separately).
func (r *Receiver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Idle
	r.repr = r.repr[:0]
	r.errored = false
	r.markStart = time.Time{}
	r.markEnd = time.Time{}
}

// ResetStats empties the timing-error statistics ring and the adaptive
// moving averages.
func (r *Receiver) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.reset()
	r.avgDot = movingAverage{}
	r.avgDash = movingAverage{}
	r.dirty = true
}

// Stats returns the root-mean-square timing error, in microseconds, for
// entries of the given type.
func (r *Receiver) Stats(t StatType) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.rms(t)
}

// State returns the receiver's current state.
func (r *Receiver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Receiver) validateTimestamp(ts *time.Time) (time.Time, error) {
	t := timing.OrNow(ts)
	if err := timing.Validate(r.prevTS, t); err != nil {
		return time.Time{}, ErrBadTimestamp
	}
	r.prevTS = t
	return t, nil
}
