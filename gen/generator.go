// Package gen implements the audio-synthesis state machine: it
// dequeues tones from a tone.Queue, synthesizes bandlimited sine
// samples with a configurable slope envelope, fills a fixed-size PCM
// buffer, and writes it to a sink.Sink. Parameter changes take effect
// at the start of the next tone, never mid-tone.
package gen

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/gomorse/internal/recovery"
	"github.com/ColonelBlimp/gomorse/sink"
	"github.com/ColonelBlimp/gomorse/tone"
)

var (
	// ErrAlreadyRunning is returned by Start when the generator is
	// already running.
	ErrAlreadyRunning = errors.New("gen: already running")
	// ErrFaulted is returned by EnqueueCharacter (and so by EnqueueWord
	// and EnqueueText) once the writer has hit a fatal sink error.
	ErrFaulted = errors.New("gen: generator faulted, sink write failed")
)

const amplitudeMax = 32767.0

// KeyingCallback is invoked whenever the output key's state changes,
// always from the writer goroutine, never while holding an internal
// lock.
type KeyingCallback func(ts time.Time, keyDown bool)

// snapshot bundles a Params value with its derived timings and slope
// table, built once per SetParams call so the writer goroutine can pick
// up a consistent, immutable view atomically.
type snapshot struct {
	params  Params
	derived Derived
	slope   *tone.SlopeTable
}

// Generator owns a tone.Queue and a sink.Sink and runs the writer
// goroutine that drains the queue into audio. The client task mutates
// parameters and enqueues tones; only the writer goroutine touches
// phase/active-tone state, so no lock is needed there.
type Generator struct {
	queue *tone.Queue
	sink  sink.Sink

	sampleRateHz   float64
	bufferNSamples int

	paramsPtr atomic.Pointer[snapshot]

	running atomic.Bool
	faulted atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	keyingCbPtr atomic.Pointer[KeyingCallback]

	// activeRemainingUS is the writer goroutine's published estimate of
	// the active tone's remaining duration, read by Silence from the
	// client task. It is the only piece of active-tone state visible
	// outside the writer goroutine, and only through this atomic.
	activeRemainingUS atomic.Int64

	// Writer-goroutine-only state (no synchronization needed: single
	// writer, never touched by the client task).
	phase              float64
	activeTone         tone.Tone
	activeHasTone      bool
	activeSnapshot     *snapshot
	activeSampleIndex  int64
	activeTotalSamples int64
	lastKeyDown        bool
}

// New creates a Generator over queue and an unopened sink, at the given
// sample rate and preferred PCM buffer size (frames per writer
// iteration). initial is validated before being stored.
func New(q *tone.Queue, s sink.Sink, sampleRateHz float64, bufferNSamples int, initial Params) (*Generator, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		queue:          q,
		sink:           s,
		sampleRateHz:   sampleRateHz,
		bufferNSamples: bufferNSamples,
	}
	g.storeParams(initial)
	return g, nil
}

func (g *Generator) storeParams(p Params) {
	snap := &snapshot{
		params:  p,
		derived: Sync(p),
		slope:   tone.NewSlopeTable(p.SlopeShape, p.SlopeLengthUS, g.sampleRateHz),
	}
	g.paramsPtr.Store(snap)
}

// SetParams validates and installs new parameters. The change is
// visible to the writer goroutine starting with the next tone it
// dequeues; any tone already in flight keeps the parameters that were
// active when it was dequeued.
func (g *Generator) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	g.storeParams(p)
	return nil
}

// Params returns the most recently installed parameters.
func (g *Generator) Params() Params {
	return g.paramsPtr.Load().params
}

// Derived returns the low-level timings derived from the current
// parameters.
func (g *Generator) Derived() Derived {
	return g.paramsPtr.Load().derived
}

// WPM returns the current send speed.
func (g *Generator) WPM() int {
	return g.paramsPtr.Load().params.SendSpeedWPM
}

// Queue returns the generator's tone queue, for enqueuing.
func (g *Generator) Queue() *tone.Queue {
	return g.queue
}

// SetKeyingCallback registers (or, with nil, deregisters) the callback
// invoked whenever the output key's state changes.
func (g *Generator) SetKeyingCallback(cb KeyingCallback) {
	if cb == nil {
		g.keyingCbPtr.Store(nil)
		return
	}
	g.keyingCbPtr.Store(&cb)
}

// Start opens the sink, spawns the writer goroutine, and returns once
// the writer is ready to accept tones.
func (g *Generator) Start(device string) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if err := g.sink.Open(device); err != nil {
		g.running.Store(false)
		return err
	}

	g.stopCh = make(chan struct{})
	g.doneCh = make(chan struct{})
	g.faulted.Store(false)

	ready := make(chan struct{})
	go g.writerLoop(ready)
	<-ready

	return nil
}

// Stop signals the writer to stop, wakes any queue wait, and joins it.
// Tones still queued at stop time are discarded. Stop is idempotent.
func (g *Generator) Stop() error {
	if !g.running.CompareAndSwap(true, false) {
		return nil
	}
	close(g.stopCh)
	g.queue.Close()
	<-g.doneCh
	g.queue.Flush()
	return nil
}

// Close releases the sink. Call after Stop.
func (g *Generator) Close() error {
	return g.sink.Close()
}

// Faulted reports whether the writer hit a fatal sink error and
// stopped itself.
func (g *Generator) Faulted() bool {
	return g.faulted.Load()
}

// Silence enqueues a zero-frequency tone long enough to guarantee the
// sink is back at zero amplitude before returning: the remainder of
// whatever tone is currently active, plus one end-of-word delay.
func (g *Generator) Silence() error {
	snap := g.paramsPtr.Load()
	remainder := g.activeRemainderUS()
	dur := remainder + snap.derived.EowDelayUS
	if dur <= 0 {
		dur = snap.derived.EowDelayUS
	}
	return g.queue.Enqueue(tone.Tone{
		DurationUS:  dur,
		FrequencyHz: 0,
		Slope:       tone.SlopeNone,
	})
}

// activeRemainderUS is a best-effort estimate of the active tone's
// remaining duration, published by the writer goroutine once per
// buffer fill via storeRemainder; exact only up to one buffer's worth
// of jitter.
func (g *Generator) activeRemainderUS() int64 {
	return g.activeRemainingUS.Load()
}

// storeRemainder publishes the active tone's remaining duration for
// activeRemainderUS to read. Called only from the writer goroutine.
func (g *Generator) storeRemainder() {
	if !g.activeHasTone {
		g.activeRemainingUS.Store(0)
		return
	}
	left := g.activeTotalSamples - g.activeSampleIndex
	if left < 0 {
		left = 0
	}
	g.activeRemainingUS.Store(samplesToUS(left, g.sampleRateHz))
}

func samplesToUS(samples int64, sampleRateHz float64) int64 {
	if sampleRateHz <= 0 {
		return 0
	}
	return int64(float64(samples) * 1_000_000.0 / sampleRateHz)
}

func usToSamples(us int64, sampleRateHz float64) int64 {
	if us <= 0 {
		return 0
	}
	n := int64(float64(us) * sampleRateHz / 1_000_000.0)
	if n < 1 {
		n = 1
	}
	return n
}

func (g *Generator) writerLoop(ready chan struct{}) {
	defer close(g.doneCh)
	defer recovery.HandlePanicFunc(func() { g.faulted.Store(true) })

	buf := make([]int16, g.bufferNSamples)
	close(ready)

	beeper, isBeeper := g.sink.(sink.Beeper)

	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		if isBeeper {
			g.fillBeeper(beeper)
		} else {
			g.fillBuffer(buf)
			if err := g.writeAll(buf); err != nil {
				g.faulted.Store(true)
				return
			}
		}
	}
}

// writeRetryBackoff bounds how long writeAll waits before retrying a
// write that the sink accepted zero samples of (its documented "buffer
// full, try again" response), so the writer goroutine doesn't spin.
const writeRetryBackoff = time.Millisecond

// writeAll retries partial and zero-sample writes -- a sink reporting
// (0, nil) means its buffer is momentarily full, not that it failed --
// and treats any non-nil error as fatal.
func (g *Generator) writeAll(buf []int16) error {
	remaining := buf
	for len(remaining) > 0 {
		select {
		case <-g.stopCh:
			return nil
		default:
		}

		n, err := g.sink.Write(remaining)
		if err != nil {
			return err
		}
		if n == 0 {
			time.Sleep(writeRetryBackoff)
			continue
		}
		remaining = remaining[n:]
	}
	return nil
}

// fillBuffer dequeues tones as needed, synthesizes slope-shaped sine
// samples (or silence for frequency 0 or an empty queue), and
// preserves phase across calls.
func (g *Generator) fillBuffer(buf []int16) {
	for i := range buf {
		if !g.activeHasTone {
			if !g.startNextTone() {
				buf[i] = 0
				continue
			}
		}

		buf[i] = g.sampleAt(g.activeSampleIndex)
		g.advancePhase()
		g.activeSampleIndex++

		if g.activeSampleIndex >= g.activeTotalSamples {
			g.endActiveTone()
		}
	}
	g.storeRemainder()
}

// fillBeeper drives a Beeper sink directly at tone boundaries instead
// of synthesizing PCM: the console back-end reduces to beep_on/
// beep_off calls, with no sample writes.
func (g *Generator) fillBeeper(b sink.Beeper) {
	if !g.activeHasTone {
		if !g.startNextTone() {
			time.Sleep(time.Duration(tone.QuantumUS) * time.Microsecond)
			return
		}
	}

	if g.activeTone.FrequencyHz > 0 {
		_ = b.BeepOn(g.activeTone.FrequencyHz)
	} else {
		_ = b.BeepOff()
	}

	total := g.activeTotalSamples
	sleepUS := samplesToUS(total, g.sampleRateHz)
	if sleepUS > 0 {
		time.Sleep(time.Duration(sleepUS) * time.Microsecond)
	}
	g.activeSampleIndex = total
	g.endActiveTone()
	g.storeRemainder()
	_ = b.BeepOff()
}

// startNextTone tries to dequeue a new active tone. Returns false if
// the queue is empty (the caller should fill silence for this sample).
func (g *Generator) startNextTone() bool {
	t, ok := g.queue.Dequeue()
	if !ok {
		g.setKeyState(false)
		return false
	}

	g.activeTone = t
	g.activeSnapshot = g.paramsPtr.Load()
	g.activeSampleIndex = 0

	if t.Forever {
		g.activeTotalSamples = usToSamples(tone.QuantumUS, g.sampleRateHz)
	} else {
		g.activeTotalSamples = usToSamples(t.DurationUS, g.sampleRateHz)
	}
	g.activeHasTone = true

	g.setKeyState(t.FrequencyHz > 0)
	return true
}

func (g *Generator) endActiveTone() {
	g.activeHasTone = false
	g.activeSampleIndex = 0
	g.activeTotalSamples = 0
}

func (g *Generator) setKeyState(down bool) {
	if down == g.lastKeyDown {
		return
	}
	g.lastKeyDown = down
	if cbPtr := g.keyingCbPtr.Load(); cbPtr != nil {
		(*cbPtr)(time.Now(), down)
	}
}

// sampleAt computes one PCM sample of the active tone at position idx,
// applying slope shaping at the rise/fall edges.
func (g *Generator) sampleAt(idx int64) int16 {
	t := g.activeTone
	snap := g.activeSnapshot

	if t.FrequencyHz <= 0 {
		return 0 // silence still consumes time
	}

	volAbs := float64(snap.params.VolumePercent) / 100.0 * amplitudeMax
	raw := math.Sin(g.phase) * volAbs

	factor := g.slopeFactor(idx, snap.slope, t.Slope)
	val := raw * factor
	if val > amplitudeMax {
		val = amplitudeMax
	} else if val < -amplitudeMax {
		val = -amplitudeMax
	}
	return int16(val)
}

func (g *Generator) slopeFactor(idx int64, st *tone.SlopeTable, mode tone.SlopeMode) float64 {
	n := int64(st.Len())
	if n <= 0 {
		return 1.0
	}

	factor := 1.0
	if (mode == tone.SlopeRising || mode == tone.SlopeStandard) && idx < n {
		factor *= st.Rising(int(idx))
	}

	fallingStart := g.activeTotalSamples - n
	if (mode == tone.SlopeFalling || mode == tone.SlopeStandard) && idx >= fallingStart {
		j := idx - fallingStart
		factor *= st.Falling(int(j))
	}

	return factor
}

func (g *Generator) advancePhase() {
	freq := float64(g.activeTone.FrequencyHz)
	g.phase += 2 * math.Pi * freq / g.sampleRateHz
	if g.phase > 2*math.Pi {
		g.phase = math.Mod(g.phase, 2*math.Pi)
	}
}
