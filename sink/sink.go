// Package sink defines the audio back-end contract the generator
// writes PCM frames to, plus two always-available implementations
// (Null and Console) and the open/fallback policy used to pick one.
// Real back-ends (OSS, ALSA, PulseAudio, or here a cross-platform
// malgo-backed sink, see internal/sinkaudio) are external collaborators
// that only need to satisfy this interface.
package sink

import "errors"

// ErrNotOpen is returned by Write (and by a Beeper's BeepOn/BeepOff)
// when the sink has not been opened, or has already been closed.
var ErrNotOpen = errors.New("sink: not open")

// Sink is the capability set a generator back-end must implement:
// open/close/write plus a hint for how many frames the generator
// should fill per iteration.
type Sink interface {
	// Open prepares the device for writing. device is a back-end
	// specific name/path; an empty string means "default device".
	Open(device string) error
	// Close releases the device. Must be safe to call more than once.
	Close() error
	// Write sends signed-16-bit little-endian mono samples at the
	// sink's configured sample rate. It may write fewer than len(samples)
	// and MUST be retried by the caller on a partial write; a non-nil
	// error is fatal to the writer loop.
	Write(samples []int16) (int, error)
	// PreferredBufferSize returns how many frames the generator should
	// fill per iteration for this sink.
	PreferredBufferSize() int
	// SampleRate returns the sink's configured sample rate in Hz.
	SampleRate() float64
}

// Factory opens a named back-end, returning (nil, err) if that back-end
// isn't usable in the current environment (e.g. the OS lacks the audio
// subsystem, or the named device doesn't exist).
type Factory func(device string) (Sink, error)

// Select implements a back-end preference/fallback policy: try the
// requested back-end first, then each remaining factory in
// order, and fall back to Null if every real back-end fails to open.
// The returned Sink is already open.
func Select(device string, preferred ...Factory) (Sink, error) {
	var lastErr error
	for _, f := range preferred {
		if f == nil {
			continue
		}
		s, err := f(device)
		if err == nil {
			return s, nil
		}
		lastErr = err
	}

	s := NewNull(DefaultSampleRate, DefaultBufferSize)
	if err := s.Open(device); err != nil {
		if lastErr != nil {
			return nil, errors.Join(lastErr, err)
		}
		return nil, err
	}
	return s, nil
}

// Defaults used by Null/Console when the caller doesn't care.
const (
	DefaultSampleRate  = 44100.0
	DefaultBufferSize  = 512
)
