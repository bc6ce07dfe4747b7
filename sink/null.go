package sink

import "sync"

// Null discards every sample written to it. It tracks virtual time (the
// total number of frames written) so tests and tools that need a
// deterministic, hardware-free sink can still reason about elapsed
// playback duration.
type Null struct {
	mu         sync.Mutex
	open       bool
	sampleRate float64
	bufferSize int
	frames     int64
}

// NewNull returns a Null sink configured for the given sample rate and
// preferred buffer size.
func NewNull(sampleRateHz float64, bufferSize int) *Null {
	return &Null{sampleRate: sampleRateHz, bufferSize: bufferSize}
}

func (n *Null) Open(_ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = true
	return nil
}

func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
	return nil
}

func (n *Null) Write(samples []int16) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open {
		return 0, ErrNotOpen
	}
	n.frames += int64(len(samples))
	return len(samples), nil
}

func (n *Null) PreferredBufferSize() int { return n.bufferSize }
func (n *Null) SampleRate() float64      { return n.sampleRate }

// FramesWritten returns the total number of frames accepted since the
// sink was created; it is not reset by Open.
func (n *Null) FramesWritten() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames
}
