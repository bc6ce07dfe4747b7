package sink

import "sync"

// Beeper is an optional capability a Sink may implement to bypass PCM
// synthesis entirely: a back-end like Console, which reduces to the
// kernel beeper (start_beep/stop_beep), has no use for sample buffers
// or slope shaping. A generator that sees its sink implement Beeper
// drives BeepOn/BeepOff directly at tone boundaries instead of calling
// Write.
type Beeper interface {
	BeepOn(frequencyHz int32) error
	BeepOff() error
}

// Console is the kernel-beeper back-end: it ignores slope shaping and
// never receives sample buffers, only on/off/frequency notifications.
type Console struct {
	mu      sync.Mutex
	open    bool
	beeping bool
	freq    int32
}

// NewConsole returns a Console sink.
func NewConsole() *Console {
	return &Console{}
}

func (c *Console) Open(_ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.beeping = false
	return nil
}

// Write exists only to satisfy Sink; Console never receives real
// sample buffers because the generator detects the Beeper interface
// and takes the beep path instead (see gen.Generator).
func (c *Console) Write(samples []int16) (int, error) {
	if !c.open {
		return 0, ErrNotOpen
	}
	return len(samples), nil
}

func (c *Console) PreferredBufferSize() int { return DefaultBufferSize }
func (c *Console) SampleRate() float64      { return DefaultSampleRate }

func (c *Console) BeepOn(frequencyHz int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrNotOpen
	}
	c.freq = frequencyHz
	c.beeping = frequencyHz > 0
	return nil
}

func (c *Console) BeepOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrNotOpen
	}
	c.beeping = false
	return nil
}

// Beeping reports whether the console beeper is currently sounding
// (for tests/tools that want to observe it).
func (c *Console) Beeping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beeping
}
