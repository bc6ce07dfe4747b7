// Package sinkaudio implements a real-time sink.Sink backed by malgo
// (cross-platform miniaudio bindings). It mirrors internal/audio.Capture's
// device-lifecycle pattern -- same library, same context/device setup --
// but drives a playback device instead of a capture one: the generator's
// writer goroutine pushes PCM into a ring buffer via Write, and the
// audio thread drains it from the onSendFrames callback.
package sinkaudio

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/gomorse/sink"
)

var (
	ErrAlreadyOpen = errors.New("sinkaudio: already open")
	ErrNotOpen     = errors.New("sinkaudio: not open")
)

// Config mirrors internal/audio.Config for the playback direction.
type Config struct {
	DeviceIndex int     // -1 for default device
	SampleRate  float64 // e.g. 44100
	BufferSize  int     // frames per PreferredBufferSize hint
}

// DefaultConfig returns sensible defaults for CW tone playback.
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  sink.DefaultSampleRate,
		BufferSize:  sink.DefaultBufferSize,
	}
}

// ringCapacityFrames is how many PreferredBufferSize-multiples the ring
// buffer holds before Write starts reporting partial writes.
const ringCapacityFrames = 8

// Playback is a sink.Sink that writes mono 16-bit PCM to the default (or
// a selected) output device.
type Playback struct {
	cfg Config

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	ring   []int16
	open   bool
}

// New returns an unopened Playback sink.
func New(cfg Config) *Playback {
	return &Playback{cfg: cfg}
}

// NewFactory adapts New into a sink.Factory so it can be passed to
// sink.Select alongside sink.NewConsole.
func NewFactory(cfg Config) sink.Factory {
	return func(device string) (sink.Sink, error) {
		p := New(cfg)
		if err := p.Open(device); err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (p *Playback) Open(device string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return ErrAlreadyOpen
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DeviceConfig{
		DeviceType: malgo.Playback,
		SampleRate: uint32(p.cfg.SampleRate),
		Playback: malgo.SubConfig{
			Format:   malgo.FormatS16,
			Channels: 1,
		},
		PeriodSizeInFrames: uint32(p.cfg.BufferSize),
	}

	if p.cfg.DeviceIndex >= 0 {
		infos, err := ctx.Devices(malgo.Playback)
		if err != nil {
			ctx.Uninit()
			ctx.Free()
			return fmt.Errorf("enumerate devices: %w", err)
		}
		if p.cfg.DeviceIndex >= len(infos) {
			ctx.Uninit()
			ctx.Free()
			return fmt.Errorf("device index %d out of range (have %d devices)", p.cfg.DeviceIndex, len(infos))
		}
		deviceConfig.Playback.DeviceID = infos[p.cfg.DeviceIndex].ID.Pointer()
	}
	onSendFrames := func(outputSamples, _ []byte, frameCount uint32) {
		p.fillFromRing(outputSamples, frameCount)
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start device: %w", err)
	}

	p.ctx = ctx
	p.device = dev
	p.ring = make([]int16, 0, p.cfg.BufferSize*ringCapacityFrames)
	p.open = true
	return nil
}

// fillFromRing is the malgo callback: it runs on the audio thread and must
// not block, so underruns are filled with silence rather than waited out.
func (p *Playback) fillFromRing(outputSamples []byte, frameCount uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := bytesAsInt16(outputSamples)
	n := copy(out, p.ring)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	if n > 0 {
		p.ring = append(p.ring[:0], p.ring[n:]...)
	}
}

// Write appends samples to the ring buffer, up to its remaining capacity.
// Per sink.Sink's contract a short write is not an error -- the caller
// retries with the remainder.
func (p *Playback) Write(samples []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0, sink.ErrNotOpen
	}

	room := cap(p.ring) - len(p.ring)
	if room <= 0 {
		return 0, nil
	}
	n := len(samples)
	if n > room {
		n = room
	}
	p.ring = append(p.ring, samples[:n]...)
	return n, nil
}

func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.open = false

	if p.device != nil {
		_ = p.device.Stop()
		p.device.Uninit()
		p.device = nil
	}
	if p.ctx != nil {
		if err := p.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		p.ctx.Free()
		p.ctx = nil
	}
	return nil
}

func (p *Playback) PreferredBufferSize() int { return p.cfg.BufferSize }
func (p *Playback) SampleRate() float64      { return p.cfg.SampleRate }

func bytesAsInt16(data []byte) []int16 {
	if len(data) < 2 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&data[0])), len(data)/2)
}
