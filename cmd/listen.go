// cmd/listen.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ColonelBlimp/gomorse/internal/audio"
	"github.com/ColonelBlimp/gomorse/internal/config"
	"github.com/ColonelBlimp/gomorse/internal/dsp"
	"github.com/ColonelBlimp/gomorse/receiver"
	"github.com/spf13/cobra"
)

// pollInterval is how often the decode loop asks the Receiver for a
// completed character while it sits in a gap state -- gaps are only
// noticed by polling a live clock, unlike marks, which the detector's
// tone events classify directly.
const pollInterval = 20 * time.Millisecond

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Decode CW from an audio input",
	Long:  `Listens to an audio capture device, detects CW tones with a Goertzel filter, and decodes them to text on stdout.`,
	RunE:  runListen,
}

func runListen(_ *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rcv, err := receiver.New(settings.ReceiverParams())
	if err != nil {
		return fmt.Errorf("init receiver: %w", err)
	}

	goertzel, err := dsp.NewGoertzel(dsp.GoertzelConfig{
		TargetFrequency: settings.ToneFrequency,
		SampleRate:      settings.SampleRate,
		BlockSize:       settings.BlockSize,
	})
	if err != nil {
		return fmt.Errorf("init goertzel: %w", err)
	}
	detector, err := dsp.NewDetector(dsp.DetectorConfig{
		Threshold:       settings.Threshold,
		Hysteresis:      settings.Hysteresis,
		OverlapPct:      settings.OverlapPct,
		AGCEnabled:      settings.AGCEnabled,
		AGCDecay:        settings.AGCDecay,
		AGCAttack:       settings.AGCAttack,
		AGCWarmupBlocks: settings.AGCWarmupBlocks,
	}, goertzel)
	if err != nil {
		return fmt.Errorf("init detector: %w", err)
	}

	detector.SetCallback(func(event dsp.ToneEvent) {
		ts := event.Timestamp
		var err error
		if event.ToneOn {
			err = rcv.MarkBegin(&ts)
		} else {
			err = rcv.MarkEnd(&ts)
		}
		if err != nil && settings.Debug {
			fmt.Fprintf(os.Stderr, "[receiver] %v\n", err)
		}
	})

	capture := audio.New(audio.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  uint32(settings.SampleRate),
		Channels:    uint32(settings.Channels),
		BufferSize:  uint32(settings.BufferSize),
	})
	if err := capture.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer func() { _ = capture.Close() }()
	capture.SetCallback(func(samples []float32) { detector.Process(samples) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("start audio capture: %w", err)
	}

	fmt.Println("Listening for CW... Press Ctrl+C to stop.")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := capture.Stop(); err != nil && err != audio.ErrNotRunning {
				fmt.Fprintf(os.Stderr, "error stopping audio capture: %v\n", err)
			}
			fmt.Println("\nstopped.")
			return nil
		case <-ticker.C:
			pollOnce(rcv)
		}
	}
}

// pollOnce drains every character the receiver is ready to hand back at
// the current instant, printing spaces for word boundaries. A completed
// poll is idempotent until Clear is called, so each one consumed here
// is immediately cleared to let the receiver advance to the next.
func pollOnce(rcv *receiver.Receiver) {
	for {
		now := time.Now()
		ch, eow, err := rcv.PollCharacter(&now)
		if err != nil && err != receiver.ErrBufferFull {
			return
		}
		if ch != 0 {
			fmt.Print(string(ch))
		}
		if eow {
			fmt.Print(" ")
		}
		rcv.Clear()
	}
}
