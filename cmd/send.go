// cmd/send.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/ColonelBlimp/gomorse/gen"
	"github.com/ColonelBlimp/gomorse/internal/config"
	"github.com/ColonelBlimp/gomorse/internal/sinkaudio"
	"github.com/ColonelBlimp/gomorse/sink"
	"github.com/ColonelBlimp/gomorse/tone"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send text as CW audio",
	Long:  `Encodes the given text as shaped Morse tones and plays it through an audio sink, falling back to the console beeper or silence if no audio device is available.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func runSend(_ *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	q := tone.New()
	g, err := openGenerator(q, settings)
	if err != nil {
		return fmt.Errorf("open audio sink: %w", err)
	}
	defer func() { _ = g.Close() }()
	defer func() { _ = g.Stop() }()

	text := strings.Join(args, " ")
	if settings.Debug {
		fmt.Printf("sending %q at %d WPM, %d Hz\n", text, settings.SendSpeed, settings.Frequency)
	}
	if err := g.EnqueueText(text); err != nil {
		return fmt.Errorf("enqueue text: %w", err)
	}
	if err := g.Silence(); err != nil {
		return fmt.Errorf("enqueue trailing silence: %w", err)
	}

	q.WaitForLevel(0)
	if g.Faulted() {
		return fmt.Errorf("audio sink write failed")
	}
	return nil
}

// openGenerator tries each candidate sink in preference order -- a real
// audio device, the console beeper, then silence -- starting a fresh
// Generator against each until one opens successfully, mirroring
// sink.Select's fallback policy for the case (here) where the caller
// needs the Generator, not just the opened Sink.
func openGenerator(q *tone.Queue, settings *config.Settings) (*gen.Generator, error) {
	params := settings.GenParams()

	candidates := []sink.Sink{
		sinkaudio.New(sinkaudio.Config{
			DeviceIndex: settings.DeviceIndex,
			SampleRate:  settings.OutputSampleRate,
			BufferSize:  settings.OutputBufferSize,
		}),
		sink.NewConsole(),
		sink.NewNull(settings.OutputSampleRate, settings.OutputBufferSize),
	}

	var lastErr error
	for _, s := range candidates {
		g, err := gen.New(q, s, s.SampleRate(), s.PreferredBufferSize(), params)
		if err != nil {
			return nil, err
		}
		if err := g.Start(settings.SinkDevice); err != nil {
			lastErr = err
			continue
		}
		return g, nil
	}
	return nil, lastErr
}
