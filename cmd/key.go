// cmd/key.go
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/ColonelBlimp/gomorse/code"
	"github.com/ColonelBlimp/gomorse/gen"
	"github.com/ColonelBlimp/gomorse/internal/config"
	"github.com/ColonelBlimp/gomorse/keyer"
	"github.com/ColonelBlimp/gomorse/receiver"
	"github.com/ColonelBlimp/gomorse/tone"
	"github.com/spf13/cobra"
)

var straightMode bool

var keyCmd = &cobra.Command{
	Use:   "key [text]",
	Short: "Key text out through the iambic keyer or a simulated straight key",
	Long: `Drives the same audio path as send, but through keyer.Keyer (or,
with --straight, keyer.StraightKey) instead of enqueuing the whole word
up front -- each element is produced and timed one at a time, the way a
physical paddle or key would, and the elements are echoed back through
a receiver.Receiver to confirm what was sent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKey,
}

func init() {
	keyCmd.Flags().BoolVar(&straightMode, "straight", false, "use a simulated straight key instead of the iambic keyer")
}

func runKey(_ *cobra.Command, args []string) error {
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

	rcv, err := receiver.New(settings.ReceiverParams())
	if err != nil {
		return fmt.Errorf("init receiver: %w", err)
	}

	text := strings.ToUpper(strings.Join(args, " "))
	if straightMode {
		err = keyStraight(g, rcv, text)
	} else {
		err = keyIambic(g, rcv, text)
	}
	if err != nil {
		return err
	}

	q.WaitForLevel(0)
	fmt.Printf("\nechoed back: %s\n", drainEcho(rcv))
	return nil
}

// keyStraight simulates an operator working a single-contact key: for
// each symbol it holds the key down for the symbol's length and releases
// it for an inter-element gap, letting the Receiver (not a pre-known
// duration) classify what was held.
func keyStraight(g *gen.Generator, rcv *receiver.Receiver, text string) error {
	sk, err := keyer.NewStraightKey(g, rcv)
	if err != nil {
		return err
	}
	d := g.Derived()

	for _, word := range strings.Fields(text) {
		for _, c := range word {
			if c == ' ' {
				continue
			}
			repr, ok := code.CharToRepr(c)
			if !ok {
				continue
			}
			for i := 0; i < len(repr); i++ {
				length := d.DotLenUS
				if repr[i] == code.Dash {
					length = d.DashLenUS
				}
				if err := holdKey(sk, length); err != nil {
					return err
				}
				time.Sleep(time.Duration(d.EoeDelayUS) * time.Microsecond)
			}
			time.Sleep(time.Duration(d.EocDelayUS-d.EoeDelayUS) * time.Microsecond)
		}
		time.Sleep(time.Duration(d.EowDelayUS-d.EocDelayUS) * time.Microsecond)
	}
	return nil
}

func holdKey(sk *keyer.StraightKey, durationUS int64) error {
	down := time.Now()
	if err := sk.KeyDown(&down); err != nil {
		return err
	}
	time.Sleep(time.Duration(durationUS) * time.Microsecond)
	up := time.Now()
	return sk.KeyUp(&up)
}

// keyIambic simulates paddle taps: each symbol is a brief press/release
// of the corresponding paddle, with the keyer's own element-boundary
// logic (driven by the generator's real-time keying callback) deciding
// when the next element actually starts.
func keyIambic(g *gen.Generator, rcv *receiver.Receiver, text string) error {
	k, err := keyer.New(g, rcv)
	if err != nil {
		return err
	}
	d := g.Derived()

	for _, word := range strings.Fields(text) {
		for _, c := range word {
			repr, ok := code.CharToRepr(c)
			if !ok {
				continue
			}
			for i := 0; i < len(repr); i++ {
				if err := tapPaddle(k, repr[i] == code.Dash); err != nil {
					return err
				}
				time.Sleep(time.Duration(d.DotLenUS) * time.Microsecond)
			}
			time.Sleep(time.Duration(d.EocDelayUS) * time.Microsecond)
		}
		time.Sleep(time.Duration(d.EowDelayUS) * time.Microsecond)
	}
	return nil
}

func tapPaddle(k *keyer.Keyer, dash bool) error {
	if dash {
		if err := k.DashPaddle(true); err != nil {
			return err
		}
		return k.DashPaddle(false)
	}
	if err := k.DotPaddle(true); err != nil {
		return err
	}
	return k.DotPaddle(false)
}

func drainEcho(rcv *receiver.Receiver) string {
	var sb strings.Builder
	for {
		now := time.Now()
		ch, eow, err := rcv.PollCharacter(&now)
		if err != nil && err != receiver.ErrBufferFull {
			break
		}
		if ch != 0 {
			sb.WriteRune(ch)
		}
		if eow {
			sb.WriteRune(' ')
		}
		rcv.Clear()
	}
	return sb.String()
}
