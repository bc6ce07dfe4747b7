// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "gomorse"
	ConfigType    = "yaml"
	DefaultConfig = `# gomorse configuration

# Audio device settings
audio_device: "hw:1,0"  # ALSA device (use 'arecord -l' to find)
device_index: -1        # -1 for default device
sample_rate: 48000      # Capture sample rate in Hz
channels: 1             # Number of channels (1=mono)
format: "S16_LE"        # Audio format (S16_LE = 16-bit signed little-endian)
buffer_size: 1024       # Capture buffer size

# Tone detection (receive-from-audio front end)
tone_frequency: 600     # CW tone frequency in Hz
block_size: 512         # Goertzel block size (samples per detection window)
overlap_pct: 50         # Block overlap percentage (0-99), higher = smoother but more CPU

# Detection thresholds
threshold: 0.4          # Detection threshold (0.0-1.0), tone magnitude must exceed this
hysteresis: 5           # Consecutive blocks required to confirm state change (reduces noise)
agc_enabled: true       # Enable automatic gain control (normalizes input levels)
agc_decay: 0.9995       # AGC peak decay factor, applied once per processed block (0.999-0.99999)
                        # Lower = faster decay; time constant ~ hop/(1-decay) samples, hop = block_size*(100-overlap_pct)/100
                        # At 48kHz, block_size 512, overlap_pct 50: 0.9995 gives ~10.7s decay time constant
agc_attack: 0.1         # AGC attack rate (0.0-1.0), how fast to respond to louder signals
                        # Higher = faster response, Lower = more gradual

# Generator (send path)
send_speed: 12          # WPM, 4-60
frequency: 800          # Sine frequency in Hz, 0 = silent key
volume: 70              # Percent, 0-100
gap: 0                  # Extra inter-character units, 0-60
weighting: 50           # Dot/dash balance, percent, 20-80
slope_shape: "raised_cosine" # linear | raised_cosine | sine | rectangular
slope_length_us: 5000   # Tone onset/offset ramp length
sink_device: ""         # Audio sink device/name; "" picks the default
output_sample_rate: 44100
output_buffer_size: 512

# Receiver (receive-from-keyer path)
tolerance: 50           # Percent acceptance window around ideal, 0-90
adaptive_receive: false # Track sender's speed via a moving average
noise_spike_threshold_us: 10000 # Marks shorter than this are dropped; 0 disables

# Timing
wpm: 15                 # Receiver's initial WPM estimate
adaptive_timing: true   # Adapt to sender's speed (either this or adaptive_receive turns it on)
agc_warmup_blocks: 10   # Blocks processed before AGC/detection is trusted

# Legacy adaptive-pattern timing thresholds (pre-receiver audio front end)
adaptive_smoothing: 0.1
dit_dah_boundary: 2.0
inter_char_boundary: 2.0
char_word_boundary: 5.0
farnsworth_wpm: 0
adaptive_pattern_enabled: true
adaptive_min_confidence: 0.7
adaptive_adjustment_rate: 0.1
adaptive_min_matches: 3

# Output
debug: false            # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio device settings
	AudioDevice string  `mapstructure:"audio_device"`
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Channels    int     `mapstructure:"channels"`
	Format      string  `mapstructure:"format"`
	BufferSize  int     `mapstructure:"buffer_size"`

	// Tone detection
	ToneFrequency float64 `mapstructure:"tone_frequency"`
	BlockSize     int     `mapstructure:"block_size"`
	OverlapPct    int     `mapstructure:"overlap_pct"`

	// Detection thresholds
	Threshold  float64 `mapstructure:"threshold"`
	Hysteresis int     `mapstructure:"hysteresis"`
	AGCEnabled bool    `mapstructure:"agc_enabled"`
	AGCDecay   float64 `mapstructure:"agc_decay"`
	AGCAttack  float64 `mapstructure:"agc_attack"`

	// Generator (send path; see gen.Params)
	SendSpeed        int     `mapstructure:"send_speed"`
	Frequency        int     `mapstructure:"frequency"`
	Volume           int     `mapstructure:"volume"`
	Gap              int     `mapstructure:"gap"`
	Weighting        int     `mapstructure:"weighting"`
	SlopeShape       string  `mapstructure:"slope_shape"`
	SlopeLengthUS    int64   `mapstructure:"slope_length_us"`
	SinkDevice       string  `mapstructure:"sink_device"`
	OutputSampleRate float64 `mapstructure:"output_sample_rate"`
	OutputBufferSize int     `mapstructure:"output_buffer_size"`

	// Receiver (receive-from-keyer path; see receiver.Params)
	Tolerance             int   `mapstructure:"tolerance"`
	AdaptiveReceive       bool  `mapstructure:"adaptive_receive"`
	NoiseSpikeThresholdUS int64 `mapstructure:"noise_spike_threshold_us"`

	// Timing (WPM and AdaptiveTiming also feed receiver.Params; see
	// ReceiverParams)
	WPM             int  `mapstructure:"wpm"`
	AdaptiveTiming  bool `mapstructure:"adaptive_timing"`
	AGCWarmupBlocks int  `mapstructure:"agc_warmup_blocks"`

	// Legacy adaptive-pattern timing thresholds, inherited from the
	// audio-decode front end that preceded the receiver package. Nothing
	// in this module consumes them directly; they remain here as
	// validated config surface for callers still carrying old config
	// files forward.
	AdaptiveSmoothing      float64 `mapstructure:"adaptive_smoothing"`
	DitDahBoundary         float64 `mapstructure:"dit_dah_boundary"`
	InterCharBoundary      float64 `mapstructure:"inter_char_boundary"`
	CharWordBoundary       float64 `mapstructure:"char_word_boundary"`
	FarnsworthWPM          int     `mapstructure:"farnsworth_wpm"`
	AdaptivePatternEnabled bool    `mapstructure:"adaptive_pattern_enabled"`
	AdaptiveMinConfidence  float64 `mapstructure:"adaptive_min_confidence"`
	AdaptiveAdjustmentRate float64 `mapstructure:"adaptive_adjustment_rate"`
	AdaptiveMinMatches     int     `mapstructure:"adaptive_min_matches"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/gomorse/
func Init() error {
	// Set defaults
	viper.SetDefault("audio_device", "hw:1,0")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("format", "S16_LE")
	viper.SetDefault("buffer_size", 1024)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("block_size", 512)
	viper.SetDefault("overlap_pct", 50)
	viper.SetDefault("threshold", 0.4)
	viper.SetDefault("hysteresis", 5)
	viper.SetDefault("agc_enabled", true)
	viper.SetDefault("agc_decay", 0.9995)
	viper.SetDefault("agc_attack", 0.1)
	viper.SetDefault("send_speed", 12)
	viper.SetDefault("frequency", 800)
	viper.SetDefault("volume", 70)
	viper.SetDefault("gap", 0)
	viper.SetDefault("weighting", 50)
	viper.SetDefault("slope_shape", "raised_cosine")
	viper.SetDefault("slope_length_us", 5000)
	viper.SetDefault("sink_device", "")
	viper.SetDefault("output_sample_rate", 44100)
	viper.SetDefault("output_buffer_size", 512)
	viper.SetDefault("tolerance", 50)
	viper.SetDefault("adaptive_receive", false)
	viper.SetDefault("noise_spike_threshold_us", 10000)
	viper.SetDefault("wpm", 15)
	viper.SetDefault("adaptive_timing", true)
	viper.SetDefault("agc_warmup_blocks", 10)
	viper.SetDefault("adaptive_smoothing", 0.1)
	viper.SetDefault("dit_dah_boundary", 2.0)
	viper.SetDefault("inter_char_boundary", 2.0)
	viper.SetDefault("char_word_boundary", 5.0)
	viper.SetDefault("farnsworth_wpm", 0)
	viper.SetDefault("adaptive_pattern_enabled", true)
	viper.SetDefault("adaptive_min_confidence", 0.7)
	viper.SetDefault("adaptive_adjustment_rate", 0.1)
	viper.SetDefault("adaptive_min_matches", 3)
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		// Try config.yaml as fallback
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config found - create default in ~/.config/gomorse/
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			// Read the newly created config
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Audio device settings
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	// Buffer size should be power of 2 for optimal FFT/Goertzel performance
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}

	// Tone detection
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	if s.BlockSize < 32 || s.BlockSize > 4096 {
		errs = append(errs, fmt.Errorf("block_size must be between 32 and 4096, got %d", s.BlockSize))
	}
	if s.BlockSize&(s.BlockSize-1) != 0 {
		errs = append(errs, fmt.Errorf("block_size should be a power of 2, got %d", s.BlockSize))
	}
	if s.OverlapPct < 0 || s.OverlapPct > 99 {
		errs = append(errs, fmt.Errorf("overlap_pct must be between 0 and 99, got %d", s.OverlapPct))
	}

	// Detection thresholds
	if s.Threshold < 0.0 || s.Threshold > 1.0 {
		errs = append(errs, fmt.Errorf("threshold must be between 0.0 and 1.0, got %v", s.Threshold))
	}
	if s.Hysteresis < 1 || s.Hysteresis > 50 {
		errs = append(errs, fmt.Errorf("hysteresis must be between 1 and 50, got %d", s.Hysteresis))
	}
	if s.AGCDecay < 0.99 || s.AGCDecay > 0.99999 {
		errs = append(errs, fmt.Errorf("agc_decay must be between 0.99 and 0.99999, got %v", s.AGCDecay))
	}
	if s.AGCAttack < 0.0 || s.AGCAttack > 1.0 {
		errs = append(errs, fmt.Errorf("agc_attack must be between 0.0 and 1.0, got %v", s.AGCAttack))
	}

	// Timing
	if s.WPM < 5 || s.WPM > 60 {
		errs = append(errs, fmt.Errorf("wpm must be between 5 and 60, got %d", s.WPM))
	}
	if s.AGCWarmupBlocks < 0 {
		errs = append(errs, fmt.Errorf("agc_warmup_blocks must be non-negative, got %d", s.AGCWarmupBlocks))
	}

	// Legacy adaptive-pattern timing thresholds
	if s.AdaptiveSmoothing < 0.0 || s.AdaptiveSmoothing > 1.0 {
		errs = append(errs, fmt.Errorf("adaptive_smoothing must be between 0.0 and 1.0, got %v", s.AdaptiveSmoothing))
	}
	if s.DitDahBoundary < 1.5 || s.DitDahBoundary > 3.0 {
		errs = append(errs, fmt.Errorf("dit_dah_boundary must be between 1.5 and 3.0, got %v", s.DitDahBoundary))
	}
	if s.InterCharBoundary < 1.5 || s.InterCharBoundary > 4.0 {
		errs = append(errs, fmt.Errorf("inter_char_boundary must be between 1.5 and 4.0, got %v", s.InterCharBoundary))
	}
	if s.CharWordBoundary < 3.0 || s.CharWordBoundary > 10.0 {
		errs = append(errs, fmt.Errorf("char_word_boundary must be between 3.0 and 10.0, got %v", s.CharWordBoundary))
	}
	if s.FarnsworthWPM != 0 && (s.FarnsworthWPM < 5 || s.FarnsworthWPM > s.WPM) {
		errs = append(errs, fmt.Errorf("farnsworth_wpm must be 0 (disabled) or between 5 and wpm (%d), got %d", s.WPM, s.FarnsworthWPM))
	}
	if s.AdaptiveMinConfidence < 0.0 || s.AdaptiveMinConfidence > 1.0 {
		errs = append(errs, fmt.Errorf("adaptive_min_confidence must be between 0.0 and 1.0, got %v", s.AdaptiveMinConfidence))
	}
	if s.AdaptiveAdjustmentRate < 0.0 || s.AdaptiveAdjustmentRate > 1.0 {
		errs = append(errs, fmt.Errorf("adaptive_adjustment_rate must be between 0.0 and 1.0, got %v", s.AdaptiveAdjustmentRate))
	}
	if s.AdaptiveMinMatches < 1 {
		errs = append(errs, fmt.Errorf("adaptive_min_matches must be at least 1, got %d", s.AdaptiveMinMatches))
	}

	// Generator
	if s.SendSpeed < 4 || s.SendSpeed > 60 {
		errs = append(errs, fmt.Errorf("send_speed must be between 4 and 60, got %d", s.SendSpeed))
	}
	if s.Frequency < 0 || s.Frequency > 4000 {
		errs = append(errs, fmt.Errorf("frequency must be between 0 and 4000, got %d", s.Frequency))
	}
	if s.Volume < 0 || s.Volume > 100 {
		errs = append(errs, fmt.Errorf("volume must be between 0 and 100, got %d", s.Volume))
	}
	if s.Gap < 0 || s.Gap > 60 {
		errs = append(errs, fmt.Errorf("gap must be between 0 and 60, got %d", s.Gap))
	}
	if s.Weighting < 20 || s.Weighting > 80 {
		errs = append(errs, fmt.Errorf("weighting must be between 20 and 80, got %d", s.Weighting))
	}
	validShapes := map[string]bool{"linear": true, "raised_cosine": true, "sine": true, "rectangular": true}
	if !validShapes[s.SlopeShape] {
		errs = append(errs, fmt.Errorf("slope_shape must be one of linear, raised_cosine, sine, rectangular, got %q", s.SlopeShape))
	}
	if s.SlopeLengthUS < 0 {
		errs = append(errs, fmt.Errorf("slope_length_us must be non-negative, got %d", s.SlopeLengthUS))
	}
	if s.OutputSampleRate < 8000 || s.OutputSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("output_sample_rate must be between 8000 and 192000 Hz, got %v", s.OutputSampleRate))
	}
	if s.OutputBufferSize < 64 || s.OutputBufferSize > 8192 {
		errs = append(errs, fmt.Errorf("output_buffer_size must be between 64 and 8192, got %d", s.OutputBufferSize))
	}

	// Receiver
	if s.Tolerance < 0 || s.Tolerance > 90 {
		errs = append(errs, fmt.Errorf("tolerance must be between 0 and 90, got %d", s.Tolerance))
	}
	if s.NoiseSpikeThresholdUS < 0 {
		errs = append(errs, fmt.Errorf("noise_spike_threshold_us must be non-negative, got %d", s.NoiseSpikeThresholdUS))
	}

	// Validate audio format
	validFormats := map[string]bool{
		"S16_LE": true,
		"S16_BE": true,
		"S24_LE": true,
		"S24_BE": true,
		"S32_LE": true,
		"S32_BE": true,
		"F32_LE": true,
		"F32_BE": true,
	}
	if !validFormats[s.Format] {
		errs = append(errs, fmt.Errorf("format must be one of S16_LE, S16_BE, S24_LE, S24_BE, S32_LE, S32_BE, F32_LE, F32_BE, got %q", s.Format))
	}

	// Nyquist check: tone frequency must be less than half the sample rate
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
