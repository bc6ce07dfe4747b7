package config

import (
	"github.com/ColonelBlimp/gomorse/gen"
	"github.com/ColonelBlimp/gomorse/receiver"
	"github.com/ColonelBlimp/gomorse/tone"
)

// slopeShapeByName maps the config file's slope_shape strings to
// tone.SlopeShape values.
var slopeShapeByName = map[string]tone.SlopeShape{
	"linear":        tone.ShapeLinear,
	"raised_cosine": tone.ShapeRaisedCosine,
	"sine":          tone.ShapeSine,
	"rectangular":   tone.ShapeRectangular,
}

// GenParams translates the generator-related settings into gen.Params.
// Settings.Validate already guarantees SlopeShape is a recognized name.
func (s *Settings) GenParams() gen.Params {
	return gen.Params{
		SendSpeedWPM:  s.SendSpeed,
		FrequencyHz:   int32(s.Frequency),
		VolumePercent: s.Volume,
		Gap:           s.Gap,
		Weighting:     s.Weighting,
		SlopeShape:    slopeShapeByName[s.SlopeShape],
		SlopeLengthUS: s.SlopeLengthUS,
	}
}

// ReceiverParams translates the receiver-related settings into
// receiver.Params. AdaptiveTiming is the legacy front end's name for the
// same knob receiver.Params.Adaptive controls, so either one turns it on.
func (s *Settings) ReceiverParams() receiver.Params {
	return receiver.Params{
		SpeedWPM:              s.WPM,
		Tolerance:             s.Tolerance,
		Adaptive:              s.AdaptiveReceive || s.AdaptiveTiming,
		NoiseSpikeThresholdUS: s.NoiseSpikeThresholdUS,
	}
}
