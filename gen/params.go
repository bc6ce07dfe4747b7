package gen

import (
	"errors"

	"github.com/ColonelBlimp/gomorse/tone"
)

// Client-settable parameter range limits.
const (
	SpeedMinWPM = 4
	SpeedMaxWPM = 60

	FrequencyMinHz = 0
	FrequencyMaxHz = 4000

	VolumeMinPercent = 0
	VolumeMaxPercent = 100

	GapMinUnits = 0
	GapMaxUnits = 60

	WeightingMin = 20
	WeightingMax = 80

	// CWDotCalibrationUS is the microseconds-per-WPM-unit constant: the
	// word PARIS is the canonical 50-dot-unit calibration word, so at 1
	// WPM a dot unit is 1_200_000us / 1 = 1_200_000us.
	CWDotCalibrationUS = 1_200_000
)

var (
	ErrInvalidSpeed      = errors.New("gen: send speed out of range [4,60] WPM")
	ErrInvalidFrequency  = errors.New("gen: frequency out of range [0,4000] Hz")
	ErrInvalidVolume     = errors.New("gen: volume out of range [0,100] percent")
	ErrInvalidGap        = errors.New("gen: gap out of range [0,60] units")
	ErrInvalidWeighting  = errors.New("gen: weighting out of range [20,80] percent")
	ErrInvalidSlopeUnits = errors.New("gen: slope length must be non-negative")
)

// Params are the client-settable generator parameters.
type Params struct {
	SendSpeedWPM  int
	FrequencyHz   int32
	VolumePercent int
	Gap           int
	Weighting     int
	SlopeShape    tone.SlopeShape
	SlopeLengthUS int64
}

// DefaultParams returns the documented out-of-the-box defaults.
func DefaultParams() Params {
	return Params{
		SendSpeedWPM:  12,
		FrequencyHz:   800,
		VolumePercent: 70,
		Gap:           0,
		Weighting:     50,
		SlopeShape:    tone.ShapeRaisedCosine,
		SlopeLengthUS: 5000,
	}
}

// Validate checks every field against its documented range.
func (p Params) Validate() error {
	var errs []error
	if p.SendSpeedWPM < SpeedMinWPM || p.SendSpeedWPM > SpeedMaxWPM {
		errs = append(errs, ErrInvalidSpeed)
	}
	if p.FrequencyHz < FrequencyMinHz || p.FrequencyHz > FrequencyMaxHz {
		errs = append(errs, ErrInvalidFrequency)
	}
	if p.VolumePercent < VolumeMinPercent || p.VolumePercent > VolumeMaxPercent {
		errs = append(errs, ErrInvalidVolume)
	}
	if p.Gap < GapMinUnits || p.Gap > GapMaxUnits {
		errs = append(errs, ErrInvalidGap)
	}
	if p.Weighting < WeightingMin || p.Weighting > WeightingMax {
		errs = append(errs, ErrInvalidWeighting)
	}
	if p.SlopeLengthUS < 0 {
		errs = append(errs, ErrInvalidSlopeUnits)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Derived holds the low-level timings computed from Params by Sync.
type Derived struct {
	UnitUS            int64
	DotLenUS          int64
	DashLenUS         int64
	EoeDelayUS        int64 // end-of-element (inter-mark space)
	EocDelayUS        int64 // end-of-character
	EowDelayUS        int64 // end-of-word
	AdditionalDelayUS int64 // gap-derived extra inter-character delay
	AdjustmentDelayUS int64
}

// Sync computes Derived from Params:
//
//	unit = CW_DOT_CALIBRATION / wpm
//	dot_len = unit, dash_len = 3*unit, both weighting-adjusted
//	eoe_delay = unit, eoc_delay = 3*unit, eow_delay = 7*unit
//	additional_delay = gap*unit, adjustment_delay = 7*additional_delay/3
func Sync(p Params) Derived {
	unit := int64(CWDotCalibrationUS / p.SendSpeedWPM)

	weightAdjust := int64(p.Weighting-50) * unit / 50

	dotLen := unit + weightAdjust
	dashLen := 3*unit - weightAdjust

	additional := int64(p.Gap) * unit
	adjustment := (7 * additional) / 3

	return Derived{
		UnitUS:            unit,
		DotLenUS:          dotLen,
		DashLenUS:         dashLen,
		EoeDelayUS:        unit,
		EocDelayUS:        3 * unit,
		EowDelayUS:        7 * unit,
		AdditionalDelayUS: additional,
		AdjustmentDelayUS: adjustment,
	}
}
