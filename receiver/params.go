package receiver

import "errors"

// Client-settable parameter range limits. SpeedMinWPM/SpeedMaxWPM
// mirror gen.SpeedMinWPM/SpeedMaxWPM; duplicated here so the receiver
// package has no dependency on gen (the keyer package depends on both,
// not the other way around).
const (
	SpeedMinWPM = 4
	SpeedMaxWPM = 60

	ToleranceMinPercent = 0
	ToleranceMaxPercent = 90

	// CWDotCalibrationUS matches gen.CWDotCalibrationUS.
	CWDotCalibrationUS = 1_200_000

	// NAvg is the moving-average window used by the adaptive tracker.
	NAvg = 4

	// DefaultNoiseSpikeThresholdUS is the default noise filter
	// threshold; 0 disables the filter.
	DefaultNoiseSpikeThresholdUS = 10000
)

var (
	ErrInvalidSpeed        = errors.New("receiver: speed out of range [4,60] WPM")
	ErrInvalidTolerance    = errors.New("receiver: tolerance out of range [0,90] percent")
	ErrInvalidNoiseSpike   = errors.New("receiver: noise spike threshold must be non-negative")
	ErrAdaptiveSpeedLocked = errors.New("receiver: cannot set speed directly while adaptive_receive is enabled")
)

// Params are the client-settable receiver parameters.
type Params struct {
	SpeedWPM              int
	Tolerance             int
	Adaptive              bool
	NoiseSpikeThresholdUS int64
}

// DefaultParams returns the documented out-of-the-box defaults.
func DefaultParams() Params {
	return Params{
		SpeedWPM:              12,
		Tolerance:             50,
		Adaptive:              false,
		NoiseSpikeThresholdUS: DefaultNoiseSpikeThresholdUS,
	}
}

// Validate checks every field against its documented range.
func (p Params) Validate() error {
	var errs []error
	if p.SpeedWPM < SpeedMinWPM || p.SpeedWPM > SpeedMaxWPM {
		errs = append(errs, ErrInvalidSpeed)
	}
	if p.Tolerance < ToleranceMinPercent || p.Tolerance > ToleranceMaxPercent {
		errs = append(errs, ErrInvalidTolerance)
	}
	if p.NoiseSpikeThresholdUS < 0 {
		errs = append(errs, ErrInvalidNoiseSpike)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// bounds is an [min, ideal, max] timing window in microseconds.
type bounds struct {
	Min, Ideal, Max int64
}

func toleranceBounds(ideal int64, tolerancePercent int) bounds {
	delta := ideal * int64(tolerancePercent) / 100
	return bounds{Min: ideal - delta, Ideal: ideal, Max: ideal + delta}
}

// Derived holds the low-level timing windows computed from Params (and,
// in adaptive mode, from the moving averages) by resync.
type Derived struct {
	UnitUS  int64
	DotLen  bounds
	DashLen bounds
	EomLen  bounds // inter-mark (inter-element) space, aka eoe
	EocLen  bounds // end-of-character gap
}

// syncFromWPM computes the non-adaptive (or adaptive-bootstrap) derived
// timing windows for a given wpm and tolerance, exactly as the
// generator side computes dot_len/dash_len but windowed by tolerance
// instead of weighting.
func syncFromWPM(wpm, tolerancePercent int) Derived {
	unit := int64(CWDotCalibrationUS / wpm)
	// The dash window uses the same absolute delta as the dot window, so
	// the two never overlap for any tolerance up to 90%.
	delta := unit * int64(tolerancePercent) / 100
	return Derived{
		UnitUS:  unit,
		DotLen:  toleranceBounds(unit, tolerancePercent),
		DashLen: bounds{Min: 3*unit - delta, Ideal: 3 * unit, Max: 3*unit + delta},
		EomLen:  toleranceBounds(unit, tolerancePercent),
		EocLen:  toleranceBounds(3*unit, tolerancePercent),
	}
}
