package tone

import "math"

// SlopeTable holds a precomputed amplitude envelope, sampled at the
// generator's sample rate, used both forwards (tone onset, rising) and
// reversed (tone offset, falling).
type SlopeTable struct {
	shape     SlopeShape
	lengthUS  int64
	amplitude []float64 // always in [0.0, 1.0], length n+1
}

// NewSlopeTable builds the envelope for the given shape, slope length
// and sample rate. n = lengthUS / samplePeriodUS, where samplePeriodUS
// = 1_000_000 / sampleRateHz.
func NewSlopeTable(shape SlopeShape, lengthUS int64, sampleRateHz float64) *SlopeTable {
	if lengthUS <= 0 || sampleRateHz <= 0 {
		return &SlopeTable{shape: shape, lengthUS: lengthUS, amplitude: nil}
	}

	samplePeriodUS := 1_000_000.0 / sampleRateHz
	n := int(float64(lengthUS) / samplePeriodUS)
	if n < 1 {
		n = 1
	}

	amps := make([]float64, n+1)
	for i := 0; i <= n; i++ {
		frac := float64(i) / float64(n) // 0.0 at onset, 1.0 at full volume
		amps[i] = shapeAmplitude(shape, frac)
	}

	return &SlopeTable{shape: shape, lengthUS: lengthUS, amplitude: amps}
}

// shapeAmplitude computes the rising-edge amplitude at fraction frac
// in [0.0, 1.0] of the way through the slope, for the given shape.
func shapeAmplitude(shape SlopeShape, frac float64) float64 {
	switch shape {
	case ShapeLinear:
		return frac
	case ShapeRaisedCosine:
		return 0.5 * (1.0 - math.Cos(math.Pi*frac))
	case ShapeSine:
		return math.Sin(frac * math.Pi / 2.0)
	case ShapeRectangular:
		if frac >= 1.0 {
			return 1.0
		}
		return 1.0
	default:
		return frac
	}
}

// Len returns the number of slope samples (n, not n+1 -- the number of
// samples actually inside the ramp, excluding the full-volume endpoint).
func (s *SlopeTable) Len() int {
	if len(s.amplitude) == 0 {
		return 0
	}
	return len(s.amplitude) - 1
}

// Rising returns the amplitude multiplier for the i-th sample (0-based)
// counting from the start of a rising (onset) slope.
func (s *SlopeTable) Rising(i int) float64 {
	if i < 0 || i >= len(s.amplitude) {
		return 1.0
	}
	return s.amplitude[i]
}

// Falling returns the amplitude multiplier for the j-th sample (0-based)
// counting from the start of a falling (offset) slope: the table is
// walked in reverse, multiplying by amplitude[n_slope-1-j].
func (s *SlopeTable) Falling(j int) float64 {
	n := s.Len()
	if n == 0 {
		return 1.0
	}
	idx := n - 1 - j
	if idx < 0 {
		return 0.0
	}
	if idx >= len(s.amplitude) {
		return 1.0
	}
	return s.amplitude[idx]
}
