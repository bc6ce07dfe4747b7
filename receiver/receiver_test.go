package receiver

import (
	"testing"
	"time"
)

// sender drives a Receiver through a sequence of representations using
// synthetic, strictly increasing timestamps -- no real sleeping.
type sender struct {
	t    *testing.T
	r    *Receiver
	now  time.Time
	unit int64
}

func newSender(t *testing.T, r *Receiver, unit int64) *sender {
	return &sender{t: t, r: r, now: time.Now(), unit: unit}
}

func (s *sender) advance(us int64) {
	s.now = s.now.Add(time.Duration(us) * time.Microsecond)
}

func (s *sender) mark(dash bool) {
	start := s.now
	if err := s.r.MarkBegin(&start); err != nil {
		s.t.Fatalf("MarkBegin: %v", err)
	}
	dur := s.unit
	if dash {
		dur = 3 * s.unit
	}
	s.advance(dur)
	end := s.now
	if err := s.r.MarkEnd(&end); err != nil {
		s.t.Fatalf("MarkEnd: %v", err)
	}
}

// sendRepr sends one character's dots/dashes separated by inter-element
// spaces, leaving the receiver in Space state with markEnd at s.now.
func (s *sender) sendRepr(repr string) {
	for i, sym := range repr {
		if i > 0 {
			s.advance(s.unit) // inter-element space
		}
		s.mark(sym == '-')
	}
}

func TestEchoLoopCQ(t *testing.T) {
	p := DefaultParams()
	p.SpeedWPM = 20
	r, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	unit := r.Derived().UnitUS
	s := newSender(t, r, unit)

	s.sendRepr("-.-.") // C
	s.advance(r.Derived().EocLen.Ideal)
	ts := s.now
	ch, eow, err := r.PollCharacter(&ts)
	if err != nil {
		t.Fatalf("poll C: %v", err)
	}
	if ch != 'C' || eow {
		t.Errorf("got %q eow=%v, want 'C' eow=false", ch, eow)
	}
	r.Clear()

	s.sendRepr("--.-") // Q
	s.advance(r.Derived().EocLen.Max + 1) // beyond eoc window => end of word
	ts = s.now
	ch, eow, err = r.PollCharacter(&ts)
	if err != nil {
		t.Fatalf("poll Q: %v", err)
	}
	if ch != 'Q' || !eow {
		t.Errorf("got %q eow=%v, want 'Q' eow=true", ch, eow)
	}
}

func TestPollBeforeEndOfCharacterIsAgain(t *testing.T) {
	p := DefaultParams()
	p.SpeedWPM = 20
	r, _ := New(p)
	unit := r.Derived().UnitUS
	s := newSender(t, r, unit)

	s.sendRepr(".")
	ts := s.now
	if _, _, err := r.PollRepresentation(&ts); err != ErrAgain {
		t.Errorf("expected ErrAgain immediately after a mark, got %v", err)
	}
}

func TestAdaptiveTracking(t *testing.T) {
	p := DefaultParams()
	p.SpeedWPM = 12
	p.Adaptive = true
	r, _ := New(p)

	// 15 WPM timing.
	unit15 := int64(CWDotCalibrationUS / 15)
	s := newSender(t, r, unit15)

	for i := 0; i < 25; i++ {
		s.sendRepr(".-") // one dot, one dash per iteration
		s.advance(r.Derived().EocLen.Ideal)
		ts := s.now
		if _, _, err := r.PollRepresentation(&ts); err != nil && err != ErrBufferFull {
			t.Fatalf("poll: %v", err)
		}
		r.Clear()
	}

	speed := r.GetReceiveSpeed()
	if speed < 13 || speed > 17 {
		t.Errorf("adaptive speed = %d, want within ±2 of 15", speed)
	}
}

func TestNoiseSpikeFilteredAndRolledBack(t *testing.T) {
	p := DefaultParams()
	p.SpeedWPM = 20
	p.NoiseSpikeThresholdUS = 10000
	r, _ := New(p)
	unit := r.Derived().UnitUS
	s := newSender(t, r, unit)

	s.mark(false) // first real dot
	s.advance(unit)

	// A noise spike: shorter than the threshold.
	start := s.now
	r.MarkBegin(&start)
	s.advance(p.NoiseSpikeThresholdUS / 2)
	end := s.now
	if err := r.MarkEnd(&end); err != nil {
		t.Fatalf("MarkEnd (noise): %v", err)
	}
	if r.State() != Space {
		t.Errorf("state after noise spike = %v, want Space (rolled back)", r.State())
	}

	s.advance(unit)
	s.mark(false) // second real dot

	s.advance(r.Derived().EocLen.Ideal)
	ts := s.now
	repr, _, err := r.PollRepresentation(&ts)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if repr != ".." {
		t.Errorf("repr = %q, want %q (noise spike dropped)", repr, "..")
	}
	if got := r.Stats(StatDot); got < 0 {
		t.Errorf("Stats(StatDot) = %v", got)
	}
}

func TestRepresentationOverflow(t *testing.T) {
	p := DefaultParams()
	p.SpeedWPM = 60 // fastest, keeps synthetic timestamps small
	r, _ := New(p)
	unit := r.Derived().UnitUS
	s := newSender(t, r, unit)

	var lastErr error
	for i := 0; i < 257; i++ {
		if i > 0 {
			s.advance(unit)
		}
		start := s.now
		if err := r.MarkBegin(&start); err != nil {
			t.Fatalf("MarkBegin #%d: %v", i, err)
		}
		s.advance(unit)
		end := s.now
		lastErr = r.MarkEnd(&end)
	}

	if lastErr != ErrBufferFull {
		t.Fatalf("257th MarkEnd = %v, want ErrBufferFull", lastErr)
	}
	if r.State() != EocGapErr {
		t.Errorf("state after overflow = %v, want EocGapErr", r.State())
	}

	ts := s.now
	repr, _, err := r.PollRepresentation(&ts)
	if err != ErrBufferFull {
		t.Errorf("poll after overflow err = %v, want ErrBufferFull", err)
	}
	if len(repr) != ReprCap {
		t.Errorf("truncated repr length = %d, want %d", len(repr), ReprCap)
	}
}

func TestIdentifyMarkBoundaries(t *testing.T) {
	p := DefaultParams()
	p.SpeedWPM = 20
	p.Tolerance = 50
	r, _ := New(p)
	d := r.Derived()

	if k, err := r.identifyMark(d.DotLen.Min); err != nil || k != Dot {
		t.Errorf("dot_len_min should classify as Dot, got %v, %v", k, err)
	}
	if k, err := r.identifyMark(d.DotLen.Max); err != nil || k != Dot {
		t.Errorf("dot_len_max should classify as Dot, got %v, %v", k, err)
	}
	if k, err := r.identifyMark(d.DashLen.Min); err != nil || k != Dash {
		t.Errorf("dash_len_min should classify as Dash, got %v, %v", k, err)
	}
	if _, err := r.identifyMark(d.DotLen.Max + 1); err == nil && d.DotLen.Max+1 < d.DashLen.Min {
		t.Errorf("one past dot_len_max (below dash range) should not classify")
	}
}

func TestBadTimestampRejected(t *testing.T) {
	r, _ := New(DefaultParams())
	t1 := time.Now()
	t0 := t1.Add(-time.Second)
	if err := r.MarkBegin(&t1); err != nil {
		t.Fatal(err)
	}
	if err := r.MarkEnd(&t0); err != ErrBadTimestamp {
		t.Errorf("expected ErrBadTimestamp for non-monotonic end, got %v", err)
	}
}
