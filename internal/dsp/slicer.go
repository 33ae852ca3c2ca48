package dsp

// Thresholds are the per-protocol PWM discriminators, in filtered-sample
// counts at 48 kS/s pre-decimation. short_limit < long_limit < reset_limit
// is a required invariant, enforced by NewSlicer.
type Thresholds struct {
	LevelLimit int16
	ShortLimit int
	LongLimit  int
	ResetLimit int
}

// Slicer is the per-protocol PWM demodulator: a level-crossing state machine
// that classifies gaps between above-threshold pulses into bits, packs them
// into a BitMatrix, and flushes completed packet groups to a callback.
//
// The state is tracked as separate boolean fields (pulseActive, inGap,
// counting, sampleCounter) rather than a single enumerated state, because
// the reset-limit timeout has to fire regardless of whether a pulse or a
// gap is in progress, once counting has started.
type Slicer struct {
	thresholds Thresholds
	matrix     *BitMatrix

	pulseActive   bool
	inGap         bool
	counting      bool
	sampleCounter int

	// onFlush is invoked with the populated matrix when a quiescent
	// interval exceeding ResetLimit closes out a packet group. The matrix
	// is reset immediately after the callback returns.
	onFlush func(*BitMatrix)
}

// NewSlicer constructs a Slicer for one protocol. name labels the backing
// BitMatrix's diagnostic messages. Panics if the threshold ordering
// invariant (short < long < reset) is violated, since that can only come
// from a programming error in the protocol table, never from input data.
func NewSlicer(name string, th Thresholds, onFlush func(*BitMatrix)) *Slicer {
	if !(th.ShortLimit < th.LongLimit && th.LongLimit < th.ResetLimit) {
		panic("dsp: invalid slicer thresholds: require short_limit < long_limit < reset_limit")
	}
	return &Slicer{
		thresholds: th,
		matrix:     NewBitMatrix(name),
		onFlush:    onFlush,
	}
}

// Process runs the state machine over one block of filtered samples,
// mutating the slicer's state and bit matrix in place. It never blocks and
// never allocates on the steady-state path.
func (s *Slicer) Process(filtered []int16) {
	level := s.thresholds.LevelLimit
	for _, sample := range filtered {
		if sample > level {
			if !s.pulseActive {
				s.pulseActive = true
				s.counting = true
				if s.inGap {
					s.classifyGap()
					s.inGap = false
				}
			}
		} else if s.pulseActive {
			s.pulseActive = false
			s.inGap = true
			s.sampleCounter = 0
		}

		if s.counting {
			s.sampleCounter++
			if s.sampleCounter > s.thresholds.ResetLimit {
				s.flush()
			}
		}
	}
}

// classifyGap applies the gap-length discriminator at the rising edge that
// closes a gap: short gaps are bit 0, long gaps are bit 1, anything longer
// advances to the next matrix row (an inter-packet gap within a burst).
func (s *Slicer) classifyGap() {
	switch {
	case s.sampleCounter < s.thresholds.ShortLimit:
		s.matrix.AddBit(0)
	case s.sampleCounter < s.thresholds.LongLimit:
		s.matrix.AddBit(1)
	default:
		s.matrix.AdvanceRow()
	}
}

func (s *Slicer) flush() {
	s.onFlush(s.matrix)
	s.matrix.Reset()
	s.counting = false
	s.pulseActive = false
	s.inGap = false
	s.sampleCounter = 0
}
