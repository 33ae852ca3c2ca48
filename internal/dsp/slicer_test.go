package dsp

import "testing"

func thresholds() Thresholds {
	return Thresholds{LevelLimit: 100, ShortLimit: 10, LongLimit: 20, ResetLimit: 30}
}

// pulse appends n samples above LevelLimit, gap appends n samples at/below it.
func pulse(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = 200
	}
	return s
}

func gap(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = 0
	}
	return s
}

func concat(chunks ...[]int16) []int16 {
	var out []int16
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// snapshot copies a flushed matrix inside the callback, since the slicer
// resets the matrix as soon as the callback returns.
func snapshot(m *BitMatrix) *BitMatrix {
	cp := *m
	return &cp
}

func TestSlicerClassifiesShortGapAsZeroBit(t *testing.T) {
	var flushed *BitMatrix
	s := NewSlicer("t", thresholds(), func(m *BitMatrix) { flushed = snapshot(m) })

	samples := concat(pulse(5), gap(5), pulse(5), gap(35))
	s.Process(samples)

	if flushed == nil {
		t.Fatal("expected a flush after the reset-limit gap")
	}
	if flushed.Rows() < 1 {
		t.Fatal("expected at least one populated row")
	}
	row := flushed.Row(0)
	if row[0]&0x80 != 0 {
		t.Fatalf("first bit = 1, want 0 for a short (5-sample) gap below ShortLimit=10")
	}
}

func TestSlicerClassifiesLongGapAsOneBit(t *testing.T) {
	var flushed *BitMatrix
	s := NewSlicer("t", thresholds(), func(m *BitMatrix) { flushed = snapshot(m) })

	samples := concat(pulse(5), gap(15), pulse(5), gap(35))
	s.Process(samples)

	if flushed == nil {
		t.Fatal("expected a flush after the reset-limit gap")
	}
	row := flushed.Row(0)
	if row[0]&0x80 == 0 {
		t.Fatalf("first bit = 0, want 1 for a long (15-sample) gap between ShortLimit=10 and LongLimit=20")
	}
}

func TestSlicerAdvancesRowOnInterPacketGap(t *testing.T) {
	var flushCount int
	var lastFlush *BitMatrix
	s := NewSlicer("t", thresholds(), func(m *BitMatrix) {
		flushCount++
		lastFlush = snapshot(m)
	})

	// gap(25) exceeds LongLimit=20 but stays under ResetLimit=30: an
	// inter-packet gap within the same burst, not a flush.
	samples := concat(pulse(5), gap(5), pulse(5), gap(25), pulse(5), gap(5), pulse(5), gap(35))
	s.Process(samples)

	if flushCount != 1 {
		t.Fatalf("flush count = %d, want 1 (only the trailing reset-limit gap flushes)", flushCount)
	}
	if lastFlush.Rows() < 2 {
		t.Fatalf("Rows() = %d, want >= 2 (inter-packet gap should have advanced the row)", lastFlush.Rows())
	}
}

func TestSlicerResetsAfterFlush(t *testing.T) {
	flushes := 0
	s := NewSlicer("t", thresholds(), func(m *BitMatrix) { flushes++ })

	s.Process(concat(pulse(5), gap(5), pulse(5), gap(35)))
	s.Process(concat(pulse(5), gap(5), pulse(5), gap(35)))

	if flushes != 2 {
		t.Fatalf("flushes = %d, want 2 independent packet groups", flushes)
	}
}

func TestIndependentSlicersOverSharedStreamMatchIsolatedRuns(t *testing.T) {
	// Two different protocols' thresholds, run once in isolation and once
	// side-by-side over the exact same sample slice. Since each Slicer owns
	// its own state, co-running them must not change either one's output.
	thA := Thresholds{LevelLimit: 100, ShortLimit: 10, LongLimit: 20, ResetLimit: 30}
	thB := Thresholds{LevelLimit: 100, ShortLimit: 8, LongLimit: 16, ResetLimit: 40}

	samples := concat(pulse(5), gap(5), pulse(5), gap(15), pulse(5), gap(35))

	var isolatedA, isolatedB []*BitMatrix
	sa := NewSlicer("a", thA, func(m *BitMatrix) { isolatedA = append(isolatedA, snapshot(m)) })
	sa.Process(samples)
	sb := NewSlicer("b", thB, func(m *BitMatrix) { isolatedB = append(isolatedB, snapshot(m)) })
	sb.Process(samples)

	var sharedA, sharedB []*BitMatrix
	ca := NewSlicer("a", thA, func(m *BitMatrix) { sharedA = append(sharedA, snapshot(m)) })
	cb := NewSlicer("b", thB, func(m *BitMatrix) { sharedB = append(sharedB, snapshot(m)) })
	ca.Process(samples)
	cb.Process(samples)

	assertSameFlushes(t, "a", isolatedA, sharedA)
	assertSameFlushes(t, "b", isolatedB, sharedB)
}

func assertSameFlushes(t *testing.T, label string, isolated, shared []*BitMatrix) {
	t.Helper()
	if len(isolated) != len(shared) {
		t.Fatalf("slicer %s: flush count = %d co-running, want %d (isolated)", label, len(shared), len(isolated))
	}
	for i := range isolated {
		if isolated[i].Rows() != shared[i].Rows() {
			t.Fatalf("slicer %s: flush %d Rows() = %d co-running, want %d (isolated)",
				label, i, shared[i].Rows(), isolated[i].Rows())
		}
		for r := 0; r < isolated[i].Rows(); r++ {
			ir, sr := isolated[i].Row(r), shared[i].Row(r)
			for c := range ir {
				if ir[c] != sr[c] {
					t.Fatalf("slicer %s: flush %d row %d byte %d = 0x%02X co-running, want 0x%02X (isolated)",
						label, i, r, c, sr[c], ir[c])
				}
			}
		}
	}
}

func TestNewSlicerPanicsOnInvalidThresholdOrdering(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for short_limit >= long_limit")
		}
	}()
	NewSlicer("t", Thresholds{ShortLimit: 20, LongLimit: 10, ResetLimit: 30}, func(*BitMatrix) {})
}
