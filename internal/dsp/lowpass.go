package dsp

// FilterOrder is the number of history samples the low-pass filter retains
// across block boundaries. The recurrence below is strictly first-order;
// generalizing FilterOrder beyond 1 would also require reworking the
// recurrence to consult y[-2..-FilterOrder], which it never does. Don't
// change this without redoing the recurrence.
const FilterOrder = 1

// FScale is the fixed-point fractional bit count (Q1.15).
const FScale = 15

// Coefficients pre-quantized to Q1.15, derived from a Butterworth design at
// cutoff 0.01*fs_nyquist: a1=0.96907, b0=b1=0.015466, each scaled by 2^15
// and truncated toward zero.
const (
	coeffA1 = int32(31754) // 0.96907 * 2^15
	coeffB0 = int32(506)   // 0.015466 * 2^15
	coeffB1 = int32(506)   // 0.015466 * 2^15
)

// FilterState holds the previous block's last FilterOrder input and output
// samples, carried across calls to Filter.
type FilterState struct {
	x [FilterOrder]int32 // previous input samples
	y [FilterOrder]int32 // previous output samples
}

// Filter applies the first-order IIR low-pass to in, writing len(in)
// samples to out (out must have capacity >= len(in)). state supplies
// x[-1]/y[-1] for the first output sample and is updated in place with the
// final FilterOrder input/output samples of this call, so a subsequent call
// continues the recurrence across block boundaries.
func Filter(in []uint16, out []int16, state *FilterState) {
	prevX := state.x[FilterOrder-1]
	prevY := state.y[FilterOrder-1]

	for n, xu := range in {
		x := int32(xu)
		// y[n] = ((a1*y[n-1])>>1 + (b0*x[n])>>1 + (b1*x[n-1])>>1) >> (FScale-1)
		sum := (coeffA1*prevY)>>1 + (coeffB0*x)>>1 + (coeffB1*prevX)>>1
		y := sum >> (FScale - 1)
		out[n] = int16(y)

		prevX = x
		prevY = y
	}

	state.x[FilterOrder-1] = prevX
	state.y[FilterOrder-1] = prevY
}
