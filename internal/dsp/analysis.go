package dsp

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
)

// Reporter is the analysis-mode pulse-inspection diagnostic: it reports
// pulse start/end sample indices and a running average pulse distance, but
// never touches protocol state.
//
// The running average is deliberately NOT reset between bursts: it divides
// by pulsesFound on the very first pulse and by a lifetime count
// thereafter, so the printed average drifts toward the process's lifetime
// mean rather than each burst's own mean. That behavior is preserved here
// rather than "fixed", since this is a diagnostic tool and changing its
// output would break comparisons against historical analysis-mode runs.
type Reporter struct {
	out io.Writer

	inPulse      bool
	pulseStart   int
	lastPulseEnd int
	haveLastEnd  bool
	pulsesFound  int
	distances    []float64 // lifetime history, never reset between bursts
}

// NewReporter returns a Reporter writing human-readable lines to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Observe scans one block of filtered samples against levelLimit, logging
// pulse boundaries and updating the running pulse-distance average.
// sampleOffset is the absolute sample index of filtered[0], so indices
// printed are meaningful across block boundaries.
func (r *Reporter) Observe(filtered []int16, levelLimit int16, sampleOffset int) {
	for i, sample := range filtered {
		idx := sampleOffset + i
		above := sample > levelLimit

		if above && !r.inPulse {
			r.inPulse = true
			r.pulseStart = idx
			fmt.Fprintf(r.out, "pulse_start %d\n", idx)
		} else if !above && r.inPulse {
			r.inPulse = false
			fmt.Fprintf(r.out, "pulse_end %d\n", idx)

			if r.haveLastEnd {
				distance := float64(r.pulseStart - r.lastPulseEnd)
				r.pulsesFound++
				r.distances = append(r.distances, distance)

				// r.distances accumulates for the life of the Reporter, so
				// stat.Mean over it is exactly the "divide by pulsesFound on
				// the first pulse, running lifetime average thereafter"
				// behavior the field comment above describes.
				avg := stat.Mean(r.distances, nil)
				fmt.Fprintf(r.out, "pulse_distance %d average %.1f\n", int(distance), avg)
			}
			r.lastPulseEnd = idx
			r.haveLastEnd = true
		}
	}
}
