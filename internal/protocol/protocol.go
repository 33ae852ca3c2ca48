// Package protocol implements per-protocol packet parsing over the bit
// matrix the PWM slicer populates.
package protocol

import (
	"fmt"

	"github.com/kb9irk/ook433decode/internal/dsp"
)

// DebugMode gates verbose per-decode diagnostics, such as logging rejected
// packets that fail a protocol's validity predicate. Set once at startup
// from the CLI's -debug flag.
var DebugMode bool

// Decoded is the human/structured result of a successful parse.
type Decoded struct {
	Protocol    string
	ID          int
	Channel     int
	Button      bool
	TempTenthsC int // tenths of a degree Celsius
	Extra       map[string]any
}

// String renders a decode's temperature as a signed one-decimal value
// (e.g. "+23.4", "-10.0"), matching the display convention used for every
// other wireless-thermometer family this decoder recognizes.
func (d Decoded) String() string {
	sign := "+"
	t := d.TempTenthsC
	if t < 0 {
		sign = "-"
		t = -t
	}
	base := fmt.Sprintf("%s: id=%d temp=%s%d.%d", d.Protocol, d.ID, sign, t/10, t%10)
	if d.Channel != 0 {
		base += fmt.Sprintf(" channel=%d", d.Channel)
	}
	if d.Button {
		base += " button=1"
	}
	return base
}

// Protocol couples a PWM slicer's thresholds to a packet parser, so the
// pipeline orchestrator can fan out over a slice of registered protocols
// instead of a fixed pair, making it straightforward to add a third or
// fourth wireless-sensor family later.
type Protocol interface {
	// Name identifies the protocol in diagnostics and the bit matrix's own
	// diagnostic labeling.
	Name() string
	// Thresholds returns the PWM discriminators for this protocol's slicer.
	Thresholds() dsp.Thresholds
	// Parse extracts fields from a populated bit matrix. ok is false when
	// the matrix fails the protocol's validity predicate or doesn't contain
	// enough rows to parse.
	Parse(m *dsp.BitMatrix) (Decoded, bool)
}
