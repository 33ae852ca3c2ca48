package protocol

import "github.com/kb9irk/ook433decode/internal/dsp"

// Rubicson decodes the Rubicson/Auriol family of wireless thermometers. It
// reads row 0 of the bit matrix only; the protocol has no CRC or
// magic-word field, so every flushed matrix with at least one row is
// parsed — spurious decodes from noise are expected and are the caller's
// responsibility to filter if needed.
type Rubicson struct{}

// Thresholds for Rubicson, in filtered-sample counts at 48 kS/s.
func (Rubicson) Thresholds() dsp.Thresholds {
	return dsp.Thresholds{
		LevelLimit: 0, // set by the pipeline from the configured level_limit
		ShortLimit: 1744,
		LongLimit:  3500,
		ResetLimit: 5000,
	}
}

func (Rubicson) Name() string { return "rubicson" }

// Parse extracts the random sensor ID and signed tenths-of-a-degree
// temperature from row 0.
func (Rubicson) Parse(m *dsp.BitMatrix) (Decoded, bool) {
	if m.Rows() < 1 {
		return Decoded{}, false
	}
	row := m.Row(0)

	rid := int(row[0])

	// raw16 = row[1]<<8 | row[2], interpreted signed, then arithmetic
	// right-shift by 4 to recover a sign-extended 12-bit tenths-of-°C
	// value. See DESIGN.md for the byte-layout rationale.
	raw := uint16(row[1])<<8 | uint16(row[2])
	tmp := int16(raw) >> 4

	return Decoded{
		Protocol:    "rubicson",
		ID:          rid,
		TempTenthsC: int(tmp),
	}, true
}
