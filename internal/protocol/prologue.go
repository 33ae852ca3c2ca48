package protocol

import (
	"log"

	"github.com/kb9irk/ook433decode/internal/dsp"
)

// Prologue decodes the Prologue family of wireless thermometers. It reads
// row 1 of the bit matrix. Unlike Rubicson, Prologue has a fixed 4-bit
// family identifier, so Parse rejects any row whose id nibble isn't 0x9
// before extracting fields.
type Prologue struct{}

func (Prologue) Name() string { return "prologue" }

// Thresholds for Prologue, in filtered-sample counts at 48 kS/s.
func (Prologue) Thresholds() dsp.Thresholds {
	return dsp.Thresholds{
		LevelLimit: 0, // set by the pipeline from the configured level_limit
		ShortLimit: 3500,
		LongLimit:  7000,
		ResetLimit: 15000,
	}
}

// Parse extracts channel, button, random ID, and temperature from row 1.
func (Prologue) Parse(m *dsp.BitMatrix) (Decoded, bool) {
	if m.Rows() < 2 {
		return Decoded{}, false
	}
	row := m.Row(1)

	id := row[0] >> 4
	if id != 0x9 {
		if DebugMode {
			log.Printf("protocol: prologue: rejecting row with family nibble 0x%X, want 0x9", id)
		}
		return Decoded{}, false
	}

	rid := int(row[0]&0x0F)<<4 | int(row[1]>>4)
	firstReading := (row[1]>>3)&0x1 == 0
	button := (row[1]>>2)&0x1 == 1
	channel := int(row[1]&0x03) + 1

	// raw16 = row[2]<<8 | (row[3]&0xF0), interpreted signed, then
	// arithmetic right-shift by 4 to recover tenths of a degree Celsius.
	raw := uint16(row[2])<<8 | uint16(row[3]&0xF0)
	tmp := int16(raw) >> 4

	return Decoded{
		Protocol:    "prologue",
		ID:          rid,
		Channel:     channel,
		Button:      button,
		TempTenthsC: int(tmp),
		Extra: map[string]any{
			"first_reading": firstReading,
		},
	}, true
}
