package dsp

import "testing"

func TestEnvelopeZeroAtBias(t *testing.T) {
	// 0x80, 0x80 re-centers to (0, 0), magnitude 0.
	buf := []byte{0x80, 0x80}
	out := Envelope(buf, 0)
	if len(out) != 1 || out[0] != 0 {
		t.Fatalf("Envelope(0x80,0x80) = %v, want [0]", out)
	}
}

func TestEnvelopeFullScale(t *testing.T) {
	// 0x00 re-centers to -128, 0xFF re-centers to 127.
	buf := []byte{0x00, 0xFF}
	out := Envelope(buf, 0)
	want := uint16(128*128 + 127*127)
	if len(out) != 1 || out[0] != want {
		t.Fatalf("Envelope(0x00,0xFF) = %v, want [%d]", out, want)
	}
}

func TestEnvelopeDecimationHalvesOutput(t *testing.T) {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = 0x80
	}
	// 16 bytes are 8 I/Q pairs; decim=1 keeps every other pair.
	out := Envelope(buf, 1)
	if len(out) != 4 {
		t.Fatalf("len(Envelope(16 bytes, decim=1)) = %d, want 4", len(out))
	}
}

func TestEnvelopeSigned(t *testing.T) {
	cases := []struct {
		in   byte
		want int8
	}{
		{0x80, 0},
		{0x00, -128},
		{0xFF, 127},
		{0x81, 1},
	}
	for _, c := range cases {
		if got := EnvelopeSigned(c.in); got != c.want {
			t.Errorf("EnvelopeSigned(0x%02X) = %d, want %d", c.in, got, c.want)
		}
	}
}
