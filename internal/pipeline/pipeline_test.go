package pipeline

import (
	"testing"

	"github.com/kb9irk/ook433decode/internal/dsp"
	"github.com/kb9irk/ook433decode/internal/protocol"
)

// fakeProtocol decodes every flushed matrix that has at least one populated
// row, for tests that only care about pipeline-level control flow rather
// than field extraction.
type fakeProtocol struct {
	name string
	th   dsp.Thresholds
}

func (p fakeProtocol) Name() string             { return p.name }
func (p fakeProtocol) Thresholds() dsp.Thresholds { return p.th }
func (p fakeProtocol) Parse(m *dsp.BitMatrix) (protocol.Decoded, bool) {
	if m.Rows() < 1 {
		return protocol.Decoded{}, false
	}
	return protocol.Decoded{Protocol: p.name}, true
}

// recordingSink records a copy of every Write call's samples, implementing Sink.
type recordingSink struct {
	calls [][]int16
	err   error
}

func (s *recordingSink) Write(filtered []int16, sampleRate int) error {
	cp := append([]int16(nil), filtered...)
	s.calls = append(s.calls, cp)
	return s.err
}

func testProtocols() []protocol.Protocol {
	return []protocol.Protocol{
		fakeProtocol{name: "fake", th: dsp.Thresholds{ShortLimit: 10, LongLimit: 20, ResetLimit: 30}},
	}
}

func TestDeliverRunsEveryBlockThroughTheSink(t *testing.T) {
	sink := &recordingSink{}
	p := New(Config{LevelLimit: 100, Decim: 0}, testProtocols(), nil, sink, nil, nil)

	buf := make([]byte, 256)
	consumed, cancel := p.Deliver(buf)

	if consumed != len(buf) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buf))
	}
	if cancel {
		t.Fatal("cancel = true, want false for an unbounded budget")
	}
	if len(sink.calls) != 1 {
		t.Fatalf("sink.Write called %d times, want 1", len(sink.calls))
	}
}

func TestDeliverTruncatesAtByteBudget(t *testing.T) {
	sink := &recordingSink{}
	p := New(Config{LevelLimit: 100, ByteBudget: 10}, testProtocols(), nil, sink, nil, nil)

	buf := make([]byte, 256)
	consumed, cancel := p.Deliver(buf)

	if consumed != 10 {
		t.Fatalf("consumed = %d, want 10 (clamped to the byte budget)", consumed)
	}
	if !cancel {
		t.Fatal("cancel = false, want true once the byte budget is exhausted")
	}
	if !p.BudgetExhausted() {
		t.Fatal("BudgetExhausted() = false after the budget ran out")
	}
}

func TestDeliverReturnsImmediatelyAfterShutdownRequested(t *testing.T) {
	sink := &recordingSink{}
	p := New(Config{LevelLimit: 100}, testProtocols(), nil, sink, nil, nil)
	p.RequestShutdown()

	consumed, cancel := p.Deliver(make([]byte, 64))

	if consumed != 0 || !cancel {
		t.Fatalf("Deliver after shutdown = (%d, %v), want (0, true)", consumed, cancel)
	}
	if len(sink.calls) != 0 {
		t.Fatal("sink.Write should not be called once shutdown was requested")
	}
}

func TestDeliverRequestsShutdownOnSinkError(t *testing.T) {
	sink := &recordingSink{err: errWriteFailed{}}
	p := New(Config{LevelLimit: 100}, testProtocols(), nil, sink, nil, nil)

	_, cancel := p.Deliver(make([]byte, 64))

	if !cancel {
		t.Fatal("cancel = false, want true when the sink write fails")
	}
	if !p.ShuttingDown() {
		t.Fatal("ShuttingDown() = false, want true after a fatal sink error")
	}
}

func TestAnalyzeModeSkipsSlicing(t *testing.T) {
	reporter := dsp.NewReporter(discard{})
	parses := 0
	protos := []protocol.Protocol{countingProtocol{fakeProtocol: testProtocols()[0].(fakeProtocol), parses: &parses}}
	p := New(Config{LevelLimit: 100, Analyze: true}, protos, nil, nil, nil, reporter)

	// An all-high block would normally start filling a bit matrix; in
	// analysis mode the slicers are never invoked, so Deliver must not
	// panic even with a nil sink and no protocol parse ever happening.
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = 0xFF
	}
	if _, cancel := p.Deliver(buf); cancel {
		t.Fatal("cancel = true, want false for a plain analysis-mode block")
	}
	if parses != 0 {
		t.Fatalf("Parse called %d times in analysis mode, want 0", parses)
	}
}

// countingProtocol counts Parse calls, which happen only when a slicer flushes.
type countingProtocol struct {
	fakeProtocol
	parses *int
}

func (p countingProtocol) Parse(m *dsp.BitMatrix) (protocol.Decoded, bool) {
	*p.parses++
	return p.fakeProtocol.Parse(m)
}

func TestRunIDIsStableAndNonEmpty(t *testing.T) {
	p := New(Config{LevelLimit: 100}, testProtocols(), nil, nil, nil, nil)
	if p.RunID() == "" {
		t.Fatal("RunID() is empty")
	}
	if p.RunID() != p.RunID() {
		t.Fatal("RunID() is not stable across calls")
	}
}

type errWriteFailed struct{}

func (errWriteFailed) Error() string { return "write failed" }

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
