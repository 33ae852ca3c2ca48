// Package pipeline implements the per-buffer orchestrator that fans an
// incoming IQ block out through envelope detection, low-pass filtering, and
// every registered protocol's PWM demodulator.
package pipeline

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kb9irk/ook433decode/internal/dsp"
	"github.com/kb9irk/ook433decode/internal/events"
	"github.com/kb9irk/ook433decode/internal/metrics"
	"github.com/kb9irk/ook433decode/internal/protocol"
)

// Sink is the optional downstream filtered-sample sink. A nil Sink means "no
// save", matching the CLI's default.
type Sink interface {
	Write(filtered []int16, sampleRate int) error
}

// Config holds the orchestrator's fixed, startup-time parameters.
type Config struct {
	LevelLimit int16
	Decim      uint
	Analyze    bool // analysis mode: pulse reporter only, no decode
	ByteBudget int64 // 0 means unlimited
}

// Pipeline is the per-block orchestrator. All buffers and protocol states
// are allocated once in New and reused for the process lifetime.
type Pipeline struct {
	cfg     Config
	runID   string
	metrics *metrics.Metrics
	sink    Sink
	events  *events.Broadcaster
	reporter *dsp.Reporter

	protocols []protocol.Protocol
	slicers   []*dsp.Slicer
	filterSt  dsp.FilterState

	doExit       atomic.Bool
	remaining    atomic.Int64
	sampleOffset int // absolute filtered-sample index, for the analysis reporter
}

// New constructs a Pipeline over the given protocols. m and bcast may be
// nil (metrics/event delivery disabled); sink may be nil (no raw-sample
// persistence); reporter is required only when cfg.Analyze is true.
func New(cfg Config, protocols []protocol.Protocol, m *metrics.Metrics, sink Sink, bcast *events.Broadcaster, reporter *dsp.Reporter) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		runID:     uuid.NewString(),
		metrics:   m,
		sink:      sink,
		events:    bcast,
		reporter:  reporter,
		protocols: protocols,
	}
	p.remaining.Store(cfg.ByteBudget)

	p.slicers = make([]*dsp.Slicer, len(protocols))
	for i, proto := range protocols {
		th := proto.Thresholds()
		th.LevelLimit = cfg.LevelLimit
		p.slicers[i] = dsp.NewSlicer(proto.Name(), th, func(m *dsp.BitMatrix) {
			p.onFlush(proto, m)
		})
	}

	return p
}

// RunID returns this pipeline instance's unique run identifier, used to
// correlate log lines and events across a single process lifetime.
func (p *Pipeline) RunID() string { return p.runID }

// RequestShutdown sets the cooperative shutdown flag. Safe to call from a
// signal handler; Deliver polls it at block entry.
func (p *Pipeline) RequestShutdown() { p.doExit.Store(true) }

// ShuttingDown reports whether shutdown has been requested.
func (p *Pipeline) ShuttingDown() bool { return p.doExit.Load() }

// BudgetExhausted reports whether the byte budget (if any) has been spent.
func (p *Pipeline) BudgetExhausted() bool {
	budget := p.cfg.ByteBudget
	return budget > 0 && p.remaining.Load() <= 0
}

// Deliver runs one incoming raw IQ block through envelope detection,
// filtering, and demodulation. It returns the number of bytes actually
// consumed (which may be less than len(buf) if the byte budget ran out
// mid-block) and whether the driver should be asked to cancel.
func (p *Pipeline) Deliver(buf []byte) (consumed int, cancel bool) {
	if p.doExit.Load() {
		return 0, true
	}

	l := len(buf)
	if budget := p.cfg.ByteBudget; budget > 0 {
		if remaining := p.remaining.Load(); int64(l) > remaining {
			l = int(remaining)
			cancel = true
		}
	}
	buf = buf[:l]

	envelope := dsp.Envelope(buf, p.cfg.Decim)
	filtered := make([]int16, len(envelope))
	dsp.Filter(envelope, filtered, &p.filterSt)

	if p.metrics != nil {
		p.metrics.RecordBlock(len(buf), len(filtered))
	}

	if p.cfg.Analyze {
		if p.reporter != nil {
			p.reporter.Observe(filtered, p.cfg.LevelLimit, p.sampleOffset)
		}
	} else {
		for _, s := range p.slicers {
			s.Process(filtered)
		}
	}
	p.sampleOffset += len(filtered)

	if p.sink != nil {
		if err := p.sink.Write(filtered, sampleRateFor(p.cfg.Decim)); err != nil {
			// A short/failed write to the raw-output sink is fatal; request
			// shutdown and let the caller decide the process exit code.
			log.Printf("pipeline: fatal sink write error, requesting shutdown: %v", err)
			p.RequestShutdown()
			return l, true
		}
	}

	if budget := p.cfg.ByteBudget; budget > 0 {
		p.remaining.Add(-int64(l))
		if p.remaining.Load() <= 0 {
			cancel = true
		}
	}

	return l, cancel
}

func (p *Pipeline) onFlush(proto protocol.Protocol, m *dsp.BitMatrix) {
	decoded, ok := proto.Parse(m)
	if !ok {
		if p.metrics != nil {
			p.metrics.RecordRejected(proto.Name())
		}
		return
	}

	at := time.Now()
	ev := events.FromProtocol(p.runID, decoded, at)
	fmt.Fprintln(os.Stderr, ev)

	if p.metrics != nil {
		p.metrics.RecordDecoded(proto.Name())
	}
	if p.events != nil {
		p.events.Deliver(ev)
	}
}

// sampleRateFor returns the effective sample rate of the filtered stream
// after decimation, used only to label sink output.
func sampleRateFor(decim uint) int {
	return 48000 >> decim
}
