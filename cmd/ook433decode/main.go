// Command ook433decode turns an IQ sample stream near 433.92 MHz into
// decoded Rubicson/Prologue wireless-thermometer telemetry. It wires the
// signal-to-symbol pipeline (internal/pipeline) to a sample source
// (internal/source), an optional raw-sample sink, optional decode-event
// sinks, metrics, and health sampling, using stdlib flag/log and os/signal
// for graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kb9irk/ook433decode/internal/config"
	"github.com/kb9irk/ook433decode/internal/dsp"
	"github.com/kb9irk/ook433decode/internal/events"
	"github.com/kb9irk/ook433decode/internal/health"
	"github.com/kb9irk/ook433decode/internal/metrics"
	"github.com/kb9irk/ook433decode/internal/pipeline"
	"github.com/kb9irk/ook433decode/internal/protocol"
	"github.com/kb9irk/ook433decode/internal/sink"
	"github.com/kb9irk/ook433decode/internal/source"
)

// DebugMode gates verbose per-block diagnostics.
var DebugMode bool

func main() {
	if err := run(); err != nil {
		log.Fatalf("ook433decode: %v", err)
	}
}

func run() error {
	cli, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	DebugMode = cli.Debug
	protocol.DebugMode = cli.Debug

	fileCfg, err := config.LoadFile(cli.ConfigPath)
	if err != nil {
		// Configuration errors warn and fall back to defaults rather than abort.
		log.Printf("warning: %v; continuing with CLI-only configuration", err)
		fileCfg = &config.FileConfig{}
	}

	m := metrics.New()
	metricsAddr := cli.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = fileCfg.Metrics.Addr
	}
	if metricsAddr != "" {
		m.Serve(metricsAddr)
		defer m.Close()
	}

	healthInterval, err := time.ParseDuration(cli.HealthInterval)
	if err != nil {
		log.Printf("warning: invalid -health-interval %q, disabling health sampling", cli.HealthInterval)
		healthInterval = 0
	}

	ctx, cancelHealth := context.WithCancel(context.Background())
	defer cancelHealth()
	go health.NewSampler(healthInterval, m).Run(ctx)

	eventSinks, err := buildEventSinks(fileCfg)
	if err != nil {
		log.Printf("warning: %v; continuing without the affected event sink", err)
	}
	bcast := events.NewBroadcaster(eventSinks...)
	defer bcast.Close()

	var fileSink pipeline.Sink
	if cli.OutputPath != "" {
		fs, err := sink.NewFileSink(cli.OutputPath, false)
		if err != nil {
			return fmt.Errorf("opening output sink: %w", err)
		}
		defer fs.Close()
		fileSink = fs
	}

	var reporter *dsp.Reporter
	if cli.Analyze {
		reporter = dsp.NewReporter(os.Stdout)
	}

	protocols := selectProtocols(fileCfg.Protocols)

	p := pipeline.New(pipeline.Config{
		LevelLimit: int16(cli.LevelLimit),
		Decim:      cli.Decim,
		Analyze:    cli.Analyze,
		ByteBudget: cli.Budget * 2, // -n counts sample PAIRS; bytes = pairs*2
	}, protocols, m, fileSink, bcast, reporter)

	log.Printf("run %s starting: freq=%d sample_rate=%d level_limit=%d decim=%d",
		p.RunID(), cli.FreqHz, cli.SampleRateHz, cli.LevelLimit, cli.Decim)

	src, err := buildSource(cli, fileCfg)
	if err != nil {
		return fmt.Errorf("building sample source: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		log.Printf("run %s: shutdown signal received", p.RunID())
		p.RequestShutdown()
		src.Cancel()
	}()

	runErr := src.Run(sigCtx, func(buf []byte) bool {
		consumed, requestCancel := p.Deliver(buf)
		if DebugMode {
			log.Printf("run %s: block delivered=%d consumed=%d", p.RunID(), len(buf), consumed)
		}
		if requestCancel {
			src.Cancel()
			return false
		}
		return !p.ShuttingDown()
	})

	log.Printf("run %s finished", p.RunID())
	return runErr
}

// selectProtocols maps a FileConfig's protocol selection to the set of
// registered demodulators the pipeline should run.
func selectProtocols(sel config.ProtocolSelection) []protocol.Protocol {
	switch sel {
	case config.ProtocolRubicsonOnly:
		return []protocol.Protocol{protocol.Rubicson{}}
	case config.ProtocolPrologueOnly:
		return []protocol.Protocol{protocol.Prologue{}}
	default:
		return []protocol.Protocol{protocol.Rubicson{}, protocol.Prologue{}}
	}
}

func buildSource(cli *config.CLI, fileCfg *config.FileConfig) (source.Source, error) {
	if cli.ReadPath != "" {
		return source.NewFileSource(cli.ReadPath, cli.BlockSize), nil
	}
	if fileCfg.RTPSource.Enabled {
		return source.NewRTPSource(fileCfg.RTPSource.Multicast, fileCfg.RTPSource.SSRC), nil
	}
	return nil, fmt.Errorf("no sample source configured: pass -r PATH or enable rtp_source in -config")
}

func buildEventSinks(fileCfg *config.FileConfig) ([]events.Sink, error) {
	var sinks []events.Sink
	var firstErr error

	if fileCfg.Sinks.Websocket.Enabled {
		sinks = append(sinks, sink.NewWebsocketSink(fileCfg.Sinks.Websocket.Addr))
	}

	if fileCfg.Sinks.MQTT {
		mq := fileCfg.MQTT
		ms, err := sink.NewMQTTSink(mq.Broker, mq.Topic, mq.ClientID, mq.Username, mq.Password)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			sinks = append(sinks, ms)
		}
	}

	return sinks, firstErr
}
