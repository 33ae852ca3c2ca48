// Package metrics exposes the pipeline's Prometheus counters and gauges,
// promauto-registered and served over an optional HTTP endpoint.
package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds every Prometheus collector the pipeline updates.
type Metrics struct {
	blocksProcessed   prometheus.Counter
	bytesIn           prometheus.Counter
	samplesFiltered   prometheus.Counter
	decodedTotal      *prometheus.CounterVec // label: protocol
	rejectedTotal     *prometheus.CounterVec // label: protocol
	lastFilteredLen   prometheus.Gauge

	server *http.Server
}

// New registers every collector with the default Prometheus registry and
// returns a Metrics ready for the pipeline to update.
func New() *Metrics {
	return &Metrics{
		blocksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ook433_blocks_processed_total",
			Help: "Number of raw IQ blocks delivered to the pipeline.",
		}),
		bytesIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ook433_bytes_in_total",
			Help: "Number of raw IQ bytes consumed.",
		}),
		samplesFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ook433_samples_filtered_total",
			Help: "Number of filtered samples produced.",
		}),
		decodedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ook433_decoded_total",
			Help: "Number of successfully parsed packets, by protocol.",
		}, []string{"protocol"}),
		rejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ook433_rejected_total",
			Help: "Number of flushed packet groups that failed a protocol's validity predicate, by protocol.",
		}, []string{"protocol"}),
		lastFilteredLen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ook433_last_block_filtered_samples",
			Help: "Filtered sample count of the most recently processed block.",
		}),
	}
}

// RecordBlock updates the per-block counters and gauges.
func (m *Metrics) RecordBlock(rawBytes, filteredSamples int) {
	m.blocksProcessed.Inc()
	m.bytesIn.Add(float64(rawBytes))
	m.samplesFiltered.Add(float64(filteredSamples))
	m.lastFilteredLen.Set(float64(filteredSamples))
}

// RecordDecoded increments the decoded-packet counter for protocol.
func (m *Metrics) RecordDecoded(protocol string) {
	m.decodedTotal.WithLabelValues(protocol).Inc()
}

// RecordRejected increments the rejected-packet counter for protocol.
func (m *Metrics) RecordRejected(protocol string) {
	m.rejectedTotal.WithLabelValues(protocol).Inc()
}

// Serve starts the /metrics HTTP endpoint on addr in the background. It
// returns immediately; call Close to shut the listener down. A bind
// failure is logged as a WARNING rather than treated as fatal — the
// decoder itself still runs without its metrics endpoint.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: WARNING: endpoint %s failed: %v", addr, err)
		}
	}()
}

// Snapshot gathers every registered collector's current value into a flat
// map, for consumers that have no Prometheus scraper of their own (the
// health sampler's periodic log line).
func (m *Metrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Printf("metrics: snapshot gather error: %v", err)
		return out
	}

	for _, mf := range families {
		name := mf.GetName()
		for _, metric := range mf.GetMetric() {
			key := name
			for _, lp := range metric.GetLabel() {
				key += "_" + lp.GetName() + "_" + lp.GetValue()
			}
			if v, ok := extractMetricValue(metric); ok {
				out[key] = v
			}
		}
	}
	return out
}

func extractMetricValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue(), true
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue(), true
	case m.GetHistogram() != nil:
		return m.GetHistogram().GetSampleSum(), true
	case m.GetSummary() != nil:
		return m.GetSummary().GetSampleSum(), true
	default:
		return 0, false
	}
}

// Close shuts down the metrics HTTP endpoint, if running.
func (m *Metrics) Close() error {
	if m.server == nil {
		return nil
	}
	if err := m.server.Close(); err != nil {
		return fmt.Errorf("metrics: close: %w", err)
	}
	return nil
}
