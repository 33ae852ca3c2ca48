// Package events defines the structured decode-event type delivered to
// downstream sinks, and the fan-out broadcaster that delivers one decode
// to every registered sink.
package events

import (
	"log"
	"time"

	"github.com/kb9irk/ook433decode/internal/protocol"
)

// Decoded is a structured telemetry reading, timestamped by the pipeline at
// the moment its packet group was flushed.
type Decoded struct {
	Time     time.Time        `json:"time"`
	RunID    string           `json:"run_id"`
	Protocol string           `json:"protocol"`
	ID       int              `json:"id"`
	Channel  int              `json:"channel,omitempty"`
	Button   bool             `json:"button,omitempty"`
	TempC    float64          `json:"temp_c"`
	Extra    map[string]any   `json:"extra,omitempty"`
	decoded  protocol.Decoded // retained for String()
}

// FromProtocol builds a Decoded event from a protocol parse result.
func FromProtocol(runID string, d protocol.Decoded, at time.Time) Decoded {
	return Decoded{
		Time:     at,
		RunID:    runID,
		Protocol: d.Protocol,
		ID:       d.ID,
		Channel:  d.Channel,
		Button:   d.Button,
		TempC:    float64(d.TempTenthsC) / 10,
		Extra:    d.Extra,
		decoded:  d,
	}
}

// String renders the event as the human-readable line written to the
// error stream.
func (d Decoded) String() string {
	return d.decoded.String()
}

// Sink receives decoded events. Implementations must not block the caller
// for longer than is appropriate for a live decode stream. Unlike the
// raw-sample file sink, which treats a short write as fatal, event sinks
// (websocket, MQTT) are non-fatal on failure.
type Sink interface {
	Deliver(Decoded)
	Close() error
}

// Broadcaster fans one decode out to every registered sink. Sinks are called
// one after another on the caller's goroutine: a sink that blocks delays the
// sinks after it, and a panic in a sink is not recovered. Sinks log their
// own delivery failures; nothing is propagated to the caller.
type Broadcaster struct {
	sinks []Sink
}

// NewBroadcaster returns a Broadcaster fanning out to sinks.
func NewBroadcaster(sinks ...Sink) *Broadcaster {
	return &Broadcaster{sinks: sinks}
}

// Deliver sends d to every registered sink.
func (b *Broadcaster) Deliver(d Decoded) {
	for _, s := range b.sinks {
		s.Deliver(d)
	}
}

// Close closes every registered sink, logging (not returning) individual
// close errors so one misbehaving sink doesn't block shutdown of the rest.
func (b *Broadcaster) Close() error {
	for _, s := range b.sinks {
		if err := s.Close(); err != nil {
			log.Printf("events: sink close error: %v", err)
		}
	}
	return nil
}
