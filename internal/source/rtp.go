package source

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"

	"github.com/pion/rtp"
)

// RTPSource receives IQ sample blocks carried as RTP payload over UDP
// multicast, using pion/rtp for header parsing and SSRC-based routing.
// This models an SDR front-end daemon that publishes sample blocks over
// the network rather than a local USB driver — the device driver is an
// opaque external collaborator reachable only through the Source
// contract, and an RTP multicast feed is one concrete realization of it.
type RTPSource struct {
	multicastAddr string
	ssrc          uint32 // 0 accepts packets from any SSRC

	conn     *net.UDPConn
	canceled atomic.Bool
}

// NewRTPSource returns an RTPSource listening on multicastAddr (host:port).
// If ssrc is non-zero, packets from other SSRCs are silently ignored, so
// multiple independent feeds can share one multicast group.
func NewRTPSource(multicastAddr string, ssrc uint32) *RTPSource {
	return &RTPSource{multicastAddr: multicastAddr, ssrc: ssrc}
}

// Run joins the multicast group and delivers each RTP packet's payload as
// one IQ block, until ctx is canceled, Cancel is called, or deliver
// returns false.
func (r *RTPSource) Run(ctx context.Context, deliver func([]byte) bool) error {
	addr, err := net.ResolveUDPAddr("udp", r.multicastAddr)
	if err != nil {
		return fmt.Errorf("source: resolve %s: %w", r.multicastAddr, err)
	}

	conn, err := net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("source: listen multicast %s: %w", r.multicastAddr, err)
	}
	r.conn = conn
	defer conn.Close()

	go func() {
		<-ctx.Done()
		r.Cancel()
	}()

	buf := make([]byte, 65536)
	for {
		if r.canceled.Load() {
			return nil
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if r.canceled.Load() {
				return nil
			}
			return fmt.Errorf("source: read multicast %s: %w", r.multicastAddr, err)
		}
		if n < 12 {
			// Too small to be a valid RTP header; skip rather than fail
			// the whole stream over one malformed packet.
			continue
		}

		var packet rtp.Packet
		if err := packet.Unmarshal(buf[:n]); err != nil {
			log.Printf("source: rtp unmarshal error: %v", err)
			continue
		}

		if r.ssrc != 0 && packet.SSRC != r.ssrc {
			continue
		}

		if len(packet.Payload)%2 != 0 {
			// Odd-length IQ blocks can't be interleaved into I/Q pairs; a
			// malformed/truncated RTP payload is a device-class error, so
			// it's dropped here rather than handed to the envelope detector.
			log.Printf("source: dropping odd-length RTP payload (%d bytes)", len(packet.Payload))
			continue
		}

		if !deliver(packet.Payload) {
			return nil
		}
	}
}

// Cancel closes the multicast socket, unblocking any in-flight read.
// Idempotent.
func (r *RTPSource) Cancel() {
	if r.canceled.CompareAndSwap(false, true) {
		if r.conn != nil {
			r.conn.Close()
		}
	}
}
