// Package source implements the upstream sample-source contract: deliver
// successive blocks to a callback until canceled or exhausted. The SDR
// device driver itself is out of scope; this package only provides
// concrete sources that satisfy the contract — a local file and an
// RTP-multicast receiver — standing in for whatever device driver is
// wired in at the edges.
package source

import "context"

// Source is the contract the pipeline's driver-facing edge consumes. It is
// deliberately narrow: everything about tuning, gain, and device
// enumeration lives outside this package.
type Source interface {
	// Run delivers successive IQ blocks to deliver until ctx is canceled,
	// the source is exhausted (EOF), or deliver itself returns false to
	// request no further blocks. Run returns nil when it stops for one of
	// those reasons, and an error when opening or reading the source fails.
	Run(ctx context.Context, deliver func(buf []byte) (keepGoing bool)) error
	// Cancel requests the source stop delivering further blocks. Idempotent.
	Cancel()
}
