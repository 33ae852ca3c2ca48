// Package sink implements the downstream collaborators the pipeline
// writes to: the raw/filtered-sample file sink and the structured
// decode-event sinks (websocket, MQTT).
package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// File magic/version bytes for the hybrid framing: magic, version, format
// byte, then payload.
const (
	fileMagic   uint16 = 0x4F4B // "OK"
	fileVersion uint8  = 1

	formatPlain uint8 = 0
	formatZstd  uint8 = 1
)

// FileSink writes the filtered sample buffer to a file (or stdout for the
// "-" path), framed with a small binary header per block: magic, version,
// format byte, sample rate, block length, sample data. When compress is
// true, each block's sample data is zstd-compressed before the length is
// computed.
//
// A short write is treated as fatal; see writeFull.
type FileSink struct {
	w        io.WriteCloser
	compress bool
	enc      *zstd.Encoder
}

// NewFileSink opens path for writing ("-" means stdout, which is never
// closed by Close). compress enables per-block zstd compression.
func NewFileSink(path string, compress bool) (*FileSink, error) {
	var w io.WriteCloser
	if path == "-" {
		w = nopCloser{os.Stdout}
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("sink: create %s: %w", path, err)
		}
		w = f
	}

	s := &FileSink{w: w, compress: compress}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("sink: zstd encoder: %w", err)
		}
		s.enc = enc
	}
	return s, nil
}

// Write frames and writes one block of filtered samples.
func (s *FileSink) Write(filtered []int16, sampleRate int) error {
	payload := make([]byte, len(filtered)*2)
	for i, v := range filtered {
		binary.BigEndian.PutUint16(payload[i*2:], uint16(v))
	}

	format := formatPlain
	if s.compress {
		payload = s.enc.EncodeAll(payload, nil)
		format = formatZstd
	}

	header := make([]byte, 13)
	binary.BigEndian.PutUint16(header[0:2], fileMagic)
	header[2] = fileVersion
	header[3] = format
	binary.BigEndian.PutUint32(header[4:8], uint32(sampleRate))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(payload)))
	header[12] = 0 // reserved

	return s.writeFull(header, payload)
}

func (s *FileSink) writeFull(chunks ...[]byte) error {
	for _, chunk := range chunks {
		n, err := s.w.Write(chunk)
		if err != nil {
			return fmt.Errorf("sink: write: %w", err)
		}
		if n != len(chunk) {
			return fmt.Errorf("sink: short write: wrote %d of %d bytes", n, len(chunk))
		}
	}
	return nil
}

// Close closes the underlying writer and releases the zstd encoder.
func (s *FileSink) Close() error {
	if s.enc != nil {
		s.enc.Close()
	}
	return s.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
