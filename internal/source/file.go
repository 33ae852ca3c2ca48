package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// FileSource reads interleaved IQ bytes from a local file or named pipe in
// fixed-size blocks, for the -r PATH flag. It satisfies the same Source
// contract as the RTP source so the orchestrator is agnostic to which is
// active.
type FileSource struct {
	path      string
	blockSize int

	canceled atomic.Bool
}

// NewFileSource returns a FileSource reading path in blocks of blockSize
// bytes (already clamped to the config package's allowed range).
func NewFileSource(path string, blockSize int) *FileSource {
	return &FileSource{path: path, blockSize: blockSize}
}

// Run reads blockSize-byte blocks from the file, delivering each to
// deliver, until EOF, ctx cancellation, Cancel, or deliver returning false.
// A short read at EOF delivers the final partial block, matching real
// device behavior where the last buffer before stream close is often
// short; deliver/the pipeline already tolerate arbitrary block lengths.
func (f *FileSource) Run(ctx context.Context, deliver func([]byte) bool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("source: open %s: %w", f.path, err)
	}
	defer file.Close()

	buf := make([]byte, f.blockSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if f.canceled.Load() {
			return nil
		}

		n, err := file.Read(buf)
		if n > 0 {
			if !deliver(buf[:n]) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("source: read %s: %w", f.path, err)
		}
	}
}

// Cancel requests the read loop stop at the next iteration. Idempotent.
func (f *FileSource) Cancel() {
	f.canceled.Store(true)
}
