package transport

import (
	"errors"
	"io"
	"os"
	"syscall"
)

var (
	// ErrStreamEnded is returned by Expect when the stream ends and no
	// EOF pattern was supplied.
	ErrStreamEnded = errors.New("transport: stream ended")

	// ErrTimeout is returned by Expect when the wait times out and no
	// TIMEOUT pattern was supplied.
	ErrTimeout = errors.New("transport: timed out waiting for output")

	// ErrClosed is returned by operations on a closed Expecter.
	ErrClosed = errors.New("transport: closed")
)

// isEndOfStream reports whether a read error means the child is gone.
// A pty master reports EIO once the slave side has been closed.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrClosed)
}
