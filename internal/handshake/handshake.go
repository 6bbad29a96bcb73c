// Package handshake implements the one-shot outcome channel between the
// launcher and the mount daemon. Exactly one byte crosses it in a well-behaved
// run.
package handshake

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Outcome is the single status byte reported by the daemon.
type Outcome byte

const (
	Mounted   Outcome = 0
	Exhausted Outcome = 1
)

func (o Outcome) String() string {
	switch o {
	case Mounted:
		return "mounted"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", byte(o))
	}
}

var (
	ErrNoOutcome       = errors.New("channel closed before an outcome was reported")
	ErrAlreadyReported = errors.New("outcome already reported")
)

// New creates the channel. The Writer is meant to be handed to the daemon
// process; the Reader stays with the launcher.
func New() (*Reader, *Writer, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create pipe: %w", err)
	}
	return NewReader(r), NewWriter(w), nil
}

// FromFD wraps an inherited write end, such as fd 3 in the daemon.
func FromFD(fd uintptr) (*Writer, error) {
	f := os.NewFile(fd, "handshake")
	if f == nil {
		return nil, fmt.Errorf("invalid handshake fd %d", fd)
	}
	if _, err := f.Stat(); err != nil {
		return nil, fmt.Errorf("handshake fd %d: %w", fd, err)
	}
	return NewWriter(f), nil
}

// Writer is the daemon side. Report writes at most once.
type Writer struct {
	mu       sync.Mutex
	w        io.WriteCloser
	reported bool
}

func NewWriter(w io.WriteCloser) *Writer {
	return &Writer{w: w}
}

// Report writes o and closes the write end. Later calls return
// ErrAlreadyReported and write nothing.
func (w *Writer) Report(o Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reported {
		return ErrAlreadyReported
	}
	w.reported = true

	_, err := w.w.Write([]byte{byte(o)})
	return errors.Join(err, w.w.Close())
}

// Reported tells whether Report has been called.
func (w *Writer) Reported() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reported
}

// File returns the underlying pipe end when it is an *os.File, for passing to
// a child process.
func (w *Writer) File() (*os.File, bool) {
	f, ok := w.w.(*os.File)
	return f, ok
}

// Close releases the write end without reporting. Used by the launcher after
// the daemon inherited its copy.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reported {
		return nil
	}
	w.reported = true
	return w.w.Close()
}

// Reader is the launcher side.
type Reader struct {
	r io.ReadCloser
}

func NewReader(r io.ReadCloser) *Reader {
	return &Reader{r: r}
}

// Close releases the read end without waiting for an outcome.
func (r *Reader) Close() error {
	return r.r.Close()
}

// Await blocks until the daemon reports or the channel closes. There is no
// timeout.
func (r *Reader) Await() (Outcome, error) {
	defer r.r.Close()

	var buf [1]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrNoOutcome
		}
		return 0, fmt.Errorf("read outcome: %w", err)
	}
	return Outcome(buf[0]), nil
}
