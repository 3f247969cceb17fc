package extract

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrReadTimeout reports a source read that did not return within the I/O
// timeout. It is transient: the iterator reopens the source and resumes.
var ErrReadTimeout = errors.New("extract: source read timed out")

// deadlineReader bounds every Read by timeout. Plain files cannot carry read
// deadlines, so each Read runs on its own goroutine into a private buffer;
// after a timeout the reader is poisoned and the abandoned goroutine keeps
// the buffer it was given.
type deadlineReader struct {
	r       io.Reader
	timeout time.Duration
	buf     []byte
	err     error
}

type readResult struct {
	n   int
	err error
}

func newDeadlineReader(r io.Reader, timeout time.Duration) io.Reader {
	if timeout <= 0 {
		return r
	}
	return &deadlineReader{r: r, timeout: timeout}
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if cap(d.buf) < len(p) {
		d.buf = make([]byte, len(p))
	}
	buf := d.buf[:len(p)]

	done := make(chan readResult, 1)
	go func() {
		n, err := d.r.Read(buf)
		done <- readResult{n: n, err: err}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		copy(p, buf[:res.n])
		return res.n, res.err
	case <-timer.C:
		d.buf = nil
		d.err = fmt.Errorf("%w after %s", ErrReadTimeout, d.timeout)
		return 0, d.err
	}
}
