// Package wakeup implements the self-pipe used to interrupt the I/O
// worker's blocking poll wait: any mutation of a ring by the user triggers
// a 1-byte write here, and the worker always includes the read end in its
// poll set.
package wakeup

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Pipe is a unidirectional, non-blocking byte pipe. The write end is
// owned by user-facing code; the read end is owned by the worker goroutine
// once a Handle is open.
type Pipe struct {
	r, w int
}

// New opens a fresh non-blocking pipe via pipe2(2), avoiding the
// non-atomic pipe() + two fcntl(F_SETFL) calls the original C used.
func New() (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	return &Pipe{r: fds[0], w: fds[1]}, nil
}

// ReadFD returns the descriptor the worker polls.
func (p *Pipe) ReadFD() int { return p.r }

// Signal writes one byte to the wakeup pipe. Concurrent signals coalesce:
// the worker drains in a batch, so a failed or short write here is
// harmless — the reader will still wake on whatever arrived.
func (p *Pipe) Signal() {
	if p.w < 0 {
		return
	}
	var b [1]byte
	b[0] = 'x'
	_, _ = unix.Write(p.w, b[:])
}

// Drain reads the read end in chunks until EAGAIN or EOF. Any other error
// is returned so the worker can treat it as a fatal poll event.
func (p *Pipe) Drain() error {
	var buf [1024]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n > 0 {
			continue
		}
		if err == nil {
			// n == 0: EOF, the write end was closed.
			return nil
		}
		if errors.Is(err, unix.EAGAIN) {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

// CloseWrite drops the writable end; the worker observes this as
// quiescence (EOF on the next Drain), the signal to begin shutdown.
func (p *Pipe) CloseWrite() error {
	if p.w < 0 {
		return nil
	}
	fd := p.w
	p.w = -1
	return unix.Close(fd)
}

// CloseRead closes the read end. Owned and called exactly once by the
// worker on shutdown.
func (p *Pipe) CloseRead() error {
	if p.r < 0 {
		return nil
	}
	fd := p.r
	p.r = -1
	return unix.Close(fd)
}
