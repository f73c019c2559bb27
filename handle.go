package serial

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/hatproto/serialio/internal/wakeup"
	"github.com/hatproto/serialio/ring"
)

// Callback is invoked by the worker goroutine: the in callback after a
// device read that moved at least one byte, the out callback after a
// device write that emptied the outbound ring, and the close callback
// exactly once on shutdown. It must not block and must not call the
// Handle's Destroy (Destroy waits for the worker that is running the
// callback, so it would deadlock); Close does not wait and is safe.
type Callback func(h *Handle)

const (
	stateCreated int32 = iota
	stateRunning
	stateClosing
	stateClosed
)

// Stats holds the optional running counters a caller can attach via
// WithStats; the worker updates them with plain atomic adds, never under
// a lock, matching the lock-free spirit of the rest of the package.
type Stats struct {
	BytesIn  atomic.Uint64
	BytesOut atomic.Uint64
}

// Option configures a Handle at Create time.
type Option func(*Handle)

// WithLogger attaches a SugaredLogger; the worker logs fatal poll/read/write
// errors and the shutdown transition through it. Without one, Handle stays
// silent — logging is purely observational and never changes behavior.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(h *Handle) { h.log = l }
}

// WithStats attaches a Stats block the worker updates on every I/O cycle.
func WithStats(s *Stats) Option {
	return func(h *Handle) { h.stats = s }
}

// Handle is the async serial façade: two Ring buffers, a background I/O
// worker, and the self-pipe used to interrupt its poll wait. The zero
// value is not usable; build one with Create.
type Handle struct {
	in, out *ring.Ring

	closeCB, inCB, outCB Callback
	ctx                  any

	log   *zap.SugaredLogger
	stats *Stats

	state   atomic.Int32
	closing atomic.Bool

	wake *wakeup.Pipe
	// portFD and done are set once by Open, before the worker goroutine is
	// spawned, and afterward are owned by the worker alone until it exits;
	// Destroy only reads them after joining, which happens-after the
	// worker's last write via the done channel close.
	portFD int
	done   chan struct{}
}

// Create allocates a Handle with the given ring capacities and callbacks.
// ctx is an opaque value returned verbatim by Ctx, for caller bookkeeping.
// Any of the callbacks may be nil.
func Create(inSize, outSize int, closeCB, inCB, outCB Callback, ctx any, opts ...Option) (*Handle, error) {
	if inSize < 0 || outSize < 0 {
		return nil, ErrMemory
	}
	h := &Handle{
		in:      ring.New(inSize),
		out:     ring.New(outSize),
		closeCB: closeCB,
		inCB:    inCB,
		outCB:   outCB,
		ctx:     ctx,
		portFD:  -1,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Open configures and starts the device at port, then spawns the I/O
// worker. It fails with ErrInvalidState unless the Handle is freshly
// Created — in particular, a second Open after the first succeeded, and
// any Open after Close, both fail without changing state.
func (h *Handle) Open(port string, cfg LineConfig) (err error) {
	if !h.state.CompareAndSwap(stateCreated, stateRunning) {
		return ErrInvalidState
	}
	// Any failure below must put the state back so the caller can retry,
	// or so a subsequent Close still observes a coherent Created state.
	defer func() {
		if err != nil {
			h.state.Store(stateCreated)
		}
	}()

	fd, oerr := unix.Open(port, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if oerr != nil {
		return withCause(ErrOpen, oerr)
	}
	if cerr := ConfigureLine(fd, cfg); cerr != nil {
		_ = unix.Close(fd)
		return cerr
	}
	wake, werr := wakeup.New()
	if werr != nil {
		_ = unix.Close(fd)
		return withCause(ErrIO, werr)
	}

	h.portFD = fd
	h.wake = wake
	h.done = make(chan struct{})

	go h.workerLoop()
	return nil
}

// Close requests shutdown: it is idempotent and safe to call from any
// state, any number of times, and does not block on the worker exiting
// (use Destroy to join it). After Close returns, a later Open always
// fails with ErrInvalidState.
func (h *Handle) Close() {
	h.closing.Store(true)
	if h.wake != nil {
		h.wake.Signal()
		_ = h.wake.CloseWrite()
	}
	// If the worker never started (Open was never called, or failed before
	// spawning it) there is nobody left to drive Running->Closing->Closed,
	// so do it here.
	h.state.CompareAndSwap(stateCreated, stateClosed)
}

// Destroy calls Close, joins the worker goroutine if one was started, and
// releases the device descriptor and wakeup pipe. It blocks until shutdown
// is complete; calling it again afterwards is a no-op.
func (h *Handle) Destroy() {
	h.Close()
	if h.done != nil {
		<-h.done
	}
	// Defensive: the worker always closes these itself before closing
	// done, but a Handle that never reached Open has neither opened nor
	// been given anything to close here.
	if h.portFD >= 0 {
		_ = unix.Close(h.portFD)
		h.portFD = -1
	}
	h.state.Store(stateClosed)
}

// Read copies buffered inbound bytes into buf and returns the count moved,
// possibly 0. It never blocks.
func (h *Handle) Read(buf []byte) int {
	n := h.in.Read(buf)
	if n > 0 && h.wake != nil {
		h.wake.Signal()
	}
	return n
}

// Write copies as much of buf as fits into the outbound ring and returns
// the count accepted, possibly 0 if the ring is full. It never blocks.
func (h *Handle) Write(buf []byte) int {
	n := h.out.Write(buf)
	if n > 0 && h.wake != nil {
		h.wake.Signal()
	}
	return n
}

// Available returns the number of bytes currently buffered and ready to
// Read.
func (h *Handle) Available() int {
	return h.in.Len()
}

// Ctx returns the opaque context value passed to Create.
func (h *Handle) Ctx() any {
	return h.ctx
}

// workerLoop is the I/O worker. One goroutine per open Handle, started by
// Open and joined by Destroy.
func (h *Handle) workerLoop() {
	var closeErr error
	defer func() {
		_ = h.wake.CloseRead()
		_ = unix.Close(h.portFD)
		h.portFD = -1
		h.state.Store(stateClosed)
		if h.log != nil {
			h.log.Debugw("serial worker exiting", "cause", closeErr)
		}
		if h.closeCB != nil {
			h.closeCB(h)
		}
		close(h.done)
	}()

	for {
		if h.closing.Load() {
			return
		}
		if err := h.wake.Drain(); err != nil {
			closeErr = err
			return
		}
		if err := h.doRead(); err != nil {
			closeErr = err
			return
		}
		if err := h.doWrite(); err != nil {
			closeErr = err
			return
		}

		var mask int16
		if h.in.Capacity()-h.in.Len() > 0 {
			mask |= unix.POLLIN
		}
		if h.out.Len() > 0 {
			mask |= unix.POLLOUT
		}
		fds := []unix.PollFd{
			{Fd: int32(h.wake.ReadFD()), Events: unix.POLLIN},
			{Fd: int32(h.portFD), Events: mask},
		}

		_, perr := unix.Poll(fds, -1)
		if perr != nil {
			if errors.Is(perr, unix.EINTR) {
				continue
			}
			closeErr = withCause(ErrIO, perr)
			return
		}
		if bad := fds[0].Revents &^ unix.POLLIN; bad != 0 {
			closeErr = ErrIO
			return
		}
		if bad := fds[1].Revents &^ (unix.POLLIN | unix.POLLOUT); bad != 0 {
			closeErr = ErrIO
			return
		}
	}
}

// doRead performs one scatter-read: readv from the device into the free
// regions of the inbound ring, then advances tail by whatever the kernel
// actually accepted.
func (h *Handle) doRead() error {
	free := h.in.FreeRegions()
	iovs := regionIovs(free)
	if len(iovs) == 0 {
		return nil
	}
	n, err := unix.Readv(h.portFD, iovs)
	if n > 0 {
		h.in.AdvanceTail(n)
		if h.stats != nil {
			h.stats.BytesIn.Add(uint64(n))
		}
		if h.inCB != nil {
			h.inCB(h)
		}
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
		return nil
	}
	return withCause(ErrIO, err)
}

// doWrite performs one gather-write: writev from the used regions of the
// outbound ring to the device, then advances head by whatever the kernel
// actually accepted.
func (h *Handle) doWrite() error {
	used := h.out.UsedRegions()
	total := len(used[0].Data) + len(used[1].Data)
	if total == 0 {
		return nil
	}
	iovs := regionIovs(used)
	n, err := unix.Writev(h.portFD, iovs)
	if n > 0 {
		h.out.AdvanceHead(n)
		if h.stats != nil {
			h.stats.BytesOut.Add(uint64(n))
		}
		if n == total && h.outCB != nil {
			h.outCB(h)
		}
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
		return nil
	}
	return withCause(ErrIO, err)
}

func regionIovs(regions [2]ring.Region) [][]byte {
	var iovs [][]byte
	if len(regions[0].Data) > 0 {
		iovs = append(iovs, regions[0].Data)
	}
	if len(regions[1].Data) > 0 {
		iovs = append(iovs, regions[1].Data)
	}
	return iovs
}
