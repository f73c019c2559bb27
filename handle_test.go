package serial

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// openPTYPair opens a master/slave PTY pair the same way OpenPTY does, but
// returns the slave as a bare path instead of an already-opened Port, since
// the end-to-end tests below hand that path to Handle.Open so the Handle
// owns the slave descriptor exactly as it would for a real device node.
func openPTYPair(t *testing.T) (master *Port, slavePath string) {
	t.Helper()
	m, err := Open("/dev/ptmx", NewOptions())
	require.NoError(t, err)

	require.NoError(t, unlockPT(m.Fd()))
	n, err := ptsNumber(m.Fd())
	require.NoError(t, err)

	return m, fmt.Sprintf("/dev/pts/%d", n)
}

func defaultLineConfig() LineConfig {
	return LineConfig{Baudrate: 115200, Bytesize: 8, Parity: 'N', Stopbits: 1}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition not met before timeout")
}

// writeAllRetryingEAGAIN drives master.Write, the master being a
// non-blocking Port (NewOptions' default), retrying transient EAGAIN
// instead of treating it as a fatal transfer error.
func writeAllRetryingEAGAIN(t *testing.T, p *Port, data []byte) {
	t.Helper()
	for len(data) > 0 {
		n, err := p.Write(data)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				time.Sleep(time.Millisecond)
				continue
			}
			require.NoError(t, err)
		}
		data = data[n:]
	}
}

// TestHandleEcho checks that data written to the master side of the
// loopback shows up on the Handle's inbound ring, and data pushed through
// the Handle reaches the master's Read.
func TestHandleEcho(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	h, err := Create(256, 256, nil, nil, nil, nil)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.Open(slavePath, defaultLineConfig()))

	writeAllRetryingEAGAIN(t, master, []byte("hello"))

	buf := make([]byte, 16)
	var n int
	waitFor(t, time.Second, func() bool {
		n = h.Read(buf)
		return n > 0
	})
	require.Equal(t, "hello", string(buf[:n]))

	sent := h.Write([]byte("world"))
	require.Equal(t, 5, sent)

	out := make([]byte, 16)
	waitFor(t, time.Second, func() bool {
		got, rerr := master.ReadTimeout(out, 50*time.Millisecond)
		n = got
		return rerr == nil && got > 0
	})
	require.Equal(t, "world", string(out[:n]))
}

// TestHandleWriteBackpressure checks that writes past the outbound ring's
// capacity are accepted only up to that capacity; Write never blocks and
// reports the short count.
func TestHandleWriteBackpressure(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	h, err := Create(64, 4, nil, nil, nil, nil)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.Open(slavePath, defaultLineConfig()))

	n := h.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.LessOrEqual(t, n, 4)
	require.Greater(t, n, 0)
}

// TestHandleWrapAroundLargeTransfer checks that a transfer larger than
// either ring's capacity still arrives intact once enough read/write
// cycles have run, exercising the wraparound path in the ring through the
// worker loop.
func TestHandleWrapAroundLargeTransfer(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	h, err := Create(32, 32, nil, nil, nil, nil)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.Open(slavePath, defaultLineConfig()))

	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan struct{})
	go func() {
		writeAllRetryingEAGAIN(t, master, payload)
		close(done)
	}()

	received := make([]byte, 0, len(payload))
	buf := make([]byte, 64)
	waitFor(t, 5*time.Second, func() bool {
		n := h.Read(buf)
		if n > 0 {
			received = append(received, buf[:n]...)
		}
		return len(received) >= len(payload)
	})
	<-done
	require.Equal(t, payload, received)
}

// TestHandleCloseRaces checks that Close/Destroy races are safe:
// concurrent callers, and a Close that overlaps in-flight Read/Write
// calls, never panic or deadlock.
func TestHandleCloseRaces(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	h, err := Create(64, 64, nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, h.Open(slavePath, defaultLineConfig()))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Write([]byte{byte(i)})
			h.Read(make([]byte, 8))
		}
		close(done)
	}()

	h.Close()
	h.Close() // idempotent
	<-done
	h.Destroy()
	h.Destroy() // idempotent: done channel already closed, second join is a no-op read of a closed channel
}

// TestHandleOpenBadBaudrate checks that an out-of-range baud rate fails
// Open synchronously with ErrBaudrate, and that the Handle remains in a
// state where Open can be retried.
func TestHandleOpenBadBaudrate(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	h, err := Create(64, 64, nil, nil, nil, nil)
	require.NoError(t, err)
	defer h.Destroy()

	cfg := defaultLineConfig()
	cfg.Baudrate = 31337
	err = h.Open(slavePath, cfg)
	require.ErrorIs(t, err, ErrBaudrate)

	require.NoError(t, h.Open(slavePath, defaultLineConfig()))
}

// TestHandleDoubleOpenFails checks that a second Open on an already-running
// Handle fails with ErrInvalidState and leaves the first session running
// undisturbed.
func TestHandleDoubleOpenFails(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	h, err := Create(64, 64, nil, nil, nil, nil)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.Open(slavePath, defaultLineConfig()))
	err = h.Open(slavePath, defaultLineConfig())
	require.ErrorIs(t, err, ErrInvalidState)

	writeAllRetryingEAGAIN(t, master, []byte("still alive"))
	buf := make([]byte, 16)
	var n int
	waitFor(t, time.Second, func() bool {
		n = h.Read(buf)
		return n > 0
	})
	require.Equal(t, "still alive", string(buf[:n]))
}

// TestHandleCloseCallback checks the close callback has fired exactly once
// by the time Destroy returns.
func TestHandleCloseCallback(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	calls := 0
	h, err := Create(64, 64, func(*Handle) { calls++ }, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, h.Open(slavePath, defaultLineConfig()))
	h.Destroy()

	require.Equal(t, 1, calls)
}
