package serial

import "syscall"

// Error wraps a stable short code with the underlying cause, if any.
type Error struct {
	msg string
	err error
}

func (e Error) Error() string {
	if e.msg != "" {
		msg := e.msg
		if e.err != nil {
			msg += ": " + e.err.Error()
		}
		return msg
	}
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e Error) Unwrap() error {
	return e.err
}

// Is makes the sentinel Errors in this package comparable with errors.Is
// regardless of which underlying cause, if any, got attached via withCause.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok {
		return false
	}
	return e.msg == t.msg
}

func wrapErr(msg string, e error) error {
	if e == nil {
		return nil
	}
	return Error{msg: msg, err: e}
}

// Error taxonomy: each is reported synchronously from create/open except
// the runtime I/O failure class, which never surfaces beyond the close
// callback firing.
var (
	// ErrClosed is returned by Port.Read, Port.Write and a repeated
	// Port.Close once the Port has been closed.
	ErrClosed = Error{"port already closed", syscall.EBADF}

	// ErrInvalidState covers double-open and any operation attempted from
	// the wrong Handle lifecycle state.
	ErrInvalidState = Error{msg: "invalid state"}

	// ErrMemory covers allocation failure during Create.
	ErrMemory = Error{msg: "out of memory"}

	// ErrIO covers wakeup-pipe setup failure in Open, and is also the
	// cause the worker records, and logs if a logger is attached, when a
	// fatal device or poll error ends the session.
	ErrIO = Error{msg: "io error"}

	// ErrBaudrate is returned when the requested baud rate is not one of
	// the exact supported set.
	ErrBaudrate = Error{msg: "unsupported baud rate"}

	// ErrBytesize is returned for a bytesize outside {5,6,7,8}.
	ErrBytesize = Error{msg: "unsupported byte size"}

	// ErrParity is returned for a parity outside {N,E,O,M,S}.
	ErrParity = Error{msg: "unsupported parity"}

	// ErrStopbits is returned for a stopbits outside {1,2}.
	ErrStopbits = Error{msg: "unsupported stop bits"}

	// ErrOpen covers failure to open the device node.
	ErrOpen = Error{msg: "open failed"}

	// ErrTermios covers failure to fetch or apply line-discipline attributes.
	ErrTermios = Error{msg: "termios failed"}

	// ErrThread completes the taxonomy for failure to start the worker.
	// Open starts the worker with a plain go statement, which cannot fail,
	// so no function in this package returns it.
	ErrThread = Error{msg: "failed to start worker"}

	// ErrIoctl covers failures of the generic ioctl wrapper used by the Raw
	// Port for custom (non-termios) commands.
	ErrIoctl = Error{msg: "ioctl failed"}
)

// withCause returns a copy of sentinel with err attached as its Unwrap
// target, so errors.Is(result, sentinel) still holds while errors.Is(result,
// underlyingErrno) also holds.
func withCause(sentinel Error, err error) error {
	if err == nil {
		return sentinel
	}
	sentinel.err = err
	return sentinel
}
