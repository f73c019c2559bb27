package serial

import (
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"
)

// Options configures the Raw Port's open flags and optional synchronous
// read timeout. It has nothing to do with the async Handle's line
// configuration (that's LineConfig); Options only governs how the fd
// itself is opened and read.
type Options struct {
	ReadTimeout time.Duration
	OpenMode    int
}

func NewOptions() *Options {
	return &Options{ReadTimeout: -1, OpenMode: syscall.O_RDWR | syscall.O_NOCTTY | syscall.O_NONBLOCK}
}

func (o *Options) SetReadTimeout(timeout time.Duration) *Options {
	o.ReadTimeout = timeout
	return o
}

// Port is a thin, non-blocking wrapper around a POSIX tty file descriptor.
// It owns no ring and runs no background goroutine; it is for callers who
// want synchronous access without the worker. The async Handle does not use
// a Port: Handle.Open opens and configures its own bare descriptor.
type Port struct {
	options *Options
	closed  atomic.Bool
	f       int
}

// Open opens name with opts (or NewOptions() defaults if opts is nil).
func Open(name string, opts *Options) (*Port, error) {
	if opts == nil {
		opts = NewOptions()
	}
	fd, err := syscall.Open(name, opts.OpenMode, 0)
	if err != nil {
		return nil, withCause(ErrOpen, err)
	}
	return &Port{
		options: opts,
		f:       fd,
	}, nil
}

func (p *Port) Write(data []byte) (n int, err error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	return syscall.Write(p.f, data)
}

func (p *Port) readTimeout(data []byte, timeout time.Duration) (int, error) {
	if err := poll.WaitInput(p.f, timeout); err != nil {
		return 0, err
	}
	return syscall.Read(p.f, data)
}

func (p *Port) Read(data []byte) (n int, err error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if p.options.ReadTimeout > -1 {
		return p.readTimeout(data, p.options.ReadTimeout)
	}
	return syscall.Read(p.f, data)
}

func (p *Port) ReadTimeout(data []byte, timeout time.Duration) (n int, err error) {
	return p.readTimeout(data, timeout)
}

func (p *Port) SetReadTimeout(timeout time.Duration) {
	p.options.ReadTimeout = timeout
}

// Fd returns the underlying descriptor, or -1 once closed.
func (p *Port) Fd() int {
	if p.closed.Load() {
		return -1
	}
	return p.f
}

func (p *Port) Close() error {
	if !p.closed.Swap(true) {
		fd := p.f
		p.f = -1
		return syscall.Close(fd)
	}
	return ErrClosed
}

func (p *Port) GetAttr() (*Termios, error) {
	attrs := &Termios{}
	err := ioctl.Ioctl(uintptr(p.f), tcgets, uintptr(unsafe.Pointer(attrs)))
	if err != nil {
		return nil, withCause(ErrTermios, err)
	}
	return attrs, nil
}

func (p *Port) SetAttr(when Action, attrs *Termios) error {
	return withCause(ErrTermios, ioctl.Ioctl(uintptr(p.f), tcsets+uintptr(when), uintptr(unsafe.Pointer(attrs))))
}

func (p *Port) GetAttr2() (*Termios2, error) {
	attrs := &Termios2{}
	err := ioctl.Ioctl(uintptr(p.f), tcgets2, uintptr(unsafe.Pointer(attrs)))
	if err != nil {
		return nil, withCause(ErrTermios, err)
	}
	return attrs, nil
}

func (p *Port) SetAttr2(when Action, attrs *Termios2) error {
	return withCause(ErrTermios, ioctl.Ioctl(uintptr(p.f), tcsets2+uintptr(when), uintptr(unsafe.Pointer(attrs))))
}

// GetSerial returns the kernel's serial_struct for this device (diagnostic
// use only — the async Handle's configurator never calls this).
func (p *Port) GetSerial() (*Serial, error) {
	serial := &Serial{}
	err := ioctl.Ioctl(uintptr(p.f), tiocgserial, uintptr(unsafe.Pointer(serial)))
	if err != nil {
		return nil, withCause(ErrIoctl, err)
	}
	return serial, nil
}

func (p *Port) SetSerial(s *Serial) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tiocsserial, uintptr(unsafe.Pointer(s))))
}

// SendBreak sends a break condition; see tcsendbreak(3).
func (p *Port) SendBreak(arg int) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tcsbrk, uintptr(arg)))
}

// SendBreakPosix is the POSIX-timed variant of SendBreak.
func (p *Port) SendBreakPosix(arg int) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tcsbrkp, uintptr(arg)))
}

func (p *Port) SetBreak() error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tiocsbrk, 1))
}

func (p *Port) ClearBreak() error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tioccbrk, 1))
}

// Drain waits until all output written to the Port has been transmitted.
// The async Handle's worker never calls this implicitly on close; it's
// exposed here for callers who want one explicitly.
func (p *Port) Drain() error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tcsbrk, 1))
}

func (p *Port) Flush(queue Queue) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tcflsh, uintptr(queue)))
}

func (p *Port) Flow(flow Flow) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tcxonc, uintptr(flow)))
}

// GetRS485 returns the current rs485 configuration.
func (p *Port) GetRS485() (*RS485, error) {
	rs485cfg := &RS485{}
	err := ioctl.Ioctl(uintptr(p.f), tiocgrs485, uintptr(unsafe.Pointer(rs485cfg)))
	if err != nil {
		return nil, withCause(ErrIoctl, err)
	}
	return rs485cfg, nil
}

func (p *Port) SetRS485(cfg *RS485) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tiocsrs485, uintptr(unsafe.Pointer(cfg))))
}

// MakeRaw sets the Port to "raw" mode (cfmakeraw semantics).
func (p *Port) MakeRaw() error {
	attrs, err := p.GetAttr()
	if err != nil {
		return err
	}
	attrs.MakeRaw()
	return p.SetAttr(TCSANOW, attrs)
}

// SetModemLines sets the status of modem bits. The async Handle's
// configurator never touches RTS/DTR line state directly; kept here for
// callers working with the Port directly.
func (p *Port) SetModemLines(line ModemLine) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tiocmset, uintptr(unsafe.Pointer(&line))))
}

func (p *Port) GetModemLines() (ModemLine, error) {
	var line ModemLine
	err := ioctl.Ioctl(uintptr(p.f), tiocmget, uintptr(unsafe.Pointer(&line)))
	if err != nil {
		return 0, withCause(ErrIoctl, err)
	}
	return line, nil
}

func (p *Port) EnableModemLines(line ModemLine) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tiocmbis, uintptr(unsafe.Pointer(&line))))
}

func (p *Port) DisableModemLines(line ModemLine) error {
	return withCause(ErrIoctl, ioctl.Ioctl(uintptr(p.f), tiocmbic, uintptr(unsafe.Pointer(&line))))
}
