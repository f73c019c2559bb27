package serial

import (
	"golang.org/x/sys/unix"
)

// LineConfig is the input to the line-discipline configurator: the
// baudrate/bytesize/parity/stopbits/flow-control tuple applied to a device.
type LineConfig struct {
	Baudrate int
	Bytesize uint8 // one of 5, 6, 7, 8
	Parity   byte  // one of 'N', 'E', 'O', 'M', 'S'
	Stopbits uint8 // 1 or 2

	XonXoff bool
	RtsCts  bool
	DsrDtr  bool // reserved, no-op
}

// baudRates is the exact supported set — anything else is ErrBaudrate.
var baudRates = map[int]uint32{
	0:       unix.B0,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
}

// ConfigureLine applies cfg to the open, non-blocking device descriptor fd:
// fetches the current termios, clears canonical/echo/signal processing,
// sets VMIN=0/VTIME=0, and applies baud/bytesize/parity/stopbits/flow. It
// is used internally by Handle.Open but is also exported directly — e.g.
// OpenPTY uses it to configure a loopback slave without going through a
// Handle at all.
func ConfigureLine(fd int, cfg LineConfig) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return withCause(ErrTermios, err)
	}

	t.Iflag &^= unix.IGNBRK | unix.INLCR | unix.IGNCR | unix.ICRNL
	t.Oflag &^= unix.OPOST | unix.ONLCR | unix.OCRNL
	t.Cflag |= unix.CREAD | unix.CLOCAL
	t.Lflag &^= unix.ISIG | unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.IEXTEN

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	if err := setBaudrate(t, cfg.Baudrate); err != nil {
		return err
	}
	if err := setBytesize(t, cfg.Bytesize); err != nil {
		return err
	}
	if err := setParity(t, cfg.Parity); err != nil {
		return err
	}
	if err := setStopbits(t, cfg.Stopbits); err != nil {
		return err
	}
	setXonXoff(t, cfg.XonXoff)
	setRtsCts(t, cfg.RtsCts)
	// dsrdtr is reserved: no-op.

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return withCause(ErrTermios, err)
	}
	return nil
}

func setBaudrate(t *unix.Termios, baudrate int) error {
	speed, ok := baudRates[baudrate]
	if !ok {
		return ErrBaudrate
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed
	return nil
}

func setBytesize(t *unix.Termios, bytesize uint8) error {
	t.Cflag &^= unix.CSIZE
	switch bytesize {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		return ErrBytesize
	}
	return nil
}

// setParity implements the N/E/O/M/S parity mapping. M/S fall back to O/E
// respectively when the platform lacks CMSPAR instead of failing.
func setParity(t *unix.Termios, parity byte) error {
	t.Iflag &^= unix.INPCK | unix.ISTRIP
	switch parity {
	case 'N':
		t.Cflag &^= unix.PARENB | unix.PARODD
	case 'E':
		t.Cflag &^= unix.PARODD
		t.Cflag |= unix.PARENB
	case 'O':
		t.Cflag |= unix.PARENB | unix.PARODD
	case 'M':
		if cmsparSupported {
			t.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
		} else {
			t.Cflag |= unix.PARENB | unix.PARODD
		}
	case 'S':
		t.Cflag &^= unix.PARODD
		if cmsparSupported {
			t.Cflag |= unix.PARENB | unix.CMSPAR
		} else {
			t.Cflag |= unix.PARENB
		}
	default:
		return ErrParity
	}
	return nil
}

// cmsparSupported gates the mark/space parity bit. It's a var, not a
// const, so platform-specific builds without CMSPAR can flip it off.
var cmsparSupported = true

func setStopbits(t *unix.Termios, stopbits uint8) error {
	switch stopbits {
	case 1:
		t.Cflag &^= unix.CSTOPB
	case 2:
		t.Cflag |= unix.CSTOPB
	default:
		return ErrStopbits
	}
	return nil
}

func setXonXoff(t *unix.Termios, on bool) {
	if on {
		t.Iflag |= unix.IXON | unix.IXOFF | unix.IXANY
	} else {
		t.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	}
}

func setRtsCts(t *unix.Termios, on bool) {
	if on {
		t.Cflag |= unix.CRTSCTS
	} else {
		t.Cflag &^= unix.CRTSCTS
	}
}
