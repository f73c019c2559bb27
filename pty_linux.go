package serial

import (
	"fmt"
	"syscall"
	"unsafe"
)

// OpenPTY opens a fresh pseudoterminal pair: a master Port and its
// corresponding slave Port under /dev/pts. If cfg is non-nil the slave is
// configured via ConfigureLine, giving callers a real POSIX TTY loopback
// pair without a physical cable — handy for local testing and tooling.
//
// Implemented directly against TIOCSPTLCK/TIOCGPTN (declared in
// ioctl_linux.go) rather than any higher-level pty helper, since that's
// the whole of what unlocking and naming a pts slave requires.
func OpenPTY(cfg *LineConfig) (master, slave *Port, err error) {
	master, err = Open("/dev/ptmx", NewOptions())
	if err != nil {
		return nil, nil, err
	}

	if err := unlockPT(master.Fd()); err != nil {
		master.Close()
		return nil, nil, withCause(ErrIoctl, err)
	}

	n, err := ptsNumber(master.Fd())
	if err != nil {
		master.Close()
		return nil, nil, withCause(ErrIoctl, err)
	}

	slavePath := fmt.Sprintf("/dev/pts/%d", n)
	slave, err = Open(slavePath, NewOptions())
	if err != nil {
		master.Close()
		return nil, nil, err
	}

	if cfg != nil {
		if err := ConfigureLine(slave.Fd(), *cfg); err != nil {
			master.Close()
			slave.Close()
			return nil, nil, err
		}
	}

	return master, slave, nil
}

func unlockPT(fd int) error {
	var locked int32
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), tiocsptlck, uintptr(unsafe.Pointer(&locked)))
	if errno != 0 {
		return errno
	}
	return nil
}

func ptsNumber(fd int) (int32, error) {
	var n int32
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), tiocgptn, uintptr(unsafe.Pointer(&n)))
	if errno != 0 {
		return 0, errno
	}
	return n, nil
}
