package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetBaudrateExactSet(t *testing.T) {
	var t1 unix.Termios
	require.NoError(t, setBaudrate(&t1, 115200))
	require.Equal(t, uint32(unix.B115200), t1.Ispeed)
	require.Equal(t, uint32(unix.B115200), t1.Ospeed)
	require.NotZero(t, t1.Cflag&unix.B115200)
}

func TestSetBaudrateRejectsUnsupportedValue(t *testing.T) {
	var t1 unix.Termios
	require.ErrorIs(t, setBaudrate(&t1, 31337), ErrBaudrate)
}

func TestSetBytesizeAppliesCSBits(t *testing.T) {
	cases := map[uint8]uint32{5: unix.CS5, 6: unix.CS6, 7: unix.CS7, 8: unix.CS8}
	for size, bits := range cases {
		var t1 unix.Termios
		require.NoError(t, setBytesize(&t1, size))
		require.Equal(t, bits, t1.Cflag&unix.CSIZE)
	}
}

func TestSetBytesizeRejectsOutOfRange(t *testing.T) {
	var t1 unix.Termios
	require.ErrorIs(t, setBytesize(&t1, 9), ErrBytesize)
}

func TestSetStopbits(t *testing.T) {
	var one unix.Termios
	require.NoError(t, setStopbits(&one, 1))
	require.Zero(t, one.Cflag&unix.CSTOPB)

	var two unix.Termios
	require.NoError(t, setStopbits(&two, 2))
	require.NotZero(t, two.Cflag&unix.CSTOPB)
}

func TestSetStopbitsRejectsOutOfRange(t *testing.T) {
	var t1 unix.Termios
	require.ErrorIs(t, setStopbits(&t1, 3), ErrStopbits)
}

func TestSetParityNEO(t *testing.T) {
	var n unix.Termios
	n.Cflag = unix.PARENB | unix.PARODD
	require.NoError(t, setParity(&n, 'N'))
	require.Zero(t, n.Cflag&(unix.PARENB|unix.PARODD))

	var e unix.Termios
	require.NoError(t, setParity(&e, 'E'))
	require.NotZero(t, e.Cflag&unix.PARENB)
	require.Zero(t, e.Cflag&unix.PARODD)

	var o unix.Termios
	require.NoError(t, setParity(&o, 'O'))
	require.NotZero(t, o.Cflag&unix.PARENB)
	require.NotZero(t, o.Cflag&unix.PARODD)
}

func TestSetParityRejectsUnknown(t *testing.T) {
	var t1 unix.Termios
	require.ErrorIs(t, setParity(&t1, 'X'), ErrParity)
}

// TestSetParityMarkSpaceWithCMSPAR pins the mark/space parity bit pattern
// on platforms that support CMSPAR: both PARENB and CMSPAR are set, with
// PARODD distinguishing mark ('M') from space ('S').
func TestSetParityMarkSpaceWithCMSPAR(t *testing.T) {
	old := cmsparSupported
	cmsparSupported = true
	defer func() { cmsparSupported = old }()

	var mark unix.Termios
	require.NoError(t, setParity(&mark, 'M'))
	require.Equal(t, uint32(unix.PARENB|unix.PARODD|unix.CMSPAR), mark.Cflag&(unix.PARENB|unix.PARODD|unix.CMSPAR))

	var space unix.Termios
	require.NoError(t, setParity(&space, 'S'))
	require.Equal(t, uint32(unix.PARENB|unix.CMSPAR), space.Cflag&(unix.PARENB|unix.PARODD|unix.CMSPAR))
}

// TestSetParityMarkSpaceFallsBackWithoutCMSPAR pins the documented
// fallback: on platforms without CMSPAR, mark degrades to odd parity and
// space degrades to even parity, rather than failing.
func TestSetParityMarkSpaceFallsBackWithoutCMSPAR(t *testing.T) {
	old := cmsparSupported
	cmsparSupported = false
	defer func() { cmsparSupported = old }()

	var mark unix.Termios
	require.NoError(t, setParity(&mark, 'M'))
	require.Equal(t, uint32(unix.PARENB|unix.PARODD), mark.Cflag&(unix.PARENB|unix.PARODD|unix.CMSPAR))

	var space unix.Termios
	require.NoError(t, setParity(&space, 'S'))
	require.Equal(t, uint32(unix.PARENB), space.Cflag&(unix.PARENB|unix.PARODD|unix.CMSPAR))
}

func TestSetXonXoffAndRtsCts(t *testing.T) {
	var t1 unix.Termios
	setXonXoff(&t1, true)
	require.NotZero(t, t1.Iflag&(unix.IXON|unix.IXOFF|unix.IXANY))
	setXonXoff(&t1, false)
	require.Zero(t, t1.Iflag&(unix.IXON|unix.IXOFF|unix.IXANY))

	var t2 unix.Termios
	setRtsCts(&t2, true)
	require.NotZero(t, t2.Cflag&unix.CRTSCTS)
	setRtsCts(&t2, false)
	require.Zero(t, t2.Cflag&unix.CRTSCTS)
}

// TestConfigureLineOnPTY exercises ConfigureLine end to end against a real
// descriptor, covering the ioctl round trip that the per-field unit tests
// above don't.
func TestConfigureLineOnPTY(t *testing.T) {
	master, slavePath := openPTYPair(t)
	defer master.Close()

	slave, err := Open(slavePath, NewOptions())
	require.NoError(t, err)
	defer slave.Close()

	cfg := LineConfig{Baudrate: 57600, Bytesize: 7, Parity: 'E', Stopbits: 2}
	require.NoError(t, ConfigureLine(slave.Fd(), cfg))

	got, err := slave.GetAttr()
	require.NoError(t, err)
	require.NotZero(t, got.Cflag&CS7)
	require.NotZero(t, got.Cflag&PARENB)
	require.NotZero(t, got.Cflag&CSTOPB)

	cfg.Baudrate = 31337
	require.ErrorIs(t, ConfigureLine(slave.Fd(), cfg), ErrBaudrate)
}
