package serial

import (
	"fmt"
	"strings"
)

// Termios mirrors struct termios from <asm-generic/termbits.h>, used by the
// Raw Port for direct get/set against an open device. The async Handle's
// line-discipline configuration goes through golang.org/x/sys/unix's
// Termios directly instead; this type is kept for callers that want the
// original low-level surface.
type Termios struct {
	Iflag IFlag      /* input mode flags */
	Oflag OFlag      /* output mode flags */
	Cflag CFlag      /* control mode flags */
	Lflag LFlag      /* local mode flags */
	Line  Discipline /* line discipline */
	Cc    [19]byte   /* control characters */
}

// Termios2 mirrors struct termios2, which carries the arbitrary input/output
// speed fields used by the BOTHER custom-speed path.
type Termios2 struct {
	Iflag  IFlag      /* input mode flags */
	Oflag  OFlag      /* output mode flags */
	Cflag  CFlag      /* control mode flags */
	Lflag  LFlag      /* local mode flags */
	Line   Discipline /* line discipline */
	Cc     [19]byte   /* control characters */
	ISpeed uint32     /* input speed */
	OSpeed uint32     /* output speed */
}

type SerialFlags int32

const (
	asyncb_hup_notify = iota
	asyncb_fourport
	asyncb_sak
	asyncb_split_termios
	asyncb_spd_hi
	asyncb_spd_vhi
	asyncb_skip_test
	asyncb_auto_irq
	asyncb_session_lockout
	asyncb_pgrp_lockout
	asyncb_callout_nohup
	asyncb_hardpps_cd
	asyncb_spd_shi
	asyncb_low_latency
	asyncb_buggy_uart
	asyncb_autoprobe
	asyncb_magic_multiplier

	asyncb_suspended = 30
)

const (
	AsyncHupNotify       = SerialFlags(1 << asyncb_hup_notify)
	AsyncSuspended       = SerialFlags(1 << asyncb_suspended)
	AsyncFourPort        = SerialFlags(1 << asyncb_fourport)
	AsyncSak             = SerialFlags(1 << asyncb_sak)
	AsyncSplitTermios    = SerialFlags(1 << asyncb_split_termios)
	AsyncSPDHI           = SerialFlags(1 << asyncb_spd_hi)
	AsyncSPDVHI          = SerialFlags(1 << asyncb_spd_vhi)
	AsyncSkipTest        = SerialFlags(1 << asyncb_skip_test)
	AsyncAutoIRQ         = SerialFlags(1 << asyncb_auto_irq)
	AsyncSessionLockout  = SerialFlags(1 << asyncb_session_lockout)
	AsyncPGRPLockout     = SerialFlags(1 << asyncb_pgrp_lockout)
	AsyncCalloutNOHUP    = SerialFlags(1 << asyncb_callout_nohup)
	AsyncHardPPSCD       = SerialFlags(1 << asyncb_hardpps_cd)
	AsyncSPDSHI          = SerialFlags(1 << asyncb_spd_shi)
	AsyncLowLatency      = SerialFlags(1 << asyncb_low_latency)
	AsyncBuggyUART       = SerialFlags(1 << asyncb_buggy_uart)
	AsyncAutoProbe       = SerialFlags(1 << asyncb_autoprobe)
	AsyncMagicMultiplier = SerialFlags(1 << asyncb_magic_multiplier)

	AsyncSPDCust = AsyncSPDHI | AsyncSPDVHI
	AsyncSPDWarp = AsyncSPDHI | AsyncSPDSHI
	AsyncSPDMask = AsyncSPDHI | AsyncSPDVHI | AsyncSPDSHI
)

// Serial mirrors struct serial_struct, returned by TIOCGSERIAL. Retained on
// the Raw Port purely as a diagnostic/inspection call; the async Handle's
// configurator never touches it (RTS/DTR line-state manipulation and
// hardware specifics beyond flow-control bits are reserved, per spec
// Non-goals).
type Serial struct {
	Type          int32
	Line          int32
	Port          uint32
	Irq           int32
	Flags         SerialFlags
	XmitFifoSize  int32
	CustomDivisor int32
	BaudBase      int32
	CloseDelay    uint16
	IOType        byte
	ReservedChar  byte
	Hub6          int32
	ClosingWait   uint16
	ClosingWait2  uint16
	IOMemBase     uintptr
	IOMemRegShift uint16
	PortHigh      uint32
	IOMapBase     uint64
}

type RS485Flag uint32

const (
	RS485Enabled       = RS485Flag(1 << 0)
	RS485RTSOnSend     = RS485Flag(1 << 1)
	RS485RTSAfterSend  = RS485Flag(1 << 2)
	RS485RXDuringTx    = RS485Flag(1 << 4)
	RS485TerminateBus  = RS485Flag(1 << 5)
)

type RS485 struct {
	Flags              RS485Flag
	DelayRTSBeforeSend uint32
	DelayRTSAfterSend  uint32
	padding            [5]uint32
}

// Control characters, c_cc indices.
const (
	VINTR = iota
	VQUIT
	VERASE
	VKILL
	VEOF
	VTIME
	VMIN
	VSWTCH
	VSTART
	VSTOP
	VSUSP
	VEOL
	VREPRINT
	VDISCARD
	VWERASE
	VLNEXT
	VEOL2
)

type IFlag uint32

const (
	IGNBRK = IFlag(0000001)
	BRKINT = IFlag(0000002)
	IGNPAR = IFlag(0000004)
	PARMRK = IFlag(0000010)
	INPCK  = IFlag(0000020)
	ISTRIP = IFlag(0000040)
	INLCR  = IFlag(0000100)
	IGNCR  = IFlag(0000200)
	ICRNL  = IFlag(0000400)
	IUCLC  = IFlag(0001000)
	IXON   = IFlag(0002000)
	IXANY  = IFlag(0004000)
	IXOFF  = IFlag(0010000)
	IMAXBEL = IFlag(0020000)
	IUTF8  = IFlag(0040000)
)

type OFlag uint32

const (
	OPOST  = OFlag(0000001)
	OLCUC  = OFlag(0000002)
	ONLCR  = OFlag(0000004)
	OCRNL  = OFlag(0000010)
	ONOCR  = OFlag(0000020)
	ONLRET = OFlag(0000040)
	OFILL  = OFlag(0000100)
	OFDEL  = OFlag(0000200)

	NLDLY = OFlag(0000400)
	NL0   = OFlag(0000000)
	NL1   = OFlag(0000400)

	CRDLY = OFlag(0003000)
	CR0   = OFlag(0000000)
	CR1   = OFlag(0001000)
	CR2   = OFlag(0002000)
	CR3   = OFlag(0003000)

	TABDLY = OFlag(0014000)
	TAB0   = OFlag(0000000)
	TAB1   = OFlag(0004000)
	TAB2   = OFlag(0010000)
	TAB3   = OFlag(0014000)
	XTABS  = OFlag(0014000)

	BSDLY = OFlag(0020000)
	BS0   = OFlag(0000000)
	BS1   = OFlag(0020000)

	VTDLY = OFlag(0040000)
	VT0   = OFlag(0000000)
	VT1   = OFlag(0040000)

	FFDLY = OFlag(0100000)
	FF0   = OFlag(0000000)
	FF1   = OFlag(0100000)
)

type CFlag uint32

const (
	CBAUD  = CFlag(0010017)
	B0     = CFlag(0000000)
	B50    = CFlag(0000001)
	B75    = CFlag(0000002)
	B110   = CFlag(0000003)
	B134   = CFlag(0000004)
	B150   = CFlag(0000005)
	B200   = CFlag(0000006)
	B300   = CFlag(0000007)
	B600   = CFlag(0000010)
	B1200  = CFlag(0000011)
	B1800  = CFlag(0000012)
	B2400  = CFlag(0000013)
	B4800  = CFlag(0000014)
	B9600  = CFlag(0000015)
	B19200 = CFlag(0000016)
	B38400 = CFlag(0000017)
	EXTA   = B19200
	EXTB   = B38400

	CSIZE = CFlag(0000060)
	CS5   = CFlag(0000000)
	CS6   = CFlag(0000020)
	CS7   = CFlag(0000040)
	CS8   = CFlag(0000060)

	CSTOPB = CFlag(0000100)
	CREAD  = CFlag(0000200)
	PARENB = CFlag(0000400)
	PARODD = CFlag(0001000)
	HUPCL  = CFlag(0002000)
	CLOCAL = CFlag(0004000)

	CBAUDEX = CFlag(0010000)
	BOTHER  = CFlag(0010000)

	B57600   = CFlag(0010001)
	B115200  = CFlag(0010002)
	B230400  = CFlag(0010003)
	B460800  = CFlag(0010004)
	B500000  = CFlag(0010005)
	B576000  = CFlag(0010006)
	B921600  = CFlag(0010007)
	B1000000 = CFlag(0010010)
	B1152000 = CFlag(0010011)
	B1500000 = CFlag(0010012)
	B2000000 = CFlag(0010013)
	B2500000 = CFlag(0010014)
	B3000000 = CFlag(0010015)
	B3500000 = CFlag(0010016)
	B4000000 = CFlag(0010017)

	CIBAUD = CFlag(002003600000)
	CMSPAR = CFlag(010000000000)
	CRTSCTS = CFlag(020000000000)
	IBSHIFT = CFlag(16)
)

type LFlag uint32

const (
	ISIG    = LFlag(0000001)
	ICANON  = LFlag(0000002)
	XCASE   = LFlag(0000004)
	ECHO    = LFlag(0000010)
	ECHOE   = LFlag(0000020)
	ECHOK   = LFlag(0000040)
	ECHONL  = LFlag(0000100)
	NOFLSH  = LFlag(0000200)
	TOSTOP  = LFlag(0000400)
	ECHOCTL = LFlag(0001000)
	ECHOPRT = LFlag(0002000)
	ECHOKE  = LFlag(0004000)
	FLUSHO  = LFlag(0010000)
	PENDIN  = LFlag(0040000)
	IEXTEN  = LFlag(0100000)
	EXTPROC = LFlag(0200000)
)

type Flow uint32

const (
	TCOOFF = Flow(iota)
	TCOON
	TCIOFF
	TCION
)

type Queue uint32

const (
	TCIFLUSH = Queue(iota)
	TCOFLUSH
	TCIOFLUSH
)

type Action int

const (
	TCSANOW = Action(iota)
	TCSADRAIN
	TCSAFLUSH
)

type ModemLine int

const (
	TIOCM_LE  = ModemLine(0x001)
	TIOCM_DTR = ModemLine(0x002)
	TIOCM_RTS = ModemLine(0x004)
	TIOCM_ST  = ModemLine(0x008)
	TIOCM_SR  = ModemLine(0x010)
	TIOCM_CTS = ModemLine(0x020)
	TIOCM_CAR = ModemLine(0x040)
	TIOCM_CD  = TIOCM_CAR
	TIOCM_RNG = ModemLine(0x080)
	TIOCM_RI  = TIOCM_RNG
	TIOCM_DSR = ModemLine(0x100)

	TIOCM_OUT1 = ModemLine(0x2000)
	TIOCM_OUT2 = ModemLine(0x4000)
	TIOCM_LOOP = ModemLine(0x8000)
)

func (m ModemLine) String() string {
	flags := make([]string, 0, len(modemLineStrings))
	for i := 1; i <= int(TIOCM_LOOP); i <<= 1 {
		if int(m)&i > 0 {
			if flag, ok := modemLineStrings[ModemLine(i)]; ok {
				flags = append(flags, flag)
			} else {
				flags = append(flags, fmt.Sprintf("Unknown(%x)", i))
			}
		}
	}
	return fmt.Sprintf("[%s]", strings.Join(flags, "|"))
}

var modemLineStrings = map[ModemLine]string{
	TIOCM_LE:   "LE",
	TIOCM_DTR:  "DTR",
	TIOCM_RTS:  "RTS",
	TIOCM_ST:   "ST",
	TIOCM_SR:   "SR",
	TIOCM_CTS:  "CTS",
	TIOCM_CAR:  "CAR",
	TIOCM_RNG:  "RNG",
	TIOCM_DSR:  "DSR",
	TIOCM_OUT1: "OUT1",
	TIOCM_OUT2: "OUT2",
	TIOCM_LOOP: "LOOP",
}

type Discipline byte

const (
	N_TTY = Discipline(iota)
	N_SLIP
	N_MOUSE
	N_PPP
	N_STRIP
	N_AX25
	N_X25
	N_6PACK
	N_MASC
	N_R3964
	N_PROFIBUS_FDL
	N_IRDA
	N_SMSBLOCK
	N_HDLC
	N_SYNC_PPP
	N_HCI
)

func (attrs *Termios) MakeRaw() {
	attrs.Iflag &= ^(IGNBRK | BRKINT | PARMRK | ISTRIP | INLCR | IGNCR | ICRNL | IXON)
	attrs.Oflag &= ^(OPOST)
	attrs.Lflag &= ^(ECHO | ECHONL | ICANON | ISIG | IEXTEN)
	attrs.Cflag &= ^(CSIZE | PARENB)
	attrs.Cflag |= CS8
}

func (attrs *Termios2) MakeRaw() {
	attrs.Iflag &= ^(IGNBRK | BRKINT | PARMRK | ISTRIP | INLCR | IGNCR | ICRNL | IXON)
	attrs.Oflag &= ^(OPOST)
	attrs.Lflag &= ^(ECHO | ECHONL | ICANON | ISIG | IEXTEN)
	attrs.Cflag &= ^(CSIZE | PARENB)
	attrs.Cflag |= CS8
}

func (attrs *Termios) SetSpeed(speed CFlag) {
	attrs.Cflag &= ^(CBAUD)
	attrs.Cflag |= speed
}

func (attrs *Termios2) SetSpeed(speed CFlag) {
	attrs.Cflag &= ^(CBAUD)
	attrs.Cflag |= speed
}

func (attrs *Termios2) SetCustomIOSpeed(iSpeed, oSpeed uint32) {
	attrs.Cflag &= ^(CBAUD)
	attrs.Cflag |= BOTHER
	attrs.ISpeed = iSpeed
	attrs.OSpeed = oSpeed
}

func (attrs *Termios2) SetCustomSpeed(speed uint32) {
	attrs.Cflag &= ^(CBAUD)
	attrs.Cflag |= BOTHER
	attrs.ISpeed = speed
	attrs.OSpeed = speed
}
