// Package avrsim simulates the ATtiny817 registers involved in 32.768 kHz
// crystal bring-up: configuration change protection, CLKCTRL, EVSYS, PORTMUX
// and the RTC. It records every bus access so register sequences can be
// checked for ordering, and renders the routed output pin as a waveform.
package avrsim

import (
	"strconv"
	"sync"

	"github.com/soypat/xosc32k/tiny817"
)

// Op is the kind of a recorded bus access.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (op Op) String() string {
	if op == OpRead {
		return "read"
	}
	return "write"
}

// Access is a recorded bus access. Consecutive identical reads are
// collapsed into one Access with Count > 1.
type Access struct {
	Op    Op
	Addr  uint16
	Value uint8
	// Ignored is set on writes the hardware discards: protected registers
	// written without unlocking, read-only registers and RTC registers
	// written while synchronizing.
	Ignored bool
	Count   int
}

func (a Access) String() string {
	s := a.Op.String() + " " + RegisterName(a.Addr) + "=0x" + strconv.FormatUint(uint64(a.Value), 16)
	if a.Ignored {
		s += " (ignored)"
	}
	if a.Count > 1 {
		s += " x" + strconv.Itoa(a.Count)
	}
	return s
}

type Config struct {
	// StartupPolls is the number of CLKCTRL.MCLKSTATUS reads after the
	// crystal is enabled before XOSC32KS asserts. Stands in for the CSUT count.
	StartupPolls int
	// RTCBusyPolls is the number of reads RTC.STATUS and RTC.PITSTATUS
	// report busy after reset and after a synchronized write.
	RTCBusyPolls int
	// NoCrystal leaves the XOSC32K pins unconnected; XOSC32KS never asserts
	// until AttachCrystal is called.
	NoCrystal bool
	// CrystalFreq is the crystal frequency in Hz. Zero means 32768.
	CrystalFreq float64
}

func DefaultConfig() Config {
	return Config{
		StartupPolls: 64,
		RTCBusyPolls: 4,
		CrystalFreq:  tiny817.FreqXOSC32K,
	}
}

// ccpWindow is the number of bus accesses a CCP unlock stays open for.
const ccpWindow = 4

// Device is a simulated ATtiny817 data space. It implements xosc32k.Bus.
// Device is safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	cfg       Config
	mem       [1 << 16]uint8
	crystal   bool
	ccp       int
	xoscPolls int
	statPolls int
	rtcBusy   int
	pitBusy   int
	// activeSel is the main clock source currently driving the CPU.
	activeSel uint8
	trace     []Access
}

func New(cfg Config) *Device {
	if cfg.CrystalFreq == 0 {
		cfg.CrystalFreq = tiny817.FreqXOSC32K
	}
	d := &Device{cfg: cfg}
	d.reset()
	return d
}

func (d *Device) reset() {
	d.mem = [1 << 16]uint8{}
	d.trace = d.trace[:0]
	d.crystal = !d.cfg.NoCrystal
	d.ccp = 0
	d.xoscPolls = 0
	d.statPolls = 0
	d.activeSel = tiny817.CLKCTRL_CLKSEL_OSC20M
	d.mem[tiny817.CLKCTRL_MCLKCTRLB] = tiny817.CLKCTRL_MCLKCTRLB_RESET
	d.mem[tiny817.CLKCTRL_MCLKSTATUS] = tiny817.CLKCTRL_OSC20MS_bm
	d.rtcBusy = d.cfg.RTCBusyPolls
	d.pitBusy = d.cfg.RTCBusyPolls
	if d.rtcBusy > 0 {
		d.mem[tiny817.RTC_STATUS] = tiny817.RTC_CTRLABUSY_bm
		d.mem[tiny817.RTC_PITSTATUS] = tiny817.RTC_CTRLBUSY_bm
	}
}

// Reset returns all registers to their reset values and clears the trace.
func (d *Device) Reset() {
	d.mu.Lock()
	d.reset()
	d.mu.Unlock()
}

// AttachCrystal connects a crystal to the XOSC32K pins. A routine spinning on
// the crystal status makes progress afterwards.
func (d *Device) AttachCrystal() {
	d.mu.Lock()
	d.crystal = true
	d.mu.Unlock()
}

// Polls returns the number of CLKCTRL.MCLKSTATUS reads since reset.
func (d *Device) Polls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statPolls
}

// Peek returns a register value without side effects and without tracing.
func (d *Device) Peek(addr uint16) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem[addr]
}

// Trace returns a copy of all recorded accesses in order.
func (d *Device) Trace() []Access {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Access(nil), d.trace...)
}

func (d *Device) Read8(addr uint16) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickCCP()
	v := d.read(addr)
	d.record(Access{Op: OpRead, Addr: addr, Value: v})
	return v
}

func (d *Device) Write8(addr uint16, v uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.write(addr, v)
}

// ProtectedWrite8 unlocks change protection and writes v to addr with no
// other bus access in between.
func (d *Device) ProtectedWrite8(addr uint16, v uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.write(tiny817.CPU_CCP, tiny817.CCP_IOREG)
	d.write(addr, v)
}

func (d *Device) tickCCP() {
	if d.ccp > 0 {
		d.ccp--
	}
}

func (d *Device) record(a Access) {
	a.Count = 1
	if n := len(d.trace); n > 0 && a.Op == OpRead {
		last := &d.trace[n-1]
		if last.Op == OpRead && last.Addr == a.Addr && last.Value == a.Value {
			last.Count++
			return
		}
	}
	d.trace = append(d.trace, a)
}

func (d *Device) read(addr uint16) uint8 {
	switch addr {
	case tiny817.CLKCTRL_MCLKSTATUS:
		d.statPolls++
		d.stepCrystal()
	case tiny817.RTC_STATUS:
		v := d.mem[addr]
		if d.rtcBusy > 0 {
			d.rtcBusy--
			if d.rtcBusy == 0 {
				d.mem[addr] = 0
			}
		}
		return v
	case tiny817.RTC_PITSTATUS:
		v := d.mem[addr]
		if d.pitBusy > 0 {
			d.pitBusy--
			if d.pitBusy == 0 {
				d.mem[addr] = 0
			}
		}
		return v
	}
	return d.mem[addr]
}

// stepCrystal advances the crystal start-up count by one status poll and
// completes a pending main clock switch once the crystal is stable.
func (d *Device) stepCrystal() {
	enabled := d.mem[tiny817.CLKCTRL_XOSC32KCTRLA]&tiny817.CLKCTRL_ENABLE_bm != 0
	if !enabled || !d.crystal {
		return
	}
	if d.xoscPolls < d.cfg.StartupPolls {
		d.xoscPolls++
		return
	}
	d.mem[tiny817.CLKCTRL_MCLKSTATUS] |= tiny817.CLKCTRL_XOSC32KS_bm
	sel := d.mem[tiny817.CLKCTRL_MCLKCTRLA] & tiny817.CLKCTRL_CLKSEL_gm
	if sel == tiny817.CLKCTRL_CLKSEL_XOSC32K && d.mem[tiny817.CLKCTRL_MCLKSTATUS]&tiny817.CLKCTRL_SOSC_bm != 0 {
		d.mem[tiny817.CLKCTRL_MCLKSTATUS] &^= tiny817.CLKCTRL_SOSC_bm
		d.activeSel = sel
	}
}

func (d *Device) write(addr uint16, v uint8) {
	a := Access{Op: OpWrite, Addr: addr, Value: v}
	switch {
	case addr == tiny817.CPU_CCP:
		if v == tiny817.CCP_IOREG {
			d.ccp = ccpWindow
		}
		d.mem[addr] = v
		d.record(a)
		return
	case tiny817.IsProtected(addr) && d.ccp == 0:
		a.Ignored = true
	case addr == tiny817.CLKCTRL_MCLKSTATUS || addr == tiny817.RTC_STATUS || addr == tiny817.RTC_PITSTATUS:
		a.Ignored = true
	case isRTCSynced(addr) && d.mem[tiny817.RTC_STATUS] != 0:
		a.Ignored = true
	}
	if tiny817.IsProtected(addr) {
		d.ccp = 0 // A protected write consumes the unlock.
	} else {
		d.tickCCP()
	}
	if !a.Ignored {
		d.apply(addr, v)
	}
	d.record(a)
}

func isRTCSynced(addr uint16) bool {
	return addr == tiny817.RTC_CTRLA || addr == tiny817.RTC_CLKSEL
}

func (d *Device) apply(addr uint16, v uint8) {
	prev := d.mem[addr]
	d.mem[addr] = v
	switch addr {
	case tiny817.CLKCTRL_XOSC32KCTRLA:
		if v&tiny817.CLKCTRL_ENABLE_bm == 0 {
			d.mem[tiny817.CLKCTRL_MCLKSTATUS] &^= tiny817.CLKCTRL_XOSC32KS_bm
			d.xoscPolls = 0
		} else if prev&tiny817.CLKCTRL_ENABLE_bm == 0 {
			d.xoscPolls = 0
		}
	case tiny817.CLKCTRL_MCLKCTRLA:
		sel := v & tiny817.CLKCTRL_CLKSEL_gm
		if sel == d.activeSel {
			break
		}
		if d.sourceStable(sel) {
			d.activeSel = sel
		} else {
			d.mem[tiny817.CLKCTRL_MCLKSTATUS] |= tiny817.CLKCTRL_SOSC_bm
		}
	case tiny817.RTC_CTRLA:
		d.rtcBusy = max(d.cfg.RTCBusyPolls, 1)
		d.mem[tiny817.RTC_STATUS] |= tiny817.RTC_CTRLABUSY_bm
	case tiny817.RTC_PITCTRLA:
		d.pitBusy = max(d.cfg.RTCBusyPolls, 1)
		d.mem[tiny817.RTC_PITSTATUS] |= tiny817.RTC_CTRLBUSY_bm
	}
}

func (d *Device) sourceStable(sel uint8) bool {
	status := d.mem[tiny817.CLKCTRL_MCLKSTATUS]
	switch sel {
	case tiny817.CLKCTRL_CLKSEL_OSC20M:
		return status&tiny817.CLKCTRL_OSC20MS_bm != 0
	case tiny817.CLKCTRL_CLKSEL_XOSC32K:
		return status&tiny817.CLKCTRL_XOSC32KS_bm != 0
	}
	return false
}

// RegisterName returns the datasheet name of addr, or its hex address.
func RegisterName(addr uint16) string {
	if name, ok := regnames[addr]; ok {
		return name
	}
	return "0x" + strconv.FormatUint(uint64(addr), 16)
}

var regnames = map[uint16]string{
	tiny817.CPU_CCP:              "CPU.CCP",
	tiny817.CLKCTRL_MCLKCTRLA:    "CLKCTRL.MCLKCTRLA",
	tiny817.CLKCTRL_MCLKCTRLB:    "CLKCTRL.MCLKCTRLB",
	tiny817.CLKCTRL_MCLKLOCK:     "CLKCTRL.MCLKLOCK",
	tiny817.CLKCTRL_MCLKSTATUS:   "CLKCTRL.MCLKSTATUS",
	tiny817.CLKCTRL_OSC20MCTRLA:  "CLKCTRL.OSC20MCTRLA",
	tiny817.CLKCTRL_OSC32KCTRLA:  "CLKCTRL.OSC32KCTRLA",
	tiny817.CLKCTRL_XOSC32KCTRLA: "CLKCTRL.XOSC32KCTRLA",
	tiny817.EVSYS_ASYNCCH3:       "EVSYS.ASYNCCH3",
	tiny817.EVSYS_ASYNCUSER8:     "EVSYS.ASYNCUSER8",
	tiny817.PORTMUX_CTRLA:        "PORTMUX.CTRLA",
	tiny817.RTC_CTRLA:            "RTC.CTRLA",
	tiny817.RTC_STATUS:           "RTC.STATUS",
	tiny817.RTC_CLKSEL:           "RTC.CLKSEL",
	tiny817.RTC_PITCTRLA:         "RTC.PITCTRLA",
	tiny817.RTC_PITSTATUS:        "RTC.PITSTATUS",
}
