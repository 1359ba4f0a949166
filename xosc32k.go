// Package xosc32k brings up the 32.768 kHz crystal oscillator of a tinyAVR
// 1-series device (ATtiny817) and routes it to a pin so its frequency can be
// measured: either as the main clock on CLKOUT or divided by 64 through the
// RTC periodic interrupt timer and the event system on EVOUT0.
package xosc32k

import (
	"errors"

	"github.com/soypat/xosc32k/tiny817"
)

var errUnknownMode = errors.New("unknown mode, want sysclk or evout")

// Bus gives byte access to the device data space.
type Bus interface {
	Read8(addr uint16) uint8
	Write8(addr uint16, v uint8)
	// ProtectedWrite8 unlocks configuration change protection and
	// writes v to addr before the protection window closes.
	ProtectedWrite8(addr uint16, v uint8)
}

// Mode names one of the two mutually exclusive clock-out routines.
type Mode uint8

const (
	modeUndefined Mode = iota
	// ModeSystemClock runs the main clock from the crystal and outputs it on CLKOUT.
	ModeSystemClock
	// ModeEventOutput outputs the crystal divided by 64 on EVOUT0.
	ModeEventOutput
)

func (m Mode) String() (s string) {
	switch m {
	case ModeSystemClock:
		s = "sysclk"
	case ModeEventOutput:
		s = "evout"
	default:
		s = "undefined"
	}
	return s
}

// Pin returns the name of the pin the mode outputs on.
func (m Mode) Pin() string {
	switch m {
	case ModeSystemClock:
		return tiny817.PinCLKOUT
	case ModeEventOutput:
		return tiny817.PinEVOUT0
	}
	return ""
}

// ParseMode parses the output of [Mode.String].
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sysclk":
		return ModeSystemClock, nil
	case "evout":
		return ModeEventOutput, nil
	}
	return modeUndefined, errUnknownMode
}

// ExpectedFrequency returns the nominal frequency in Hz observed on the
// mode's output pin with a 32.768 kHz crystal.
func ExpectedFrequency(m Mode) float64 {
	switch m {
	case ModeSystemClock:
		return tiny817.FreqXOSC32K
	case ModeEventOutput:
		return tiny817.FreqXOSC32K / float64(tiny817.PITDivider(pitEvent))
	}
	return 0
}

const (
	// Maximum start-up time, 64K crystal cycles (~2s). The oscillator runs
	// in standby so it starts even when no peripheral requests it.
	xoscCtrl = tiny817.CLKCTRL_ENABLE_bm | tiny817.CLKCTRL_RUNSTDBY_bm | tiny817.CLKCTRL_CSUT_64K
	pitEvent = tiny817.EVSYS_ASYNCCH3_PIT_DIV64
)

// Status is the CLKCTRL.MCLKSTATUS register.
type Status uint8

// SwitchPending is true while the main clock waits on the new source to become stable.
func (s Status) SwitchPending() bool { return s&tiny817.CLKCTRL_SOSC_bm != 0 }

// XOSC32KStable is true once the crystal has finished its start-up count.
func (s Status) XOSC32KStable() bool { return s&tiny817.CLKCTRL_XOSC32KS_bm != 0 }

// DefaultConfig returns a Config with logging disabled.
func DefaultConfig() Config {
	return Config{}
}

// Device runs the crystal bring-up routines against a register Bus.
// A Device is not safe for concurrent use.
type Device struct {
	bus Bus
	log logger
}

// NewDevice returns a Device that accesses the device registers through bus.
func NewDevice(bus Bus, cfg Config) *Device {
	return &Device{
		bus: bus,
		log: newLogger(cfg),
	}
}

// Status reads CLKCTRL.MCLKSTATUS.
func (d *Device) Status() Status {
	return Status(d.bus.Read8(tiny817.CLKCTRL_MCLKSTATUS))
}

// ClockOutSystemClock switches the main clock to the 32.768 kHz crystal,
// outputs it on the CLKOUT pin and disables the main clock prescaler.
// The CPU and all peripherals run at 32.768 kHz afterwards.
//
// ClockOutSystemClock does not return until the crystal reports stable.
// With no crystal fitted it never returns.
func (d *Device) ClockOutSystemClock() {
	d.info("ClockOutSystemClock:start")
	d.protectedWrite(tiny817.CLKCTRL_XOSC32KCTRLA, xoscCtrl)

	// Source select and clock output share the register, one unlock covers both.
	d.protectedWrite(tiny817.CLKCTRL_MCLKCTRLA, tiny817.CLKCTRL_CLKSEL_XOSC32K|tiny817.CLKCTRL_CLKOUT_bm)

	d.debug("ClockOutSystemClock:wait-xosc32k")
	for !d.Status().XOSC32KStable() {
	}

	d.protectedWrite(tiny817.CLKCTRL_MCLKCTRLB, 0)
	d.infoPin("ClockOutSystemClock:done", tiny817.PinCLKOUT)
}

// ClockOutEventRTC starts the 32.768 kHz crystal without touching the main
// clock and outputs the RTC PIT divide-by-64 event (512 Hz) on EVOUT0 through
// event channel ASYNCCH3. The RTC counter itself stays free for other use.
//
// ClockOutEventRTC does not return until the RTC is done synchronizing.
func (d *Device) ClockOutEventRTC() {
	d.info("ClockOutEventRTC:start")
	d.protectedWrite(tiny817.CLKCTRL_XOSC32KCTRLA, xoscCtrl)

	d.write(tiny817.EVSYS_ASYNCCH3, pitEvent)
	d.write(tiny817.EVSYS_ASYNCUSER8, tiny817.EVSYS_ASYNCUSER_ASYNCCH3)
	d.write(tiny817.PORTMUX_CTRLA, tiny817.PORTMUX_EVOUT0_bm)

	// RTC registers may not be written while a previous write is synchronizing.
	d.debug("ClockOutEventRTC:wait-rtc")
	for d.bus.Read8(tiny817.RTC_STATUS) != 0 {
	}

	d.write(tiny817.RTC_CLKSEL, tiny817.RTC_CLKSEL_TOSC32K)
	d.write(tiny817.RTC_PITCTRLA, tiny817.RTC_PITEN_bm)
	d.infoPin("ClockOutEventRTC:done", tiny817.PinEVOUT0)
}

func (d *Device) write(addr uint16, v uint8) {
	d.trace("write", addr, v)
	d.bus.Write8(addr, v)
}

func (d *Device) protectedWrite(addr uint16, v uint8) {
	d.trace("protected-write", addr, v)
	d.bus.ProtectedWrite8(addr, v)
}
