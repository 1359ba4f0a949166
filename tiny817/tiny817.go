// Package tiny817 holds the data-space addresses and bitfield values of the
// ATtiny817 peripherals used to bring up the 32.768 kHz crystal.
// Names follow the vendor device header (iotn817.h) so they can be
// cross-referenced against the datasheet.
package tiny817

// Module base addresses.
const (
	CPU_BASE     = 0x0030
	RTC_BASE     = 0x0140
	EVSYS_BASE   = 0x0180
	CLKCTRL_BASE = 0x0060
	PORTMUX_BASE = 0x0200
	PORTA_BASE   = 0x0400
	PORTB_BASE   = 0x0420
)

// CPU configuration change protection.
const (
	CPU_CCP = CPU_BASE + 0x04
	// Signature that unlocks protected I/O registers for 4 instructions.
	CCP_IOREG = 0xD8
	// Signature that unlocks self-programming.
	CCP_SPM = 0x9D
)

// CLKCTRL registers. All but MCLKSTATUS are change protected.
const (
	CLKCTRL_MCLKCTRLA    = CLKCTRL_BASE + 0x00
	CLKCTRL_MCLKCTRLB    = CLKCTRL_BASE + 0x01
	CLKCTRL_MCLKLOCK     = CLKCTRL_BASE + 0x02
	CLKCTRL_MCLKSTATUS   = CLKCTRL_BASE + 0x03
	CLKCTRL_OSC20MCTRLA  = CLKCTRL_BASE + 0x10
	CLKCTRL_OSC20MCALIBA = CLKCTRL_BASE + 0x11
	CLKCTRL_OSC20MCALIBB = CLKCTRL_BASE + 0x12
	CLKCTRL_OSC32KCTRLA  = CLKCTRL_BASE + 0x18
	CLKCTRL_XOSC32KCTRLA = CLKCTRL_BASE + 0x1C
)

// CLKCTRL.MCLKCTRLA bitfields.
const (
	CLKCTRL_CLKSEL_gm        = 0x03
	CLKCTRL_CLKSEL_OSC20M    = 0x00
	CLKCTRL_CLKSEL_OSCULP32K = 0x01
	CLKCTRL_CLKSEL_XOSC32K   = 0x02
	CLKCTRL_CLKSEL_EXTCLK    = 0x03
	CLKCTRL_CLKOUT_bm        = 0x80
)

// CLKCTRL.MCLKCTRLB bitfields.
const (
	CLKCTRL_PEN_bm  = 0x01
	CLKCTRL_PDIV_gm = 0x1E
	CLKCTRL_PDIV_gp = 1
	// Reset value: prescaler enabled, divide by 6.
	CLKCTRL_MCLKCTRLB_RESET = CLKCTRL_PEN_bm | 0x08<<CLKCTRL_PDIV_gp
)

// CLKCTRL.MCLKSTATUS bits.
const (
	CLKCTRL_SOSC_bm     = 0x01
	CLKCTRL_OSC20MS_bm  = 0x10
	CLKCTRL_OSC32KS_bm  = 0x20
	CLKCTRL_XOSC32KS_bm = 0x40
	CLKCTRL_EXTS_bm     = 0x80
)

// CLKCTRL.XOSC32KCTRLA bitfields.
const (
	CLKCTRL_ENABLE_bm   = 0x01
	CLKCTRL_RUNSTDBY_bm = 0x02
	CLKCTRL_SEL_bm      = 0x04
	CLKCTRL_CSUT_gm     = 0x30
	CLKCTRL_CSUT_1K     = 0x00
	CLKCTRL_CSUT_16K    = 0x10
	CLKCTRL_CSUT_32K    = 0x20
	CLKCTRL_CSUT_64K    = 0x30
)

// EVSYS registers.
const (
	EVSYS_ASYNCSTROBE = EVSYS_BASE + 0x00
	EVSYS_SYNCSTROBE  = EVSYS_BASE + 0x01
	EVSYS_ASYNCCH0    = EVSYS_BASE + 0x02
	EVSYS_ASYNCCH1    = EVSYS_BASE + 0x03
	EVSYS_ASYNCCH2    = EVSYS_BASE + 0x04
	EVSYS_ASYNCCH3    = EVSYS_BASE + 0x05
	EVSYS_SYNCCH0     = EVSYS_BASE + 0x0A
	EVSYS_SYNCCH1     = EVSYS_BASE + 0x0B
	EVSYS_ASYNCUSER0  = EVSYS_BASE + 0x12
	// Async user 8 drives EVOUT0.
	EVSYS_ASYNCUSER8  = EVSYS_ASYNCUSER0 + 8
	EVSYS_ASYNCUSER9  = EVSYS_ASYNCUSER0 + 9
	EVSYS_ASYNCUSER10 = EVSYS_ASYNCUSER0 + 10
	EVSYS_SYNCUSER0   = EVSYS_BASE + 0x22
	EVSYS_SYNCUSER1   = EVSYS_BASE + 0x23
)

// EVSYS.ASYNCCH3 generators produced by the RTC periodic interrupt timer.
const (
	EVSYS_ASYNCCH3_OFF         = 0x00
	EVSYS_ASYNCCH3_PIT_DIV8192 = 0x0A
	EVSYS_ASYNCCH3_PIT_DIV4096 = 0x0B
	EVSYS_ASYNCCH3_PIT_DIV2048 = 0x0C
	EVSYS_ASYNCCH3_PIT_DIV1024 = 0x0D
	EVSYS_ASYNCCH3_PIT_DIV512  = 0x0E
	EVSYS_ASYNCCH3_PIT_DIV256  = 0x0F
	EVSYS_ASYNCCH3_PIT_DIV128  = 0x10
	EVSYS_ASYNCCH3_PIT_DIV64   = 0x11
)

// EVSYS.ASYNCUSERn channel selection.
const (
	EVSYS_ASYNCUSER_OFF      = 0x00
	EVSYS_ASYNCUSER_SYNCCH0  = 0x01
	EVSYS_ASYNCUSER_SYNCCH1  = 0x02
	EVSYS_ASYNCUSER_ASYNCCH0 = 0x03
	EVSYS_ASYNCUSER_ASYNCCH1 = 0x04
	EVSYS_ASYNCUSER_ASYNCCH2 = 0x05
	EVSYS_ASYNCUSER_ASYNCCH3 = 0x06
)

// PORTMUX.CTRLA bits.
const (
	PORTMUX_CTRLA     = PORTMUX_BASE + 0x00
	PORTMUX_EVOUT0_bm = 0x01
	PORTMUX_EVOUT1_bm = 0x02
	PORTMUX_EVOUT2_bm = 0x04
	PORTMUX_LUT0_bm   = 0x10
	PORTMUX_LUT1_bm   = 0x20
)

// RTC registers.
const (
	RTC_CTRLA       = RTC_BASE + 0x00
	RTC_STATUS      = RTC_BASE + 0x01
	RTC_INTCTRL     = RTC_BASE + 0x02
	RTC_INTFLAGS    = RTC_BASE + 0x03
	RTC_TEMP        = RTC_BASE + 0x04
	RTC_DBGCTRL     = RTC_BASE + 0x05
	RTC_CLKSEL      = RTC_BASE + 0x07
	RTC_PITCTRLA    = RTC_BASE + 0x10
	RTC_PITSTATUS   = RTC_BASE + 0x11
	RTC_PITINTCTRL  = RTC_BASE + 0x12
	RTC_PITINTFLAGS = RTC_BASE + 0x13
)

// RTC.STATUS busy bits.
const (
	RTC_CTRLABUSY_bm = 0x01
	RTC_CNTBUSY_bm   = 0x02
	RTC_PERBUSY_bm   = 0x04
	RTC_CMPBUSY_bm   = 0x08
	// RTC.PITSTATUS
	RTC_CTRLBUSY_bm = 0x01
)

// RTC.CLKSEL clock sources.
const (
	RTC_CLKSEL_gm      = 0x03
	RTC_CLKSEL_INT32K  = 0x00
	RTC_CLKSEL_INT1K   = 0x01
	RTC_CLKSEL_TOSC32K = 0x02
	RTC_CLKSEL_EXTCLK  = 0x03
)

// RTC.PITCTRLA bitfields.
const (
	RTC_PITEN_bm  = 0x01
	RTC_PERIOD_gm = 0x78
	RTC_PERIOD_gp = 3
)

// Pins the crystal can be observed on.
const (
	// PA2 carries EVOUT0 when PORTMUX.CTRLA.EVOUT0 is set.
	PinEVOUT0 = "PA2"
	// PB5 carries the main clock when MCLKCTRLA.CLKOUT is set.
	PinCLKOUT = "PB5"
)

// Nominal oscillator frequencies in Hz.
const (
	FreqXOSC32K  = 32768
	FreqOSC20M   = 20_000_000
	FreqOSCULP32 = 32768
)

// IsProtected reports whether addr is a change protected I/O register that
// ignores writes not preceded by the CCP IOREG signature.
func IsProtected(addr uint16) bool {
	switch addr {
	case CLKCTRL_MCLKCTRLA, CLKCTRL_MCLKCTRLB, CLKCTRL_MCLKLOCK,
		CLKCTRL_OSC20MCTRLA, CLKCTRL_OSC20MCALIBA, CLKCTRL_OSC20MCALIBB,
		CLKCTRL_OSC32KCTRLA, CLKCTRL_XOSC32KCTRLA:
		return true
	}
	return false
}

// PrescalerDiv returns the main clock division factor configured by an
// MCLKCTRLB value. A cleared PEN bit means no division.
func PrescalerDiv(mclkctrlb uint8) uint32 {
	if mclkctrlb&CLKCTRL_PEN_bm == 0 {
		return 1
	}
	switch (mclkctrlb & CLKCTRL_PDIV_gm) >> CLKCTRL_PDIV_gp {
	case 0x0:
		return 2
	case 0x1:
		return 4
	case 0x2:
		return 8
	case 0x3:
		return 16
	case 0x4:
		return 32
	case 0x5:
		return 64
	case 0x8:
		return 6
	case 0x9:
		return 10
	case 0xA:
		return 12
	case 0xB:
		return 24
	case 0xC:
		return 48
	}
	return 1 // Reserved encodings.
}

// PITDivider returns the crystal division factor of an ASYNCCH3 PIT event
// generator, or 0 if gen is not a PIT generator.
func PITDivider(gen uint8) uint32 {
	if gen < EVSYS_ASYNCCH3_PIT_DIV8192 || gen > EVSYS_ASYNCCH3_PIT_DIV64 {
		return 0
	}
	return 8192 >> (gen - EVSYS_ASYNCCH3_PIT_DIV8192)
}
