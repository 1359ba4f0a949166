package tiny817

import "testing"

func TestPrescalerDiv(t *testing.T) {
	var tests = []struct {
		mclkctrlb uint8
		want      uint32
	}{
		{0, 1},
		{CLKCTRL_MCLKCTRLB_RESET, 6},
		{CLKCTRL_PEN_bm, 2},
		{CLKCTRL_PEN_bm | 0x5<<CLKCTRL_PDIV_gp, 64},
		{0x5 << CLKCTRL_PDIV_gp, 1}, // PEN cleared ignores PDIV.
		{CLKCTRL_PEN_bm | 0xC<<CLKCTRL_PDIV_gp, 48},
		{CLKCTRL_PEN_bm | 0x7<<CLKCTRL_PDIV_gp, 1},
	}
	for _, tt := range tests {
		got := PrescalerDiv(tt.mclkctrlb)
		if got != tt.want {
			t.Errorf("PrescalerDiv(%#x)=%d, want %d", tt.mclkctrlb, got, tt.want)
		}
	}
}

func TestPITDivider(t *testing.T) {
	if got := PITDivider(EVSYS_ASYNCCH3_PIT_DIV64); got != 64 {
		t.Errorf("DIV64 got %d", got)
	}
	if got := PITDivider(EVSYS_ASYNCCH3_PIT_DIV8192); got != 8192 {
		t.Errorf("DIV8192 got %d", got)
	}
	if got := PITDivider(EVSYS_ASYNCCH3_PIT_DIV512); got != 512 {
		t.Errorf("DIV512 got %d", got)
	}
	for _, gen := range []uint8{EVSYS_ASYNCCH3_OFF, 0x09, 0x12, 0xff} {
		if got := PITDivider(gen); got != 0 {
			t.Errorf("generator %#x is not a PIT generator, got divider %d", gen, got)
		}
	}
}

func TestIsProtected(t *testing.T) {
	for _, addr := range []uint16{CLKCTRL_MCLKCTRLA, CLKCTRL_MCLKCTRLB, CLKCTRL_XOSC32KCTRLA} {
		if !IsProtected(addr) {
			t.Errorf("%#x should be protected", addr)
		}
	}
	for _, addr := range []uint16{CLKCTRL_MCLKSTATUS, RTC_CLKSEL, EVSYS_ASYNCCH3, PORTMUX_CTRLA, CPU_CCP} {
		if IsProtected(addr) {
			t.Errorf("%#x should not be protected", addr)
		}
	}
	if EVSYS_ASYNCUSER8 != 0x019A {
		t.Errorf("ASYNCUSER8 address %#x", EVSYS_ASYNCUSER8)
	}
}
