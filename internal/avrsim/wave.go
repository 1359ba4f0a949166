package avrsim

import (
	"errors"
	"io"
	"time"

	"github.com/soypat/saleae"
	"github.com/soypat/xosc32k/tiny817"
)

// MainClock returns the frequency in Hz the CPU and peripherals run at.
func (d *Device) MainClock() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mainClock()
}

func (d *Device) mainClock() float64 {
	var src float64
	switch d.activeSel {
	case tiny817.CLKCTRL_CLKSEL_OSC20M:
		src = tiny817.FreqOSC20M
	case tiny817.CLKCTRL_CLKSEL_OSCULP32K:
		src = tiny817.FreqOSCULP32
	case tiny817.CLKCTRL_CLKSEL_XOSC32K:
		src = d.cfg.CrystalFreq
	}
	return src / float64(tiny817.PrescalerDiv(d.mem[tiny817.CLKCTRL_MCLKCTRLB]))
}

// OutputFrequency returns the pin the crystal is routed to and the frequency
// observed on it. An empty pin means the crystal is not observable.
func (d *Device) OutputFrequency() (pin string, hz float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mem[tiny817.CLKCTRL_MCLKCTRLA]&tiny817.CLKCTRL_CLKOUT_bm != 0 {
		return tiny817.PinCLKOUT, d.mainClock()
	}
	// The RTC requests the crystal on its own, start-up completes without status polls.
	running := d.crystal && d.mem[tiny817.CLKCTRL_XOSC32KCTRLA]&tiny817.CLKCTRL_ENABLE_bm != 0
	routed := d.mem[tiny817.PORTMUX_CTRLA]&tiny817.PORTMUX_EVOUT0_bm != 0 &&
		d.mem[tiny817.EVSYS_ASYNCUSER8] == tiny817.EVSYS_ASYNCUSER_ASYNCCH3
	pit := d.mem[tiny817.RTC_PITCTRLA]&tiny817.RTC_PITEN_bm != 0 &&
		d.mem[tiny817.RTC_CLKSEL]&tiny817.RTC_CLKSEL_gm == tiny817.RTC_CLKSEL_TOSC32K
	div := tiny817.PITDivider(d.mem[tiny817.EVSYS_ASYNCCH3])
	if !running || !routed || !pit || div == 0 {
		return "", 0
	}
	return tiny817.PinEVOUT0, d.cfg.CrystalFreq / float64(div)
}

// Waveform renders the output pin as a 50% duty square wave starting low at
// t=0 and returns its transition times in seconds.
func (d *Device) Waveform(duration time.Duration) (initial bool, transitions []float64) {
	_, hz := d.OutputFrequency()
	if hz <= 0 {
		return false, nil
	}
	half := 1 / (2 * hz)
	end := duration.Seconds()
	transitions = make([]float64, 0, int(end/half)+1)
	for k := 1; float64(k)*half < end; k++ {
		transitions = append(transitions, float64(k)*half)
	}
	return false, transitions
}

var (
	errNoOutput     = errors.New("avrsim: crystal not routed to any pin")
	errShortCapture = errors.New("avrsim: capture too short for two rising edges")
)

// WriteCapture writes duration worth of the output pin in the Saleae
// binary digital export format (version 0). The capture must span at least
// two rising edges so a period can be measured from it.
func (d *Device) WriteCapture(w io.Writer, duration time.Duration) error {
	initial, transitions := d.Waveform(duration)
	if transitions == nil {
		return errNoOutput
	}
	minTransitions := 3 // low start: rise, fall, rise.
	if initial {
		minTransitions = 4
	}
	if len(transitions) < minTransitions {
		return errShortCapture
	}
	var state uint32
	if initial {
		state = 1
	}
	df := saleae.DigitalFile{
		Header: saleae.DigitalHeader{
			Info:           saleae.FileHeader{Type: saleae.FileTypeDigital},
			InitialState:   state,
			Begin:          0,
			End:            duration.Seconds(),
			NumTransitions: uint64(len(transitions)),
		},
		Data: transitions,
	}
	_, err := df.WriteTo(w)
	return err
}
