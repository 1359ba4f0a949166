//go:build avr

package xosc32k

// Config configures a Device. Logging is compiled out on the device so the
// image holds only the register sequence.
type Config struct{}

type logger struct{}

func newLogger(Config) logger { return logger{} }

func (d *Device) info(msg string)                        {}
func (d *Device) infoPin(msg, pin string)                {}
func (d *Device) debug(msg string)                       {}
func (d *Device) trace(msg string, addr uint16, v uint8) {}
