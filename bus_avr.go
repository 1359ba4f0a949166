//go:build avr

package xosc32k

import (
	"runtime/volatile"
	"unsafe"

	"github.com/soypat/xosc32k/tiny817"
)

var _ Bus = MMIO{}

// MMIO accesses the registers of the running device.
type MMIO struct{}

func reg8(addr uint16) *volatile.Register8 {
	return (*volatile.Register8)(unsafe.Pointer(uintptr(addr)))
}

func (MMIO) Read8(addr uint16) uint8 { return reg8(addr).Get() }

func (MMIO) Write8(addr uint16, v uint8) { reg8(addr).Set(v) }

// ProtectedWrite8 stores the IOREG signature to CPU.CCP followed by v to addr.
// The second store must land within 4 instructions of the first, so the
// target pointer is resolved before unlocking.
//
//go:inline
func (MMIO) ProtectedWrite8(addr uint16, v uint8) {
	ccp := reg8(tiny817.CPU_CCP)
	r := reg8(addr)
	ccp.Set(tiny817.CCP_IOREG)
	r.Set(v)
}
