// Package cpu models the subset of a 32-bit x86 CPU that the memory manager
// talks to: the paging control registers and the halt instruction.
package cpu

import "github.com/tebeka/atexit"

const (
	// CR0ProtectionEnable enables protected mode.
	CR0ProtectionEnable = uint32(1 << 0)

	// CR0Paging enables paging. It requires CR0ProtectionEnable.
	CR0Paging = uint32(1 << 31)

	// haltExitCode is reported to the host when the machine halts.
	haltExitCode = 1
)

var (
	// exitFn is used by tests to override calls to atexit.Exit.
	exitFn = atexit.Exit
)

// MMU holds the control registers that are read or written by the paging
// code. The zero value describes a CPU running in real mode with paging
// disabled.
type MMU struct {
	cr0, cr2, cr3 uint32

	// switchCount tracks the number of CR3 reloads.
	switchCount int
}

// SwitchPDT sets the root page table directory to point to the specified
// physical address and enables paging if it is not already enabled.
func (m *MMU) SwitchPDT(pdtPhysAddr uintptr) {
	m.cr3 = uint32(pdtPhysAddr)
	m.cr0 |= CR0ProtectionEnable | CR0Paging
	m.switchCount++
}

// ActivePDT returns the physical address of the currently active page
// directory.
func (m *MMU) ActivePDT() uintptr {
	return uintptr(m.cr3)
}

// PagingEnabled returns true if the paging bit of CR0 is set.
func (m *MMU) PagingEnabled() bool {
	return m.cr0&CR0Paging != 0
}

// SwitchCount returns the number of times SwitchPDT has been invoked.
func (m *MMU) SwitchCount() int {
	return m.switchCount
}

// ReadCR2 returns the value stored in the CR2 register. The CPU latches the
// faulting virtual address in CR2 before raising a page fault.
func (m *MMU) ReadCR2() uintptr {
	return uintptr(m.cr2)
}

// LatchFault stores virtAddr in CR2.
func (m *MMU) LatchFault(virtAddr uintptr) {
	m.cr2 = uint32(virtAddr)
}

// Halt stops instruction execution. Any handlers registered with atexit (e.g.
// trace writers) get a chance to run before the host process exits.
func Halt() {
	exitFn(haltExitCode)
}
