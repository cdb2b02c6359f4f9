package vmm

import (
	"strings"

	"memcore/kernel"
	"memcore/kernel/irq"
	"memcore/kernel/kfmt"
)

// Page fault error code bits pushed by the CPU.
const (
	FaultCodePresent          = uint32(1 << 0)
	FaultCodeWrite            = uint32(1 << 1)
	FaultCodeUser             = uint32(1 << 2)
	FaultCodeReserved         = uint32(1 << 3)
	FaultCodeInstructionFetch = uint32(1 << 4)
)

// FaultCause is the decoded form of a page fault error code.
type FaultCause struct {
	// Present is set for protection violations and cleared when the
	// page was not present.
	Present          bool
	Write            bool
	User             bool
	Reserved         bool
	InstructionFetch bool
}

// DecodeFaultCode decodes a page fault error code.
func DecodeFaultCode(code uint32) FaultCause {
	return FaultCause{
		Present:          code&FaultCodePresent != 0,
		Write:            code&FaultCodeWrite != 0,
		User:             code&FaultCodeUser != 0,
		Reserved:         code&FaultCodeReserved != 0,
		InstructionFetch: code&FaultCodeInstructionFetch != 0,
	}
}

// String returns a human readable description of the fault.
func (c FaultCause) String() string {
	var sb strings.Builder

	if c.Present {
		sb.WriteString("page protection violation")
	} else {
		sb.WriteString("non-present page")
	}

	switch {
	case c.InstructionFetch:
		sb.WriteString(" (instruction fetch)")
	case c.Write:
		sb.WriteString(" (write)")
	default:
		sb.WriteString(" (read)")
	}

	if c.User {
		sb.WriteString(" in user-mode")
	} else {
		sb.WriteString(" in kernel-mode")
	}

	if c.Reserved {
		sb.WriteString("; page table has reserved bit set")
	}

	return sb.String()
}

func (m *MemoryManager) pageFaultHandler(regs *irq.Regs) {
	faultAddress := m.mmu.ReadCR2()
	m.tracer.Trace(Event{Kind: EventPageFault, VirtAddr: faultAddress, Detail: regs.Info})

	kfmt.Printf("\nPage fault while accessing address: 0x%08x\nReason: %s\n", faultAddress, DecodeFaultCode(regs.Info))
	kfmt.Printf("\nRegisters:\n")
	regs.DumpTo(kfmt.GetOutputSink())

	// TODO: Revisit this when user-mode tasks are implemented
	kernel.Fatal(ErrPageFault)
}

func (m *MemoryManager) generalProtectionFaultHandler(regs *irq.Regs) {
	kfmt.Printf("\nGeneral protection fault (error code: 0x%x)\n", regs.Info)
	kfmt.Printf("Registers:\n")
	regs.DumpTo(kfmt.GetOutputSink())

	kernel.Fatal(ErrGeneralProtectionFault)
}
