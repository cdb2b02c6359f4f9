// Package machine assembles a simulated machine around the memory manager:
// a CPU with paging registers, an exception dispatcher and a kernel heap.
package machine

import (
	"memcore/kernel"
	"memcore/kernel/cpu"
	"memcore/kernel/irq"
	"memcore/kernel/kfmt"
	"memcore/kernel/mm"
	"memcore/kernel/mm/heap"
	"memcore/kernel/mm/vmm"
)

var (
	errInvalidMemorySize = &kernel.Error{Module: "machine", Message: "memory size must be a non-zero multiple of the page size no larger than 4G"}
	errKernelTooLarge    = &kernel.Error{Module: "machine", Message: "kernel image does not fit in physical memory"}
)

// Config describes the machine to boot.
type Config struct {
	// Memory is the amount of physical RAM.
	Memory mm.Size

	// KernelEnd is the address where the loaded kernel image ends.
	KernelEnd uintptr

	// Tracer receives memory manager events. It is optional.
	Tracer vmm.Tracer
}

// Machine is a booted machine with paging and the kernel heap installed.
type Machine struct {
	CPU    *cpu.MMU
	Faults *irq.Dispatcher
	Memory *vmm.MemoryManager
	Heap   *heap.Arena

	memSize mm.Size
}

// Boot validates cfg, installs paging and the kernel heap and returns the
// running machine. Running out of frames while booting is fatal.
func Boot(cfg Config) (*Machine, *kernel.Error) {
	if cfg.Memory == 0 || cfg.Memory%mm.Size(mm.PageSize) != 0 || cfg.Memory > 4*mm.Gb {
		return nil, errInvalidMemorySize
	}

	if uint64(cfg.KernelEnd) >= uint64(cfg.Memory) {
		return nil, errKernelTooLarge
	}

	m := &Machine{
		CPU:     &cpu.MMU{},
		Faults:  &irq.Dispatcher{},
		memSize: cfg.Memory,
	}

	m.Memory = vmm.New(vmm.Config{
		KernelEnd: cfg.KernelEnd,
		MMU:       m.CPU,
		Faults:    m.Faults,
		Tracer:    cfg.Tracer,
	})

	if err := m.Memory.Install(cfg.Memory); err != nil {
		return nil, err
	}

	m.Heap = heap.NewArena(m.Memory)
	if err := m.Memory.InstallHeap(m.Heap); err != nil {
		return nil, err
	}

	kfmt.Printf("booted machine with %s of RAM, kernel ends at 0x%08x\n", cfg.Memory, cfg.KernelEnd)
	return m, nil
}

// Access simulates a memory access from the current address space. If the
// access is not permitted the CPU latches the address in CR2 and raises a
// page fault, which halts the machine.
func (m *Machine) Access(virtAddr uintptr, write, user bool) {
	code, ok := m.Memory.CheckAccess(virtAddr, write, user, m.Memory.CurrentDirectory())
	if ok {
		return
	}

	m.CPU.LatchFault(virtAddr)
	m.Faults.Raise(irq.PageFaultException, irq.Regs{Info: code, EIP: uint32(virtAddr)})
}

// GrowHeap extends the kernel heap by size bytes, rounded up to a whole
// number of pages, and returns the previous heap end.
func (m *Machine) GrowHeap(size uintptr) uintptr {
	return m.Memory.Grow(mm.AlignUp(size))
}

// Summary describes the memory state of a machine.
type Summary struct {
	Memory       string `json:"memory"`
	TotalFrames  uint32 `json:"total_frames"`
	UsedFrames   uint32 `json:"used_frames"`
	FreeFrames   uint32 `json:"free_frames"`
	BitmapAddr   uint64 `json:"bitmap_addr"`
	ReservedEnd  uint64 `json:"reserved_end"`
	HeapStart    uint64 `json:"heap_start"`
	HeapEnd      uint64 `json:"heap_end"`
	KernelPDT    uint64 `json:"kernel_pdt"`
	ActivePDT    uint64 `json:"active_pdt"`
	PDTSwitches  int    `json:"pdt_switches"`
	Directories  int    `json:"directories"`
	PagingActive bool   `json:"paging_active"`
}

// Summary returns the current memory state.
func (m *Machine) Summary() Summary {
	frames := m.Memory.Frames()

	return Summary{
		Memory:       m.memSize.String(),
		TotalFrames:  frames.FrameCount(),
		UsedFrames:   frames.UsedFrames(),
		FreeFrames:   frames.FreeFrames(),
		BitmapAddr:   uint64(frames.StorageAddr()),
		ReservedEnd:  uint64(m.Memory.ReservedEnd()),
		HeapStart:    uint64(m.Memory.HeapStart()),
		HeapEnd:      uint64(m.Memory.HeapEnd()),
		KernelPDT:    uint64(m.Memory.KernelDirectory().PhysAddr()),
		ActivePDT:    uint64(m.CPU.ActivePDT()),
		PDTSwitches:  m.CPU.SwitchCount(),
		Directories:  len(m.Memory.Directories()),
		PagingActive: m.CPU.PagingEnabled(),
	}
}

// Print writes the summary through kfmt.
func (s Summary) Print() {
	kfmt.Printf("memory:       %s (%d frames)\n", s.Memory, s.TotalFrames)
	kfmt.Printf("frames:       %d used, %d free\n", s.UsedFrames, s.FreeFrames)
	kfmt.Printf("frame bitmap: 0x%08x\n", s.BitmapAddr)
	kfmt.Printf("reserved:     0x00000000-0x%08x\n", s.ReservedEnd)
	kfmt.Printf("kernel heap:  0x%08x-0x%08x\n", s.HeapStart, s.HeapEnd)
	kfmt.Printf("kernel pdt:   0x%08x\n", s.KernelPDT)
	kfmt.Printf("active pdt:   0x%08x (%d switches, paging %t)\n", s.ActivePDT, s.PDTSwitches, s.PagingActive)
	kfmt.Printf("directories:  %d\n", s.Directories)
}
